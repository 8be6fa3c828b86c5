package pool

import (
	"fmt"
	"unsafe"
)

// chunk is a fixed array of slots. The backing array is allocated once and
// never resized, so addresses handed out from it stay valid for the chunk's
// lifetime.
type chunk[T any] struct {
	slots []slot[T]
	used  int
}

// newChunk allocates a chunk of n slots. A runtime panic raised by the
// allocation (for example a length the runtime cannot represent) is turned
// into an error so growth failure can be reported instead of crashing.
func newChunk[T any](n int) (c *chunk[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("allocate chunk of %d slots: %v", n, r)
		}
	}()
	return &chunk[T]{slots: make([]slot[T], n)}, nil
}

func (c *chunk[T]) full() bool {
	return c.used == len(c.slots)
}

// findFreeSlot returns the index of the first free slot, or -1 when every
// slot is in use.
func (c *chunk[T]) findFreeSlot() int {
	if c.full() {
		return -1
	}
	for i := range c.slots {
		if !c.slots[i].used {
			return i
		}
	}
	return -1
}

// bounds returns the address of the first slot and the slot stride.
func (c *chunk[T]) bounds() (base, stride uintptr) {
	return uintptr(unsafe.Pointer(&c.slots[0])), unsafe.Sizeof(c.slots[0])
}

// containsAddress reports whether addr falls inside the chunk's slot array.
func (c *chunk[T]) containsAddress(addr uintptr) bool {
	base, stride := c.bounds()
	return addr >= base && addr < base+stride*uintptr(len(c.slots))
}

// slotIndex maps an address inside the chunk to the slot whose value lives
// there. Addresses that point into the middle of a slot are rejected.
func (c *chunk[T]) slotIndex(addr uintptr) (int, bool) {
	if !c.containsAddress(addr) {
		return -1, false
	}
	base, stride := c.bounds()
	off := addr - base
	if off%stride != 0 {
		return -1, false
	}
	return int(off / stride), true
}
