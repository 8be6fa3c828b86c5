package pool

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFindFreeSlot(t *testing.T) {
	c, err := newChunk[int](3)
	require.NoError(t, err)
	assert.Equal(t, 0, c.findFreeSlot())

	c.slots[0].assign("")
	c.slots[1].assign("")
	c.used = 2
	assert.Equal(t, 2, c.findFreeSlot())

	c.slots[2].assign("")
	c.used = 3
	assert.True(t, c.full())
	assert.Equal(t, -1, c.findFreeSlot())

	c.slots[1].reset()
	c.used = 2
	assert.Equal(t, 1, c.findFreeSlot())
}

func TestChunkContainsAddress(t *testing.T) {
	c, err := newChunk[int64](4)
	require.NoError(t, err)

	for i := range c.slots {
		addr := uintptr(unsafe.Pointer(&c.slots[i].value))
		assert.True(t, c.containsAddress(addr))
		idx, ok := c.slotIndex(addr)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}

	base, stride := c.bounds()
	assert.False(t, c.containsAddress(base-1))
	assert.False(t, c.containsAddress(base+stride*4))

	_, ok := c.slotIndex(base + 1)
	assert.False(t, ok, "misaligned address")

	other := int64(0)
	assert.False(t, c.containsAddress(uintptr(unsafe.Pointer(&other))))
}

func TestChunkZeroSizedValues(t *testing.T) {
	c, err := newChunk[struct{}](4)
	require.NoError(t, err)

	seen := map[uintptr]bool{}
	for i := range c.slots {
		addr := uintptr(unsafe.Pointer(&c.slots[i].value))
		assert.False(t, seen[addr], "zero-sized values still get distinct addresses")
		seen[addr] = true
		idx, ok := c.slotIndex(addr)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

func TestSlotResetAdvancesGeneration(t *testing.T) {
	var s slot[string]
	s.assign("tag")
	s.value = "payload"
	s.reset()

	assert.False(t, s.used)
	assert.Empty(t, s.tag)
	assert.Empty(t, s.value)
	assert.Equal(t, uint32(1), s.gen)
}

func TestNewChunkRecoversFromAllocationPanic(t *testing.T) {
	c, err := newChunk[[64]byte](-1)
	assert.Nil(t, c)
	assert.Error(t, err)
}
