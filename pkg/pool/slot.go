package pool

// slot is one storage cell of a chunk. value is kept as the first field so a
// pointer to it is also a pointer to the slot, even for zero-sized T.
type slot[T any] struct {
	value T
	tag   string
	gen   uint32
	used  bool
}

// assign marks the slot used and stores the caller's tag. The value is
// already zeroed, either by chunk allocation or by the previous reset.
func (s *slot[T]) assign(tag string) {
	s.used = true
	s.tag = tag
}

// reset returns the slot to the free state. The generation moves on so that
// handles issued for the previous occupant go stale.
func (s *slot[T]) reset() {
	var zero T
	s.value = zero
	s.tag = ""
	s.used = false
	s.gen++
}
