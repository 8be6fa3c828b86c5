package pool

import (
	"fmt"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

// Handle identifies an allocation by position and generation instead of by
// address. A handle goes stale when its object is released or the pool is
// cleared, and stale handles are reported rather than silently aliasing a
// newer object. The zero Handle is never valid.
type Handle struct {
	epoch uint32
	chunk uint32
	slot  uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d.%d@%d", h.epoch, h.chunk, h.slot, h.gen)
}

// AllocateHandle allocates like Allocate and also returns a handle for the
// new object.
func (p *Pool[T]) AllocateHandle(tag string) (Handle, *T, error) {
	ci, si, err := p.allocate(tag)
	if err != nil {
		return Handle{}, nil, err
	}
	s := &p.chunks[ci].slots[si]
	return p.handle(ci, si), &s.value, nil
}

// HandleOf returns the handle of a live object.
func (p *Pool[T]) HandleOf(obj *T) (Handle, error) {
	if obj == nil {
		return Handle{}, errors.New(errors.ErrorTypeInvalidParam, "handle of nil pointer").
			WithDetail("pool", p.name)
	}
	ci, si, err := p.locate(obj)
	if err != nil {
		return Handle{}, err
	}
	if !p.chunks[ci].slots[si].used {
		return Handle{}, errors.New(errors.ErrorTypeNotFound, "object is not live").
			WithDetail("pool", p.name).
			WithDetail("index", ci*p.chunkSize+si)
	}
	return p.handle(ci, si), nil
}

// Resolve returns the object h refers to if it is still live.
func (p *Pool[T]) Resolve(h Handle) (*T, bool) {
	ci, si, err := p.check(h)
	if err != nil {
		return nil, false
	}
	return &p.chunks[ci].slots[si].value, true
}

// IndexOf returns the index of the live object h refers to, for use with
// Get and ReleaseAt. It fails like ReleaseHandle for stale or foreign
// handles.
func (p *Pool[T]) IndexOf(h Handle) (int, error) {
	ci, si, err := p.check(h)
	if err != nil {
		return -1, err
	}
	return ci*p.chunkSize + si, nil
}

// ReleaseHandle frees the object h refers to. A handle from before the last
// Clear, or one pointing outside the pool, is not_found; a handle whose
// object was already released is double_free.
func (p *Pool[T]) ReleaseHandle(h Handle) error {
	ci, si, err := p.check(h)
	if err == nil {
		err = p.release(ci, si)
	}
	if err != nil {
		p.stats.failedReleases++
		return err
	}
	return nil
}

func (p *Pool[T]) handle(ci, si int) Handle {
	return Handle{
		epoch: p.epoch,
		chunk: uint32(ci),
		slot:  uint32(si),
		gen:   p.chunks[ci].slots[si].gen,
	}
}

func (p *Pool[T]) check(h Handle) (ci, si int, err error) {
	if h.epoch != p.epoch || int(h.chunk) >= len(p.chunks) || int(h.slot) >= p.chunkSize {
		return -1, -1, errors.New(errors.ErrorTypeNotFound, "handle not owned by pool").
			WithDetail("pool", p.name).
			WithDetail("handle", h.String())
	}
	ci, si = int(h.chunk), int(h.slot)
	s := &p.chunks[ci].slots[si]
	if !s.used || s.gen != h.gen {
		return -1, -1, errors.New(errors.ErrorTypeDoubleFree, "handle is stale").
			WithDetail("pool", p.name).
			WithDetail("handle", h.String())
	}
	return ci, si, nil
}
