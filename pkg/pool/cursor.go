package pool

import (
	stderrors "errors"
	"iter"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

// ErrStop may be returned by a ForEach visitor to end the traversal early
// without reporting an error.
var ErrStop = stderrors.New("pool: stop traversal")

// Cursor is a caller-owned traversal position. The zero value starts at the
// first slot; independent cursors never interfere with each other.
type Cursor struct {
	chunk int
	slot  int
	last  int // index+1 of the object last returned, 0 if none
}

// Reset rewinds the cursor to the start of the pool.
func (c *Cursor) Reset() {
	*c = Cursor{}
}

// Index returns the pool index of the object most recently returned through
// this cursor, suitable for Pool.Get and Pool.ReleaseAt.
func (c *Cursor) Index() (int, bool) {
	if c.last == 0 {
		return -1, false
	}
	return c.last - 1, true
}

// GetNextUsedObject advances c to the next live object and returns it. It
// returns false once every chunk has been passed. Objects may be released
// between calls, including the one just returned.
func (p *Pool[T]) GetNextUsedObject(c *Cursor) (*T, bool) {
	if c == nil {
		return nil, false
	}
	for c.chunk < len(p.chunks) {
		ch := p.chunks[c.chunk]
		if ch.used == 0 {
			c.chunk++
			c.slot = 0
			continue
		}
		for c.slot < len(ch.slots) {
			s := &ch.slots[c.slot]
			idx := c.chunk*p.chunkSize + c.slot
			c.slot++
			if s.used {
				c.last = idx + 1
				return &s.value, true
			}
		}
		c.chunk++
		c.slot = 0
	}
	return nil, false
}

// ForEach calls visit for every live object in chunk and slot order. A visitor
// returning ErrStop ends the traversal and ForEach returns nil; any other
// error aborts it and is returned wrapped as an internal error. The visitor
// may release the object it is given. Objects allocated during the traversal
// are visited only if they land after the current position.
func (p *Pool[T]) ForEach(visit func(*T) error) error {
	if visit == nil {
		return errors.New(errors.ErrorTypeInvalidParam, "nil visitor").
			WithDetail("pool", p.name)
	}
	var c Cursor
	for {
		obj, ok := p.GetNextUsedObject(&c)
		if !ok {
			return nil
		}
		if err := visit(obj); err != nil {
			if stderrors.Is(err, ErrStop) {
				return nil
			}
			idx, _ := c.Index()
			return errors.Wrap(err, errors.ErrorTypeInternal, "visitor aborted traversal").
				WithDetail("pool", p.name).
				WithDetail("index", idx)
		}
	}
}

// All returns an iterator over live objects in traversal order.
//
//	for obj := range entities.All() {
//	    obj.Update(dt)
//	}
func (p *Pool[T]) All() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		var c Cursor
		for {
			obj, ok := p.GetNextUsedObject(&c)
			if !ok || !yield(obj) {
				return
			}
		}
	}
}
