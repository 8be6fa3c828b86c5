package pool_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/chunkpool/pkg/errors"
	"github.com/ajitpratap0/chunkpool/pkg/pool"
)

// fill allocates n objects numbered 0..n-1.
func fill(t *testing.T, p *pool.Pool[int], n int) []*int {
	t.Helper()
	ptrs := make([]*int, n)
	for i := range ptrs {
		v, err := p.Allocate("")
		require.NoError(t, err)
		*v = i
		ptrs[i] = v
	}
	return ptrs
}

func TestGetNextUsedObjectSkipsFreeSlots(t *testing.T) {
	p := newPool[int](t, 4)
	ptrs := fill(t, p, 10)
	for _, i := range []int{0, 3, 4, 5, 6, 7} {
		require.NoError(t, p.Release(&ptrs[i]))
	}

	var c pool.Cursor
	var got []int
	var idxs []int
	for v, ok := p.GetNextUsedObject(&c); ok; v, ok = p.GetNextUsedObject(&c) {
		got = append(got, *v)
		idx, _ := c.Index()
		idxs = append(idxs, idx)
	}
	assert.Equal(t, []int{1, 2, 8, 9}, got)
	assert.Equal(t, []int{1, 2, 8, 9}, idxs)

	_, ok := p.GetNextUsedObject(&c)
	assert.False(t, ok, "exhausted cursor stays exhausted")

	c.Reset()
	_, hasLast := c.Index()
	assert.False(t, hasLast)
	v, ok := p.GetNextUsedObject(&c)
	require.True(t, ok)
	assert.Equal(t, 1, *v)
}

func TestIndependentCursors(t *testing.T) {
	p := newPool[int](t, 3)
	fill(t, p, 7)

	var a, b pool.Cursor
	_, _ = p.GetNextUsedObject(&a)
	va, _ := p.GetNextUsedObject(&a)
	vb, _ := p.GetNextUsedObject(&b)
	assert.Equal(t, 1, *va)
	assert.Equal(t, 0, *vb)

	_, ok := p.GetNextUsedObject(nil)
	assert.False(t, ok)
}

func TestReleaseDuringCursorTraversal(t *testing.T) {
	p := newPool[int](t, 4)
	fill(t, p, 12)

	var c pool.Cursor
	visited := 0
	for v, ok := p.GetNextUsedObject(&c); ok; v, ok = p.GetNextUsedObject(&c) {
		visited++
		if *v%2 == 0 {
			idx, _ := c.Index()
			require.NoError(t, p.ReleaseAt(idx))
		}
	}
	assert.Equal(t, 12, visited)
	assert.Equal(t, 6, p.UsedCount())

	for v := range p.All() {
		assert.Equal(t, 1, *v%2)
	}
}

func TestForEachVisitsEveryUsedSlotOnce(t *testing.T) {
	p := newPool[int](t, 5)
	ptrs := fill(t, p, 23)
	for _, i := range []int{2, 5, 6, 19} {
		require.NoError(t, p.Release(&ptrs[i]))
	}

	seen := map[*int]int{}
	err := p.ForEach(func(v *int) error {
		seen[v]++
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, p.UsedCount())
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}
}

func TestForEachStop(t *testing.T) {
	p := newPool[int](t, 4)
	fill(t, p, 10)

	visited := 0
	err := p.ForEach(func(v *int) error {
		visited++
		if *v == 3 {
			return pool.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, visited)
	assert.Equal(t, 10, p.UsedCount(), "stopping does not touch slot state")
}

func TestForEachAbort(t *testing.T) {
	p := newPool[int](t, 4)
	fill(t, p, 10)

	boom := stderrors.New("corrupt vertex")
	err := p.ForEach(func(v *int) error {
		if *v == 6 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, boom))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.Equal(t, 10, p.UsedCount())

	assert.True(t, errors.IsInvalidParam(p.ForEach(nil)))
}

func TestForEachKeepsOutOfMemoryFatal(t *testing.T) {
	p := newPool[int](t, 1, pool.WithMaxChunks(1))
	fill(t, p, 1)

	err := p.ForEach(func(*int) error {
		_, err := p.Allocate("")
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
	assert.True(t, errors.IsOutOfMemory(err))
	assert.True(t, stderrors.Is(err, errors.ErrOutOfMemory))
	assert.False(t, errors.IsRecoverable(err))
	assert.Equal(t, 1, p.UsedCount())
}

func TestForEachReleasingVisitedObject(t *testing.T) {
	p := newPool[int](t, 3)
	fill(t, p, 9)

	err := p.ForEach(func(v *int) error {
		if *v < 5 {
			return p.Release(&v)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, p.UsedCount())
}

func TestAllStopsEarly(t *testing.T) {
	p := newPool[int](t, 2)
	fill(t, p, 6)

	var got []int
	for v := range p.All() {
		got = append(got, *v)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestTraversalOfEmptyAndClearedPool(t *testing.T) {
	p := newPool[int](t, 4)
	var c pool.Cursor
	_, ok := p.GetNextUsedObject(&c)
	assert.False(t, ok)

	fill(t, p, 3)
	_, ok = p.GetNextUsedObject(&c)
	require.True(t, ok)
	p.Clear()
	_, ok = p.GetNextUsedObject(&c)
	assert.False(t, ok)

	calls := 0
	require.NoError(t, p.ForEach(func(*int) error { calls++; return nil }))
	assert.Zero(t, calls)
}
