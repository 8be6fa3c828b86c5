// Package pool provides the chunked object pool every resource container in
// chunkpool is built on. Objects live in fixed-size chunks that are allocated
// one at a time and never moved, so a pointer returned by Allocate stays valid
// until it is released or the pool is cleared.
//
// The package provides:
//   - Generic address-stable pooling with Pool[T]
//   - Release by pointer, by index, or by generational Handle
//   - Resumable traversal with Cursor, ForEach and All
//   - Tag lookup for objects allocated with a tag
//   - Allocation statistics for monitoring
//
// Example usage:
//
//	lights, err := pool.New[Light](32)
//	if err != nil {
//	    return err
//	}
//	sun, _ := lights.Allocate("sun")
//	sun.Intensity = 1.0
//	defer lights.Release(&sun)
//
// A Pool is not safe for concurrent use; it has exactly one owner.
package pool

import (
	"strings"
	"unsafe"

	"go.uber.org/zap"

	"github.com/ajitpratap0/chunkpool/pkg/config"
	"github.com/ajitpratap0/chunkpool/pkg/errors"
)

// Pool is a growable collection of fixed-size chunks holding values of type
// T. Each chunk is allocated separately, so growing the chunk list never
// relocates an existing object.
type Pool[T any] struct {
	chunks    []*chunk[T]
	chunkSize int
	maxChunks int
	used      int
	epoch     uint32
	name      string
	logger    *zap.Logger
	init      func(*T)
	reset     func(*T)
	stats     struct {
		allocations    uint64
		releases       uint64
		failedReleases uint64
		grows          uint64
		clears         uint64
	}
}

// Stats is a point-in-time view of a pool. Used+Free always equals Capacity.
type Stats struct {
	Used           int    `json:"used"`
	Free           int    `json:"free"`
	Capacity       int    `json:"capacity"`
	Chunks         int    `json:"chunks"`
	ChunkSize      int    `json:"chunk_size"`
	Allocations    uint64 `json:"allocations"`
	Releases       uint64 `json:"releases"`
	FailedReleases uint64 `json:"failed_releases"`
	Grows          uint64 `json:"grows"`
	Clears         uint64 `json:"clears"`
}

// New creates a pool whose chunks hold chunkSize slots each. A non-positive
// chunkSize is an invalid_param error. Chunks are allocated lazily unless
// WithInitialChunks is given.
//
// Example:
//
//	entities, err := pool.New[Entity](64,
//	    pool.WithName("entities"),
//	    pool.WithMaxChunks(1024),
//	)
func New[T any](chunkSize int, opts ...Option) (*Pool[T], error) {
	if chunkSize <= 0 {
		return nil, errors.New(errors.ErrorTypeInvalidParam, "chunk size must be positive").
			WithDetail("chunk_size", chunkSize)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.initialChunks < 0 || o.maxChunks < 0 {
		return nil, errors.New(errors.ErrorTypeInvalidParam, "chunk counts must not be negative").
			WithDetail("initial_chunks", o.initialChunks).
			WithDetail("max_chunks", o.maxChunks)
	}

	p := &Pool[T]{
		chunkSize: chunkSize,
		maxChunks: o.maxChunks,
		epoch:     1,
		name:      o.name,
		logger:    o.logger,
	}
	for i := 0; i < o.initialChunks; i++ {
		if _, err := p.grow(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewFromConfig creates a pool from a validated PoolConfig. Options given
// here are applied after the ones derived from cfg.
func NewFromConfig[T any](cfg config.PoolConfig, opts ...Option) (*Pool[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := []Option{
		WithInitialChunks(cfg.InitialChunks),
		WithMaxChunks(cfg.MaxChunks),
	}
	if cfg.Name != "" {
		base = append(base, WithName(cfg.Name))
	}
	return New[T](cfg.ChunkSize, append(base, opts...)...)
}

// SetInit installs a hook run on every freshly allocated object, after it
// has been reset to the zero value. It plays the role of a constructor.
func (p *Pool[T]) SetInit(fn func(*T)) {
	p.init = fn
}

// SetReset installs a hook run on an object just before it is released or
// cleared, while its contents are still intact.
func (p *Pool[T]) SetReset(fn func(*T)) {
	p.reset = fn
}

// Allocate returns a pointer to a free object, tagging it with tag when tag
// is not empty. Existing chunks are searched in order; when all are full
// exactly one chunk is appended. The only failure is out_of_memory.
func (p *Pool[T]) Allocate(tag string) (*T, error) {
	ci, si, err := p.allocate(tag)
	if err != nil {
		return nil, err
	}
	return &p.chunks[ci].slots[si].value, nil
}

// MustAllocate is like Allocate but panics on failure. Use it only where
// running out of chunks is already fatal for the caller.
func (p *Pool[T]) MustAllocate(tag string) *T {
	obj, err := p.Allocate(tag)
	if err != nil {
		panic(err)
	}
	return obj
}

func (p *Pool[T]) allocate(tag string) (ci, si int, err error) {
	ci, si = -1, -1
	for i, c := range p.chunks {
		if s := c.findFreeSlot(); s >= 0 {
			ci, si = i, s
			break
		}
	}
	if ci < 0 {
		c, err := p.grow()
		if err != nil {
			return -1, -1, err
		}
		ci, si = c, 0
	}

	c := p.chunks[ci]
	s := &c.slots[si]
	s.assign(tag)
	c.used++
	p.used++
	p.stats.allocations++
	if p.init != nil {
		p.init(&s.value)
	}
	return ci, si, nil
}

// grow appends one chunk and returns its index.
func (p *Pool[T]) grow() (int, error) {
	if p.maxChunks > 0 && len(p.chunks) >= p.maxChunks {
		return -1, errors.New(errors.ErrorTypeOutOfMemory, "chunk limit reached").
			WithDetail("pool", p.name).
			WithDetail("max_chunks", p.maxChunks)
	}
	c, err := newChunk[T](p.chunkSize)
	if err != nil {
		return -1, errors.Wrap(err, errors.ErrorTypeOutOfMemory, "chunk allocation failed").
			WithDetail("pool", p.name).
			WithDetail("chunk_size", p.chunkSize)
	}
	p.chunks = append(p.chunks, c)
	p.stats.grows++
	p.logger.Debug("pool grew",
		zap.String("pool", p.name),
		zap.Int("chunks", len(p.chunks)),
		zap.Int("capacity", p.Capacity()))
	return len(p.chunks) - 1, nil
}

// Release frees the object *pp points to and sets *pp to nil. The owning
// chunk is found by testing which chunk's slot array contains the address.
//
// Errors:
//   - invalid_param when pp or *pp is nil
//   - not_found when no chunk owns the address
//   - double_free when the slot is already free
//
// On error the pool and *pp are left untouched.
func (p *Pool[T]) Release(pp **T) error {
	if pp == nil || *pp == nil {
		return errors.New(errors.ErrorTypeInvalidParam, "release of nil pointer").
			WithDetail("pool", p.name)
	}
	ci, si, err := p.locate(*pp)
	if err == nil {
		err = p.release(ci, si)
	}
	if err != nil {
		p.stats.failedReleases++
		p.logger.Debug("release failed", zap.String("pool", p.name), zap.Error(err))
		return err
	}
	*pp = nil
	return nil
}

// locate resolves an object pointer to its chunk and slot.
func (p *Pool[T]) locate(obj *T) (ci, si int, err error) {
	addr := uintptr(unsafe.Pointer(obj))
	for i, c := range p.chunks {
		if !c.containsAddress(addr) {
			continue
		}
		if s, ok := c.slotIndex(addr); ok {
			return i, s, nil
		}
		break
	}
	return -1, -1, errors.New(errors.ErrorTypeNotFound, "address not owned by pool").
		WithDetail("pool", p.name)
}

func (p *Pool[T]) release(ci, si int) error {
	c := p.chunks[ci]
	s := &c.slots[si]
	if !s.used {
		return errors.New(errors.ErrorTypeDoubleFree, "slot already free").
			WithDetail("pool", p.name).
			WithDetail("index", ci*p.chunkSize+si)
	}
	if p.reset != nil {
		p.reset(&s.value)
	}
	s.reset()
	c.used--
	p.used--
	p.stats.releases++
	return nil
}

// Get returns the live object at index, where index = chunk*ChunkSize()+slot.
func (p *Pool[T]) Get(index int) (*T, bool) {
	ci, si, ok := p.split(index)
	if !ok {
		return nil, false
	}
	s := &p.chunks[ci].slots[si]
	if !s.used {
		return nil, false
	}
	return &s.value, true
}

// ReleaseAt frees the object at index. It is the removal-by-index companion
// of Cursor.Index and fails like Release.
func (p *Pool[T]) ReleaseAt(index int) error {
	ci, si, ok := p.split(index)
	if !ok {
		p.stats.failedReleases++
		return errors.New(errors.ErrorTypeNotFound, "index out of range").
			WithDetail("pool", p.name).
			WithDetail("index", index)
	}
	if err := p.release(ci, si); err != nil {
		p.stats.failedReleases++
		return err
	}
	return nil
}

func (p *Pool[T]) split(index int) (ci, si int, ok bool) {
	if index < 0 || index >= p.Capacity() {
		return -1, -1, false
	}
	return index / p.chunkSize, index % p.chunkSize, true
}

// Tag returns the tag stored with a live object.
func (p *Pool[T]) Tag(obj *T) (string, bool) {
	if obj == nil {
		return "", false
	}
	ci, si, err := p.locate(obj)
	if err != nil {
		return "", false
	}
	s := &p.chunks[ci].slots[si]
	if !s.used {
		return "", false
	}
	return s.tag, true
}

// FindByTag returns the first live object whose tag matches, scanning in
// chunk and slot order. An empty tag never matches.
func (p *Pool[T]) FindByTag(tag string, caseSensitive bool) (*T, bool) {
	if tag == "" {
		return nil, false
	}
	for _, c := range p.chunks {
		if c.used == 0 {
			continue
		}
		for i := range c.slots {
			s := &c.slots[i]
			if s.used && tagMatches(s.tag, tag, caseSensitive) {
				return &s.value, true
			}
		}
	}
	return nil, false
}

// FindAllByTag returns every live object whose tag matches, in traversal
// order. The result is never nil.
func (p *Pool[T]) FindAllByTag(tag string, caseSensitive bool) []*T {
	out := make([]*T, 0)
	if tag == "" {
		return out
	}
	for _, c := range p.chunks {
		if c.used == 0 {
			continue
		}
		for i := range c.slots {
			s := &c.slots[i]
			if s.used && tagMatches(s.tag, tag, caseSensitive) {
				out = append(out, &s.value)
			}
		}
	}
	return out
}

// Find is FindByTag with case-sensitive matching.
func (p *Pool[T]) Find(tag string) (*T, bool) {
	return p.FindByTag(tag, true)
}

// FindAll is FindAllByTag with case-sensitive matching.
func (p *Pool[T]) FindAll(tag string) []*T {
	return p.FindAllByTag(tag, true)
}

func tagMatches(have, want string, caseSensitive bool) bool {
	if have == "" {
		return false
	}
	if caseSensitive {
		return have == want
	}
	return strings.EqualFold(have, want)
}

// UsedCount returns the number of live objects.
func (p *Pool[T]) UsedCount() int {
	return p.used
}

// FreeCount returns the number of free slots across all chunks.
func (p *Pool[T]) FreeCount() int {
	return p.Capacity() - p.used
}

// Capacity returns the total number of slots across all chunks.
func (p *Pool[T]) Capacity() int {
	return len(p.chunks) * p.chunkSize
}

// ChunkCount returns the number of allocated chunks.
func (p *Pool[T]) ChunkCount() int {
	return len(p.chunks)
}

// ChunkSize returns the number of slots per chunk.
func (p *Pool[T]) ChunkSize() int {
	return p.chunkSize
}

// Name returns the pool's label.
func (p *Pool[T]) Name() string {
	return p.name
}

// Clear drops every chunk together with the objects and tags they hold.
// The reset hook runs for each live object first. Pointers and handles
// obtained before Clear must not be used afterwards. Clearing an empty pool
// does nothing.
func (p *Pool[T]) Clear() {
	if len(p.chunks) == 0 {
		return
	}
	if p.reset != nil {
		for _, c := range p.chunks {
			for i := range c.slots {
				if c.slots[i].used {
					p.reset(&c.slots[i].value)
				}
			}
		}
	}
	released := p.used
	for i := range p.chunks {
		p.chunks[i] = nil
	}
	p.chunks = nil
	p.used = 0
	p.epoch++
	p.stats.clears++
	p.logger.Debug("pool cleared",
		zap.String("pool", p.name),
		zap.Int("released", released))
}

// Stats returns current counts and cumulative counters.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Used:           p.used,
		Free:           p.FreeCount(),
		Capacity:       p.Capacity(),
		Chunks:         len(p.chunks),
		ChunkSize:      p.chunkSize,
		Allocations:    p.stats.allocations,
		Releases:       p.stats.releases,
		FailedReleases: p.stats.failedReleases,
		Grows:          p.stats.grows,
		Clears:         p.stats.clears,
	}
}
