// Architecture
//
// A Pool[T] owns a list of chunks. Each chunk is a separately allocated array
// of ChunkSize slots, and each slot holds one T, a used flag, an optional tag
// and a generation counter. Growing the pool appends a chunk; existing chunks
// are never reallocated, which is what keeps object addresses stable.
//
// Core Types:
//
//   - Pool[T]: the chunked pool
//   - Cursor: resumable traversal position owned by the caller
//   - Handle: (epoch, chunk, slot, generation) reference to an allocation
//   - Stats: counts and cumulative counters
//
// Slot Lifecycle
//
// A slot is either free or used. Allocate moves the first free slot (in chunk
// and slot order) to used; Release, ReleaseAt and ReleaseHandle move it back
// and reset the value to its zero value. Nothing else changes a slot's state,
// and live objects are never compacted or moved.
//
// Releasing
//
// Release takes the address of the caller's pointer. The pool finds the chunk
// whose slot array contains the address, rejects addresses it does not own
// (not_found) and slots that are already free (double_free), and nils the
// caller's pointer on success. A failed release leaves the pool unchanged.
//
//	enemy, _ := entities.Allocate("enemy1")
//	if err := entities.Release(&enemy); err != nil {
//		return err
//	}
//	// enemy == nil
//
// Handles give the same guarantees without raw addresses:
//
//	h, _, _ := entities.AllocateHandle("")
//	_ = entities.ReleaseHandle(h)
//	err := entities.ReleaseHandle(h) // double_free
//
// Traversal
//
// GetNextUsedObject, ForEach and All visit live objects in chunk and slot
// order and skip free slots. Releasing objects during a traversal is allowed:
//
//	var c pool.Cursor
//	for obj, ok := entities.GetNextUsedObject(&c); ok; obj, ok = entities.GetNextUsedObject(&c) {
//		if obj.Dead {
//			idx, _ := c.Index()
//			_ = entities.ReleaseAt(idx)
//		}
//	}
//
// Choosing a Chunk Size
//
// Smaller chunks grow more often but waste less memory per growth step;
// larger chunks amortize growth at the cost of over-allocation. After m
// allocations without releases, Capacity() == ChunkSize()*ceil(m/ChunkSize()).
//
// Concurrency
//
// A Pool has a single owner and performs no locking. Pointers it returns are
// borrowed: valid from Allocate until the matching release or Clear.
package pool
