// Package chunkpool provides a chunked object pool allocator: a generic
// container that hands out pointers to fixed-size objects carved from
// chunks of contiguous slots, and grows one chunk at a time.
//
// Objects never move once allocated, so pointers stay valid across growth
// and until the object is released or the pool is cleared.
//
// # Architecture
//
// A pool is a list of chunks. Each chunk holds a fixed number of slots, and
// each slot holds one object, an optional string tag and a used flag.
//
//  1. Allocation scans chunks in order for a free slot and appends exactly
//     one chunk when all are full. Capacity is always a multiple of the
//     chunk size.
//
//  2. Release maps a pointer back to its chunk and slot by address range.
//     Pointers the pool does not own are rejected as not_found, already
//     free slots as double_free. A failed release changes nothing.
//
//  3. Traversal uses a caller-owned Cursor, so several traversals can run
//     at once and releasing the current object mid-walk is allowed.
//
//  4. Handles (chunk, slot, generation) give an ownership-checked
//     alternative to raw pointers that detects stale references.
//
// # Quick Start
//
//	import "github.com/ajitpratap0/chunkpool/pkg/pool"
//
//	type Vertex struct{ X, Y, Z float32 }
//
//	vertices, err := pool.New[Vertex](256, pool.WithName("vertices"))
//	if err != nil {
//	    return err
//	}
//	v, err := vertices.Allocate("origin")
//	if err != nil {
//	    return err
//	}
//	v.X = 1
//
//	if origin, ok := vertices.FindByTag("origin", true); ok {
//	    _ = origin // same pointer as v
//	}
//	err = vertices.Release(&v) // v is nil afterwards
//
// # Key Packages
//
//	pkg/pool          - Pool[T], Cursor, Handle
//	pkg/config        - YAML configuration with ${VAR} substitution
//	pkg/errors        - Typed errors (invalid_param, out_of_memory, not_found, double_free)
//	pkg/logger        - Structured logging on zap
//	pkg/metrics       - Prometheus collector over pool statistics
//	pkg/observability - OpenTelemetry tracing for bench phases
//	internal/bench    - Allocate/traverse/release workload runner
//	cmd/chunkpool     - CLI: version, config, bench
//
// # Concurrency
//
// A pool is not safe for concurrent use. Give each goroutine its own pool,
// or guard a shared one externally. The bench runs one pool per worker.
//
// # Development
//
//	go test ./...
//	go run ./cmd/chunkpool bench --chunk-size 128 --objects 50000 --rounds 10
package chunkpool
