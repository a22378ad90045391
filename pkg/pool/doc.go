// Package pool implements the worker-keyed resource pool primitive used for
// every per-worker handle in tileserv. It binds exactly one opaque resource
// instance to one serving worker, created lazily on the worker's first
// acquire and reused for the worker's entire lifetime.
//
// Worker identity
//
// Go deliberately hides goroutine identity, so the pool keys on an explicit
// integer worker ID that the serving layer assigns to each worker goroutine
// at startup. A worker passes its own ID to Acquire and must never pass
// another worker's.
//
// Concurrency model
//
// Only the owning worker ever constructs or uses its handle, so handles need
// no internal locking. The pool's map is guarded by a read-write mutex, but
// construction runs outside the lock: an Acquire for one worker never blocks
// behind another worker's construction I/O.
//
// Core Types:
//
//   - Worker[T]: generic worker-keyed pool for any handle type T
//
// Usage:
//
//	pool := pool.NewWorker(
//	    func(workerID int) (*Conn, error) { return dial(workerID) },
//	    func(c *Conn) error { return c.Close() },
//	    logger,
//	)
//	h, err := pool.Acquire(myWorkerID)
package pool
