package pool

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// Factory constructs a handle for the given worker ID. Construction may
// perform I/O or library initialisation and can fail; a failed construction
// leaves no entry in the pool, so the worker may retry on its next request.
type Factory[T any] func(workerID int) (T, error)

// Closer destroys a handle at pool teardown.
type Closer[T any] func(handle T) error

// Worker is a worker-keyed resource pool. Each serving worker receives its
// own handle, constructed on first acquire and reused until Close. Handles
// are never shared between workers.
type Worker[T any] struct {
	factory Factory[T]
	closer  Closer[T]
	logger  *zap.Logger

	mu      sync.RWMutex
	handles map[int]T
	closed  bool

	constructed int64
}

// NewWorker creates a worker-keyed pool. closer may be nil for handles that
// need no teardown.
func NewWorker[T any](factory Factory[T], closer Closer[T], logger *zap.Logger) *Worker[T] {
	return &Worker[T]{
		factory: factory,
		closer:  closer,
		logger:  logger.With(zap.String("component", "worker_pool")),
		handles: make(map[int]T),
	}
}

// Acquire returns the handle owned by workerID, constructing and registering
// it on the first call. The same worker always receives the same handle
// thereafter. Construction runs outside the pool lock; since only the owning
// worker inserts its own key, Acquire never blocks behind another worker's
// construction.
func (p *Worker[T]) Acquire(workerID int) (T, error) {
	var zero T

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return zero, errors.New(errors.ErrorTypeInternal, "pool is closed")
	}
	if h, ok := p.handles[workerID]; ok {
		p.mu.RUnlock()
		return h, nil
	}
	p.mu.RUnlock()

	h, err := p.factory(workerID)
	if err != nil {
		return zero, errors.Wrap(err, errors.ErrorTypeConnection, "handle construction failed")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if p.closer != nil {
			_ = p.closer(h)
		}
		return zero, errors.New(errors.ErrorTypeInternal, "pool is closed")
	}
	p.handles[workerID] = h
	p.mu.Unlock()

	atomic.AddInt64(&p.constructed, 1)
	p.logger.Debug("constructed pooled handle",
		zap.Int("worker_id", workerID),
		zap.Int64("total_constructed", atomic.LoadInt64(&p.constructed)))

	return h, nil
}

// Len returns the number of live handles.
func (p *Worker[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handles)
}

// Constructed returns the total number of handles built since creation.
func (p *Worker[T]) Constructed() int64 {
	return atomic.LoadInt64(&p.constructed)
}

// Close destroys all handles exactly once. The caller must guarantee that no
// worker is concurrently in Acquire or still using a handle. The first closer
// error is returned; remaining handles are still closed.
func (p *Worker[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	if p.closer != nil {
		for id, h := range p.handles {
			if err := p.closer(h); err != nil {
				p.logger.Warn("failed to close pooled handle",
					zap.Int("worker_id", id), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	p.handles = make(map[int]T)

	return firstErr
}
