package proj

import (
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/pool"
)

// Pool binds one reprojection Context to each serving worker. Contexts are
// not safe for concurrent use, so per-worker pooling keeps the request hot
// path lock-free on the handle.
type Pool struct {
	workers *pool.Worker[*Context]
}

// NewPool creates the projection context pool.
func NewPool(logger *zap.Logger) *Pool {
	factory := func(workerID int) (*Context, error) {
		return NewContext(workerID, logger)
	}
	return &Pool{
		workers: pool.NewWorker[*Context](factory, nil, logger.With(zap.String("pool", "proj"))),
	}
}

// Acquire returns the calling worker's context, constructing it on first use.
func (p *Pool) Acquire(workerID int) (*Context, error) {
	return p.workers.Acquire(workerID)
}

// Len returns the number of live contexts.
func (p *Pool) Len() int {
	return p.workers.Len()
}

// Close tears the pool down.
func (p *Pool) Close() error {
	return p.workers.Close()
}
