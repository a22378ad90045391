package fetch

import (
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/pool"
)

// Pool binds one Client to each serving worker. It is a pure instance of the
// worker-keyed pattern; the underlying clients carry the shared fetch
// configuration but are never shared between workers.
type Pool struct {
	workers *pool.Worker[*Client]
}

// NewPool creates the HTTP client pool.
func NewPool(cfg *config.HTTPConfig, logger *zap.Logger) *Pool {
	factory := func(workerID int) (*Client, error) {
		return NewClient(workerID, cfg, logger)
	}
	closer := func(c *Client) error {
		return c.Close()
	}
	return &Pool{
		workers: pool.NewWorker(factory, closer, logger.With(zap.String("pool", "fetch"))),
	}
}

// Acquire returns the calling worker's client, constructing it on first use.
func (p *Pool) Acquire(workerID int) (*Client, error) {
	return p.workers.Acquire(workerID)
}

// Len returns the number of live clients.
func (p *Pool) Len() int {
	return p.workers.Len()
}

// Close releases every client exactly once.
func (p *Pool) Close() error {
	return p.workers.Close()
}
