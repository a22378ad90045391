package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/errors"
)

// Factory constructs a context for a descriptor. The pool guarantees it is
// invoked at most once per key at a time, even under concurrent first
// access.
type Factory func(ctx context.Context, desc Descriptor) (Context, error)

// DefaultFactory dispatches on the descriptor kind using the configured
// backend defaults.
func DefaultFactory(cfg *config.StorageConfig, logger *zap.Logger) Factory {
	return func(ctx context.Context, desc Descriptor) (Context, error) {
		switch desc.Kind {
		case KindFile:
			return newFileContext(desc.Location, cfg.FileRoot, logger)
		case KindS3:
			return newS3Context(ctx, desc.Location, cfg.S3Region, logger)
		case KindGCS:
			return newGCSContext(ctx, desc.Location, cfg.GCSCredentialsFile, logger)
		default:
			return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported storage kind %q", desc.Kind)
		}
	}
}

// entry carries the one-time construction state for a key. Racing acquirers
// wait on the sync.Once; the map lock is never held across construction I/O.
type poolEntry struct {
	once    sync.Once
	context Context
	err     error
}

// Pool is the backend-keyed storage context pool: one shared context per
// distinct (kind, location) target, constructed exactly once per key.
// Steady-state lookups take only a brief read lock and never wait behind
// another key's construction.
type Pool struct {
	factory Factory
	logger  *zap.Logger

	mu      sync.RWMutex
	entries map[Descriptor]*poolEntry
	closed  bool
}

// NewPool creates a storage context pool around the given factory.
func NewPool(factory Factory, logger *zap.Logger) *Pool {
	return &Pool{
		factory: factory,
		logger:  logger.With(zap.String("pool", "storage")),
		entries: make(map[Descriptor]*poolEntry),
	}
}

// Acquire returns the shared context for desc, constructing it on the first
// request for that key. Concurrent first acquires for the same new key do
// not race: the first caller constructs, the rest receive the winner's
// result. A failed construction is not retained; the next acquire retries.
func (p *Pool) Acquire(ctx context.Context, desc Descriptor) (Context, error) {
	if !desc.Kind.Valid() {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported storage kind %q", desc.Kind)
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, errors.New(errors.ErrorTypeInternal, "pool is closed")
	}
	e, ok := p.entries[desc]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, errors.New(errors.ErrorTypeInternal, "pool is closed")
		}
		if e, ok = p.entries[desc]; !ok {
			e = &poolEntry{}
			p.entries[desc] = e
		}
		p.mu.Unlock()
	}

	e.once.Do(func() {
		e.context, e.err = p.factory(ctx, desc)
		if e.err == nil {
			p.logger.Info("constructed storage context",
				zap.String("backend", desc.String()))
		}
	})

	if e.err != nil {
		// Drop the failed entry so a later acquire can retry construction.
		p.mu.Lock()
		if cur, ok := p.entries[desc]; ok && cur == e {
			delete(p.entries, desc)
		}
		p.mu.Unlock()
		return nil, errors.Wrap(e.err, errors.ErrorTypeStorage, "storage context construction failed")
	}

	return e.context, nil
}

// Len returns the number of live contexts.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, e := range p.entries {
		if e.context != nil {
			n++
		}
	}
	return n
}

// Close destroys all contexts exactly once. Must not run while any worker
// may still call Acquire or use a returned context.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for desc, e := range p.entries {
		if e.context == nil {
			continue
		}
		if err := e.context.Close(); err != nil {
			p.logger.Warn("failed to close storage context",
				zap.String("backend", desc.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	p.entries = make(map[Descriptor]*poolEntry)

	return firstErr
}
