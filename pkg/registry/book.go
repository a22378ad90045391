// Package registry provides the identifier-to-descriptor books used for
// tile-matrix sets and styles. A book is read-mostly: lookups take a shared
// lock for a map read only, while a configuration reload swaps the whole
// active mapping and retires the previous generation's objects to a trash
// list. The trash is drained only once the caller can guarantee no request
// that started before the swap still holds a reference, which keeps reloads
// safe for in-flight requests without locking the read path.
package registry

import (
	"sync"

	"go.uber.org/zap"
)

// Book maps public identifiers to immutable descriptor objects. The book is
// the sole owner of its values; request handlers hold non-owning pointers.
type Book[T any] struct {
	mu     sync.RWMutex
	active map[string]*T
	trash  []*T

	// retire is called for each trashed object when the trash is drained
	retire func(*T)
	logger *zap.Logger
}

// NewBook creates an empty book. retire may be nil when trashed objects need
// no explicit teardown.
func NewBook[T any](retire func(*T), logger *zap.Logger) *Book[T] {
	return &Book[T]{
		active: make(map[string]*T),
		retire: retire,
		logger: logger.With(zap.String("component", "book")),
	}
}

// Lookup returns the object registered under id, or false if absent.
func (b *Book[T]) Lookup(id string) (*T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	obj, ok := b.active[id]
	return obj, ok
}

// Reload atomically swaps the active mapping to next. Every previously
// active object not present (by pointer identity) in next moves to the trash
// list instead of being released, so requests already holding it stay valid.
func (b *Book[T]) Reload(next map[string]*T) {
	if next == nil {
		next = make(map[string]*T)
	}

	carried := make(map[*T]struct{}, len(next))
	for _, obj := range next {
		carried[obj] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	retired := 0
	for _, obj := range b.active {
		if _, ok := carried[obj]; !ok {
			b.trash = append(b.trash, obj)
			retired++
		}
	}
	b.active = next

	b.logger.Info("book reloaded",
		zap.Int("active", len(next)),
		zap.Int("retired", retired),
		zap.Int("trash", len(b.trash)))
}

// DrainTrash releases all trashed objects. The caller must guarantee that no
// request which started before the corresponding Reload can still hold a
// reference — typically after an in-flight request barrier.
func (b *Book[T]) DrainTrash() int {
	b.mu.Lock()
	trash := b.trash
	b.trash = nil
	b.mu.Unlock()

	for _, obj := range trash {
		if b.retire != nil {
			b.retire(obj)
		}
	}

	if len(trash) > 0 {
		b.logger.Info("book trash drained", zap.Int("released", len(trash)))
	}
	return len(trash)
}

// TrashLen returns the number of retired objects awaiting drain.
func (b *Book[T]) TrashLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.trash)
}

// Len returns the number of active entries.
func (b *Book[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.active)
}

// IDs returns the active identifiers in unspecified order.
func (b *Book[T]) IDs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.active))
	for id := range b.active {
		ids = append(ids, id)
	}
	return ids
}
