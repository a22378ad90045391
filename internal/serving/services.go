// Package serving bundles the pools, the index cache and the descriptor
// books into one dependency-injected facade handed to request handlers.
// There is no package-level mutable state: the facade owns every shared
// resource, and its Close defines the single teardown point.
package serving

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/cache"
	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/errors"
	"github.com/tileforge/tileserv/pkg/fetch"
	"github.com/tileforge/tileserv/pkg/metrics"
	"github.com/tileforge/tileserv/pkg/observability"
	"github.com/tileforge/tileserv/pkg/proj"
	"github.com/tileforge/tileserv/pkg/registry"
	"github.com/tileforge/tileserv/pkg/storage"
	"github.com/tileforge/tileserv/pkg/style"
	"github.com/tileforge/tileserv/pkg/tms"
)

// Services owns every pooled resource a request handler needs. One instance
// serves the whole process; handlers receive it by reference.
type Services struct {
	cfg    *config.Config
	logger *zap.Logger

	httpPool    *fetch.Pool
	projPool    *proj.Pool
	storagePool *storage.Pool

	indexCache *cache.Cache[*storage.SlabIndex]

	tmsBook   *registry.Book[tms.TileMatrixSet]
	styleBook *registry.Book[style.Style]

	collector *metrics.Collector

	statsMu   sync.Mutex
	published cache.Stats
}

// New builds the facade from a validated configuration. Descriptor books
// start empty; LoadBooks or Reload populates them.
func New(cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Services{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "serving")),

		httpPool:    fetch.NewPool(&cfg.HTTP, logger),
		projPool:    proj.NewPool(logger),
		storagePool: storage.NewPool(storage.DefaultFactory(&cfg.Storage, logger), logger),

		indexCache: cache.New[*storage.SlabIndex](cfg.Cache.Size, cfg.Cache.Validity()),

		tmsBook:   registry.NewBook[tms.TileMatrixSet](nil, logger),
		styleBook: registry.NewBook[style.Style](nil, logger),

		collector: metrics.NewCollector(),
	}

	return s, nil
}

// AcquireHTTPClient returns the calling worker's HTTP client.
func (s *Services) AcquireHTTPClient(workerID int) (*fetch.Client, error) {
	c, err := s.httpPool.Acquire(workerID)
	if err != nil {
		return nil, err
	}
	s.collector.SetPoolHandles("fetch", s.httpPool.Len())
	return c, nil
}

// AcquireProjContext returns the calling worker's reprojection context.
func (s *Services) AcquireProjContext(workerID int) (*proj.Context, error) {
	c, err := s.projPool.Acquire(workerID)
	if err != nil {
		return nil, err
	}
	s.collector.SetPoolHandles("proj", s.projPool.Len())
	return c, nil
}

// AcquireStorageContext returns the shared context for the given backend
// target, constructing it on first request.
func (s *Services) AcquireStorageContext(ctx context.Context, kind storage.Kind, location string) (storage.Context, error) {
	sc, err := s.storagePool.Acquire(ctx, storage.Descriptor{Kind: kind, Location: location})
	if err != nil {
		return nil, err
	}
	s.collector.SetPoolHandles("storage", s.storagePool.Len())
	return sc, nil
}

// IndexCacheGet returns the cached slab index for key, if resident and
// still valid.
func (s *Services) IndexCacheGet(key string) (*storage.SlabIndex, bool) {
	idx, ok := s.indexCache.Get(key)
	if ok {
		s.collector.RecordCacheHit()
	} else {
		s.collector.RecordCacheMiss()
	}
	s.publishCacheStats()
	return idx, ok
}

// IndexCachePut stores a resolved slab index under key.
func (s *Services) IndexCachePut(key string, idx *storage.SlabIndex) {
	s.indexCache.Put(key, idx)
	s.publishCacheStats()
}

// IndexCacheInvalidate removes the entry for key, used on data changes.
func (s *Services) IndexCacheInvalidate(key string) {
	s.indexCache.Invalidate(key)
	s.publishCacheStats()
}

// publishCacheStats forwards the cache's eviction and expiration counters to
// the prometheus collectors, recording only the increments since the last
// publication.
func (s *Services) publishCacheStats() {
	st := s.indexCache.Stats()

	s.statsMu.Lock()
	evictions := st.Evictions - s.published.Evictions
	expirations := st.Expirations - s.published.Expirations
	s.published = st
	s.statsMu.Unlock()

	for i := int64(0); i < evictions; i++ {
		s.collector.RecordCacheEviction()
	}
	for i := int64(0); i < expirations; i++ {
		s.collector.RecordCacheExpiration()
	}
	s.collector.SetCacheResident(s.indexCache.Len())
}

// ResolveIndex returns the slab index for slabPath on the given backend,
// consulting the cache first and resolving through the storage context on a
// miss. The resolution path carries a trace span; the cache path does not.
func (s *Services) ResolveIndex(ctx context.Context, desc storage.Descriptor, slabPath string, indexLength uint32) (*storage.SlabIndex, error) {
	key := storage.IndexKey(desc, slabPath)

	if idx, ok := s.IndexCacheGet(key); ok {
		return idx, nil
	}

	ctx, span := observability.StartSpan(ctx, "serving.resolve_index",
		attribute.String("backend", desc.String()),
		attribute.String("slab", slabPath))

	start := time.Now()
	idx, err := s.resolveIndex(ctx, desc, slabPath, indexLength)
	s.collector.ObserveResolve(string(desc.Kind), time.Since(start))
	observability.EndSpan(span, err)

	if err != nil {
		return nil, err
	}

	s.IndexCachePut(key, idx)
	return idx, nil
}

// resolveIndex reads and decodes the index header of a slab
func (s *Services) resolveIndex(ctx context.Context, desc storage.Descriptor, slabPath string, indexLength uint32) (*storage.SlabIndex, error) {
	sc, err := s.storagePool.Acquire(ctx, desc)
	if err != nil {
		return nil, err
	}

	data, err := sc.ReadRange(ctx, slabPath, 0, indexLength)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeStorage, "failed to read slab index header")
	}

	return storage.ParseSlabIndex(data)
}

// LookupTileMatrixSet returns the tile matrix set registered under id.
func (s *Services) LookupTileMatrixSet(id string) (*tms.TileMatrixSet, bool) {
	return s.tmsBook.Lookup(id)
}

// LookupStyle returns the style registered under id.
func (s *Services) LookupStyle(id string) (*style.Style, bool) {
	return s.styleBook.Lookup(id)
}

// LoadBooks populates both books from the configured descriptor
// directories. Missing directories leave the corresponding book untouched.
func (s *Services) LoadBooks() error {
	if dir := s.cfg.Books.TMSDirectory; dir != "" {
		mapping, err := tms.LoadDirectory(dir, s.logger)
		if err != nil {
			return err
		}
		s.tmsBook.Reload(mapping)
		s.collector.SetBookEntries("tms", s.tmsBook.Len())
	}

	if dir := s.cfg.Books.StyleDirectory; dir != "" {
		mapping, err := style.LoadDirectory(dir, s.cfg.Books.Inspire, s.logger)
		if err != nil {
			return err
		}
		s.styleBook.Reload(mapping)
		s.collector.SetBookEntries("style", s.styleBook.Len())
	}

	return nil
}

// Reload swaps both books to the given mappings and clears the index cache,
// since resolved indexes may describe retired datasets. Previous-generation
// descriptors move to the trash lists; call DrainTrash once in-flight
// requests have finished.
func (s *Services) Reload(tmsMapping map[string]*tms.TileMatrixSet, styleMapping map[string]*style.Style) {
	s.tmsBook.Reload(tmsMapping)
	s.styleBook.Reload(styleMapping)
	s.indexCache.Clear()

	s.collector.SetBookEntries("tms", s.tmsBook.Len())
	s.collector.SetBookEntries("style", s.styleBook.Len())
	s.collector.SetCacheResident(0)

	s.logger.Info("configuration reloaded",
		zap.Int("tms", s.tmsBook.Len()),
		zap.Int("styles", s.styleBook.Len()))
}

// DrainTrash releases retired descriptors once no in-flight request can
// still reference them.
func (s *Services) DrainTrash() {
	released := s.tmsBook.DrainTrash() + s.styleBook.DrainTrash()
	if released > 0 {
		s.logger.Info("retired descriptors released", zap.Int("count", released))
	}
}

// CacheStats returns a snapshot of the index-cache counters.
func (s *Services) CacheStats() cache.Stats {
	return s.indexCache.Stats()
}

// Close tears down every pool exactly once. The caller must guarantee that
// no worker is still serving.
func (s *Services) Close() error {
	var firstErr error

	for _, closer := range []func() error{
		s.httpPool.Close,
		s.projPool.Close,
		s.storagePool.Close,
	} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.indexCache.Clear()
	s.DrainTrash()

	s.logger.Info("serving resources released")
	return firstErr
}
