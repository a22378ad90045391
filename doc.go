// Package tileserv provides the resource-pooling and index-caching core of an
// OGC WMS/WMTS tile server. It manages the scarce, expensive-to-create handles
// every tile request needs — HTTP client contexts, cartographic-reprojection
// contexts and backend-storage contexts — together with a bounded, time-aware
// LRU cache of resolved slab-index metadata.
//
// # Architecture
//
// The core is organised around four primitives:
//
// 1. Worker-keyed pools (pkg/pool, pkg/fetch, pkg/proj): exactly one handle
// per serving worker, created lazily and reused for the worker's lifetime.
// Handles are never shared between workers, so the request hot path needs no
// locking on the handle itself.
//
// 2. Backend-keyed pool (pkg/storage): one shared context per distinct
// (kind, location) storage target — file tree, S3 bucket or GCS bucket —
// with exactly-once construction under concurrent first access.
//
// 3. Index cache (pkg/cache): a strict-LRU cache with a validity window,
// bounding both entry count and entry age for resolved slab indexes.
//
// 4. Books (pkg/registry): identifier-to-descriptor registries for
// tile-matrix sets (pkg/tms) and styles (pkg/style) with copy-and-swap
// reload and deferred trash draining, so in-flight requests keep valid
// references across a configuration reload.
//
// # Quick Start
//
// Build the serving facade and hand it to request handlers:
//
//	import (
//	    "github.com/tileforge/tileserv/internal/serving"
//	    "github.com/tileforge/tileserv/pkg/config"
//	)
//
//	cfg, _ := config.LoadFile("tileserv.yaml")
//	svc, _ := serving.New(cfg, logger)
//	defer svc.Close()
//
//	// inside a worker goroutine with its assigned workerID
//	client, _ := svc.AcquireHTTPClient(workerID)
//	idx, _ := svc.ResolveIndex(ctx, desc, slabPath, indexLength)
//
// The facade is an explicitly constructed, dependency-injected object; there
// is no package-level mutable state.
package tileserv
