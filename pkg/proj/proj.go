// Package proj provides per-worker coordinate-reprojection contexts. A
// Context is the expensive-to-create engine state (CRS registry plus a cache
// of prepared transformers); it is not safe for concurrent use, so each
// serving worker owns exactly one through the worker-keyed pool.
package proj

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// Earth radius of the spherical-mercator datum, metres.
const earthRadius = 6378137.0

// Web mercator is only defined inside this latitude band.
const maxMercatorLat = 85.05112877980659

// CRS identifiers understood by the built-in registry.
const (
	CRS4326   = "EPSG:4326"   // geographic WGS84, lon/lat degrees
	CRS3857   = "EPSG:3857"   // spherical web mercator, metres
	CRS900913 = "EPSG:900913" // legacy alias of EPSG:3857
)

// Context is a reprojection engine owned by a single worker. It keeps
// prepared transformers so repeated requests for the same CRS pair reuse
// the same instance.
type Context struct {
	workerID int
	logger   *zap.Logger

	known    map[string]struct{}
	prepared map[string]*Transformer
}

// NewContext initialises a reprojection context for the given worker,
// loading the built-in CRS registry.
func NewContext(workerID int, logger *zap.Logger) (*Context, error) {
	ctx := &Context{
		workerID: workerID,
		logger: logger.With(
			zap.String("component", "proj_context"),
			zap.Int("worker_id", workerID)),
		known:    make(map[string]struct{}),
		prepared: make(map[string]*Transformer),
	}

	for _, crs := range []string{CRS4326, CRS3857, CRS900913} {
		ctx.known[crs] = struct{}{}
	}

	return ctx, nil
}

// WorkerID returns the owning worker's ID.
func (c *Context) WorkerID() int {
	return c.workerID
}

// Knows reports whether the context can handle the given CRS.
func (c *Context) Knows(crs string) bool {
	_, ok := c.known[normalize(crs)]
	return ok
}

// Transformer returns a prepared transformer from src to dst, preparing and
// caching it on first request. Unknown CRS pairs yield a projection error.
func (c *Context) Transformer(src, dst string) (*Transformer, error) {
	src = normalize(src)
	dst = normalize(dst)

	key := src + ">" + dst
	if t, ok := c.prepared[key]; ok {
		return t, nil
	}

	if !c.Knows(src) {
		return nil, errors.Newf(errors.ErrorTypeProjection, "unknown source CRS %q", src)
	}
	if !c.Knows(dst) {
		return nil, errors.Newf(errors.ErrorTypeProjection, "unknown target CRS %q", dst)
	}

	t := &Transformer{src: src, dst: dst}
	c.prepared[key] = t

	c.logger.Debug("prepared transformer",
		zap.String("src", src), zap.String("dst", dst))

	return t, nil
}

// Transformer converts coordinates between two prepared CRSs.
type Transformer struct {
	src string
	dst string
}

// Transform converts a single coordinate pair from the source to the target
// CRS. Geographic coordinates are lon/lat degrees; mercator coordinates are
// metres.
func (t *Transformer) Transform(x, y float64) (float64, float64, error) {
	if t.src == t.dst {
		return x, y, nil
	}

	switch {
	case t.src == CRS4326 && mercator(t.dst):
		return geographicToMercator(x, y)
	case mercator(t.src) && t.dst == CRS4326:
		return mercatorToGeographic(x), mercatorLat(y), nil
	case mercator(t.src) && mercator(t.dst):
		return x, y, nil
	default:
		return 0, 0, errors.Newf(errors.ErrorTypeProjection,
			"no transform path from %q to %q", t.src, t.dst)
	}
}

// TransformBounds converts an axis-aligned bounding box, returning the
// transformed box.
func (t *Transformer) TransformBounds(minX, minY, maxX, maxY float64) (float64, float64, float64, float64, error) {
	x0, y0, err := t.Transform(minX, minY)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	x1, y1, err := t.Transform(maxX, maxY)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1), nil
}

func geographicToMercator(lon, lat float64) (float64, float64, error) {
	if lat < -maxMercatorLat || lat > maxMercatorLat {
		return 0, 0, errors.Newf(errors.ErrorTypeProjection,
			"latitude %g outside the mercator band", lat)
	}
	x := earthRadius * lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))
	return x, y, nil
}

func mercatorToGeographic(x float64) float64 {
	return x / earthRadius * 180 / math.Pi
}

func mercatorLat(y float64) float64 {
	return (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
}

func mercator(crs string) bool {
	return crs == CRS3857 || crs == CRS900913
}

// normalize upper-cases the authority so "epsg:4326" matches.
func normalize(crs string) string {
	if i := strings.IndexByte(crs, ':'); i > 0 {
		return strings.ToUpper(crs[:i]) + crs[i:]
	}
	return crs
}
