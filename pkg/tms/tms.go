// Package tms provides the TileMatrixSet descriptor type held by the
// tile-matrix-set book. A tile matrix set defines, for one CRS, the pyramid
// of zoom levels a layer can be served in. Descriptors are parsed from JSON
// files at startup or reload and are immutable afterwards.
package tms

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// TileMatrix is one zoom level of a tile matrix set.
type TileMatrix struct {
	ID           string  `json:"id"`
	Resolution   float64 `json:"cellSize"`
	TopLeftX     float64 `json:"pointOfOrigin_x"`
	TopLeftY     float64 `json:"pointOfOrigin_y"`
	TileWidth    int     `json:"tileWidth"`
	TileHeight   int     `json:"tileHeight"`
	MatrixWidth  int     `json:"matrixWidth"`
	MatrixHeight int     `json:"matrixHeight"`
}

// TileMatrixSet is an immutable pyramid definition. The book owns it;
// request handlers hold non-owning pointers.
type TileMatrixSet struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Abstract string       `json:"description"`
	Keywords []string     `json:"keywords"`
	CRS      string       `json:"crs"`
	Levels   []TileMatrix `json:"tileMatrices"`
}

// Validate checks structural invariants after parsing.
func (t *TileMatrixSet) Validate() error {
	if t.ID == "" {
		return errors.New(errors.ErrorTypeValidation, "tile matrix set is missing an identifier")
	}
	if t.CRS == "" {
		return errors.Newf(errors.ErrorTypeValidation, "tile matrix set %q is missing a CRS", t.ID)
	}
	if len(t.Levels) == 0 {
		return errors.Newf(errors.ErrorTypeValidation, "tile matrix set %q has no levels", t.ID)
	}
	for _, lv := range t.Levels {
		if lv.ID == "" {
			return errors.Newf(errors.ErrorTypeValidation, "tile matrix set %q has a level without an identifier", t.ID)
		}
		if lv.Resolution <= 0 {
			return errors.Newf(errors.ErrorTypeValidation, "level %q of %q has a non-positive resolution", lv.ID, t.ID)
		}
		if lv.TileWidth <= 0 || lv.TileHeight <= 0 {
			return errors.Newf(errors.ErrorTypeValidation, "level %q of %q has non-positive tile dimensions", lv.ID, t.ID)
		}
	}
	return nil
}

// Level returns the tile matrix with the given identifier.
func (t *TileMatrixSet) Level(id string) (*TileMatrix, bool) {
	for i := range t.Levels {
		if t.Levels[i].ID == id {
			return &t.Levels[i], true
		}
	}
	return nil, false
}

// BestLevel returns the level whose resolution is closest to the requested
// one without being coarser, falling back to the coarsest level available.
func (t *TileMatrixSet) BestLevel(resolution float64) *TileMatrix {
	// Levels sorted coarse to fine
	sorted := make([]*TileMatrix, 0, len(t.Levels))
	for i := range t.Levels {
		sorted = append(sorted, &t.Levels[i])
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Resolution > sorted[j].Resolution
	})

	best := sorted[0]
	for _, lv := range sorted {
		if lv.Resolution >= resolution {
			best = lv
		}
	}
	return best
}

// Parse decodes and validates one descriptor document.
func Parse(data []byte) (*TileMatrixSet, error) {
	var t TileMatrixSet
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse tile matrix set descriptor")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadFile reads and parses one descriptor file. When the document carries
// no identifier, the file stem is used, matching how descriptors are named
// on disk.
func LoadFile(path string) (*TileMatrixSet, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured descriptor directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read tile matrix set descriptor")
	}

	var t TileMatrixSet
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse tile matrix set descriptor")
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadDirectory parses every *.json descriptor in dir and returns the
// mapping a book reload expects. Unparseable descriptors are skipped with a
// warning so one bad file cannot take down a reload.
func LoadDirectory(dir string, logger *zap.Logger) (map[string]*TileMatrixSet, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to scan tile matrix set directory")
	}

	book := make(map[string]*TileMatrixSet, len(paths))
	for _, path := range paths {
		t, err := LoadFile(path)
		if err != nil {
			logger.Warn("skipping tile matrix set descriptor",
				zap.String("path", path), zap.Error(err))
			continue
		}
		book[t.ID] = t
	}
	return book, nil
}
