package tms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileforge/tileserv/pkg/testutil"
)

const pm3857 = `{
	"id": "PM",
	"title": "Web mercator pyramid",
	"crs": "EPSG:3857",
	"tileMatrices": [
		{
			"id": "0",
			"cellSize": 156543.0339280410,
			"pointOfOrigin_x": -20037508.3427892476,
			"pointOfOrigin_y": 20037508.3427892476,
			"tileWidth": 256,
			"tileHeight": 256,
			"matrixWidth": 1,
			"matrixHeight": 1
		},
		{
			"id": "1",
			"cellSize": 78271.5169640205,
			"pointOfOrigin_x": -20037508.3427892476,
			"pointOfOrigin_y": 20037508.3427892476,
			"tileWidth": 256,
			"tileHeight": 256,
			"matrixWidth": 2,
			"matrixHeight": 2
		},
		{
			"id": "2",
			"cellSize": 39135.7584820102,
			"pointOfOrigin_x": -20037508.3427892476,
			"pointOfOrigin_y": 20037508.3427892476,
			"tileWidth": 256,
			"tileHeight": 256,
			"matrixWidth": 4,
			"matrixHeight": 4
		}
	]
}`

func TestParse(t *testing.T) {
	tms, err := Parse([]byte(pm3857))
	require.NoError(t, err)

	assert.Equal(t, "PM", tms.ID)
	assert.Equal(t, "EPSG:3857", tms.CRS)
	require.Len(t, tms.Levels, 3)
	assert.Equal(t, 256, tms.Levels[0].TileWidth)
	assert.InDelta(t, 156543.0339280410, tms.Levels[0].Resolution, 1e-6)
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing id":     `{"crs":"EPSG:3857","tileMatrices":[{"id":"0","cellSize":1,"tileWidth":256,"tileHeight":256}]}`,
		"missing crs":    `{"id":"PM","tileMatrices":[{"id":"0","cellSize":1,"tileWidth":256,"tileHeight":256}]}`,
		"no levels":      `{"id":"PM","crs":"EPSG:3857","tileMatrices":[]}`,
		"bad resolution": `{"id":"PM","crs":"EPSG:3857","tileMatrices":[{"id":"0","cellSize":0,"tileWidth":256,"tileHeight":256}]}`,
	}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLevel(t *testing.T) {
	tms, err := Parse([]byte(pm3857))
	require.NoError(t, err)

	lv, ok := tms.Level("1")
	require.True(t, ok)
	assert.Equal(t, 2, lv.MatrixWidth)

	_, ok = tms.Level("19")
	assert.False(t, ok)
}

func TestBestLevel(t *testing.T) {
	tms, err := Parse([]byte(pm3857))
	require.NoError(t, err)

	// Exact match.
	assert.Equal(t, "1", tms.BestLevel(78271.5169640205).ID)

	// Between two levels: pick the finest level not finer than requested.
	assert.Equal(t, "1", tms.BestLevel(80000).ID)

	// Finer than the finest level: pick the finest available.
	assert.Equal(t, "2", tms.BestLevel(10).ID)

	// Coarser than the coarsest level: fall back to the coarsest.
	assert.Equal(t, "0", tms.BestLevel(1e7).ID)
}

func TestLoadFileUsesStemAsFallbackID(t *testing.T) {
	dir := t.TempDir()
	doc := `{"crs":"EPSG:4326","tileMatrices":[{"id":"0","cellSize":0.7,"tileWidth":256,"tileHeight":256,"matrixWidth":2,"matrixHeight":1}]}`
	path := filepath.Join(dir, "WGS84G.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	tms, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "WGS84G", tms.ID)
}

func TestLoadDirectorySkipsBadDescriptors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PM.json"), []byte(pm3857), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o600))

	book, err := LoadDirectory(dir, testutil.TestLogger(t))
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Contains(t, book, "PM")
}
