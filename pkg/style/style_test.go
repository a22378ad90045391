package style

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tileforge/tileserv/pkg/testutil"
)

const paletteStyle = `{
	"identifier": "dem-colours",
	"titles": ["Elevation colours"],
	"abstracts": ["Continuous colour ramp over elevation"],
	"legends": [{"format": "image/png", "url": "http://example.com/legend.png", "width": 200, "height": 60}],
	"palette": {
		"max_value": 4000,
		"rgb_continuous": true,
		"colours": [
			{"value": 0, "red": 0, "green": 100, "blue": 0, "alpha": 255},
			{"value": 4000, "red": 255, "green": 255, "blue": 255, "alpha": 255}
		]
	}
}`

const hillshadeStyle = `{
	"identifier": "hillshade",
	"titles": ["Hillshade"],
	"estompage": {"zenith": 45, "azimuth": 315, "z_factor": 1, "interpolation": "linear"}
}`

func TestParsePalette(t *testing.T) {
	s, err := Parse([]byte(paletteStyle), false)
	require.NoError(t, err)

	assert.Equal(t, "dem-colours", s.Identifier)
	require.NotNil(t, s.Palette)
	assert.False(t, s.Palette.Empty())
	assert.False(t, s.Identity())
	assert.True(t, s.UsableFor(1))
	assert.True(t, s.UsableFor(3))
}

func TestParseHillshade(t *testing.T) {
	s, err := Parse([]byte(hillshadeStyle), false)
	require.NoError(t, err)

	assert.True(t, s.IsHillshade())
	assert.False(t, s.IsSlope())
	assert.False(t, s.Identity())

	// Terrain treatments only apply to single-band data.
	assert.True(t, s.UsableFor(1))
	assert.False(t, s.UsableFor(3))
}

func TestParseMissingIdentifier(t *testing.T) {
	_, err := Parse([]byte(`{"titles":["x"]}`), false)
	assert.Error(t, err)
}

func TestParseMultipleTreatmentsRejected(t *testing.T) {
	doc := `{
		"identifier": "bad",
		"estompage": {"zenith": 45},
		"pente": {"algo": "H", "unit": "degree"}
	}`
	_, err := Parse([]byte(doc), false)
	assert.Error(t, err)
}

func TestIdentityStyle(t *testing.T) {
	s, err := Parse([]byte(`{"identifier": "normal"}`), false)
	require.NoError(t, err)

	assert.True(t, s.Identity())
	assert.Nil(t, s.Nodata())
	assert.Equal(t, 3, s.Channels(3))
	assert.Equal(t, 16, s.BitsPerSample(16))
}

func TestPaletteOutputFormat(t *testing.T) {
	s, err := Parse([]byte(paletteStyle), false)
	require.NoError(t, err)

	// A palette always renders 8-bit RGBA unless alpha is dropped.
	assert.Equal(t, 4, s.Channels(1))
	assert.Equal(t, 8, s.BitsPerSample(32))
	assert.Equal(t, []int{0, 100, 0, 255}, s.Nodata())

	s.Palette.NoAlpha = true
	assert.Equal(t, 3, s.Channels(1))
	assert.Equal(t, []int{0, 100, 0}, s.Nodata())
}

func TestTerrainOutputFormat(t *testing.T) {
	s, err := Parse([]byte(hillshadeStyle), false)
	require.NoError(t, err)

	assert.Equal(t, 1, s.Channels(1))
	assert.Equal(t, []int{0}, s.Nodata())
}

func TestInspireBroadcastRequirements(t *testing.T) {
	// Full metadata: broadcastable under inspire.
	s, err := Parse([]byte(paletteStyle), true)
	require.NoError(t, err)
	assert.True(t, s.UsableForBroadcast())

	// Missing abstract and legend: loads fine but is not broadcastable.
	s, err = Parse([]byte(hillshadeStyle), true)
	require.NoError(t, err)
	assert.False(t, s.UsableForBroadcast())

	// Outside inspire mode the same style is broadcastable.
	s, err = Parse([]byte(hillshadeStyle), false)
	require.NoError(t, err)
	assert.True(t, s.UsableForBroadcast())
}

func TestLoadFileSetsIDFromStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem-colours.json")
	require.NoError(t, os.WriteFile(path, []byte(paletteStyle), 0o600))

	s, err := LoadFile(path, false)
	require.NoError(t, err)
	assert.Equal(t, "dem-colours", s.ID)
}

func TestLoadDirectorySkipsBadDescriptors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(paletteStyle), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{`), 0o600))

	book, err := LoadDirectory(dir, false, testutil.TestLogger(t))
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Contains(t, book, "good")
}
