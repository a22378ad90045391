// Package style provides the style descriptor type held by the style book.
// A style describes how a layer's raw samples are rendered: an optional
// value-to-colour palette, or a terrain treatment (hillshade, slope or
// aspect). Descriptors are parsed from JSON files at startup or reload and
// are immutable afterwards.
package style

import (
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/pkg/errors"
)

// Colour is one palette entry mapping a sample value to an RGBA colour.
type Colour struct {
	Value float64 `json:"value"`
	Red   uint8   `json:"red"`
	Green uint8   `json:"green"`
	Blue  uint8   `json:"blue"`
	Alpha uint8   `json:"alpha"`
}

// Palette is a value-to-colour lookup table.
type Palette struct {
	MaxValue        float64  `json:"max_value"`
	RGBContinuous   bool     `json:"rgb_continuous"`
	AlphaContinuous bool     `json:"alpha_continuous"`
	NoAlpha         bool     `json:"no_alpha"`
	Colours         []Colour `json:"colours"`
}

// Empty reports whether the palette defines no colour mapping.
func (p *Palette) Empty() bool {
	return p == nil || len(p.Colours) == 0
}

// Hillshade describes a relief-shading treatment.
type Hillshade struct {
	Zenith        float64 `json:"zenith"`
	Azimuth       float64 `json:"azimuth"`
	ZFactor       float64 `json:"z_factor"`
	Interpolation string  `json:"interpolation"`
	SlopeNodata   int     `json:"slope_nodata"`
	SlopeMax      int     `json:"slope_max"`
}

// Slope describes a slope-computation treatment.
type Slope struct {
	Algo          string `json:"algo"`
	Unit          string `json:"unit"`
	Interpolation string `json:"interpolation"`
	ImageNodata   int    `json:"image_nodata"`
	SlopeNodata   int    `json:"slope_nodata"`
	SlopeMax      int    `json:"slope_max"`
}

// Aspect describes a slope-orientation treatment.
type Aspect struct {
	Algo     string  `json:"algo"`
	MinSlope float64 `json:"min_slope"`
}

// LegendURL points at a rendered legend image for capability documents.
type LegendURL struct {
	Format              string  `json:"format"`
	URL                 string  `json:"url"`
	Width               int     `json:"width"`
	Height              int     `json:"height"`
	MinScaleDenominator float64 `json:"min_scale_denominator"`
	MaxScaleDenominator float64 `json:"max_scale_denominator"`
}

// Style is an immutable rendering descriptor. The book owns it; request
// handlers hold non-owning pointers.
type Style struct {
	// ID is the internal identifier: the descriptor file stem, as used in
	// layer descriptors.
	ID string `json:"-"`
	// Identifier is the public WMS/WMTS style identifier.
	Identifier string      `json:"identifier"`
	Titles     []string    `json:"titles"`
	Abstracts  []string    `json:"abstracts"`
	Keywords   []string    `json:"keywords"`
	Legends    []LegendURL `json:"legends"`
	Palette    *Palette    `json:"palette"`
	Hillshade  *Hillshade  `json:"estompage"`
	Slope      *Slope      `json:"pente"`
	Aspect     *Aspect     `json:"aspect"`

	// usableForBroadcast records whether the style satisfied the metadata
	// requirements at load time.
	usableForBroadcast bool
}

// UsableForBroadcast reports whether the style can appear in capability
// documents.
func (s *Style) UsableForBroadcast() bool {
	return s.usableForBroadcast
}

// IsHillshade reports whether the style applies relief shading.
func (s *Style) IsHillshade() bool {
	return s.Hillshade != nil
}

// IsSlope reports whether the style computes a slope.
func (s *Style) IsSlope() bool {
	return s.Slope != nil
}

// IsAspect reports whether the style computes a slope orientation.
func (s *Style) IsAspect() bool {
	return s.Aspect != nil
}

// UsableFor reports whether the style can be applied to data with the given
// samples per pixel. Terrain treatments need single-band data.
func (s *Style) UsableFor(samplesPerPixel int) bool {
	if s.IsHillshade() || s.IsSlope() || s.IsAspect() {
		return samplesPerPixel == 1
	}
	return true
}

// Channels returns the channel count after the style is applied to data
// with origChannels channels.
func (s *Style) Channels(origChannels int) int {
	if !s.Palette.Empty() {
		if s.Palette.NoAlpha {
			return 3
		}
		return 4
	}
	if s.IsHillshade() || s.IsSlope() || s.IsAspect() {
		return 1
	}
	return origChannels
}

// BitsPerSample returns the per-channel bit depth after the style is
// applied.
func (s *Style) BitsPerSample(origBitsPerSample int) int {
	if !s.Palette.Empty() {
		return 8
	}
	return origBitsPerSample
}

// Nodata returns the nodata pixel after the style is applied, or nil when
// the style leaves the source nodata untouched.
func (s *Style) Nodata() []int {
	if !s.Palette.Empty() {
		c := s.Palette.Colours[0]
		if s.Palette.NoAlpha {
			return []int{int(c.Red), int(c.Green), int(c.Blue)}
		}
		return []int{int(c.Red), int(c.Green), int(c.Blue), int(c.Alpha)}
	}
	if s.IsHillshade() || s.IsSlope() || s.IsAspect() {
		return []int{0}
	}
	return nil
}

// Identity reports whether the style changes nothing and tiles can be
// served as stored.
func (s *Style) Identity() bool {
	if !s.Palette.Empty() {
		return false
	}
	return !s.IsHillshade() && !s.IsSlope() && !s.IsAspect()
}

// Validate checks structural invariants after parsing. In inspire mode a
// broadcastable style must carry a title, an abstract and a legend.
func (s *Style) Validate(inspire bool) error {
	if s.Identifier == "" {
		return errors.Newf(errors.ErrorTypeValidation, "style %q is missing a public identifier", s.ID)
	}

	treatments := 0
	if s.IsHillshade() {
		treatments++
	}
	if s.IsSlope() {
		treatments++
	}
	if s.IsAspect() {
		treatments++
	}
	if treatments > 1 {
		return errors.Newf(errors.ErrorTypeValidation, "style %q defines more than one terrain treatment", s.ID)
	}

	s.usableForBroadcast = true
	if inspire {
		if len(s.Titles) == 0 || len(s.Abstracts) == 0 || len(s.Legends) == 0 {
			s.usableForBroadcast = false
		}
	}

	return nil
}

// Parse decodes and validates one descriptor document.
func Parse(data []byte, inspire bool) (*Style, error) {
	var s Style
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "failed to parse style descriptor")
	}
	if err := s.Validate(inspire); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads and parses one descriptor file. The internal ID is the file
// stem.
func LoadFile(path string, inspire bool) (*Style, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured descriptor directory
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read style descriptor")
	}

	s, err := Parse(data, inspire)
	if err != nil {
		return nil, err
	}
	s.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// LoadDirectory parses every *.json descriptor in dir and returns the
// mapping a book reload expects. Unparseable descriptors are skipped with a
// warning so one bad file cannot take down a reload.
func LoadDirectory(dir string, inspire bool, logger *zap.Logger) (map[string]*Style, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to scan style directory")
	}

	book := make(map[string]*Style, len(paths))
	for _, path := range paths {
		s, err := LoadFile(path, inspire)
		if err != nil {
			logger.Warn("skipping style descriptor",
				zap.String("path", path), zap.Error(err))
			continue
		}
		book[s.ID] = s
	}
	return book, nil
}
