// Package vegetation holds the vegetation and moisture index definitions,
// their interpretation scales and the cloud-adaptive choice between an
// optical index and a radar backup.
package vegetation

import (
	"strings"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
)

// Kind is a normalized-difference index computed by the batch path.
type Kind string

const (
	NDVI Kind = "NDVI"
	NDMI Kind = "NDMI"
)

// Spec describes how an index is computed from Sentinel-2 bands.
type Spec struct {
	Kind  Kind
	Bands [2]string
	Scale float64
	Range string
}

var specs = map[Kind]Spec{
	NDVI: {Kind: NDVI, Bands: [2]string{"B8", "B4"}, Scale: 10, Range: "-1 to 1"},
	NDMI: {Kind: NDMI, Bands: [2]string{"B8", "B11"}, Scale: 20, Range: "-1 to 1"},
}

// ParseKind accepts "ndvi" or "ndmi" in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := specs[k]; !ok {
		return "", apperr.Invalidf("unsupported index %q", s)
	}
	return k, nil
}

// Spec returns the band definition of k.
func (k Kind) Spec() Spec { return specs[k] }

// Lower returns the lowercase name used in JSON keys.
func (k Kind) Lower() string { return strings.ToLower(string(k)) }

// Compute returns the single-band index image named after k.
func (k Kind) Compute(image *earthengine.Value) *earthengine.Value {
	s := k.Spec()
	return earthengine.Rename(earthengine.NormalizedDifference(image, s.Bands[0], s.Bands[1]), string(k))
}

// Interpret maps a mean index value to its category.
func (k Kind) Interpret(mean float64) string {
	if k == NDMI {
		return InterpretMoisture(mean)
	}
	return InterpretHealth(mean)
}

// InterpretHealth maps mean NDVI to a vegetation health category.
func InterpretHealth(mean float64) string {
	switch {
	case mean > 0.6:
		return "Very healthy vegetation"
	case mean > 0.4:
		return "Healthy vegetation"
	case mean > 0.2:
		return "Moderate vegetation"
	case mean > 0:
		return "Sparse vegetation"
	default:
		return "No vegetation / Water / Bare soil"
	}
}

// InterpretMoisture maps mean NDMI to a moisture category.
func InterpretMoisture(mean float64) string {
	switch {
	case mean > 0.4:
		return "Very high moisture / Water bodies"
	case mean > 0.2:
		return "High moisture content"
	case mean > 0:
		return "Moderate moisture"
	case mean > -0.2:
		return "Low moisture / Dry vegetation"
	default:
		return "Very low moisture / Bare soil"
	}
}

// RVIRange is the nominal range of the radar vegetation index.
const RVIRange = "0 to 1"

// InterpretRVI maps mean RVI to a vegetation category.
func InterpretRVI(mean float64) string {
	switch {
	case mean > 0.6:
		return "Dense vegetation / Healthy crops"
	case mean > 0.4:
		return "Moderate vegetation / Growing crops"
	case mean > 0.2:
		return "Sparse vegetation / Young crops"
	case mean > 0.1:
		return "Bare soil / No vegetation"
	default:
		return "Water bodies / Smooth surfaces"
	}
}

// ScaleEntry is one band of an interpretation scale.
type ScaleEntry struct {
	Range    string `json:"range"`
	Category string `json:"category"`
}

// InterpretationScale returns the breakpoints of k for API responses.
func (k Kind) InterpretationScale() []ScaleEntry {
	if k == NDMI {
		return []ScaleEntry{
			{"> 0.4", "Very high moisture / Water bodies"},
			{"0.2 to 0.4", "High moisture content"},
			{"0 to 0.2", "Moderate moisture"},
			{"-0.2 to 0", "Low moisture / Dry vegetation"},
			{"<= -0.2", "Very low moisture / Bare soil"},
		}
	}
	return []ScaleEntry{
		{"> 0.6", "Very healthy vegetation"},
		{"0.4 to 0.6", "Healthy vegetation"},
		{"0.2 to 0.4", "Moderate vegetation"},
		{"0 to 0.2", "Sparse vegetation"},
		{"<= 0", "No vegetation / Water / Bare soil"},
	}
}

// Palettes.
var (
	// BatchPalette colors per-image index thumbnails from water to dense canopy.
	BatchPalette = []string{"0000FF", "8B4513", "FFFF00", "ADFF2F", "00FF00", "006400"}
	// OpticalPalette is the discrete zone palette of the optical strategy.
	OpticalPalette = []string{"000000", "8B4513", "FFFF00", "00FF00", "006400"}
	// RadarPalette is the palette of the radar backup strategy.
	RadarPalette = []string{"000080", "8B4513", "FFFF00", "00FF00", "FF0000"}
)

// Stretch maps an index image from [-0.2, 0.9] onto [0, 1].
func Stretch(index *earthengine.Value) *earthengine.Value {
	return earthengine.Clamp(earthengine.UnitScale(index, -0.2, 0.9), 0, 1)
}
