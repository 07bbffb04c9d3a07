package vegetation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/rs/zerolog/log"
)

// CloudThreshold is the cloud cover percentage at or above which the radar
// backup is used.
const CloudThreshold = 30.0

// Strategy is the closed set of index strategies: Optical or Radar.
type Strategy interface {
	Name() string
	IndexName() string
	DataQuality() string
	Palette() []string
	isStrategy()
}

// Optical computes NDVI from the scene's own red and near-infrared bands.
type Optical struct{}

// Radar computes RVI from a Sentinel-1 scene near the optical acquisition.
type Radar struct{}

func (Optical) Name() string        { return "optical" }
func (Optical) IndexName() string   { return "NDVI (Optical)" }
func (Optical) DataQuality() string { return "High-accuracy optical" }
func (Optical) Palette() []string   { return OpticalPalette }
func (Optical) isStrategy()         {}

func (Radar) Name() string        { return "radar" }
func (Radar) IndexName() string   { return "RVI (SAR)" }
func (Radar) DataQuality() string { return "All-weather radar" }
func (Radar) Palette() []string   { return RadarPalette }
func (Radar) isStrategy()         {}

// Decision is the outcome of Select.
type Decision struct {
	Strategy   Strategy
	Reason     string
	CloudCover float64
	Threshold  float64
	Forced     bool
}

// Select picks the radar backup when forced or when cloud cover is at or
// above CloudThreshold, and the optical index otherwise.
func Select(cloudCover float64, force bool) Decision {
	d := Decision{CloudCover: cloudCover, Threshold: CloudThreshold, Forced: force}
	switch {
	case force:
		d.Strategy = Radar{}
		d.Reason = "Radar backup forced by request"
	case cloudCover >= CloudThreshold:
		d.Strategy = Radar{}
		d.Reason = "Cloud cover >= 30% - using radar backup"
	default:
		d.Strategy = Optical{}
		d.Reason = "Cloud cover < 30% - using optical primary"
	}
	return d
}

// UsesRadar reports whether the decision selected the radar backup.
func (d Decision) UsesRadar() bool {
	_, ok := d.Strategy.(Radar)
	return ok
}

// StrategyInfo is the JSON form of a Decision.
type StrategyInfo struct {
	SelectedIndex      string  `json:"selected_index"`
	Strategy           string  `json:"strategy"`
	Reason             string  `json:"reason"`
	CloudCover         float64 `json:"cloud_cover"`
	CloudThreshold     float64 `json:"cloud_threshold"`
	DataQuality        string  `json:"data_quality"`
	Forced             bool    `json:"forced,omitempty"`
	SARAcquisitionDate string  `json:"sar_acquisition_date,omitempty"`
	RescaleBounds      *Bounds `json:"rescale_bounds,omitempty"`
}

// Info renders d for responses.
func (d Decision) Info() StrategyInfo {
	return StrategyInfo{
		SelectedIndex:  d.Strategy.IndexName(),
		Strategy:       d.Strategy.Name(),
		Reason:         d.Reason,
		CloudCover:     d.CloudCover,
		CloudThreshold: d.Threshold,
		DataQuality:    d.Strategy.DataQuality(),
		Forced:         d.Forced,
	}
}

// Bounds are the percentile bounds used to rescale a radar index.
type Bounds struct {
	Low  float64 `json:"p2"`
	High float64 `json:"p98"`
}

// Summary holds the region statistics of a radar index.
type Summary struct {
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// Layer is a rendered index ready for visualization.
type Layer struct {
	// Image is a single band image stretched to [0, 1].
	Image   *earthengine.Value
	Palette []string
	// Radar-only metadata. Stats is nil when the region had no valid
	// RVI pixels.
	SARDate       string
	RescaleBounds *Bounds
	Stats         *Summary
}

// OpticalLayer builds the optical NDVI layer for a scene of catalog c.
// scene must already carry surface reflectance for Landsat sources.
func OpticalLayer(c imagery.Catalog, scene *earthengine.Value) Layer {
	ndvi := earthengine.NormalizedDifference(scene, c.NIR, c.Red)
	return Layer{Image: Stretch(ndvi), Palette: OpticalPalette}
}

// RadarBuilder resolves the radar backup layer against the platform.
type RadarBuilder struct {
	searcher *imagery.Searcher
	platform earthengine.Platform
}

func NewRadarBuilder(p earthengine.Platform) *RadarBuilder {
	return &RadarBuilder{searcher: imagery.NewSearcher(p), platform: p}
}

const (
	despeckleRadius = 50
	rviScale        = 10
)

// Build finds the most recent qualifying Sentinel-1 scene over geometry in
// the date range and returns its RVI layer. Zero scenes is a
// KindNoImagery error; there is no further fallback.
func (b *RadarBuilder) Build(ctx context.Context, geometry *earthengine.Value, start, end string) (Layer, error) {
	coll := imagery.RadarCollection(geometry, start, end)
	scenes, err := b.searcher.List(ctx, imagery.MustLookup(imagery.Sentinel1), earthengine.Limit(coll, 1))
	if err != nil {
		return Layer{}, err
	}
	if len(scenes) == 0 {
		return Layer{}, errNoRadar
	}
	return b.layer(ctx, scenes[0], geometry)
}

// BuildNear uses the Sentinel-1 scene acquired closest to date, at most
// window away. Ties go to the later scene.
func (b *RadarBuilder) BuildNear(ctx context.Context, geometry *earthengine.Value, date time.Time, window time.Duration) (Layer, error) {
	start := date.Add(-window).Format(dateLayout)
	end := date.Add(window + 24*time.Hour).Format(dateLayout)
	scenes, err := b.searcher.List(ctx, imagery.MustLookup(imagery.Sentinel1), imagery.RadarCollection(geometry, start, end))
	if err != nil {
		return Layer{}, err
	}
	sar, ok := nearest(scenes, date)
	if !ok {
		return Layer{}, errNoRadar
	}
	return b.layer(ctx, sar, geometry)
}

const dateLayout = "2006-01-02"

var errNoRadar = apperr.New(apperr.KindNoImagery, "No Sentinel-1 SAR images found. Cannot generate RVI backup.")

// nearest picks the dated scene closest to date. scenes are ordered most
// recent first, so the first of equally distant scenes is the later one.
func nearest(scenes []imagery.Scene, date time.Time) (imagery.Scene, bool) {
	var (
		best  imagery.Scene
		gap   time.Duration
		found bool
	)
	for _, sc := range scenes {
		t, err := time.Parse(dateLayout, sc.Date)
		if err != nil {
			continue
		}
		d := t.Sub(date).Abs()
		if !found || d < gap {
			best, gap, found = sc, d, true
		}
	}
	return best, found
}

func (b *RadarBuilder) layer(ctx context.Context, sar imagery.Scene, geometry *earthengine.Value) (Layer, error) {
	rvi := RVI(earthengine.LoadImage(sar.ID))
	bounds, summary, err := b.reduce(ctx, rvi, geometry)
	if err != nil {
		return Layer{}, err
	}

	scaled := earthengine.Clamp(earthengine.UnitScale(rvi, bounds.Low, bounds.High), 0, 1)
	log.Debug().
		Str("sceneId", sar.ID).
		Float64("p2", bounds.Low).
		Float64("p98", bounds.High).
		Msg("Radar backup layer built")
	return Layer{Image: scaled, Palette: RadarPalette, SARDate: sar.Date, RescaleBounds: &bounds, Stats: summary}, nil
}

// RVI despeckles a dual-polarisation GRD scene, converts dB to linear
// power and computes 4*VH / (VV + VH).
func RVI(scene *earthengine.Value) *earthengine.Value {
	smooth := earthengine.Focal("mean", scene, despeckleRadius, "meters")
	linear := func(band string) *earthengine.Value {
		db := earthengine.Select(smooth, band)
		return earthengine.Binary("pow", earthengine.ImageConstant(10.0), earthengine.Binary("divide", db, 10.0))
	}
	vv, vh := linear("VV"), linear("VH")
	rvi := earthengine.Binary("divide", earthengine.Binary("multiply", vh, 4.0), earthengine.Binary("add", vv, vh))
	return earthengine.Rename(rvi, "RVI")
}

// reduce computes the RVI statistics and its 2nd and 98th percentiles in
// one pass.
func (b *RadarBuilder) reduce(ctx context.Context, rvi, geometry *earthengine.Value) (Bounds, *Summary, error) {
	expr := earthengine.ReduceRegion(rvi, earthengine.ReduceRegionParams{
		Reducer:   earthengine.CombineReducers(earthengine.StatsReducer(), earthengine.PercentileReducer(2, 98)),
		Geometry:  geometry,
		Scale:     rviScale,
		MaxPixels: 1e9,
	})
	raw, err := b.platform.Compute(ctx, expr)
	if err != nil {
		return Bounds{}, nil, fmt.Errorf("radar statistics: %w", err)
	}
	return decodeRadar(raw)
}

func decodeRadar(raw json.RawMessage) (Bounds, *Summary, error) {
	d, err := earthengine.DecodeDictionary(raw)
	if err != nil {
		return Bounds{}, nil, err
	}

	var summary *Summary
	if mean, ok := earthengine.Float(d, "RVI_mean"); ok {
		summary = &Summary{Mean: mean}
		summary.Median, _ = earthengine.Float(d, "RVI_median")
		summary.StdDev, _ = earthengine.Float(d, "RVI_stdDev")
		summary.Min, _ = earthengine.Float(d, "RVI_min")
		summary.Max, _ = earthengine.Float(d, "RVI_max")
	}

	lo, okLo := earthengine.Float(d, "RVI_p2")
	hi, okHi := earthengine.Float(d, "RVI_p98")
	if !okLo || !okHi || hi <= lo || math.IsInf(hi-lo, 0) {
		// A flat or empty region cannot be rescaled adaptively; RVI's
		// theoretical range is used instead.
		return Bounds{Low: 0, High: 1}, summary, nil
	}
	return Bounds{Low: lo, High: hi}, summary, nil
}
