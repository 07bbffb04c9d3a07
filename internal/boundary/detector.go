// Package boundary detects farm field boundaries from Sentinel-2 imagery.
// The segmentation runs on the platform: a median composite is thresholded
// on NDVI, cleaned with a morphological opening and split into connected
// components that are vectorized into polygons.
package boundary

import (
	"context"
	"fmt"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

const (
	// Scale is the processing resolution in meters.
	Scale = 10

	morphologyRadius = 2
	maxComponentSize = 256

	DefaultBufferMeters  = 500
	DefaultMaxCloudCover = 30.0
	DefaultNDVIThreshold = 0.4
	DefaultMinFieldArea  = 0.1
	DefaultMaxFields     = 50
)

// Params are shared by point and region detection.
type Params struct {
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
	// MaxCloudCover is nil when unset; an explicit 0 keeps only clear scenes.
	MaxCloudCover *float64 `json:"max_cloud_cover,omitempty"`
	NDVIThreshold float64  `json:"ndvi_threshold"`
	// MinFieldArea is in hectares.
	MinFieldArea float64 `json:"min_field_area"`
}

func (p *Params) defaults() {
	if p.MaxCloudCover == nil {
		v := DefaultMaxCloudCover
		p.MaxCloudCover = &v
	}
	if p.NDVIThreshold == 0 {
		p.NDVIThreshold = DefaultNDVIThreshold
	}
	if p.MinFieldArea == 0 {
		p.MinFieldArea = DefaultMinFieldArea
	}
}

func (p Params) maxCloud() float64 {
	if p.MaxCloudCover == nil {
		return DefaultMaxCloudCover
	}
	return *p.MaxCloudCover
}

func (p Params) validate() error {
	if err := validate.DateRange(p.StartDate, p.EndDate); err != nil {
		return err
	}
	if err := validate.CloudCover(p.maxCloud()); err != nil {
		return err
	}
	if err := validate.Range("ndvi_threshold", p.NDVIThreshold, -1, 1); err != nil {
		return err
	}
	return validate.Range("min_field_area", p.MinFieldArea, 0, 10000)
}

// Detector runs boundary detection against the platform.
type Detector struct {
	platform earthengine.Platform
	exec     gateway.Executor
	searcher *imagery.Searcher
}

func NewDetector(p earthengine.Platform, exec gateway.Executor) *Detector {
	return &Detector{platform: p, exec: exec, searcher: imagery.NewSearcher(p)}
}

// composite builds the median Sentinel-2 composite over roi and reports
// how many scenes went into it. Zero scenes is a KindNoImagery error.
func (d *Detector) composite(ctx context.Context, roi *earthengine.Value, p Params) (*earthengine.Value, int, error) {
	coll := imagery.Collection(imagery.MustLookup(imagery.Sentinel2), imagery.Query{
		Geometry: roi,
		Start:    p.StartDate,
		End:      p.EndDate,
		MaxCloud: p.maxCloud(),
	})
	n, err := gateway.Do(ctx, d.exec, func(ctx context.Context) (int, error) {
		return d.searcher.Count(ctx, coll)
	})
	if err != nil {
		return nil, 0, err
	}
	if n == 0 {
		return nil, 0, apperr.New(apperr.KindNoImagery,
			"No cloud-free imagery found. Try increasing max_cloud_cover or expanding date range.")
	}
	return earthengine.Composite(coll, "median"), n, nil
}

// Segment thresholds NDVI of a composite, applies an opening with a
// 2-pixel circle and labels the connected components. It returns the NDVI
// image and the component image with its "labels" band.
func Segment(composite *earthengine.Value, threshold float64) (ndvi, components *earthengine.Value) {
	ndvi = vegetation.NDVI.Compute(composite)
	mask := earthengine.Binary("gt", ndvi, threshold)
	opened := earthengine.Focal("max", earthengine.Focal("min", mask, morphologyRadius, "pixels"), morphologyRadius, "pixels")
	components = earthengine.ConnectedComponents(opened, earthengine.SquareKernel(1, "pixels"), maxComponentSize)
	return ndvi, components
}

// withArea sets area_ha on every feature of a collection.
func withArea(features *earthengine.Value, property string, divisor float64) *earthengine.Value {
	f := earthengine.Ref("feature")
	area := earthengine.Area(earthengine.FeatureGeometry(f), 1)
	if divisor != 1 {
		area = earthengine.NumberDivide(area, divisor)
	}
	return earthengine.Map(features, "feature", earthengine.Set(f, property, area))
}

// Visualization is a rendered image link.
type Visualization struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// ImageryInfo describes the composite a detection used.
type ImageryInfo struct {
	Satellite     string             `json:"satellite"`
	DateRange     string             `json:"date_range"`
	ImagesUsed    int                `json:"images_used"`
	MaxCloudCover *assemble.Quantity `json:"max_cloud_cover,omitempty"`
	Resolution    assemble.Quantity  `json:"resolution"`
}

func imageryInfo(p Params, images int, withCloud bool) ImageryInfo {
	info := ImageryInfo{
		Satellite:  "Sentinel-2",
		DateRange:  fmt.Sprintf("%s to %s", p.StartDate, p.EndDate),
		ImagesUsed: images,
		Resolution: assemble.Quantity{Value: Scale, Unit: "meters"},
	}
	if withCloud {
		info.MaxCloudCover = &assemble.Quantity{Value: p.maxCloud(), Unit: "percentage"}
	}
	return info
}

// thumbnail renders expr as a PNG of maxDimension pixels over region.
func (d *Detector) thumbnail(expr, region *earthengine.Value, maxDimension int) gateway.Task[string] {
	return func(ctx context.Context) (string, error) {
		return d.platform.Thumbnail(ctx, earthengine.ClipToBounds(expr, region, maxDimension, 0), earthengine.FormatPNG)
	}
}

// outline paints features onto a black byte image.
func outline(features *earthengine.Value, width float64, color string) *earthengine.Value {
	painted := earthengine.Paint(earthengine.Byte(earthengine.ImageConstant(0)), features, 255, width)
	return earthengine.Visualize(painted, earthengine.VisParams{
		Min:     []float64{0},
		Max:     []float64{255},
		Palette: []string{"000000", color},
	})
}
