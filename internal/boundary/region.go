package boundary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// RegionRequest asks for every field inside a bounding box.
type RegionRequest struct {
	North     float64 `json:"north"`
	South     float64 `json:"south"`
	East      float64 `json:"east"`
	West      float64 `json:"west"`
	MaxFields int     `json:"max_fields"`
	Params
}

func (r *RegionRequest) normalize() (geo.Bounds, error) {
	if r.MaxFields == 0 {
		r.MaxFields = DefaultMaxFields
	}
	r.defaults()
	b, err := geo.NewBounds(r.North, r.South, r.East, r.West)
	if err != nil {
		return geo.Bounds{}, err
	}
	for _, corner := range [][2]float64{{r.North, r.East}, {r.South, r.West}} {
		if err := validate.Coordinates(corner[0], corner[1]); err != nil {
			return geo.Bounds{}, err
		}
	}
	if err := validate.Range("max_fields", float64(r.MaxFields), 1, 500); err != nil {
		return geo.Bounds{}, err
	}
	return b, r.validate()
}

// Validate applies the defaults and checks r without contacting the
// platform.
func (r *RegionRequest) Validate() error {
	_, err := r.normalize()
	return err
}

type RegionSummary struct {
	TotalFields int               `json:"total_fields"`
	TotalArea   assemble.Quantity `json:"total_area"`
	ROIBounds   geo.Bounds        `json:"roi_bounds"`
}

type RegionParameters struct {
	NDVIThreshold     float64 `json:"ndvi_threshold"`
	MinFieldAreaHa    float64 `json:"min_field_area_ha"`
	MaxFieldsReturned int     `json:"max_fields_returned"`
}

// RegionResult lists the fields found in a bounding box, largest first.
type RegionResult struct {
	Boundaries    *geojson.FeatureCollection `json:"boundaries"`
	Summary       RegionSummary              `json:"summary"`
	ImageryInfo   ImageryInfo                `json:"imagery_info"`
	Parameters    RegionParameters           `json:"parameters"`
	Visualization Visualization              `json:"visualization"`
}

// DetectInRegion vectorizes every component in the box, keeps those of at
// least MinFieldArea hectares and returns up to MaxFields of them sorted
// by area descending.
func (d *Detector) DetectInRegion(ctx context.Context, req RegionRequest) (*RegionResult, error) {
	bounds, err := req.normalize()
	if err != nil {
		return nil, err
	}
	roi := earthengine.Rectangle(bounds)

	composite, images, err := d.composite(ctx, roi, req.Params)
	if err != nil {
		return nil, err
	}
	_, components := Segment(composite, req.NDVIThreshold)

	vectors := earthengine.ReduceToVectors(earthengine.Select(components, "labels"), earthengine.VectorizeParams{
		Geometry:      roi,
		Scale:         Scale,
		LabelProperty: "field_id",
		MaxPixels:     1e9,
	})
	fields := earthengine.FilterCollection(withArea(vectors, "area_ha", 10000), earthengine.FilterGreaterOrEqual("area_ha", req.MinFieldArea))
	fields = earthengine.Limit(earthengine.Sort(fields, "area_ha", false), req.MaxFields)

	fieldsFuture := gateway.Submit(ctx, d.exec, func(ctx context.Context) (json.RawMessage, error) {
		return d.platform.Compute(ctx, fields)
	})
	outlineFuture := gateway.Submit(ctx, d.exec, d.thumbnail(outline(fields, 2, "00FF00"), roi, 1024))

	raw, err := fieldsFuture.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorize fields: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemotePlatform, "unexpected field collection", err)
	}
	url, err := outlineFuture.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("field outline: %w", err)
	}

	var total float64
	for _, f := range fc.Features {
		total += f.Properties.MustFloat64("area_ha", 0)
	}
	log.Info().
		Int("fields", len(fc.Features)).
		Float64("totalAreaHa", total).
		Msg("Region boundaries detected")

	return &RegionResult{
		Boundaries: fc,
		Summary: RegionSummary{
			TotalFields: len(fc.Features),
			TotalArea:   assemble.Quantity{Value: assemble.Round(total, 2), Unit: "hectares"},
			ROIBounds:   bounds,
		},
		ImageryInfo: imageryInfo(req.Params, images, false),
		Parameters: RegionParameters{
			NDVIThreshold:     req.NDVIThreshold,
			MinFieldAreaHa:    req.MinFieldArea,
			MaxFieldsReturned: req.MaxFields,
		},
		Visualization: Visualization{URL: url, Description: "All detected field boundaries (green)"},
	}, nil
}
