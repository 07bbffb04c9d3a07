package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// PointRequest asks for the field containing a point. Zero numeric
// fields select the package defaults.
type PointRequest struct {
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	BufferMeters float64 `json:"buffer_distance"`
	Params
}

func (r *PointRequest) normalize() error {
	if r.BufferMeters == 0 {
		r.BufferMeters = DefaultBufferMeters
	}
	r.defaults()
	if err := validate.Coordinates(r.Latitude, r.Longitude); err != nil {
		return err
	}
	if err := validate.Range("buffer_distance", r.BufferMeters, 50, 5000); err != nil {
		return err
	}
	return r.validate()
}

type PointInput struct {
	Latitude       float64           `json:"latitude"`
	Longitude      float64           `json:"longitude"`
	BufferDistance assemble.Quantity `json:"buffer_distance"`
}

type Metric struct {
	Value          float64 `json:"value"`
	Interpretation string  `json:"interpretation"`
}

type VegetationMetrics struct {
	MeanNDVI          Metric  `json:"mean_ndvi"`
	NDVIUniformity    Metric  `json:"ndvi_uniformity"`
	NDVIThresholdUsed float64 `json:"ndvi_threshold_used"`
}

type Algorithm struct {
	Steps      []string       `json:"steps"`
	Parameters map[string]any `json:"parameters"`
}

// PointResult is the field found at a point.
type PointResult struct {
	Boundary          *geojson.Feature         `json:"boundary"`
	Input             PointInput               `json:"input"`
	ImageryInfo       ImageryInfo              `json:"imagery_info"`
	VegetationMetrics VegetationMetrics        `json:"vegetation_metrics"`
	Visualizations    map[string]Visualization `json:"visualizations"`
	Algorithm         Algorithm                `json:"algorithm"`

	AreaHa     float64 `json:"-"`
	Confidence float64 `json:"-"`
}

var pointSteps = []string{
	"1. Create buffer around input point",
	"2. Load cloud-free Sentinel-2 composite",
	"3. Calculate NDVI vegetation index",
	"4. Apply threshold to identify crops",
	"5. Morphological operations (opening)",
	"6. Connected component labeling",
	"7. Extract field containing point",
	"8. Vectorize to GeoJSON polygon",
}

// fieldSummary is the single computation returning the detected polygon,
// its area and NDVI statistics.
type fieldSummary struct {
	Geometry json.RawMessage `json:"geometry"`
	AreaM2   float64         `json:"area_m2"`
	Stats    map[string]any  `json:"stats"`
}

// DetectAtPoint finds the vegetated field containing the requested point.
// It fails with KindNoImagery when no composite can be built and with
// KindNoFieldAtPoint when the point is outside every detected component.
func (d *Detector) DetectAtPoint(ctx context.Context, req PointRequest) (*PointResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	start := time.Now()

	pt, err := geo.NewPoint(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}
	point := earthengine.Point(pt)
	roi := earthengine.Buffer(point, req.BufferMeters)

	composite, images, err := d.composite(ctx, roi, req.Params)
	if err != nil {
		return nil, err
	}
	ndvi, components := Segment(composite, req.NDVIThreshold)

	label, err := d.labelAt(ctx, components, point)
	if err != nil {
		return nil, err
	}

	target := earthengine.Binary("eq", earthengine.Select(components, "labels"), label)
	vectors := earthengine.ReduceToVectors(earthengine.UpdateMask(target, target), earthengine.VectorizeParams{
		Geometry:      roi,
		Scale:         Scale,
		LabelProperty: "field",
		MaxPixels:     1e8,
	})
	largest := earthengine.First(earthengine.Sort(withArea(vectors, "area_m2", 1), "area_m2", false))
	field := earthengine.FeatureGeometry(largest)

	summaryExpr := earthengine.Dict(map[string]any{
		"geometry": field,
		"area_m2":  earthengine.Area(field, 1),
		"stats": earthengine.ReduceRegion(ndvi, earthengine.ReduceRegionParams{
			Reducer:   earthengine.CombineReducers(earthengine.Reducer("mean"), earthengine.Reducer("stdDev")),
			Geometry:  field,
			Scale:     Scale,
			MaxPixels: 1e8,
		}),
	})
	summary := gateway.Submit(ctx, d.exec, func(ctx context.Context) (json.RawMessage, error) {
		return d.platform.Compute(ctx, summaryExpr)
	})

	rgb := earthengine.Visualize(earthengine.Select(composite, "B4", "B3", "B2"), earthengine.VisParams{Min: []float64{0}, Max: []float64{3000}})
	ndviVis := earthengine.Visualize(ndvi, earthengine.VisParams{Min: []float64{-0.2}, Max: []float64{0.9}, Palette: vegetation.BatchPalette})
	fieldOutline := outline(earthengine.NewFeatureCollection(earthengine.Array(largest)), 3, "FF0000")
	urls, err := gateway.Gather(ctx, d.exec, []gateway.Task[string]{
		d.thumbnail(rgb, field, 512),
		d.thumbnail(ndviVis, field, 512),
		d.thumbnail(fieldOutline, field, 512),
	}, gateway.GatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("boundary visualizations: %w", err)
	}

	raw, err := summary.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("boundary summary: %w", err)
	}
	var fs fieldSummary
	if err := json.Unmarshal(raw, &fs); err != nil {
		return nil, apperr.Wrap(apperr.KindRemotePlatform, "unexpected boundary summary", err)
	}
	geometry, err := geojson.UnmarshalGeometry(fs.Geometry)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemotePlatform, "unexpected boundary geometry", err)
	}
	if geometry.Geometry() == nil {
		return nil, apperr.New(apperr.KindRemotePlatform, "boundary geometry missing from platform result")
	}

	areaHa := fs.AreaM2 / 10000
	if areaHa < req.MinFieldArea {
		log.Warn().
			Float64("areaHa", areaHa).
			Float64("minFieldArea", req.MinFieldArea).
			Msg("Detected field is below minimum area")
	}
	mean, _ := earthengine.Float(fs.Stats, "NDVI_mean")
	std, _ := earthengine.Float(fs.Stats, "NDVI_stdDev")
	confidence := Confidence(mean, std, areaHa)

	feature := geojson.NewFeature(geometry.Geometry())
	feature.Properties["area"] = assemble.Hectares(fs.AreaM2)
	feature.Properties["confidence_score"] = Metric{Value: assemble.Round(confidence, 3), Interpretation: InterpretConfidence(confidence)}
	feature.Properties["detection_method"] = "NDVI-based segmentation"
	feature.Properties["data_source"] = "Sentinel-2"
	feature.Properties["crs"] = geo.DefaultCRS

	log.Info().
		Float64("lat", req.Latitude).
		Float64("lon", req.Longitude).
		Float64("areaHa", areaHa).
		Float64("confidence", confidence).
		Dur("duration", time.Since(start)).
		Msg("Boundary detected")

	return &PointResult{
		Boundary: feature,
		Input: PointInput{
			Latitude:       req.Latitude,
			Longitude:      req.Longitude,
			BufferDistance: assemble.Quantity{Value: req.BufferMeters, Unit: "meters"},
		},
		ImageryInfo: imageryInfo(req.Params, images, true),
		VegetationMetrics: VegetationMetrics{
			MeanNDVI:          Metric{Value: assemble.Round(mean, 3), Interpretation: vegetation.InterpretHealth(mean)},
			NDVIUniformity:    Metric{Value: assemble.Round(std, 3), Interpretation: InterpretUniformity(std)},
			NDVIThresholdUsed: req.NDVIThreshold,
		},
		Visualizations: map[string]Visualization{
			"natural_color":    {URL: urls[0].Value, Description: "Sentinel-2 natural color composite"},
			"ndvi":             {URL: urls[1].Value, Description: "NDVI vegetation index"},
			"boundary_outline": {URL: urls[2].Value, Description: "Detected field boundary"},
		},
		Algorithm: Algorithm{
			Steps: pointSteps,
			Parameters: map[string]any{
				"ndvi_threshold":    req.NDVIThreshold,
				"min_field_area_ha": req.MinFieldArea,
				"morphology_kernel": "2-pixel circle",
				"connection_type":   "4-connected",
			},
		},
		AreaHa:     areaHa,
		Confidence: confidence,
	}, nil
}

// labelAt samples the component label under point.
func (d *Detector) labelAt(ctx context.Context, components, point *earthengine.Value) (float64, error) {
	sample := earthengine.ReduceRegion(components, earthengine.ReduceRegionParams{
		Reducer:  earthengine.Reducer("first"),
		Geometry: point,
		Scale:    Scale,
	})
	raw, err := gateway.Do(ctx, d.exec, func(ctx context.Context) (json.RawMessage, error) {
		return d.platform.Compute(ctx, sample)
	})
	if err != nil {
		return 0, fmt.Errorf("sample field label: %w", err)
	}
	values, err := earthengine.DecodeDictionary(raw)
	if err != nil {
		return 0, err
	}
	label, ok := earthengine.Float(values, "labels")
	if !ok {
		return 0, apperr.New(apperr.KindNoFieldAtPoint,
			"No agricultural field detected at this point. The point may be in a non-vegetated area; try different coordinates or a lower NDVI threshold.")
	}
	return label, nil
}
