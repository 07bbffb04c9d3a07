package farm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/validate"
)

const (
	sceneMaxCloud          = 20
	sceneDefaultDimensions = "512x512"
	sceneDefaultScale      = 30
	sceneDefaultDays       = 30
)

// SceneRequest asks for the least cloudy scene around a point.
type SceneRequest struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	StartDate  string  `json:"start_date,omitempty"`
	EndDate    string  `json:"end_date,omitempty"`
	Scale      int     `json:"scale,omitempty"`
	Dimensions string  `json:"dimensions,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type SceneData struct {
	Bounds     json.RawMessage `json:"bounds"`
	Properties imagery.Scene   `json:"properties"`
}

// SceneResponse is the point image body.
type SceneResponse struct {
	Success          bool        `json:"success"`
	Message          string      `json:"message"`
	Data             *SceneData  `json:"data,omitempty"`
	ImageURL         string      `json:"image_url,omitempty"`
	Coordinates      Coordinates `json:"coordinates"`
	AcquisitionDate  *string     `json:"acquisition_date"`
	SatelliteSource  string      `json:"satellite_source,omitempty"`
	CloudCover       *float64    `json:"cloud_cover"`
	ScaleMeters      int         `json:"scale_meters"`
	Dimensions       string      `json:"dimensions"`
	WithinVietnam    bool        `json:"within_vietnam"`
	ProcessingTimeMs int64       `json:"processing_time_ms"`
	Cached           bool        `json:"cached"`
}

func (s *Service) normalizeScene(r *SceneRequest) (width, height int, err error) {
	if r.Scale == 0 {
		r.Scale = s.scale
		if r.Scale == 0 {
			r.Scale = sceneDefaultScale
		}
	}
	if r.Dimensions == "" {
		r.Dimensions = sceneDefaultDimensions
	}
	if r.EndDate == "" {
		r.EndDate = time.Now().UTC().Format(validate.DateLayout)
	}
	if r.StartDate == "" {
		end, err := validate.Date("end_date", r.EndDate)
		if err != nil {
			return 0, 0, err
		}
		r.StartDate = end.AddDate(0, 0, -sceneDefaultDays).Format(validate.DateLayout)
	}

	if err := validate.Coordinates(r.Latitude, r.Longitude); err != nil {
		return 0, 0, err
	}
	if err := validate.DateRange(r.StartDate, r.EndDate); err != nil {
		return 0, 0, err
	}
	if err := validate.Scale(r.Scale); err != nil {
		return 0, 0, err
	}
	return validate.Dimensions(r.Dimensions)
}

// SceneImage renders the least cloudy Sentinel-2 scene below 20% cloud
// around a point, falling back to merged Landsat 8 and 9 when Sentinel-2
// has none. The rendered square spans scale*max(width, height) meters.
func (s *Service) SceneImage(ctx context.Context, req SceneRequest) (*SceneResponse, error) {
	width, height, err := s.normalizeScene(&req)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()

	withinVietnam := geo.Vietnam.Contains(req.Latitude, req.Longitude)
	if !withinVietnam {
		log.Warn().
			Float64("lat", req.Latitude).
			Float64("lon", req.Longitude).
			Msg("Scene request outside Vietnam")
	}

	pt, err := geo.NewPoint(req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}
	point := earthengine.Point(pt)
	region := earthengine.Bounds(earthengine.Buffer(point, float64(req.Scale)*float64(max(width, height))/2))

	scene, catalog, err := s.bestScene(ctx, point, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	bounds := gateway.Submit(ctx, s.exec, func(ctx context.Context) (json.RawMessage, error) {
		return s.platform.Compute(ctx, region)
	})
	rgb := catalog.NaturalColor
	vis := earthengine.Visualize(imagery.SurfaceReflectance(catalog, earthengine.LoadImage(scene.ID)), earthengine.VisParams{
		Bands: rgb.Bands,
		Min:   []float64{rgb.Min},
		Max:   []float64{rgb.Max},
		Gamma: []float64{1.2},
	})
	url, err := gateway.Submit(ctx, s.exec, func(ctx context.Context) (string, error) {
		return s.platform.Thumbnail(ctx, earthengine.ClipToSize(vis, region, width, height), earthengine.FormatPNG)
	}).Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("scene thumbnail: %w", err)
	}
	rawBounds, err := bounds.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("scene bounds: %w", err)
	}

	source := catalog.DisplayName
	if catalog.Source != imagery.Sentinel2 {
		source = "Landsat 8/9"
	}
	resp := &SceneResponse{
		Success:          true,
		Message:          "Satellite image retrieved successfully",
		Data:             &SceneData{Bounds: rawBounds, Properties: scene},
		ImageURL:         url,
		Coordinates:      Coordinates{Latitude: req.Latitude, Longitude: req.Longitude},
		SatelliteSource:  source,
		ScaleMeters:      req.Scale,
		Dimensions:       req.Dimensions,
		WithinVietnam:    withinVietnam,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}
	if scene.Date != "" {
		d := scene.Date
		resp.AcquisitionDate = &d
	}
	cloud := scene.CloudCover
	resp.CloudCover = &cloud

	log.Info().
		Float64("lat", req.Latitude).
		Float64("lon", req.Longitude).
		Str("source", source).
		Dur("duration", time.Since(start)).
		Msg("Scene image retrieved")
	return resp, nil
}

// bestScene searches Sentinel-2 first and then Landsat 8 and 9 together.
func (s *Service) bestScene(ctx context.Context, point *earthengine.Value, startDate, endDate string) (imagery.Scene, imagery.Catalog, error) {
	q := imagery.Query{Geometry: point, Start: startDate, End: endDate, MaxCloud: sceneMaxCloud, Limit: 1}

	s2 := imagery.MustLookup(imagery.Sentinel2)
	scenes, err := gateway.Do(ctx, s.exec, func(ctx context.Context) ([]imagery.Scene, error) {
		return s.searcher.Search(ctx, s2, q)
	})
	if err != nil {
		return imagery.Scene{}, imagery.Catalog{}, err
	}
	if len(scenes) > 0 {
		return scenes[0], s2, nil
	}

	q.Limit = 0
	l8, l9 := imagery.MustLookup(imagery.Landsat8), imagery.MustLookup(imagery.Landsat9)
	merged := earthengine.Sort(earthengine.Merge(imagery.Collection(l8, q), imagery.Collection(l9, q)), l8.CloudProperty, true)
	scenes, err = gateway.Do(ctx, s.exec, func(ctx context.Context) ([]imagery.Scene, error) {
		return s.searcher.List(ctx, l8, earthengine.Limit(merged, 1))
	})
	if err != nil {
		return imagery.Scene{}, imagery.Catalog{}, err
	}
	if len(scenes) == 0 {
		return imagery.Scene{}, imagery.Catalog{}, apperr.New(apperr.KindNoImagery,
			"No suitable satellite images found for the specified location and date range")
	}
	catalog, err := imagery.Lookup(scenes[0].Source)
	if err != nil {
		return imagery.Scene{}, imagery.Catalog{}, err
	}
	return scenes[0], catalog, nil
}
