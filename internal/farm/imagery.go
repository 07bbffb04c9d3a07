package farm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/render"
	"github.com/agrisa/satellite-data-service/internal/validate"
)

// ImageryRequest asks for natural-colour imagery of every scene over a
// farm boundary.
type ImageryRequest struct {
	Coordinates   [][]float64 `json:"coordinates"`
	CoordinateCRS string      `json:"coordinate_crs,omitempty"`
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	MaxCloudCover *float64    `json:"max_cloud_cover,omitempty"`
	// MaxImages zero returns every scene.
	MaxImages int `json:"max_images,omitempty"`
	// BufferMeters widens the rendered area; scenes are still filtered on
	// the farm itself.
	BufferMeters float64 `json:"buffer_meters,omitempty"`
}

type Visualization struct {
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Bands       []string `json:"bands"`
}

type SceneImagery struct {
	ImageIndex      int                      `json:"image_index"`
	ImageID         string                   `json:"image_id"`
	ProductID       string                   `json:"product_id"`
	AcquisitionDate *string                  `json:"acquisition_date"`
	CloudCover      assemble.Quantity        `json:"cloud_cover"`
	Visualization   map[string]Visualization `json:"visualization"`
}

type ImagerySummary struct {
	TotalImages         int               `json:"total_images"`
	ImagesProcessed     int               `json:"images_processed"`
	DateRange           string            `json:"date_range"`
	MaxCloudCoverFilter assemble.Quantity `json:"max_cloud_cover_filter"`
	BufferApplied       assemble.Quantity `json:"buffer_applied"`
}

type BoundaryInfo struct {
	Type        string        `json:"type"`
	Coordinates [][][]float64 `json:"coordinates"`
	CRS         string        `json:"crs"`
}

type ImageryFarmInfo struct {
	Boundary BoundaryInfo      `json:"boundary"`
	Area     assemble.Quantity `json:"area"`
}

type ImageryProcessingInfo struct {
	Satellite         string            `json:"satellite"`
	Collection        string            `json:"collection"`
	Resolution        assemble.Quantity `json:"resolution"`
	VisualizationType string            `json:"visualization_type"`
}

// ImageryResponse is the farm imagery body.
type ImageryResponse struct {
	Summary        ImagerySummary        `json:"summary"`
	FarmInfo       ImageryFarmInfo       `json:"farm_info"`
	Images         []SceneImagery        `json:"images"`
	ProcessingInfo ImageryProcessingInfo `json:"processing_info"`
}

func (r *ImageryRequest) normalize() (geo.Region, error) {
	maxCloud := cloudLimit(r.MaxCloudCover)
	r.MaxCloudCover = &maxCloud
	region, err := geo.NewRegion(r.Coordinates, r.CoordinateCRS)
	if err != nil {
		return geo.Region{}, err
	}
	if err := validate.DateRange(r.StartDate, r.EndDate); err != nil {
		return geo.Region{}, err
	}
	if err := validate.CloudCover(maxCloud); err != nil {
		return geo.Region{}, err
	}
	if err := validate.Range("max_images", float64(r.MaxImages), 0, 500); err != nil {
		return geo.Region{}, err
	}
	if err := validate.Range("buffer_meters", r.BufferMeters, 0, 5000); err != nil {
		return geo.Region{}, err
	}
	return region, nil
}

// ImageryByBoundary renders one natural-colour thumbnail per Sentinel-2
// scene. A failed thumbnail drops that scene only.
func (s *Service) ImageryByBoundary(ctx context.Context, req ImageryRequest) (*ImageryResponse, error) {
	region, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()

	farm := earthengine.Polygon(region)
	view := farm
	if req.BufferMeters > 0 {
		view = earthengine.Buffer(farm, req.BufferMeters)
	}

	s2 := imagery.MustLookup(imagery.Sentinel2)
	query := imagery.Query{
		Geometry: farm,
		Start:    req.StartDate,
		End:      req.EndDate,
		MaxCloud: cloudLimit(req.MaxCloudCover),
		Limit:    req.MaxImages,
	}
	scenes, err := gateway.Do(ctx, s.exec, func(ctx context.Context) ([]imagery.Scene, error) {
		return s.searcher.Search(ctx, s2, query)
	})
	if err != nil {
		return nil, err
	}
	if len(scenes) == 0 {
		return nil, apperr.New(apperr.KindNoCandidates, "No cloud-free imagery found. Try increasing max_cloud_cover or expanding date range.")
	}

	area := gateway.Submit(ctx, s.exec, s.area(farm))

	tasks := make([]gateway.Task[string], len(scenes))
	for i, scene := range scenes {
		tasks[i] = func(ctx context.Context) (string, error) {
			rgb := earthengine.Visualize(earthengine.LoadImage(scene.ID), earthengine.VisParams{
				Bands: s2.NaturalColor.Bands,
				Min:   []float64{s2.NaturalColor.Min},
				Max:   []float64{s2.NaturalColor.Max},
			})
			return s.platform.Thumbnail(ctx, earthengine.ClipToBounds(rgb, view, thumbnailSize, 0), earthengine.FormatPNG)
		}
	}
	outcomes, err := gateway.Gather(ctx, s.exec, tasks, gateway.GatherOptions{Limit: render.DefaultLimit, ReturnErrors: true})
	if err != nil {
		return nil, err
	}

	images := make([]SceneImagery, 0, len(scenes))
	for i, o := range outcomes {
		scene := scenes[i]
		if o.Err != nil {
			log.Warn().Err(o.Err).Int("imageIndex", i).Str("imageId", scene.ID).Msg("Natural color thumbnail failed, dropping image")
			continue
		}
		img := SceneImagery{
			ImageIndex: i,
			ImageID:    scene.ID,
			ProductID:  scene.ProductID,
			CloudCover: assemble.Quantity{Value: assemble.Round(scene.CloudCover, 2), Unit: "percentage"},
			Visualization: map[string]Visualization{
				"natural_color": {
					URL:         o.Value,
					Description: "Natural color (RGB) - 10m resolution",
					Bands:       []string{"B4 (Red)", "B3 (Green)", "B2 (Blue)"},
				},
			},
		}
		if scene.Date != "" {
			d := scene.Date
			img.AcquisitionDate = &d
		}
		images = append(images, img)
	}

	areaM2, err := area.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("farm area: %w", err)
	}

	log.Info().
		Int("images", len(images)).
		Float64("areaHa", areaM2/10000).
		Dur("duration", time.Since(start)).
		Msg("Farm imagery generated")

	return &ImageryResponse{
		Summary: ImagerySummary{
			TotalImages:         len(scenes),
			ImagesProcessed:     len(images),
			DateRange:           req.StartDate + " to " + req.EndDate,
			MaxCloudCoverFilter: assemble.Quantity{Value: cloudLimit(req.MaxCloudCover), Unit: "percentage"},
			BufferApplied:       assemble.Quantity{Value: req.BufferMeters, Unit: "meters"},
		},
		FarmInfo: ImageryFarmInfo{
			Boundary: BoundaryInfo{Type: "Polygon", Coordinates: [][][]float64{region.Coordinates()}, CRS: region.CRS()},
			Area:     assemble.Hectares(areaM2),
		},
		Images: images,
		ProcessingInfo: ImageryProcessingInfo{
			Satellite:         s2.DisplayName,
			Collection:        s2.CollectionID,
			Resolution:        assemble.Quantity{Value: s2.NativeScale, Unit: "meters"},
			VisualizationType: "natural_color_only",
		},
	}, nil
}
