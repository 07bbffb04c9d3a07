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
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// thumbnailSize is the longest side of every farm thumbnail.
const thumbnailSize = 512

// ThumbnailRequest asks for the cloud-adaptive thumbnails of the least
// cloudy scene over a farm.
type ThumbnailRequest struct {
	Coordinates    [][]float64 `json:"coordinates"`
	CoordinateCRS  string      `json:"coordinate_crs,omitempty"`
	StartDate      string      `json:"start_date"`
	EndDate        string      `json:"end_date"`
	Satellite      string      `json:"satellite,omitempty"`
	MaxCloudCover  *float64    `json:"max_cloud_cover,omitempty"`
	ForceSARBackup bool        `json:"force_sar_backup,omitempty"`
}

type Thumbnail struct {
	URL            string            `json:"url"`
	Description    string            `json:"description"`
	Bands          []string          `json:"bands"`
	IndexType      string            `json:"index_type,omitempty"`
	DataSource     string            `json:"data_source,omitempty"`
	Palette        []string          `json:"palette,omitempty"`
	Interpretation map[string]string `json:"interpretation,omitempty"`

	SARAcquisitionDate string             `json:"sar_acquisition_date,omitempty"`
	RescaleBounds      *vegetation.Bounds `json:"rescale_bounds,omitempty"`
}

type FarmInfo struct {
	Coordinates [][]float64 `json:"coordinates"`
	CRS         string      `json:"crs"`
	// AreaHectares is nil when the area computation failed.
	AreaHectares *float64 `json:"area_approx_hectares"`
}

type ImageInfo struct {
	Satellite       string   `json:"satellite"`
	CollectionID    string   `json:"collection_id"`
	ImageID         string   `json:"image_id"`
	ProductID       string   `json:"product_id"`
	AcquisitionDate *string  `json:"acquisition_date"`
	CloudCover      float64  `json:"cloud_cover"`
	SunElevation    *float64 `json:"sun_elevation,omitempty"`
}

type ThumbnailProcessingInfo struct {
	DateRange           string  `json:"date_range"`
	ImagesFound         int     `json:"images_found"`
	MaxCloudCover       float64 `json:"max_cloud_cover"`
	CloudFilterProperty string  `json:"cloud_filter_property"`
	SARImagesAvailable  any     `json:"sar_images_available"`
}

// ThumbnailResponse is the farm thumbnails body.
type ThumbnailResponse struct {
	FarmInfo                FarmInfo                `json:"farm_info"`
	ImageInfo               ImageInfo               `json:"image_info"`
	VegetationIndexStrategy vegetation.StrategyInfo `json:"vegetation_index_strategy"`
	Thumbnails              map[string]Thumbnail    `json:"thumbnails"`
	UsageInstructions       map[string]string       `json:"usage_instructions"`
	ProcessingInfo          ThumbnailProcessingInfo `json:"processing_info"`
}

var usageInstructions = map[string]string{
	"web_display":         "Use thumbnail URLs directly in <img> tags",
	"mobile_display":      "Load URLs in ImageView/Image components",
	"caching":             "URLs are temporary - cache images if needed for offline use",
	"dimensions":          "All thumbnails are 512px (largest dimension)",
	"format":              "PNG with transparency support",
	"boundary_visibility": "Enhanced contrast for clear farm boundary identification",
}

var (
	opticalInterpretation = map[string]string{
		"black":      "Water bodies / Non-vegetation",
		"brown":      "Bare soil / Recently planted",
		"yellow":     "Sparse vegetation / Stressed crops",
		"green":      "Healthy growing crops",
		"dark_green": "Peak health / Dense canopy",
	}
	radarInterpretation = map[string]string{
		"navy_blue": "Water bodies (smooth surfaces)",
		"brown":     "Bare soil / No vegetation",
		"yellow":    "Sparse vegetation / Young crops",
		"green":     "Moderate vegetation / Growing crops",
		"red":       "Dense vegetation / Healthy crops",
	}
)

func (r *ThumbnailRequest) normalize() (geo.Region, imagery.Catalog, error) {
	maxCloud := cloudLimit(r.MaxCloudCover)
	r.MaxCloudCover = &maxCloud
	region, err := geo.NewRegion(r.Coordinates, r.CoordinateCRS)
	if err != nil {
		return geo.Region{}, imagery.Catalog{}, err
	}
	r.CoordinateCRS = region.CRS()
	if err := validate.DateRange(r.StartDate, r.EndDate); err != nil {
		return geo.Region{}, imagery.Catalog{}, err
	}
	if err := validate.CloudCover(maxCloud); err != nil {
		return geo.Region{}, imagery.Catalog{}, err
	}
	src, err := imagery.ParseOpticalSource(r.Satellite)
	if err != nil {
		return geo.Region{}, imagery.Catalog{}, err
	}
	r.Satellite = string(src)
	c, err := imagery.Lookup(src)
	return region, c, err
}

// AdaptiveThumbnails renders natural colour, false colour, agriculture,
// vegetation index and boundary thumbnails for the least cloudy scene.
// The vegetation index thumbnail follows vegetation.Select on the
// scene's cloud cover.
func (s *Service) AdaptiveThumbnails(ctx context.Context, req ThumbnailRequest) (*ThumbnailResponse, error) {
	region, catalog, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()

	geometry := earthengine.Polygon(region)
	query := imagery.Query{Geometry: geometry, Start: req.StartDate, End: req.EndDate, MaxCloud: cloudLimit(req.MaxCloudCover)}
	count := gateway.Submit(ctx, s.exec, func(ctx context.Context) (int, error) {
		return s.searcher.Count(ctx, imagery.Collection(catalog, query))
	})
	query.Limit = 1
	best, err := gateway.Do(ctx, s.exec, func(ctx context.Context) ([]imagery.Scene, error) {
		return s.searcher.Search(ctx, catalog, query)
	})
	if err != nil {
		return nil, err
	}
	total, err := count.Await(ctx)
	if err != nil {
		return nil, err
	}
	if len(best) == 0 {
		return nil, apperr.New(apperr.KindNoCandidates, fmt.Sprintf(
			"No %s images found for the specified criteria. Try increasing cloud cover threshold or expanding date range.",
			catalog.DisplayName))
	}
	scene := best[0]
	decision := vegetation.Select(scene.CloudCover, req.ForceSARBackup)
	image := imagery.SurfaceReflectance(catalog, earthengine.LoadImage(scene.ID))

	area := gateway.Submit(ctx, s.exec, s.area(geometry))

	composite := func(bs imagery.BandSet) *earthengine.Value {
		return earthengine.Visualize(image, earthengine.VisParams{
			Bands: bs.Bands,
			Min:   []float64{bs.Min},
			Max:   []float64{bs.Max},
			Gamma: bs.Gamma,
		})
	}
	boundaryImage := earthengine.Visualize(
		earthengine.Paint(earthengine.Byte(earthengine.ImageConstant(0)),
			earthengine.NewFeatureCollection(earthengine.Array(earthengine.Feature(geometry, nil))), 255, 5),
		earthengine.VisParams{Min: []float64{0}, Max: []float64{255}, Palette: []string{"000000", "FF0000"}},
	)

	var layer vegetation.Layer
	if decision.UsesRadar() {
		layer, err = gateway.Do(ctx, s.exec, func(ctx context.Context) (vegetation.Layer, error) {
			return s.radar.Build(ctx, geometry, req.StartDate, req.EndDate)
		})
		if err != nil {
			return nil, err
		}
	} else {
		layer = vegetation.OpticalLayer(catalog, image)
	}
	indexImage := earthengine.Visualize(layer.Image, earthengine.VisParams{Min: []float64{0}, Max: []float64{1}, Palette: layer.Palette})

	keys := []string{"natural_color", "false_color", "agriculture", "vegetation_index", "farm_boundary"}
	exprs := []*earthengine.Value{
		composite(catalog.NaturalColor),
		composite(catalog.FalseColor),
		composite(catalog.Agriculture),
		indexImage,
		boundaryImage,
	}
	tasks := make([]gateway.Task[string], len(exprs))
	for i, expr := range exprs {
		tasks[i] = func(ctx context.Context) (string, error) {
			return s.platform.Thumbnail(ctx, earthengine.ClipToBounds(expr, geometry, thumbnailSize, 0), earthengine.FormatPNG)
		}
	}
	urls, err := gateway.Gather(ctx, s.exec, tasks, gateway.GatherOptions{})
	if err != nil {
		return nil, fmt.Errorf("farm thumbnails: %w", err)
	}

	res := fmt.Sprintf("%gm resolution", catalog.NativeScale)
	thumbs := map[string]Thumbnail{
		keys[0]: {URL: urls[0].Value, Description: "Natural color (" + res + ")", Bands: catalog.NaturalColor.Bands},
		keys[1]: {URL: urls[1].Value, Description: "False color - vegetation appears red (" + res + ")", Bands: catalog.FalseColor.Bands},
		keys[2]: {URL: urls[2].Value, Description: "Agriculture composite (" + res + ")", Bands: catalog.Agriculture.Bands},
		keys[4]: {URL: urls[4].Value, Description: "Farm boundary outline (enhanced contrast)", Bands: []string{"constant"}},
	}
	vi := Thumbnail{URL: urls[3].Value, Palette: layer.Palette}
	strategy := decision.Info()
	sarAvailable := any("Not queried")
	if decision.UsesRadar() {
		vi.Description = "RVI - SAR all-weather vegetation monitoring (10m resolution)"
		vi.Bands = []string{"VV", "VH"}
		vi.IndexType = "RVI"
		vi.DataSource = "Sentinel-1 SAR"
		vi.Interpretation = radarInterpretation
		vi.SARAcquisitionDate = layer.SARDate
		vi.RescaleBounds = layer.RescaleBounds
		strategy.SARAcquisitionDate = layer.SARDate
		strategy.RescaleBounds = layer.RescaleBounds
		sarAvailable = true
	} else {
		vi.Description = "NDVI - Optical vegetation health (" + res + ")"
		vi.Bands = []string{catalog.NIR, catalog.Red}
		vi.IndexType = "NDVI"
		vi.DataSource = catalog.DisplayName
		vi.Interpretation = opticalInterpretation
	}
	thumbs[keys[3]] = vi

	var areaHa *float64
	if m2, err := area.Await(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not calculate farm area")
	} else {
		v := assemble.Round(m2/10000, 4)
		areaHa = &v
	}

	info := ImageInfo{
		Satellite:    string(catalog.Source),
		CollectionID: catalog.CollectionID,
		ImageID:      scene.ID,
		ProductID:    scene.ProductID,
		CloudCover:   assemble.Round(scene.CloudCover, 2),
	}
	if scene.Date != "" {
		d := scene.Date
		info.AcquisitionDate = &d
	}
	if sun, ok := scene.SunElevation(); ok {
		v := assemble.Round(sun, 2)
		info.SunElevation = &v
	}

	log.Info().
		Str("satellite", string(catalog.Source)).
		Str("strategy", decision.Strategy.Name()).
		Float64("cloudCover", scene.CloudCover).
		Int("thumbnails", len(thumbs)).
		Dur("duration", time.Since(start)).
		Msg("Farm thumbnails generated")

	return &ThumbnailResponse{
		FarmInfo:                FarmInfo{Coordinates: region.Coordinates(), CRS: region.CRS(), AreaHectares: areaHa},
		ImageInfo:               info,
		VegetationIndexStrategy: strategy,
		Thumbnails:              thumbs,
		UsageInstructions:       usageInstructions,
		ProcessingInfo: ThumbnailProcessingInfo{
			DateRange:           req.StartDate + " to " + req.EndDate,
			ImagesFound:         total,
			MaxCloudCover:       cloudLimit(req.MaxCloudCover),
			CloudFilterProperty: catalog.CloudProperty,
			SARImagesAvailable:  sarAvailable,
		},
	}, nil
}
