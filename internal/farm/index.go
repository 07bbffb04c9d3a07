package farm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/cache"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/logging"
	"github.com/agrisa/satellite-data-service/internal/metrics"
	"github.com/agrisa/satellite-data-service/internal/render"
	"github.com/agrisa/satellite-data-service/internal/stats"
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// DefaultMaxCloudCover applies when a request leaves max_cloud_cover unset.
const DefaultMaxCloudCover = 30.0

// cloudLimit is the effective max_cloud_cover. Nil selects the default; an
// explicit 0 keeps only cloud-free scenes.
func cloudLimit(v *float64) float64 {
	if v == nil {
		return DefaultMaxCloudCover
	}
	return *v
}

// IndexRequest asks for an NDVI or NDMI time series over a farm polygon.
type IndexRequest struct {
	Coordinates   [][]float64 `json:"coordinates"`
	CoordinateCRS string      `json:"coordinate_crs,omitempty"`
	StartDate     string      `json:"start_date"`
	EndDate       string      `json:"end_date"`
	MaxCloudCover *float64    `json:"max_cloud_cover,omitempty"`
	// MaxImages caps the scenes processed after sorting by cloud cover.
	// Zero processes every scene.
	MaxImages         int  `json:"max_images,omitempty"`
	BatchLimit        int  `json:"batch_limit,omitempty"`
	IncludeComponents bool `json:"include_components,omitempty"`
	ForceSARBackup    bool `json:"force_sar_backup,omitempty"`

	FarmID   *uuid.UUID `json:"farm_id,omitempty"`
	Archive  bool       `json:"archive,omitempty"`
	Insights bool       `json:"insights,omitempty"`
}

func (r *IndexRequest) normalize() (geo.Region, error) {
	maxCloud := cloudLimit(r.MaxCloudCover)
	r.MaxCloudCover = &maxCloud
	if r.CoordinateCRS == "" {
		r.CoordinateCRS = geo.DefaultCRS
	}
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
	if err := validate.Range("batch_limit", float64(r.BatchLimit), 0, 100); err != nil {
		return geo.Region{}, err
	}
	return region, nil
}

// BatchIndex computes the kind index for every Sentinel-2 scene over the
// farm. Statistics for all scenes come from one platform computation;
// thumbnails and downloads are rendered per scene in parallel. Scenes
// whose statistics or outputs fail are dropped from the series.
//
// For NDVI each scene gets its own strategy decision: scenes at or above
// the cloud threshold, or every scene when ForceSARBackup is set, are
// rendered from the radar backup.
func (s *Service) BatchIndex(ctx context.Context, kind vegetation.Kind, req IndexRequest) (*assemble.Response, error) {
	region, err := req.normalize()
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	requestID := logging.RequestID(ctx)

	cacheKey, cached := s.cached(ctx, "index-"+kind.Lower(), req)
	if cached != nil {
		s.sink.IndexSeries(ctx, requestID, req.FarmID, cached)
		return cached, nil
	}

	geometry := earthengine.Polygon(region)
	s2 := imagery.MustLookup(imagery.Sentinel2)
	query := imagery.Query{
		Geometry: geometry,
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
		return nil, apperr.New(apperr.KindNoCandidates, fmt.Sprintf(
			"No Sentinel-2 images found between %s and %s below %g%% cloud cover. Try increasing max_cloud_cover or expanding the date range.",
			req.StartDate, req.EndDate, cloudLimit(req.MaxCloudCover)))
	}

	area := gateway.Submit(ctx, s.exec, s.area(geometry))
	var statsDuration time.Duration
	batch := gateway.Submit(ctx, s.exec, func(ctx context.Context) ([]*stats.Record, error) {
		t := time.Now()
		defer func() { statsDuration = time.Since(t) }()
		return s.stats.Batch(ctx, scenes, geometry, kind, req.IncludeComponents)
	})

	var decisions []vegetation.Decision
	if kind == vegetation.NDVI {
		decisions = make([]vegetation.Decision, len(scenes))
		for i, scene := range scenes {
			decisions[i] = vegetation.Select(scene.CloudCover, req.ForceSARBackup)
		}
	}

	outputs, err := s.render.Generate(ctx, scenes, geometry, kind, render.Options{
		Limit:     req.BatchLimit,
		CRS:       region.CRS(),
		Decisions: decisions,
		Start:     req.StartDate,
		End:       req.EndDate,
	})
	if err != nil {
		return nil, err
	}
	records, err := batch.Await(ctx)
	if err != nil {
		return nil, err
	}
	areaM2, err := area.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("farm area: %w", err)
	}

	images := assemble.Assemble(assemble.Input{
		Scenes:    scenes,
		Stats:     records,
		Outputs:   outputs,
		Decisions: decisions,
		Kind:      kind,
	})
	resp := assemble.NewResponse(assemble.Request{
		Region:        region,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MaxCloudCover: cloudLimit(req.MaxCloudCover),
	}, kind, len(scenes), images, areaM2)

	failed := len(scenes) - len(images)
	metrics.New().
		Dimension("Index", string(kind)).
		Metric("ImagesProcessed", float64(len(images)), metrics.UnitCount).
		Metric("ImagesFailed", float64(failed), metrics.UnitCount).
		Duration("BatchStatsMs", statsDuration).
		Property("requestId", requestID).
		Flush()

	s.enrich(ctx, kind, req, resp)
	s.sink.IndexSeries(ctx, requestID, req.FarmID, resp)

	if s.cache != nil && cacheKey != "" {
		if err := s.cache.Put(ctx, cacheKey, resp); err != nil {
			log.Warn().Err(err).Str("key", cacheKey).Msg("Result not cached")
		}
	}

	log.Info().
		Str("index", string(kind)).
		Int("candidates", len(scenes)).
		Int("processed", len(images)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Index series complete")
	return resp, nil
}

// cached looks req up in the result cache. It returns the key to store
// the fresh response under and, on a hit, the cached response.
func (s *Service) cached(ctx context.Context, operation string, req any) (string, *assemble.Response) {
	if s.cache == nil {
		return "", nil
	}
	key, err := cache.Key(operation, req)
	if err != nil {
		log.Warn().Err(err).Msg("Cache key not derived")
		return "", nil
	}
	var resp assemble.Response
	hit, err := s.cache.Get(ctx, key, &resp)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		return key, nil
	}
	if !hit {
		return key, nil
	}
	log.Debug().Str("key", key).Msg("Serving cached result")
	resp.Cached = true
	return key, &resp
}

// enrich adds the archive reference and insights. Both are best effort.
func (s *Service) enrich(ctx context.Context, kind vegetation.Kind, req IndexRequest, resp *assemble.Response) {
	if req.Archive {
		if s.archive == nil {
			log.Warn().Msg("Archive requested but no archive bucket is configured")
		} else if ref, err := s.archive.Store(ctx, string(kind), resp); err != nil {
			log.Warn().Err(err).Msg("Response not archived")
		} else {
			resp.Archive = ref
		}
	}

	if req.Insights {
		if s.advisor == nil {
			log.Warn().Msg("Insights requested but no Gemini API key is configured")
			return
		}
		text, err := s.advisor.Summarize(ctx, resp)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("Insights not generated")
			}
			return
		}
		resp.Insights = text
	}
}
