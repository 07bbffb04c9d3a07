// Package farm implements the request operations of the satellite data
// service by composing imagery search, batch statistics, per-image
// rendering, boundary detection and the optional persistence sinks.
package farm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/archive"
	"github.com/agrisa/satellite-data-service/internal/assemble"
	"github.com/agrisa/satellite-data-service/internal/boundary"
	"github.com/agrisa/satellite-data-service/internal/cache"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/monitoring"
	"github.com/agrisa/satellite-data-service/internal/render"
	"github.com/agrisa/satellite-data-service/internal/stats"
	"github.com/agrisa/satellite-data-service/internal/validate"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// Summarizer writes a natural-language summary of an index series.
type Summarizer interface {
	Summarize(ctx context.Context, resp *assemble.Response) (string, error)
}

// Info identifies the running service in health responses.
type Info struct {
	Name    string
	Version string
}

// Deps are the collaborators of a Service. Platform and Exec are required
// for every imagery operation; the rest are optional and a nil value
// disables the feature.
type Deps struct {
	Platform   earthengine.Platform
	Exec       gateway.Executor
	Cache      cache.Cache
	Archive    *archive.Archiver
	Advisor    Summarizer
	Monitoring *monitoring.Sink
	Jobs       jobs.Store
	Dispatcher jobs.Dispatcher
	Info       Info
	// DefaultImageScale is the point image resolution in meters when a
	// request leaves scale unset.
	DefaultImageScale int
}

// Service is safe for concurrent use.
type Service struct {
	platform earthengine.Platform
	exec     gateway.Executor
	searcher *imagery.Searcher
	stats    *stats.Processor
	render   *render.Generator
	radar    *vegetation.RadarBuilder
	detector *boundary.Detector

	cache      cache.Cache
	archive    *archive.Archiver
	advisor    Summarizer
	sink       *monitoring.Sink
	jobs       jobs.Store
	dispatcher jobs.Dispatcher
	info       Info
	scale      int
}

func New(d Deps) *Service {
	return &Service{
		platform:   d.Platform,
		exec:       d.Exec,
		searcher:   imagery.NewSearcher(d.Platform),
		stats:      stats.NewProcessor(d.Platform),
		render:     render.NewGenerator(d.Platform, d.Exec),
		radar:      vegetation.NewRadarBuilder(d.Platform),
		detector:   boundary.NewDetector(d.Platform, d.Exec),
		cache:      d.Cache,
		archive:    d.Archive,
		advisor:    d.Advisor,
		sink:       d.Monitoring,
		jobs:       d.Jobs,
		dispatcher: d.Dispatcher,
		info:       d.Info,
		scale:      d.DefaultImageScale,
	}
}

// SetDispatcher replaces the job dispatcher. The in-process dispatcher
// needs the service's own handlers, so it is attached after New.
func (s *Service) SetDispatcher(d jobs.Dispatcher) {
	s.dispatcher = d
}

func (s *Service) ready() error {
	if s.platform == nil || s.exec == nil {
		return apperr.New(apperr.KindUnavailable, "Google Earth Engine service is not available")
	}
	return nil
}

// Health is the health endpoint body.
type Health struct {
	Status       string         `json:"status"`
	Service      string         `json:"service"`
	Version      string         `json:"version"`
	Timestamp    time.Time      `json:"timestamp"`
	Dependencies map[string]any `json:"dependencies"`
}

const healthCheckTimeout = 10 * time.Second

// Health checks the platform with a one-scene listing and reports which
// optional dependencies are configured. A failing check degrades the
// status; it is never an error.
func (s *Service) Health(ctx context.Context) Health {
	engine := map[string]any{"status": "not_configured", "message": "Not initialized"}
	status := "degraded"
	if s.ready() == nil {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()
		s2 := imagery.MustLookup(imagery.Sentinel2)
		sample := earthengine.Size(earthengine.Limit(earthengine.LoadImageCollection(s2.CollectionID), 1))
		raw, err := gateway.Do(checkCtx, s.exec, func(ctx context.Context) (json.RawMessage, error) {
			return s.platform.Compute(ctx, sample)
		})
		if err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			engine = map[string]any{"status": "error", "message": "Connection test failed: " + apperr.MessageOf(err, err.Error())}
		} else {
			n, _ := earthengine.DecodeNumber(raw)
			engine = map[string]any{"status": "ok", "message": "Connected to Google Earth Engine", "test_dataset_features": int(n)}
			status = "healthy"
		}
	}

	deps := map[string]any{
		"satellite_service":    "healthy",
		"google_earth_engine":  engine["status"],
		"earth_engine_details": engine,
		"result_cache":         cacheKind(s.cache),
		"archive":              "disabled",
		"monitoring":           s.sink.Enabled(),
		"insights":             s.advisor != nil,
		"async_jobs":           s.jobs != nil && s.dispatcher != nil,
	}
	if s.archive != nil {
		deps["archive"] = s.archive.Bucket()
	}
	return Health{
		Status:       status,
		Service:      s.info.Name,
		Version:      s.info.Version,
		Timestamp:    time.Now().UTC(),
		Dependencies: deps,
	}
}

func cacheKind(c cache.Cache) string {
	switch c.(type) {
	case nil:
		return "disabled"
	case *cache.Dynamo:
		return "dynamodb"
	case *cache.Memory:
		return "memory"
	default:
		return "custom"
	}
}

// Regions describes the supported area and satellites.
type Regions struct {
	PrimaryRegion       string            `json:"primary_region"`
	Bounds              geo.Bounds        `json:"bounds"`
	SupportedSatellites []string          `json:"supported_satellites"`
	RecommendedScales   map[string]string `json:"recommended_scales"`
}

func (s *Service) Regions() Regions {
	return Regions{
		PrimaryRegion: "Vietnam",
		Bounds:        geo.Vietnam,
		SupportedSatellites: []string{
			"Sentinel-2 (10-20m resolution, 5-day revisit)",
			"Landsat 8/9 (30m resolution, 16-day revisit)",
			"Sentinel-1 SAR (10m resolution, all-weather radar backup)",
		},
		RecommendedScales: map[string]string{
			"agriculture":       "10-30 meters",
			"regional_analysis": "30-100 meters",
			"overview":          "100+ meters",
		},
	}
}

// ValidateCoordinates never fails: out-of-range input is reported in the
// body with Valid false.
func (s *Service) ValidateCoordinates(lat, lon float64) validate.CoordinateReport {
	report, err := validate.Vietnam(lat, lon)
	if err != nil {
		return validate.CoordinateReport{
			Valid:     false,
			Latitude:  lat,
			Longitude: lon,
			Message:   apperr.MessageOf(err, "invalid coordinates"),
		}
	}
	return report
}

// area resolves the geodesic area of geometry in square meters.
func (s *Service) area(geometry *earthengine.Value) gateway.Task[float64] {
	return func(ctx context.Context) (float64, error) {
		raw, err := s.platform.Compute(ctx, earthengine.Area(geometry, 1))
		if err != nil {
			return 0, err
		}
		return earthengine.DecodeNumber(raw)
	}
}
