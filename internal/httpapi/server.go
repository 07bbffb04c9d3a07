// Package httpapi exposes the farm service as a JSON HTTP API. It is the
// only place error kinds become HTTP statuses.
//
// Endpoints:
//
//	GET  /satellite/health                     platform check and dependency status
//	GET  /satellite/regions                    supported area, satellites and scales
//	POST /satellite/validate-coordinates       coordinate validation
//	GET  /satellite/image                      best scene around a point (query)
//	POST /satellite/image                      best scene around a point (body)
//	POST /satellite/public/farm/thumbnails     cloud-adaptive thumbnails
//	POST /satellite/public/farm/ndvi           NDVI time series
//	POST /satellite/public/farm/ndmi           NDMI time series
//	POST /satellite/public/farm/imagery        natural-colour imagery per scene
//	GET  /satellite/public/boundary/imagery    natural-colour imagery per scene (query, enveloped)
//	GET  /satellite/public/boundary/detect     field boundary at a point
//	POST /satellite/public/boundary/region     field boundaries in a box (?async=true)
//	GET  /satellite/public/jobs/{id}           poll an async job
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"github.com/agrisa/satellite-data-service/internal/boundary"
	"github.com/agrisa/satellite-data-service/internal/farm"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// Options configure the handler chain.
type Options struct {
	AllowedOrigins []string
}

// Server routes requests to the farm service.
type Server struct {
	svc *farm.Service
}

// New returns the complete handler: routes wrapped in request id,
// logging, metrics, CORS and gzip middleware.
func New(svc *farm.Service, opts Options) http.Handler {
	s := &Server{svc: svc}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /satellite/health", s.handleHealth)
	mux.HandleFunc("GET /satellite/regions", s.handleRegions)
	mux.HandleFunc("POST /satellite/validate-coordinates", s.handleValidateCoordinates)
	mux.HandleFunc("GET /satellite/image", s.handleSceneQuery)
	mux.HandleFunc("POST /satellite/image", s.handleSceneBody)

	mux.HandleFunc("POST /satellite/public/farm/thumbnails", s.handleThumbnails)
	mux.HandleFunc("POST /satellite/public/farm/ndvi", s.handleIndex(vegetation.NDVI))
	mux.HandleFunc("POST /satellite/public/farm/ndmi", s.handleIndex(vegetation.NDMI))
	mux.HandleFunc("POST /satellite/public/farm/imagery", s.handleImagery)

	mux.HandleFunc("GET /satellite/public/boundary/imagery", s.handleBoundaryImagery)
	mux.HandleFunc("GET /satellite/public/boundary/detect", s.handleBoundaryPoint)
	mux.HandleFunc("POST /satellite/public/boundary/region", s.handleBoundaryRegion)
	mux.HandleFunc("GET /satellite/public/jobs/{id}", s.handleJob)

	var h http.Handler = withCORS(opts.AllowedOrigins, mux)
	h = withMetrics(h)
	h = withLogging(h)
	h = withRequestID(h)
	return gzhttp.GzipHandler(h)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Health(r.Context()))
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.svc.Regions())
}

func (s *Server) handleValidateCoordinates(w http.ResponseWriter, r *http.Request) {
	var req farm.Coordinates
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.svc.ValidateCoordinates(req.Latitude, req.Longitude))
}

func (s *Server) handleSceneQuery(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	req := farm.SceneRequest{
		Latitude:   q.float("latitude", true),
		Longitude:  q.float("longitude", true),
		StartDate:  q.str("start_date"),
		EndDate:    q.str("end_date"),
		Scale:      q.int("scale"),
		Dimensions: q.str("dimensions"),
	}
	if q.err != nil {
		respondError(w, r, q.err)
		return
	}
	s.scene(w, r, req)
}

func (s *Server) handleSceneBody(w http.ResponseWriter, r *http.Request) {
	var req farm.SceneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s.scene(w, r, req)
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request, req farm.SceneRequest) {
	resp, err := s.svc.SceneImage(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	var req farm.ThumbnailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := s.svc.AdaptiveThumbnails(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIndex(kind vegetation.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req farm.IndexRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, r, err)
			return
		}
		resp, err := s.svc.BatchIndex(r.Context(), kind, req)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleImagery(w http.ResponseWriter, r *http.Request) {
	var req farm.ImageryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	resp, err := s.svc.ImageryByBoundary(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleBoundaryImagery serves the same imagery as handleImagery from query
// parameters, wrapped in a status envelope. coordinates is a JSON ring.
func (s *Server) handleBoundaryImagery(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	req := farm.ImageryRequest{
		Coordinates:   q.ring("coordinates"),
		CoordinateCRS: q.str("coordinate_crs"),
		StartDate:     q.str("start_date"),
		EndDate:       q.str("end_date"),
		MaxCloudCover: q.optFloat("max_cloud_cover"),
		MaxImages:     q.int("max_images"),
		BufferMeters:  q.float("buffer_meters", false),
	}
	if q.err != nil {
		respondEnvelopeError(w, r, q.err)
		return
	}
	resp, err := s.svc.ImageryByBoundary(r.Context(), req)
	if err != nil {
		respondEnvelopeError(w, r, err)
		return
	}
	respondEnvelope(w, fmt.Sprintf("Retrieved %d images", resp.Summary.ImagesProcessed), resp)
}

func (s *Server) handleBoundaryPoint(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	req := boundary.PointRequest{
		Latitude:     q.float("latitude", true),
		Longitude:    q.float("longitude", true),
		BufferMeters: q.float("buffer_distance", false),
		Params: boundary.Params{
			StartDate:     q.str("start_date"),
			EndDate:       q.str("end_date"),
			MaxCloudCover: q.optFloat("max_cloud_cover"),
			NDVIThreshold: q.float("ndvi_threshold", false),
			MinFieldArea:  q.float("min_field_area", false),
		},
	}
	if q.err != nil {
		respondError(w, r, q.err)
		return
	}
	resp, err := s.svc.DetectBoundary(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// jobAccepted is the 202 body of an async submission.
type jobAccepted struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	PollURL string      `json:"poll_url"`
}

func (s *Server) handleBoundaryRegion(w http.ResponseWriter, r *http.Request) {
	q := &query{r: r}
	async := q.bool("async")
	if q.err != nil {
		respondError(w, r, q.err)
		return
	}
	var req boundary.RegionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if async {
		job, err := s.svc.SubmitRegionJob(r.Context(), req)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, jobAccepted{
			JobID:   job.ID,
			Status:  job.Status,
			PollURL: "/satellite/public/jobs/" + job.ID,
		})
		return
	}

	resp, err := s.svc.DetectRegion(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
