package farm

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/boundary"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/logging"
	"github.com/agrisa/satellite-data-service/internal/metrics"
	"github.com/agrisa/satellite-data-service/internal/monitoring"
)

// DetectBoundary finds the field containing a point.
func (s *Service) DetectBoundary(ctx context.Context, req boundary.PointRequest) (*boundary.PointResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	res, err := s.detector.DetectAtPoint(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.New().
		Dimension("Mode", "point").
		Count("BoundariesDetected").
		Metric("FieldAreaHa", res.AreaHa, metrics.UnitNone).
		Flush()
	s.sink.Boundary(ctx, monitoring.BoundaryDetected{
		RequestID:  logging.RequestID(ctx),
		Mode:       "point",
		Fields:     1,
		AreaHa:     res.AreaHa,
		Confidence: res.Confidence,
	})
	return res, nil
}

// DetectRegion finds every field inside a bounding box.
func (s *Service) DetectRegion(ctx context.Context, req boundary.RegionRequest) (*boundary.RegionResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	res, err := s.detector.DetectInRegion(ctx, req)
	if err != nil {
		return nil, err
	}
	metrics.New().
		Dimension("Mode", "region").
		Metric("BoundariesDetected", float64(res.Summary.TotalFields), metrics.UnitCount).
		Flush()
	s.sink.Boundary(ctx, monitoring.BoundaryDetected{
		RequestID: logging.RequestID(ctx),
		Mode:      "region",
		Fields:    res.Summary.TotalFields,
		AreaHa:    res.Summary.TotalArea.Value,
	})
	return res, nil
}

// SubmitRegionJob validates req, stores a pending job and hands it to the
// dispatcher. The detection runs later through RunJob.
func (s *Service) SubmitRegionJob(ctx context.Context, req boundary.RegionRequest) (*jobs.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.jobs == nil || s.dispatcher == nil {
		return nil, apperr.New(apperr.KindUnavailable, "asynchronous processing is not configured")
	}

	job, err := jobs.New(jobs.TypeRegionDetection, jobs.RegionPrefix, req)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Put(ctx, job); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		if ferr := jobs.Fail(ctx, s.jobs, job, "dispatch failed"); ferr != nil {
			log.Warn().Err(ferr).Str("jobId", job.ID).Msg("Failed to record dispatch failure")
		}
		return nil, err
	}
	log.Info().Str("jobId", job.ID).Str("type", job.Type).Msg("Job submitted")
	return job, nil
}

// Job returns a stored job. Unknown and malformed ids are KindNotFound.
func (s *Service) Job(ctx context.Context, id string) (*jobs.Job, error) {
	if s.jobs == nil {
		return nil, apperr.New(apperr.KindUnavailable, "asynchronous processing is not configured")
	}
	if !jobs.ValidID(id) {
		return nil, apperr.New(apperr.KindNotFound, "job not found: "+id)
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.New(apperr.KindNotFound, "job not found: "+id)
	}
	return job, nil
}

// JobHandlers maps job types to the service operations that run them.
func (s *Service) JobHandlers() map[string]jobs.Handler {
	return map[string]jobs.Handler{
		jobs.TypeRegionDetection: func(ctx context.Context, raw json.RawMessage) (any, error) {
			var req boundary.RegionRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return nil, apperr.Wrap(apperr.KindInvalidInput, "malformed region request", err)
			}
			return s.DetectRegion(ctx, req)
		},
	}
}

// RunJob executes a dispatched job in the current process.
func (s *Service) RunJob(ctx context.Context, ev jobs.Event) error {
	if s.jobs == nil {
		return apperr.New(apperr.KindUnavailable, "job store is not configured")
	}
	handler, ok := s.JobHandlers()[ev.Type]
	if !ok {
		return apperr.Invalidf("unknown job type %q", ev.Type)
	}
	return jobs.Run(ctx, s.jobs, ev.JobID, handler)
}
