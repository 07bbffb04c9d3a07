package monitoring

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/assemble"
)

// Sink combines the optional row store and event publisher. A nil Sink or
// nil parts are valid and do nothing. Failures are logged, never returned.
type Sink struct {
	Store     *Store
	Publisher *Publisher
	newID     func() uuid.UUID
}

func NewSink(store *Store, publisher *Publisher) *Sink {
	return &Sink{Store: store, Publisher: publisher, newID: uuid.New}
}

// Enabled reports whether any destination is configured.
func (s *Sink) Enabled() bool {
	return s != nil && (s.Store != nil || s.Publisher != nil)
}

// IndexSeries records a vegetation-index response. Rows are written only
// when farmID is set.
func (s *Sink) IndexSeries(ctx context.Context, requestID string, farmID *uuid.UUID, resp *assemble.Response) {
	if !s.Enabled() {
		return
	}
	index := resp.ProcessingInfo.Index
	if s.Store != nil && farmID != nil {
		rows := Rows(*farmID, index, resp.Images, s.newID)
		if err := s.Store.Insert(ctx, rows); err != nil {
			log.Warn().Err(err).Str("requestId", requestID).Msg("Monitoring rows not written")
		}
	}
	if s.Publisher != nil {
		detail := IndexComputed{
			RequestID:       requestID,
			Index:           index,
			DateRange:       resp.Summary.DateRange,
			TotalImages:     resp.Summary.TotalImages,
			ImagesProcessed: resp.Summary.ImagesProcessed,
			AreaHectares:    resp.AreaInfo.Area.Value,
		}
		if farmID != nil {
			detail.FarmID = farmID.String()
		}
		if latest := latestRecord(resp.Images); latest != nil {
			detail.LatestMean = latest.Statistics().Mean.Value
		}
		if resp.Archive != nil {
			detail.ArchiveKey = resp.Archive.Key
		}
		if err := s.Publisher.Publish(ctx, EventIndexComputed, detail); err != nil {
			log.Warn().Err(err).Str("requestId", requestID).Msg("Index event not published")
		}
	}
}

// Boundary publishes a boundary detection summary.
func (s *Sink) Boundary(ctx context.Context, detail BoundaryDetected) {
	if s == nil || s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, EventBoundaryDetected, detail); err != nil {
		log.Warn().Err(err).Str("requestId", detail.RequestID).Msg("Boundary event not published")
	}
}

// latestRecord returns the dated record with the most recent acquisition.
func latestRecord(images []assemble.ImageRecord) *assemble.ImageRecord {
	var latest *assemble.ImageRecord
	for i := range images {
		img := &images[i]
		if img.AcquisitionDate == nil || img.Statistics() == nil {
			continue
		}
		if latest == nil || *img.AcquisitionDate > *latest.AcquisitionDate {
			latest = img
		}
	}
	return latest
}
