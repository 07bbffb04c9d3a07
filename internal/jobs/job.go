// Package jobs tracks asynchronous work. The API stores a pending Job,
// hands its id to a Dispatcher and returns immediately; a worker runs the
// job and stores the result, which callers poll by id.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

// TTL is how long job records are kept.
const TTL = 24 * time.Hour

// Status of a job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Type names the work a job performs.
const TypeRegionDetection = "region-detection"

// Job is one asynchronous request.
type Job struct {
	ID        string          `json:"job_id" dynamodbav:"-"`
	Type      string          `json:"type" dynamodbav:"type"`
	Status    Status          `json:"status" dynamodbav:"status"`
	Request   json.RawMessage `json:"request,omitempty" dynamodbav:"request,omitempty"`
	Result    json.RawMessage `json:"result,omitempty" dynamodbav:"result,omitempty"`
	Error     string          `json:"error,omitempty" dynamodbav:"error,omitempty"`
	CreatedAt int64           `json:"created_at" dynamodbav:"createdAt"`
	UpdatedAt int64           `json:"updated_at" dynamodbav:"updatedAt"`
}

// New returns a pending job with a fresh id.
func New(jobType, prefix string, request any) (*Job, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode job request: %w", err)
	}
	now := time.Now().Unix()
	return &Job{
		ID:        GenerateID(prefix),
		Type:      jobType,
		Status:    StatusPending,
		Request:   raw,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Store persists jobs. Get returns nil, nil for an unknown id. Put is a
// full replacement.
type Store interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}

// Handler runs the work of one job type and returns its JSON result.
type Handler func(ctx context.Context, request json.RawMessage) (any, error)

// Run executes job id with handler, recording the running state and then
// the result or the failure.
func Run(ctx context.Context, store Store, id string, handler Handler) error {
	job, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return apperr.New(apperr.KindNotFound, "job not found: "+id)
	}

	start := time.Now()
	job.Status = StatusRunning
	job.UpdatedAt = start.Unix()
	if err := store.Put(ctx, job); err != nil {
		return err
	}

	result, err := handler(ctx, job.Request)
	if err != nil {
		return Fail(ctx, store, job, apperr.MessageOf(err, err.Error()))
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Fail(ctx, store, job, "encode result: "+err.Error())
	}

	job.Status = StatusComplete
	job.Result = raw
	job.UpdatedAt = time.Now().Unix()
	if err := store.Put(ctx, job); err != nil {
		return err
	}
	log.Info().
		Str("jobId", job.ID).
		Str("type", job.Type).
		Dur("duration", time.Since(start)).
		Msg("Job complete")
	return nil
}

// Fail logs the error and stores it on the job.
func Fail(ctx context.Context, store Store, job *Job, msg string) error {
	log.Error().
		Str("job", job.ID).
		Str("type", job.Type).
		Str("error", msg).
		Msg("Job failed")
	job.Status = StatusError
	job.Error = msg
	job.UpdatedAt = time.Now().Unix()
	return store.Put(ctx, job)
}

// MemoryStore keeps jobs in process. Records outlive neither the process
// nor TTL.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]Job
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (m *MemoryStore) Put(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-TTL).Unix()
	for id, j := range m.jobs {
		if j.UpdatedAt < cutoff {
			delete(m.jobs, id)
		}
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
