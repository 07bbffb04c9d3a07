// Package eetest provides an in-memory earthengine.Platform for tests.
package eetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
)

// Platform records calls and answers them with the configured funcs.
// A nil ComputeFunc answers JSON null; a nil ThumbnailFunc answers a
// deterministic URL.
type Platform struct {
	ComputeFunc   func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error)
	ThumbnailFunc func(ctx context.Context, expr *earthengine.Value, format earthengine.Format) (string, error)

	mu         sync.Mutex
	computes   []*earthengine.Value
	thumbnails []*earthengine.Value
}

var _ earthengine.Platform = (*Platform)(nil)

func (p *Platform) Compute(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
	p.mu.Lock()
	p.computes = append(p.computes, expr)
	p.mu.Unlock()

	if p.ComputeFunc == nil {
		return json.RawMessage("null"), nil
	}
	return p.ComputeFunc(ctx, expr)
}

func (p *Platform) Thumbnail(ctx context.Context, expr *earthengine.Value, format earthengine.Format) (string, error) {
	p.mu.Lock()
	p.thumbnails = append(p.thumbnails, expr)
	n := len(p.thumbnails)
	p.mu.Unlock()

	if p.ThumbnailFunc == nil {
		return fmt.Sprintf("https://earthengine.test/thumbnails/%d:%s", n, format), nil
	}
	return p.ThumbnailFunc(ctx, expr, format)
}

// ComputeCalls returns how many Compute requests were made.
func (p *Platform) ComputeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.computes)
}

// ThumbnailCalls returns how many Thumbnail requests were made.
func (p *Platform) ThumbnailCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.thumbnails)
}

// Computed returns the expressions passed to Compute in call order.
func (p *Platform) Computed() []*earthengine.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*earthengine.Value(nil), p.computes...)
}

// JSON marshals v for use as a canned result. It panics on failure.
func JSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Features builds a computed FeatureCollection with null geometries.
func Features(props ...map[string]any) json.RawMessage {
	features := make([]map[string]any, len(props))
	for i, p := range props {
		features[i] = map[string]any{
			"type":       "Feature",
			"id":         fmt.Sprint(i),
			"geometry":   nil,
			"properties": p,
		}
	}
	return JSON(map[string]any{"type": "FeatureCollection", "features": features})
}
