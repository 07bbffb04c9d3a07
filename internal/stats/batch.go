// Package stats computes per-image index statistics for a whole scene
// list with a single server-side mapped computation.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
	"github.com/rs/zerolog/log"
)

const (
	maxPixels   = 1e9
	propImageID = "image_id"
)

// Stats are the summary statistics of one band over a region.
type Stats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Record holds the statistics of one scene.
type Record struct {
	ImageID    string
	Index      Stats
	Components map[string]Stats
}

// Processor runs batch statistics against the platform.
type Processor struct {
	platform earthengine.Platform
}

func NewProcessor(p earthengine.Platform) *Processor {
	return &Processor{platform: p}
}

// Batch returns one record per scene, aligned with scenes. A nil entry
// means the platform returned no usable statistics for that scene (for
// example a fully masked region). An empty scene list returns an empty
// slice without contacting the platform.
func (p *Processor) Batch(ctx context.Context, scenes []imagery.Scene, geometry *earthengine.Value, kind vegetation.Kind, includeComponents bool) ([]*Record, error) {
	if len(scenes) == 0 {
		return []*Record{}, nil
	}

	start := time.Now()
	raw, err := p.platform.Compute(ctx, Expression(scenes, geometry, kind, includeComponents))
	if err != nil {
		return nil, fmt.Errorf("batch %s statistics: %w", kind, err)
	}
	features, err := earthengine.DecodeFeatures(raw)
	if err != nil {
		return nil, fmt.Errorf("batch %s statistics: %w", kind, err)
	}

	records := correlate(scenes, features, kind, includeComponents)
	log.Debug().
		Str("index", string(kind)).
		Int("scenes", len(scenes)).
		Int("features", len(features)).
		Dur("duration", time.Since(start)).
		Msg("Batch statistics computed")
	return records, nil
}

// Expression builds the mapped statistics computation for scenes.
func Expression(scenes []imagery.Scene, geometry *earthengine.Value, kind vegetation.Kind, includeComponents bool) *earthengine.Value {
	spec := kind.Spec()
	img := earthengine.Ref("image")

	bands := kind.Compute(img)
	if includeComponents {
		bands = earthengine.AddBands(bands, earthengine.Select(img, spec.Bands[0], spec.Bands[1]))
	}
	reduced := earthengine.ReduceRegion(bands, earthengine.ReduceRegionParams{
		Reducer:   earthengine.StatsReducer(),
		Geometry:  geometry,
		Scale:     spec.Scale,
		MaxPixels: maxPixels,
	})
	feature := earthengine.Set(earthengine.Feature(nil, reduced), propImageID, earthengine.Get(img, "system:id"))
	return earthengine.Map(imagery.FromScenes(scenes), "image", feature)
}

func correlate(scenes []imagery.Scene, features []earthengine.FeatureResult, kind vegetation.Kind, includeComponents bool) []*Record {
	byID := make(map[string]map[string]any, len(features))
	for _, f := range features {
		if id := earthengine.String(f.Properties, propImageID); id != "" {
			byID[id] = f.Properties
		}
	}

	spec := kind.Spec()
	records := make([]*Record, len(scenes))
	for i, s := range scenes {
		props, ok := byID[s.ID]
		if !ok && len(byID) == 0 && i < len(features) {
			props, ok = features[i].Properties, true
		}
		if !ok {
			continue
		}
		idx, ok := readStats(props, string(kind))
		if !ok {
			continue
		}
		r := &Record{ImageID: s.ID, Index: idx}
		if includeComponents {
			r.Components = make(map[string]Stats, 2)
			for _, band := range spec.Bands {
				if st, ok := readStats(props, band); ok {
					r.Components[band] = st
				}
			}
		}
		records[i] = r
	}
	return records
}

// readStats reads <band>_mean, _median, _stdDev, _min and _max. The mean
// is required; other values default to zero.
func readStats(props map[string]any, band string) (Stats, bool) {
	mean, ok := earthengine.Float(props, band+"_mean")
	if !ok {
		return Stats{}, false
	}
	s := Stats{Mean: mean}
	s.Median, _ = earthengine.Float(props, band+"_median")
	s.StdDev, _ = earthengine.Float(props, band+"_stdDev")
	s.Min, _ = earthengine.Float(props, band+"_min")
	s.Max, _ = earthengine.Float(props, band+"_max")
	return s, true
}
