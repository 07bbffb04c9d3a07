// Package render produces the per-image thumbnail and download URLs. URL
// creation cannot be batched on the platform, so each image is one unit
// of work fanned out through the remote-call gateway.
package render

import (
	"context"
	"fmt"
	"time"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
	"github.com/rs/zerolog/log"
)

const (
	// ThumbnailSize is the longest side of index thumbnails in pixels.
	ThumbnailSize = 512
	// DefaultLimit is the chunk size used when Options.Limit is zero.
	DefaultLimit = 10
)

// radarWindow is how far from an optical acquisition date a radar backup
// scene may be.
const radarWindow = 6 * 24 * time.Hour

// Outputs are the rendered URLs of one scene.
type Outputs struct {
	ImageIndex   int    `json:"image_index"`
	ThumbnailURL string `json:"thumbnail_url"`
	DownloadURL  string `json:"download_url"`

	// Set when the radar backup was rendered.
	SARDate       string              `json:"sar_acquisition_date,omitempty"`
	RescaleBounds *vegetation.Bounds  `json:"rescale_bounds,omitempty"`
	RadarStats    *vegetation.Summary `json:"-"`
}

// Options tune Generate.
type Options struct {
	// Limit is the gather chunk size. Zero selects DefaultLimit and a
	// negative value runs every unit in one gather.
	Limit int
	// CRS of the GeoTIFF downloads.
	CRS string
	// Decisions holds one strategy decision per scene. Missing entries
	// render the optical index.
	Decisions []vegetation.Decision
	// Start and End bound the radar search for scenes without a date.
	// Dated scenes use the radar scene nearest their acquisition.
	Start string
	End   string
}

// Generator renders per-image outputs through a shared Executor.
type Generator struct {
	platform earthengine.Platform
	exec     gateway.Executor
	radar    *vegetation.RadarBuilder
}

func NewGenerator(p earthengine.Platform, exec gateway.Executor) *Generator {
	return &Generator{platform: p, exec: exec, radar: vegetation.NewRadarBuilder(p)}
}

// Generate returns one slot per scene. A slot is nil when that scene's
// unit failed; the failure is logged and the other units are unaffected.
func (g *Generator) Generate(ctx context.Context, scenes []imagery.Scene, geometry *earthengine.Value, kind vegetation.Kind, opts Options) ([]*Outputs, error) {
	tasks := make([]gateway.Task[*Outputs], len(scenes))
	for i, scene := range scenes {
		radar := i < len(opts.Decisions) && opts.Decisions[i].UsesRadar()
		tasks[i] = func(ctx context.Context) (*Outputs, error) {
			if radar {
				return g.radarUnit(ctx, i, scene, geometry, opts)
			}
			return g.unit(ctx, i, scene, geometry, kind, opts.CRS)
		}
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	outcomes, err := gateway.Gather(ctx, g.exec, tasks, gateway.GatherOptions{Limit: limit, ReturnErrors: true})
	if err != nil {
		return nil, err
	}

	results := make([]*Outputs, len(scenes))
	for i, o := range outcomes {
		if o.Err != nil {
			log.Warn().
				Err(o.Err).
				Int("imageIndex", i).
				Str("imageId", scenes[i].ID).
				Msg("Per-image output failed, dropping image")
			continue
		}
		results[i] = o.Value
	}
	return results, nil
}

func (g *Generator) unit(ctx context.Context, index int, scene imagery.Scene, geometry *earthengine.Value, kind vegetation.Kind, crs string) (*Outputs, error) {
	img := earthengine.LoadImage(scene.ID)
	indexImage := kind.Compute(img)

	thumb, err := g.platform.Thumbnail(ctx, ThumbnailExpression(indexImage, geometry), earthengine.FormatPNG)
	if err != nil {
		return nil, fmt.Errorf("thumbnail for image %d: %w", index, err)
	}
	download, err := g.platform.Thumbnail(ctx, DownloadExpression(indexImage, geometry, kind.Spec().Scale, crs), earthengine.FormatGeoTIFF)
	if err != nil {
		return nil, fmt.Errorf("download for image %d: %w", index, err)
	}
	return &Outputs{ImageIndex: index, ThumbnailURL: thumb, DownloadURL: download}, nil
}

func (g *Generator) radarUnit(ctx context.Context, index int, scene imagery.Scene, geometry *earthengine.Value, opts Options) (*Outputs, error) {
	var (
		layer vegetation.Layer
		err   error
	)
	if t, perr := time.Parse("2006-01-02", scene.Date); perr == nil {
		layer, err = g.radar.BuildNear(ctx, geometry, t, radarWindow)
	} else {
		layer, err = g.radar.Build(ctx, geometry, opts.Start, opts.End)
	}
	if err != nil {
		return nil, fmt.Errorf("radar backup for image %d: %w", index, err)
	}
	if layer.Stats == nil {
		return nil, fmt.Errorf("radar backup for image %d: no RVI statistics over the farm", index)
	}

	vis := earthengine.Visualize(layer.Image, earthengine.VisParams{Min: []float64{0}, Max: []float64{1}, Palette: layer.Palette})
	thumb, err := g.platform.Thumbnail(ctx, earthengine.ClipToBounds(vis, geometry, ThumbnailSize, 0), earthengine.FormatPNG)
	if err != nil {
		return nil, fmt.Errorf("radar thumbnail for image %d: %w", index, err)
	}
	download, err := g.platform.Thumbnail(ctx, DownloadExpression(layer.Image, geometry, 10, opts.CRS), earthengine.FormatGeoTIFF)
	if err != nil {
		return nil, fmt.Errorf("radar download for image %d: %w", index, err)
	}
	return &Outputs{
		ImageIndex:    index,
		ThumbnailURL:  thumb,
		DownloadURL:   download,
		SARDate:       layer.SARDate,
		RescaleBounds: layer.RescaleBounds,
		RadarStats:    layer.Stats,
	}, nil
}

// ThumbnailExpression stretches an index image, colors it with the batch
// palette and fits it into a ThumbnailSize pixel box around geometry.
func ThumbnailExpression(index, geometry *earthengine.Value) *earthengine.Value {
	vis := earthengine.Visualize(vegetation.Stretch(index), earthengine.VisParams{
		Min:     []float64{0},
		Max:     []float64{1},
		Palette: vegetation.BatchPalette,
	})
	return earthengine.ClipToBounds(vis, geometry, ThumbnailSize, 0)
}

// DownloadExpression clips the raw index to geometry at scale meters in crs.
func DownloadExpression(index, geometry *earthengine.Value, scale float64, crs string) *earthengine.Value {
	img := earthengine.Clip(index, geometry)
	if crs != "" {
		img = earthengine.Reproject(img, crs, scale)
	}
	return earthengine.ClipToBounds(img, geometry, 0, scale)
}
