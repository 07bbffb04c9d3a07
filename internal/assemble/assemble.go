// Package assemble merges batch statistics, per-image outputs and scene
// metadata into the vegetation-index response contract. Everything here
// is pure: the same input always produces the same records.
package assemble

import (
	"math"
	"sort"

	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/render"
	"github.com/agrisa/satellite-data-service/internal/stats"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// Quantity is a value with its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Measure is a statistic of an index together with the index's range.
type Measure struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
	Range string  `json:"range,omitempty"`
}

type StatisticsBlock struct {
	Mean   Measure `json:"mean"`
	Median Measure `json:"median"`
	StdDev Measure `json:"std_dev"`
	Min    Measure `json:"min"`
	Max    Measure `json:"max"`
}

type Interpretation struct {
	Category  string  `json:"category"`
	MeanValue float64 `json:"mean_value"`
}

type OutputLinks struct {
	Thumbnail string `json:"thumbnail"`
	Download  string `json:"download"`
}

// ImageRecord is one processed scene in a vegetation-index response.
type ImageRecord struct {
	ImageIndex      int                         `json:"image_index"`
	ImageID         string                      `json:"image_id"`
	ProductID       string                      `json:"product_id"`
	AcquisitionDate *string                     `json:"acquisition_date"`
	CloudCover      Quantity                    `json:"cloud_cover"`
	NDVIStatistics  *StatisticsBlock            `json:"ndvi_statistics,omitempty"`
	NDMIStatistics  *StatisticsBlock            `json:"ndmi_statistics,omitempty"`
	RVIStatistics   *StatisticsBlock            `json:"rvi_statistics,omitempty"`
	Interpretation  Interpretation              `json:"interpretation"`
	IndexStrategy   *vegetation.StrategyInfo    `json:"index_strategy,omitempty"`
	Outputs         OutputLinks                 `json:"outputs"`
	ComponentBands  map[string]*StatisticsBlock `json:"component_bands,omitempty"`
	SunElevation    *float64                    `json:"sun_elevation,omitempty"`
}

// Statistics returns the index block of r, whichever index it carries.
func (r ImageRecord) Statistics() *StatisticsBlock {
	switch {
	case r.NDVIStatistics != nil:
		return r.NDVIStatistics
	case r.NDMIStatistics != nil:
		return r.NDMIStatistics
	}
	return r.RVIStatistics
}

// Input holds everything Assemble merges. Stats, Outputs and Decisions
// are aligned with Scenes; nil or missing entries mark failed units.
type Input struct {
	Scenes    []imagery.Scene
	Stats     []*stats.Record
	Outputs   []*render.Outputs
	Decisions []vegetation.Decision
	Kind      vegetation.Kind
}

// Assemble emits one record per scene whose statistics and outputs both
// exist, ordered by image index. Radar-rendered scenes carry their own RVI
// statistics and need no optical ones.
func Assemble(in Input) []ImageRecord {
	records := make([]ImageRecord, 0, len(in.Scenes))
	for i, scene := range in.Scenes {
		if i >= len(in.Stats) || i >= len(in.Outputs) {
			break
		}
		st, out := in.Stats[i], in.Outputs[i]
		if out == nil || (st == nil && out.RadarStats == nil) {
			continue
		}
		r := record(i, scene, st, out, in.Kind)
		if i < len(in.Decisions) && in.Decisions[i].Strategy != nil {
			info := in.Decisions[i].Info()
			info.SARAcquisitionDate = out.SARDate
			info.RescaleBounds = out.RescaleBounds
			r.IndexStrategy = &info
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].ImageIndex < records[b].ImageIndex
	})
	return records
}

func record(i int, scene imagery.Scene, st *stats.Record, out *render.Outputs, kind vegetation.Kind) ImageRecord {
	r := ImageRecord{
		ImageIndex: i,
		ImageID:    scene.ID,
		ProductID:  scene.ProductID,
		CloudCover: Quantity{Value: Round(scene.CloudCover, 2), Unit: "percentage"},
		Outputs:    OutputLinks{Thumbnail: out.ThumbnailURL, Download: out.DownloadURL},
	}
	if scene.Date != "" {
		d := scene.Date
		r.AcquisitionDate = &d
	}

	switch {
	case out.RadarStats != nil:
		rvi := out.RadarStats
		r.RVIStatistics = block(stats.Stats{
			Mean:   rvi.Mean,
			Median: rvi.Median,
			StdDev: rvi.StdDev,
			Min:    rvi.Min,
			Max:    rvi.Max,
		}, "RVI", vegetation.RVIRange)
		r.Interpretation = Interpretation{Category: vegetation.InterpretRVI(rvi.Mean), MeanValue: Round(rvi.Mean, 4)}
	default:
		idx := block(st.Index, string(kind), kind.Spec().Range)
		if kind == vegetation.NDMI {
			r.NDMIStatistics = idx
		} else {
			r.NDVIStatistics = idx
		}
		r.Interpretation = Interpretation{Category: kind.Interpret(st.Index.Mean), MeanValue: Round(st.Index.Mean, 4)}
	}

	if st != nil && len(st.Components) > 0 {
		r.ComponentBands = make(map[string]*StatisticsBlock, len(st.Components))
		for band, s := range st.Components {
			r.ComponentBands[band] = block(s, "reflectance", "")
		}
	}
	if sun, ok := scene.SunElevation(); ok {
		v := Round(sun, 2)
		r.SunElevation = &v
	}
	return r
}

func block(s stats.Stats, unit, rng string) *StatisticsBlock {
	m := func(v float64) Measure { return Measure{Value: Round(v, 4), Unit: unit, Range: rng} }
	return &StatisticsBlock{
		Mean:   m(s.Mean),
		Median: m(s.Median),
		StdDev: m(s.StdDev),
		Min:    m(s.Min),
		Max:    m(s.Max),
	}
}

// Round rounds v to places decimals, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Hectares converts a geodesic area in square meters.
func Hectares(squareMeters float64) Quantity {
	return Quantity{Value: Round(squareMeters/10000, 4), Unit: "hectares"}
}
