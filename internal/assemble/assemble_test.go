package assemble

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/render"
	"github.com/agrisa/satellite-data-service/internal/stats"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

func fixture() Input {
	scenes := []imagery.Scene{
		{ID: "s2/a", ProductID: "S2A_MSIL2A_20240105T031121", Date: "2024-01-05", CloudCover: 5, Source: imagery.Sentinel2},
		{ID: "s2/b", ProductID: "S2B_MSIL2A_20240110T031121", Date: "2024-01-10", CloudCover: 10, Source: imagery.Sentinel2},
		{ID: "s2/c", ProductID: "S2A_MSIL2A_20240115T031121", CloudCover: 35.123, Source: imagery.Sentinel2},
	}
	st := []*stats.Record{
		{ImageID: "s2/a", Index: stats.Stats{Mean: 0.65, Median: 0.66, StdDev: 0.05, Min: 0.2, Max: 0.9},
			Components: map[string]stats.Stats{"B8": {Mean: 3000}, "B4": {Mean: 600}}},
		{ImageID: "s2/b", Index: stats.Stats{Mean: 0.05}},
		{ImageID: "s2/c", Index: stats.Stats{Mean: -0.1}},
	}
	outs := []*render.Outputs{
		{ImageIndex: 0, ThumbnailURL: "t0", DownloadURL: "d0"},
		{ImageIndex: 1, ThumbnailURL: "t1", DownloadURL: "d1"},
		{ImageIndex: 2, ThumbnailURL: "t2", DownloadURL: "d2", SARDate: "2024-01-14", RescaleBounds: &vegetation.Bounds{Low: 0.1, High: 0.8},
			RadarStats: &vegetation.Summary{Mean: 0.55, Median: 0.54, StdDev: 0.07, Min: 0.2, Max: 0.85}},
	}
	decisions := make([]vegetation.Decision, len(scenes))
	for i, s := range scenes {
		decisions[i] = vegetation.Select(s.CloudCover, false)
	}
	return Input{Scenes: scenes, Stats: st, Outputs: outs, Decisions: decisions, Kind: vegetation.NDVI}
}

func TestAssembleRecords(t *testing.T) {
	records := Assemble(fixture())
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	tests := []struct {
		index    int
		category string
		strategy string
	}{
		{0, "Very healthy vegetation", "optical"},
		{1, "Sparse vegetation", "optical"},
		{2, "Moderate vegetation / Growing crops", "radar"},
	}
	for _, tt := range tests {
		r := records[tt.index]
		if r.ImageIndex != tt.index {
			t.Errorf("records[%d].ImageIndex = %d", tt.index, r.ImageIndex)
		}
		if r.Interpretation.Category != tt.category {
			t.Errorf("records[%d] category = %q, want %q", tt.index, r.Interpretation.Category, tt.category)
		}
		if r.IndexStrategy == nil || r.IndexStrategy.Strategy != tt.strategy {
			t.Errorf("records[%d] strategy = %+v, want %s", tt.index, r.IndexStrategy, tt.strategy)
		}
	}

	if records[2].CloudCover.Value != 35.12 {
		t.Errorf("cloud cover = %v, want 35.12", records[2].CloudCover.Value)
	}
	if records[2].AcquisitionDate != nil {
		t.Errorf("acquisition date = %v, want nil", *records[2].AcquisitionDate)
	}
	if records[2].IndexStrategy.SARAcquisitionDate != "2024-01-14" || records[2].IndexStrategy.RescaleBounds.High != 0.8 {
		t.Errorf("radar metadata = %+v", records[2].IndexStrategy)
	}
	if records[0].NDVIStatistics == nil || records[0].NDVIStatistics.Mean.Range != "-1 to 1" {
		t.Errorf("ndvi statistics = %+v", records[0].NDVIStatistics)
	}
	if records[0].NDMIStatistics != nil {
		t.Error("NDVI record should not carry NDMI statistics")
	}
	if records[0].ComponentBands["B8"].Mean.Value != 3000 {
		t.Errorf("component bands = %+v", records[0].ComponentBands)
	}
}

func TestAssembleRadarRecordUsesRVI(t *testing.T) {
	r := Assemble(fixture())[2]
	if r.NDVIStatistics != nil {
		t.Errorf("radar record carries optical statistics %+v", r.NDVIStatistics)
	}
	if r.RVIStatistics == nil || r.RVIStatistics.Mean.Value != 0.55 || r.RVIStatistics.Max.Value != 0.85 {
		t.Fatalf("rvi statistics = %+v", r.RVIStatistics)
	}
	if r.RVIStatistics.Mean.Unit != "RVI" || r.RVIStatistics.Mean.Range != "0 to 1" {
		t.Errorf("rvi measure = %+v", r.RVIStatistics.Mean)
	}
	if r.Interpretation.MeanValue != 0.55 {
		t.Errorf("interpretation mean = %v, want the RVI mean", r.Interpretation.MeanValue)
	}
	if r.Statistics() != r.RVIStatistics {
		t.Error("Statistics() should return the RVI block")
	}
}

func TestAssembleDropsFailedUnits(t *testing.T) {
	in := fixture()
	in.Outputs[1] = nil
	in.Stats[0] = nil
	in.Stats[2] = nil

	records := Assemble(in)
	if len(records) != 1 || records[0].ImageIndex != 2 {
		t.Fatalf("records = %+v, want only the radar image 2", records)
	}
	if records[0].RVIStatistics == nil || records[0].ComponentBands != nil {
		t.Errorf("radar record = %+v", records[0])
	}
}

func TestAssembleIsIdempotent(t *testing.T) {
	in := fixture()
	a, err := json.Marshal(Assemble(in))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Assemble(in))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Assemble is not deterministic:\n%s\n%s", a, b)
	}
}

func TestAssembleWithoutDecisions(t *testing.T) {
	in := fixture()
	in.Decisions = nil
	in.Kind = vegetation.NDMI
	records := Assemble(in)
	if records[0].IndexStrategy != nil {
		t.Errorf("strategy = %+v, want nil", records[0].IndexStrategy)
	}
	if records[0].NDMIStatistics == nil || records[0].Interpretation.Category != "Very high moisture / Water bodies" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestNewResponse(t *testing.T) {
	region, err := geo.NewRegion([][]float64{{106.6, 10.8}, {106.61, 10.8}, {106.61, 10.81}, {106.6, 10.81}, {106.6, 10.8}}, "")
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Region: region, StartDate: "2024-01-01", EndDate: "2024-01-31", MaxCloudCover: 30}

	resp := NewResponse(req, vegetation.NDVI, 3, nil, 1234567.891)
	if resp.Images == nil || len(resp.Images) != 0 {
		t.Errorf("images = %v, want empty list", resp.Images)
	}
	if resp.Summary.TotalImages != 3 || resp.Summary.ImagesProcessed != 0 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.AreaInfo.Area != (Quantity{Value: 123.4568, Unit: "hectares"}) {
		t.Errorf("area = %+v", resp.AreaInfo.Area)
	}
	if resp.Summary.DateRange != "2024-01-01 to 2024-01-31" {
		t.Errorf("date range = %q", resp.Summary.DateRange)
	}
	if resp.ProcessingInfo.Resolution.Value != 10 {
		t.Errorf("resolution = %+v", resp.ProcessingInfo.Resolution)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int
		want   float64
	}{
		{0.123456, 4, 0.1235},
		{-0.123449, 4, -0.1234},
		{35.125, 2, 35.13},
		{10, 2, 10},
	}
	for _, tt := range tests {
		if got := Round(tt.in, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.in, tt.places, got, tt.want)
		}
	}
}
