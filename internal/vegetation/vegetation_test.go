package vegetation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/earthengine/eetest"
	"github.com/agrisa/satellite-data-service/internal/imagery"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		cloud     float64
		force     bool
		wantRadar bool
		reason    string
	}{
		{"clear sky", 5, false, false, "Cloud cover < 30% - using optical primary"},
		{"just below threshold", 29.999, false, false, "Cloud cover < 30% - using optical primary"},
		{"at threshold", 30.0, false, true, "Cloud cover >= 30% - using radar backup"},
		{"overcast", 85, false, true, "Cloud cover >= 30% - using radar backup"},
		{"forced with clear sky", 2.0, true, true, "Radar backup forced by request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Select(tt.cloud, tt.force)
			if d.UsesRadar() != tt.wantRadar {
				t.Errorf("UsesRadar() = %v, want %v", d.UsesRadar(), tt.wantRadar)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
			if d.Threshold != 30.0 {
				t.Errorf("Threshold = %v", d.Threshold)
			}
		})
	}
}

func TestDecisionInfo(t *testing.T) {
	info := Select(45, false).Info()
	if info.SelectedIndex != "RVI (SAR)" || info.DataQuality != "All-weather radar" {
		t.Errorf("radar info = %+v", info)
	}
	info = Select(10, false).Info()
	if info.SelectedIndex != "NDVI (Optical)" || info.DataQuality != "High-accuracy optical" {
		t.Errorf("optical info = %+v", info)
	}
}

func TestInterpretHealth(t *testing.T) {
	tests := []struct {
		mean float64
		want string
	}{
		{0.65, "Very healthy vegetation"},
		{0.6, "Healthy vegetation"},
		{0.45, "Healthy vegetation"},
		{0.3, "Moderate vegetation"},
		{0.05, "Sparse vegetation"},
		{0, "No vegetation / Water / Bare soil"},
		{-0.1, "No vegetation / Water / Bare soil"},
	}
	for _, tt := range tests {
		if got := InterpretHealth(tt.mean); got != tt.want {
			t.Errorf("InterpretHealth(%v) = %q, want %q", tt.mean, got, tt.want)
		}
	}
}

func TestInterpretMoisture(t *testing.T) {
	tests := []struct {
		mean float64
		want string
	}{
		{0.5, "Very high moisture / Water bodies"},
		{0.3, "High moisture content"},
		{0.1, "Moderate moisture"},
		{-0.1, "Low moisture / Dry vegetation"},
		{-0.2, "Very low moisture / Bare soil"},
	}
	for _, tt := range tests {
		if got := NDMI.Interpret(tt.mean); got != tt.want {
			t.Errorf("Interpret(%v) = %q, want %q", tt.mean, got, tt.want)
		}
	}
}

func TestKindSpec(t *testing.T) {
	if s := NDVI.Spec(); s.Bands != [2]string{"B8", "B4"} || s.Scale != 10 {
		t.Errorf("NDVI spec = %+v", s)
	}
	if s := NDMI.Spec(); s.Bands != [2]string{"B8", "B11"} || s.Scale != 20 {
		t.Errorf("NDMI spec = %+v", s)
	}
	if k, err := ParseKind("ndmi"); err != nil || k != NDMI {
		t.Errorf("ParseKind = %v, %v", k, err)
	}
	if _, err := ParseKind("evi"); err == nil {
		t.Error("expected error for unsupported index")
	}
}

func TestRadarBuilderNoScenes(t *testing.T) {
	fake := &eetest.Platform{
		ComputeFunc: func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
			return eetest.Features(), nil
		},
	}
	_, err := NewRadarBuilder(fake).Build(context.Background(), earthengine.Point([2]float64{106.6, 10.8}), "2024-01-01", "2024-02-01")
	if !apperr.Is(err, apperr.KindNoImagery) {
		t.Fatalf("expected no imagery error, got %v", err)
	}
	if fake.ComputeCalls() != 1 {
		t.Errorf("compute calls = %d, want 1", fake.ComputeCalls())
	}
}

func TestRadarBuilderUsesPercentiles(t *testing.T) {
	fake := &eetest.Platform{
		ComputeFunc: func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
			if expr.FunctionName() == "Image.reduceRegion" {
				return eetest.JSON(map[string]any{"RVI_p2": 0.21, "RVI_p98": 0.87, "RVI_mean": 0.52, "RVI_stdDev": 0.1}), nil
			}
			return eetest.Features(map[string]any{
				"asset_id":   "COPERNICUS/S1_GRD/S1A_IW_GRDH_1SDV_20240110",
				"time_start": float64(1704844800000),
			}), nil
		},
	}
	layer, err := NewRadarBuilder(fake).Build(context.Background(), earthengine.Point([2]float64{106.6, 10.8}), "2024-01-01", "2024-02-01")
	if err != nil {
		t.Fatal(err)
	}
	if layer.RescaleBounds == nil || layer.RescaleBounds.Low != 0.21 || layer.RescaleBounds.High != 0.87 {
		t.Errorf("RescaleBounds = %+v", layer.RescaleBounds)
	}
	if layer.SARDate != "2024-01-10" {
		t.Errorf("SARDate = %q", layer.SARDate)
	}
	if !layer.Image.Uses("Image.focal_mean") || !layer.Image.Uses("Image.pow") {
		t.Error("radar layer should despeckle and convert to linear power")
	}
	if layer.Stats == nil || layer.Stats.Mean != 0.52 || layer.Stats.StdDev != 0.1 {
		t.Errorf("Stats = %+v", layer.Stats)
	}
	if fake.ComputeCalls() != 2 {
		t.Errorf("compute calls = %d, want listing and one reduction", fake.ComputeCalls())
	}
}

func TestDecodeRadarFallsBack(t *testing.T) {
	b, summary, err := decodeRadar(json.RawMessage(`{"RVI_p2": null, "RVI_p98": null, "RVI_mean": null}`))
	if err != nil {
		t.Fatal(err)
	}
	if b.Low != 0 || b.High != 1 {
		t.Errorf("bounds = %+v", b)
	}
	if summary != nil {
		t.Errorf("summary = %+v, want nil for an empty region", summary)
	}
}

func TestNearest(t *testing.T) {
	// Most recent first, as the radar collection is sorted.
	scenes := []imagery.Scene{
		{ID: "s1/0120", Date: "2024-01-20"},
		{ID: "s1/0117", Date: "2024-01-17"},
		{ID: "s1/undated"},
		{ID: "s1/0113", Date: "2024-01-13"},
		{ID: "s1/0109", Date: "2024-01-09"},
	}
	tests := []struct {
		date string
		want string
	}{
		{"2024-01-15", "s1/0117"}, // 0117 and 0113 tie; the later wins
		{"2024-01-10", "s1/0109"},
		{"2024-01-19", "s1/0120"},
		{"2024-01-12", "s1/0113"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, _ := time.Parse("2006-01-02", tt.date)
			got, ok := nearest(scenes, d)
			if !ok || got.ID != tt.want {
				t.Errorf("nearest(%s) = %s, %v, want %s", tt.date, got.ID, ok, tt.want)
			}
		})
	}

	if _, ok := nearest([]imagery.Scene{{ID: "s1/undated"}}, time.Now()); ok {
		t.Error("undated scenes should not be selected")
	}
}

func TestInterpretRVI(t *testing.T) {
	tests := []struct {
		mean float64
		want string
	}{
		{0.7, "Dense vegetation / Healthy crops"},
		{0.5, "Moderate vegetation / Growing crops"},
		{0.3, "Sparse vegetation / Young crops"},
		{0.15, "Bare soil / No vegetation"},
		{0.05, "Water bodies / Smooth surfaces"},
	}
	for _, tt := range tests {
		if got := InterpretRVI(tt.mean); got != tt.want {
			t.Errorf("InterpretRVI(%v) = %q, want %q", tt.mean, got, tt.want)
		}
	}
}
