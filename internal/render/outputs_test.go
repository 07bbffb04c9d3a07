package render

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/earthengine/eetest"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/imagery"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

func sceneList(n int) []imagery.Scene {
	out := make([]imagery.Scene, n)
	for i := range out {
		out[i] = imagery.Scene{ID: "COPERNICUS/S2_SR_HARMONIZED/scene" + string(rune('a'+i))}
	}
	return out
}

// imageID returns the asset id loaded anywhere in expr.
func imageID(expr *earthengine.Value) string {
	var id string
	expr.Walk(func(v *earthengine.Value) bool {
		if v.FunctionName() == "Image.load" {
			id, _ = v.Arg("id").ConstantValue().(string)
			return false
		}
		return true
	})
	return id
}

func TestGenerateKeepsIndexAndDropsFailures(t *testing.T) {
	exec := gateway.New(gateway.Options{})
	defer exec.Close()

	fake := &eetest.Platform{
		ThumbnailFunc: func(ctx context.Context, expr *earthengine.Value, format earthengine.Format) (string, error) {
			id := imageID(expr)
			if strings.HasSuffix(id, "sceneb") {
				return "", errors.New("quota exceeded")
			}
			// Earlier scenes answer later.
			if strings.HasSuffix(id, "scenea") {
				time.Sleep(20 * time.Millisecond)
			}
			return "https://ee.test/" + id + "/" + string(format), nil
		},
	}

	g := NewGenerator(fake, exec)
	out, err := g.Generate(context.Background(), sceneList(4), earthengine.Point([2]float64{106.6, 10.8}), vegetation.NDVI, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 4 {
		t.Fatalf("len(out) = %d", len(out))
	}
	if out[1] != nil {
		t.Errorf("failed unit should be nil, got %+v", out[1])
	}
	for _, i := range []int{0, 2, 3} {
		if out[i] == nil {
			t.Fatalf("slot %d missing", i)
		}
		if out[i].ImageIndex != i {
			t.Errorf("slot %d has ImageIndex %d", i, out[i].ImageIndex)
		}
		if !strings.HasSuffix(out[i].ThumbnailURL, "/PNG") || !strings.HasSuffix(out[i].DownloadURL, "/GEO_TIFF") {
			t.Errorf("slot %d urls = %+v", i, out[i])
		}
	}
}

func TestGenerateEmpty(t *testing.T) {
	exec := gateway.New(gateway.Options{Workers: 1})
	defer exec.Close()

	fake := &eetest.Platform{}
	out, err := NewGenerator(fake, exec).Generate(context.Background(), nil, nil, vegetation.NDVI, Options{})
	if err != nil || len(out) != 0 {
		t.Errorf("Generate(nil) = %v, %v", out, err)
	}
	if fake.ThumbnailCalls() != 0 {
		t.Errorf("thumbnail calls = %d", fake.ThumbnailCalls())
	}
}

func TestThumbnailExpression(t *testing.T) {
	expr := ThumbnailExpression(vegetation.NDVI.Compute(earthengine.LoadImage("x")), earthengine.Point([2]float64{1, 2}))
	if expr.FunctionName() != "Image.clipToBoundsAndScale" {
		t.Errorf("root = %q", expr.FunctionName())
	}
	if expr.Arg("maxDimension").ConstantValue() != ThumbnailSize {
		t.Errorf("maxDimension = %v", expr.Arg("maxDimension").ConstantValue())
	}
	if !expr.Uses("Image.unitScale") || !expr.Uses("Image.visualize") {
		t.Error("thumbnail should be stretched and visualized")
	}
}

// radarPlatform lists two Sentinel-1 scenes, most recent first, and
// answers the RVI reduction with reduced.
func radarPlatform(reduced map[string]any) *eetest.Platform {
	return &eetest.Platform{
		ComputeFunc: func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
			if expr.FunctionName() == "Image.reduceRegion" {
				return eetest.JSON(reduced), nil
			}
			return eetest.Features(
				map[string]any{"asset_id": "COPERNICUS/S1_GRD/S1A_20240120", "time_start": float64(1705708800000)},
				map[string]any{"asset_id": "COPERNICUS/S1_GRD/S1A_20240114", "time_start": float64(1705190400000)},
			), nil
		},
		ThumbnailFunc: func(ctx context.Context, expr *earthengine.Value, format earthengine.Format) (string, error) {
			return "https://ee.test/" + imageID(expr), nil
		},
	}
}

func TestGenerateRadarUsesNearestScene(t *testing.T) {
	exec := gateway.New(gateway.Options{Workers: 2})
	defer exec.Close()

	fake := radarPlatform(map[string]any{
		"RVI_mean": 0.45, "RVI_median": 0.44, "RVI_stdDev": 0.08, "RVI_min": 0.1, "RVI_max": 0.9,
		"RVI_p2": 0.2, "RVI_p98": 0.8,
	})
	scenes := []imagery.Scene{{ID: "COPERNICUS/S2_SR_HARMONIZED/cloudy", Date: "2024-01-15", CloudCover: 70}}
	out, err := NewGenerator(fake, exec).Generate(context.Background(), scenes, earthengine.Point([2]float64{106.6, 10.8}), vegetation.NDVI, Options{
		Decisions: []vegetation.Decision{vegetation.Select(70, false)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] == nil {
		t.Fatal("radar unit failed")
	}
	if out[0].SARDate != "2024-01-14" {
		t.Errorf("SARDate = %q, want the scene one day away", out[0].SARDate)
	}
	if !strings.Contains(out[0].ThumbnailURL, "S1A_20240114") {
		t.Errorf("thumbnail rendered from %q", out[0].ThumbnailURL)
	}
	if out[0].RadarStats == nil || out[0].RadarStats.Mean != 0.45 || out[0].RadarStats.Max != 0.9 {
		t.Errorf("RadarStats = %+v", out[0].RadarStats)
	}
	if out[0].RescaleBounds == nil || out[0].RescaleBounds.Low != 0.2 {
		t.Errorf("RescaleBounds = %+v", out[0].RescaleBounds)
	}
}

func TestGenerateRadarWithoutStatisticsIsDropped(t *testing.T) {
	exec := gateway.New(gateway.Options{Workers: 2})
	defer exec.Close()

	fake := radarPlatform(map[string]any{"RVI_p2": nil, "RVI_p98": nil})
	scenes := []imagery.Scene{{ID: "COPERNICUS/S2_SR_HARMONIZED/cloudy", Date: "2024-01-15", CloudCover: 70}}
	out, err := NewGenerator(fake, exec).Generate(context.Background(), scenes, earthengine.Point([2]float64{106.6, 10.8}), vegetation.NDVI, Options{
		Decisions: []vegetation.Decision{vegetation.Select(70, false)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != nil {
		t.Errorf("masked radar unit should be dropped, got %+v", out[0])
	}
	if fake.ThumbnailCalls() != 0 {
		t.Errorf("thumbnail calls = %d, want 0", fake.ThumbnailCalls())
	}
}
