package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	return &buf
}

func TestFlushWritesOneEMFLine(t *testing.T) {
	buf := capture(t)
	functionName = ""

	New().
		Dimension("Endpoint", "/satellite/public/farm/ndvi").
		Metric("ImagesProcessed", 3, UnitCount).
		Duration("BatchStatsMs", 1500*time.Millisecond).
		Property("requestId", "req-1").
		Flush()

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", out)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	aws := doc["_aws"].(map[string]any)
	cw := aws["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("namespace = %v", cw["Namespace"])
	}
	metrics := cw["Metrics"].([]any)
	if len(metrics) != 2 || metrics[0].(map[string]any)["Name"] != "BatchStatsMs" {
		t.Errorf("metrics should be sorted by name, got %v", metrics)
	}
	if doc["Endpoint"] != "/satellite/public/farm/ndvi" {
		t.Errorf("dimension = %v", doc["Endpoint"])
	}
	if doc["BatchStatsMs"] != 1500.0 || doc["ImagesProcessed"] != 3.0 {
		t.Errorf("values = %v / %v", doc["BatchStatsMs"], doc["ImagesProcessed"])
	}
	if doc["requestId"] != "req-1" {
		t.Errorf("property = %v", doc["requestId"])
	}
}

func TestFlushWithoutMetricsIsSilent(t *testing.T) {
	buf := capture(t)
	New().Dimension("Endpoint", "x").Property("a", 1).Flush()
	if buf.Len() != 0 {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFunctionNameDimension(t *testing.T) {
	functionName = "satellite-lambda"
	defer func() { functionName = "" }()

	r := NewIn("Custom")
	if r.dimensions["FunctionName"] != "satellite-lambda" {
		t.Errorf("dimensions = %v", r.dimensions)
	}
	if r.namespace != "Custom" {
		t.Errorf("namespace = %q", r.namespace)
	}
}

func TestCount(t *testing.T) {
	functionName = ""
	r := New().Count("Errors")
	if r.values["Errors"] != 1 || r.metrics["Errors"].Unit != UnitCount {
		t.Errorf("count = %v %v", r.values["Errors"], r.metrics["Errors"])
	}
}
