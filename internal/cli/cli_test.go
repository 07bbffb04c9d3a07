package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, map[string]int{"fields": 3}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"fields\": 3\n}\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestPromptFloat(t *testing.T) {
	var out bytes.Buffer
	v, err := PromptFloat(strings.NewReader("10.75\n"), &out, "Latitude", 0)
	if err != nil || v != 10.75 {
		t.Errorf("v = %v, err = %v", v, err)
	}
	if out.String() != "Latitude [0]: " {
		t.Errorf("prompt = %q", out.String())
	}

	v, err = PromptFloat(strings.NewReader("\n"), &out, "Longitude", 106.7)
	if err != nil || v != 106.7 {
		t.Errorf("default: v = %v, err = %v", v, err)
	}

	if _, err := PromptFloat(strings.NewReader("north\n"), &out, "Latitude", 0); err == nil {
		t.Error("expected parse error")
	}
}

func TestReadRequest(t *testing.T) {
	type req struct {
		StartDate string `json:"start_date"`
	}
	path := filepath.Join(t.TempDir(), "req.json")
	if err := os.WriteFile(path, []byte(`{"start_date": "2024-01-01"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	var r req
	if err := ReadRequest(path, nil, &r); err != nil || r.StartDate != "2024-01-01" {
		t.Errorf("file: %+v, %v", r, err)
	}

	r = req{}
	if err := ReadRequest("-", strings.NewReader(`{"start_date": "2024-02-01"}`), &r); err != nil || r.StartDate != "2024-02-01" {
		t.Errorf("stdin: %+v, %v", r, err)
	}

	err := ReadRequest("-", strings.NewReader(`{"start": "2024-02-01"}`), &r)
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("unknown field: err = %v", err)
	}

	if err := ReadRequest(filepath.Join(t.TempDir(), "missing.json"), nil, &r); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalidf("bad"), 2},
		{apperr.New(apperr.KindNoFieldAtPoint, "none"), 3},
		{apperr.New(apperr.KindUnavailable, "down"), 4},
		{errors.New("boom"), 1},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
