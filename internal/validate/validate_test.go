package validate

import (
	"math"
	"testing"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

func TestDate(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-01-15", false},
		{"2024-02-29", false},
		{"2023-02-29", true},
		{"2024-1-15", true},
		{"15/01/2024", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Date("start_date", tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Date(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !apperr.Is(err, apperr.KindInvalidInput) {
				t.Errorf("expected invalid input kind, got %v", apperr.KindOf(err))
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	if err := DateRange("2024-01-01", "2024-12-31"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := DateRange("2024-12-31", "2024-01-01"); err == nil {
		t.Error("expected error for reversed range")
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"512x512", 512, 512, false},
		{"64x2048", 64, 2048, false},
		{"63x512", 0, 0, true},
		{"4096x512", 0, 0, true},
		{"512", 0, 0, true},
		{"axb", 0, 0, true},
		{"-1x512", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := Dimensions(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Dimensions(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if w != tt.w || h != tt.h {
				t.Errorf("Dimensions(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
			}
		})
	}
}

func TestScale(t *testing.T) {
	for _, s := range []int{10, 30, 1000} {
		if err := Scale(s); err != nil {
			t.Errorf("Scale(%d) unexpected error: %v", s, err)
		}
	}
	for _, s := range []int{0, 9, 1001} {
		if err := Scale(s); err == nil {
			t.Errorf("Scale(%d) expected error", s)
		}
	}
}

func TestCloudCover(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"typical", 30, false},
		{"full", 100, false},
		{"negative", -1, true},
		{"over 100", 100.5, true},
		{"NaN", math.NaN(), true},
		{"+Inf", math.Inf(1), true},
		{"-Inf", math.Inf(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CloudCover(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CloudCover(%g) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !apperr.Is(err, apperr.KindInvalidInput) {
				t.Errorf("expected invalid input kind, got %v", apperr.KindOf(err))
			}
		})
	}
}

func TestRange(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		wantErr bool
	}{
		{"low bound", -1, false},
		{"high bound", 1, false},
		{"inside", 0.4, false},
		{"below", -1.01, true},
		{"above", 1.01, true},
		{"NaN", math.NaN(), true},
		{"+Inf", math.Inf(1), true},
		{"-Inf", math.Inf(-1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Range("ndvi_threshold", tt.in, -1, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Range(%g) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestVietnam(t *testing.T) {
	r, err := Vietnam(10.8231, 106.6297)
	if err != nil {
		t.Fatal(err)
	}
	if !r.WithinVietnam || r.Message != "Valid coordinates within Vietnam" {
		t.Errorf("report = %+v", r)
	}

	r, err = Vietnam(35.6, 139.7)
	if err != nil {
		t.Fatal(err)
	}
	if r.WithinVietnam || r.Message != "Coordinates are outside Vietnam boundaries" {
		t.Errorf("report = %+v", r)
	}

	if _, err := Vietnam(95, 106); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}
