package geo

import (
	"math"
	"testing"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/paulmach/orb"
)

func TestNewRegion(t *testing.T) {
	tests := []struct {
		name    string
		coords  [][]float64
		wantErr bool
	}{
		{
			name:   "open triangle",
			coords: [][]float64{{106.1, 10.1}, {106.2, 10.1}, {106.2, 10.2}},
		},
		{
			name:   "closed square",
			coords: [][]float64{{106.1, 10.1}, {106.2, 10.1}, {106.2, 10.2}, {106.1, 10.2}, {106.1, 10.1}},
		},
		{
			name:    "two points",
			coords:  [][]float64{{106.1, 10.1}, {106.2, 10.1}},
			wantErr: true,
		},
		{
			name:    "only two distinct vertices",
			coords:  [][]float64{{106.1, 10.1}, {106.2, 10.1}, {106.1, 10.1}},
			wantErr: true,
		},
		{
			name:    "latitude out of range",
			coords:  [][]float64{{106.1, 91}, {106.2, 10.1}, {106.2, 10.2}},
			wantErr: true,
		},
		{
			name:    "short coordinate",
			coords:  [][]float64{{106.1}, {106.2, 10.1}, {106.2, 10.2}},
			wantErr: true,
		},
		{
			name:    "not a number",
			coords:  [][]float64{{math.NaN(), 10}, {106.2, 10.1}, {106.2, 10.2}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegion(tt.coords, "")
			if tt.wantErr {
				if !apperr.Is(err, apperr.KindInvalidInput) {
					t.Fatalf("expected invalid input, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.CRS() != DefaultCRS {
				t.Errorf("CRS() = %q, want %q", r.CRS(), DefaultCRS)
			}
			if got := len(r.Coordinates()); got != len(tt.coords) {
				t.Errorf("Coordinates() has %d points, want %d", got, len(tt.coords))
			}
		})
	}
}

func TestRegionIsImmutable(t *testing.T) {
	r, err := NewRegion([][]float64{{106.1, 10.1}, {106.2, 10.1}, {106.2, 10.2}}, "EPSG:4326")
	if err != nil {
		t.Fatal(err)
	}
	coords := r.Coordinates()
	coords[0][0] = 0
	ring := r.Ring()
	ring[1] = orb.Point{0, 0}

	if r.Coordinates()[0][0] != 106.1 || r.Ring()[1] != (orb.Point{106.2, 10.1}) {
		t.Error("region changed through a returned slice")
	}
}

func TestBounds(t *testing.T) {
	if !Vietnam.Contains(10.8, 106.6) {
		t.Error("Ho Chi Minh City should be inside Vietnam bounds")
	}
	if Vietnam.Contains(13.75, 100.5) {
		t.Error("Bangkok should be outside Vietnam bounds")
	}

	if _, err := NewBounds(10, 11, 106, 105); err == nil {
		t.Error("expected error when north <= south")
	}
	b, err := NewBounds(10.2, 10.1, 106.2, 106.1)
	if err != nil {
		t.Fatal(err)
	}
	r := b.Region()
	if got := r.Bound(); got.Min != (orb.Point{106.1, 10.1}) || got.Max != (orb.Point{106.2, 10.2}) {
		t.Errorf("Bound() = %v", got)
	}
}

func TestRegionFeature(t *testing.T) {
	r, _ := NewRegion([][]float64{{106.1, 10.1}, {106.2, 10.1}, {106.2, 10.2}}, "")
	f := r.Feature(map[string]any{"farm_id": "f-1"})
	if f.Properties["farm_id"] != "f-1" {
		t.Errorf("properties = %v", f.Properties)
	}
	if _, ok := f.Geometry.(orb.Polygon); !ok {
		t.Errorf("geometry type = %T", f.Geometry)
	}
}
