// Package geo holds the geometry types accepted by the service: farm
// regions, points and bounding boxes in WGS84 longitude/latitude order.
package geo

import (
	"math"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DefaultCRS is assumed when a request does not name a coordinate reference system.
const DefaultCRS = "EPSG:4326"

// Region is an immutable farm polygon. The ring is kept exactly as the
// caller supplied it; closure is not required.
type Region struct {
	ring orb.Ring
	crs  string
}

// NewRegion validates coords as (lon, lat) pairs and builds a Region.
// At least three distinct vertices are required.
func NewRegion(coords [][]float64, crs string) (Region, error) {
	if crs == "" {
		crs = DefaultCRS
	}
	if len(coords) < 3 {
		return Region{}, apperr.Invalidf("region needs at least 3 coordinates, got %d", len(coords))
	}

	ring := make(orb.Ring, 0, len(coords))
	distinct := make(map[orb.Point]struct{}, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return Region{}, apperr.Invalidf("coordinate %d must be [longitude, latitude]", i)
		}
		p := orb.Point{c[0], c[1]}
		if err := checkLonLat(p); err != nil {
			return Region{}, apperr.Invalidf("coordinate %d: %s", i, err.Message)
		}
		ring = append(ring, p)
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return Region{}, apperr.Invalidf("region needs at least 3 distinct vertices, got %d", len(distinct))
	}
	return Region{ring: ring, crs: crs}, nil
}

// RegionFromBound builds a rectangular region from b.
func RegionFromBound(b orb.Bound) Region {
	return Region{ring: b.ToRing(), crs: DefaultCRS}
}

func checkLonLat(p orb.Point) *apperr.Error {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return apperr.Invalidf("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 {
		return apperr.Invalidf("latitude %g must be between -90 and 90", lat)
	}
	if lon < -180 || lon > 180 {
		return apperr.Invalidf("longitude %g must be between -180 and 180", lon)
	}
	return nil
}

// CRS returns the coordinate reference system name.
func (r Region) CRS() string { return r.crs }

// IsZero reports whether r was never constructed.
func (r Region) IsZero() bool { return len(r.ring) == 0 }

// Ring returns a copy of the vertex ring.
func (r Region) Ring() orb.Ring { return r.ring.Clone() }

// Polygon returns the region as a single-ring polygon.
func (r Region) Polygon() orb.Polygon { return orb.Polygon{r.ring.Clone()} }

// Bound returns the bounding box of the region.
func (r Region) Bound() orb.Bound { return r.ring.Bound() }

// Centroid returns the center of the bounding box.
func (r Region) Centroid() orb.Point { return r.ring.Bound().Center() }

// Coordinates returns the ring as [[lon, lat], ...] for JSON responses
// and expression building.
func (r Region) Coordinates() [][]float64 {
	out := make([][]float64, len(r.ring))
	for i, p := range r.ring {
		out[i] = []float64{p.Lon(), p.Lat()}
	}
	return out
}

// Feature returns the region as a GeoJSON feature with the given properties.
func (r Region) Feature(props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(r.Polygon())
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}
