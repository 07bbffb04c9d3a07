package geo

import (
	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/paulmach/orb"
)

// Bounds is a north/south/east/west box in degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Vietnam is the service area accepted by the coordinate validator.
var Vietnam = Bounds{
	North: 23.393395,
	South: 8.559611,
	East:  109.469922,
	West:  102.148224,
}

// NewBounds validates a region of interest box.
func NewBounds(north, south, east, west float64) (Bounds, error) {
	for _, p := range []orb.Point{{west, south}, {east, north}} {
		if err := checkLonLat(p); err != nil {
			return Bounds{}, err
		}
	}
	if north <= south {
		return Bounds{}, apperr.Invalidf("north (%g) must be greater than south (%g)", north, south)
	}
	if east <= west {
		return Bounds{}, apperr.Invalidf("east (%g) must be greater than west (%g)", east, west)
	}
	return Bounds{North: north, South: south, East: east, West: west}, nil
}

// Contains reports whether the point lies inside b, edges included.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Bound converts b to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Region returns b as a rectangular Region.
func (b Bounds) Region() Region {
	return RegionFromBound(b.Bound())
}

// NewPoint validates a latitude/longitude pair and returns it as an orb.Point.
func NewPoint(lat, lon float64) (orb.Point, error) {
	p := orb.Point{lon, lat}
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}
