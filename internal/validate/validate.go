// Package validate checks request parameters before any remote work is
// scheduled. Every failure is an apperr.KindInvalidInput error.
package validate

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/geo"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

const (
	minDimension = 64
	maxDimension = 2048
	minScale     = 10
	maxScale     = 1000
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Coordinates checks latitude and longitude ranges.
func Coordinates(lat, lon float64) error {
	_, err := geo.NewPoint(lat, lon)
	return err
}

// CoordinateReport is the validate-coordinates response body.
type CoordinateReport struct {
	Valid         bool    `json:"valid"`
	WithinVietnam bool    `json:"within_vietnam"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Message       string  `json:"message"`
}

// Vietnam reports whether a valid coordinate lies inside the service area.
func Vietnam(lat, lon float64) (CoordinateReport, error) {
	if err := Coordinates(lat, lon); err != nil {
		return CoordinateReport{}, err
	}
	r := CoordinateReport{
		Valid:         true,
		WithinVietnam: geo.Vietnam.Contains(lat, lon),
		Latitude:      lat,
		Longitude:     lon,
		Message:       "Valid coordinates within Vietnam",
	}
	if !r.WithinVietnam {
		r.Message = "Coordinates are outside Vietnam boundaries"
	}
	return r, nil
}

// Date parses a YYYY-MM-DD string.
func Date(field, s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, apperr.Invalidf("%s must be in YYYY-MM-DD format", field)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Invalidf("%s is not a valid date: %s", field, s)
	}
	return t, nil
}

// DateRange validates both ends and their order.
func DateRange(start, end string) error {
	s, err := Date("start_date", start)
	if err != nil {
		return err
	}
	e, err := Date("end_date", end)
	if err != nil {
		return err
	}
	if e.Before(s) {
		return apperr.Invalidf("end_date %s is before start_date %s", end, start)
	}
	return nil
}

// Dimensions parses a "WIDTHxHEIGHT" string bounded to 64..2048 per side.
func Dimensions(s string) (width, height int, err error) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, apperr.Invalidf("dimensions must be in format 'WIDTHxHEIGHT'")
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil {
		return 0, 0, apperr.Invalidf("dimensions must be integers in format 'WIDTHxHEIGHT'")
	}
	switch {
	case width <= 0 || height <= 0:
		return 0, 0, apperr.Invalidf("width and height must be positive integers")
	case width > maxDimension || height > maxDimension:
		return 0, 0, apperr.Invalidf("maximum dimensions are %dx%d pixels", maxDimension, maxDimension)
	case width < minDimension || height < minDimension:
		return 0, 0, apperr.Invalidf("minimum dimensions are %dx%d pixels", minDimension, minDimension)
	}
	return width, height, nil
}

// Scale checks meters-per-pixel bounds.
func Scale(scale int) error {
	if scale < minScale {
		return apperr.Invalidf("scale must be at least %d meters per pixel", minScale)
	}
	if scale > maxScale {
		return apperr.Invalidf("scale cannot exceed %d meters per pixel", maxScale)
	}
	return nil
}

// CloudCover checks a maximum cloud cover percentage.
func CloudCover(v float64) error {
	if !finite(v) || v < 0 || v > 100 {
		return apperr.Invalidf("max_cloud_cover must be between 0 and 100, got %g", v)
	}
	return nil
}

// Range checks that v lies in [lo, hi].
func Range(field string, v, lo, hi float64) error {
	if !finite(v) || v < lo || v > hi {
		return apperr.Invalidf("%s must be between %g and %g, got %g", field, lo, hi, v)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
