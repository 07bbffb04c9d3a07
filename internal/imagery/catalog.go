// Package imagery describes the satellite collections the service reads
// and turns platform scene metadata into typed Scenes.
package imagery

import (
	"strings"

	"github.com/agrisa/satellite-data-service/internal/apperr"
)

// Source identifies a satellite collection.
type Source string

const (
	Sentinel2 Source = "SENTINEL_2"
	Landsat8  Source = "LANDSAT_8"
	Landsat9  Source = "LANDSAT_9"
	Sentinel1 Source = "SENTINEL_1"
)

// BandSet is a three-band composite with its display stretch.
type BandSet struct {
	Bands []string
	Min   float64
	Max   float64
	Gamma []float64
}

// Catalog is the static description of one collection.
type Catalog struct {
	Source        Source
	CollectionID  string
	DisplayName   string
	CloudProperty string
	ProductIDProp string
	NativeScale   float64

	Red   string
	Green string
	Blue  string
	NIR   string
	SWIR1 string

	NaturalColor BandSet
	FalseColor   BandSet
	Agriculture  BandSet

	// Surface reflectance = DN * ReflectanceScale + ReflectanceOffset for
	// bands matching ReflectanceBands. A zero scale means bands are used as is.
	ReflectanceBands  string
	ReflectanceScale  float64
	ReflectanceOffset float64
}

// Optical reports whether the collection carries a cloud cover property.
func (c Catalog) Optical() bool { return c.CloudProperty != "" }

var sentinel2 = Catalog{
	Source:        Sentinel2,
	CollectionID:  "COPERNICUS/S2_SR_HARMONIZED",
	DisplayName:   "Sentinel-2",
	CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
	ProductIDProp: "PRODUCT_ID",
	NativeScale:   10,
	Red:           "B4",
	Green:         "B3",
	Blue:          "B2",
	NIR:           "B8",
	SWIR1:         "B11",
	NaturalColor:  BandSet{Bands: []string{"B4", "B3", "B2"}, Min: 0, Max: 3000},
	FalseColor:    BandSet{Bands: []string{"B8", "B4", "B3"}, Min: 0, Max: 3000},
	Agriculture:   BandSet{Bands: []string{"B11", "B8", "B2"}, Min: 0, Max: 3000},
}

func landsat(source Source, id, name string) Catalog {
	return Catalog{
		Source:            source,
		CollectionID:      id,
		DisplayName:       name,
		CloudProperty:     "CLOUD_COVER",
		ProductIDProp:     "LANDSAT_PRODUCT_ID",
		NativeScale:       30,
		Red:               "SR_B4",
		Green:             "SR_B3",
		Blue:              "SR_B2",
		NIR:               "SR_B5",
		SWIR1:             "SR_B6",
		NaturalColor:      BandSet{Bands: []string{"SR_B4", "SR_B3", "SR_B2"}, Min: 0, Max: 0.3},
		FalseColor:        BandSet{Bands: []string{"SR_B5", "SR_B4", "SR_B3"}, Min: 0, Max: 0.3, Gamma: []float64{0.95, 1.1, 1.0}},
		Agriculture:       BandSet{Bands: []string{"SR_B6", "SR_B5", "SR_B2"}, Min: 0, Max: 0.3},
		ReflectanceBands:  "SR_B.",
		ReflectanceScale:  0.0000275,
		ReflectanceOffset: -0.2,
	}
}

var sentinel1 = Catalog{
	Source:       Sentinel1,
	CollectionID: "COPERNICUS/S1_GRD",
	DisplayName:  "Sentinel-1 SAR",
	NativeScale:  10,
}

var catalogs = map[Source]Catalog{
	Sentinel2: sentinel2,
	Landsat8:  landsat(Landsat8, "LANDSAT/LC08/C02/T1_L2", "Landsat 8"),
	Landsat9:  landsat(Landsat9, "LANDSAT/LC09/C02/T1_L2", "Landsat 9"),
	Sentinel1: sentinel1,
}

// Lookup returns the catalog entry for s.
func Lookup(s Source) (Catalog, error) {
	c, ok := catalogs[s]
	if !ok {
		return Catalog{}, apperr.Invalidf("unsupported satellite %q", s)
	}
	return c, nil
}

// MustLookup is Lookup for sources known at compile time.
func MustLookup(s Source) Catalog {
	c, err := Lookup(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseOpticalSource accepts LANDSAT_8, LANDSAT_9 or SENTINEL_2 in any case.
func ParseOpticalSource(s string) (Source, error) {
	src := Source(strings.ToUpper(strings.TrimSpace(s)))
	switch src {
	case Sentinel2, Landsat8, Landsat9:
		return src, nil
	case "":
		return Sentinel2, nil
	default:
		return "", apperr.Invalidf("satellite must be one of LANDSAT_8, LANDSAT_9, SENTINEL_2; got %q", s)
	}
}
