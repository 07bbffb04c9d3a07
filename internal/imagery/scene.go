package imagery

import (
	"fmt"
	"strings"
	"time"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
)

// Scene is one candidate image. Common fields are filled for every
// source; Details holds the source-specific metadata.
type Scene struct {
	ID         string  `json:"image_id"`
	ProductID  string  `json:"product_id"`
	Date       string  `json:"acquisition_date,omitempty"`
	CloudCover float64 `json:"cloud_cover"`
	Source     Source  `json:"source"`
	Details    Details `json:"-"`
}

// Details is implemented by Sentinel2Details, LandsatDetails and
// Sentinel1Details only.
type Details interface {
	details()
}

type Sentinel2Details struct {
	Spacecraft         string
	MGRSTile           string
	MeanSolarZenith    float64
	HasMeanSolarZenith bool
}

type LandsatDetails struct {
	Spacecraft      string
	WRSPath         int
	WRSRow          int
	SunElevation    float64
	HasSunElevation bool
}

type Sentinel1Details struct {
	OrbitPass      string
	InstrumentMode string
	Polarisations  []string
}

func (Sentinel2Details) details() {}
func (LandsatDetails) details()   {}
func (Sentinel1Details) details() {}

// SunElevation returns the sun elevation in degrees when the source reports it.
// Sentinel-2 reports a zenith angle, converted as 90 - zenith.
func (s Scene) SunElevation() (float64, bool) {
	switch d := s.Details.(type) {
	case LandsatDetails:
		return d.SunElevation, d.HasSunElevation
	case Sentinel2Details:
		return 90 - d.MeanSolarZenith, d.HasMeanSolarZenith
	default:
		return 0, false
	}
}

// Properties requested from the platform for each source.
func listingProperties(c Catalog) []string {
	switch c.Source {
	case Sentinel2:
		return []string{"PRODUCT_ID", "CLOUDY_PIXEL_PERCENTAGE", "MEAN_SOLAR_ZENITH_ANGLE", "SPACECRAFT_NAME", "MGRS_TILE"}
	case Landsat8, Landsat9:
		return []string{"LANDSAT_PRODUCT_ID", "CLOUD_COVER", "DATE_ACQUIRED", "SUN_ELEVATION", "SPACECRAFT_ID", "WRS_PATH", "WRS_ROW"}
	case Sentinel1:
		return []string{"orbitProperties_pass", "instrumentMode", "transmitterReceiverPolarisation", "platform_number"}
	}
	return nil
}

// Property names added to every listed scene.
const (
	propAssetID   = "asset_id"
	propIndex     = "system_index"
	propTimeStart = "time_start"
)

// ParseScene converts a listed feature's properties into a Scene for the
// given catalog. Missing optional fields are left empty.
func ParseScene(c Catalog, props map[string]any) (Scene, error) {
	id := earthengine.String(props, propAssetID)
	if id == "" {
		idx := earthengine.String(props, propIndex)
		if idx == "" {
			return Scene{}, fmt.Errorf("scene has neither asset id nor index")
		}
		id = c.CollectionID + "/" + idx
	}

	s := Scene{ID: id, Source: c.Source}
	if c.ProductIDProp != "" {
		s.ProductID = earthengine.String(props, c.ProductIDProp)
	}
	if s.ProductID == "" {
		s.ProductID = id[strings.LastIndex(id, "/")+1:]
	}
	if c.CloudProperty != "" {
		s.CloudCover, _ = earthengine.Float(props, c.CloudProperty)
	}

	switch c.Source {
	case Sentinel2:
		d := Sentinel2Details{
			Spacecraft: earthengine.String(props, "SPACECRAFT_NAME"),
			MGRSTile:   earthengine.String(props, "MGRS_TILE"),
		}
		d.MeanSolarZenith, d.HasMeanSolarZenith = earthengine.Float(props, "MEAN_SOLAR_ZENITH_ANGLE")
		s.Details = d
		s.Date = ProductDate(s.ProductID)
	case Landsat8, Landsat9:
		d := LandsatDetails{Spacecraft: earthengine.String(props, "SPACECRAFT_ID")}
		path, _ := earthengine.Float(props, "WRS_PATH")
		row, _ := earthengine.Float(props, "WRS_ROW")
		d.WRSPath, d.WRSRow = int(path), int(row)
		d.SunElevation, d.HasSunElevation = earthengine.Float(props, "SUN_ELEVATION")
		s.Details = d
		// Merged Landsat listings are parsed with one catalog; the
		// spacecraft decides the source.
		switch Source(strings.ToUpper(d.Spacecraft)) {
		case Landsat8:
			s.Source = Landsat8
		case Landsat9:
			s.Source = Landsat9
		}
		s.Date = earthengine.String(props, "DATE_ACQUIRED")
	case Sentinel1:
		d := Sentinel1Details{
			OrbitPass:      earthengine.String(props, "orbitProperties_pass"),
			InstrumentMode: earthengine.String(props, "instrumentMode"),
		}
		if pols, ok := props["transmitterReceiverPolarisation"].([]any); ok {
			for _, p := range pols {
				if ps, ok := p.(string); ok {
					d.Polarisations = append(d.Polarisations, ps)
				}
			}
		}
		s.Details = d
	}

	if s.Date == "" {
		if ms, ok := earthengine.Float(props, propTimeStart); ok {
			s.Date = time.UnixMilli(int64(ms)).UTC().Format("2006-01-02")
		}
	}
	return s, nil
}

// ProductDate extracts YYYY-MM-DD from a Sentinel-2 product id such as
// S2A_MSIL2A_20240115T031109_N0510_R075_T48PWT_20240115T062204. When the
// third segment is unusable the first ten characters are returned; ids
// shorter than that yield "".
func ProductDate(productID string) string {
	if productID == "" {
		return ""
	}
	parts := strings.Split(productID, "_")
	if len(parts) > 2 && len(parts[2]) >= 8 {
		d := parts[2][:8]
		if _, err := time.Parse("20060102", d); err == nil {
			return d[:4] + "-" + d[4:6] + "-" + d[6:8]
		}
	}
	if len(productID) >= 10 {
		return productID[:10]
	}
	return ""
}
