package earthengine

import (
	"github.com/agrisa/satellite-data-service/internal/geo"
	"github.com/paulmach/orb"
)

// Collections

func LoadImageCollection(id string) *Value {
	return Call("ImageCollection.load", Args{"id": id})
}

func LoadImage(id string) *Value {
	return Call("Image.load", Args{"id": id})
}

func FilterCollection(collection, filter *Value) *Value {
	return Call("Collection.filter", Args{"collection": collection, "filter": filter})
}

func FilterDate(start, end string) *Value {
	return Call("Filter.dateRangeContains", Args{
		"leftValue":  Call("DateRange", Args{"start": start, "end": end}),
		"rightField": "system:time_start",
	})
}

func FilterBounds(geometry *Value) *Value {
	return Call("Filter.intersects", Args{"leftField": ".all", "rightValue": geometry})
}

func FilterLessThan(field string, value float64) *Value {
	return Call("Filter.lessThan", Args{"leftField": field, "rightValue": value})
}

func FilterLessOrEqual(field string, value float64) *Value {
	return Call("Filter.lessThanOrEquals", Args{"leftField": field, "rightValue": value})
}

func FilterGreaterOrEqual(field string, value float64) *Value {
	return Call("Filter.greaterThanOrEquals", Args{"leftField": field, "rightValue": value})
}

func FilterEquals(field string, value any) *Value {
	return Call("Filter.equals", Args{"leftField": field, "rightValue": value})
}

func FilterListContains(field string, value any) *Value {
	return Call("Filter.listContains", Args{"leftField": field, "rightValue": value})
}

func FilterAnd(filters ...*Value) *Value {
	return Call("Filter.and", Args{"filters": filters})
}

// Sort orders a collection by a property. The platform has no separate
// sort algorithm; Collection.limit without a limit sorts.
func Sort(collection *Value, key string, ascending bool) *Value {
	return Call("Collection.limit", Args{"collection": collection, "key": key, "ascending": ascending})
}

// Limit keeps the first n elements.
func Limit(collection *Value, n int) *Value {
	return Call("Collection.limit", Args{"collection": collection, "limit": n})
}

// Map applies body to each element, bound to the parameter named param.
func Map(collection *Value, param string, body *Value) *Value {
	return Call("Collection.map", Args{"collection": collection, "baseAlgorithm": Lambda([]string{param}, body)})
}

func Size(collection *Value) *Value {
	return Call("Collection.size", Args{"collection": collection})
}

func First(collection *Value) *Value {
	return Call("Collection.first", Args{"collection": collection})
}

func Merge(a, b *Value) *Value {
	return Call("ImageCollection.merge", Args{"collection1": a, "collection2": b})
}

// Composite reduces a collection per pixel ("median", "mean", "mosaic")
// keeping the original band names.
func Composite(collection *Value, reducer string) *Value {
	return Call("reduce."+reducer, Args{"collection": collection})
}

func ReduceCollection(collection, reducer *Value) *Value {
	return Call("ImageCollection.reduce", Args{"collection": collection, "reducer": reducer})
}

func NewFeatureCollection(features *Value) *Value {
	return Call("Collection", Args{"features": features})
}

// Geometry

// Polygon converts a region into a geometry expression.
func Polygon(r geo.Region) *Value {
	args := Args{"coordinates": [][][]float64{r.Coordinates()}}
	if r.CRS() != geo.DefaultCRS {
		args["crs"] = Call("Projection", Args{"crs": r.CRS()})
	}
	return Call("GeometryConstructors.Polygon", args)
}

func Point(p orb.Point) *Value {
	return Call("GeometryConstructors.Point", Args{"coordinates": []float64{p.Lon(), p.Lat()}})
}

func Rectangle(b geo.Bounds) *Value {
	return Call("GeometryConstructors.Rectangle", Args{
		"coordinates": []float64{b.West, b.South, b.East, b.North},
	})
}

func Buffer(geometry *Value, meters float64) *Value {
	return Call("Geometry.buffer", Args{"geometry": geometry, "distance": meters})
}

func Bounds(geometry *Value) *Value {
	return Call("Geometry.bounds", Args{"geometry": geometry})
}

// Area is the geodesic area in square meters.
func Area(geometry *Value, maxError float64) *Value {
	return Call("Geometry.area", Args{
		"geometry": geometry,
		"maxError": Call("ErrorMargin", Args{"value": maxError}),
	})
}

func NumberDivide(left *Value, right float64) *Value {
	return Call("Number.divide", Args{"left": left, "right": right})
}

func FeatureGeometry(feature *Value) *Value {
	return Call("Feature.geometry", Args{"feature": feature})
}

// Images

func NormalizedDifference(image *Value, a, b string) *Value {
	return Call("Image.normalizedDifference", Args{"input": image, "bandNames": []string{a, b}})
}

func Select(image *Value, bands ...string) *Value {
	return Call("Image.select", Args{"input": image, "bandSelectors": bands})
}

func Rename(image *Value, names ...string) *Value {
	return Call("Image.rename", Args{"input": image, "names": names})
}

func Clip(image, geometry *Value) *Value {
	return Call("Image.clip", Args{"input": image, "geometry": geometry})
}

func UnitScale(image *Value, low, high any) *Value {
	return Call("Image.unitScale", Args{"input": image, "low": low, "high": high})
}

func Clamp(image *Value, low, high float64) *Value {
	return Call("Image.clamp", Args{"input": image, "low": low, "high": high})
}

func ImageConstant(v any) *Value {
	return Call("Image.constant", Args{"value": v})
}

// Binary applies a per-pixel operator such as "add", "multiply" or "gt".
// A non-expression operand is promoted with Image.constant.
func Binary(op string, image *Value, other any) *Value {
	rhs, ok := other.(*Value)
	if !ok {
		rhs = ImageConstant(other)
	}
	return Call("Image."+op, Args{"image1": image, "image2": rhs})
}

func Byte(image *Value) *Value {
	return Call("Image.byte", Args{"value": image})
}

func UpdateMask(image, mask *Value) *Value {
	return Call("Image.updateMask", Args{"image": image, "mask": mask})
}

func AddBands(dst, src *Value) *Value {
	return Call("Image.addBands", Args{"dstImg": dst, "srcImg": src, "overwrite": true})
}

// Focal applies a neighborhood filter ("min", "max", "mean") with a
// circle kernel of the given radius.
func Focal(op string, image *Value, radius float64, units string) *Value {
	return Call("Image.focal_"+op, Args{
		"image":      image,
		"radius":     radius,
		"kernelType": "circle",
		"units":      units,
	})
}

func SquareKernel(radius float64, units string) *Value {
	return Call("Kernel.square", Args{"radius": radius, "units": units})
}

func ConnectedComponents(image, connectedness *Value, maxSize int) *Value {
	return Call("Image.connectedComponents", Args{
		"image":         image,
		"connectedness": connectedness,
		"maxSize":       maxSize,
	})
}

// ReduceRegionParams are the arguments of Image.reduceRegion.
type ReduceRegionParams struct {
	Reducer   *Value
	Geometry  *Value
	Scale     float64
	MaxPixels float64
}

func ReduceRegion(image *Value, p ReduceRegionParams) *Value {
	args := Args{
		"image":    image,
		"reducer":  p.Reducer,
		"geometry": p.Geometry,
		"scale":    p.Scale,
	}
	if p.MaxPixels > 0 {
		args["maxPixels"] = p.MaxPixels
	}
	return Call("Image.reduceRegion", args)
}

// VectorizeParams are the arguments of Image.reduceToVectors.
type VectorizeParams struct {
	Geometry       *Value
	Scale          float64
	EightConnected bool
	LabelProperty  string
	MaxPixels      float64
}

func ReduceToVectors(image *Value, p VectorizeParams) *Value {
	return Call("Image.reduceToVectors", Args{
		"image":          image,
		"geometry":       p.Geometry,
		"scale":          p.Scale,
		"geometryType":   "polygon",
		"eightConnected": p.EightConnected,
		"labelProperty":  p.LabelProperty,
		"maxPixels":      p.MaxPixels,
	})
}

func Paint(image, features *Value, color any, width float64) *Value {
	return Call("Image.paint", Args{
		"image":             image,
		"featureCollection": features,
		"color":             color,
		"width":             width,
	})
}

// VisParams configure Image.visualize.
type VisParams struct {
	Bands   []string
	Min     []float64
	Max     []float64
	Gamma   []float64
	Palette []string
}

func Visualize(image *Value, p VisParams) *Value {
	args := Args{"image": image}
	if len(p.Bands) > 0 {
		args["bands"] = p.Bands
	}
	if len(p.Min) > 0 {
		args["min"] = p.Min
	}
	if len(p.Max) > 0 {
		args["max"] = p.Max
	}
	if len(p.Gamma) > 0 {
		args["gamma"] = p.Gamma
	}
	if len(p.Palette) > 0 {
		args["palette"] = p.Palette
	}
	return Call("Image.visualize", args)
}

// ClipToBounds fits an image to a geometry's bounds. A positive
// maxDimension sizes a thumbnail; otherwise scale sets meters per pixel.
func ClipToBounds(image, geometry *Value, maxDimension int, scale float64) *Value {
	args := Args{"input": image, "geometry": geometry}
	if maxDimension > 0 {
		args["maxDimension"] = maxDimension
	} else if scale > 0 {
		args["scale"] = scale
	}
	return Call("Image.clipToBoundsAndScale", args)
}

// Reproject resamples an image into crs at scale meters per pixel.
func Reproject(image *Value, crs string, scale float64) *Value {
	return Call("Image.reproject", Args{
		"image": image,
		"crs":   Call("Projection", Args{"crs": crs}),
		"scale": scale,
	})
}

// ClipToSize fits an image to a geometry's bounds at an exact pixel size.
func ClipToSize(image, geometry *Value, width, height int) *Value {
	return Call("Image.clipToBoundsAndScale", Args{
		"input":    image,
		"geometry": geometry,
		"width":    width,
		"height":   height,
	})
}

// Reducers

func Reducer(name string) *Value {
	return Call("Reducer."+name, nil)
}

func CombineReducers(a, b *Value) *Value {
	return Call("Reducer.combine", Args{"reducer1": a, "reducer2": b, "sharedInputs": true})
}

// StatsReducer produces <band>_mean, _stdDev, _min, _max and _median in
// one pass.
func StatsReducer() *Value {
	r := CombineReducers(Reducer("mean"), Reducer("stdDev"))
	r = CombineReducers(r, Reducer("minMax"))
	return CombineReducers(r, Reducer("median"))
}

func PercentileReducer(percentiles ...float64) *Value {
	return Call("Reducer.percentile", Args{"percentiles": percentiles})
}

// Elements

func Feature(geometry *Value, properties *Value) *Value {
	return Call("Feature", Args{"geometry": geometry, "metadata": properties})
}

func Set(object *Value, key string, value any) *Value {
	return Call("Element.set", Args{"object": object, "key": key, "value": value})
}

func Get(object *Value, property string) *Value {
	return Call("Element.get", Args{"object": object, "property": property})
}

func ToDictionary(element *Value, properties ...string) *Value {
	args := Args{"element": element}
	if len(properties) > 0 {
		args["properties"] = properties
	}
	return Call("Element.toDictionary", args)
}

// DictionaryMerge combines two dictionaries; later keys win.
func DictionaryMerge(a, b *Value) *Value {
	return Call("Dictionary.combine", Args{"first": a, "second": b, "overwrite": true})
}
