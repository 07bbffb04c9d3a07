package imagery

import (
	"context"
	"fmt"
	"sort"

	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/rs/zerolog/log"
)

// Query selects scenes from one collection.
type Query struct {
	// Geometry is the filter geometry expression.
	Geometry *earthengine.Value
	Start    string
	End      string
	// MaxCloud keeps scenes whose cloud property is below it. Zero keeps
	// only scenes reporting no cloud; negative disables the filter.
	// Ignored for radar collections.
	MaxCloud float64
	// Limit caps the number of scenes after sorting. Zero means no limit.
	Limit int
}

// Collection builds the filtered collection expression. Optical
// collections are sorted by cloud cover ascending.
func Collection(c Catalog, q Query) *earthengine.Value {
	filters := []*earthengine.Value{
		earthengine.FilterBounds(q.Geometry),
		earthengine.FilterDate(q.Start, q.End),
	}
	if c.Optical() {
		switch {
		case q.MaxCloud > 0:
			filters = append(filters, earthengine.FilterLessThan(c.CloudProperty, q.MaxCloud))
		case q.MaxCloud == 0:
			filters = append(filters, earthengine.FilterLessOrEqual(c.CloudProperty, 0))
		}
	}
	coll := earthengine.FilterCollection(earthengine.LoadImageCollection(c.CollectionID), earthengine.FilterAnd(filters...))
	if c.Optical() {
		coll = earthengine.Sort(coll, c.CloudProperty, true)
	}
	if q.Limit > 0 {
		coll = earthengine.Limit(coll, q.Limit)
	}
	return coll
}

// RadarCollection builds the Sentinel-1 GRD collection used as the radar
// backup: dual polarisation VV+VH, IW mode, descending passes, most recent
// first.
func RadarCollection(geometry *earthengine.Value, start, end string) *earthengine.Value {
	filter := earthengine.FilterAnd(
		earthengine.FilterBounds(geometry),
		earthengine.FilterDate(start, end),
		earthengine.FilterListContains("transmitterReceiverPolarisation", "VV"),
		earthengine.FilterListContains("transmitterReceiverPolarisation", "VH"),
		earthengine.FilterEquals("instrumentMode", "IW"),
		earthengine.FilterEquals("orbitProperties_pass", "DESCENDING"),
	)
	coll := earthengine.FilterCollection(earthengine.LoadImageCollection(sentinel1.CollectionID), filter)
	return earthengine.Sort(coll, "system:time_start", false)
}

// FromScenes builds a collection holding exactly the given scenes in order.
func FromScenes(scenes []Scene) *earthengine.Value {
	images := make([]*earthengine.Value, len(scenes))
	for i, s := range scenes {
		images[i] = earthengine.LoadImage(s.ID)
	}
	return earthengine.Call("ImageCollection.fromImages", earthengine.Args{"images": images})
}

// Listing maps a collection to one property feature per scene.
func Listing(c Catalog, collection *earthengine.Value) *earthengine.Value {
	img := earthengine.Ref("image")
	props := earthengine.DictionaryMerge(
		earthengine.ToDictionary(img, listingProperties(c)...),
		earthengine.Dict(map[string]any{
			propAssetID:   earthengine.Get(img, "system:id"),
			propIndex:     earthengine.Get(img, "system:index"),
			propTimeStart: earthengine.Get(img, "system:time_start"),
		}),
	)
	return earthengine.Map(collection, "image", earthengine.Feature(nil, props))
}

// Searcher lists candidate scenes.
type Searcher struct {
	platform earthengine.Platform
}

func NewSearcher(p earthengine.Platform) *Searcher {
	return &Searcher{platform: p}
}

// Search returns the scenes of c matching q. Optical scenes are ordered by
// cloud cover ascending; radar scenes keep the platform's order. An empty
// result is not an error.
func (s *Searcher) Search(ctx context.Context, c Catalog, q Query) ([]Scene, error) {
	return s.List(ctx, c, Collection(c, q))
}

// List resolves an already built collection expression into scenes.
func (s *Searcher) List(ctx context.Context, c Catalog, collection *earthengine.Value) ([]Scene, error) {
	raw, err := s.platform.Compute(ctx, Listing(c, collection))
	if err != nil {
		return nil, fmt.Errorf("list %s scenes: %w", c.DisplayName, err)
	}
	features, err := earthengine.DecodeFeatures(raw)
	if err != nil {
		return nil, fmt.Errorf("list %s scenes: %w", c.DisplayName, err)
	}

	scenes := make([]Scene, 0, len(features))
	for _, f := range features {
		scene, err := ParseScene(c, f.Properties)
		if err != nil {
			log.Warn().Err(err).Str("featureId", f.ID).Msg("Skipping unparseable scene")
			continue
		}
		scenes = append(scenes, scene)
	}
	if c.Optical() {
		SortByCloud(scenes)
	}

	log.Debug().Str("collection", c.CollectionID).Int("scenes", len(scenes)).Msg("Scene search complete")
	return scenes, nil
}

// Count returns the number of scenes in a collection expression.
func (s *Searcher) Count(ctx context.Context, collection *earthengine.Value) (int, error) {
	raw, err := s.platform.Compute(ctx, earthengine.Size(collection))
	if err != nil {
		return 0, fmt.Errorf("count scenes: %w", err)
	}
	n, err := earthengine.DecodeNumber(raw)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SortByCloud orders scenes by cloud cover ascending, keeping the input
// order for ties.
func SortByCloud(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].CloudCover < scenes[j].CloudCover
	})
}

// SurfaceReflectance applies the catalog's reflectance scaling to an image
// expression. Collections without scaling are returned unchanged.
func SurfaceReflectance(c Catalog, image *earthengine.Value) *earthengine.Value {
	if c.ReflectanceScale == 0 {
		return image
	}
	scaled := earthengine.Binary("add",
		earthengine.Binary("multiply", earthengine.Select(image, c.ReflectanceBands), c.ReflectanceScale),
		c.ReflectanceOffset)
	return earthengine.AddBands(image, scaled)
}
