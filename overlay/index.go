// Package overlay loads the vector boundaries drawn on top of the maps and
// indexes them for per-view queries.
package overlay

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/pyeo/sen2map"
)

// A Feature is a geometry of the overlay, in map coordinates.
type Feature struct {
	ID       int
	Geometry orb.Geometry
}

type indexedFeature struct {
	feature Feature
	bound   orb.Bound
}

func rect(b orb.Bound) rtreego.Rect {
	// rtreego rejects zero sized rectangles (points, axis aligned lines)
	eps := 1e-9 * math.Max(1, math.Max(math.Abs(b.Min[0]), math.Abs(b.Min[1])))
	lengths := []float64{
		math.Max(b.Max[0]-b.Min[0], eps),
		math.Max(b.Max[1]-b.Min[1], eps),
	}
	r, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return r
}

func (f *indexedFeature) Bounds() rtreego.Rect {
	return rect(f.bound)
}

// Index is an R-tree over the bounding boxes of overlay features.
type Index struct {
	rtree *rtreego.Rtree
	count int
	bound orb.Bound
}

// NewIndex indexes features. Features with an empty geometry are skipped.
func NewIndex(features []Feature) *Index {
	idx := &Index{rtree: rtreego.NewTree(2, 25, 50)}
	for _, f := range features {
		if f.Geometry == nil || isEmptyGeometry(f.Geometry) {
			continue
		}
		b := f.Geometry.Bound()
		if idx.count == 0 {
			idx.bound = b
		} else {
			idx.bound = idx.bound.Union(b)
		}
		idx.rtree.Insert(&indexedFeature{feature: f, bound: b})
		idx.count++
	}
	return idx
}

func isEmptyGeometry(g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Point:
		return false
	case orb.MultiPoint:
		return len(g) == 0
	case orb.LineString:
		return len(g) == 0
	case orb.MultiLineString:
		return len(g) == 0
	case orb.Ring:
		return len(g) == 0
	case orb.Polygon:
		return len(g) == 0
	case orb.MultiPolygon:
		return len(g) == 0
	case orb.Collection:
		return len(g) == 0
	}
	return false
}

// Len returns the number of indexed features.
func (idx *Index) Len() int {
	return idx.count
}

// Bound returns the bounding box of all indexed features.
func (idx *Index) Bound() orb.Bound {
	return idx.bound
}

// Query returns the features whose bounding box intersects e, ordered by ID.
func (idx *Index) Query(e sen2map.Extent) []Feature {
	if idx.count == 0 {
		return nil
	}
	q := rect(orb.Bound{Min: orb.Point{e.XMin, e.YMin}, Max: orb.Point{e.XMax, e.YMax}})
	spatials := idx.rtree.SearchIntersect(q)
	ret := make([]Feature, 0, len(spatials))
	for _, s := range spatials {
		ret = append(ret, s.(*indexedFeature).feature)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret
}
