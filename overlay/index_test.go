package overlay

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/pyeo/sen2map"
	"github.com/stretchr/testify/assert"
)

func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}}
}

func ids(features []Feature) []int {
	ret := []int{}
	for _, f := range features {
		ret = append(ret, f.ID)
	}
	return ret
}

func TestIndex(t *testing.T) {
	features := []Feature{
		{ID: 3, Geometry: square(500000, 2000000, 1000)},
		{ID: 1, Geometry: square(520000, 2020000, 5000)},
		{ID: 2, Geometry: orb.Point{505000, 2005000}},
		{ID: 4, Geometry: orb.LineString{{500000, 2050000}, {600000, 2050000}}},
		{ID: 5, Geometry: orb.MultiPolygon{}},
		{ID: 6},
	}
	idx := NewIndex(features)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, orb.Bound{Min: orb.Point{500000, 2000000}, Max: orb.Point{600000, 2050000}}, idx.Bound())

	testfunc := func(e sen2map.Extent, expected []int) {
		t.Helper()
		assert.Equal(t, expected, ids(idx.Query(e)), "query %s", e)
	}
	testfunc(sen2map.Extent{XMin: 499000, XMax: 610000, YMin: 1990000, YMax: 2100000}, []int{1, 2, 3, 4})
	testfunc(sen2map.Extent{XMin: 504000, XMax: 506000, YMin: 2004000, YMax: 2006000}, []int{2})
	testfunc(sen2map.Extent{XMin: 510000, XMax: 530000, YMin: 2015000, YMax: 2030000}, []int{1})
	// horizontal lines have a zero height bounding box
	testfunc(sen2map.Extent{XMin: 550000, XMax: 560000, YMin: 2049000, YMax: 2051000}, []int{4})
	testfunc(sen2map.Extent{XMin: 0, XMax: 1000, YMin: 0, YMax: 1000}, []int{})
}

func TestEmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Query(sen2map.Extent{XMin: 0, XMax: 1, YMin: 0, YMax: 1}))
}

func TestReprojectedName(t *testing.T) {
	assert.Equal(t, "Sitios_Poly_4326.shp", ReprojectedName("Sitios_Poly.shp", 4326))
	assert.Equal(t, "/data/a.b/shape_32631", ReprojectedName("/data/a.b/shape", 32631))
}
