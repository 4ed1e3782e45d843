package pipeline

import (
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/blob"
	"github.com/pyeo/sen2map/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	godal.RegisterAll()
}

// 10980m utm tile at 60m resolution
var tile = sen2map.Extent{XMin: 499980, XMax: 510960, YMin: 2089020, YMax: 2100000}

const sites = `{
"type": "FeatureCollection",
"features": [
{"type": "Feature", "properties": {"name": "a"},
 "geometry": {"type": "Polygon", "coordinates": [[[3.0, 18.9], [3.05, 18.9], [3.05, 18.95], [3.0, 18.95], [3.0, 18.9]]]}}
]}`

func writeBand(t *testing.T, name string, value uint16) {
	t.Helper()
	w, h := 183, 183
	ds, err := godal.Create(godal.GTiff, name, 1, godal.UInt16, w, h)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{tile.XMin, 60, 0, tile.YMax, 0, -60}))
	sr, err := godal.NewSpatialRefFromEPSG(32631)
	require.NoError(t, err)
	require.NoError(t, ds.SetSpatialRef(sr))
	sr.Close()
	buf := make([]uint16, w*h)
	for i := range buf {
		buf[i] = value + uint16(i%w)
	}
	require.NoError(t, ds.Bands()[0].Write(0, 0, buf, w, h))
	require.NoError(t, ds.Close())
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	tiffs := filepath.Join(dir, "data", "S2A_MSIL1C", "tiff")
	require.NoError(t, os.MkdirAll(tiffs, 0o755))
	for i, b := range []string{"B02", "B03", "B04"} {
		writeBand(t, filepath.Join(tiffs, b+".tif"), uint16(500*(i+1)))
	}
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.DataDir = dir
	cfg.Scene = "S2A_MSIL1C"
	cfg.Bands = []int{3, 2, 1}
	cfg.Width, cfg.Height = 300, 240
	cfg.ScaleBar.Length = 0
	return cfg
}

func TestPlanView(t *testing.T) {
	utm, err := godal.NewSpatialRefFromEPSG(32631)
	require.NoError(t, err)
	defer utm.Close()

	sb := ScaleBarSettings{LocationX: 0.1, LocationY: 0.05, Options: []sen2map.ScaleBarOption{sen2map.Bars(4)}}
	vp, err := PlanView(utm, tile, sen2map.DefaultViews()[0], 10, sb)
	require.NoError(t, err)
	assert.Equal(t, tile, vp.Extent)
	assert.False(t, vp.Fallback)
	assert.Len(t, vp.Ticks.X, 11)
	assert.Len(t, vp.Ticks.Y, 11)
	assert.Equal(t, 2.0, vp.ScaleBar.Plan.Length)
	require.Len(t, vp.ScaleBar.Segments, 4)
	// the bar starts a tenth of the view width from its left edge
	assert.InDelta(t, tile.XMin+0.1*tile.Width(), vp.ScaleBar.Segments[0].From[0], 20)
	assert.InDelta(t, 2000, vp.ScaleBar.Segments[3].To[0]-vp.ScaleBar.Segments[0].From[0], 5)

	vp, err = PlanView(utm, tile, sen2map.View{Name: "zoomin", Window: [4]float64{0.5, 1, 0.5, 1}}, 4, sb)
	require.NoError(t, err)
	assert.InDelta(t, (tile.XMin+tile.XMax)/2, vp.Extent.XMin, 1e-6)
	assert.Len(t, vp.Ticks.X, 5)

	_, err = PlanView(utm, tile, sen2map.View{Name: "empty", Window: [4]float64{0.5, 0.5, 0, 1}}, 4, sb)
	assert.Error(t, err)
}

func TestPlanFallback(t *testing.T) {
	geo, err := godal.NewSpatialRefFromEPSG(4326)
	require.NoError(t, err)
	defer geo.Close()
	wkt, err := geo.WKT()
	require.NoError(t, err)

	cfg := testConfig(t)
	r := New(cfg, blob.NewStore(nil, nil))
	plans, err := r.Plan(context.Background(), wkt, sen2map.Extent{XMin: 0, XMax: 1, YMin: 45, YMax: 46})
	require.NoError(t, err)
	require.Len(t, plans, 3)
	// a zero longitude cannot be rounded
	assert.True(t, plans[0].Fallback)
	assert.Equal(t, 0.0, plans[0].Ticks.X[0])
	assert.Equal(t, 1.0, plans[0].Ticks.X[10])
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	r := New(cfg, blob.NewStore(nil, nil))
	files, err := r.Bands(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "B04.tif", filepath.Base(files[0]))
	assert.Equal(t, "B02.tif", filepath.Base(files[2]))

	plans, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, tile, plans[0].Extent)
	assert.Equal(t, "zoomout", plans[1].View.Name)
	assert.InDelta(t, tile.Width()*2, plans[1].Extent.Width(), 1e-6)

	for _, name := range []string{"map1.jpg", "map2.jpg", "map3.jpg"} {
		f, err := os.Open(filepath.Join(cfg.DataDir, "plots_quicklook", name))
		require.NoError(t, err)
		img, err := jpeg.Decode(f)
		f.Close()
		require.NoError(t, err, name)
		assert.Equal(t, image.Rect(0, 0, 300, 240), img.Bounds(), name)
	}
}

func TestRunOverlay(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "sites.geojson"), []byte(sites), 0o644))
	cfg.Shapefile = "sites.geojson"
	cfg.Views = []sen2map.View{{Name: "full", File: "map1.png", Window: [4]float64{0, 1, 0, 1}}}

	_, err := New(cfg, blob.NewStore(nil, nil)).Run(context.Background())
	require.NoError(t, err)
	f, err := os.Open(filepath.Join(cfg.DataDir, "plots_sites", "map1.png"))
	require.NoError(t, err)
	_, err = png.Decode(f)
	f.Close()
	assert.NoError(t, err)

	cfg.Bands = []int{1, 2, 7}
	_, err = New(cfg, blob.NewStore(nil, nil)).Run(context.Background())
	assert.EqualError(t, err, "band 7 out of range [1,3]")
}
