package raster

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/pyeo/sen2map"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	godal.RegisterAll()
}

func TestOutputSize(t *testing.T) {
	testfunc := func(sx, sy, max, ew, eh int) {
		t.Helper()
		w, h := OutputSize(sx, sy, max)
		assert.Equal(t, ew, w)
		assert.Equal(t, eh, h)
		assert.LessOrEqual(t, w*h, max)
	}
	testfunc(100, 50, 10000, 100, 50)
	testfunc(10980, 10980, 1000*1000, 1000, 1000)
	testfunc(10980, 5490, 2*1000*1000, 2000, 1000)
	testfunc(1000, 1, 10, 10, 1)
}

// writeBand creates a single band uint16 geotiff covering a 640m*320m utm
// area at the given resolution, filled with fill(x,y).
func writeBand(t *testing.T, name string, res int, fill func(x, y int) uint16) string {
	t.Helper()
	w, h := 640/res, 320/res
	ds, err := godal.Create(godal.GTiff, name, 1, godal.UInt16, w, h)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{499980, float64(res), 0, 2100000, 0, -float64(res)}))
	sr, err := godal.NewSpatialRefFromEPSG(32631)
	require.NoError(t, err)
	require.NoError(t, ds.SetSpatialRef(sr))
	sr.Close()
	buf := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf[y*w+x] = fill(x*res, y*res)
		}
	}
	require.NoError(t, ds.Bands()[0].Write(0, 0, buf, w, h))
	require.NoError(t, ds.Close())
	return name
}

func scene(t *testing.T) []string {
	dir := t.TempDir()
	// the leftmost 20m are nodata in every band
	grad := func(x, y int) uint16 {
		if x < 20 {
			return 0
		}
		return uint16(100 + x + y)
	}
	return []string{
		writeBand(t, filepath.Join(dir, "B05.tif"), 20, grad),
		writeBand(t, filepath.Join(dir, "B04.tif"), 10, grad),
		writeBand(t, filepath.Join(dir, "B03.tif"), 10, func(x, y int) uint16 {
			if x < 20 {
				return 0
			}
			return 1000
		}),
	}
}

func TestReadComposite(t *testing.T) {
	files := scene(t)
	c, err := ReadComposite(context.Background(), files, Stretch(sen2map.StretchLinear))
	require.NoError(t, err)
	assert.Equal(t, 32, c.SizeX)
	assert.Equal(t, 16, c.SizeY)
	assert.Equal(t, sen2map.Extent{XMin: 499980, XMax: 500620, YMin: 2099680, YMax: 2100000}, c.Extent)
	assert.Contains(t, c.WKT, "32631")
	require.Equal(t, 32, c.Image.Bounds().Dx())
	require.Equal(t, 16, c.Image.Bounds().Dy())

	nodata := c.Image.NRGBAAt(0, 5)
	assert.Equal(t, uint8(0), nodata.A)
	first := c.Image.NRGBAAt(1, 0)
	last := c.Image.NRGBAAt(31, 15)
	assert.Equal(t, uint8(255), first.A)
	assert.Equal(t, uint8(1), first.R)
	assert.Equal(t, uint8(255), last.R)
	assert.Less(t, first.G, last.G)
	// a constant band saturates
	assert.Equal(t, uint8(255), first.B)

	c, err = ReadComposite(context.Background(), files, MaxPixels(128), Parallelism(1))
	require.NoError(t, err)
	assert.Equal(t, 16, c.Image.Bounds().Dx())
	assert.Equal(t, 8, c.Image.Bounds().Dy())
	assert.Equal(t, 32, c.SizeX)
	assert.Equal(t, 16, c.SizeY)
}

func TestReadCompositeErrors(t *testing.T) {
	files := scene(t)
	ctx := context.Background()
	_, err := ReadComposite(ctx, files[:2])
	assert.Error(t, err)
	_, err = ReadComposite(ctx, files, MaxPixels(0))
	assert.Error(t, err)
	_, err = ReadComposite(ctx, []string{files[0], files[1], "missing.tif"})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	files := scene(t)
	dst := filepath.Join(t.TempDir(), "rgb.tif")
	assert.Error(t, Export(files[1:], dst, nil, nil, nil))
	require.NoError(t, Export(files, dst, []string{"-a_nodata", "0"}, DefaultCreationOptions(), nil))
	ds, err := godal.Open(dst)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, 3, ds.Structure().NBands)
}
