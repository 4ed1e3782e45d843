package render

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var square = sen2map.Extent{XMin: 0, XMax: 100, YMin: 0, YMax: 100}

func rgba(c color.Color) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

// touched reports whether any pixel of r differs from bg.
func touched(img *image.RGBA, r image.Rectangle, bg color.Color) bool {
	want := rgba(bg)
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.RGBAAt(x, y) != want {
				return true
			}
		}
	}
	return false
}

func TestFit(t *testing.T) {
	testfunc := func(r image.Rectangle, aspect float64, expected image.Rectangle) {
		t.Helper()
		assert.Equal(t, expected, fit(r, aspect))
	}
	testfunc(image.Rect(0, 0, 200, 100), 1, image.Rect(50, 0, 150, 100))
	testfunc(image.Rect(0, 0, 100, 200), 1, image.Rect(0, 50, 100, 150))
	testfunc(image.Rect(10, 10, 110, 60), 2, image.Rect(10, 10, 110, 60))
	testfunc(image.Rect(0, 0, 100, 100), 0.5, image.Rect(25, 0, 75, 100))
}

func TestNew(t *testing.T) {
	_, err := New(400, 300, sen2map.Extent{XMin: 1, XMax: 1, YMin: 0, YMax: 1})
	assert.Error(t, err)
	_, err = New(8, 300, square)
	assert.Error(t, err)

	c, err := New(400, 300, square)
	require.NoError(t, err)
	p := c.Plot()
	assert.True(t, p.In(c.Image().Bounds()))
	assert.InDelta(t, p.Dx(), p.Dy(), 1)
	assert.Equal(t, rgba(color.White), c.Image().RGBAAt(0, 0))
	assert.Equal(t, PlotBackground, c.Image().RGBAAt((p.Min.X+p.Max.X)/2, (p.Min.Y+p.Max.Y)/2))
	assert.Equal(t, square, c.View())
}

func TestToPixel(t *testing.T) {
	c, err := New(500, 400, sen2map.Extent{XMin: 1000, XMax: 3000, YMin: -50, YMax: 950})
	require.NoError(t, err)
	p := c.Plot()
	x, y := c.ToPixel(1000, 950)
	assert.InDelta(t, float64(p.Min.X), x, 1e-9)
	assert.InDelta(t, float64(p.Min.Y), y, 1e-9)
	x, y = c.ToPixel(3000, -50)
	assert.InDelta(t, float64(p.Max.X), x, 1e-9)
	assert.InDelta(t, float64(p.Max.Y), y, 1e-9)
	x, y = c.ToPixel(2000, 450)
	assert.InDelta(t, float64(p.Min.X+p.Max.X)/2, x, 1e-9)
	assert.InDelta(t, float64(p.Min.Y+p.Max.Y)/2, y, 1e-9)
}

func TestDrawRaster(t *testing.T) {
	c, err := New(400, 400, square)
	require.NoError(t, err)
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{255, 0, 0, 255})
		}
	}
	// left half of the image is opaque, drawn on the upper right quadrant
	c.DrawRaster(img, sen2map.Extent{XMin: 50, XMax: 100, YMin: 50, YMax: 100})

	px, py := c.ToPixel(60, 75)
	got := c.Image().RGBAAt(int(px), int(py))
	assert.InDelta(t, 255, got.R, 2)
	assert.InDelta(t, 0, got.G, 2)
	px, py = c.ToPixel(95, 75)
	assert.Equal(t, PlotBackground, c.Image().RGBAAt(int(px), int(py)))
	px, py = c.ToPixel(25, 25)
	assert.Equal(t, PlotBackground, c.Image().RGBAAt(int(px), int(py)))
}

func TestDashes(t *testing.T) {
	parts := dashes([][2]float64{{0, 0}, {20, 0}}, []float64{6, 4})
	require.Len(t, parts, 2)
	assert.Equal(t, [][2]float64{{0, 0}, {6, 0}}, parts[0])
	assert.Equal(t, [][2]float64{{10, 0}, {16, 0}}, parts[1])

	// dashes continue around corners
	parts = dashes([][2]float64{{0, 0}, {4, 0}, {4, 10}}, []float64{6, 4})
	require.Len(t, parts, 2)
	assert.Equal(t, [][2]float64{{0, 0}, {4, 0}, {4, 2}}, parts[0])
	assert.Equal(t, [][2]float64{{4, 6}, {4, 10}}, parts[1])
}

func TestDrawGridlines(t *testing.T) {
	c, err := New(400, 400, square)
	require.NoError(t, err)
	p := c.Plot()
	c.DrawGridlines(sen2map.TickSet{X: []float64{-10, 50}, Y: []float64{50, 200}}, GridColor)

	px, _ := c.ToPixel(50, 0)
	col := int(math.Floor(px))
	assert.True(t, touched(c.Image(), image.Rect(col-1, p.Min.Y+1, col+2, p.Min.Y+4), PlotBackground))
	// gap of the first dash
	assert.False(t, touched(c.Image(), image.Rect(col-1, p.Min.Y+7, col+2, p.Min.Y+9), PlotBackground))
	// ticks outside of the view are not drawn
	x0, _ := c.ToPixel(10, 0)
	assert.False(t, touched(c.Image(), image.Rect(p.Min.X, p.Min.Y, int(x0), p.Min.Y+20), PlotBackground))
	// nothing leaks outside the plot
	assert.False(t, touched(c.Image(), image.Rect(0, 0, 400, p.Min.Y), color.White))
}

func TestDrawTickLabelsAndTitle(t *testing.T) {
	c, err := New(400, 400, square)
	require.NoError(t, err)
	p := c.Plot()
	c.DrawTickLabels(sen2map.TickSet{X: []float64{0, 50, 100}, Y: []float64{0, 50, 100}}, color.Black)
	assert.True(t, touched(c.Image(), image.Rect(p.Min.X-20, p.Max.Y, p.Max.X+20, 400), color.White))
	assert.True(t, touched(c.Image(), image.Rect(0, p.Min.Y-10, p.Min.X, p.Max.Y+10), color.White))
	assert.False(t, touched(c.Image(), image.Rect(0, 0, 400, p.Min.Y-10), color.White))

	c.DrawTitle("quicklook", color.Black)
	assert.True(t, touched(c.Image(), image.Rect(0, 0, 400, p.Min.Y), color.White))
}

func TestDrawGeometry(t *testing.T) {
	c, err := New(400, 400, square)
	require.NoError(t, err)
	poly := orb.Polygon{{{20, 20}, {40, 20}, {40, 40}, {20, 40}, {20, 20}}}
	c.DrawGeometry(orb.Collection{poly, orb.Point{80, 80}}, OverlayColor, 2)

	px, py := c.ToPixel(30, 20)
	assert.True(t, touched(c.Image(), image.Rect(int(px)-1, int(py)-2, int(px)+2, int(py)+3), PlotBackground))
	px, py = c.ToPixel(30, 30)
	assert.False(t, touched(c.Image(), image.Rect(int(px)-5, int(py)-5, int(px)+5, int(py)+5), PlotBackground))
	px, py = c.ToPixel(80, 80)
	assert.True(t, touched(c.Image(), image.Rect(int(px)-5, int(py)-5, int(px)+5, int(py)+5), PlotBackground))
}

func TestDrawScaleBar(t *testing.T) {
	c, err := New(400, 400, square)
	require.NoError(t, err)
	sb := geo.ScaleBar{
		Segments: []geo.MapSegment{
			{From: orb.Point{10, 10}, To: orb.Point{20, 10}, Fill: sen2map.FillWhite},
			{From: orb.Point{20, 10}, To: orb.Point{30, 10}, Fill: sen2map.FillDimGrey},
		},
		Labels: []geo.MapLabel{{At: orb.Point{10, 10}, Text: "0"}},
	}
	c.DrawScaleBar(sb, color.Black, 6)

	px, py := c.ToPixel(15, 10)
	assert.InDelta(t, 255, c.Image().RGBAAt(int(px), int(py)).B, 2)
	px, py = c.ToPixel(25, 10)
	assert.InDelta(t, 105, c.Image().RGBAAt(int(px), int(py)).B, 2)
	px, py = c.ToPixel(10, 10)
	assert.True(t, touched(c.Image(), image.Rect(int(px)-10, int(py)-30, int(px)+10, int(py)-3), PlotBackground))
}

func TestParseColor(t *testing.T) {
	testfunc := func(s string, expected color.RGBA) {
		t.Helper()
		c, err := ParseColor(s)
		require.NoError(t, err)
		assert.Equal(t, expected, rgba(c))
	}
	testfunc("dimgrey", color.RGBA{105, 105, 105, 255})
	testfunc(" Black", color.RGBA{0, 0, 0, 255})
	testfunc("#ff8000", color.RGBA{255, 128, 0, 255})
	testfunc("#ffffff00", color.RGBA{0, 0, 0, 0})

	for _, s := range []string{"", "notacolor", "#fff", "#gg0000"} {
		_, err := ParseColor(s)
		assert.Error(t, err, s)
	}
}

func TestEncodeJPEG(t *testing.T) {
	c, err := New(120, 80, square)
	require.NoError(t, err)
	buf := bytes.Buffer{}
	require.NoError(t, c.EncodeJPEG(&buf, 90))
	img, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), img.Bounds())
}
