// Package render draws quicklook maps: a raster composite placed in map
// coordinates with its gridlines, tick labels, vector overlay, title and
// scale bar.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/aclements/go-moremath/scale"
	"github.com/golang/freetype"
	"github.com/golang/freetype/raster"
	"github.com/golang/freetype/truetype"
	"github.com/pyeo/sen2map"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/f64"
)

var (
	PlotBackground = color.RGBA{223, 230, 236, 255}
	GridColor      = color.RGBA{128, 128, 128, 255}
	OverlayColor   = color.RGBA{255, 255, 0, 255}
)

// pixel coordinates are clamped to this range before rasterization
const maxPixelCoord = 1e5

var (
	fontOnce sync.Once
	regular  *truetype.Font
	fontErr  error
)

func loadFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regular, fontErr = freetype.ParseFont(goregular.TTF)
	})
	return regular, fontErr
}

// A Canvas is an image holding a map of a view extent. The map is drawn in a
// plot area of the same aspect ratio as the view, surrounded by margins for
// the title and the tick labels.
type Canvas struct {
	img  *image.RGBA
	plot image.Rectangle
	view sen2map.Extent
	xs   scale.Linear
	ys   scale.Linear

	face      font.Face
	titleFace font.Face
	ras       *raster.Rasterizer
}

// New creates a width*height canvas for a map of view.
func New(width, height int, view sen2map.Extent) (*Canvas, error) {
	if err := view.Validate(); err != nil {
		return nil, err
	}
	if width < 16 || height < 16 {
		return nil, fmt.Errorf("canvas size %dx%d is too small", width, height)
	}
	f, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	labelSize := math.Max(8, float64(height)/70)
	c := &Canvas{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		view: view,
		xs:   scale.Linear{Min: view.XMin, Max: view.XMax},
		ys:   scale.Linear{Min: view.YMin, Max: view.YMax},
		face: truetype.NewFace(f, &truetype.Options{
			Size: labelSize, DPI: 72, Hinting: font.HintingFull,
		}),
		titleFace: truetype.NewFace(f, &truetype.Options{
			Size: labelSize * 1.5, DPI: 72, Hinting: font.HintingFull,
		}),
		ras: raster.NewRasterizer(width, height),
	}

	lh := c.face.Metrics().Height.Ceil()
	labelWidth := font.MeasureString(c.face, "8888888").Ceil()
	top := 2 * c.titleFace.Metrics().Height.Ceil()
	bottom := 3 * lh
	left := labelWidth + lh
	right := labelWidth/2 + lh
	avail := image.Rect(left, top, width-right, height-bottom)
	if avail.Dx() < 1 || avail.Dy() < 1 {
		avail = image.Rect(0, 0, width, height)
	}
	c.plot = fit(avail, view.Width()/view.Height())

	draw.Draw(c.img, c.img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(c.img, c.plot, image.NewUniform(PlotBackground), image.Point{}, draw.Src)
	return c, nil
}

// fit returns the largest rectangle of the given aspect ratio (width/height)
// centered in r.
func fit(r image.Rectangle, aspect float64) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if float64(w)/float64(h) > aspect {
		nw := int(math.Max(1, math.Round(float64(h)*aspect)))
		x0 := r.Min.X + (w-nw)/2
		return image.Rect(x0, r.Min.Y, x0+nw, r.Max.Y)
	}
	nh := int(math.Max(1, math.Round(float64(w)/aspect)))
	y0 := r.Min.Y + (h-nh)/2
	return image.Rect(r.Min.X, y0, r.Max.X, y0+nh)
}

func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Plot returns the pixel rectangle of the map area.
func (c *Canvas) Plot() image.Rectangle {
	return c.plot
}

func (c *Canvas) View() sen2map.Extent {
	return c.view
}

// ToPixel converts map coordinates to (fractional) canvas pixel coordinates.
func (c *Canvas) ToPixel(x, y float64) (float64, float64) {
	px := float64(c.plot.Min.X) + c.xs.Map(x)*float64(c.plot.Dx())
	py := float64(c.plot.Max.Y) - c.ys.Map(y)*float64(c.plot.Dy())
	return px, py
}

// DrawRaster draws img georeferenced on extent. Transparent pixels leave the
// plot background untouched.
func (c *Canvas) DrawRaster(img image.Image, extent sen2map.Extent) {
	b := img.Bounds()
	x0, y0 := c.ToPixel(extent.XMin, extent.YMax)
	x1, y1 := c.ToPixel(extent.XMax, extent.YMin)
	sx := (x1 - x0) / float64(b.Dx())
	sy := (y1 - y0) / float64(b.Dy())
	s2d := f64.Aff3{
		sx, 0, x0 - sx*float64(b.Min.X),
		0, sy, y0 - sy*float64(b.Min.Y),
	}
	draw.ApproxBiLinear.Transform(c.plotImage(), s2d, img, b, draw.Over, nil)
}

func (c *Canvas) plotImage() *image.RGBA {
	return c.img.SubImage(c.plot).(*image.RGBA)
}

// DrawFrame strokes the border of the plot area.
func (c *Canvas) DrawFrame(col color.Color) {
	r := c.plot
	x0, y0 := float64(r.Min.X)+0.5, float64(r.Min.Y)+0.5
	x1, y1 := float64(r.Max.X)-0.5, float64(r.Max.Y)-0.5
	c.stroke([][2]float64{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}, col, 1, nil)
}

// EncodeJPEG writes the canvas as a jpeg of the given quality (1-100).
func (c *Canvas) EncodeJPEG(w io.Writer, quality int) error {
	return jpeg.Encode(w, c.img, &jpeg.Options{Quality: quality})
}

func (c *Canvas) EncodePNG(w io.Writer) error {
	return png.Encode(w, c.img)
}
