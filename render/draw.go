package render

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/freetype/raster"
	"github.com/paulmach/orb"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/geo"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

var gridDash = []float64{6, 4}

type hAlign int

const (
	alignLeft hAlign = iota
	alignCenter
	alignRight
)

type vAlign int

const (
	alignTop vAlign = iota
	alignMiddle
	alignBottom
)

func fx(v float64) fixed.Int26_6 {
	v = math.Max(-maxPixelCoord, math.Min(maxPixelCoord, v))
	return fixed.Int26_6(math.Round(v * 64))
}

func fpt(p [2]float64) fixed.Point26_6 {
	return fixed.Point26_6{X: fx(p[0]), Y: fx(p[1])}
}

// stroke draws a polyline of pixel coordinates, clipped to the plot area. A
// non nil dash alternates drawn and skipped lengths along the line.
func (c *Canvas) stroke(pts [][2]float64, col color.Color, width float64, dash []float64) {
	if len(pts) < 2 {
		return
	}
	parts := [][][2]float64{pts}
	if len(dash) > 0 {
		parts = dashes(pts, dash)
	}
	c.ras.Clear()
	c.ras.UseNonZeroWinding = true
	for _, part := range parts {
		var path raster.Path
		path.Start(fpt(part[0]))
		for _, p := range part[1:] {
			path.Add1(fpt(p))
		}
		c.ras.AddStroke(path, fx(width), raster.ButtCapper, raster.RoundJoiner)
	}
	painter := raster.NewRGBAPainter(c.plotImage())
	painter.SetColor(col)
	c.ras.Rasterize(painter)
}

// dashes splits a polyline into its drawn pieces for the given on/off
// pattern.
func dashes(pts [][2]float64, pattern []float64) [][][2]float64 {
	var out [][][2]float64
	idx, on := 0, true
	rem := pattern[0]
	cur := [][2]float64{pts[0]}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		segLen := math.Hypot(b[0]-a[0], b[1]-a[1])
		pos := 0.0
		for segLen-pos > rem {
			pos += rem
			t := pos / segLen
			p := [2]float64{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
			if on {
				out = append(out, append(cur, p))
				cur = nil
			} else {
				cur = [][2]float64{p}
			}
			on = !on
			idx = (idx + 1) % len(pattern)
			rem = pattern[idx]
		}
		rem -= segLen - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

// text draws s anchored at x,y (pixels) on the full canvas.
func (c *Canvas) text(s string, x, y float64, h hAlign, v vAlign, face font.Face, col color.Color) {
	w := float64(font.MeasureString(face, s)) / 64
	m := face.Metrics()
	ascent, descent := float64(m.Ascent)/64, float64(m.Descent)/64
	switch h {
	case alignCenter:
		x -= w / 2
	case alignRight:
		x -= w
	}
	switch v {
	case alignTop:
		y += ascent
	case alignMiddle:
		y += (ascent - descent) / 2
	case alignBottom:
		y -= descent
	}
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fx(x), Y: fx(y)},
	}
	d.DrawString(s)
}

func (c *Canvas) inView(x, y float64) bool {
	eps := 1e-9 * math.Max(c.view.Width(), c.view.Height())
	return x >= c.view.XMin-eps && x <= c.view.XMax+eps && y >= c.view.YMin-eps && y <= c.view.YMax+eps
}

// DrawGridlines draws dashed lines at the ticks that fall inside the view.
func (c *Canvas) DrawGridlines(ts sen2map.TickSet, col color.Color) {
	for _, x := range ts.X {
		if !c.inView(x, c.view.YMin) {
			continue
		}
		px, _ := c.ToPixel(x, 0)
		c.stroke([][2]float64{{px, float64(c.plot.Min.Y)}, {px, float64(c.plot.Max.Y)}}, col, 1, gridDash)
	}
	for _, y := range ts.Y {
		if !c.inView(c.view.XMin, y) {
			continue
		}
		_, py := c.ToPixel(0, y)
		c.stroke([][2]float64{{float64(c.plot.Min.X), py}, {float64(c.plot.Max.X), py}}, col, 1, gridDash)
	}
}

// DrawTickLabels writes the x tick values below the plot, every other label
// one line lower, and the y tick values on its left.
func (c *Canvas) DrawTickLabels(ts sen2map.TickSet, col color.Color) {
	lh := float64(c.face.Metrics().Height.Ceil())
	n := 0
	for _, x := range ts.X {
		if !c.inView(x, c.view.YMin) {
			continue
		}
		px, _ := c.ToPixel(x, 0)
		y := float64(c.plot.Max.Y) + lh/3 + float64(n%2)*lh
		c.text(sen2map.FormatDistance(x), px, y, alignCenter, alignTop, c.face, col)
		n++
	}
	for _, y := range ts.Y {
		if !c.inView(c.view.XMin, y) {
			continue
		}
		_, py := c.ToPixel(0, y)
		c.text(sen2map.FormatDistance(y), float64(c.plot.Min.X)-lh/3, py, alignRight, alignMiddle, c.face, col)
	}
}

// DrawTitle writes title centered above the plot.
func (c *Canvas) DrawTitle(title string, col color.Color) {
	if title == "" {
		return
	}
	x := float64(c.plot.Min.X+c.plot.Max.X) / 2
	y := float64(c.plot.Min.Y) - float64(c.titleFace.Metrics().Height.Ceil())/3
	c.text(title, x, y, alignCenter, alignBottom, c.titleFace, col)
}

func (c *Canvas) pixels(ls []orb.Point) [][2]float64 {
	pts := make([][2]float64, len(ls))
	for i, p := range ls {
		pts[i][0], pts[i][1] = c.ToPixel(p[0], p[1])
	}
	return pts
}

// DrawGeometry strokes the outline of g, given in map coordinates. Points
// are drawn as small diamonds.
func (c *Canvas) DrawGeometry(g orb.Geometry, col color.Color, width float64) {
	switch g := g.(type) {
	case orb.Point:
		px, py := c.ToPixel(g[0], g[1])
		r := 2 * width
		c.stroke([][2]float64{{px - r, py}, {px, py - r}, {px + r, py}, {px, py + r}, {px - r, py}}, col, width, nil)
	case orb.MultiPoint:
		for _, p := range g {
			c.DrawGeometry(p, col, width)
		}
	case orb.LineString:
		c.stroke(c.pixels(g), col, width, nil)
	case orb.MultiLineString:
		for _, l := range g {
			c.stroke(c.pixels(l), col, width, nil)
		}
	case orb.Ring:
		c.stroke(c.pixels(g), col, width, nil)
	case orb.Polygon:
		for _, r := range g {
			c.stroke(c.pixels(r), col, width, nil)
		}
	case orb.MultiPolygon:
		for _, p := range g {
			c.DrawGeometry(p, col, width)
		}
	case orb.Collection:
		for _, sub := range g {
			c.DrawGeometry(sub, col, width)
		}
	case orb.Bound:
		c.DrawGeometry(g.ToPolygon(), col, width)
	}
}

// DrawScaleBar draws the segments of sb and its labels. Segments tagged
// FillForeground and the labels use col.
func (c *Canvas) DrawScaleBar(sb geo.ScaleBar, col color.Color, width float64) {
	for _, s := range sb.Segments {
		var fill color.Color
		switch s.Fill {
		case sen2map.FillWhite:
			fill = color.White
		case sen2map.FillDimGrey:
			fill = color.RGBA{105, 105, 105, 255}
		default:
			fill = col
		}
		c.stroke(c.pixels([]orb.Point{s.From, s.To}), fill, width, nil)
	}
	for _, l := range sb.Labels {
		px, py := c.ToPixel(l.At[0], l.At[1])
		c.text(l.Text, px, py-width/2, alignCenter, alignBottom, c.face, col)
	}
}
