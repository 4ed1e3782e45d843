package sen2map

import (
	"fmt"
	"math"
)

// An Extent is an axis aligned rectangle expressed in the coordinates of a
// single projected reference system (usually meters).
type Extent struct {
	XMin, XMax float64
	YMin, YMax float64
}

func (e Extent) Width() float64 {
	return e.XMax - e.XMin
}

func (e Extent) Height() float64 {
	return e.YMax - e.YMin
}

func (e Extent) String() string {
	return fmt.Sprintf("[%g %g %g %g]", e.XMin, e.XMax, e.YMin, e.YMax)
}

// Validate returns an ErrInvalidExtent if the extent is empty, inverted or
// not finite along any axis.
func (e Extent) Validate() error {
	for _, v := range []float64{e.XMin, e.XMax, e.YMin, e.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidExtent{Extent: e, msg: "non finite bound"}
		}
	}
	if e.XMin >= e.XMax {
		return ErrInvalidExtent{Extent: e, msg: "xmin must be below xmax"}
	}
	if e.YMin >= e.YMax {
		return ErrInvalidExtent{Extent: e, msg: "ymin must be below ymax"}
	}
	return nil
}

// Window returns the sub (or super) extent spanning the given fractions of e.
// (0,1,0,1) is e itself, (0.5,1,0.5,1) its upper right quadrant and
// (-0.5,1.5,-0.5,1.5) e enlarged by half its size on every side.
func (e Extent) Window(fx0, fx1, fy0, fy1 float64) Extent {
	w, h := e.Width(), e.Height()
	return Extent{
		XMin: e.XMin + w*fx0,
		XMax: e.XMin + w*fx1,
		YMin: e.YMin + h*fy0,
		YMax: e.YMin + h*fy1,
	}
}

// Intersect returns the intersection of e and o, and false if they do not
// overlap.
func (e Extent) Intersect(o Extent) (Extent, bool) {
	r := Extent{
		XMin: math.Max(e.XMin, o.XMin),
		XMax: math.Min(e.XMax, o.XMax),
		YMin: math.Max(e.YMin, o.YMin),
		YMax: math.Min(e.YMax, o.YMax),
	}
	if r.XMin >= r.XMax || r.YMin >= r.YMax {
		return Extent{}, false
	}
	return r, true
}

// ExtentFromGeoTransform computes the footprint of a sizeX*sizeY raster
// georeferenced by the gdal-style affine geotransform gt. Rotated
// geotransforms are not supported.
func ExtentFromGeoTransform(gt [6]float64, sizeX, sizeY int) Extent {
	x0, x1 := gt[0], gt[0]+float64(sizeX)*gt[1]
	y0, y1 := gt[3]+float64(sizeY)*gt[5], gt[3]
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	return Extent{XMin: x0, XMax: x1, YMin: y0, YMax: y1}
}

// Pixel returns the pixel and line of the raster cell containing the world
// coordinate x,y for the north-up geotransform gt.
func Pixel(gt [6]float64, x, y float64) (int, int) {
	pixel := int(math.Floor((x - gt[0]) / gt[1]))
	line := int(math.Floor((y - gt[3]) / gt[5]))
	return pixel, line
}
