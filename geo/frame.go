// Package geo builds the local metric frames in which scale bars are planned.
package geo

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"
	"github.com/pyeo/sen2map"
)

const lonLatProj4 = "+proj=longlat +datum=WGS84 +no_defs"

// edgeSamples is the number of points sampled along each side of an extent
// when computing its footprint in another reference system.
const edgeSamples = 32

// A Frame is a transverse mercator projection centered on a point of a map.
// Distances measured along its central parallel are true ground distances,
// whatever the projection of the map.
type Frame struct {
	// Extent is the footprint of the map in the frame, in meters.
	Extent sen2map.Extent
	// Lon, Lat of the frame origin
	Lon, Lat float64

	fromLocal *godal.Transform
}

// NewFrame creates the frame of view, a map extent expressed in mapSR. The
// frame is centered at fractions fx,fy of the longitude and latitude span of
// the view.
func NewFrame(mapSR *godal.SpatialRef, view sen2map.Extent, fx, fy float64) (*Frame, error) {
	if err := view.Validate(); err != nil {
		return nil, err
	}
	lonlat, err := godal.NewSpatialRefFromProj4(lonLatProj4)
	if err != nil {
		return nil, fmt.Errorf("lonlat srs: %w", err)
	}
	defer lonlat.Close()

	ll, err := footprint(mapSR, lonlat, view)
	if err != nil {
		return nil, fmt.Errorf("view footprint: %w", err)
	}
	f := &Frame{
		Lon: ll.XMin + ll.Width()*fx,
		Lat: ll.YMin + ll.Height()*fy,
	}
	tm, err := godal.NewSpatialRefFromProj4(fmt.Sprintf(
		"+proj=tmerc +lat_0=%.9f +lon_0=%.9f +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs",
		f.Lat, f.Lon))
	if err != nil {
		return nil, fmt.Errorf("local tmerc srs: %w", err)
	}
	defer tm.Close()

	if f.Extent, err = footprint(mapSR, tm, view); err != nil {
		return nil, fmt.Errorf("local footprint: %w", err)
	}
	if f.fromLocal, err = godal.NewTransform(tm, mapSR); err != nil {
		return nil, fmt.Errorf("local to map transform: %w", err)
	}
	return f, nil
}

// Close releases the resources held by the frame.
func (f *Frame) Close() {
	if f.fromLocal != nil {
		f.fromLocal.Close()
		f.fromLocal = nil
	}
}

// ToMap converts local coordinates to map coordinates in place.
func (f *Frame) ToMap(xs, ys []float64) error {
	return transform(f.fromLocal, xs, ys)
}

// A MapSegment is a scale bar segment expressed in map coordinates.
type MapSegment struct {
	From, To orb.Point
	Fill     sen2map.Fill
}

type MapLabel struct {
	At   orb.Point
	Text string
}

// A ScaleBar is a scale bar plan along with its segments and labels
// converted to map coordinates.
type ScaleBar struct {
	Plan     sen2map.ScaleBarPlan
	Segments []MapSegment
	Labels   []MapLabel
}

// ScaleBar plans a scale bar in the frame and converts it to map
// coordinates.
func (f *Frame) ScaleBar(options ...sen2map.ScaleBarOption) (ScaleBar, error) {
	plan, err := sen2map.PlanScaleBar(f.Extent, options...)
	if err != nil {
		return ScaleBar{}, err
	}
	sb := ScaleBar{Plan: plan}
	xs := make([]float64, 0, 2*len(plan.Segments)+len(plan.Labels))
	ys := make([]float64, 0, cap(xs))
	for _, s := range plan.Segments {
		xs = append(xs, s.X0, s.X1)
		ys = append(ys, plan.Y, plan.Y)
	}
	for _, l := range plan.Labels {
		xs = append(xs, l.X)
		ys = append(ys, l.Y)
	}
	if err := f.ToMap(xs, ys); err != nil {
		return ScaleBar{}, fmt.Errorf("scale bar to map: %w", err)
	}
	sb.Segments = make([]MapSegment, len(plan.Segments))
	for i, s := range plan.Segments {
		sb.Segments[i] = MapSegment{
			From: orb.Point{xs[2*i], ys[2*i]},
			To:   orb.Point{xs[2*i+1], ys[2*i+1]},
			Fill: s.Fill,
		}
	}
	off := 2 * len(plan.Segments)
	sb.Labels = make([]MapLabel, len(plan.Labels))
	for i, l := range plan.Labels {
		sb.Labels[i] = MapLabel{At: orb.Point{xs[off+i], ys[off+i]}, Text: l.Text}
	}
	return sb, nil
}

// footprint returns the bounding box in dst of extent e expressed in src,
// computed on points sampled along its edges.
func footprint(src, dst *godal.SpatialRef, e sen2map.Extent) (sen2map.Extent, error) {
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return sen2map.Extent{}, err
	}
	defer trn.Close()
	xs, ys := perimeter(e, edgeSamples)
	if err := transform(trn, xs, ys); err != nil {
		return sen2map.Extent{}, err
	}
	return bounds(xs, ys), nil
}

func transform(trn *godal.Transform, xs, ys []float64) error {
	zs := make([]float64, len(xs))
	ok := make([]bool, len(xs))
	if err := trn.TransformEx(xs, ys, zs, ok); err != nil {
		return err
	}
	for i := range ok {
		if !ok[i] {
			return fmt.Errorf("failed to transform point %d", i)
		}
	}
	return nil
}

// perimeter samples n points along each side of e.
func perimeter(e sen2map.Extent, n int) ([]float64, []float64) {
	xs := make([]float64, 0, 4*n)
	ys := make([]float64, 0, 4*n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n)
		xs = append(xs, e.XMin+f*e.Width(), e.XMax, e.XMax-f*e.Width(), e.XMin)
		ys = append(ys, e.YMin, e.YMin+f*e.Height(), e.YMax, e.YMax-f*e.Height())
	}
	return xs, ys
}

func bounds(xs, ys []float64) sen2map.Extent {
	e := sen2map.Extent{
		XMin: math.Inf(1), XMax: math.Inf(-1),
		YMin: math.Inf(1), YMax: math.Inf(-1),
	}
	for i := range xs {
		e.XMin = math.Min(e.XMin, xs[i])
		e.XMax = math.Max(e.XMax, xs[i])
		e.YMin = math.Min(e.YMin, ys[i])
		e.YMax = math.Max(e.YMax, ys[i])
	}
	return e
}
