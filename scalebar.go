package sen2map

import (
	"math"
	"strconv"
)

// Fill is the color tag of a scale bar segment.
type Fill int

const (
	// FillWhite is the fill of the first and every other segment
	FillWhite Fill = iota
	// FillDimGrey alternates with FillWhite
	FillDimGrey
	// FillForeground is the bar color of single segment scale bars
	FillForeground
)

func (f Fill) String() string {
	switch f {
	case FillWhite:
		return "white"
	case FillDimGrey:
		return "dimgrey"
	default:
		return "foreground"
	}
}

type Layout int

const (
	// LayoutLeft bars start at the location and are split into alternating
	// white/dimgrey segments, each boundary labeled with its distance.
	LayoutLeft Layout = iota
	// LayoutCentered bars are a single segment centered on the location.
	LayoutCentered
)

func (l Layout) String() string {
	if l == LayoutCentered {
		return "centered"
	}
	return "left"
}

// A Segment is a chunk of a scale bar, from X0 to X1 along the bar's line.
type Segment struct {
	X0, X1 float64
	Fill   Fill
}

// A Label is a piece of text anchored (bottom center) at X,Y.
type Label struct {
	X, Y float64
	Text string
}

// A ScaleBarPlan describes a scale bar in the coordinates of the frame it was
// planned in. All segments lie on the horizontal line at ordinate Y.
type ScaleBarPlan struct {
	Layout   Layout
	Length   float64 // in km
	Y        float64
	Segments []Segment
	Labels   []Label
}

// maxSnapSteps bounds the search for a 1, 2 or 5 leading digit.
const maxSnapSteps = 10

type scaleBarPlanner struct {
	length      float64
	bars        int
	locX, locY  float64
	locationSet bool
	layout      Layout
}

// A ScaleBarOption customizes PlanScaleBar.
type ScaleBarOption func(p *scaleBarPlanner) error

// Length forces the length of the scale bar, in km. By default a round length
// of roughly a fifth of the map width is chosen.
func Length(km float64) ScaleBarOption {
	return func(p *scaleBarPlanner) error {
		if !(km > 0) || math.IsInf(km, 1) {
			return ErrInvalidOption{"scale bar length must be >0"}
		}
		p.length = km
		return nil
	}
}

// Bars sets the number of alternating segments of a left anchored scale bar.
func Bars(count int) ScaleBarOption {
	return func(p *scaleBarPlanner) error {
		if count < 1 {
			return ErrInvalidOption{"scale bar subdivisions must be >=1"}
		}
		p.bars = count
		return nil
	}
}

// Location sets the anchor of the bar as fractions of the frame's width and
// height. It is the left end of left anchored bars and the center of centered
// ones. Defaults are (0.1,0.05) and (0.5,0.05) respectively.
func Location(fx, fy float64) ScaleBarOption {
	return func(p *scaleBarPlanner) error {
		if fx < 0 || fx > 1 || fy < 0 || fy > 1 || math.IsNaN(fx) || math.IsNaN(fy) {
			return ErrInvalidOption{"scale bar location must be within [0,1]"}
		}
		p.locX, p.locY = fx, fy
		p.locationSet = true
		return nil
	}
}

// Centered selects the single segment centered layout.
func Centered() ScaleBarOption {
	return func(p *scaleBarPlanner) error {
		p.layout = LayoutCentered
		return nil
	}
}

// ChooseLength returns a scale bar length in km for a map spanning spanMeters
// horizontally: a fifth of the span rounded to one significant figure, then
// snapped down to 1, 2 or 5 times a power of ten.
func ChooseLength(spanMeters float64) (float64, error) {
	if !(spanMeters > 0) || math.IsInf(spanMeters, 1) {
		return 0, ErrInvalidSpan{Span: spanMeters}
	}
	candidate := spanMeters / 5000
	order := int(math.Floor(math.Log10(candidate)))
	if order < -300 {
		return 0, ErrInvalidSpan{Span: spanMeters}
	}
	mantissa := int(math.RoundToEven(candidate / math.Pow10(order)))
	if mantissa >= 10 {
		return math.Pow10(order + 1), nil
	}
	for i := 0; i < maxSnapSteps && !isRoundMantissa(mantissa); i++ {
		mantissa--
	}
	return float64(mantissa) * math.Pow10(order), nil
}

func isRoundMantissa(m int) bool {
	return m == 1 || m == 2 || m == 5
}

// PlanScaleBar lays out a scale bar inside frame, the displayed map extent
// expressed in a local metric projection (e.g. a transverse mercator
// centered on the bar).
func PlanScaleBar(frame Extent, options ...ScaleBarOption) (ScaleBarPlan, error) {
	p := scaleBarPlanner{
		bars: 4,
		locX: 0.1,
		locY: 0.05,
	}
	for _, o := range options {
		if err := o(&p); err != nil {
			return ScaleBarPlan{}, err
		}
	}
	if p.layout == LayoutCentered && !p.locationSet {
		p.locX = 0.5
	}
	span := frame.Width()
	if !(span > 0) || math.IsInf(span, 1) {
		return ScaleBarPlan{}, ErrInvalidSpan{Span: span}
	}
	if !(frame.Height() > 0) {
		return ScaleBarPlan{}, ErrInvalidExtent{Extent: frame, msg: "ymin must be below ymax"}
	}
	length := p.length
	if length == 0 {
		var err error
		if length, err = ChooseLength(span); err != nil {
			return ScaleBarPlan{}, err
		}
	}

	sbx := frame.XMin + span*p.locX
	sby := frame.YMin + frame.Height()*p.locY
	plan := ScaleBarPlan{
		Layout: p.layout,
		Length: length,
		Y:      sby,
	}

	if p.layout == LayoutCentered {
		plan.Segments = []Segment{{X0: sbx - length*500, X1: sbx + length*500, Fill: FillForeground}}
		plan.Labels = []Label{{X: sbx, Y: sby, Text: FormatDistance(length) + " km"}}
		return plan, nil
	}

	step := length * 1000 / float64(p.bars)
	plan.Segments = make([]Segment, p.bars)
	plan.Labels = make([]Label, 0, p.bars+2)
	for i := 0; i < p.bars; i++ {
		fill := FillWhite
		if i%2 == 1 {
			fill = FillDimGrey
		}
		x0 := sbx + float64(i)*step
		plan.Segments[i] = Segment{X0: x0, X1: x0 + step, Fill: fill}
		plan.Labels = append(plan.Labels, Label{
			X:    x0,
			Y:    sby,
			Text: FormatDistance(float64(i) * length / float64(p.bars)),
		})
	}
	// last segment boundary carries the full length
	plan.Segments[p.bars-1].X1 = sbx + length*1000
	plan.Labels = append(plan.Labels,
		Label{X: sbx + length*1000, Y: sby, Text: FormatDistance(length)},
		Label{X: sbx + length*500, Y: frame.YMin + frame.Height()*p.locY/4, Text: "km"},
	)
	return plan, nil
}

// FormatDistance formats a distance with as few decimals as needed, up to
// micro units.
func FormatDistance(v float64) string {
	v = math.Round(v*1e6) / 1e6
	if v == 0 {
		v = 0 // no "-0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
