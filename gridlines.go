package sen2map

import (
	"math"
	"strconv"
)

// maxMagnitudeExponent bounds the power of ten by which a coordinate may be
// scaled up or down while looking for its rounding precision.
const maxMagnitudeExponent = 5

// A TickSet holds the gridline positions of a map, in map coordinates. Both
// slices are strictly increasing.
type TickSet struct {
	X []float64
	Y []float64
}

// integerDigits returns the number of digits before the decimal point of |v|.
// Values below 1 have a single digit ("0").
func integerDigits(v float64) int {
	v = math.Trunc(math.Abs(v))
	if v < 1 {
		return 1
	}
	return len(strconv.FormatFloat(v, 'f', 0, 64))
}

// magnitudeExponent returns the power of ten p such that |v|/10^p has two or
// three digits before its decimal point.
func magnitudeExponent(v float64) (int, error) {
	p := 0
	w := v
	for integerDigits(w) < 2 {
		w *= 10
		p--
		if -p > maxMagnitudeExponent {
			return 0, ErrMagnitudeOverflow{Value: v}
		}
	}
	for integerDigits(w) > 3 {
		w /= 10
		p++
		if p > maxMagnitudeExponent {
			return 0, ErrMagnitudeOverflow{Value: v}
		}
	}
	return p, nil
}

// roundAt rounds v to the nearest multiple of 10^p, ties to even.
func roundAt(v float64, p int) float64 {
	if p < 0 {
		f := math.Pow10(-p)
		return math.RoundToEven(v*f) / f
	}
	f := math.Pow10(p)
	return math.RoundToEven(v/f) * f
}

func (e Extent) roundAt(p int) Extent {
	return Extent{
		XMin: roundAt(e.XMin, p),
		XMax: roundAt(e.XMax, p),
		YMin: roundAt(e.YMin, p),
		YMax: roundAt(e.YMax, p),
	}
}

// NormalizeExtent rounds all four bounds of e to the precision given by the
// magnitude of e.XMin: small coordinates (e.g. degrees) are pulled up until
// they have two significant digits, large ones (e.g. meters) collapsed down
// to three. The returned exponent p is the power of ten the bounds are a
// multiple of.
//
// If rounding at that precision would collapse an axis, the precision is
// refined one digit at a time. Normalizing an already normalized extent
// returns it unchanged.
//
// When no precision can be found within 10^±5, e is returned unchanged along
// with an ErrMagnitudeOverflow.
func NormalizeExtent(e Extent) (Extent, int, error) {
	if err := e.Validate(); err != nil {
		return e, 0, err
	}
	p, err := magnitudeExponent(e.XMin)
	if err != nil {
		return e, 0, err
	}
	r := e.roundAt(p)
	// rounding may carry into an extra digit (999.6 -> 1000)
	for {
		q, err := magnitudeExponent(r.XMin)
		if err != nil || q <= p {
			break
		}
		p = q
		r = e.roundAt(p)
	}
	for r.Validate() != nil {
		p--
		if -p > maxMagnitudeExponent {
			return e, 0, ErrMagnitudeOverflow{Value: e.XMin}
		}
		r = e.roundAt(p)
	}
	return r, p, nil
}

// ComputeGridlines returns tickCount+1 "round" gridline positions along each
// axis of e, from the normalized minimum to the normalized maximum inclusive.
//
// If e cannot be normalized, the returned error is an ErrMagnitudeOverflow
// and the TickSet is computed on the unrounded bounds; callers may use it as
// a fallback.
func ComputeGridlines(e Extent, tickCount int) (TickSet, error) {
	if tickCount < 1 {
		return TickSet{}, ErrInvalidTickCount{Count: tickCount}
	}
	if err := e.Validate(); err != nil {
		return TickSet{}, err
	}
	n, _, err := NormalizeExtent(e)
	ts := TickSet{
		X: ticks(n.XMin, n.XMax, tickCount),
		Y: ticks(n.YMin, n.YMax, tickCount),
	}
	return ts, err
}

func ticks(lo, hi float64, count int) []float64 {
	step := (hi - lo) / float64(count)
	ret := make([]float64, count+1)
	for i := range ret {
		ret[i] = lo + float64(i)*step
	}
	ret[count] = hi
	return ret
}
