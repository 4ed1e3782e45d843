package sen2map

import "fmt"

// ErrInvalidOption is returned by functional options given an out of range
// value.
type ErrInvalidOption struct {
	msg string
}

func (err ErrInvalidOption) Error() string {
	return err.msg
}

func (err ErrInvalidOption) Is(target error) bool {
	_, ok := target.(ErrInvalidOption)
	return ok
}

// ErrInvalidTickCount is returned when fewer than one gridline interval is
// requested.
type ErrInvalidTickCount struct {
	Count int
}

func (err ErrInvalidTickCount) Error() string {
	return fmt.Sprintf("invalid tick count %d: must be >=1", err.Count)
}

func (err ErrInvalidTickCount) Is(target error) bool {
	_, ok := target.(ErrInvalidTickCount)
	return ok
}

// ErrInvalidExtent is returned when an extent is empty, inverted or not
// finite.
type ErrInvalidExtent struct {
	Extent Extent
	msg    string
}

func (err ErrInvalidExtent) Error() string {
	return fmt.Sprintf("invalid extent %s: %s", err.Extent, err.msg)
}

func (err ErrInvalidExtent) Is(target error) bool {
	_, ok := target.(ErrInvalidExtent)
	return ok
}

// ErrMagnitudeOverflow is returned when bringing a coordinate into the two to
// three digit range would require scaling it by more than 10^5. It is not
// fatal: functions returning it also return a usable fallback computed on the
// unrounded input.
type ErrMagnitudeOverflow struct {
	Value float64
}

func (err ErrMagnitudeOverflow) Error() string {
	return fmt.Sprintf("magnitude adjustment of %g needs a scale factor above 10^%d", err.Value, maxMagnitudeExponent)
}

func (err ErrMagnitudeOverflow) Is(target error) bool {
	_, ok := target.(ErrMagnitudeOverflow)
	return ok
}

// ErrInvalidSpan is returned when a scale bar is requested for a map whose
// horizontal span is not strictly positive.
type ErrInvalidSpan struct {
	Span float64
}

func (err ErrInvalidSpan) Error() string {
	return fmt.Sprintf("invalid map span %g: must be >0", err.Span)
}

func (err ErrInvalidSpan) Is(target error) bool {
	_, ok := target.(ErrInvalidSpan)
	return ok
}
