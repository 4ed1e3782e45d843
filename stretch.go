package sen2map

import (
	"fmt"
	"math"
)

// A StretchMethod converts 16 bit sensor counts to 8 bit display values.
// Zero is the nodata value of Sentinel-2 products: it is excluded from the
// statistics and always maps to 0.
type StretchMethod int

const (
	// StretchEqualize applies a histogram equalization over 256 bins
	StretchEqualize StretchMethod = iota
	// StretchLinear maps the [min,max] range of valid values onto [1,255]
	StretchLinear
	// StretchNone saturates values above 255
	StretchNone
)

func ParseStretch(s string) (StretchMethod, error) {
	switch s {
	case "equalize", "":
		return StretchEqualize, nil
	case "linear":
		return StretchLinear, nil
	case "none":
		return StretchNone, nil
	}
	return 0, fmt.Errorf("unknown stretch method %q", s)
}

func (m StretchMethod) String() string {
	switch m {
	case StretchLinear:
		return "linear"
	case StretchNone:
		return "none"
	default:
		return "equalize"
	}
}

// Stretch converts data to 8 bit values with the given method.
func Stretch(data []uint16, method StretchMethod) []uint8 {
	var lut [65536]uint8
	switch method {
	case StretchLinear:
		lut = linearLUT(data)
	case StretchNone:
		for v := range lut {
			if v > 255 {
				lut[v] = 255
			} else {
				lut[v] = uint8(v)
			}
		}
	default:
		lut = equalizeLUT(data, 256)
	}
	lut[0] = 0
	out := make([]uint8, len(data))
	for i, v := range data {
		out[i] = lut[v]
	}
	return out
}

func validRange(data []uint16) (lo, hi uint16, ok bool) {
	lo = math.MaxUint16
	for _, v := range data {
		if v == 0 {
			continue
		}
		ok = true
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}

func linearLUT(data []uint16) [65536]uint8 {
	var lut [65536]uint8
	lo, hi, ok := validRange(data)
	if !ok {
		return lut
	}
	for v := int(lo); v < len(lut); v++ {
		if v >= int(hi) {
			lut[v] = 255
			continue
		}
		lut[v] = uint8(1 + 254*float64(v-int(lo))/float64(hi-lo))
	}
	return lut
}

// equalizeLUT computes the histogram of the valid values of data over nbins
// equal bins, and maps each value to its interpolated cumulative frequency
// scaled to 255.
func equalizeLUT(data []uint16, nbins int) [65536]uint8 {
	var lut [65536]uint8
	lo, hi, ok := validRange(data)
	if !ok {
		return lut
	}
	if lo == hi {
		for v := int(lo); v < len(lut); v++ {
			lut[v] = 255
		}
		return lut
	}
	width := float64(hi-lo) / float64(nbins)
	cdf := make([]float64, nbins)
	for _, v := range data {
		if v == 0 {
			continue
		}
		b := int(float64(v-lo) / width)
		if b >= nbins {
			b = nbins - 1
		}
		cdf[b]++
	}
	for b := 1; b < nbins; b++ {
		cdf[b] += cdf[b-1]
	}
	total := cdf[nbins-1]
	for b := range cdf {
		cdf[b] = 255 * cdf[b] / total
	}
	// cdf values are interpolated between the left edges of the bins
	for v := 1; v < len(lut); v++ {
		pos := (float64(v) - float64(lo)) / width
		var val float64
		switch {
		case pos <= 0:
			val = cdf[0]
		case pos >= float64(nbins-1):
			val = cdf[nbins-1]
		default:
			k := int(pos)
			frac := pos - float64(k)
			val = cdf[k] + frac*(cdf[k+1]-cdf[k])
		}
		lut[v] = uint8(val)
	}
	return lut
}
