package sen2map

import (
	"fmt"
	"math"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
)

const (
	geoKeyRasterType     = 1025
	geoKeyGeographicType = 2048
	geoKeyProjectedType  = 3072

	rasterPixelIsPoint = 2
)

type geoIFD struct {
	ImageWidth             uint64    `tiff:"field,tag=256"`
	ImageLength            uint64    `tiff:"field,tag=257"`
	ModelPixelScaleTag     []float64 `tiff:"field,tag=33550"`
	ModelTiePointTag       []float64 `tiff:"field,tag=33922"`
	ModelTransformationTag []float64 `tiff:"field,tag=34264"`
	GeoKeyDirectoryTag     []uint16  `tiff:"field,tag=34735"`
}

// Georeference is the georeferencing of a GeoTIFF, read from its first IFD
// without decoding any pixel.
type Georeference struct {
	Width, Height int
	GeoTransform  [6]float64
	// EPSG code of the projected or geographic reference system, 0 if the
	// file does not carry one
	EPSG int
}

func (g Georeference) Extent() Extent {
	return ExtentFromGeoTransform(g.GeoTransform, g.Width, g.Height)
}

// ReadGeoreference parses the GeoTIFF header of r.
func ReadGeoreference(r tiff.ReadAtReadSeeker) (Georeference, error) {
	tif, err := tiff.Parse(r, nil, nil)
	if err != nil {
		return Georeference{}, fmt.Errorf("parse tiff: %w", err)
	}
	ifds := tif.IFDs()
	if len(ifds) == 0 {
		return Georeference{}, fmt.Errorf("no ifd")
	}
	gifd := geoIFD{}
	if err := tiff.UnmarshalIFD(ifds[0], &gifd); err != nil {
		return Georeference{}, fmt.Errorf("unmarshal ifd: %w", err)
	}
	return gifd.georeference()
}

func (gifd geoIFD) georeference() (Georeference, error) {
	g := Georeference{
		Width:  int(gifd.ImageWidth),
		Height: int(gifd.ImageLength),
	}
	if g.Width == 0 || g.Height == 0 {
		return g, fmt.Errorf("missing image dimensions")
	}
	keys := gifd.geoKeys()
	switch {
	case len(gifd.ModelTransformationTag) == 16:
		m := gifd.ModelTransformationTag
		g.GeoTransform = [6]float64{m[3], m[0], m[1], m[7], m[4], m[5]}
	case len(gifd.ModelPixelScaleTag) >= 2 && len(gifd.ModelTiePointTag) >= 6:
		sx, sy := gifd.ModelPixelScaleTag[0], gifd.ModelPixelScaleTag[1]
		tp := gifd.ModelTiePointTag
		g.GeoTransform = [6]float64{tp[3] - tp[0]*sx, sx, 0, tp[4] + tp[1]*sy, 0, -sy}
	default:
		return g, fmt.Errorf("no geotransform")
	}
	if keys[geoKeyRasterType] == rasterPixelIsPoint {
		g.GeoTransform[0] -= g.GeoTransform[1] / 2
		g.GeoTransform[3] -= g.GeoTransform[5] / 2
	}
	if code, ok := keys[geoKeyProjectedType]; ok {
		g.EPSG = code
	} else if code, ok := keys[geoKeyGeographicType]; ok {
		g.EPSG = code
	}
	return g, nil
}

// geoKeys returns the short valued keys of the GeoKeyDirectory
func (gifd geoIFD) geoKeys() map[int]int {
	keys := map[int]int{}
	dir := gifd.GeoKeyDirectoryTag
	if len(dir) < 4 {
		return keys
	}
	nkeys := int(dir[3])
	for k := 0; k < nkeys; k++ {
		off := 4 + 4*k
		if off+3 >= len(dir) {
			break
		}
		// location 0 means the value is stored inline
		if dir[off+1] != 0 {
			continue
		}
		keys[int(dir[off])] = int(dir[off+3])
	}
	return keys
}

// CheckFootprints verifies that all georeferences cover the same area (to
// within half a pixel of the coarsest of them), which is required to stack
// them as the channels of a single image. Resolutions may differ.
func CheckFootprints(georefs []Georeference) error {
	if len(georefs) == 0 {
		return fmt.Errorf("no georeferences")
	}
	tol := 0.0
	for _, g := range georefs {
		tol = math.Max(tol, math.Max(math.Abs(g.GeoTransform[1]), math.Abs(g.GeoTransform[5]))/2)
	}
	ref := georefs[0].Extent()
	for i, g := range georefs[1:] {
		if g.EPSG != georefs[0].EPSG {
			return fmt.Errorf("georeference %d: epsg %d differs from %d", i+1, g.EPSG, georefs[0].EPSG)
		}
		e := g.Extent()
		if math.Abs(e.XMin-ref.XMin) > tol || math.Abs(e.XMax-ref.XMax) > tol ||
			math.Abs(e.YMin-ref.YMin) > tol || math.Abs(e.YMax-ref.YMax) > tol {
			return fmt.Errorf("georeference %d: extent %s differs from %s", i+1, e, ref)
		}
	}
	return nil
}
