package raster

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/pyeo/sen2map"
	"github.com/sourcegraph/conc/pool"
)

// A Composite is an RGB rendition of three bands of a scene. Pixels that are
// zero in all three bands are transparent.
type Composite struct {
	Image *image.NRGBA
	// Extent of the scene, in the reference system given by WKT
	Extent       sen2map.Extent
	GeoTransform [6]float64
	WKT          string
	// SizeX, SizeY are the full resolution dimensions of the first band
	SizeX, SizeY int
}

type reader struct {
	maxPixels   int
	stretch     sen2map.StretchMethod
	parallelism int
}

type ReadOption func(r *reader) error

// MaxPixels sets the maximum number of pixels of the composite. Larger scenes
// are decimated while read.
func MaxPixels(count int) ReadOption {
	return func(r *reader) error {
		if count < 1 {
			return fmt.Errorf("max pixels must be >=1")
		}
		r.maxPixels = count
		return nil
	}
}

func Stretch(m sen2map.StretchMethod) ReadOption {
	return func(r *reader) error {
		r.stretch = m
		return nil
	}
}

// Parallelism sets the number of bands read concurrently.
func Parallelism(n int) ReadOption {
	return func(r *reader) error {
		if n < 1 {
			return fmt.Errorf("parallelism must be >=1")
		}
		r.parallelism = n
		return nil
	}
}

// OutputSize returns the dimensions of a sizeX*sizeY raster decimated to at
// most maxPixels pixels, keeping its aspect ratio.
func OutputSize(sizeX, sizeY, maxPixels int) (int, int) {
	if sizeX*sizeY <= maxPixels {
		return sizeX, sizeY
	}
	f := math.Sqrt(float64(sizeX) * float64(sizeY) / float64(maxPixels))
	w := int(math.Max(1, math.Floor(float64(sizeX)/f)))
	h := int(math.Max(1, math.Floor(float64(sizeY)/f)))
	return w, h
}

// ReadComposite reads the red, green and blue band files, stretching each
// band individually. The georeferencing is taken from the first file; all
// files must cover the same footprint, their resolutions may differ.
func ReadComposite(ctx context.Context, files []string, options ...ReadOption) (*Composite, error) {
	r := reader{
		maxPixels:   2048 * 2048,
		stretch:     sen2map.StretchEqualize,
		parallelism: 3,
	}
	for _, o := range options {
		if err := o(&r); err != nil {
			return nil, err
		}
	}
	if len(files) != 3 {
		return nil, fmt.Errorf("need 3 band files, got %d", len(files))
	}
	c := &Composite{}
	if err := c.georeference(files[0]); err != nil {
		return nil, err
	}
	w, h := OutputSize(c.SizeX, c.SizeY, r.maxPixels)

	channels := make([][]uint8, len(files))
	nodata := make([][]bool, len(files))
	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.parallelism)
	for i, file := range files {
		i, file := i, file
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readBand(file, w, h)
			if err != nil {
				return err
			}
			channels[i] = sen2map.Stretch(data, r.stretch)
			nodata[i] = make([]bool, len(data))
			for k, v := range data {
				nodata[i][k] = v == 0
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	c.Image = compose(channels, nodata, w, h)
	return c, nil
}

func (c *Composite) georeference(file string) error {
	ds, err := godal.Open(file, godal.RasterOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer ds.Close()
	st := ds.Structure()
	c.SizeX, c.SizeY = st.SizeX, st.SizeY
	if c.GeoTransform, err = ds.GeoTransform(); err != nil {
		return fmt.Errorf("%s geotransform: %w", file, err)
	}
	if c.GeoTransform[2] != 0 || c.GeoTransform[4] != 0 {
		return fmt.Errorf("%s: rotated geotransforms are not supported", file)
	}
	c.Extent = sen2map.ExtentFromGeoTransform(c.GeoTransform, c.SizeX, c.SizeY)
	if c.WKT, err = ds.SpatialRef().WKT(); err != nil {
		return fmt.Errorf("%s srs: %w", file, err)
	}
	return nil
}

// readBand reads the first band of file resampled to w*h pixels.
func readBand(file string, w, h int) ([]uint16, error) {
	ds, err := godal.Open(file, godal.RasterOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer ds.Close()
	st := ds.Structure()
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%s: no band", file)
	}
	buf := make([]uint16, w*h)
	if err := bands[0].Read(0, 0, buf, w, h, godal.Window(st.SizeX, st.SizeY)); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return buf, nil
}

// compose interleaves three channels. Pixels that are nodata in all channels
// are left transparent.
func compose(channels [][]uint8, nodata [][]bool, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		pix := img.Pix[4*i : 4*i+4]
		pix[0], pix[1], pix[2] = channels[0][i], channels[1][i], channels[2][i]
		if !nodata[0][i] || !nodata[1][i] || !nodata[2][i] {
			pix[3] = 255
		}
	}
	return img
}
