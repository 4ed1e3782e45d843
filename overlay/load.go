package overlay

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb/encoding/wkb"
)

// Load reads the features of the first layer of the vector dataset at path,
// reprojected to dst. Features without a geometry are skipped; the IDs of the
// others are their position in the layer.
func Load(path string, dst *godal.SpatialRef) ([]Feature, error) {
	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer ds.Close()
	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("%s: no layer", path)
	}
	layer := layers[0]
	layer.ResetReading()
	features := []Feature{}
	for id := 0; ; id++ {
		feat := layer.NextFeature()
		if feat == nil {
			break
		}
		f, ok, err := convert(feat, dst)
		feat.Close()
		if err != nil {
			return nil, fmt.Errorf("%s feature %d: %w", path, id, err)
		}
		if !ok {
			continue
		}
		f.ID = id
		features = append(features, f)
	}
	return features, nil
}

func convert(feat *godal.Feature, dst *godal.SpatialRef) (Feature, bool, error) {
	geom := feat.Geometry()
	if geom == nil {
		return Feature{}, false, nil
	}
	defer geom.Close()
	if geom.Empty() {
		return Feature{}, false, nil
	}
	if err := geom.Reproject(dst); err != nil {
		return Feature{}, false, fmt.Errorf("reproject: %w", err)
	}
	data, err := geom.WKB()
	if err != nil {
		return Feature{}, false, fmt.Errorf("export wkb: %w", err)
	}
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return Feature{}, false, fmt.Errorf("decode wkb: %w", err)
	}
	return Feature{Geometry: g}, true, nil
}

// ReprojectedName returns the default name of the reprojection of a vector
// file: shape.shp -> shape_4326.shp
func ReprojectedName(src string, epsg int) string {
	ext := filepath.Ext(src)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(src, ext), epsg, ext)
}

// Reproject writes the features of src reprojected to the given EPSG code to
// dst, replacing its layer if it already exists. The output layer is named
// after the dst file. The output format is guessed by gdal from the dst
// extension unless switches hold a -f option.
func Reproject(src, dst string, epsg int, switches []string) error {
	ds, err := godal.Open(src, godal.VectorOnly())
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer ds.Close()
	base := filepath.Base(dst)
	sw := append([]string{
		"-t_srs", fmt.Sprintf("EPSG:%d", epsg),
		"-overwrite",
		"-nln", strings.TrimSuffix(base, filepath.Ext(base)),
	}, switches...)
	out, err := ds.VectorTranslate(dst, sw)
	if err != nil {
		return fmt.Errorf("vectortranslate %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
