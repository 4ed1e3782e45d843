// Package raster reads the band files of a Sentinel-2 scene into an 8 bit RGB
// composite.
package raster

import (
	"context"
	"fmt"
)

// Lister lists the files of a directory ending with suffix, sorted by name.
type Lister interface {
	List(ctx context.Context, dir, suffix string) ([]string, error)
}

// A Scene is the sorted list of the band geotiffs of a Sentinel-2 product.
type Scene struct {
	Dir   string
	Files []string
}

func ListScene(ctx context.Context, l Lister, dir string) (Scene, error) {
	files, err := l.List(ctx, dir, ".tif")
	if err != nil {
		return Scene{}, err
	}
	if len(files) == 0 {
		return Scene{}, fmt.Errorf("no .tif file in %s", dir)
	}
	return Scene{Dir: dir, Files: files}, nil
}

// Select returns the files designated by 1-based indices into the scene's
// file list.
func (s Scene) Select(bands []int) ([]string, error) {
	ret := make([]string, len(bands))
	for i, b := range bands {
		if b < 1 || b > len(s.Files) {
			return nil, fmt.Errorf("band %d out of range [1,%d]", b, len(s.Files))
		}
		ret[i] = s.Files[b-1]
	}
	return ret, nil
}
