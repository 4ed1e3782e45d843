package raster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/alessio/shellescape"
	shellwords "github.com/mattn/go-shellwords"
)

// DefaultCreationOptions are the GeoTIFF creation options of exported
// composites.
func DefaultCreationOptions() map[string]string {
	return map[string]string{
		"TILED":       "YES",
		"COMPRESS":    "LZW",
		"PHOTOMETRIC": "RGB",
	}
}

// MergeCreationOptions applies KEY=VALUE overrides to opts. An empty value
// removes the key.
func MergeCreationOptions(opts map[string]string, overrides []string) error {
	for _, co := range overrides {
		k, v, ok := strings.Cut(co, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid creation option %q, expecting KEY=VALUE", co)
		}
		if v == "" {
			delete(opts, k)
		} else {
			opts[k] = v
		}
	}
	return nil
}

func creationOptionList(opts map[string]string) []string {
	copts := make([]string, 0, len(opts))
	for k, v := range opts {
		copts = append(copts, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(copts)
	return copts
}

// ParseSwitches splits a gdal_translate switch string and rejects the
// switches that conflict with the composite export.
func ParseSwitches(s string) ([]string, error) {
	sw, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid switches: %w", err)
	}
	if err := CheckSwitches(sw); err != nil {
		return nil, err
	}
	return sw, nil
}

func CheckSwitches(sw []string) error {
	for _, s := range sw {
		switch s {
		case "-of", "-sds":
			return fmt.Errorf("%s switch not allowed, composites are always written as a single GeoTIFF", s)
		case "-b", "-mask", "-expand":
			return fmt.Errorf("%s switch not allowed, select bands in the configuration", s)
		}
	}
	return nil
}

// Export stacks the band files into a 3 band GeoTIFF at dst.
func Export(files []string, dst string, switches []string, creationOptions map[string]string, configOptions []string) error {
	if len(files) != 3 {
		return fmt.Errorf("need 3 band files, got %d", len(files))
	}
	src, err := godal.BuildVRT("", files, []string{"-separate"})
	if err != nil {
		return fmt.Errorf("create source vrt: %w", err)
	}
	defer src.Close()
	dstDS, err := src.Translate(dst, switches,
		godal.CreationOption(creationOptionList(creationOptions)...),
		godal.ConfigOption(configOptions...),
		godal.GTiff)
	if err != nil {
		return fmt.Errorf("godal.translate: %w", err)
	}
	if err = dstDS.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// Commands returns the gdal command lines equivalent to Export, quoted for a
// posix shell.
func Commands(files []string, dst string, switches []string, creationOptions map[string]string, configOptions []string) []string {
	vrt := strings.TrimSuffix(dst, ".tif") + ".vrt"
	buildvrt := append([]string{"gdalbuildvrt", "-separate", vrt}, files...)
	translate := []string{"gdal_translate", "-of", "GTiff"}
	for _, co := range creationOptionList(creationOptions) {
		translate = append(translate, "-co", co)
	}
	for _, c := range configOptions {
		k, v, _ := strings.Cut(c, "=")
		translate = append(translate, "--config", k, v)
	}
	translate = append(translate, switches...)
	translate = append(translate, vrt, dst)
	return []string{shellescape.QuoteCommand(buildvrt), shellescape.QuoteCommand(translate)}
}
