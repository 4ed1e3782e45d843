package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/google/uuid"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/overlay"
	"github.com/pyeo/sen2map/pipeline"
	"github.com/pyeo/sen2map/raster"
	"github.com/spf13/cobra"
	"go.airbusds-geo.com/log"
	"sigs.k8s.io/yaml"
)

var copts []string
var configOpts []string
var switches string
var dryRun bool
var extentFlag string
var epsg int
var atFlag string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "render the quicklook maps of the configured scene",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		plans, err := pipeline.New(cfg, store).Run(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range plans {
			log.Logger(cmd.Context()).Sugar().Infof("%s: %s, scale bar %s km",
				p.View.File, p.Extent, sen2map.FormatDistance(p.ScaleBar.Plan.Length))
		}
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "print the gridlines and scale bars of the configured views as yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		r := pipeline.New(cfg, store)
		var scene sen2map.Extent
		code := epsg
		if extentFlag != "" {
			var err error
			if scene, err = parseExtent(extentFlag); err != nil {
				return err
			}
			if code == 0 {
				return fmt.Errorf("--extent requires --epsg")
			}
		} else {
			files, err := r.Bands(ctx)
			if err != nil {
				return err
			}
			g, err := readGeoreference(files[0])
			if err != nil {
				return err
			}
			scene = g.Extent()
			if code == 0 {
				code = g.EPSG
			}
			if code == 0 {
				return fmt.Errorf("%s has no epsg code, use --epsg", files[0])
			}
		}
		sr, err := godal.NewSpatialRefFromEPSG(code)
		if err != nil {
			return fmt.Errorf("epsg %d: %w", code, err)
		}
		defer sr.Close()
		wkt, err := sr.WKT()
		if err != nil {
			return fmt.Errorf("epsg %d wkt: %w", code, err)
		}
		plans, err := r.Plan(ctx, wkt, scene)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(plans)
		if err != nil {
			return fmt.Errorf("marshal plans: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

// parseFloats parses a comma separated list of n numbers.
func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%q: need %d comma separated values", s, n)
	}
	vals := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		vals[i] = f
	}
	return vals, nil
}

// parseExtent parses "xmin,xmax,ymin,ymax".
func parseExtent(s string) (sen2map.Extent, error) {
	vals, err := parseFloats(s, 4)
	if err != nil {
		return sen2map.Extent{}, fmt.Errorf("invalid extent: %w", err)
	}
	e := sen2map.Extent{XMin: vals[0], XMax: vals[1], YMin: vals[2], YMax: vals[3]}
	return e, e.Validate()
}

var compositeCmd = &cobra.Command{
	Use:   "composite dst.tif",
	Short: "stack the configured bands into a 3 band geotiff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dst := args[0]
		sw, err := raster.ParseSwitches(switches)
		if err != nil {
			return fmt.Errorf("invalid switches: %w", err)
		}
		creationOptions := raster.DefaultCreationOptions()
		if err := raster.MergeCreationOptions(creationOptions, copts); err != nil {
			return err
		}
		files, err := pipeline.New(cfg, store).Bands(ctx)
		if err != nil {
			return err
		}
		if dryRun {
			for _, c := range raster.Commands(files, dst, sw, creationOptions, configOpts) {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		}
		if err := pipeline.Preload(files); err != nil {
			return err
		}
		tmp := fmt.Sprintf("composite-%s.tif", uuid.Must(uuid.NewRandom()).String())
		defer os.Remove(tmp)
		if err := raster.Export(files, tmp, sw, creationOptions, configOpts); err != nil {
			return err
		}
		return store.Upload(ctx, dst, tmp)
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [file.tif...]",
	Short: "print the georeferencing of geotiffs (default: the configured bands) and check they can be stacked",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			var err error
			if files, err = pipeline.New(cfg, store).Bands(cmd.Context()); err != nil {
				return err
			}
		}
		var at []float64
		if atFlag != "" {
			var err error
			if at, err = parseFloats(atFlag, 2); err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
		}
		georefs := make([]sen2map.Georeference, len(files))
		for i, f := range files {
			g, err := readGeoreference(f)
			if err != nil {
				return err
			}
			georefs[i] = g
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d epsg:%d %s res %g\n",
				filepath.Base(f), g.Width, g.Height, g.EPSG, g.Extent(), g.GeoTransform[1])
			if at != nil {
				px, py := sen2map.Pixel(g.GeoTransform, at[0], at[1])
				fmt.Fprintf(cmd.OutOrStdout(), "  %g,%g -> pixel %d line %d\n", at[0], at[1], px, py)
			}
		}
		if err := sen2map.CheckFootprints(georefs); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "footprints match")
		return nil
	},
}

var reprojectCmd = &cobra.Command{
	Use:   "reproject src.shp [dst.shp]",
	Short: "reproject a vector file (default dst: src_<epsg>.shp)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if epsg == 0 {
			return fmt.Errorf("--epsg is required")
		}
		src := args[0]
		dst := overlay.ReprojectedName(src, epsg)
		if len(args) == 2 {
			dst = args[1]
		}
		sw, err := shellwords.Parse(switches)
		if err != nil {
			return fmt.Errorf("invalid switches: %w", err)
		}
		if err := overlay.Reproject(src, dst, epsg, sw); err != nil {
			return err
		}
		log.Logger(cmd.Context()).Sugar().Infof("wrote %s", dst)
		return nil
	},
}

func init() {
	compositeCmd.Flags().StringArrayVar(&copts, "co", nil, "tif creation options, KEY= removes a default")
	compositeCmd.Flags().StringArrayVar(&configOpts, "config", nil, "gdal configuration options")
	compositeCmd.Flags().StringVar(&switches, "switches", "", "extra gdal_translate switches. e.g: \"-a_nodata 0\"")
	compositeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print equivalent gdal commands instead of running them")

	planCmd.Flags().StringVar(&extentFlag, "extent", "", "scene extent xmin,xmax,ymin,ymax instead of reading the bands")
	planCmd.Flags().IntVar(&epsg, "epsg", 0, "reference system of the scene (default: read from the first band)")

	inspectCmd.Flags().StringVar(&atFlag, "at", "", "also print the pixel containing the map coordinate x,y")

	reprojectCmd.Flags().IntVar(&epsg, "epsg", 0, "target epsg code")
	reprojectCmd.Flags().StringVar(&switches, "switches", "", "extra ogr2ogr switches. e.g: \"-f GeoJSON\"")
}
