package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	"github.com/google/tiff"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/blob"
	"github.com/pyeo/sen2map/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	adst "go.airbusds-geo.com/gcp/storage"
	"go.airbusds-geo.com/log"
)

var stcl *storage.Client
var adstcl *adst.Client
var gcsa *osio.Adapter
var store *blob.Store

var v *viper.Viper
var cfg *config.Config

var verbose bool
var configFile string
var envFile string
var startTime time.Time

var rootCmd = &cobra.Command{
	Use:   "sen2map",
	Short: "sentinel-2 quicklook maps",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if !verbose {
			os.Setenv("LOGLEVEL", "info")
			log.Structured()
		}
		ctx := cmd.Context()
		var err error

		if err = config.LoadDotEnv(envFile); err != nil {
			return err
		}
		if cfg, err = config.Load(v, configFile); err != nil {
			return err
		}

		if usesGCS(args) {
			if stcl, err = storage.NewClient(ctx); err != nil {
				return fmt.Errorf("storage.newclient: %w", err)
			}
			if adstcl, err = adst.New(ctx, adst.WithStorageClient(stcl)); err != nil {
				return fmt.Errorf("ads storage.new: %w", err)
			}
			gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
			if err != nil {
				return fmt.Errorf("gcs.handle: %w", err)
			}
			gcsa, err = osio.NewAdapter(gcsh, osio.BlockSize(cfg.BlockSize), osio.NumCachedBlocks(cfg.NumBlocks))
			if err != nil {
				return fmt.Errorf("osio.new: %w", err)
			}
			if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
				return fmt.Errorf("register osio: %w", err)
			}
		}
		store = blob.NewStore(stcl, adstcl)
		godal.RegisterAll()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},
}

func init() {
	v = config.New()
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&verbose, "verbose", false, "verbose output")
	pf.StringVar(&configFile, "config-file", "", "yaml configuration (default ./sen2map.yaml if present)")
	pf.StringVar(&envFile, "env", ".env", "env file exporting SEN2MAP_* variables")
	pf.String("data-dir", ".", "working directory, local or gs://bucket/prefix")
	pf.String("scene", "", "scene directory name under <data-dir>/<scene-dir>")
	pf.String("shapefile", "", "vector overlay, relative to the data dir")
	pf.String("stretch", "equalize", "contrast stretch: equalize, linear or none")
	pf.String("blocksize", "512k", "gs cache blocksize")
	pf.Int("numblocks", 1000, "number of gs cached blocks")
	for key, flag := range map[string]string{
		"data_dir":  "data-dir",
		"scene":     "scene",
		"shapefile": "shapefile",
		"stretch":   "stretch",
		"blocksize": "blocksize",
		"numblocks": "numblocks",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	rootCmd.AddCommand(renderCmd, planCmd, compositeCmd, inspectCmd, reprojectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// usesGCS reports whether any configured location or argument lives on
// cloud storage.
func usesGCS(args []string) bool {
	names := append([]string{cfg.DataDir, cfg.PlotDir, cfg.Shapefile}, args...)
	for _, n := range names {
		if strings.HasPrefix(n, "gs://") {
			return true
		}
	}
	return false
}

// readGeoreference parses the geotiff header of a local or gs:// file.
func readGeoreference(name string) (sen2map.Georeference, error) {
	var r tiff.ReadAtReadSeeker
	if blob.IsGCS(name) {
		if gcsa == nil {
			return sen2map.Georeference{}, blob.ErrNoGCS
		}
		gr, err := gcsa.Reader(name)
		if err != nil {
			return sen2map.Georeference{}, fmt.Errorf("open %s: %w", name, err)
		}
		r = gr
	} else {
		f, err := os.Open(name)
		if err != nil {
			return sen2map.Georeference{}, fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		r = f
	}
	g, err := sen2map.ReadGeoreference(r)
	if err != nil {
		return g, fmt.Errorf("%s: %w", name, err)
	}
	return g, nil
}
