// Package config loads the settings of the quicklook renderer from defaults,
// an optional yaml file, an optional .env file and SEN2MAP_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pyeo/sen2map"
	"github.com/spf13/viper"
)

const EnvPrefix = "SEN2MAP"

type ScaleBarConfig struct {
	Bars   int     `mapstructure:"bars" json:"bars"`
	Length float64 `mapstructure:"length" json:"length"` // km, 0 to choose automatically
	// LocationX defaults to 0.1 for left anchored bars and 0.5 for centered
	// ones when unset
	LocationX *float64 `mapstructure:"location_x" json:"location_x,omitempty"`
	LocationY float64  `mapstructure:"location_y" json:"location_y"`
	Centered  bool     `mapstructure:"centered" json:"centered"`
	Color     string   `mapstructure:"color" json:"color"`
}

// Anchor returns the location of the bar as fractions of the map width and
// height.
func (s ScaleBarConfig) Anchor() (float64, float64) {
	switch {
	case s.LocationX != nil:
		return *s.LocationX, s.LocationY
	case s.Centered:
		return 0.5, s.LocationY
	default:
		return 0.1, s.LocationY
	}
}

// Options converts the configuration to scale bar planning options.
func (s ScaleBarConfig) Options() []sen2map.ScaleBarOption {
	fx, fy := s.Anchor()
	opts := []sen2map.ScaleBarOption{
		sen2map.Bars(s.Bars),
		sen2map.Location(fx, fy),
	}
	if s.Length > 0 {
		opts = append(opts, sen2map.Length(s.Length))
	}
	if s.Centered {
		opts = append(opts, sen2map.Centered())
	}
	return opts
}

type Config struct {
	// DataDir is the working directory, local or gs://bucket/prefix. The
	// shapefile and the plot directory are resolved relative to it.
	DataDir    string `mapstructure:"data_dir" json:"data_dir"`
	SceneDir   string `mapstructure:"scene_dir" json:"scene_dir"`
	Scene      string `mapstructure:"scene" json:"scene"`
	TiffSubdir string `mapstructure:"tiff_subdir" json:"tiff_subdir"`
	// Bands are 1-based indices into the sorted list of the scene's .tif
	// files, in red, green, blue order.
	Bands     []int  `mapstructure:"bands" json:"bands"`
	Shapefile string `mapstructure:"shapefile" json:"shapefile"`
	PlotDir   string `mapstructure:"plot_dir" json:"plot_dir"`

	Width       int            `mapstructure:"width" json:"width"`
	Height      int            `mapstructure:"height" json:"height"`
	Ticks       int            `mapstructure:"ticks" json:"ticks"`
	ScaleBar    ScaleBarConfig `mapstructure:"scale_bar" json:"scale_bar"`
	Stretch     string         `mapstructure:"stretch" json:"stretch"`
	MaxPixels   int            `mapstructure:"max_pixels" json:"max_pixels"`
	Views       []sen2map.View `mapstructure:"views" json:"views"`
	JPEGQuality int            `mapstructure:"jpeg_quality" json:"jpeg_quality"`
	Parallelism int            `mapstructure:"parallelism" json:"parallelism"`

	BlockSize string `mapstructure:"blocksize" json:"blocksize"`
	NumBlocks int    `mapstructure:"numblocks" json:"numblocks"`
}

// New returns a viper instance holding the defaults and reading SEN2MAP_*
// environment variables (SEN2MAP_SCALE_BAR_LENGTH -> scale_bar.length).
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("data_dir", ".")
	v.SetDefault("scene_dir", "data")
	v.SetDefault("scene", "")
	v.SetDefault("tiff_subdir", "tiff")
	v.SetDefault("bands", []int{5, 4, 3})
	v.SetDefault("shapefile", "")
	v.SetDefault("plot_dir", "")
	v.SetDefault("width", 1000)
	v.SetDefault("height", 1000)
	v.SetDefault("ticks", 10)
	v.SetDefault("scale_bar.bars", 4)
	v.SetDefault("scale_bar.length", 40)
	v.SetDefault("scale_bar.location_y", 0.05)
	v.SetDefault("scale_bar.centered", false)
	v.SetDefault("scale_bar.color", "dimgrey")
	v.SetDefault("stretch", "equalize")
	v.SetDefault("max_pixels", 2048*2048)
	v.SetDefault("views", sen2map.DefaultViews())
	v.SetDefault("jpeg_quality", 90)
	v.SetDefault("parallelism", 3)
	v.SetDefault("blocksize", "512k")
	v.SetDefault("numblocks", 1000)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// no default: unmarshaled as nil unless set
	_ = v.BindEnv("scale_bar.location_x")
	return v
}

// LoadDotEnv exports the variables of an env file into the process
// environment, without overriding variables that are already set. A missing
// file is not an error.
func LoadDotEnv(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// Load reads the optional config file into v (file may be empty, in which
// case sen2map.yaml is looked up in the current directory) and decodes the
// result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("sen2map")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.DataDir == "" {
		errs = append(errs, "data_dir is required")
	}
	if len(c.Bands) != 3 {
		errs = append(errs, fmt.Sprintf("bands must hold 3 indices, got %d", len(c.Bands)))
	}
	for _, b := range c.Bands {
		if b < 1 {
			errs = append(errs, fmt.Sprintf("band index %d must be >=1", b))
		}
	}
	if c.Width < 16 || c.Height < 16 {
		errs = append(errs, fmt.Sprintf("image size %dx%d is too small", c.Width, c.Height))
	}
	if c.Ticks < 1 {
		errs = append(errs, "ticks must be >=1")
	}
	if c.ScaleBar.Bars < 1 {
		errs = append(errs, "scale_bar.bars must be >=1")
	}
	if c.ScaleBar.Length < 0 {
		errs = append(errs, "scale_bar.length must be positive, or 0 for automatic")
	}
	if fx, fy := c.ScaleBar.Anchor(); fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		errs = append(errs, "scale_bar location must be within [0,1]")
	}
	if _, err := sen2map.ParseStretch(c.Stretch); err != nil {
		errs = append(errs, err.Error())
	}
	if c.MaxPixels < 1 {
		errs = append(errs, "max_pixels must be positive")
	}
	if len(c.Views) == 0 {
		errs = append(errs, "at least one view is required")
	}
	names := map[string]bool{}
	for i, v := range c.Views {
		if v.Name == "" || v.File == "" {
			errs = append(errs, fmt.Sprintf("view %d needs a name and a file", i))
		}
		if names[v.Name] {
			errs = append(errs, fmt.Sprintf("duplicate view %s", v.Name))
		}
		names[v.Name] = true
		w := v.Window
		if !(w[0] < w[1]) || !(w[2] < w[3]) {
			errs = append(errs, fmt.Sprintf("view %s: window %v is empty", v.Name, w))
		}
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		errs = append(errs, fmt.Sprintf("jpeg_quality must be 1-100, got %d", c.JPEGQuality))
	}
	if c.Parallelism < 1 {
		errs = append(errs, "parallelism must be >=1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Join joins path elements of a local or gs:// location.
func Join(dir string, elems ...string) string {
	if !strings.HasPrefix(dir, "gs://") {
		return filepath.Join(append([]string{dir}, elems...)...)
	}
	for _, e := range elems {
		if e == "" {
			continue
		}
		dir = strings.TrimSuffix(dir, "/") + "/" + strings.TrimPrefix(e, "/")
	}
	return dir
}

// TiffDir is the directory holding the band files of the scene.
func (c *Config) TiffDir() string {
	return Join(c.DataDir, c.SceneDir, c.Scene, c.TiffSubdir)
}

// ShapefilePath returns the overlay location, or "" when no overlay is
// configured.
func (c *Config) ShapefilePath() string {
	if c.Shapefile == "" {
		return ""
	}
	if filepath.IsAbs(c.Shapefile) || strings.HasPrefix(c.Shapefile, "gs://") {
		return c.Shapefile
	}
	return Join(c.DataDir, c.Shapefile)
}

// PlotsDir returns the output directory: plot_dir if set, else
// <data_dir>/plots_<shapefile stem>.
func (c *Config) PlotsDir() string {
	if c.PlotDir != "" {
		return c.PlotDir
	}
	stem := "quicklook"
	if c.Shapefile != "" {
		base := filepath.Base(c.Shapefile)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Join(c.DataDir, "plots_"+stem)
}

// StretchMethod returns the parsed stretch setting.
func (c *Config) StretchMethod() sen2map.StretchMethod {
	m, _ := sen2map.ParseStretch(c.Stretch)
	return m
}
