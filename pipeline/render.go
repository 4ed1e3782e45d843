package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/config"
	"github.com/pyeo/sen2map/overlay"
	"github.com/pyeo/sen2map/raster"
	"github.com/pyeo/sen2map/render"
	"github.com/tbonfort/gobs"
	"go.airbusds-geo.com/log"
	"go.uber.org/zap"
)

// Storage is the file access needed to render a scene.
type Storage interface {
	raster.Lister
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	MkdirAll(name string) (bool, error)
}

type Renderer struct {
	cfg   *config.Config
	store Storage
}

func New(cfg *config.Config, store Storage) *Renderer {
	return &Renderer{cfg: cfg, store: store}
}

// Preload opens and closes each dataset, 25 at a time.
func Preload(datasets []string) error {
	pool := gobs.NewPool(25)
	batch := pool.Batch()
	for _, dsn := range datasets {
		dsn := dsn
		batch.Submit(func() error {
			ds, err := godal.Open(dsn)
			if err != nil {
				return fmt.Errorf("open %s: %w", dsn, err)
			}
			ds.Close()
			return nil
		})
	}
	return batch.Wait()
}

// Bands lists the scene and returns the red, green and blue band files.
func (r *Renderer) Bands(ctx context.Context) ([]string, error) {
	scene, err := raster.ListScene(ctx, r.store, r.cfg.TiffDir())
	if err != nil {
		return nil, err
	}
	return scene.Select(r.cfg.Bands)
}

// Run renders every configured view and returns their plans.
func (r *Renderer) Run(ctx context.Context) ([]ViewPlan, error) {
	logger := log.Logger(ctx)
	files, err := r.Bands(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("using bands", zap.Strings("files", files))
	if err := Preload(files); err != nil {
		return nil, err
	}

	st := time.Now()
	comp, err := raster.ReadComposite(ctx, files,
		raster.MaxPixels(r.cfg.MaxPixels),
		raster.Stretch(r.cfg.StretchMethod()),
		raster.Parallelism(r.cfg.Parallelism))
	if err != nil {
		return nil, fmt.Errorf("read composite: %w", err)
	}
	logger.Debug("read composite",
		zap.Int("width", comp.Image.Rect.Dx()), zap.Int("height", comp.Image.Rect.Dy()),
		zap.Stringer("extent", comp.Extent), zap.Duration("took", time.Since(st)))

	var idx *overlay.Index
	if shp := r.cfg.ShapefilePath(); shp != "" {
		if idx, err = loadOverlay(shp, comp.WKT); err != nil {
			return nil, err
		}
		b := idx.Bound()
		logger.Info("loaded overlay", zap.String("file", shp), zap.Int("features", idx.Len()),
			zap.Float64s("bound", []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}))
		ob := sen2map.Extent{XMin: b.Min[0], XMax: b.Max[0], YMin: b.Min[1], YMax: b.Max[1]}
		if _, ok := ob.Intersect(comp.Extent); idx.Len() > 0 && !ok {
			logger.Warn("overlay does not overlap the scene", zap.String("file", shp))
		}
	}

	plots := r.cfg.PlotsDir()
	created, err := r.store.MkdirAll(plots)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Info("created plot directory", zap.String("dir", plots))
	}

	barColor, err := render.ParseColor(r.cfg.ScaleBar.Color)
	if err != nil {
		return nil, fmt.Errorf("scale bar color: %w", err)
	}

	plans := make([]ViewPlan, len(r.cfg.Views))
	batch := gobs.NewPool(r.cfg.Parallelism).Batch()
	for i, view := range r.cfg.Views {
		i, view := i, view
		batch.Submit(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			vp, err := r.renderView(ctx, comp, idx, view, config.Join(plots, view.File), barColor)
			if err != nil {
				return err
			}
			plans[i] = vp
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		return nil, err
	}
	return plans, nil
}

func loadOverlay(shp, wkt string) (*overlay.Index, error) {
	sr, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("scene srs: %w", err)
	}
	defer sr.Close()
	features, err := overlay.Load(shp, sr)
	if err != nil {
		return nil, err
	}
	return overlay.NewIndex(features), nil
}

// ScaleBarSettings returns the scale bar placement of the configuration.
func (r *Renderer) ScaleBarSettings() ScaleBarSettings {
	fx, fy := r.cfg.ScaleBar.Anchor()
	return ScaleBarSettings{
		LocationX: fx,
		LocationY: fy,
		Options:   r.cfg.ScaleBar.Options(),
	}
}

// Plan computes the plans of all configured views over a scene extent.
func (r *Renderer) Plan(ctx context.Context, wkt string, scene sen2map.Extent) ([]ViewPlan, error) {
	sr, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, fmt.Errorf("scene srs: %w", err)
	}
	defer sr.Close()
	plans := make([]ViewPlan, len(r.cfg.Views))
	for i, view := range r.cfg.Views {
		if plans[i], err = PlanView(sr, scene, view, r.cfg.Ticks, r.ScaleBarSettings()); err != nil {
			return nil, err
		}
		if plans[i].Fallback {
			log.Logger(ctx).Warn("gridlines not rounded", zap.String("view", view.Name),
				zap.Stringer("extent", plans[i].Extent))
		}
	}
	return plans, nil
}

func (r *Renderer) renderView(ctx context.Context, comp *raster.Composite, idx *overlay.Index,
	view sen2map.View, dst string, barColor color.Color) (ViewPlan, error) {
	logger := log.Logger(ctx).With(zap.String("view", view.Name))
	sr, err := godal.NewSpatialRefFromWKT(comp.WKT)
	if err != nil {
		return ViewPlan{}, fmt.Errorf("scene srs: %w", err)
	}
	defer sr.Close()
	vp, err := PlanView(sr, comp.Extent, view, r.cfg.Ticks, r.ScaleBarSettings())
	if err != nil {
		return vp, err
	}
	if vp.Fallback {
		logger.Warn("gridlines not rounded", zap.Stringer("extent", vp.Extent))
	}

	cv, err := render.New(r.cfg.Width, r.cfg.Height, vp.Extent)
	if err != nil {
		return vp, fmt.Errorf("view %s: %w", view.Name, err)
	}
	if _, ok := vp.Extent.Intersect(comp.Extent); ok {
		cv.DrawRaster(comp.Image, comp.Extent)
	} else {
		logger.Warn("view does not overlap the scene", zap.Stringer("extent", vp.Extent))
	}
	if idx != nil {
		features := idx.Query(vp.Extent)
		for _, f := range features {
			cv.DrawGeometry(f.Geometry, render.OverlayColor, 1.5)
		}
		logger.Debug("drew overlay", zap.Int("features", len(features)))
	}
	cv.DrawGridlines(vp.Ticks, render.GridColor)
	cv.DrawFrame(color.Black)
	cv.DrawTickLabels(vp.Ticks, color.Black)
	cv.DrawTitle(view.Title, color.Black)
	cv.DrawScaleBar(vp.ScaleBar, barColor, math.Max(3, float64(r.cfg.Height)/200))

	w, err := r.store.Create(ctx, dst)
	if err != nil {
		return vp, err
	}
	if strings.EqualFold(path.Ext(dst), ".png") {
		err = cv.EncodePNG(w)
	} else {
		err = cv.EncodeJPEG(w, r.cfg.JPEGQuality)
	}
	if err != nil {
		w.Close()
		return vp, fmt.Errorf("encode %s: %w", dst, err)
	}
	if err := w.Close(); err != nil {
		return vp, fmt.Errorf("close %s: %w", dst, err)
	}
	logger.Info("wrote map", zap.String("file", dst))
	return vp, nil
}
