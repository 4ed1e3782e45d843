// Package pipeline renders the quicklook maps of a Sentinel-2 scene: it
// reads the band composite, plans gridlines and scale bars for each view and
// writes one jpeg per view.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/pyeo/sen2map"
	"github.com/pyeo/sen2map/geo"
)

// A ViewPlan holds everything needed to draw a view, except the pixels.
// Fallback is set when the gridlines could not be rounded and were computed
// on the raw view bounds.
type ViewPlan struct {
	View     sen2map.View    `json:"view"`
	Extent   sen2map.Extent  `json:"extent"`
	Ticks    sen2map.TickSet `json:"ticks"`
	ScaleBar geo.ScaleBar    `json:"scale_bar"`
	Fallback bool            `json:"fallback,omitempty"`
}

// PlanView computes the extent, gridlines and scale bar of view over a scene
// covering scene in the reference system sr.
func PlanView(sr *godal.SpatialRef, scene sen2map.Extent, view sen2map.View, ticks int, sb ScaleBarSettings) (ViewPlan, error) {
	vp := ViewPlan{View: view}
	var err error
	if vp.Extent, err = view.Extent(scene); err != nil {
		return vp, err
	}
	vp.Ticks, err = sen2map.ComputeGridlines(vp.Extent, ticks)
	if err != nil {
		var moe sen2map.ErrMagnitudeOverflow
		if !errors.As(err, &moe) {
			return vp, fmt.Errorf("view %s gridlines: %w", view.Name, err)
		}
		vp.Fallback = true
	}
	frame, err := geo.NewFrame(sr, vp.Extent, sb.LocationX, sb.LocationY)
	if err != nil {
		return vp, fmt.Errorf("view %s frame: %w", view.Name, err)
	}
	defer frame.Close()
	if vp.ScaleBar, err = frame.ScaleBar(sb.Options...); err != nil {
		return vp, fmt.Errorf("view %s scale bar: %w", view.Name, err)
	}
	return vp, nil
}

// ScaleBarSettings positions the scale bar planned for a view. LocationX and
// LocationY also center the frame the bar is planned in.
type ScaleBarSettings struct {
	LocationX, LocationY float64
	Options              []sen2map.ScaleBarOption
}
