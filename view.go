package sen2map

import "fmt"

// A View is a map to render: a window over the scene extent, given as
// fractions of its width and height, and the file and title to render it to.
type View struct {
	Name   string     `json:"name" mapstructure:"name"`
	File   string     `json:"file" mapstructure:"file"`
	Title  string     `json:"title" mapstructure:"title"`
	Window [4]float64 `json:"window" mapstructure:"window"` // fx0, fx1, fy0, fy1
}

// DefaultViews returns the full scene, the scene zoomed out by half its size
// on each side, and its upper right quadrant.
func DefaultViews() []View {
	return []View{
		{Name: "full", File: "map1.jpg", Title: "Sentinel 2 RGB Quicklook", Window: [4]float64{0, 1, 0, 1}},
		{Name: "zoomout", File: "map2.jpg", Title: "Sentinel 2 zoom out", Window: [4]float64{-0.5, 1.5, -0.5, 1.5}},
		{Name: "zoomin", File: "map3.jpg", Title: "Sentinel 2 zoom in", Window: [4]float64{0.5, 1, 0.5, 1}},
	}
}

// Extent returns the map extent of the view over a scene covering scene.
func (v View) Extent(scene Extent) (Extent, error) {
	e := scene.Window(v.Window[0], v.Window[1], v.Window[2], v.Window[3])
	if err := e.Validate(); err != nil {
		return e, fmt.Errorf("view %s: %w", v.Name, err)
	}
	return e, nil
}
