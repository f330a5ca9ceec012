// Package viewport moves the map camera to a selected lake.
package viewport

import (
	"time"

	"github.com/paulmach/orb"
)

// Defaults for focusing on a single lake.
const (
	FocusZoom     = 11.0
	FocusDuration = 1000 * time.Millisecond
)

// Camera is a map that can animate to a new view.
type Camera interface {
	FlyTo(center orb.Point, zoom float64, duration time.Duration)
}

// Controller issues camera transitions. It does not wait for them to finish.
type Controller struct {
	camera   Camera
	zoom     float64
	duration time.Duration
}

// NewController returns a controller using FocusZoom and FocusDuration.
func NewController(camera Camera) *Controller {
	return &Controller{camera: camera, zoom: FocusZoom, duration: FocusDuration}
}

// FlyTo centers the camera on pos.
func (c *Controller) FlyTo(pos orb.Point) {
	c.camera.FlyTo(pos, c.zoom, c.duration)
}
