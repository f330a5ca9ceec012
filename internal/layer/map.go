// Package layer keeps the rendered map in step with the record store.
//
// Map is the service-side model of the browser map: one GeoJSON point source,
// the layers drawn from it with their paint properties, and the camera.
// Synchronizer derives the source data from the store and the active filter.
// Both are owned by the UI loop and are not safe for concurrent use.
package layer

import (
	"errors"
	"maps"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// Identifiers shared with the map client.
const (
	SourceID     = "glacier-lakes"
	DotLayerID   = "glacier-lake-dots"
	PulseLayerID = "glacier-lake-pulse"
)

var (
	// ErrNoSource is returned when data is pushed to a map that has been torn down.
	ErrNoSource = errors.New("map source not mounted")
	// ErrNoLayer is returned when painting a layer that does not exist.
	ErrNoLayer = errors.New("map layer not found")
)

// Initial camera: the Khumbu / Rolwaling region.
var (
	DefaultCenter = orb.Point{86.6, 27.9}
	DefaultZoom   = 8.0
)

// Layer is a named draw instruction over the source.
type Layer struct {
	ID     string         `json:"id"`
	Source string         `json:"source"`
	Filter []any          `json:"filter,omitempty"`
	Paint  map[string]any `json:"paint"`
}

// Camera is the current or target view.
type Camera struct {
	Center     orb.Point     `json:"center"`
	Zoom       float64       `json:"zoom"`
	Transition time.Duration `json:"-"`
}

// Map models a mounted map instance.
type Map struct {
	mounted bool
	data    *geojson.FeatureCollection
	layers  []*Layer
	camera  Camera
}

// NewMap returns an unmounted map positioned at the default view.
func NewMap() *Map {
	return &Map{camera: Camera{Center: DefaultCenter, Zoom: DefaultZoom}}
}

// Mount adds the lake source and its two layers. Mounting twice is a no-op.
func (m *Map) Mount() {
	if m.mounted {
		return
	}
	m.mounted = true
	m.data = geojson.NewFeatureCollection()
	m.layers = []*Layer{
		{ID: DotLayerID, Source: SourceID, Paint: dotPaint()},
		{
			ID:     PulseLayerID,
			Source: SourceID,
			Filter: []any{"==", []any{"get", domain.PropClassification}, string(domain.RiskHigh)},
			Paint: map[string]any{
				"circle-color":   domain.ColorHigh,
				"circle-radius":  PulseRadiusExpr(10),
				"circle-opacity": 0.6,
			},
		},
	}
}

// Remove tears the map down. Layers and source disappear; the camera stays.
func (m *Map) Remove() {
	m.mounted = false
	m.data = nil
	m.layers = nil
}

// Mounted reports whether the source exists.
func (m *Map) Mounted() bool {
	return m.mounted
}

// SetData replaces the source's features in one step.
func (m *Map) SetData(fc *geojson.FeatureCollection) error {
	if !m.mounted {
		return ErrNoSource
	}
	m.data = fc
	return nil
}

// Data returns the current feature collection, or nil when unmounted.
func (m *Map) Data() *geojson.FeatureCollection {
	return m.data
}

// HasLayer reports whether a layer with id is present.
func (m *Map) HasLayer(id string) bool {
	return m.layer(id) != nil
}

// SetPaintProperty sets one paint property on a layer.
func (m *Map) SetPaintProperty(layerID, name string, value any) error {
	l := m.layer(layerID)
	if l == nil {
		return ErrNoLayer
	}
	l.Paint[name] = value
	return nil
}

// Style returns a copy of the layers in draw order.
func (m *Map) Style() []Layer {
	out := make([]Layer, 0, len(m.layers))
	for _, l := range m.layers {
		cp := *l
		cp.Paint = maps.Clone(l.Paint)
		out = append(out, cp)
	}
	return out
}

// FlyTo moves the camera. The transition is recorded for the client to animate.
func (m *Map) FlyTo(center orb.Point, zoom float64, duration time.Duration) {
	m.camera = Camera{Center: center, Zoom: zoom, Transition: duration}
}

// Camera returns the current camera target.
func (m *Map) Camera() Camera {
	return m.camera
}

// FeaturesAt returns the properties of rendered features within tolerance
// meters of pt, topmost first. Later features in the source draw on top.
func (m *Map) FeaturesAt(pt orb.Point, toleranceMeters float64) []map[string]any {
	if m.data == nil {
		return nil
	}
	var hits []map[string]any
	for i := len(m.data.Features) - 1; i >= 0; i-- {
		f := m.data.Features[i]
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		if geo.DistanceHaversine(pt, p) <= toleranceMeters {
			hits = append(hits, f.Properties)
		}
	}
	return hits
}

func (m *Map) layer(id string) *Layer {
	for _, l := range m.layers {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// PulseRadiusExpr scales the pulse radius down as the map zooms in.
func PulseRadiusExpr(radius float64) []any {
	return []any{"interpolate", []any{"linear"}, []any{"zoom"}, 6, radius + 6, 10, radius}
}

func dotPaint() map[string]any {
	return map[string]any{
		"circle-radius": []any{"interpolate", []any{"linear"}, []any{"zoom"}, 6, 4, 9, 6, 12, 9},
		"circle-color": []any{
			"match", []any{"get", domain.PropClassification},
			string(domain.RiskHigh), domain.ColorHigh,
			string(domain.RiskMedium), domain.ColorMedium,
			string(domain.RiskLow), domain.ColorLow,
			domain.FallbackColor,
		},
		"circle-stroke-width": 1.5,
		"circle-stroke-color": "#0b1220",
		"circle-opacity":      0.95,
	}
}
