package domain

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature property keys shared with the map client.
const (
	PropID             = "id"
	PropClassification = "classification"
	PropName           = "name"
	PropConfidence     = "confidence"
)

// RenderFeature is the per-lake projection drawn on the map.
type RenderFeature struct {
	ID             LakeID
	Classification RiskLevel
	Name           string
	Confidence     float64
	Position       orb.Point
}

// NewRenderFeature projects a lake into its rendered form.
func NewRenderFeature(l Lake) RenderFeature {
	return RenderFeature{
		ID:             l.ID,
		Classification: l.RiskLevel,
		Name:           l.Name,
		Confidence:     l.Confidence,
		Position:       l.Position(),
	}
}

// GeoJSON converts the feature to a GeoJSON point.
func (r RenderFeature) GeoJSON() *geojson.Feature {
	f := geojson.NewFeature(r.Position)
	f.ID = int64(r.ID)
	f.Properties = geojson.Properties{
		PropID:             int64(r.ID),
		PropClassification: string(r.Classification),
		PropName:           r.Name,
		PropConfidence:     r.Confidence,
	}
	return f
}

// NewFeatureCollection builds the point collection for lakes in order.
func NewFeatureCollection(lakes []Lake) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = make([]*geojson.Feature, 0, len(lakes))
	for _, l := range lakes {
		fc.Append(NewRenderFeature(l).GeoJSON())
	}
	return fc
}
