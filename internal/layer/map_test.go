package layer

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

func TestMap_MountAddsLayers(t *testing.T) {
	m := NewMap()
	assert.False(t, m.HasLayer(PulseLayerID))

	m.Mount()

	assert.True(t, m.Mounted())
	assert.True(t, m.HasLayer(DotLayerID))
	assert.True(t, m.HasLayer(PulseLayerID))
	require.NotNil(t, m.Data())
	assert.Empty(t, m.Data().Features)

	style := m.Style()
	require.Len(t, style, 2)
	assert.Equal(t, DotLayerID, style[0].ID)
	assert.InDelta(t, 0.6, style[1].Paint["circle-opacity"], 0)
}

func TestMap_RemoveTearsDown(t *testing.T) {
	m := NewMap()
	m.Mount()
	m.Remove()

	assert.False(t, m.HasLayer(PulseLayerID))
	assert.ErrorIs(t, m.SetData(domain.NewFeatureCollection(nil)), ErrNoSource)
	assert.ErrorIs(t, m.SetPaintProperty(PulseLayerID, "circle-opacity", 0.1), ErrNoLayer)
}

func TestMap_SetPaintProperty(t *testing.T) {
	m := NewMap()
	m.Mount()

	require.NoError(t, m.SetPaintProperty(PulseLayerID, "circle-opacity", 0.3))

	style := m.Style()
	assert.InDelta(t, 0.3, style[1].Paint["circle-opacity"], 0)

	// Style returns copies.
	style[1].Paint["circle-opacity"] = 1.0
	assert.InDelta(t, 0.3, m.Style()[1].Paint["circle-opacity"], 0)
}

func TestMap_FlyTo(t *testing.T) {
	m := NewMap()
	assert.Equal(t, DefaultCenter, m.Camera().Center)

	m.FlyTo(orb.Point{86.93, 27.9}, 11, time.Second)

	assert.Equal(t, Camera{Center: orb.Point{86.93, 27.9}, Zoom: 11, Transition: time.Second}, m.Camera())
}

func TestMap_FeaturesAtTopmostFirst(t *testing.T) {
	m := NewMap()
	m.Mount()
	require.NoError(t, m.SetData(domain.NewFeatureCollection([]domain.Lake{
		{ID: 1, Name: "under", Latitude: 27.9, Longitude: 86.93, RiskLevel: domain.RiskLow},
		{ID: 2, Name: "over", Latitude: 27.9001, Longitude: 86.9301, RiskLevel: domain.RiskHigh},
		{ID: 3, Name: "far", Latitude: 28.5, Longitude: 84.5, RiskLevel: domain.RiskHigh},
	})))

	hits := m.FeaturesAt(orb.Point{86.93, 27.9}, 500)

	require.Len(t, hits, 2)
	assert.Equal(t, "over", hits[0][domain.PropName])
	assert.Equal(t, "under", hits[1][domain.PropName])
	assert.Empty(t, m.FeaturesAt(orb.Point{80, 20}, 500))
}

func TestPulseRadiusExpr(t *testing.T) {
	expr := PulseRadiusExpr(12)
	assert.Equal(t, []any{"interpolate", []any{"linear"}, []any{"zoom"}, 6, 18.0, 10, 12.0}, expr)
}
