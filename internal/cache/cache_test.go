package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/server/internal/lib/blindspot"
	"github.com/saferoute/server/internal/lib/geo"
)

func TestCache_SetGet(t *testing.T) {
	c := New()

	require.NoError(t, c.Set("key", map[string]int{"a": 1}, time.Minute, "test"))

	var out map[string]int
	found, err := c.Get("key", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, out["a"])

	found, err = c.Get("missing", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_Expiry(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("key", "value", -time.Second, "test"))

	var out string
	found, err := c.Get("key", &out)
	require.NoError(t, err)
	assert.False(t, found, "expired entries must not be returned")

	assert.Equal(t, 1, c.CleanupStale())
	assert.Zero(t, c.Len())
}

func TestCache_Elevation(t *testing.T) {
	c := New()
	p := geo.Point{Latitude: 38.1391, Longitude: -120.4561}

	_, _, cached := c.GetElevation(p)
	assert.False(t, cached)

	elevation := 642.5
	require.NoError(t, c.SetElevation(p, &elevation, time.Minute))

	value, ok, cached := c.GetElevation(p)
	assert.True(t, cached)
	assert.True(t, ok)
	assert.Equal(t, 642.5, value)

	// A cached "no data" is still a hit
	require.NoError(t, c.SetElevation(geo.Point{Latitude: 38.2, Longitude: -120.5}, nil, time.Minute))
	_, ok, cached = c.GetElevation(geo.Point{Latitude: 38.2, Longitude: -120.5})
	assert.True(t, cached)
	assert.False(t, ok)
}

func TestCache_NearbyFeatures(t *testing.T) {
	c := New()
	p := geo.Point{Latitude: 38.1391, Longitude: -120.4561}

	features := []blindspot.Feature{{Name: "barn", Type: "building", HeightMeters: 9, DistanceMeters: 40}}
	require.NoError(t, c.SetNearbyFeatures(p, 100, features, time.Minute))

	got, found := c.GetNearbyFeatures(p, 100)
	require.True(t, found)
	require.Len(t, got, 1)
	assert.Equal(t, "barn", got[0].Name)

	// Different radius is a different query
	_, found = c.GetNearbyFeatures(p, 200)
	assert.False(t, found)
}
