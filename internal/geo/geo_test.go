package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.0001, 0, false},
		{-90.5, 0, false},
		{0, 180.01, false},
		{0, -181, false},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidCoordinates(tt.lat, tt.lon), "lat=%v lon=%v", tt.lat, tt.lon)
	}
}

func TestDistanceKm(t *testing.T) {
	// London → Paris ≈ 344 km
	d := DistanceKm(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344, d, 5)

	assert.InDelta(t, 0, DistanceKm(10, 10, 10, 10), 1e-9)
}

func TestToKilometers(t *testing.T) {
	assert.InDelta(t, 40.2336, ToKilometers(25, Miles), 1e-4)
	assert.Equal(t, 25.0, ToKilometers(25, Kilometers))
	assert.True(t, Miles.Valid())
	assert.False(t, Unit("leagues").Valid())
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	lat, lon := 40.7128, -74.0060
	box := BoundingBox(lat, lon, 50)

	// points 49 km due north/east must be inside the box
	north := lat + 49/earthRadiusKm*180/math.Pi
	assert.True(t, north <= box.MaxLat)
	assert.Less(t, box.MinLon, lon)
	assert.Greater(t, box.MaxLon, lon)
}

func TestBoundingBox_PoleAndAntimeridian(t *testing.T) {
	polar := BoundingBox(89.99, 0, 100)
	assert.Equal(t, -180.0, polar.MinLon)
	assert.Equal(t, 180.0, polar.MaxLon)
	assert.Equal(t, 90.0, polar.MaxLat)

	wrap := BoundingBox(0, 179.9, 100)
	assert.Equal(t, -180.0, wrap.MinLon)
	assert.Equal(t, 180.0, wrap.MaxLon)
}
