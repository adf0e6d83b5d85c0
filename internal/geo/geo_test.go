package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZero(t *testing.T) {
	lagos := Coordinate{Lat: 6.5244, Lng: 3.3792}
	assert.Equal(t, 0.0, Distance(lagos, lagos))
}

func TestDistanceSymmetric(t *testing.T) {
	a := Coordinate{Lat: 6.5244, Lng: 3.3792}
	b := Coordinate{Lat: 9.0579, Lng: 7.4951}
	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}

func TestDistanceLagosNeighborhood(t *testing.T) {
	// Viewer in Lagos, alert a few streets away: roughly 0.63 km.
	viewer := Coordinate{Lat: 6.5244, Lng: 3.3792}
	alert := Coordinate{Lat: 6.5300, Lng: 3.3800}

	d := Distance(viewer, alert)
	assert.InDelta(t, 0.63, d, 0.02)
}

func TestDistanceLagosToAbuja(t *testing.T) {
	lagos := Coordinate{Lat: 6.5244, Lng: 3.3792}
	abuja := Coordinate{Lat: 9.0579, Lng: 7.4951}

	// Roughly 536 km as the crow flies.
	d := Distance(lagos, abuja)
	assert.InDelta(t, 536, d, 5)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 0.6, RoundKm(0.6312))
	assert.Equal(t, 1.0, RoundKm(0.95))
	assert.Equal(t, 2.0, RoundKm(1.999))
}

func TestServiceBoundsContains(t *testing.T) {
	assert.True(t, ServiceBounds.Contains(Coordinate{Lat: 6.5244, Lng: 3.3792}))    // Lagos
	assert.True(t, ServiceBounds.Contains(Coordinate{Lat: 9.0579, Lng: 7.4951}))    // Abuja
	assert.False(t, ServiceBounds.Contains(Coordinate{Lat: 51.5072, Lng: -0.1276})) // London
}
