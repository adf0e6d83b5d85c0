package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the great-circle distance between two coordinates in
// kilometers, computed with the haversine formula.
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// RoundKm rounds a distance to one decimal, the precision shown in
// notification messages.
func RoundKm(km float64) float64 {
	return math.Round(km*10) / 10
}

func radians(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// Bounds is a rectangular lat/lng envelope.
type Bounds struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// ServiceBounds covers Nigeria, the service's coverage area.
var ServiceBounds = Bounds{
	SouthWest: Coordinate{Lat: 4.0, Lng: 2.5},
	NorthEast: Coordinate{Lat: 14.0, Lng: 15.0},
}

// Contains reports whether the coordinate falls inside the envelope.
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lng >= b.SouthWest.Lng && c.Lng <= b.NorthEast.Lng
}
