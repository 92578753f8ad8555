// Package geo holds the small amount of geolocation math the engine needs:
// great-circle distance, unit conversion and bounding boxes for pool queries.
package geo

import "math"

const earthRadiusKm = 6371.0

// Unit is a user-facing distance unit.
type Unit string

const (
	Miles      Unit = "miles"
	Kilometers Unit = "kilometers"
)

const kmPerMile = 1.609344

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return u == Miles || u == Kilometers
}

// ToKilometers converts v expressed in unit u to kilometers.
// Unknown units are treated as miles, the product default.
func ToKilometers(v float64, u Unit) float64 {
	if u == Kilometers {
		return v
	}
	return v * kmPerMile
}

// ValidCoordinates reports whether lat/lon are inside WGS84 bounds.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// DistanceKm returns the haversine distance between two points.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Box is an axis-aligned lat/lon rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// BoundingBox returns a box that contains every point within radiusKm of
// (lat, lon). It over-approximates; callers refine with DistanceKm.
// Near the poles, or when the radius wraps the antimeridian, the longitude
// range is widened to the full circle.
func BoundingBox(lat, lon, radiusKm float64) Box {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	cosLat := math.Cos(toRad(lat))
	if cosLat < 1e-6 {
		return box
	}
	dLon := dLat / cosLat
	if lon-dLon < -180 || lon+dLon > 180 {
		return box
	}
	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
