package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmToMiles converts kilometers to statute miles
	KmToMiles = 0.621371

	// KmPerNauticalMile is the length of one nautical mile in kilometers
	KmPerNauticalMile = 1.852

	// KnotsToMph converts knots to statute miles per hour
	KnotsToMph = 1.15078
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// Valid reports whether the latitude and longitude are inside their ranges.
func (g Geographic) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// DistanceKm calculates the great-circle distance between two points in kilometers.
// Uses the Haversine formula, which is symmetric in its arguments.
func DistanceKm(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians

	dLat := (to.Latitude - from.Latitude) * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceNauticalMiles calculates the great-circle distance between two points.
// Returns distance in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceKm(from, to) / KmPerNauticalMile
}

// KmToNauticalMiles converts a distance in kilometers to nautical miles.
func KmToNauticalMiles(km float64) float64 {
	return km / KmPerNauticalMile
}

// InitialBearing returns the initial great-circle bearing from one point to
// another in degrees clockwise from true north, in [0, 360).
func InitialBearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	bearing := math.Atan2(y, x) / DegreesToRadians
	return math.Mod(bearing+360, 360)
}

// CardinalDirection converts a bearing in degrees to a 16-point compass name.
func CardinalDirection(bearing float64) string {
	directions := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	bearing = math.Mod(bearing, 360)
	if bearing < 0 {
		bearing += 360
	}
	index := int((bearing + 11.25) / 22.5)
	return directions[index%16]
}
