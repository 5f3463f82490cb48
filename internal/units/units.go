// Package units provides shared constants and validation for distance units
package units

// Unit constants
const (
	Meters     = "m"
	Feet       = "ft"
	Kilometers = "km"
	Miles      = "mi"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Meters, Feet, Kilometers, Miles}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, ft, km, mi"
}

// ConvertDistance converts a distance from meters to the target units
// Database stores distances in meters
func ConvertDistance(distanceM float64, targetUnits string) float64 {
	switch targetUnits {
	case Meters:
		return distanceM
	case Feet:
		return distanceM * 3.28084 // meters to feet
	case Kilometers:
		return distanceM * 0.001
	case Miles:
		return distanceM * 0.000621371 // meters to miles
	default:
		return distanceM // default to meters if unknown unit
	}
}
