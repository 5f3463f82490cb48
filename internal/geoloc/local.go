package geoloc

import "math"

// ProjectLocal converts distance and bearing into an offset in the camera's
// local frame: X along bearing 0, Y along bearing 90 degrees, Z vertical.
// X and Y come from planar polar-to-Cartesian conversion; Z scales the
// vertical pixel offset of the box center by the meters-per-pixel ratio
// implied by an object of heightM spanning heightPx pixels.
//
// The Z sign convention follows the frame midline: a center in the lower
// half of the frame measures up from the frame bottom and is positive, a
// center in the upper half measures down from the midline and is negative.
// The branch is a behavioral contract; callers depend on these exact signs.
func ProjectLocal(distanceM, bearingRad float64, sensorHeightPx, centerYPx int, heightM float64, heightPx int) (x, y, z float64) {
	x = distanceM * math.Cos(bearingRad)
	y = distanceM * math.Sin(bearingRad)

	// Meters spanned by one pixel at the object's range.
	metersPerPx := ((float64(sensorHeightPx) / float64(heightPx)) * heightM) / float64(sensorHeightPx)

	if float64(sensorHeightPx)/2 < float64(centerYPx) {
		z = float64(sensorHeightPx-centerYPx) * metersPerPx
	} else {
		z = (float64(sensorHeightPx)/2 - float64(centerYPx)) * metersPerPx * -1
	}
	return x, y, z
}
