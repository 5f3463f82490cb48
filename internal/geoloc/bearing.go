package geoloc

import "math"

// NormalizeBearingDeg converts a bearing in radians to compass degrees in
// [0, 360). Uses floor-style modulo so arbitrarily negative inputs still
// land in range.
func NormalizeBearingDeg(bearingRad float64) float64 {
	deg := math.Mod(degrees(bearingRad)+360, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// TargetBearingRad maps a horizontal pixel coordinate to an absolute
// bearing in radians. Pixel column 0 lands on the left edge of the field of
// view and column widthPx on the right edge, offset from the camera's
// heading. The mapping is linear in pixels; no clamping is applied, so a
// center coordinate outside the sensor yields a bearing outside [0, 360)
// degrees. That is accepted behavior, not an error.
func TargetBearingRad(bearingRad, fovDeg float64, widthPx, centerXPx int) float64 {
	centerDeg := NormalizeBearingDeg(bearingRad)
	targetDeg := (centerDeg - fovDeg/2) + float64(centerXPx)/(float64(widthPx)/fovDeg)
	return radians(targetDeg)
}
