package geoloc

import "math"

// EarthRadiusMeters is the mean spherical-earth radius.
const EarthRadiusMeters = 6371000.0

// isoLatEpsilon guards the removable singularity in the rhumb-line formula
// when the latitude delta is near zero (the 0/0 limit of latDelta over the
// isometric-latitude delta). Below it the first-order cos(lat) fallback is
// used instead.
const isoLatEpsilon = 1e-11

// ProjectGeographic computes the destination reached by travelling
// distanceM meters at constant bearing bearingRad from (latRad, lonRad), on
// a spherical earth with Mercator (isometric latitude) correction for the
// longitude scale. Radians in, radians out.
//
// A zero distance returns the source exactly. The model is intended for
// sub-kilometer offsets: no ellipsoid, no pole or antimeridian handling,
// and no great-circle distinction at range.
func ProjectGeographic(distanceM, bearingRad, latRad, lonRad float64) (targetLat, targetLon float64) {
	dr := distanceM / EarthRadiusMeters
	latDelta := dr * math.Cos(bearingRad)
	targetLat = latRad + latDelta

	isoDelta := math.Log(math.Tan(targetLat/2+math.Pi/4) / math.Tan(latRad/2+math.Pi/4))
	q := math.Cos(latRad)
	if math.Abs(isoDelta) > isoLatEpsilon {
		q = latDelta / isoDelta
	}

	targetLon = lonRad + dr*math.Sin(bearingRad)/q
	return targetLat, targetLon
}
