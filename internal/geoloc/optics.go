package geoloc

import "math"

// Default lens parameters for the deployed camera units. Applied when an
// Intrinsics leaves the corresponding field zero.
const (
	DefaultFocalLengthMM = 22.0
	DefaultSensorWidthMM = 7.0
)

// Intrinsics describes the camera sensor: frame dimensions in pixels plus
// the physical lens parameters. SensorHeightMM is derived, not stored, so
// the physical aspect ratio always matches the pixel aspect ratio.
type Intrinsics struct {
	SensorWidthPx  int
	SensorHeightPx int
	FocalLengthMM  float64
	SensorWidthMM  float64
}

// withDefaults fills zero lens parameters with the deployed-unit defaults.
func (in Intrinsics) withDefaults() Intrinsics {
	if in.FocalLengthMM == 0 {
		in.FocalLengthMM = DefaultFocalLengthMM
	}
	if in.SensorWidthMM == 0 {
		in.SensorWidthMM = DefaultSensorWidthMM
	}
	return in
}

// SensorHeightMM derives the physical sensor height from the physical width
// and the pixel aspect ratio.
func (in Intrinsics) SensorHeightMM() float64 {
	return in.SensorWidthMM * (float64(in.SensorHeightPx) / float64(in.SensorWidthPx))
}

// FieldOfViewDeg computes the horizontal field of view in degrees from the
// physical sensor width and focal length.
func (in Intrinsics) FieldOfViewDeg() float64 {
	return degrees(2 * math.Atan((in.SensorWidthMM/2)/in.FocalLengthMM))
}

// EstimateDistance estimates the distance to an object of known real height
// heightM whose bounding box spans heightPx pixels, using the thin-lens
// approximation: apparent size on the sensor is inversely proportional to
// distance, scaled by focal length. Returns the horizontal field of view in
// degrees alongside the distance since both feed the bearing math.
//
// heightPx must be > 0 and the sensor dimensions must be > 0; a zero value
// divides by zero per IEEE semantics. Callers reject such detections before
// calling.
func EstimateDistance(in Intrinsics, heightM float64, heightPx int) (distanceM, fovDeg float64) {
	in = in.withDefaults()
	onSensorMM := (in.SensorHeightMM() * float64(heightPx)) / float64(in.SensorHeightPx)
	fovDeg = in.FieldOfViewDeg()
	distanceM = (heightM * in.FocalLengthMM) / onSensorMM
	return distanceM, fovDeg
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }
