package geoloc

// Detection is a single bounding-box observation from the vision unit.
// CenterYPx only affects the local path and WidthPx currently affects
// neither; both are carried so upstream callers can populate the full box
// without the fields silently vanishing from the interface.
type Detection struct {
	Classification string
	CenterXPx      int
	CenterYPx      int
	WidthPx        int
	HeightPx       int
}

// Observer is the camera's own pose: absolute bearing of the optical axis
// and the mount's geographic position. AltitudeM feeds the high-mount
// height correction on the geographic path only.
type Observer struct {
	BearingRad   float64
	LatitudeRad  float64
	LongitudeRad float64
	AltitudeM    float64
}

// Locator resolves detections into positions using an explicit height
// table. The zero value is not usable; construct with NewLocator. A Locator
// is immutable after construction and safe for concurrent use.
type Locator struct {
	heights HeightTable
}

// NewLocator returns a Locator backed by heights. A nil or empty table
// selects the built-in defaults.
func NewLocator(heights HeightTable) *Locator {
	if len(heights) == 0 {
		heights = DefaultHeightTable()
	}
	return &Locator{heights: heights}
}

// Heights exposes the table the Locator resolves against.
func (l *Locator) Heights() HeightTable { return l.heights }

// HasKnownHeight reports whether the table carries an entry for
// classification, letting callers skip detections they cannot size.
func (l *Locator) HasKnownHeight(classification string) bool {
	return l.heights.Has(classification)
}

// EventPosition estimates the absolute geographic position of a detection
// seen by obs. The assumed object height takes the high-mount altitude
// correction. Returns latitude and longitude in radians.
//
// det.HeightPx and the sensor dimensions must be positive; see
// EstimateDistance for the failure mode.
func (l *Locator) EventPosition(det Detection, obs Observer, in Intrinsics) (latRad, lonRad float64) {
	in = in.withDefaults()
	heightM := l.heights.HeightForAltitude(det.Classification, obs.AltitudeM)
	distanceM, fovDeg := EstimateDistance(in, heightM, det.HeightPx)
	bearing := TargetBearingRad(obs.BearingRad, fovDeg, in.SensorWidthPx, det.CenterXPx)
	return ProjectGeographic(distanceM, bearing, obs.LatitudeRad, obs.LongitudeRad)
}

// EventLocalPosition estimates the detection's offset from the camera in
// the local frame, in meters. No altitude correction applies here: the
// assumed height comes straight from the table regardless of the mount.
func (l *Locator) EventLocalPosition(det Detection, bearingRad float64, in Intrinsics) (x, y, z float64) {
	in = in.withDefaults()
	heightM := l.heights.Height(det.Classification)
	distanceM, fovDeg := EstimateDistance(in, heightM, det.HeightPx)
	bearing := TargetBearingRad(bearingRad, fovDeg, in.SensorWidthPx, det.CenterXPx)
	return ProjectLocal(distanceM, bearing, in.SensorHeightPx, det.CenterYPx, heightM, det.HeightPx)
}
