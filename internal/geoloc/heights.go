package geoloc

// DefaultObjectHeightM is assumed for classifications with no table entry.
const DefaultObjectHeightM = 1.0

// highMountAltitudeM is the mounting altitude above which the geographic
// path doubles the assumed height. High mounts foreshorten targets, so the
// same pixel height corresponds to a taller object. Strictly greater-than:
// a camera at exactly 40m gets no correction.
const highMountAltitudeM = 40.0

// HeightTable maps a classification label to an assumed real-world object
// height in meters. Tables are read-only after construction and safe to
// share across goroutines.
type HeightTable map[string]float64

// DefaultHeightTable returns a fresh copy of the built-in height table.
// Callers may mutate the copy before handing it to NewLocator.
func DefaultHeightTable() HeightTable {
	return HeightTable{
		"person":        1.7,
		"car":           1.6,
		"motorcycle":    1.0,
		"truck":         1.8,
		"airplane":      15.0,
		"traffic light": 0.6,
		"boat":          30.0,
	}
}

// Has reports whether classification has a table entry. Callers use this to
// decide whether a detection is worth processing at all; it never changes
// which computation runs.
func (t HeightTable) Has(classification string) bool {
	_, ok := t[classification]
	return ok
}

// Height resolves the assumed height for classification, falling back to
// DefaultObjectHeightM for unknown labels. Always positive for well-formed
// tables.
func (t HeightTable) Height(classification string) float64 {
	if h, ok := t[classification]; ok {
		return h
	}
	return DefaultObjectHeightM
}

// HeightForAltitude resolves the assumed height with the high-mount
// correction applied: above highMountAltitudeM the height doubles. Only the
// geographic path uses this; the local path takes Height unchanged. The
// asymmetry is deliberate and relied on by callers.
func (t HeightTable) HeightForAltitude(classification string, altitudeM float64) float64 {
	h := t.Height(classification)
	if altitudeM > highMountAltitudeM {
		h *= 2
	}
	return h
}
