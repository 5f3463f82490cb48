package geoloc

import (
	"math"
	"testing"
)

func TestProjectGeographic_ZeroDistanceIsFixedPoint(t *testing.T) {
	lat, lon := 0.7853981633974483, -2.1293016874330445

	gotLat, gotLon := ProjectGeographic(0, 1.234, lat, lon)

	if gotLat != lat {
		t.Errorf("latitude moved at zero distance: got %v, want %v", gotLat, lat)
	}
	if gotLon != lon {
		t.Errorf("longitude moved at zero distance: got %v, want %v", gotLon, lon)
	}
}

func TestProjectGeographic_DueNorth(t *testing.T) {
	const distanceM = 1000.0
	srcLat := math.Pi / 4
	dr := distanceM / EarthRadiusMeters

	gotLat, gotLon := ProjectGeographic(distanceM, 0, srcLat, 0)

	if math.Abs((gotLat-srcLat)-dr) > 1e-12 {
		t.Errorf("northward latitude delta = %v, want %v", gotLat-srcLat, dr)
	}
	if gotLon != 0 {
		t.Errorf("due north must not change longitude, got %v", gotLon)
	}
}

func TestProjectGeographic_DueEastAtEquator(t *testing.T) {
	// Heading east the latitude delta vanishes, forcing the isometric
	// ratio through its singularity guard onto the cos(lat) fallback.
	const distanceM = 1000.0
	dr := distanceM / EarthRadiusMeters

	gotLat, gotLon := ProjectGeographic(distanceM, math.Pi/2, 0, 0)

	if math.Abs(gotLat) > 1e-15 {
		t.Errorf("eastward travel at equator moved latitude: %v", gotLat)
	}
	if math.Abs(gotLon-dr) > 1e-12 {
		t.Errorf("equator longitude delta = %v, want %v", gotLon, dr)
	}
}

func TestProjectGeographic_DueEastAtLatitude(t *testing.T) {
	// Away from the equator the same fallback divides by cos(lat),
	// stretching the longitude delta by the meridian convergence.
	const distanceM = 1000.0
	srcLat := math.Pi / 4
	dr := distanceM / EarthRadiusMeters

	_, gotLon := ProjectGeographic(distanceM, math.Pi/2, srcLat, 0)

	want := dr / math.Cos(srcLat)
	if math.Abs(gotLon-want) > 1e-12 {
		t.Errorf("longitude delta at 45N = %v, want %v", gotLon, want)
	}
}

func TestProjectGeographic_NortheastUsesMercatorScale(t *testing.T) {
	// Travelling northeast from 45N the destination sits poleward of the
	// source, so the Mercator-corrected longitude delta must exceed the
	// flat-earth value dr*sin(bearing)/cos(srcLat) computed at the source.
	const distanceM = 1000.0
	srcLat := math.Pi / 4
	dr := distanceM / EarthRadiusMeters

	gotLat, gotLon := ProjectGeographic(distanceM, math.Pi/4, srcLat, 0)

	latDelta := dr * math.Cos(math.Pi/4)
	if math.Abs((gotLat-srcLat)-latDelta) > 1e-12 {
		t.Errorf("latitude delta = %v, want %v", gotLat-srcLat, latDelta)
	}

	flat := dr * math.Sin(math.Pi/4) / math.Cos(srcLat)
	if gotLon <= flat {
		t.Errorf("longitude delta %v should exceed source-latitude approximation %v", gotLon, flat)
	}
	// The correction is second order over 1km: well under a 0.1% stretch.
	if gotLon >= flat*1.001 {
		t.Errorf("longitude delta %v implausibly large vs %v", gotLon, flat)
	}
}

func TestProjectGeographic_ShortRangeMatchesFlatEarth(t *testing.T) {
	// At 100m the rhumb-line result and the flat-earth approximation
	// agree to well under a centimeter of longitude.
	const distanceM = 100.0
	srcLat, srcLon := 0.5, 1.0
	dr := distanceM / EarthRadiusMeters

	for _, bearing := range []float64{0.3, 1.0, 2.2, 4.0, 5.9} {
		gotLat, gotLon := ProjectGeographic(distanceM, bearing, srcLat, srcLon)

		wantLat := srcLat + dr*math.Cos(bearing)
		wantLon := srcLon + dr*math.Sin(bearing)/math.Cos(srcLat)

		if math.Abs(gotLat-wantLat) > 1e-12 {
			t.Errorf("bearing %v: lat = %v, want ~%v", bearing, gotLat, wantLat)
		}
		if math.Abs(gotLon-wantLon) > 1e-9 {
			t.Errorf("bearing %v: lon = %v, want ~%v", bearing, gotLon, wantLon)
		}
	}
}
