package geoloc

import (
	"math"
	"testing"
)

func TestProjectLocal_ZeroDistance(t *testing.T) {
	x, y, _ := ProjectLocal(0, 2.7, 1080, 700, 1.6, 120)

	if x != 0 || y != 0 {
		t.Errorf("zero distance must sit at origin, got (%v, %v)", x, y)
	}
}

func TestProjectLocal_PolarConversion(t *testing.T) {
	x, y, _ := ProjectLocal(5, 0, 1000, 500, 1.0, 100)
	if x != 5 || y != 0 {
		t.Errorf("bearing 0: got (%v, %v), want (5, 0)", x, y)
	}

	x, y, _ = ProjectLocal(10, math.Pi/2, 1000, 500, 1.0, 100)
	if math.Abs(x) > 1e-9 || math.Abs(y-10) > 1e-9 {
		t.Errorf("bearing 90deg: got (%v, %v), want (~0, 10)", x, y)
	}
}

func TestProjectLocal_VerticalSignConvention(t *testing.T) {
	// 1000px frame, 100px box, 1.6m object: one pixel spans 0.016m.
	// Lower half: (1000-centerY)*0.016. Upper half: (500-centerY)*0.016*-1.
	tests := []struct {
		name      string
		centerYPx int
		expectedZ float64
	}{
		{"lower half measures up from frame bottom", 700, 4.8},
		{"upper half measures down from midline", 300, -3.2},
		{"exact midline falls in upper branch", 500, 0},
		{"frame bottom", 1000, 0},
		{"frame top", 0, -8.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, z := ProjectLocal(50, 0, 1000, tt.centerYPx, 1.6, 100)
			if math.Abs(z-tt.expectedZ) > 1e-12 {
				t.Errorf("centerY %d: z = %v, want %v", tt.centerYPx, z, tt.expectedZ)
			}
		})
	}
}

func TestProjectLocal_OddFrameHeightMidline(t *testing.T) {
	// With a 1001px frame the midline sits at 500.5, so centerY 500 is
	// still the upper branch and lands half a pixel below zero.
	_, _, z := ProjectLocal(50, 0, 1001, 500, 1.6, 100)

	if math.Abs(z-(-0.008)) > 1e-12 {
		t.Errorf("z = %v, want -0.008", z)
	}
}

func TestProjectLocal_ZIndependentOfDistance(t *testing.T) {
	_, _, zNear := ProjectLocal(10, 1.0, 1080, 800, 1.7, 200)
	_, _, zFar := ProjectLocal(500, 1.0, 1080, 800, 1.7, 200)

	if zNear != zFar {
		t.Errorf("z depends on pixel geometry only: got %v and %v", zNear, zFar)
	}
}
