// Package geoloc estimates object positions from single camera detections.
//
// Responsibilities: monocular distance estimation from an assumed object
// height (pinhole model), pixel-to-bearing mapping across the horizontal
// field of view, and projection of distance+bearing into either absolute
// geographic coordinates (rhumb-line on a spherical earth) or the camera's
// local Cartesian frame.
// Key types: Intrinsics, Detection, Observer, HeightTable, Locator.
//
// Every function is pure: no I/O, no shared state, safe for concurrent
// callers. Angles cross this API in radians; degree conversion belongs to
// the caller at the system boundary.
package geoloc
