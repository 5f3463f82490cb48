package serialmux

import "io"

// VisionPorter defines the minimal interface needed for a vision-unit serial
// port. This abstraction enables unit testing without real serial hardware.
type VisionPorter interface {
	io.ReadWriter
	io.Closer
}
