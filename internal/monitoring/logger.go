// Package monitoring carries the daemon's diagnostic logger.
package monitoring

import "log"

// Logf writes one diagnostic line. It defaults to log.Printf; swap it
// with SetLogger to redirect or silence output.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. A nil f installs a no-op.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
