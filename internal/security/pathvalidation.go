// Package security holds path and filename hygiene for the few places the
// daemon touches user-influenced names: the site config file and plot
// files named after detection classifications.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxConfigFileSize caps site config reads. Real configs are a few
// hundred bytes.
const MaxConfigFileSize = 1 << 20

// ValidateConfigPath checks that path names a plausible config file: a
// .json extension and a size under MaxConfigFileSize. It returns the
// cleaned path to read.
func ValidateConfigPath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return "", fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return "", fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}
	return cleanPath, nil
}

// SanitizeFilename makes a safe filename fragment from an arbitrary
// string such as a detection classification ("traffic light" becomes
// "traffic_light"). Anything outside ASCII letters, digits, dot,
// underscore and dash becomes a single underscore, and the result is
// capped at 128 characters.
func SanitizeFilename(s string) string {
	const maxLen = 128

	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
