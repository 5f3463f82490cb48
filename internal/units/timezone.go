package units

import (
	"fmt"
	"time"
)

// IsTimezoneValid reports whether tz names a zone in the system tz
// database. The empty string is invalid; sites that want UTC leave the
// field unset.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ConvertTime renders a stored UTC timestamp in the site's timezone.
// Storage is always UTC; conversion happens only at display edges.
func ConvertTime(utcTime time.Time, targetTimezone string) (time.Time, error) {
	if targetTimezone == "UTC" {
		return utcTime, nil
	}

	loc, err := time.LoadLocation(targetTimezone)
	if err != nil {
		return utcTime, fmt.Errorf("failed to load timezone %s: %w", targetTimezone, err)
	}
	return utcTime.In(loc), nil
}
