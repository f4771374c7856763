// Package helpers provides small numeric clamping utilities used by
// the configuration and transport layers.
package helpers

import "time"

// ClampInt restricts v to the range [lowerLimit, upperLimit].
func ClampInt(v, lowerLimit, upperLimit int) int {
	if v < lowerLimit {
		return lowerLimit
	}
	if v > upperLimit {
		return upperLimit
	}
	return v
}

// ClampDuration restricts d to the range [lowerLimit, upperLimit].
func ClampDuration(d, lowerLimit, upperLimit time.Duration) time.Duration {
	if d < lowerLimit {
		return lowerLimit
	}
	if d > upperLimit {
		return upperLimit
	}
	return d
}
