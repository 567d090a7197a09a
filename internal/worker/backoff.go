package worker

import "time"

// Backoff computes the exponential retry delay for an attempt.
// Formula: base * 2^retryCount, capped at max.
// With a 2s base: 2s, 4s, 8s, 16s, ...
func Backoff(base, max time.Duration, retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Shifting past 62 bits would overflow; the cap applies long before that
	if retryCount > 30 {
		return max
	}
	d := base * time.Duration(1<<uint(retryCount))
	if d > max || d <= 0 {
		return max
	}
	return d
}
