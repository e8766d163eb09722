package reliability

import "time"

// IsRetryableHTTPStatus classifies HTTP status codes that signal a transient
// rate-limit or quota condition at the provider.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 503, 529:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
// Attempt 0 waits base, each further attempt doubles up to cap.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
