package reliability

import (
	"testing"
	"time"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, false},
		{503, true},
		{529, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 2 * time.Second
	capDur := 20 * time.Second
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(1, base, capDur); got != 4*time.Second {
		t.Fatalf("attempt 1 = %v, want 4s", got)
	}
	if got := ExponentialBackoff(2, base, capDur); got != 8*time.Second {
		t.Fatalf("attempt 2 = %v, want 8s", got)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want cap %v", got, capDur)
	}
}
