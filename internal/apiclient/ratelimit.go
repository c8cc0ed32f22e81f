package apiclient

import (
	"golang.org/x/time/rate"

	"refdash/internal/config"
)

// newLimiter creates the client-side limiter for admin API calls.
func newLimiter(cfg config.APIConfig) *rate.Limiter {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
