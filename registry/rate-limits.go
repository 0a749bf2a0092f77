package registry

import (
	"net/http"

	"golang.org/x/time/rate"
)

// an implementation of [net/http.RoundTripper] that transparently adds a total requests rate limit (shared by every request to one registry host)
//
// unlike a lot of registry clients, this never retries anything (not even 429s); a failed request is reported as-is
type rateLimitedRoundTripper struct {
	roundTripper http.RoundTripper
	limiter      *rate.Limiter
}

func (d *rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return d.roundTripper.RoundTrip(req)
}

// returns a limiter for the given requests per second, or nil if rps is not positive (unlimited)
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
