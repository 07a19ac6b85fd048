package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimit returns middleware that paces outgoing requests.
// rps is the allowed requests per second, burst is the maximum burst size.
// Requests wait for a token; they are never dropped or retried. A non-positive
// rps disables pacing.
func RateLimit(rps float64, burst int) Middleware {
	if rps <= 0 {
		return func(next http.RoundTripper) http.RoundTripper { return next }
	}
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			if err := limiter.Wait(r.Context()); err != nil {
				return nil, err
			}
			return next.RoundTrip(r)
		})
	}
}
