package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Logger logs each round trip at debug level. Headers and bodies are never
// logged, so bearer tokens and passwords stay out of the log.
func Logger(next http.RoundTripper) http.RoundTripper {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)

		evt := log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", r.Header.Get(RequestIDHeader)).
			Dur("duration", time.Since(start))
		if err != nil {
			evt.Err(err).Msg("gateway request failed")
			return nil, err
		}
		evt.Int("status", resp.StatusCode).Msg("gateway request")
		return resp, nil
	})
}
