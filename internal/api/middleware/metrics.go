package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/keelwise/keel/internal/observability"
)

// Metrics returns middleware that records HTTP request count and duration.
// When metrics is nil, recording is skipped. Put Metrics outermost so duration is full request time.
func Metrics(metrics observability.APIMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			metrics.RecordRequest(r.Context(), r.Method, routeOf(r), statusToClass(rw.statusCode), time.Since(start))
		})
	}
}

const statsRoutePrefix = "/v1/feedback/stats/"

var knownRoutes = map[string]bool{
	"/health":       true,
	"/metrics":      true,
	"/v1/analyze":   true,
	"/v1/patterns":  true,
	"/v1/enhance":   true,
	"/v1/pipeline":  true,
	"/v1/feedback":  true,
	"/v1/providers": true,
}

// routeOf maps the request path to a bounded route label: user ids collapse to {user_id}
// and unknown paths to "other".
func routeOf(r *http.Request) string {
	path := r.URL.Path

	switch {
	case knownRoutes[path]:
		return path
	case strings.HasPrefix(path, statsRoutePrefix) && !strings.Contains(path[len(statsRoutePrefix):], "/"):
		return statsRoutePrefix + "{user_id}"
	default:
		return "other"
	}
}

// statusToClass maps HTTP status code to 1xx, 2xx, 3xx, 4xx, 5xx.
func statusToClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status >= 100:
		return "1xx"
	default:
		return "unknown"
	}
}

type statusRecorder struct {
	http.ResponseWriter

	statusCode  int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.statusCode = code
		s.wroteHeader = true
	}

	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.wroteHeader = true

	return s.ResponseWriter.Write(p) //nolint:wrapcheck // pass-through writer
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
