package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dskow/library-gateway/internal/metrics"
)

// Instrument returns middleware that records Prometheus request counters and
// latency histograms. routeLabel maps a request path to a low-cardinality
// route label (path parameters collapsed); pass nil to label every request
// with its raw path.
func Instrument(routeLabel func(string) string) func(http.Handler) http.Handler {
	if routeLabel == nil {
		routeLabel = func(path string) string { return path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(recorder, r)

			route := routeLabel(r.URL.Path)
			metrics.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(recorder.statusCode)).Inc()
			metrics.RequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
