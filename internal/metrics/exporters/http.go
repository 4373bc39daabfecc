// Package exporters exposes device metrics over HTTP and the event bus.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler returns the Prometheus scrape handler for every
// promauto-registered series.
func HTTPHandler() http.Handler {
	return promhttp.Handler()
}
