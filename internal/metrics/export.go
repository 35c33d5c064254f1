package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router serves the registry on /metrics, refreshing the gauges on every
// scrape.
func Router(c *Collector, reg *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Refresh(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.ServeHTTP(w, r)
	})
	return r
}

// WriteTextfile refreshes the gauges and writes the registry to path in the
// text exposition format, for node_exporter's textfile collector.
func WriteTextfile(ctx context.Context, c *Collector, reg *prometheus.Registry, path string) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
