// Package metrics serves the mirror's occupancy and event counters to a
// Prometheus scraper.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meta-n4vn33t/ndppd/mirror"
	"github.com/meta-n4vn33t/ndppd/types"
)

// Mirror is the slice of the monitor the exporter reads at scrape time.
type Mirror interface {
	Stats() mirror.Stats
	EventCounts() map[string]uint64
}

// newCollectors builds one collector per exported reading. Everything is a
// *Func flavour: scrapes read the monitor directly, so there's no polling
// loop to keep fed.
func newCollectors(m Mirror) []prometheus.Collector {
	gauges := []struct {
		name string
		help string
		read func(mirror.Stats) int
	}{
		{"ndppd_mirror_live_routes", "Routes currently mirrored",
			func(s mirror.Stats) int { return s.LiveRoutes }},
		{"ndppd_mirror_free_route_slots", "Recycled route slots awaiting reuse",
			func(s mirror.Stats) int { return s.FreeRouteSlots }},
		{"ndppd_mirror_route_slots", "Route slots ever allocated, i.e. the live high-water mark",
			func(s mirror.Stats) int { return s.RouteSlots }},
		{"ndppd_mirror_live_addresses", "Interface addresses currently mirrored",
			func(s mirror.Stats) int { return s.LiveAddresses }},
		{"ndppd_mirror_free_address_slots", "Recycled address slots awaiting reuse",
			func(s mirror.Stats) int { return s.FreeAddressSlots }},
		{"ndppd_mirror_address_slots", "Address slots ever allocated, i.e. the live high-water mark",
			func(s mirror.Stats) int { return s.AddressSlots }},
	}

	collectors := make([]prometheus.Collector, 0, len(gauges)+5)
	for _, gauge := range gauges {
		collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: gauge.name,
			Help: gauge.help,
		}, func() float64 { return float64(gauge.read(m.Stats())) }))
	}

	for _, kind := range []types.EventKind{
		types.NewRoute, types.DelRoute, types.NewAddress, types.DelAddress, types.DumpComplete,
	} {
		name := kind.String()
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "ndppd_kernel_events_total",
			Help:        "Kernel notifications folded into the mirror",
			ConstLabels: prometheus.Labels{"kind": name},
		}, func() float64 { return float64(m.EventCounts()[name]) }))
	}

	return collectors
}

type Exporter struct {
	conf   Config
	server *http.Server
}

func New(conf *Config, m Mirror) (*Exporter, error) {
	c := DefaultConfig
	if conf != nil {
		c = *conf
	}

	// Create a non-global registry.
	reg := prometheus.NewRegistry()
	for _, collector := range newCollectors(m) {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("error registering the metrics: %w", err)
		}
	}

	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &Exporter{
		conf: c,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", c.BindAddress, c.BindPort),
			Handler: handler,
		},
	}, nil
}

func (e *Exporter) String() string {
	return "metrics"
}

func (e *Exporter) Run(done <-chan struct{}) {
	slog.Debug("running the metrics exporter")

	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Info("stopped listening", "err", err)
		}
	}()

	// Simply wait until we're done
	<-done
	slog.Debug("cleanly exiting the metrics exporter")
}

func (e *Exporter) Cleanup() error {
	slog.Debug("cleaning up the metrics exporter")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down the metrics server: %w", err)
	}
	return nil
}
