package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meta-n4vn33t/ndppd/mirror"
)

type fakeMirror struct {
	stats  mirror.Stats
	counts map[string]uint64
}

func (f *fakeMirror) Stats() mirror.Stats            { return f.stats }
func (f *fakeMirror) EventCounts() map[string]uint64 { return f.counts }

// gather flattens a registry's families into name{label=value} keyed samples.
func gather(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("error gathering the metrics: %v", err)
	}

	samples := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			key := family.GetName()
			for _, label := range metric.GetLabel() {
				key += "{" + label.GetName() + "=" + label.GetValue() + "}"
			}
			switch {
			case metric.GetGauge() != nil:
				samples[key] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				samples[key] = metric.GetCounter().GetValue()
			}
		}
	}
	return samples
}

func TestCollectorsReadAtScrapeTime(t *testing.T) {
	fake := &fakeMirror{
		stats:  mirror.Stats{LiveRoutes: 3, FreeRouteSlots: 1, RouteSlots: 4, LiveAddresses: 2, AddressSlots: 2},
		counts: map[string]uint64{"new-route": 7, "dump-complete": 2},
	}

	reg := prometheus.NewRegistry()
	for _, collector := range newCollectors(fake) {
		if err := reg.Register(collector); err != nil {
			t.Fatalf("error registering the metrics: %v", err)
		}
	}

	samples := gather(t, reg)
	checks := []struct {
		key  string
		want float64
	}{
		{"ndppd_mirror_live_routes", 3},
		{"ndppd_mirror_free_route_slots", 1},
		{"ndppd_mirror_route_slots", 4},
		{"ndppd_mirror_live_addresses", 2},
		{"ndppd_kernel_events_total{kind=new-route}", 7},
		{"ndppd_kernel_events_total{kind=del-route}", 0},
		{"ndppd_kernel_events_total{kind=dump-complete}", 2},
	}
	for _, check := range checks {
		if got, ok := samples[check.key]; !ok || got != check.want {
			t.Errorf("sample %s: got %v (present %v), want %v", check.key, got, ok, check.want)
		}
	}

	// A scrape after the mirror moves must see the new readings without
	// anybody pushing updates.
	fake.stats.LiveRoutes = 5
	fake.counts["new-route"] = 9

	samples = gather(t, reg)
	if got := samples["ndppd_mirror_live_routes"]; got != 5 {
		t.Errorf("got %v live routes after the change, want 5", got)
	}
	if got := samples["ndppd_kernel_events_total{kind=new-route}"]; got != 9 {
		t.Errorf("got %v new-route events after the change, want 9", got)
	}
}

func TestNewExporter(t *testing.T) {
	if _, err := New(nil, &fakeMirror{}); err != nil {
		t.Fatalf("building the exporter: %v", err)
	}
}
