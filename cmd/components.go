package main

import (
	"fmt"
	"log/slog"

	"github.com/meta-n4vn33t/ndppd/api"
	"github.com/meta-n4vn33t/ndppd/metrics"
	"github.com/meta-n4vn33t/ndppd/mirror"
)

// component is the running surface of the optional servers: something that
// serves until done closes and can then be told to let go of its sockets.
type component interface {
	fmt.Stringer
	Run(done <-chan struct{})
	Cleanup() error
}

func createComponents(c *Config, monitor *mirror.Monitor) ([]component, error) {
	components := []component{}

	if c.Api != nil {
		a := api.New(c.Api, monitor)
		if err := a.Init(); err != nil {
			return nil, fmt.Errorf("error initialising the api server: %w", err)
		}
		components = append(components, a)
	}

	if c.Metrics != nil {
		e, err := metrics.New(c.Metrics, monitor)
		if err != nil {
			return nil, fmt.Errorf("error initialising the metrics exporter: %w", err)
		}
		components = append(components, e)
	}

	return components, nil
}

func cleanupComponents(components []component) {
	for _, component := range components {
		if err := component.Cleanup(); err != nil {
			slog.Error("error cleaning up component", "component", component, "err", err)
		}
	}
}
