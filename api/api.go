// Package api exposes the mirror over HTTP: read-only state endpoints for
// debugging and tooling, plus triggers for fresh kernel dumps.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/procfs"
)

type API struct {
	server *echo.Echo
	pFS    *procfs.FS

	mirror Mirror
	conf   Config
}

func New(conf *Config, mirror Mirror) *API {
	if conf == nil {
		return &API{conf: DefaultConfig, mirror: mirror}
	}
	return &API{conf: *conf, mirror: mirror}
}

func (a *API) String() string {
	return "api"
}

func (a *API) Init() error {
	slog.Debug("initialising the api server")
	a.server = echo.New()

	// Configure the methods for each path
	a.server.GET("/", handleRoot)
	a.server.GET("/routes", handleRoutes)
	a.server.GET("/addresses", handleAddresses)
	a.server.GET("/lookup", handleLookup)
	a.server.GET("/status", handleStatus)
	a.server.GET("/interfaces", handleInterfaces)
	a.server.POST("/dump/routes", handleRouteDump)
	a.server.POST("/dump/addresses", handleAddressDump)

	// Prevent the banner from showing up in the log
	a.server.HideBanner = true
	a.server.HidePort = true

	// The interface listing reads /proc; where that's missing the endpoint
	// degrades instead of taking the whole API down.
	fs, err := procfs.NewFS("/proc")
	if err != nil {
		slog.Warn("couldn't open procfs, the interface listing won't work", "err", err)
	} else {
		a.pFS = &fs
	}

	// Extend the context handed to the handlers with everything they serve.
	a.server.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&extendedContext{c, a.server.Routes(), a.mirror, a.pFS})
		}
	})

	return nil
}

func (a *API) Run(done <-chan struct{}) {
	slog.Debug("running the api server")

	go func() {
		if err := a.server.Start(fmt.Sprintf("%s:%d", a.conf.BindAddress, a.conf.BindPort)); err != http.ErrServerClosed {
			slog.Error("couldn't start the API server", "err", err)
		}
	}()

	// Simply wait until we're done
	<-done
	slog.Debug("cleanly exiting the api server")
}

func (a *API) Cleanup() error {
	slog.Debug("cleaning up the api server")
	if a.server == nil {
		return nil
	}
	if err := a.server.Shutdown(context.TODO()); err != nil {
		return fmt.Errorf("error shutting down the API server: %w", err)
	}
	return nil
}
