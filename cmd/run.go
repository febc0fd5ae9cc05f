package main

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meta-n4vn33t/ndppd/mirror"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the mirror daemon.",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := ReadConf(confPathFlag)
		if err != nil {
			slog.Error("couldn't load the configuration", "path", confPathFlag, "err", err)
			os.Exit(1)
		}

		if conf.LogLevel != "" {
			if err := setLogLevel(conf.LogLevel); err != nil {
				slog.Warn("keeping the log level from the flags", "err", err)
			}
		}

		slog.Debug("loaded the configuration", "conf", conf)

		mirrorConf := mirror.DefaultConfig
		if conf.Mirror != nil {
			mirrorConf = *conf.Mirror
		}
		monitor := mirror.New(mirrorConf)

		if err := monitor.Open(); err != nil {
			slog.Error("couldn't open the kernel channel", "err", err)
			os.Exit(1)
		}

		components, err := createComponents(conf, monitor)
		if err != nil {
			slog.Error("couldn't set up the components", "err", err)
			if err := monitor.Cleanup(); err != nil {
				slog.Error("error cleaning up the monitor", "err", err)
			}
			os.Exit(1)
		}

		doneChan := make(chan struct{})
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.Run(doneChan)
		}()

		for _, component := range components {
			wg.Add(1)
			go func() {
				defer wg.Done()
				component.Run(doneChan)
			}()
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			watchConf(confPathFlag, doneChan)
		}()

		// Prime the mirror: routes first, addresses once the route dump
		// settles. Both dumps share the pending-dump guard, so they cannot
		// be fired back to back.
		if err := monitor.QueryRoutes(); err != nil {
			slog.Warn("couldn't request the initial route dump", "err", err)
		}
		if !waitForDump(monitor, dumpSettleTimeout) {
			slog.Warn("the initial route dump didn't settle in time")
		}
		if err := monitor.QueryAddresses(); err != nil {
			slog.Warn("couldn't request the initial address dump", "err", err)
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigChan
		slog.Info("shutting down", "signal", sig)

		close(doneChan)
		wg.Wait()

		// The servers go first so nothing serves a mirror that's being torn
		// down; the owned routes are withdrawn while the channel still lives.
		cleanupComponents(components)

		monitor.RemoveOwnedRoutes()

		if err := monitor.Cleanup(); err != nil {
			slog.Error("error cleaning up the monitor", "err", err)
		}
	},
}
