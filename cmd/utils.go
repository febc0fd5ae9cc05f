package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meta-n4vn33t/ndppd/mirror"
)

// dumpSettleTimeout bounds how long startup and the one-shot subcommands
// wait for a kernel dump to deliver its completion marker. The monitor's own
// grace period clears the guard sooner in every sane configuration.
const dumpSettleTimeout = 10 * time.Second

// waitForDump polls until the monitor has no dump in flight and reports
// whether that happened before the timeout.
func waitForDump(monitor *mirror.Monitor, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !monitor.DumpPending() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !monitor.DumpPending()
}

// primeMirror opens a default-configuration monitor, starts its drain loop
// and fills it through a single kernel dump: everything the one-shot
// subcommands need. The returned teardown stops the loop and releases the
// kernel channel.
func primeMirror(query func(*mirror.Monitor) error) (*mirror.Monitor, func(), error) {
	monitor := mirror.New(mirror.DefaultConfig)

	if err := monitor.Open(); err != nil {
		return nil, nil, err
	}

	doneChan := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(doneChan)
	}()

	teardown := func() {
		close(doneChan)
		wg.Wait()
		if err := monitor.Cleanup(); err != nil {
			slog.Warn("error cleaning up the monitor", "err", err)
		}
	}

	if err := query(monitor); err != nil {
		teardown()
		return nil, nil, fmt.Errorf("couldn't request the kernel dump: %w", err)
	}

	if !waitForDump(monitor, dumpSettleTimeout) {
		slog.Warn("the kernel dump didn't settle in time; results may be partial")
	}

	return monitor, teardown, nil
}
