package main

import (
	"log/slog"

	"github.com/rjeczalik/notify"
)

// watchConf follows the configuration file and re-applies the log level
// whenever the file changes, so a running daemon can be made chatty without
// a restart. Everything else in the file stays as read at startup.
func watchConf(path string, done <-chan struct{}) {
	// A buffered channel so a write racing the watch setup isn't lost.
	c := make(chan notify.EventInfo, 1)

	if err := notify.Watch(path, c, notify.Write|notify.Remove); err != nil {
		slog.Warn("couldn't watch the configuration file", "path", path, "err", err)
		return
	}
	defer notify.Stop(c)

	for {
		select {
		case e := <-c:
			if e.Event() == notify.Remove {
				slog.Warn("the configuration file was removed from under us!")
				return
			}

			conf, err := ReadConf(path)
			if err != nil {
				slog.Warn("couldn't re-read the configuration", "err", err)
				continue
			}

			if conf.LogLevel == "" {
				continue
			}
			if err := setLogLevel(conf.LogLevel); err != nil {
				slog.Warn("ignoring the new log level", "err", err)
				continue
			}
			slog.Info("applied the configured log level", "level", conf.LogLevel)
		case <-done:
			slog.Debug("cleanly exiting the configuration watcher")
			return
		}
	}
}
