package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var logLevelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// logLevel backs every handler we build, so the configuration watcher can
// change the level of a running daemon.
var logLevel = new(slog.LevelVar)

func logReplacements(groups []string, a slog.Attr) slog.Attr {
	// Remove time.
	if a.Key == slog.TimeKey && len(groups) == 0 && !logTimeFlag {
		return slog.Attr{}
	}

	// Remove the directory from the source's filename.
	if a.Key == slog.SourceKey {
		source := a.Value.Any().(*slog.Source)
		source.File = filepath.Base(source.File)
	}

	return a
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource:   true,
		Level:       logLevel,
		ReplaceAttr: logReplacements,
	}

	if logJSONFlag {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func setLogLevel(name string) error {
	level, ok := logLevelMap[name]
	if !ok {
		return fmt.Errorf("unknown log level %q", name)
	}
	logLevel.Set(level)
	return nil
}
