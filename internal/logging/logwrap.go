package logging

import (
	"context"
	"fmt"
	"log/slog"
)

// Logwrap forwards printf style library logging (see
// github.com/digineo/go-logwrap) to a slog.Logger.
type Logwrap struct {
	Logger *slog.Logger
}

func (w *Logwrap) Debugf(format string, args ...interface{}) {
	w.log(slog.LevelDebug, format, args)
}

func (w *Logwrap) Infof(format string, args ...interface{}) {
	w.log(slog.LevelInfo, format, args)
}

func (w *Logwrap) Warnf(format string, args ...interface{}) {
	w.log(slog.LevelWarn, format, args)
}

func (w *Logwrap) Errorf(format string, args ...interface{}) {
	w.log(slog.LevelError, format, args)
}

func (w *Logwrap) log(level slog.Level, format string, args []interface{}) {
	ctx := context.Background()
	if !w.Logger.Enabled(ctx, level) {
		return
	}
	w.Logger.Log(ctx, level, fmt.Sprintf(format, args...), "component", "ping")
}
