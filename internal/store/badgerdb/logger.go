package badgerdb

import (
	"fmt"
	"log/slog"
	"strings"
)

// logger routes badger's internal messages to slog
type logger struct {
	l *slog.Logger
}

func newLogger(l *slog.Logger) *logger {
	if l == nil {
		l = slog.Default()
	}
	return &logger{l: l.With("component", "badger")}
}

func (l *logger) Errorf(format string, args ...any) {
	l.l.Error(msg(format, args...))
}

func (l *logger) Warningf(format string, args ...any) {
	l.l.Warn(msg(format, args...))
}

func (l *logger) Infof(format string, args ...any) {
	l.l.Info(msg(format, args...))
}

func (l *logger) Debugf(format string, args ...any) {
	l.l.Debug(msg(format, args...))
}

func msg(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
