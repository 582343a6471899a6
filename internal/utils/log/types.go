package log

import (
	"strings"

	charmlog "github.com/charmbracelet/log"
)

type (
	Level     = charmlog.Level
	Styles    = charmlog.Styles
	Formatter = charmlog.Formatter
)

const (
	DebugLevel     = charmlog.DebugLevel
	InfoLevel      = charmlog.InfoLevel
	WarnLevel      = charmlog.WarnLevel
	ErrorLevel     = charmlog.ErrorLevel
	FatalLevel     = charmlog.FatalLevel
	ImportantLevel = WarnLevel + 1
)

// Formatters
const (
	TextFormatter = charmlog.TextFormatter
	JSONFormatter = charmlog.JSONFormatter
)

// LogLevelString returns the string representation of the level
func LogLevelString(l Level) string {
	switch l {
	case ImportantLevel:
		return " IMPORTANT "
	default:
		return charmlog.Level(l).String()
	}
}

// ParseLevel parses debug, info, warn or error
func ParseLevel(s string) (Level, error) {
	return charmlog.ParseLevel(strings.ToLower(s))
}

// ParseFormatter maps a config value to a formatter; anything but json is text
func ParseFormatter(s string) Formatter {
	if strings.EqualFold(s, "json") {
		return JSONFormatter
	}
	return TextFormatter
}
