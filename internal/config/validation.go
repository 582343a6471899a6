package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/k1LoW/duration"
)

var sizePattern = regexp.MustCompile(`^\d+(B|KB|MB|GB|TB|PB)?$`)

// validateSize validates the size format (e.g., "10MB", "1GB"); empty is acceptable
func validateSize(fl validator.FieldLevel) bool {
	value := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	if value == "" {
		return true
	}
	return sizePattern.MatchString(value)
}

// validateDuration validates human durations such as "30 days"; empty is acceptable
func validateDuration(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	_, err := duration.Parse(value)
	return err == nil
}

// validateMinDuration checks a human duration against the Go duration in the tag param
func validateMinDuration(fl validator.FieldLevel) bool {
	min, err := time.ParseDuration(fl.Param())
	if err != nil {
		return false
	}
	d, err := duration.Parse(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d >= min
}

// validateDirPath is a validation function for directory paths that works on any OS.
// The standard "dirpath" validator rejects some valid paths, particularly on Windows.
func validateDirPath(fl validator.FieldLevel) bool {
	path := strings.TrimSpace(fl.Field().String())
	if path == "" {
		return false
	}
	path, err := expandPath(path)
	if err != nil {
		return false
	}

	// If path exists, verify that it is a directory
	fi, err := os.Stat(path)
	if err == nil {
		return fi.IsDir()
	}
	return os.IsNotExist(err)
}

// expandPath expands environment variables and "~" in paths
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	path = os.ExpandEnv(path)
	return filepath.Abs(path)
}

// parseSize returns 0 for an empty size
func parseSize(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return units.FromHumanSize(s)
}

// parseDuration returns 0 for an empty duration
func parseDuration(s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return duration.Parse(s)
}
