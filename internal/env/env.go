package env

import (
	"os"
	"path/filepath"
)

const (
	defaultXDGConfigDirname = ".config"
	defaultXDGDataDirname   = ".local/share"
)

var (
	STOWAGE_CONFIG_PATH string

	STOWAGE_LOG_PATH string

	// STOWAGE_DATA_DIR holds the index and, unless configured otherwise,
	// the storage and trash roots
	STOWAGE_DATA_DIR string
)

func init() {
	// https://github.com/charmbracelet/log/issues/35
	os.Setenv("CLICOLOR_FORCE", "1")
	Load()
}

// Load resolves the paths from the environment. It runs at init and again
// after a .env file has been loaded.
func Load() {
	// Follow https://specifications.freedesktop.org/basedir-spec/latest/
	STOWAGE_CONFIG_PATH = os.Getenv("STOWAGE_CONFIG_PATH")
	if STOWAGE_CONFIG_PATH == "" {
		STOWAGE_CONFIG_PATH = filepath.Join(xdgDir("XDG_CONFIG_HOME", defaultXDGConfigDirname), "stowage", "config.yaml")
	}

	STOWAGE_DATA_DIR = os.Getenv("STOWAGE_DATA_DIR")
	if STOWAGE_DATA_DIR == "" {
		STOWAGE_DATA_DIR = filepath.Join(xdgDir("XDG_DATA_HOME", defaultXDGDataDirname), "stowage")
	}

	STOWAGE_LOG_PATH = os.Getenv("STOWAGE_LOG_PATH")
	if STOWAGE_LOG_PATH == "" {
		STOWAGE_LOG_PATH = filepath.Join(STOWAGE_DATA_DIR, "stowage.log")
	}
}

func xdgDir(key, fallback string) string {
	if dir := os.Getenv(key); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	return filepath.Join(homeDir, fallback)
}
