package env

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		vars       map[string]string
		wantConfig string
		wantData   string
		wantLog    string
	}{
		{
			name:       "explicit paths",
			vars:       map[string]string{"STOWAGE_CONFIG_PATH": "/etc/stowage.yaml", "STOWAGE_DATA_DIR": "/srv/stowage", "STOWAGE_LOG_PATH": "/var/log/stowage.log"},
			wantConfig: "/etc/stowage.yaml",
			wantData:   "/srv/stowage",
			wantLog:    "/var/log/stowage.log",
		},
		{
			name:       "xdg directories",
			vars:       map[string]string{"XDG_CONFIG_HOME": "/xdg/config", "XDG_DATA_HOME": "/xdg/data"},
			wantConfig: filepath.Join("/xdg/config", "stowage", "config.yaml"),
			wantData:   filepath.Join("/xdg/data", "stowage"),
			wantLog:    filepath.Join("/xdg/data", "stowage", "stowage.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"STOWAGE_CONFIG_PATH", "STOWAGE_DATA_DIR", "STOWAGE_LOG_PATH", "XDG_CONFIG_HOME", "XDG_DATA_HOME"} {
				t.Setenv(key, tt.vars[key])
			}
			Load()
			if STOWAGE_CONFIG_PATH != tt.wantConfig {
				t.Errorf("config path = %q, want %q", STOWAGE_CONFIG_PATH, tt.wantConfig)
			}
			if STOWAGE_DATA_DIR != tt.wantData {
				t.Errorf("data dir = %q, want %q", STOWAGE_DATA_DIR, tt.wantData)
			}
			if STOWAGE_LOG_PATH != tt.wantLog {
				t.Errorf("log path = %q, want %q", STOWAGE_LOG_PATH, tt.wantLog)
			}
		})
	}
}
