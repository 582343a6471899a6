package config

// Default returns the configuration written to a fresh config file
func Default() Config {
	return Config{
		Storage: StorageConfig{
			MaxUploadSize: "1GB",
		},
		Index: IndexConfig{
			Backend: "badger",
		},
		Trash: TrashConfig{
			Retention:        "30 days",
			CleanupInterval:  "1 hour",
			RestoreConflict:  "rename",
			ReconcileOnStart: true,
			Exclude: ExcludeConfig{
				Names: []string{
					// Finder metadata uploaded along with folders
					".DS_Store",
				},
				Patterns: []string{},
				Globs:    []string{},
			},
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			CORSOrigins:       []string{},
			ShutdownTimeout:   "10 seconds",
			ReadHeaderTimeout: "10 seconds",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Format:  "text",
			Rotation: RotationConfig{
				MaxSize:  "10MB",
				MaxFiles: 3,
			},
		},
	}
}
