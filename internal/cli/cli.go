// Package cli implements the stowage command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/babarot/stowage/internal/config"
	"github.com/babarot/stowage/internal/env"
	"github.com/babarot/stowage/internal/index"
	"github.com/babarot/stowage/internal/lock"
	"github.com/babarot/stowage/internal/storage"
	"github.com/babarot/stowage/internal/trash"
	"github.com/babarot/stowage/internal/utils/log"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/xid"
)

type Option struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	EnvFile string `long:"env-file" description:"Load environment variables from this file" default:".env"`

	Serve   ServeCommand   `command:"serve" description:"Run the HTTP server"`
	Trash   TrashCommand   `command:"trash" description:"Inspect and manage the trash"`
	Check   CheckCommand   `command:"check" description:"Compare the indexes with the filesystem"`
	Logs    LogsCommand    `command:"logs" description:"View the log file"`
	Version VersionCommand `command:"version" description:"Show version"`
}

// CLI carries the state shared by every subcommand
type CLI struct {
	version Version
	option  *Option
	config  config.Config
	paths   config.Paths
	stdout  io.Writer
	stderr  io.Writer
	logFile io.Closer
}

var runID = sync.OnceValue(func() string {
	return xid.New().String()
})

// Run parses the arguments and dispatches to a subcommand
func Run(v Version) error {
	return run(v, os.Args[1:], os.Stdout, os.Stderr)
}

func run(v Version, args []string, stdout, stderr io.Writer) error {
	opt := &Option{}
	c := &CLI{version: v, option: opt, stdout: stdout, stderr: stderr}
	opt.Serve.cli = c
	opt.Trash.List.cli = c
	opt.Trash.Restore.cli = c
	opt.Trash.Purge.cli = c
	opt.Trash.Empty.cli = c
	opt.Check.cli = c
	opt.Logs.cli = c
	opt.Version.cli = c
	defer c.close()

	parser := flags.NewParser(opt, flags.Default)
	parser.Name = v.AppName
	_, err := parser.ParseArgs(args)
	if err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		slog.Error("exit", "error", fmt.Errorf("cli.run failed: %w", err))
		return err
	}
	return nil
}

// setup loads the environment and the config file and installs the logger.
// Server logs also go to stderr; other commands only write the log file.
func (c *CLI) setup(server bool) error {
	if c.option.EnvFile != "" {
		if err := godotenv.Load(c.option.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", c.option.EnvFile, err)
		}
		env.Load()
	}

	cfg, err := config.Parse(c.option.Config)
	if err != nil {
		return err
	}
	paths, err := cfg.Storage.Paths()
	if err != nil {
		return err
	}
	c.config, c.paths = cfg, paths

	if err := c.setupLogger(server); err != nil {
		return err
	}
	slog.Debug("configuration loaded", "version", c.version.Version, "data_dir", paths.DataDir, "backend", cfg.Index.Backend)
	return nil
}

func (c *CLI) setupLogger(server bool) error {
	level, err := log.ParseLevel(c.config.Logging.Level)
	if err != nil {
		return err
	}

	var writers []io.Writer
	if server {
		writers = append(writers, c.stderr)
	}
	if c.config.Logging.Enabled {
		maxSize, err := c.config.Logging.Rotation.MaxLogBytes()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(env.STOWAGE_LOG_PATH), 0o755); err != nil {
			return err
		}
		rw, err := log.NewRotateWriter(env.STOWAGE_LOG_PATH, maxSize, c.config.Logging.Rotation.MaxFiles)
		if err != nil {
			return err
		}
		c.logFile = rw
		writers = append(writers, rw)
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	logger := log.New(
		log.UseOutput(w),
		log.UseLevel(level),
		log.UseFormatter(log.ParseFormatter(c.config.Logging.Format)),
		log.UseReportTimestamp(true),
		log.UseReportCaller(level == log.DebugLevel),
		log.AsDefault(),
	)
	slog.SetDefault(logger.With("run_id", runID()))
	return nil
}

func (c *CLI) close() {
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

// runtime is the wired service graph
type runtime struct {
	idx     *index.Indexes
	storage *storage.Service
	trash   *trash.Manager
}

func (r *runtime) Close() error {
	return r.idx.Close()
}

// open wires the indexes, the storage service and the trash manager and
// replays any intents left by a crash
func (c *CLI) open(ctx context.Context) (*runtime, error) {
	if err := os.MkdirAll(c.paths.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	backend, err := index.OpenBackend(c.config.Index.Backend, c.paths.IndexDir, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	idx, err := index.Open(backend)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	rt, err := c.wire(ctx, idx)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return rt, nil
}

// openServing is open followed by the startup divergence check
func (c *CLI) openServing(ctx context.Context) (*runtime, error) {
	rt, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if !c.config.Trash.ReconcileOnStart {
		return rt, nil
	}
	report, err := rt.trash.Reconcile(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("reconcile on start: %w", err)
	}
	for _, item := range report.Review {
		slog.Warn("moved diverged mapping to review", "kind", item.Type, "id", item.ID, "path", item.Path, "reason", item.Reason)
	}
	return rt, nil
}

func (c *CLI) wire(ctx context.Context, idx *index.Indexes) (*runtime, error) {
	maxUpload, err := c.config.Storage.MaxUploadBytes()
	if err != nil {
		return nil, err
	}
	trashCfg, err := c.trashConfig()
	if err != nil {
		return nil, err
	}

	locks := lock.New()
	svc, err := storage.NewService(c.paths.Root, idx, locks, storage.WithMaxUploadSize(maxUpload))
	if err != nil {
		return nil, err
	}
	tm, err := trash.NewManager(trashCfg, idx, trash.WithLocker(locks))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trash manager: %w", err)
	}
	if err := tm.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recover pending operations: %w", err)
	}
	return &runtime{idx: idx, storage: svc, trash: tm}, nil
}

func (c *CLI) trashConfig() (trash.Config, error) {
	retention, err := c.config.Trash.RetentionDuration()
	if err != nil {
		return trash.Config{}, err
	}
	interval, err := c.config.Trash.CleanupEvery()
	if err != nil {
		return trash.Config{}, err
	}
	return trash.Config{
		StorageRoot:      c.paths.Root,
		TrashRoot:        c.paths.TrashRoot,
		Retention:        retention,
		CleanupInterval:  interval,
		RestoreConflict:  trash.RestoreConflict(c.config.Trash.RestoreConflict),
		AllowCrossDevice: c.config.Storage.AllowCrossDevice,
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
