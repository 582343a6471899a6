package trash

import (
	"context"
	"log/slog"
	"time"
)

// Janitor purges expired entries on a fixed interval
type Janitor struct {
	m        *Manager
	interval time.Duration
}

// NewJanitor returns a janitor sweeping m every interval
func NewJanitor(m *Manager, interval time.Duration) *Janitor {
	return &Janitor{m: m, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A non-positive interval disables the janitor.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		slog.Info("janitor disabled")
		return
	}
	slog.Info("janitor started", "interval", j.interval)

	j.Sweep(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep purges what expired by now
func (j *Janitor) Sweep(ctx context.Context) *Report {
	report, err := j.m.PurgeExpired(ctx, j.m.now())
	if err != nil {
		slog.Warn("janitor sweep interrupted", "error", err)
	}
	if report.Purged+report.Failed > 0 {
		slog.Info("janitor swept trash", "purged", report.Purged, "skipped", report.Skipped, "failed", report.Failed)
	}
	return report
}
