package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tonearm/internal/config"
	"tonearm/internal/logging"
	"tonearm/internal/store"
	"tonearm/internal/telemetry"
	"tonearm/internal/worker"
)

const sweepInterval = time.Hour

// Daemon coordinates the background services and enforces single-instance
// execution through a file lock on the data directory.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	worker    *worker.Worker
	telemetry *telemetry.Recorder

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Worker       worker.Summary
	CacheDBPath  string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, s *store.Store, logger *slog.Logger, w *worker.Worker, rec *telemetry.Recorder) (*Daemon, error) {
	if cfg == nil || s == nil || w == nil {
		return nil, errors.New("daemon requires config, store, and worker")
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     s,
		worker:    w,
		telemetry: rec,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the verification worker and
// the periodic cache sweep.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tonearm daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.worker.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start worker: %w", err)
	}

	d.wg.Add(1)
	go d.sweepLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("tonearm daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing, flushes diagnostics, and releases the
// instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.worker.Stop()
	d.wg.Wait()

	if err := d.exportTelemetry(); err != nil {
		d.logger.Warn("failed to export telemetry", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("tonearm daemon stopped")
}

// Status reports current runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Worker:       d.worker.Status(ctx),
		CacheDBPath:  d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
	}
}

func (d *Daemon) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	d.runSweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runSweep(ctx)
			if err := d.exportTelemetry(); err != nil {
				d.logger.Warn("failed to export telemetry", logging.Error(err))
			}
		}
	}
}

func (d *Daemon) runSweep(ctx context.Context) {
	maxAge := time.Duration(d.cfg.Cache.MaxAgeDays) * 24 * time.Hour
	deleted, err := d.store.CleanupOldEntries(ctx, maxAge, d.cfg.Cache.RetainAccessCount)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		d.logger.Error("cache sweep failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache database access"),
		)
		return
	}
	if deleted > 0 {
		d.logger.Info("cache sweep finished", logging.Int64("deleted", deleted))
	}
}

// exportTelemetry writes the diagnostics document next to the logs so the
// stats command can read it without talking to the daemon process.
func (d *Daemon) exportTelemetry() error {
	if d.telemetry == nil {
		return nil
	}
	export := d.telemetry.ExportData()
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}
	path := TelemetryExportPath(d.cfg)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write telemetry export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace telemetry export: %w", err)
	}
	return nil
}

// TelemetryExportPath returns the location of the daemon's diagnostics dump.
func TelemetryExportPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "telemetry.json")
}
