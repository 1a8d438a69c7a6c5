package daemon

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"tramita/internal/api"
	"tramita/internal/config"
	"tramita/internal/logging"
	"tramita/internal/store"
)

// Daemon ties the API server and the maintenance sweep into one lifecycle
// and enforces single-instance execution with a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	server *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

func New(cfg *config.Config, st *store.Store, server *api.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "tramitad.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, starts the API server, and launches the
// maintenance loop. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.server != nil {
		if err := d.server.Start(runCtx); err != nil {
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	go d.maintenanceLoop(runCtx)

	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts everything down and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.Stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Running reports whether Start has completed and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

func (d *Daemon) maintenanceLoop(ctx context.Context) {
	interval := time.Duration(d.cfg.Workflow.MaintenanceInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.SweepExpired(ctx)
		}
	}
}

// SweepExpired deletes notifications whose expiry has passed, cascading
// their delivery records. Called on the maintenance interval; safe to call
// directly.
func (d *Daemon) SweepExpired(ctx context.Context) {
	removed, err := d.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		d.logger.Warn("expired sweep failed", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Info("expired notifications removed", logging.Int64("count", removed))
	}
}
