package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"

	"folio/internal/capture"
	"folio/internal/config"
	"folio/internal/library"
	"folio/internal/logging"
	"folio/internal/notifications"
	"folio/internal/recognize"
	"folio/internal/session"
)

// Daemon owns the connector server and background loops and enforces
// single-instance execution.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *library.Store
	sessions     *session.Registry
	recognitions *recognize.Queue
	dispatcher   *capture.Dispatcher
	api          *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	Address      string
	DatabasePath string
	LockFilePath string
	Sessions     int
	Library      library.Stats
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	store *library.Store,
	sessions *session.Registry,
	recognitions *recognize.Queue,
	dispatcher *capture.Dispatcher,
	logger *slog.Logger,
) (*Daemon, error) {
	if cfg == nil || store == nil || sessions == nil || dispatcher == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, sessions, dispatcher, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "foliod.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "daemon"),
		store:        store,
		sessions:     sessions,
		recognitions: recognitions,
		dispatcher:   dispatcher,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, binds the connector server, and
// launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another folio daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	go d.sessions.Run(d.ctx)
	if d.recognitions != nil {
		go d.recognitions.Run(d.ctx)
	}

	d.running.Store(true)
	d.logger.Info("folio daemon started",
		logging.String("address", d.api.addr()),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop shuts down the server and background loops and releases the
// instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("folio daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the connector server's bound address, empty before
// Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("collect library stats", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		Address:      d.api.addr(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		Sessions:     len(d.sessions.Snapshots()),
		Library:      stats,
	}
}

// TestNotification sends a test notification with the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
