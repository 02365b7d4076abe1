// Package app assembles the clipboard core: storage, search, services and
// background workers. The cmd entrypoint and any platform shell embed the
// core through this package.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unxlabs/unx-clipboard/internal/adapter"
	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/search"
	"github.com/unxlabs/unx-clipboard/internal/service"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/internal/utils"
	"github.com/unxlabs/unx-clipboard/internal/workers"
	"github.com/unxlabs/unx-clipboard/models"
)

// App is the assembled clipboard core.
type App struct {
	log *logger.Logger

	db       *store.DB
	index    *search.Index
	state    *store.DeviceState
	notifier *service.Notifier
	searcher service.Searcher
	history  service.History
	archive  service.Archive
	monitor  service.Monitor
	sync     service.Sync
	workers  *workers.Workers
}

// NewApp opens all persistent state and wires the services together.
// images may be nil when the platform shell provides no raster clipboard
// access; capture is then text-only.
func NewApp(cfg *config.StructuredConfig, images adapter.ImageProvider, log *logger.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := store.NewConnectSQLite(context.Background(), cfg.Storage.DatabasePath(), log)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err = db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	blobs, err := store.NewBlobStore(cfg.Storage.ImagesPath())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	state, err := store.LoadDeviceState(cfg.Storage.DeviceStatePath(), utils.NewUUIDGenerator())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load device state: %w", err)
	}

	index, err := search.Open(cfg.Storage.IndexPath())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}

	// keep the on-disk config snapshot current; exported archives bundle it
	if err = writeConfigSnapshot(cfg); err != nil {
		log.Warn().Err(err).
			Str("func", "app.NewApp").
			Msg("failed to write config snapshot")
	}

	notifier := service.NewNotifier(log)
	entries := store.NewEntryRepository(db, log)

	history := service.NewHistoryService(entries, blobs, index, notifier, cfg.History, state.DeviceID(), log)
	searcher := service.NewSearchService(entries, index, log)
	archive := service.NewArchiveService(history, blobs, cfg.Storage.ConfigSnapshotPath(), log)
	monitor := service.NewMonitorService(adapter.NewSystemClipboard(images), history, cfg.Monitor, log)
	syncEngine := service.NewSyncService(cfg.Sync, archive, state, notifier, log)

	log.Info().
		Str("func", "app.NewApp").
		Str("device_id", state.DeviceID()).
		Str("data_dir", cfg.Storage.DataDir).
		Msg("clipboard core assembled")

	return &App{
		log:      log,
		db:       db,
		index:    index,
		state:    state,
		notifier: notifier,
		searcher: searcher,
		history:  history,
		archive:  archive,
		monitor:  monitor,
		sync:     syncEngine,
		workers:  workers.NewWorkers(monitor, syncEngine),
	}, nil
}

func writeConfigSnapshot(cfg *config.StructuredConfig) error {
	payload, err := json.MarshalIndent(config.FromStructured(cfg), "", "  ")
	if err != nil {
		return fmt.Errorf("encode config snapshot: %w", err)
	}

	path := cfg.Storage.ConfigSnapshotPath()
	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write config snapshot: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config snapshot: %w", err)
	}

	return nil
}

// Run starts the background workers and blocks until an interrupt or
// termination signal arrives, then shuts everything down in order.
func (a *App) Run() error {
	a.workers.Run()
	defer a.shutdown()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	received := <-sig
	a.log.Info().
		Str("func", "App.Run").
		Str("signal", received.String()).
		Msg("shutdown signal received")

	return nil
}

// shutdown stops workers, then releases derived and persistent state.
func (a *App) shutdown() {
	a.workers.Stop()
	a.searcher.Close()
	a.notifier.Close()

	if err := a.index.Close(); err != nil {
		a.log.Warn().Err(err).
			Str("func", "App.shutdown").
			Msg("failed to close search index")
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).
			Str("func", "App.shutdown").
			Msg("failed to close database")
	}
}

// History exposes the history service to embedding shells.
func (a *App) History() service.History { return a.history }

// Archive exposes the archive service to embedding shells.
func (a *App) Archive() service.Archive { return a.archive }

// Monitor exposes the clipboard monitor to embedding shells.
func (a *App) Monitor() service.Monitor { return a.monitor }

// Sync exposes the sync engine to embedding shells.
func (a *App) Sync() service.Sync { return a.sync }

// Searcher exposes the background search service to embedding shells.
func (a *App) Searcher() service.Searcher { return a.searcher }

// Events returns a fresh subscription to core notifications.
func (a *App) Events() <-chan models.Event { return a.notifier.Subscribe() }
