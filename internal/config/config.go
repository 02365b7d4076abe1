package config

import (
	"os"
	"path/filepath"
	"time"
)

// StructuredConfig is the top-level configuration container for the
// unx-clipboard core. It aggregates all sub-configurations and is populated
// by merging values from environment variables, command-line flags, an
// optional JSON file, and built-in defaults.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Storage holds paths for all persistence locations: the data
	// directory, the SQLite history database, the image blob directory,
	// and the search index.
	Storage Storage `envPrefix:"STORAGE_"`

	// Monitor holds clipboard polling settings.
	Monitor Monitor `envPrefix:"MONITOR_"`

	// History holds history retention and query defaults.
	History History `envPrefix:"HISTORY_"`

	// Sync holds shared-folder synchronization settings.
	Sync Sync `envPrefix:"SYNC_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// When non-empty, the file is parsed and merged below the values
	// already loaded from environment variables and flags.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Storage groups filesystem locations for persisted state.
type Storage struct {
	// DataDir is the root directory of all user-writable state:
	// the database, image blobs, device state file, and search index.
	// Env: STORAGE_DATA_DIR
	DataDir string `env:"DATA_DIR"`

	// DSN is the path of the SQLite history database file.
	// Empty means "<DataDir>/clipboard_history.db".
	// Env: STORAGE_DATABASE_URI
	DSN string `env:"DATABASE_URI"`

	// ImagesDir is the directory holding image blob files.
	// Empty means "<DataDir>/images".
	// Env: STORAGE_IMAGES_DIR
	ImagesDir string `env:"IMAGES_DIR"`

	// IndexDir is the directory holding the full-text search index.
	// Empty means "<DataDir>/search.bleve".
	// Env: STORAGE_INDEX_DIR
	IndexDir string `env:"INDEX_DIR"`
}

// Monitor holds clipboard polling settings.
type Monitor struct {
	// PollInterval is the fixed delay between clipboard samples.
	// Env: MONITOR_POLL_INTERVAL
	PollInterval time.Duration `env:"POLL_INTERVAL"`

	// LogImages enables capturing raster images from the clipboard.
	// Env: MONITOR_LOG_IMAGES
	LogImages bool `env:"LOG_IMAGES"`

	// IgnoreSamples is the number of samples suppressed after the app
	// itself writes to the clipboard, so copy-from-app does not re-trigger
	// capture.
	// Env: MONITOR_IGNORE_SAMPLES
	IgnoreSamples int `env:"IGNORE_SAMPLES"`
}

// History holds retention and query defaults for the history store.
type History struct {
	// RetentionDays prunes unpinned, non-snippet entries older than this
	// many days. Zero disables age-based pruning.
	// Env: HISTORY_RETENTION_DAYS
	RetentionDays int `env:"RETENTION_DAYS"`

	// PageSize is the default page size for list and search queries when
	// the caller passes zero.
	// Env: HISTORY_PAGE_SIZE
	PageSize int `env:"PAGE_SIZE"`
}

// Sync holds shared-folder synchronization settings.
type Sync struct {
	// FolderPath is the shared folder the sync engine exchanges archives
	// through. Empty disables sync entirely.
	// Env: SYNC_FOLDER_PATH
	FolderPath string `env:"FOLDER_PATH"`

	// Interval is the delay between sync ticks.
	// Env: SYNC_INTERVAL
	Interval time.Duration `env:"INTERVAL"`

	// TickTimeout bounds all folder I/O of a single tick; a tick that
	// exceeds it is abandoned and retried on the next cycle.
	// Env: SYNC_TICK_TIMEOUT
	TickTimeout time.Duration `env:"TICK_TIMEOUT"`

	// RetentionCount is how many archives per device are kept in the
	// shared folder.
	// Env: SYNC_RETENTION_COUNT
	RetentionCount int `env:"RETENTION_COUNT"`

	// StalenessWindow removes all archives of a device that has not
	// produced a new one for this long.
	// Env: SYNC_STALENESS_WINDOW
	StalenessWindow time.Duration `env:"STALENESS_WINDOW"`
}

// DatabasePath resolves the SQLite file path, defaulting under DataDir.
func (s Storage) DatabasePath() string {
	if s.DSN != "" {
		return s.DSN
	}
	return filepath.Join(s.DataDir, "clipboard_history.db")
}

// ImagesPath resolves the image blob directory, defaulting under DataDir.
func (s Storage) ImagesPath() string {
	if s.ImagesDir != "" {
		return s.ImagesDir
	}
	return filepath.Join(s.DataDir, "images")
}

// IndexPath resolves the search index directory, defaulting under DataDir.
func (s Storage) IndexPath() string {
	if s.IndexDir != "" {
		return s.IndexDir
	}
	return filepath.Join(s.DataDir, "search.bleve")
}

// DeviceStatePath is the local JSON file holding device identity, the
// archive sequence counter, and per-peer merge cursors. It always lives in
// the local data dir, never in the shared folder.
func (s Storage) DeviceStatePath() string {
	return filepath.Join(s.DataDir, "device_state.json")
}

// ConfigSnapshotPath is the JSON copy of the active configuration included
// in exported archives.
func (s Storage) ConfigSnapshotPath() string {
	return filepath.Join(s.DataDir, "config.json")
}

// defaultDataDir returns the per-user writable data directory,
// "~/.unxclipboard" (the Windows shell supplies its own via env).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".unxclipboard"
	}
	return filepath.Join(home, ".unxclipboard")
}

// GetStructuredConfig loads, merges, and validates the application
// configuration from all available sources in the following priority order
// (first source wins for non-zero fields):
//  1. Environment variables
//  2. Command-line flags
//  3. JSON file (path resolved from sources 1 and 2)
//  4. Built-in defaults
//
// Returns a fully populated *StructuredConfig or an error if any source
// fails to load or the final config fails validation.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		withDefaults().
		build()
}
