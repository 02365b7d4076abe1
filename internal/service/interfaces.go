// Package service implements the clipboard core's business logic: history
// bookkeeping over the store, the clipboard poll loop, archive export and
// import, shared-folder sync, and the notification channel the shell
// subscribes to.
package service

import (
	"context"
	"io"

	"github.com/unxlabs/unx-clipboard/models"
)

// History is the write and query surface over the persisted clipboard
// history.
type History interface {
	// Record stores one captured payload, deduplicating by content hash.
	// The bool result reports whether a new row was created (false means an
	// existing row was refreshed).
	Record(ctx context.Context, kind string, payload []byte) (models.Entry, bool, error)

	// Get returns one entry by id.
	Get(ctx context.Context, id int64) (models.Entry, error)

	// Payload returns the raw content bytes of an entry: the text itself,
	// or the PNG blob for image entries.
	Payload(ctx context.Context, id int64) ([]byte, error)

	// List returns one page of entries for a filter, pinned rows first.
	// A zero pageSize falls back to the configured default.
	List(ctx context.Context, filter string, page, pageSize int) ([]models.Entry, error)

	// Search returns one page of text entries containing the query
	// substring, ordered like List.
	Search(ctx context.Context, query string, page, pageSize int) ([]models.Entry, error)

	// Count returns the number of entries matching a filter.
	Count(ctx context.Context, filter string) (int, error)

	// GetAll returns every entry, ordered like List.
	GetAll(ctx context.Context) ([]models.Entry, error)

	SetPinned(ctx context.Context, id int64, pinned bool) error
	SetSnippet(ctx context.Context, id int64, isSnippet bool) error

	// AddSnippet stores a user-authored text entry flagged as a snippet.
	AddSnippet(ctx context.Context, text string) (models.Entry, error)

	// Delete removes one entry and its blob.
	Delete(ctx context.Context, id int64) error

	// Clear removes all unpinned, non-snippet entries and reports how many
	// were removed.
	Clear(ctx context.Context) (int, error)

	// ApplyRetention prunes unpinned, non-snippet entries older than the
	// configured retention window. A zero window disables pruning.
	ApplyRetention(ctx context.Context) (int, error)

	// Merge folds a remote entry set into the local history using the
	// hash-based merge rule: unknown hashes are inserted, known hashes keep
	// the local row with updated_at raised to the maximum and the
	// pinned/snippet flags OR-combined.
	Merge(ctx context.Context, remote []models.Entry) (models.MergeStats, error)

	// RestoreAll atomically replaces the whole history with the given rows
	// and rebuilds the search index.
	RestoreAll(ctx context.Context, entries []models.Entry) error
}

// Monitor is the clipboard poll loop. Run and Stop satisfy the workers
// contract; the rest is shell-facing control.
type Monitor interface {
	Run()
	Stop()

	// Pause suspends capture without stopping the poll loop.
	Pause()
	// Resume re-enables capture.
	Resume()
	// Paused reports whether capture is currently suspended.
	Paused() bool

	// CopyEntry writes a text entry back to the OS clipboard and arms the
	// self-trigger suppression so the write is not re-captured.
	CopyEntry(ctx context.Context, id int64) error
}

// Archive builds and consumes portable history archives.
type Archive interface {
	// Export writes a complete archive of the current history to w.
	Export(ctx context.Context, w io.Writer, deviceID string, sequence int64) (models.Manifest, error)

	// ExportToFile exports to path atomically: the archive becomes visible
	// under its final name only once fully written.
	ExportToFile(ctx context.Context, path, deviceID string, sequence int64) (models.Manifest, error)

	// ReadManifest opens an archive and returns its validated manifest
	// without importing anything.
	ReadManifest(path string) (models.Manifest, error)

	// Import applies an archive to the local history in the given mode
	// (models.ImportReplace or models.ImportMerge). The archive is
	// validated in full before anything is committed.
	Import(ctx context.Context, path, mode string) (models.ImportStats, error)
}

// Sync is the shared-folder synchronization loop.
type Sync interface {
	Run()
	Stop()

	// TriggerNow runs one sync tick immediately, outside the regular
	// schedule.
	TriggerNow(ctx context.Context) error

	// Status reports device identity, cursors and the last tick outcome.
	Status() models.SyncStatus
}

// Searcher runs background searches. Each caller has at most one search in
// flight: submitting a new query supersedes the caller's previous one.
type Searcher interface {
	// Submit starts a search for the caller and returns a channel that
	// yields exactly one result and is then closed. A superseded search
	// yields a result with Err set to context.Canceled.
	Submit(ctx context.Context, caller, query string, limit int) <-chan SearchResult

	// Close cancels all in-flight searches and waits for them to finish.
	Close()
}

// SearchResult is the outcome of one background search.
type SearchResult struct {
	Query   string
	Entries []models.Entry
	Err     error
}
