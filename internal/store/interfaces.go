package store

import (
	"context"
	"time"

	"github.com/unxlabs/unx-clipboard/models"
)

// EntryRepository is the persistence contract for clipboard entries.
// All mutations run under the store's single-writer discipline: at most one
// of them proceeds at a time, and none ever exposes a half-written row to a
// concurrent read.
type EntryRepository interface {
	// Upsert inserts a new entry for hash or, if one already exists, bumps
	// its updated_at and returns the existing row. The bool result reports
	// whether a new row was created.
	Upsert(ctx context.Context, entry models.Entry) (models.Entry, bool, error)

	// GetByID returns one entry or ErrEntryNotFound.
	GetByID(ctx context.Context, id int64) (models.Entry, error)

	// GetByHash returns one entry matched by content hash or ErrEntryNotFound.
	GetByHash(ctx context.Context, hash string) (models.Entry, error)

	// List returns one page of entries for the given filter, pinned rows
	// first, both groups ordered by updated_at descending.
	List(ctx context.Context, filter string, page, pageSize int) ([]models.Entry, error)

	// Search returns one page of text entries whose content contains the
	// query substring, ordered like List.
	Search(ctx context.Context, query string, page, pageSize int) ([]models.Entry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, filter string) (int, error)

	// GetAll returns every entry, ordered like List. Used by export and by
	// search-index rebuilds.
	GetAll(ctx context.Context) ([]models.Entry, error)

	SetPinned(ctx context.Context, id int64, pinned bool) error
	SetSnippet(ctx context.Context, id int64, isSnippet bool) error

	// ApplyRemote applies one merge-rule outcome for an existing local row:
	// raises updated_at to the given value and ORs the flag pair.
	ApplyRemote(ctx context.Context, id int64, entry models.Entry) error

	// Insert stores a row preserving its created_at/updated_at/origin
	// fields, assigning a fresh local id. Used by merge and import.
	Insert(ctx context.Context, entry models.Entry) (models.Entry, error)

	// Delete removes one row and reports the deleted entry so the caller
	// can release its blob. Returns ErrEntryNotFound for unknown ids.
	Delete(ctx context.Context, id int64) (models.Entry, error)

	// DeleteWhere removes unpinned, non-snippet rows and returns them for
	// blob cleanup. A nil olderThan removes all such rows; otherwise only
	// rows last touched before olderThan go.
	DeleteWhere(ctx context.Context, olderThan *time.Time) ([]models.Entry, error)

	// ReplaceAll atomically swaps the whole table for the given rows.
	// A failure at any point leaves the previous contents intact.
	ReplaceAll(ctx context.Context, entries []models.Entry) error
}

// BlobStore is the content-addressed file store for image payloads.
type BlobStore interface {
	// Save writes data under its content hash and returns the
	// blob-relative path recorded in the entry row. Saving the same hash
	// twice is a no-op.
	Save(hash string, data []byte) (string, error)

	// Read returns the raw bytes of a stored blob.
	Read(hash string) ([]byte, error)

	// Path returns the absolute path of a blob file.
	Path(hash string) string

	// Delete removes a blob file. Missing files are not an error: the
	// entry may have been imported without its blob ever materializing.
	Delete(hash string) error

	// List returns the hashes of all stored blobs.
	List() ([]string, error)
}
