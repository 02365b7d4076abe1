package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/models"
)

// entryRepository is the SQLite-backed implementation of [EntryRepository].
// It executes all entry operations against the "entries" table using the
// embedded [*DB] connection.
//
// Mutations take the DB's write mutex for their whole transaction, which is
// what gives the store its single-writer discipline; reads run lock-free
// against the WAL snapshot.
type entryRepository struct {
	*DB
	logger *logger.Logger
}

// NewEntryRepository constructs an [EntryRepository] backed by the provided
// database connection and logger.
//
// The logger parameter is stored for fallback logging; most methods prefer
// the context-scoped logger obtained via [logger.FromContext].
func NewEntryRepository(db *DB, logger *logger.Logger) EntryRepository {
	return &entryRepository{
		DB:     db,
		logger: logger,
	}
}

func scanEntry(row interface{ Scan(...any) error }) (models.Entry, error) {
	var e models.Entry
	err := row.Scan(
		&e.ID,
		&e.Kind,
		&e.Content,
		&e.ContentHash,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.Pinned,
		&e.IsSnippet,
		&e.OriginDevice,
	)
	return e, err
}

func (r *entryRepository) queryEntries(ctx context.Context, funcName, query string, args ...any) ([]models.Entry, error) {
	log := logger.FromContext(ctx)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", funcName).Msg("failed to execute entries query")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	defer rows.Close()

	results := make([]models.Entry, 0, 50)

	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			log.Err(scanErr).Str("func", funcName).Msg("failed to scan entry row")
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		results = append(results, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		log.Err(rowsErr).Str("func", funcName).Msg("error occurred during rows iteration")
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}

	return results, nil
}

// Upsert implements the dedup rule: one live row per content hash. A repeat
// of existing content only bumps updated_at; new content gets a fresh row.
// Runs in one transaction under the write mutex so a concurrent list or
// search never observes the row half-written.
func (r *entryRepository) Upsert(ctx context.Context, entry models.Entry) (models.Entry, bool, error) {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.Upsert").Msg("failed to begin transaction")
		return models.Entry{}, false, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	existing, err := scanEntry(tx.QueryRowContext(ctx, getEntryByHash, entry.ContentHash))
	switch {
	case err == nil:
		if _, err = tx.ExecContext(ctx, bumpEntryUpdatedAt, entry.UpdatedAt, existing.ID); err != nil {
			log.Err(err).Str("func", "entryRepository.Upsert").Int64("id", existing.ID).Msg("failed to bump entry")
			return models.Entry{}, false, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
		if err = tx.Commit(); err != nil {
			return models.Entry{}, false, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
		}

		existing.UpdatedAt = entry.UpdatedAt
		return existing, false, nil

	case errors.Is(err, sql.ErrNoRows):
		res, execErr := tx.ExecContext(ctx, insertEntry,
			entry.Kind, entry.Content, entry.ContentHash,
			entry.CreatedAt, entry.UpdatedAt,
			entry.Pinned, entry.IsSnippet, entry.OriginDevice,
		)
		if execErr != nil {
			log.Err(execErr).Str("func", "entryRepository.Upsert").Str("hash", entry.ContentHash).Msg("failed to insert entry")
			return models.Entry{}, false, fmt.Errorf("%w: %w", ErrExecutingStatement, execErr)
		}

		id, idErr := res.LastInsertId()
		if idErr != nil {
			return models.Entry{}, false, fmt.Errorf("%w: %w", ErrExecutingStatement, idErr)
		}
		if err = tx.Commit(); err != nil {
			return models.Entry{}, false, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
		}

		entry.ID = id
		return entry, true, nil

	default:
		log.Err(err).Str("func", "entryRepository.Upsert").Msg("failed to look up entry by hash")
		return models.Entry{}, false, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
}

func (r *entryRepository) GetByID(ctx context.Context, id int64) (models.Entry, error) {
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, getEntryByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return entry, nil
}

func (r *entryRepository) GetByHash(ctx context.Context, hash string) (models.Entry, error) {
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, getEntryByHash, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}
	return entry, nil
}

func (r *entryRepository) List(ctx context.Context, filter string, page, pageSize int) ([]models.Entry, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildListQuery(filter, page, pageSize)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.List").Str("filter", filter).Msg("failed to build list query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.queryEntries(ctx, "entryRepository.List", query, args...)
}

func (r *entryRepository) Search(ctx context.Context, searchText string, page, pageSize int) ([]models.Entry, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildSearchQuery(searchText, page, pageSize)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.Search").Msg("failed to build search query")
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.queryEntries(ctx, "entryRepository.Search", query, args...)
}

func (r *entryRepository) Count(ctx context.Context, filter string) (int, error) {
	log := logger.FromContext(ctx)

	query, args, err := buildCountQuery(filter)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.Count").Str("filter", filter).Msg("failed to build count query")
		return 0, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var count int
	if err = r.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		log.Err(err).Str("func", "entryRepository.Count").Msg("failed to execute count query")
		return 0, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	return count, nil
}

func (r *entryRepository) GetAll(ctx context.Context) ([]models.Entry, error) {
	query, args, err := buildGetAllQuery()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	return r.queryEntries(ctx, "entryRepository.GetAll", query, args...)
}

func (r *entryRepository) SetPinned(ctx context.Context, id int64, pinned bool) error {
	return r.execOnEntry(ctx, "entryRepository.SetPinned", setEntryPinned, pinned, id)
}

func (r *entryRepository) SetSnippet(ctx context.Context, id int64, isSnippet bool) error {
	return r.execOnEntry(ctx, "entryRepository.SetSnippet", setEntrySnippet, isSnippet, id)
}

// ApplyRemote writes one merge-rule outcome computed by the caller: the
// maxed updated_at and the ORed flag pair.
func (r *entryRepository) ApplyRemote(ctx context.Context, id int64, entry models.Entry) error {
	return r.execOnEntry(ctx, "entryRepository.ApplyRemote", applyRemoteEntry,
		entry.UpdatedAt, entry.Pinned, entry.IsSnippet, id)
}

func (r *entryRepository) execOnEntry(ctx context.Context, funcName, query string, args ...any) error {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		log.Err(err).Str("func", funcName).Msg("failed to execute statement")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}

	return nil
}

// Insert stores a row preserving its timestamps and origin device; only the
// local id is newly assigned. Used by merge and by archive import.
func (r *entryRepository) Insert(ctx context.Context, entry models.Entry) (models.Entry, error) {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	res, err := r.DB.ExecContext(ctx, insertEntry,
		entry.Kind, entry.Content, entry.ContentHash,
		entry.CreatedAt, entry.UpdatedAt,
		entry.Pinned, entry.IsSnippet, entry.OriginDevice,
	)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.Insert").Str("hash", entry.ContentHash).Msg("failed to insert entry")
		return models.Entry{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	entry.ID = id
	return entry, nil
}

// Delete removes one row and returns it so the caller can release the blob
// an image entry points at.
func (r *entryRepository) Delete(ctx context.Context, id int64) (models.Entry, error) {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	entry, err := scanEntry(tx.QueryRowContext(ctx, getEntryByID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entry{}, ErrEntryNotFound
	}
	if err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	if _, err = tx.ExecContext(ctx, deleteEntryByID, id); err != nil {
		log.Err(err).Str("func", "entryRepository.Delete").Int64("id", id).Msg("failed to delete entry")
		return models.Entry{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Entry{}, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return entry, nil
}

// DeleteWhere removes unpinned non-snippet rows, optionally only those last
// touched before olderThan, returning the removed entries for blob cleanup.
func (r *entryRepository) DeleteWhere(ctx context.Context, olderThan *time.Time) ([]models.Entry, error) {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	selectQuery := getUnpinnedNonSnippets
	selectArgs := []any{}
	if olderThan != nil {
		selectQuery = getUnpinnedNonSnippetsBefore
		selectArgs = append(selectArgs, *olderThan)
	}

	rows, err := tx.QueryContext(ctx, selectQuery, selectArgs...)
	if err != nil {
		log.Err(err).Str("func", "entryRepository.DeleteWhere").Msg("failed to select candidate rows")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}

	victims := make([]models.Entry, 0, 50)
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: %w", ErrScanningRow, scanErr)
		}
		victims = append(victims, entry)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: %w", ErrScanningRows, rowsErr)
	}
	rows.Close()

	for _, entry := range victims {
		if _, err = tx.ExecContext(ctx, deleteEntryByID, entry.ID); err != nil {
			log.Err(err).Str("func", "entryRepository.DeleteWhere").Int64("id", entry.ID).Msg("failed to delete entry")
			return nil, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return victims, nil
}

// ReplaceAll swaps the whole table for the given rows in one transaction.
// Entry ids are preserved so a restored store is observationally identical
// to the exported one.
func (r *entryRepository) ReplaceAll(ctx context.Context, entries []models.Entry) error {
	log := logger.FromContext(ctx)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginningTransaction, err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, deleteAllEntries); err != nil {
		log.Err(err).Str("func", "entryRepository.ReplaceAll").Msg("failed to clear entries")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	const insertWithID = `INSERT INTO entries (
			id, kind, content, content_hash, created_at, updated_at, pinned, is_snippet, origin_device
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`

	for _, entry := range entries {
		if _, err = tx.ExecContext(ctx, insertWithID,
			entry.ID, entry.Kind, entry.Content, entry.ContentHash,
			entry.CreatedAt, entry.UpdatedAt,
			entry.Pinned, entry.IsSnippet, entry.OriginDevice,
		); err != nil {
			log.Err(err).Str("func", "entryRepository.ReplaceAll").Int64("id", entry.ID).Msg("failed to insert entry")
			return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitingTransaction, err)
	}

	return nil
}
