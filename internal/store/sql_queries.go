package store

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/unxlabs/unx-clipboard/models"
)

const (
	getEntryByID = `SELECT id, kind, content, content_hash, created_at, updated_at, pinned, is_snippet, origin_device
		FROM entries
		WHERE id = ?;`

	getEntryByHash = `SELECT id, kind, content, content_hash, created_at, updated_at, pinned, is_snippet, origin_device
		FROM entries
		WHERE content_hash = ?;`

	insertEntry = `INSERT INTO entries (
			kind,
			content,
			content_hash,
			created_at,
			updated_at,
			pinned,
			is_snippet,
			origin_device
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`

	bumpEntryUpdatedAt = `UPDATE entries
		SET updated_at = ?
		WHERE id = ?;`

	applyRemoteEntry = `UPDATE entries
		SET updated_at = ?, pinned = ?, is_snippet = ?
		WHERE id = ?;`

	setEntryPinned = `UPDATE entries
		SET pinned = ?
		WHERE id = ?;`

	setEntrySnippet = `UPDATE entries
		SET is_snippet = ?
		WHERE id = ?;`

	deleteEntryByID = `DELETE FROM entries
		WHERE id = ?;`

	deleteAllEntries = `DELETE FROM entries;`

	getUnpinnedNonSnippets = `SELECT id, kind, content, content_hash, created_at, updated_at, pinned, is_snippet, origin_device
		FROM entries
		WHERE pinned = 0 AND is_snippet = 0;`

	getUnpinnedNonSnippetsBefore = `SELECT id, kind, content, content_hash, created_at, updated_at, pinned, is_snippet, origin_device
		FROM entries
		WHERE pinned = 0 AND is_snippet = 0 AND updated_at < ?;`
)

// entryColumns is the canonical column order shared by all SELECTs and row
// scans in this package.
var entryColumns = []string{
	"id", "kind", "content", "content_hash",
	"created_at", "updated_at", "pinned", "is_snippet", "origin_device",
}

// listOrder keeps pinned rows first, each group newest-first; id breaks
// updated_at ties so pagination is deterministic.
var listOrder = []string{"pinned DESC", "updated_at DESC", "id DESC"}

func applyFilter(builder sq.SelectBuilder, filter string) sq.SelectBuilder {
	switch filter {
	case models.FilterPinned:
		return builder.Where(sq.Eq{"pinned": 1})
	case models.FilterSnippets:
		return builder.Where(sq.Eq{"is_snippet": 1})
	case models.FilterText:
		return builder.Where(sq.Eq{"kind": models.KindText})
	case models.FilterImage:
		return builder.Where(sq.Eq{"kind": models.KindImage})
	default:
		return builder
	}
}

func paginate(builder sq.SelectBuilder, page, pageSize int) sq.SelectBuilder {
	if page < 1 {
		page = 1
	}
	return builder.
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize))
}

// buildListQuery produces the paginated, filtered listing query.
func buildListQuery(filter string, page, pageSize int) (string, []any, error) {
	builder := sq.Select(entryColumns...).
		From("entries").
		OrderBy(listOrder...)

	builder = applyFilter(builder, filter)
	builder = paginate(builder, page, pageSize)

	return builder.ToSql()
}

// likeEscaper neutralizes LIKE metacharacters so user input always matches
// literally ("100%" finds "100%", not every entry containing "100").
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSearchQuery produces the substring-match query over text payloads.
func buildSearchQuery(query string, page, pageSize int) (string, []any, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"

	builder := sq.Select(entryColumns...).
		From("entries").
		Where(sq.Eq{"kind": models.KindText}).
		Where(sq.Expr(`content LIKE ? ESCAPE '\'`, pattern)).
		OrderBy(listOrder...)

	builder = paginate(builder, page, pageSize)

	return builder.ToSql()
}

// buildCountQuery counts entries matching a filter.
func buildCountQuery(filter string) (string, []any, error) {
	builder := sq.Select("COUNT(*)").From("entries")
	builder = applyFilter(builder, filter)

	return builder.ToSql()
}

// buildGetAllQuery returns the full table in listing order.
func buildGetAllQuery() (string, []any, error) {
	return sq.Select(entryColumns...).
		From("entries").
		OrderBy(listOrder...).
		ToSql()
}
