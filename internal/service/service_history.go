package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/search"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/internal/utils"
	"github.com/unxlabs/unx-clipboard/models"
)

type historyService struct {
	entries  store.EntryRepository
	blobs    store.BlobStore
	index    *search.Index
	notifier *Notifier
	cfg      config.History
	deviceID string
	logger   *logger.Logger

	now func() time.Time
}

// NewHistoryService constructs the [History] implementation over the given
// store. deviceID stamps the origin of locally captured entries.
func NewHistoryService(
	entries store.EntryRepository,
	blobs store.BlobStore,
	index *search.Index,
	notifier *Notifier,
	cfg config.History,
	deviceID string,
	log *logger.Logger,
) History {
	return &historyService{
		entries:  entries,
		blobs:    blobs,
		index:    index,
		notifier: notifier,
		cfg:      cfg,
		deviceID: deviceID,
		logger:   log,
		now:      time.Now,
	}
}

func (h *historyService) Record(ctx context.Context, kind string, payload []byte) (models.Entry, bool, error) {
	if len(payload) == 0 {
		return models.Entry{}, false, ErrEmptyPayload
	}

	hash := utils.HashBytes(payload)

	var content string
	switch kind {
	case models.KindText:
		content = string(payload)
	case models.KindImage:
		relPath, err := h.blobs.Save(hash, payload)
		if err != nil {
			return models.Entry{}, false, fmt.Errorf("save image blob: %w", err)
		}
		content = relPath
	default:
		return models.Entry{}, false, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	now := h.now().UTC()
	entry := models.Entry{
		Kind:         kind,
		Content:      content,
		ContentHash:  hash,
		CreatedAt:    now,
		UpdatedAt:    now,
		OriginDevice: h.deviceID,
	}

	saved, created, err := h.entries.Upsert(ctx, entry)
	if err != nil {
		return models.Entry{}, false, err
	}

	if err = h.index.IndexEntry(saved); err != nil {
		// the store committed; a stale index is recoverable via rebuild
		h.logger.Warn().Err(err).
			Str("func", "historyService.Record").
			Int64("id", saved.ID).
			Msg("failed to index entry")
	}

	if created {
		h.notifier.Publish(models.EventEntryAdded, saved.ID)
	} else {
		h.notifier.Publish(models.EventEntryUpdated, saved.ID)
	}

	h.logger.Debug().
		Str("func", "historyService.Record").
		Int64("id", saved.ID).
		Str("kind", kind).
		Bool("created", created).
		Msg("recorded clipboard entry")

	return saved, created, nil
}

func (h *historyService) Get(ctx context.Context, id int64) (models.Entry, error) {
	return h.entries.GetByID(ctx, id)
}

func (h *historyService) Payload(ctx context.Context, id int64) ([]byte, error) {
	entry, err := h.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if entry.Kind == models.KindImage {
		return h.blobs.Read(entry.ContentHash)
	}
	return []byte(entry.Content), nil
}

func (h *historyService) List(ctx context.Context, filter string, page, pageSize int) ([]models.Entry, error) {
	return h.entries.List(ctx, filter, page, h.effectivePageSize(pageSize))
}

func (h *historyService) Search(ctx context.Context, query string, page, pageSize int) ([]models.Entry, error) {
	return h.entries.Search(ctx, query, page, h.effectivePageSize(pageSize))
}

func (h *historyService) effectivePageSize(pageSize int) int {
	if pageSize > 0 {
		return pageSize
	}
	return h.cfg.PageSize
}

func (h *historyService) Count(ctx context.Context, filter string) (int, error) {
	return h.entries.Count(ctx, filter)
}

func (h *historyService) GetAll(ctx context.Context) ([]models.Entry, error) {
	return h.entries.GetAll(ctx)
}

func (h *historyService) SetPinned(ctx context.Context, id int64, pinned bool) error {
	if err := h.entries.SetPinned(ctx, id, pinned); err != nil {
		return err
	}
	h.notifier.Publish(models.EventEntryUpdated, id)
	return nil
}

func (h *historyService) SetSnippet(ctx context.Context, id int64, isSnippet bool) error {
	if err := h.entries.SetSnippet(ctx, id, isSnippet); err != nil {
		return err
	}
	h.notifier.Publish(models.EventEntryUpdated, id)
	return nil
}

func (h *historyService) AddSnippet(ctx context.Context, text string) (models.Entry, error) {
	entry, _, err := h.Record(ctx, models.KindText, []byte(text))
	if err != nil {
		return models.Entry{}, err
	}

	if entry.IsSnippet {
		return entry, nil
	}

	if err = h.SetSnippet(ctx, entry.ID, true); err != nil {
		return models.Entry{}, err
	}
	entry.IsSnippet = true

	return entry, nil
}

func (h *historyService) Delete(ctx context.Context, id int64) error {
	deleted, err := h.entries.Delete(ctx, id)
	if err != nil {
		return err
	}

	h.releaseEntry(deleted)
	h.notifier.Publish(models.EventEntryUpdated, id)

	return nil
}

func (h *historyService) Clear(ctx context.Context) (int, error) {
	removed, err := h.entries.DeleteWhere(ctx, nil)
	if err != nil {
		return 0, err
	}

	for _, entry := range removed {
		h.releaseEntry(entry)
	}
	h.notifier.Publish(models.EventHistoryCleared, 0)

	h.logger.Info().
		Str("func", "historyService.Clear").
		Int("removed", len(removed)).
		Msg("history cleared")

	return len(removed), nil
}

func (h *historyService) ApplyRetention(ctx context.Context) (int, error) {
	if h.cfg.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := h.now().UTC().AddDate(0, 0, -h.cfg.RetentionDays)
	removed, err := h.entries.DeleteWhere(ctx, &cutoff)
	if err != nil {
		return 0, err
	}

	for _, entry := range removed {
		h.releaseEntry(entry)
	}
	if len(removed) > 0 {
		h.notifier.Publish(models.EventHistoryCleared, 0)
		h.logger.Info().
			Str("func", "historyService.ApplyRetention").
			Int("removed", len(removed)).
			Time("cutoff", cutoff).
			Msg("pruned expired entries")
	}

	return len(removed), nil
}

// releaseEntry frees the resources a removed row held: its blob file and its
// search-index document. Hashes are unique per row, so no other row can
// still reference the blob.
func (h *historyService) releaseEntry(entry models.Entry) {
	if entry.Kind == models.KindImage {
		if err := h.blobs.Delete(entry.ContentHash); err != nil {
			h.logger.Warn().Err(err).
				Str("func", "historyService.releaseEntry").
				Str("hash", entry.ContentHash).
				Msg("failed to delete blob")
		}
	}
	if err := h.index.Delete(entry.ID); err != nil {
		h.logger.Warn().Err(err).
			Str("func", "historyService.releaseEntry").
			Int64("id", entry.ID).
			Msg("failed to remove index document")
	}
}

func (h *historyService) Merge(ctx context.Context, remote []models.Entry) (models.MergeStats, error) {
	// a fixed application order makes concurrent merges on different
	// devices converge to the same state
	sorted := make([]models.Entry, len(remote))
	copy(sorted, remote)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ContentHash < sorted[j].ContentHash
	})

	var stats models.MergeStats
	for _, remoteEntry := range sorted {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		local, err := h.entries.GetByHash(ctx, remoteEntry.ContentHash)
		if errors.Is(err, store.ErrEntryNotFound) {
			inserted, insertErr := h.entries.Insert(ctx, remoteEntry)
			if insertErr != nil {
				return stats, fmt.Errorf("merge insert %s: %w", remoteEntry.ContentHash, insertErr)
			}
			if indexErr := h.index.IndexEntry(inserted); indexErr != nil {
				h.logger.Warn().Err(indexErr).
					Str("func", "historyService.Merge").
					Int64("id", inserted.ID).
					Msg("failed to index merged entry")
			}
			h.notifier.Publish(models.EventEntryAdded, inserted.ID)
			stats.Added++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("merge lookup %s: %w", remoteEntry.ContentHash, err)
		}

		merged := local
		if remoteEntry.UpdatedAt.After(merged.UpdatedAt) {
			merged.UpdatedAt = remoteEntry.UpdatedAt
		}
		merged.Pinned = local.Pinned || remoteEntry.Pinned
		merged.IsSnippet = local.IsSnippet || remoteEntry.IsSnippet

		if merged.UpdatedAt.Equal(local.UpdatedAt) &&
			merged.Pinned == local.Pinned &&
			merged.IsSnippet == local.IsSnippet {
			stats.Skipped++
			continue
		}

		if err = h.entries.ApplyRemote(ctx, local.ID, merged); err != nil {
			return stats, fmt.Errorf("merge update %s: %w", remoteEntry.ContentHash, err)
		}
		if indexErr := h.index.IndexEntry(merged); indexErr != nil {
			h.logger.Warn().Err(indexErr).
				Str("func", "historyService.Merge").
				Int64("id", merged.ID).
				Msg("failed to reindex merged entry")
		}
		h.notifier.Publish(models.EventEntryUpdated, local.ID)
		stats.Updated++
	}

	h.logger.Debug().
		Str("func", "historyService.Merge").
		Int("added", stats.Added).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Msg("merged remote entries")

	return stats, nil
}

func (h *historyService) RestoreAll(ctx context.Context, entries []models.Entry) error {
	if err := h.entries.ReplaceAll(ctx, entries); err != nil {
		return err
	}

	if err := h.index.Rebuild(entries); err != nil {
		h.logger.Warn().Err(err).
			Str("func", "historyService.RestoreAll").
			Msg("failed to rebuild search index")
	}

	h.notifier.Publish(models.EventHistoryCleared, 0)
	return nil
}
