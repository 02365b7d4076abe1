package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unxlabs/unx-clipboard/internal/adapter"
	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/search"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/models"
)

// fakeRepo is an in-memory EntryRepository with the same ordering and
// dedup semantics as the SQLite implementation.
type fakeRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]models.Entry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, entries: make(map[int64]models.Entry)}
}

func (r *fakeRepo) Upsert(_ context.Context, entry models.Entry) (models.Entry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, existing := range r.entries {
		if existing.ContentHash == entry.ContentHash {
			existing.UpdatedAt = entry.UpdatedAt
			r.entries[id] = existing
			return existing, false, nil
		}
	}

	entry.ID = r.nextID
	r.nextID++
	r.entries[entry.ID] = entry
	return entry, true, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return models.Entry{}, store.ErrEntryNotFound
	}
	return entry, nil
}

func (r *fakeRepo) GetByHash(_ context.Context, hash string) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.ContentHash == hash {
			return entry, nil
		}
	}
	return models.Entry{}, store.ErrEntryNotFound
}

func (r *fakeRepo) ordered() []models.Entry {
	out := make([]models.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matchesFilter(entry models.Entry, filter string) bool {
	switch filter {
	case models.FilterPinned:
		return entry.Pinned
	case models.FilterSnippets:
		return entry.IsSnippet
	case models.FilterText:
		return entry.Kind == models.KindText
	case models.FilterImage:
		return entry.Kind == models.KindImage
	default:
		return true
	}
}

func paginate(entries []models.Entry, page, pageSize int) []models.Entry {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return nil
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

func (r *fakeRepo) List(_ context.Context, filter string, page, pageSize int) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var filtered []models.Entry
	for _, entry := range r.ordered() {
		if matchesFilter(entry, filter) {
			filtered = append(filtered, entry)
		}
	}
	return paginate(filtered, page, pageSize), nil
}

func (r *fakeRepo) Search(_ context.Context, query string, page, pageSize int) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(query)
	var matched []models.Entry
	for _, entry := range r.ordered() {
		if entry.Kind != models.KindText {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Content), needle) {
			matched = append(matched, entry)
		}
	}
	return paginate(matched, page, pageSize), nil
}

func (r *fakeRepo) Count(_ context.Context, filter string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, entry := range r.entries {
		if matchesFilter(entry, filter) {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) GetAll(_ context.Context) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ordered(), nil
}

func (r *fakeRepo) SetPinned(_ context.Context, id int64, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return store.ErrEntryNotFound
	}
	entry.Pinned = pinned
	r.entries[id] = entry
	return nil
}

func (r *fakeRepo) SetSnippet(_ context.Context, id int64, isSnippet bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return store.ErrEntryNotFound
	}
	entry.IsSnippet = isSnippet
	r.entries[id] = entry
	return nil
}

func (r *fakeRepo) ApplyRemote(_ context.Context, id int64, entry models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	local, ok := r.entries[id]
	if !ok {
		return store.ErrEntryNotFound
	}
	local.UpdatedAt = entry.UpdatedAt
	local.Pinned = entry.Pinned
	local.IsSnippet = entry.IsSnippet
	r.entries[id] = local
	return nil
}

func (r *fakeRepo) Insert(_ context.Context, entry models.Entry) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.nextID
	r.nextID++
	r.entries[entry.ID] = entry
	return entry, nil
}

func (r *fakeRepo) Delete(_ context.Context, id int64) (models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok {
		return models.Entry{}, store.ErrEntryNotFound
	}
	delete(r.entries, id)
	return entry, nil
}

func (r *fakeRepo) DeleteWhere(_ context.Context, olderThan *time.Time) ([]models.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []models.Entry
	for id, entry := range r.entries {
		if entry.Pinned || entry.IsSnippet {
			continue
		}
		if olderThan != nil && !entry.UpdatedAt.Before(*olderThan) {
			continue
		}
		removed = append(removed, entry)
		delete(r.entries, id)
	}
	return removed, nil
}

func (r *fakeRepo) ReplaceAll(_ context.Context, entries []models.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[int64]models.Entry, len(entries))
	maxID := int64(0)
	for _, entry := range entries {
		r.entries[entry.ID] = entry
		if entry.ID > maxID {
			maxID = entry.ID
		}
	}
	r.nextID = maxID + 1
	return nil
}

// fakeBlobs is an in-memory BlobStore.
type fakeBlobs struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: make(map[string][]byte)}
}

func (b *fakeBlobs) Save(hash string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data[hash]; !ok {
		b.data[hash] = append([]byte(nil), data...)
	}
	return store.RelativeBlobPath(hash), nil
}

func (b *fakeBlobs) Read(hash string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.data[hash]
	if !ok {
		return nil, store.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *fakeBlobs) Path(hash string) string {
	return "/fake/images/" + hash + ".png"
}

func (b *fakeBlobs) Delete(hash string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, hash)
	return nil
}

func (b *fakeBlobs) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	hashes := make([]string, 0, len(b.data))
	for hash := range b.data {
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// fakeClipboard is a scriptable Clipboard adapter.
type fakeClipboard struct {
	mu      sync.Mutex
	snap    adapter.Snapshot
	readErr error
	written []string
}

func (c *fakeClipboard) set(snap adapter.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
}

func (c *fakeClipboard) Snapshot() (adapter.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.readErr != nil {
		return adapter.Snapshot{}, c.readErr
	}
	return c.snap, nil
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.written = append(c.written, text)
	c.snap = adapter.Snapshot{Text: text}
	return nil
}

func (c *fakeClipboard) writtenTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// fixture bundles a full in-memory history stack for service tests.
type fixture struct {
	repo     *fakeRepo
	blobs    *fakeBlobs
	index    *search.Index
	notifier *Notifier
	history  History
}

func testHistoryConfig() config.History {
	return config.History{PageSize: 100}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, testHistoryConfig(), "device-local")
}

func newFixtureWithConfig(t *testing.T, cfg config.History, deviceID string) *fixture {
	t.Helper()

	index, err := search.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	repo := newFakeRepo()
	blobs := newFakeBlobs()
	notifier := NewNotifier(logger.Nop())
	t.Cleanup(notifier.Close)

	return &fixture{
		repo:     repo,
		blobs:    blobs,
		index:    index,
		notifier: notifier,
		history:  NewHistoryService(repo, blobs, index, notifier, cfg, deviceID, logger.Nop()),
	}
}
