package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/models"
)

// staticID pins a device id for deterministic folder contents.
type staticID struct{ id string }

func (g staticID) Generate() string { return g.id }

type syncFixture struct {
	*fixture
	state *store.DeviceState
	sync  Sync
}

func testSyncConfig(folder string) config.Sync {
	return config.Sync{
		FolderPath:      folder,
		Interval:        time.Hour,
		TickTimeout:     10 * time.Second,
		RetentionCount:  2,
		StalenessWindow: 0,
	}
}

func newSyncFixture(t *testing.T, cfg config.Sync, deviceID string) *syncFixture {
	t.Helper()

	f := newFixtureWithConfig(t, testHistoryConfig(), deviceID)

	state, err := store.LoadDeviceState(filepath.Join(t.TempDir(), "device_state.json"), staticID{id: deviceID})
	require.NoError(t, err)

	archiver := NewArchiveService(f.history, f.blobs,
		filepath.Join(t.TempDir(), "absent-config.json"), logger.Nop())

	return &syncFixture{
		fixture: f,
		state:   state,
		sync:    NewSyncService(cfg, archiver, state, f.notifier, logger.Nop()),
	}
}

func archiveNames(t *testing.T, folder string) []string {
	t.Helper()

	dirEntries, err := os.ReadDir(folder)
	require.NoError(t, err)

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		names = append(names, de.Name())
	}
	return names
}

func TestSyncTriggerNow_Disabled(t *testing.T) {
	f := newSyncFixture(t, testSyncConfig(""), "device-a")
	assert.ErrorIs(t, f.sync.TriggerNow(context.Background()), ErrSyncDisabled)
}

func TestSyncTick_PublishesOwnSnapshot(t *testing.T) {
	folder := t.TempDir()
	a := newSyncFixture(t, testSyncConfig(folder), "device-a")

	_, _, err := a.history.Record(context.Background(), models.KindText, []byte("from a"))
	require.NoError(t, err)

	require.NoError(t, a.sync.TriggerNow(context.Background()))

	assert.Contains(t, archiveNames(t, folder), models.ArchiveName("device-a", 1))
}

func TestSyncTick_MergesPeerArchive(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	a := newSyncFixture(t, testSyncConfig(folder), "device-a")
	b := newSyncFixture(t, testSyncConfig(folder), "device-b")

	_, _, err := a.history.Record(ctx, models.KindText, []byte("from a"))
	require.NoError(t, err)
	require.NoError(t, a.sync.TriggerNow(ctx))

	require.NoError(t, b.sync.TriggerNow(ctx))

	entries, err := b.history.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from a", entries[0].Content)
	assert.Equal(t, "device-a", entries[0].OriginDevice)

	assert.Equal(t, int64(1), b.state.Cursor("device-a"))

	// both devices now have an archive in the folder
	names := archiveNames(t, folder)
	assert.Contains(t, names, models.ArchiveName("device-a", 1))
	assert.Contains(t, names, models.ArchiveName("device-b", 1))
}

func TestSyncTick_AlreadyMergedSequenceSkipped(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	a := newSyncFixture(t, testSyncConfig(folder), "device-a")
	b := newSyncFixture(t, testSyncConfig(folder), "device-b")

	_, _, err := a.history.Record(ctx, models.KindText, []byte("from a"))
	require.NoError(t, err)
	require.NoError(t, a.sync.TriggerNow(ctx))

	require.NoError(t, b.sync.TriggerNow(ctx))
	countAfterFirst, err := b.history.Count(ctx, models.FilterAll)
	require.NoError(t, err)

	// nothing new from a: the cursor prevents a re-merge
	require.NoError(t, b.sync.TriggerNow(ctx))
	countAfterSecond, err := b.history.Count(ctx, models.FilterAll)
	require.NoError(t, err)

	assert.Equal(t, countAfterFirst, countAfterSecond)
	assert.Equal(t, int64(1), b.state.Cursor("device-a"))
}

func TestSyncTick_HighestUnmergedSequenceWins(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	a := newSyncFixture(t, testSyncConfig(folder), "device-a")
	b := newSyncFixture(t, testSyncConfig(folder), "device-b")

	_, _, err := a.history.Record(ctx, models.KindText, []byte("first snapshot"))
	require.NoError(t, err)
	require.NoError(t, a.sync.TriggerNow(ctx))

	_, _, err = a.history.Record(ctx, models.KindText, []byte("second snapshot"))
	require.NoError(t, err)
	require.NoError(t, a.sync.TriggerNow(ctx))

	require.NoError(t, b.sync.TriggerNow(ctx))

	// every archive is a full snapshot, so only the newest was merged and
	// the cursor jumped straight to it
	assert.Equal(t, int64(2), b.state.Cursor("device-a"))

	count, err := b.history.Count(ctx, models.FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSyncTick_QuarantinesCorruptArchive(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	b := newSyncFixture(t, testSyncConfig(folder), "device-b")

	corrupt := filepath.Join(folder, models.ArchiveName("device-evil", 1))
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o600))

	// a poisoned archive fails the tick of no one
	require.NoError(t, b.sync.TriggerNow(ctx))

	assert.NoFileExists(t, corrupt)
	assert.FileExists(t, corrupt+quarantineSuffix)

	// the cursor did not advance past the quarantined sequence
	assert.Equal(t, int64(0), b.state.Cursor("device-evil"))
}

func TestSyncTick_RetentionKeepsNewestArchives(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	a := newSyncFixture(t, testSyncConfig(folder), "device-a")

	for i := 0; i < 3; i++ {
		require.NoError(t, a.sync.TriggerNow(ctx))
	}

	names := archiveNames(t, folder)
	assert.Len(t, names, 2)
	assert.Contains(t, names, models.ArchiveName("device-a", 2))
	assert.Contains(t, names, models.ArchiveName("device-a", 3))
}

func TestSyncTick_StaleDeviceArchivesRemoved(t *testing.T) {
	folder := t.TempDir()
	ctx := context.Background()

	a := newSyncFixture(t, testSyncConfig(folder), "device-a")
	require.NoError(t, a.sync.TriggerNow(ctx))

	stale := filepath.Join(folder, models.ArchiveName("device-a", 1))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	cfg := testSyncConfig(folder)
	cfg.StalenessWindow = time.Hour
	b := newSyncFixture(t, cfg, "device-b")
	require.NoError(t, b.sync.TriggerNow(ctx))

	assert.NoFileExists(t, stale)
	// b's own fresh archive survives
	assert.Contains(t, archiveNames(t, folder), models.ArchiveName("device-b", 1))
}

func TestSyncTick_MissingFolderFailsTick(t *testing.T) {
	cfg := testSyncConfig(filepath.Join(t.TempDir(), "not-mounted"))
	f := newSyncFixture(t, cfg, "device-a")

	err := f.sync.TriggerNow(context.Background())
	assert.ErrorIs(t, err, ErrFolderUnavailable)

	status := f.sync.Status()
	assert.NotEmpty(t, status.LastError)
	assert.True(t, status.LastSyncAt.IsZero(), "failed tick must not claim success")
}

func TestSyncStatus(t *testing.T) {
	folder := t.TempDir()
	f := newSyncFixture(t, testSyncConfig(folder), "device-a")

	require.NoError(t, f.sync.TriggerNow(context.Background()))

	status := f.sync.Status()
	assert.Equal(t, "device-a", status.DeviceID)
	assert.Equal(t, int64(1), status.LastSequence)
	assert.Empty(t, status.LastError)
	assert.False(t, status.LastSyncAt.IsZero())
}

func TestSyncRunStop(t *testing.T) {
	folder := t.TempDir()
	f := newSyncFixture(t, testSyncConfig(folder), "device-a")

	f.sync.Run()
	f.sync.Run() // no-op on a running engine
	f.sync.Stop()
	f.sync.Stop() // idempotent

	// the startup tick published a snapshot
	assert.Contains(t, archiveNames(t, folder), models.ArchiveName("device-a", 1))
}

func TestSyncCompletedEventPublished(t *testing.T) {
	folder := t.TempDir()
	f := newSyncFixture(t, testSyncConfig(folder), "device-a")
	events := f.notifier.Subscribe()

	require.NoError(t, f.sync.TriggerNow(context.Background()))

	var sawSyncCompleted bool
	for len(events) > 0 {
		if (<-events).Type == models.EventSyncCompleted {
			sawSyncCompleted = true
		}
	}
	assert.True(t, sawSyncCompleted)
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		deviceID string
		sequence int64
		ok       bool
	}{
		{"plain", "device-a-000042.archive", "device-a", 42, true},
		{"uuid device id", "3f2a1b-9c-000001.archive", "3f2a1b-9c", 1, true},
		{"wrong extension", "device-a-000042.zip", "", 0, false},
		{"quarantined", "device-a-000042.archive.corrupt", "", 0, false},
		{"no sequence", "device-a.archive", "", 0, false},
		{"non-numeric sequence", "device-a-abc.archive", "", 0, false},
		{"zero sequence", "device-a-000000.archive", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deviceID, sequence, ok := parseArchiveName(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.deviceID, deviceID)
				assert.Equal(t, tt.sequence, sequence)
			}
		})
	}
}
