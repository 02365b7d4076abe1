package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_DefaultsApplied(t *testing.T) {
	cfg, err := newConfigBuilder().withDefaults().build()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Storage.DataDir)
	assert.Equal(t, time.Second, cfg.Monitor.PollInterval)
	assert.True(t, cfg.Monitor.LogImages)
	assert.Equal(t, 100, cfg.History.PageSize)
	assert.Equal(t, 3, cfg.Sync.RetentionCount)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
}

func TestBuilder_ExplicitValuesWinOverDefaults(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs, &StructuredConfig{
		Storage: Storage{DataDir: "/tmp/clip-test"},
		Monitor: Monitor{PollInterval: 250 * time.Millisecond},
	})
	cfg, err := b.withDefaults().build()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/clip-test", cfg.Storage.DataDir)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.PollInterval)
	// untouched fields still come from defaults
	assert.Equal(t, 100, cfg.History.PageSize)
}

func TestBuilder_EnvSource(t *testing.T) {
	t.Setenv("STORAGE_DATA_DIR", "/data/from-env")
	t.Setenv("SYNC_FOLDER_PATH", "/mnt/shared")
	t.Setenv("SYNC_RETENTION_COUNT", "5")

	cfg, err := newConfigBuilder().withEnv().withDefaults().build()
	require.NoError(t, err)

	assert.Equal(t, "/data/from-env", cfg.Storage.DataDir)
	assert.Equal(t, "/mnt/shared", cfg.Sync.FolderPath)
	assert.Equal(t, 5, cfg.Sync.RetentionCount)
}

func TestParseJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{
		"storage": {"data_dir": "/data/json"},
		"monitor": {"poll_interval": "2s", "log_images": true},
		"history": {"retention_days": 30, "page_size": 50},
		"sync": {"folder_path": "/mnt/sync", "interval": "1m", "tick_timeout": "10s", "retention_count": 2, "staleness_window": "720h"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/json", cfg.Storage.DataDir)
	assert.Equal(t, 2*time.Second, cfg.Monitor.PollInterval)
	assert.Equal(t, 30, cfg.History.RetentionDays)
	assert.Equal(t, 2, cfg.Sync.RetentionCount)
	assert.Equal(t, 30*24*time.Hour, cfg.Sync.StalenessWindow)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestDuration_UnmarshalString(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, time.Duration(d))
}

func TestDuration_UnmarshalNumber(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, time.Duration(d))
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	d := Duration(5 * time.Minute)
	raw, err := json.Marshal(d)
	require.NoError(t, err)

	var back Duration
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, back)
}

func TestValidate_NoDataDir(t *testing.T) {
	cfg := &StructuredConfig{}
	assert.ErrorIs(t, cfg.validate(), ErrNoDataDir)
}

func TestValidate_BadSyncRetention(t *testing.T) {
	cfg := &StructuredConfig{
		Storage: Storage{DataDir: "/tmp/x"},
		Sync: Sync{
			FolderPath:  "/mnt/shared",
			Interval:    time.Minute,
			TickTimeout: time.Second,
		},
	}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidSyncSettings)
}

func TestValidate_SyncDisabledSkipsSyncChecks(t *testing.T) {
	cfg := &StructuredConfig{Storage: Storage{DataDir: "/tmp/x"}}
	assert.NoError(t, cfg.validate())
}

func TestStoragePathHelpers(t *testing.T) {
	s := Storage{DataDir: "/data"}
	assert.Equal(t, filepath.Join("/data", "clipboard_history.db"), s.DatabasePath())
	assert.Equal(t, filepath.Join("/data", "images"), s.ImagesPath())
	assert.Equal(t, filepath.Join("/data", "search.bleve"), s.IndexPath())
	assert.Equal(t, filepath.Join("/data", "device_state.json"), s.DeviceStatePath())

	s.DSN = "/elsewhere/h.db"
	assert.Equal(t, "/elsewhere/h.db", s.DatabasePath())
}
