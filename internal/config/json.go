package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// StructuredJSONConfig mirrors [StructuredConfig] with JSON tags and
// string-friendly durations ("1s", "5m"). The same file format is embedded
// into exported archives as the configuration snapshot.
type StructuredJSONConfig struct {
	Storage struct {
		DataDir   string `json:"data_dir"`
		DSN       string `json:"dsn"`
		ImagesDir string `json:"images_dir"`
		IndexDir  string `json:"index_dir"`
	} `json:"storage,omitempty"`

	Monitor struct {
		PollInterval  Duration `json:"poll_interval"`
		LogImages     bool     `json:"log_images"`
		IgnoreSamples int      `json:"ignore_samples"`
	} `json:"monitor,omitempty"`

	History struct {
		RetentionDays int `json:"retention_days"`
		PageSize      int `json:"page_size"`
	} `json:"history,omitempty"`

	Sync struct {
		FolderPath      string   `json:"folder_path"`
		Interval        Duration `json:"interval"`
		TickTimeout     Duration `json:"tick_timeout"`
		RetentionCount  int      `json:"retention_count"`
		StalenessWindow Duration `json:"staleness_window"`
	} `json:"sync,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	return jsonCfg.toStructured(), nil
}

func (j *StructuredJSONConfig) toStructured() *StructuredConfig {
	return &StructuredConfig{
		Storage: Storage{
			DataDir:   j.Storage.DataDir,
			DSN:       j.Storage.DSN,
			ImagesDir: j.Storage.ImagesDir,
			IndexDir:  j.Storage.IndexDir,
		},
		Monitor: Monitor{
			PollInterval:  time.Duration(j.Monitor.PollInterval),
			LogImages:     j.Monitor.LogImages,
			IgnoreSamples: j.Monitor.IgnoreSamples,
		},
		History: History{
			RetentionDays: j.History.RetentionDays,
			PageSize:      j.History.PageSize,
		},
		Sync: Sync{
			FolderPath:      j.Sync.FolderPath,
			Interval:        time.Duration(j.Sync.Interval),
			TickTimeout:     time.Duration(j.Sync.TickTimeout),
			RetentionCount:  j.Sync.RetentionCount,
			StalenessWindow: time.Duration(j.Sync.StalenessWindow),
		},
		JSONFilePath: "",
	}
}

// FromStructured builds the JSON mirror of cfg, used when writing the
// configuration snapshot that travels inside archives.
func FromStructured(cfg *StructuredConfig) *StructuredJSONConfig {
	j := &StructuredJSONConfig{}
	j.Storage.DataDir = cfg.Storage.DataDir
	j.Storage.DSN = cfg.Storage.DSN
	j.Storage.ImagesDir = cfg.Storage.ImagesDir
	j.Storage.IndexDir = cfg.Storage.IndexDir
	j.Monitor.PollInterval = Duration(cfg.Monitor.PollInterval)
	j.Monitor.LogImages = cfg.Monitor.LogImages
	j.Monitor.IgnoreSamples = cfg.Monitor.IgnoreSamples
	j.History.RetentionDays = cfg.History.RetentionDays
	j.History.PageSize = cfg.History.PageSize
	j.Sync.FolderPath = cfg.Sync.FolderPath
	j.Sync.Interval = Duration(cfg.Sync.Interval)
	j.Sync.TickTimeout = Duration(cfg.Sync.TickTimeout)
	j.Sync.RetentionCount = cfg.Sync.RetentionCount
	j.Sync.StalenessWindow = Duration(cfg.Sync.StalenessWindow)
	return j
}

// Duration is a wrapper around time.Duration that supports JSON
// unmarshaling from strings like "1h", "30s" as well as raw nanosecond
// numbers, and marshals back to the string form.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return errors.New("invalid duration")
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
