package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-data-dir user data directory
//	-d history database path
//	-images-dir image blob directory
//	-poll-interval clipboard poll interval (e.g., "500ms", "1s")
//	-retention-days history retention in days (0 disables pruning)
//	-sync-folder shared sync folder path (empty disables sync)
//	-sync-interval delay between sync ticks (e.g., "5m")
//	-sync-keep archives kept per device in the shared folder
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var dataDir string
	var databasePath string
	var imagesDir string
	var pollInterval time.Duration
	var retentionDays int
	var syncFolder string
	var syncInterval time.Duration
	var syncKeep int
	var jsonConfigPath string

	flag.StringVar(&dataDir, "data-dir", "", "User data directory")
	flag.StringVar(&databasePath, "d", "", "History database path")
	flag.StringVar(&imagesDir, "images-dir", "", "Image blob directory")
	flag.DurationVar(&pollInterval, "poll-interval", 0, "Clipboard poll interval (e.g., 500ms, 1s)")
	flag.IntVar(&retentionDays, "retention-days", 0, "History retention in days (0 disables pruning)")
	flag.StringVar(&syncFolder, "sync-folder", "", "Shared sync folder path")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Delay between sync ticks (e.g., 5m)")
	flag.IntVar(&syncKeep, "sync-keep", 0, "Archives kept per device in the shared folder")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		Storage: Storage{
			DataDir:   dataDir,
			DSN:       databasePath,
			ImagesDir: imagesDir,
		},
		Monitor: Monitor{
			PollInterval: pollInterval,
		},
		History: History{
			RetentionDays: retentionDays,
		},
		Sync: Sync{
			FolderPath:     syncFolder,
			Interval:       syncInterval,
			RetentionCount: syncKeep,
		},
		JSONFilePath: jsonConfigPath,
	}
}
