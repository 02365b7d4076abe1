package config

import "errors"

var (
	// ErrNoDataDir is returned when no data directory could be resolved
	// from any configuration source.
	ErrNoDataDir = errors.New("no data directory configured")

	// ErrInvalidPollInterval is returned when the clipboard poll interval
	// is negative.
	ErrInvalidPollInterval = errors.New("poll interval must not be negative")

	// ErrInvalidSyncSettings is returned when sync is enabled but its
	// retention or timing settings are out of range.
	ErrInvalidSyncSettings = errors.New("invalid sync settings")
)
