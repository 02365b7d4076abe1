package config

import "fmt"

// validate checks the merged configuration for values no component can run
// with. Defaults have already been applied by the builder, so a failure
// here means an explicit source supplied a bad value.
func (c *StructuredConfig) validate() error {
	if c.Storage.DataDir == "" {
		return ErrNoDataDir
	}

	if c.Monitor.PollInterval < 0 {
		return ErrInvalidPollInterval
	}

	if c.Sync.FolderPath != "" {
		if c.Sync.RetentionCount < 1 {
			return fmt.Errorf("%w: retention count must keep at least one archive", ErrInvalidSyncSettings)
		}
		if c.Sync.Interval <= 0 {
			return fmt.Errorf("%w: sync interval must be positive", ErrInvalidSyncSettings)
		}
		if c.Sync.TickTimeout <= 0 {
			return fmt.Errorf("%w: tick timeout must be positive", ErrInvalidSyncSettings)
		}
	}

	return nil
}
