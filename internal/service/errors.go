package service

import "errors"

var (
	// ErrEmptyPayload is returned when a capture carries no content.
	ErrEmptyPayload = errors.New("empty clipboard payload")

	// ErrUnsupportedKind is returned for entry kinds the core does not
	// handle.
	ErrUnsupportedKind = errors.New("unsupported entry kind")

	// ErrCorruptArchive marks an archive that failed structural or checksum
	// validation. The sync engine quarantines archives that fail with this
	// error; anything else is treated as transient and retried.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrUnsupportedImportMode is returned for import modes other than
	// replace and merge.
	ErrUnsupportedImportMode = errors.New("unsupported import mode")

	// ErrSyncDisabled is returned by sync operations when no shared folder
	// is configured.
	ErrSyncDisabled = errors.New("sync is not configured")

	// ErrFolderUnavailable marks a shared folder that cannot be reached
	// right now (unmounted network share, missing directory). Transient:
	// the next tick retries.
	ErrFolderUnavailable = errors.New("sync folder unavailable")
)
