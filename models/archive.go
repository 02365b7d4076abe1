package models

import (
	"fmt"
	"time"
)

// ManifestFormatVersion is bumped whenever the archive layout changes in a
// way an older reader cannot handle.
const ManifestFormatVersion = 1

// ArchiveExt is the file extension of exported archives.
const ArchiveExt = ".archive"

// Manifest describes the contents of one exported archive. It is stored as
// manifest.json at the root of the zip package and validated in full before
// an import commits anything.
type Manifest struct {
	FormatVersion int             `json:"format_version"`
	DeviceID      string          `json:"device_id"`
	Sequence      int64           `json:"sequence"`
	ExportedAt    time.Time       `json:"exported_at"`
	EntryCount    int             `json:"entry_count"`
	Entries       []ManifestEntry `json:"entries"`
	// Blobs maps a blob's content hash to its expected SHA-256 checksum
	// (hex). For content-addressed PNG blobs the two coincide; the checksum
	// is still recorded and verified separately so a swapped file is caught.
	Blobs map[string]string `json:"blobs"`
}

// ManifestEntry is one entry row inside a manifest. Checksum is the SHA-256
// hex digest over the payload bytes and must match ContentHash recomputed
// on import.
type ManifestEntry struct {
	Entry
	Checksum string `json:"checksum"`
}

// ArchiveName returns the shared-folder file name for a device's snapshot,
// e.g. "3f2a...-000042.archive". Sequences are zero-padded so lexical and
// numeric ordering agree.
func ArchiveName(deviceID string, sequence int64) string {
	return fmt.Sprintf("%s-%06d%s", deviceID, sequence, ArchiveExt)
}

// SyncStatus is the externally visible state of the sync engine.
type SyncStatus struct {
	DeviceID     string           `json:"device_id"`
	LastSyncAt   time.Time        `json:"last_sync_at"`
	LastError    string           `json:"last_error,omitempty"`
	LastSequence int64            `json:"last_sequence"`
	PeerCursors  map[string]int64 `json:"peer_cursors"`
}
