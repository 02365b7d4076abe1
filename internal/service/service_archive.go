package service

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/internal/utils"
	"github.com/unxlabs/unx-clipboard/models"
)

// Archive member names. The manifest always comes first in the package so a
// validator can reject a corrupt archive before touching payload data.
const (
	manifestFileName   = "manifest.json"
	configSnapshotName = "config.json"
	archiveBlobDir     = "blobs"
)

type archiveService struct {
	history            History
	blobs              store.BlobStore
	configSnapshotPath string
	logger             *logger.Logger

	now func() time.Time
}

// NewArchiveService constructs the [Archive] implementation.
// configSnapshotPath names the JSON config file bundled into exports; an
// empty or missing file is skipped.
func NewArchiveService(history History, blobs store.BlobStore, configSnapshotPath string, log *logger.Logger) Archive {
	return &archiveService{
		history:            history,
		blobs:              blobs,
		configSnapshotPath: configSnapshotPath,
		logger:             log,
		now:                time.Now,
	}
}

func (a *archiveService) Export(ctx context.Context, w io.Writer, deviceID string, sequence int64) (models.Manifest, error) {
	entries, err := a.history.GetAll(ctx)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("load entries: %w", err)
	}

	// load blobs up front so the manifest only ever references blobs the
	// archive actually carries
	blobData := make(map[string][]byte)
	for _, entry := range entries {
		if entry.Kind != models.KindImage {
			continue
		}
		if _, ok := blobData[entry.ContentHash]; ok {
			continue
		}

		data, readErr := a.blobs.Read(entry.ContentHash)
		if errors.Is(readErr, store.ErrBlobNotFound) {
			// the row may have been imported without its blob; export the
			// row anyway and let the importing side tolerate the gap
			a.logger.Warn().
				Str("func", "archiveService.Export").
				Str("hash", entry.ContentHash).
				Msg("image entry has no blob, exporting row only")
			continue
		}
		if readErr != nil {
			return models.Manifest{}, fmt.Errorf("read blob %s: %w", entry.ContentHash, readErr)
		}
		blobData[entry.ContentHash] = data
	}

	manifest := models.Manifest{
		FormatVersion: models.ManifestFormatVersion,
		DeviceID:      deviceID,
		Sequence:      sequence,
		ExportedAt:    a.now().UTC(),
		EntryCount:    len(entries),
		Entries:       make([]models.ManifestEntry, 0, len(entries)),
		Blobs:         make(map[string]string, len(blobData)),
	}
	for _, entry := range entries {
		manifest.Entries = append(manifest.Entries, models.ManifestEntry{
			Entry:    entry,
			Checksum: entry.ContentHash,
		})
	}
	for hash := range blobData {
		manifest.Blobs[hash] = hash
	}

	zw := zip.NewWriter(w)

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return models.Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err = writeZipMember(zw, manifestFileName, manifestJSON); err != nil {
		return models.Manifest{}, err
	}

	if snapshot, readErr := os.ReadFile(a.configSnapshotPath); readErr == nil {
		if err = writeZipMember(zw, configSnapshotName, snapshot); err != nil {
			return models.Manifest{}, err
		}
	}

	for hash, data := range blobData {
		if err = ctx.Err(); err != nil {
			return models.Manifest{}, err
		}
		if err = writeZipMember(zw, archiveBlobPath(hash), data); err != nil {
			return models.Manifest{}, err
		}
	}

	if err = zw.Close(); err != nil {
		return models.Manifest{}, fmt.Errorf("finalize archive: %w", err)
	}

	a.logger.Debug().
		Str("func", "archiveService.Export").
		Int("entries", len(entries)).
		Int("blobs", len(blobData)).
		Int64("sequence", sequence).
		Msg("archive exported")

	return manifest, nil
}

func writeZipMember(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive member %s: %w", name, err)
	}
	if _, err = f.Write(data); err != nil {
		return fmt.Errorf("write archive member %s: %w", name, err)
	}
	return nil
}

func archiveBlobPath(hash string) string {
	return archiveBlobDir + "/" + hash + ".png"
}

// ExportToFile writes an archive to path through a temp file in the same
// directory. A reader scanning that directory either sees the complete
// archive or nothing.
func (a *archiveService) ExportToFile(ctx context.Context, path, deviceID string, sequence int64) (models.Manifest, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Manifest{}, fmt.Errorf("create archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.tmp")
	if err != nil {
		return models.Manifest{}, fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()

	manifest, err := a.Export(ctx, tmp, deviceID, sequence)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.Manifest{}, err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.Manifest{}, fmt.Errorf("close temp archive: %w", err)
	}

	if err = os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return models.Manifest{}, fmt.Errorf("publish archive: %w", err)
	}

	return manifest, nil
}

func (a *archiveService) ReadManifest(path string) (models.Manifest, error) {
	r, err := openArchive(path)
	if err != nil {
		return models.Manifest{}, err
	}
	defer r.Close()

	return readManifest(r)
}

func openArchive(path string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(path)
	if errors.Is(err, zip.ErrFormat) {
		return nil, fmt.Errorf("%w: not a zip package: %w", ErrCorruptArchive, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return r, nil
}

func readManifest(r *zip.ReadCloser) (models.Manifest, error) {
	var manifest models.Manifest

	member := findZipMember(r, manifestFileName)
	if member == nil {
		return manifest, fmt.Errorf("%w: missing %s", ErrCorruptArchive, manifestFileName)
	}

	data, err := readZipMember(member)
	if err != nil {
		return manifest, err
	}
	if err = json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("%w: decode manifest: %w", ErrCorruptArchive, err)
	}

	if err = validateManifest(manifest); err != nil {
		return manifest, err
	}

	return manifest, nil
}

func findZipMember(r *zip.ReadCloser, name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readZipMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open member %s: %w", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read member %s: %w", ErrCorruptArchive, f.Name, err)
	}
	return data, nil
}

func validateManifest(manifest models.Manifest) error {
	if manifest.FormatVersion != models.ManifestFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrCorruptArchive, manifest.FormatVersion)
	}
	if manifest.DeviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrCorruptArchive)
	}
	if manifest.EntryCount != len(manifest.Entries) {
		return fmt.Errorf("%w: entry count %d does not match %d listed entries",
			ErrCorruptArchive, manifest.EntryCount, len(manifest.Entries))
	}

	for _, entry := range manifest.Entries {
		if entry.Kind != models.KindText && entry.Kind != models.KindImage {
			return fmt.Errorf("%w: unknown entry kind %q", ErrCorruptArchive, entry.Kind)
		}
		if entry.ContentHash == "" {
			return fmt.Errorf("%w: entry without content hash", ErrCorruptArchive)
		}
		if entry.Checksum != entry.ContentHash {
			return fmt.Errorf("%w: checksum mismatch for %s", ErrCorruptArchive, entry.ContentHash)
		}
	}

	return nil
}

// Import applies an archive in the given mode. The archive is validated in
// full (manifest structure, entry checksums, blob checksums) before the
// local history is touched; a corrupt archive never commits anything.
func (a *archiveService) Import(ctx context.Context, path, mode string) (models.ImportStats, error) {
	if mode != models.ImportReplace && mode != models.ImportMerge {
		return models.ImportStats{}, fmt.Errorf("%w: %q", ErrUnsupportedImportMode, mode)
	}

	r, err := openArchive(path)
	if err != nil {
		return models.ImportStats{}, err
	}
	defer r.Close()

	manifest, err := readManifest(r)
	if err != nil {
		return models.ImportStats{}, err
	}

	blobData, err := verifyArchive(r, manifest)
	if err != nil {
		return models.ImportStats{}, err
	}

	// stage blobs first: the blob store is content-addressed, so adding
	// blobs before the table swap is safe even if the import fails later
	for hash, data := range blobData {
		if err = ctx.Err(); err != nil {
			return models.ImportStats{}, err
		}
		if _, err = a.blobs.Save(hash, data); err != nil {
			return models.ImportStats{}, fmt.Errorf("stage blob %s: %w", hash, err)
		}
	}

	entries := make([]models.Entry, 0, len(manifest.Entries))
	for _, manifestEntry := range manifest.Entries {
		entries = append(entries, manifestEntry.Entry)
	}

	stats := models.ImportStats{
		Mode:    mode,
		Entries: len(entries),
		Blobs:   len(blobData),
	}

	switch mode {
	case models.ImportReplace:
		if err = a.history.RestoreAll(ctx, entries); err != nil {
			return models.ImportStats{}, err
		}
		a.collectOrphanBlobs(entries)
	case models.ImportMerge:
		mergeStats, mergeErr := a.history.Merge(ctx, entries)
		if mergeErr != nil {
			return models.ImportStats{}, mergeErr
		}
		stats.Merge = mergeStats
	}

	a.logger.Info().
		Str("func", "archiveService.Import").
		Str("mode", mode).
		Str("device_id", manifest.DeviceID).
		Int64("sequence", manifest.Sequence).
		Int("entries", stats.Entries).
		Msg("archive imported")

	return stats, nil
}

// verifyArchive checks every checksum the manifest declares and returns the
// verified blob payloads.
func verifyArchive(r *zip.ReadCloser, manifest models.Manifest) (map[string][]byte, error) {
	for _, entry := range manifest.Entries {
		if entry.Kind != models.KindText {
			continue
		}
		if utils.HashBytes([]byte(entry.Content)) != entry.Checksum {
			return nil, fmt.Errorf("%w: text payload does not match checksum %s",
				ErrCorruptArchive, entry.Checksum)
		}
	}

	blobData := make(map[string][]byte, len(manifest.Blobs))
	for hash := range manifest.Blobs {
		member := findZipMember(r, archiveBlobPath(hash))
		if member == nil {
			return nil, fmt.Errorf("%w: missing blob %s", ErrCorruptArchive, hash)
		}

		data, err := readZipMember(member)
		if err != nil {
			return nil, err
		}
		if utils.HashBytes(data) != hash {
			return nil, fmt.Errorf("%w: blob payload does not match checksum %s", ErrCorruptArchive, hash)
		}
		blobData[hash] = data
	}

	return blobData, nil
}

// collectOrphanBlobs removes blob files no imported entry references.
// Replace mode may drop image rows whose blobs were staged by earlier
// operations; failures here only leak disk space, never data.
func (a *archiveService) collectOrphanBlobs(entries []models.Entry) {
	referenced := make(map[string]struct{})
	for _, entry := range entries {
		if entry.Kind == models.KindImage {
			referenced[entry.ContentHash] = struct{}{}
		}
	}

	stored, err := a.blobs.List()
	if err != nil {
		a.logger.Warn().Err(err).
			Str("func", "archiveService.collectOrphanBlobs").
			Msg("failed to list blobs")
		return
	}

	for _, hash := range stored {
		if _, ok := referenced[hash]; ok {
			continue
		}
		if err = a.blobs.Delete(hash); err != nil {
			a.logger.Warn().Err(err).
				Str("func", "archiveService.collectOrphanBlobs").
				Str("hash", hash).
				Msg("failed to delete orphan blob")
		}
	}
}
