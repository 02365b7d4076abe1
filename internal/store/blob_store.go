package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// blobDirName is the directory (under the user data dir) image blobs live
// in; it is also the prefix of the blob-relative path recorded in entry rows
// and archive manifests.
const blobDirName = "images"

// blobStore is the content-addressed implementation of [BlobStore]. Image
// payloads are stored as "<hash>.png" files so a blob's file name alone
// proves its identity; dedup of identical pixels falls out of the naming.
type blobStore struct {
	dir string
}

// NewBlobStore constructs a [BlobStore] rooted at dir, creating the
// directory if needed.
func NewBlobStore(dir string) (BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create blob dir: %w", ErrStorageUnavailable, err)
	}
	return &blobStore{dir: dir}, nil
}

func blobFileName(hash string) string {
	return hash + ".png"
}

// RelativeBlobPath is the path recorded in an image entry's Content field,
// relative to the user data dir.
func RelativeBlobPath(hash string) string {
	return blobDirName + "/" + blobFileName(hash)
}

func (b *blobStore) Path(hash string) string {
	return filepath.Join(b.dir, blobFileName(hash))
}

// Save writes data under its content hash. The write goes to a temp file
// first and is renamed into place so a crashed process never leaves a
// half-written blob under its final name. Saving an existing hash is a
// no-op.
func (b *blobStore) Save(hash string, data []byte) (string, error) {
	final := b.Path(hash)
	if _, err := os.Stat(final); err == nil {
		return RelativeBlobPath(hash), nil
	}

	tmp, err := os.CreateTemp(b.dir, "blob-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if err = os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return RelativeBlobPath(hash), nil
}

func (b *blobStore) Read(hash string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(hash))
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return data, nil
}

// Delete removes a blob file. A missing file is tolerated: imported entries
// may reference blobs the archive never carried.
func (b *blobStore) Delete(hash string) error {
	err := os.Remove(b.Path(hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (b *blobStore) List() ([]string, error) {
	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	hashes := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if filepath.Ext(name) != ".png" {
			continue
		}
		hashes = append(hashes, name[:len(name)-len(".png")])
	}

	return hashes, nil
}
