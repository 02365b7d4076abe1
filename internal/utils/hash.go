package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"sync"
)

// hasherPool is a package-level pool of reusable SHA-256 hash instances.
// Content hashes are unkeyed: the same payload must produce the same digest
// on every device, otherwise cross-device dedup during merge breaks.
var hasherPool = sync.Pool{
	New: func() any {
		return sha256.New()
	},
}

// HashBytes computes the SHA-256 digest over the given byte slice using a
// hasher pulled from the pool and returns it hex-encoded.
//
// This is the canonical content-hash function: text entries are hashed over
// their exact UTF-8 bytes, image entries over their normalized PNG bytes.
func HashBytes(data []byte) string {
	h := hasherPool.Get().(hash.Hash)
	h.Reset()

	h.Write(data)
	sum := h.Sum(nil)

	h.Reset()
	hasherPool.Put(h)

	return hex.EncodeToString(sum)
}

// HashString computes the SHA-256 content hash of a string.
func HashString(data string) string {
	return HashBytes([]byte(data))
}

// HashFile computes the SHA-256 content hash of a file's contents by
// streaming, so large image blobs are not read fully into memory.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
