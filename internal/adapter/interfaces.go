// Package adapter isolates the core from external systems. The only
// external system this core talks to is the OS clipboard; the adapter
// boundary keeps platform specifics (and their failure modes) out of the
// monitor's poll loop.
package adapter

// Snapshot is one observation of the OS clipboard. Image carries raw raster
// bytes when the clipboard holds an image; Text carries the plain-text
// content otherwise. Both may be empty when the clipboard is empty or holds
// an unsupported format.
type Snapshot struct {
	Text  string
	Image []byte
}

// Clipboard reads and writes the OS clipboard.
type Clipboard interface {
	// Snapshot returns the current clipboard content. Failures are
	// returned, not retried; the poll loop treats them as "unchanged".
	Snapshot() (Snapshot, error)

	// WriteText replaces the clipboard with the given text.
	WriteText(text string) error
}

// ImageProvider supplies raster clipboard content. Image formats are owned
// by the platform shell (Qt, win32, ...), so the shell injects its provider;
// a nil provider means text-only capture.
type ImageProvider interface {
	// ReadImage returns the clipboard's raster content as encoded image
	// bytes, or nil when the clipboard holds no image.
	ReadImage() ([]byte, error)
}
