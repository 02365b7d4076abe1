package adapter

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// systemClipboard is the default [Clipboard] implementation: text through
// the platform clipboard utility, images through an optional injected
// provider.
type systemClipboard struct {
	images ImageProvider
}

// NewSystemClipboard constructs the OS-backed clipboard adapter. images may
// be nil, in which case snapshots never carry raster content.
func NewSystemClipboard(images ImageProvider) Clipboard {
	return &systemClipboard{images: images}
}

func (c *systemClipboard) Snapshot() (Snapshot, error) {
	var snap Snapshot

	if c.images != nil {
		imageBytes, err := c.images.ReadImage()
		if err == nil && len(imageBytes) > 0 {
			snap.Image = imageBytes
			// image content wins over any stale text representation
			return snap, nil
		}
		// image read failures fall through to text: a broken image
		// provider must not blind the whole monitor
	}

	text, err := clipboard.ReadAll()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read clipboard text: %w", err)
	}
	snap.Text = text

	return snap, nil
}

func (c *systemClipboard) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard text: %w", err)
	}
	return nil
}
