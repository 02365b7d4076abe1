package models

import "time"

const (
	KindText  = "text"
	KindImage = "image"
)

// Entry is one persisted clipboard capture.
//
// Content holds the text payload for text entries. For image entries it
// holds the blob-relative path of the PNG file inside the images directory;
// the pixel bytes themselves live in the blob store addressed by ContentHash.
type Entry struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"kind"`
	Content      string    `json:"content"`
	ContentHash  string    `json:"content_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Pinned       bool      `json:"pinned"`
	IsSnippet    bool      `json:"is_snippet"`
	OriginDevice string    `json:"origin_device"`
}

// List filters accepted by HistoryStore.List and Count.
const (
	FilterAll      = "all"
	FilterPinned   = "pinned"
	FilterSnippets = "snippets"
	FilterText     = "text"
	FilterImage    = "image"
)

// MergeStats reports the outcome of merging one remote entry set.
type MergeStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Add accumulates another batch's stats into s.
func (s *MergeStats) Add(other MergeStats) {
	s.Added += other.Added
	s.Updated += other.Updated
	s.Skipped += other.Skipped
}

// Import modes for ArchiveManager.Import.
const (
	ImportReplace = "replace"
	ImportMerge   = "merge"
)

// ImportStats reports the outcome of an archive import.
type ImportStats struct {
	Mode    string     `json:"mode"`
	Entries int        `json:"entries"`
	Blobs   int        `json:"blobs"`
	Merge   MergeStats `json:"merge"`
}
