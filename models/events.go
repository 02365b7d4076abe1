package models

import "time"

// Event types published on the core's notification channel. The shell
// subscribes to these to refresh its views; the core never calls into the
// shell directly.
const (
	EventEntryAdded     = "entry_added"
	EventEntryUpdated   = "entry_updated"
	EventSyncCompleted  = "sync_completed"
	EventHistoryCleared = "history_cleared"
)

// Event is one notification emitted by the core.
type Event struct {
	Type    string    `json:"type"`
	EntryID int64     `json:"entry_id,omitempty"`
	At      time.Time `json:"at"`
}
