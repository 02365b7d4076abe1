package service

import (
	"sync"
	"time"

	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/models"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind starts losing events; the shell treats any event as a
// hint to refresh, so drops are harmless.
const subscriberBuffer = 16

// Notifier fans core events out to subscribers. Publishing never blocks:
// a full subscriber channel drops the event instead of stalling the
// publisher, which may be the monitor's poll loop.
type Notifier struct {
	logger *logger.Logger

	mu     sync.Mutex
	subs   []chan models.Event
	closed bool
}

// NewNotifier constructs a Notifier.
func NewNotifier(log *logger.Logger) *Notifier {
	return &Notifier{logger: log}
}

// Subscribe registers a new subscriber and returns its event channel. The
// channel is closed when the Notifier is closed.
func (n *Notifier) Subscribe() <-chan models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan models.Event, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch
	}

	n.subs = append(n.subs, ch)
	return ch
}

// Publish delivers an event to all subscribers. entryID is zero for events
// not tied to a single entry.
func (n *Notifier) Publish(eventType string, entryID int64) {
	event := models.Event{
		Type:    eventType,
		EntryID: entryID,
		At:      time.Now().UTC(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
			n.logger.Debug().
				Str("func", "Notifier.Publish").
				Str("event", eventType).
				Msg("subscriber channel full, event dropped")
		}
	}
}

// Close closes all subscriber channels. Further Publish calls are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true

	for _, ch := range n.subs {
		close(ch)
	}
	n.subs = nil
}
