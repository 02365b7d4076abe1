package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DeviceState is the local sync bookkeeping record: the device's stable
// identity, its append-only archive sequence counter, and the last merged
// sequence per peer. It lives in the user data dir, never in the shared
// folder, so peer-side retention cannot corrupt merge bookkeeping.
type DeviceState struct {
	path string

	mu    sync.Mutex
	state persistedDeviceState
}

type persistedDeviceState struct {
	DeviceID     string           `json:"device_id"`
	NextSequence int64            `json:"next_sequence"`
	Cursors      map[string]int64 `json:"cursors"`
	LastSyncAt   time.Time        `json:"last_sync_at"`
	LastError    string           `json:"last_error,omitempty"`
}

// IDGenerator supplies a fresh device id when the state file does not exist
// yet.
type IDGenerator interface {
	Generate() string
}

// LoadDeviceState reads the state file at path, creating it with a freshly
// generated device id on first run.
func LoadDeviceState(path string, gen IDGenerator) (*DeviceState, error) {
	s := &DeviceState{
		path: path,
		state: persistedDeviceState{
			NextSequence: 1,
			Cursors:      make(map[string]int64),
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: read device state file: %w", ErrStorageUnavailable, err)
		}

		s.state.DeviceID = gen.Generate()
		if err = s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err = json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("%w: decode device state file: %w", ErrStorageCorrupt, err)
	}

	if s.state.DeviceID == "" {
		s.state.DeviceID = gen.Generate()
	}
	if s.state.NextSequence <= 0 {
		s.state.NextSequence = 1
	}
	if s.state.Cursors == nil {
		s.state.Cursors = make(map[string]int64)
	}

	if err = s.persistLocked(); err != nil {
		return nil, err
	}

	return s, nil
}

// persistLocked writes the state atomically (temp file + rename). Callers
// must hold mu; LoadDeviceState calls it before the struct escapes.
func (s *DeviceState) persistLocked() error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create device state dir: %w", ErrStorageUnavailable, err)
		}
	}

	payload, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode device state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err = os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("%w: write device state file: %w", ErrStorageUnavailable, err)
	}
	if err = os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replace device state file: %w", ErrStorageUnavailable, err)
	}

	return nil
}

// DeviceID returns this device's stable identity.
func (s *DeviceState) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeviceID
}

// NextSequence reserves and persists the next archive sequence number.
// Sequences are never reused, even across restarts: the counter is written
// before the number is handed out.
func (s *DeviceState) NextSequence() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.state.NextSequence
	s.state.NextSequence++
	if err := s.persistLocked(); err != nil {
		s.state.NextSequence = seq
		return 0, err
	}

	return seq, nil
}

// LastSequence returns the most recently reserved sequence, 0 before the
// first export.
func (s *DeviceState) LastSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.NextSequence - 1
}

// Cursor returns the last merged sequence for a peer, 0 for unseen peers.
func (s *DeviceState) Cursor(peerID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Cursors[peerID]
}

// SetCursor records the last merged sequence for a peer.
func (s *DeviceState) SetCursor(peerID string, sequence int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Cursors[peerID] = sequence
	return s.persistLocked()
}

// Cursors returns a copy of all peer cursors.
func (s *DeviceState) Cursors() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.state.Cursors))
	for k, v := range s.state.Cursors {
		out[k] = v
	}
	return out
}

// RecordSyncResult stores the outcome of the latest sync tick for status
// reporting. Persist failures here are swallowed: losing the status line is
// preferable to failing a tick that already merged correctly.
func (s *DeviceState) RecordSyncResult(at time.Time, tickErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tickErr != nil {
		s.state.LastError = tickErr.Error()
	} else {
		s.state.LastSyncAt = at
		s.state.LastError = ""
	}
	_ = s.persistLocked()
}

// LastSync returns the last successful sync time and last error text.
func (s *DeviceState) LastSync() (time.Time, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastSyncAt, s.state.LastError
}
