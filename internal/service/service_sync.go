package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/models"
)

// quarantineSuffix is appended to archives that failed validation. Renamed
// files stop matching the archive pattern, so a poisoned archive is
// inspected at most once.
const quarantineSuffix = ".corrupt"

type syncService struct {
	cfg      config.Sync
	archive  Archive
	state    *store.DeviceState
	notifier *Notifier
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// tickMu serializes ticks: a manual TriggerNow never overlaps the
	// scheduled loop
	tickMu sync.Mutex

	now func() time.Time
}

// NewSyncService constructs the shared-folder [Sync] engine.
func NewSyncService(cfg config.Sync, archive Archive, state *store.DeviceState, notifier *Notifier, log *logger.Logger) Sync {
	return &syncService{
		cfg:      cfg,
		archive:  archive,
		state:    state,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
	}
}

// Run starts the periodic sync loop. With no shared folder configured the
// engine stays idle.
func (s *syncService) Run() {
	if s.cfg.FolderPath == "" {
		s.logger.Info().
			Str("func", "syncService.Run").
			Msg("no sync folder configured, sync disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.logger.Warn().
			Str("func", "syncService.Run").
			Msg("sync engine already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info().
		Str("func", "syncService.Run").
		Str("folder", s.cfg.FolderPath).
		Dur("interval", s.cfg.Interval).
		Msg("sync engine started")
}

// Stop cancels the sync loop and waits for an in-flight tick to finish.
func (s *syncService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()

	s.logger.Info().
		Str("func", "syncService.Stop").
		Msg("sync engine stopped")
}

func (s *syncService) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// first exchange happens immediately, not one interval in
	s.runTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick executes one bounded sync tick and records its outcome.
func (s *syncService) runTick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	err := s.tick(tickCtx)
	s.state.RecordSyncResult(s.now().UTC(), err)

	if err != nil {
		s.logger.Warn().Err(err).
			Str("func", "syncService.runTick").
			Msg("sync tick failed")
		return
	}

	s.notifier.Publish(models.EventSyncCompleted, 0)
}

func (s *syncService) TriggerNow(ctx context.Context) error {
	if s.cfg.FolderPath == "" {
		return ErrSyncDisabled
	}

	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tickCtx, cancel := context.WithTimeout(ctx, s.cfg.TickTimeout)
	defer cancel()

	err := s.tick(tickCtx)
	s.state.RecordSyncResult(s.now().UTC(), err)
	if err == nil {
		s.notifier.Publish(models.EventSyncCompleted, 0)
	}

	return err
}

func (s *syncService) Status() models.SyncStatus {
	lastSync, lastErr := s.state.LastSync()
	return models.SyncStatus{
		DeviceID:     s.state.DeviceID(),
		LastSyncAt:   lastSync,
		LastError:    lastErr,
		LastSequence: s.state.LastSequence(),
		PeerCursors:  s.state.Cursors(),
	}
}

// tick is one full exchange: publish our snapshot, merge what peers
// published, then prune old archives. An export failure aborts the tick
// before retention so a broken tick never deletes anything.
func (s *syncService) tick(ctx context.Context) error {
	if _, err := os.Stat(s.cfg.FolderPath); err != nil {
		return fmt.Errorf("%w: %w", ErrFolderUnavailable, err)
	}

	if err := s.exportSnapshot(ctx); err != nil {
		return err
	}

	groups, err := s.scanFolder()
	if err != nil {
		return err
	}

	mergeErr := s.mergePeers(ctx, groups)

	s.applyRetention(groups)

	return mergeErr
}

func (s *syncService) exportSnapshot(ctx context.Context) error {
	deviceID := s.state.DeviceID()

	sequence, err := s.state.NextSequence()
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	path := filepath.Join(s.cfg.FolderPath, models.ArchiveName(deviceID, sequence))
	if _, err = s.archive.ExportToFile(ctx, path, deviceID, sequence); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}

	return nil
}

// archiveFile is one parsed shared-folder archive.
type archiveFile struct {
	path     string
	deviceID string
	sequence int64
	modTime  time.Time
}

// scanFolder lists the shared folder's archives grouped by device, each
// group sorted by ascending sequence. Files that do not match the archive
// naming scheme are ignored.
func (s *syncService) scanFolder() (map[string][]archiveFile, error) {
	dirEntries, err := os.ReadDir(s.cfg.FolderPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFolderUnavailable, err)
	}

	groups := make(map[string][]archiveFile)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		deviceID, sequence, ok := parseArchiveName(de.Name())
		if !ok {
			continue
		}

		info, infoErr := de.Info()
		if infoErr != nil {
			continue
		}

		groups[deviceID] = append(groups[deviceID], archiveFile{
			path:     filepath.Join(s.cfg.FolderPath, de.Name()),
			deviceID: deviceID,
			sequence: sequence,
			modTime:  info.ModTime(),
		})
	}

	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool {
			return group[i].sequence < group[j].sequence
		})
	}

	return groups, nil
}

// parseArchiveName splits "<device_id>-<sequence>.archive". Device ids may
// themselves contain dashes, so the sequence is everything after the last
// one.
func parseArchiveName(name string) (deviceID string, sequence int64, ok bool) {
	base, found := strings.CutSuffix(name, models.ArchiveExt)
	if !found {
		return "", 0, false
	}

	i := strings.LastIndex(base, "-")
	if i <= 0 || i == len(base)-1 {
		return "", 0, false
	}

	sequence, err := strconv.ParseInt(base[i+1:], 10, 64)
	if err != nil || sequence < 1 {
		return "", 0, false
	}

	return base[:i], sequence, true
}

// mergePeers merges the highest unmerged archive of every peer, peers in
// ascending device-id order so concurrent devices apply the same merges in
// the same order. One peer's failure does not block the others.
func (s *syncService) mergePeers(ctx context.Context, groups map[string][]archiveFile) error {
	selfID := s.state.DeviceID()

	peerIDs := make([]string, 0, len(groups))
	for deviceID := range groups {
		if deviceID == selfID {
			continue
		}
		peerIDs = append(peerIDs, deviceID)
	}
	sort.Strings(peerIDs)

	var errs []error
	for _, peerID := range peerIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if err := s.mergePeer(ctx, peerID, groups[peerID]); err != nil {
			errs = append(errs, fmt.Errorf("peer %s: %w", peerID, err))
		}
	}

	return errors.Join(errs...)
}

func (s *syncService) mergePeer(ctx context.Context, peerID string, archives []archiveFile) error {
	cursor := s.state.Cursor(peerID)

	// highest unmerged sequence wins; older archives are already subsumed
	// by it since every archive is a full snapshot
	var candidate *archiveFile
	for i := range archives {
		if archives[i].sequence > cursor {
			candidate = &archives[i]
		}
	}
	if candidate == nil {
		return nil
	}

	stats, err := s.archive.Import(ctx, candidate.path, models.ImportMerge)
	if errors.Is(err, ErrCorruptArchive) {
		s.quarantine(candidate.path, err)
		// cursor stays put: the next tick picks the next-highest archive
		return nil
	}
	if err != nil {
		return err
	}

	if err = s.state.SetCursor(peerID, candidate.sequence); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	s.logger.Info().
		Str("func", "syncService.mergePeer").
		Str("peer", peerID).
		Int64("sequence", candidate.sequence).
		Int("added", stats.Merge.Added).
		Int("updated", stats.Merge.Updated).
		Int("skipped", stats.Merge.Skipped).
		Msg("merged peer archive")

	return nil
}

// quarantine renames a corrupt archive out of the scan pattern.
func (s *syncService) quarantine(path string, cause error) {
	quarantined := path + quarantineSuffix
	if err := os.Rename(path, quarantined); err != nil {
		s.logger.Warn().Err(err).
			Str("func", "syncService.quarantine").
			Str("path", path).
			Msg("failed to quarantine corrupt archive")
		return
	}

	s.logger.Warn().Err(cause).
		Str("func", "syncService.quarantine").
		Str("path", quarantined).
		Msg("corrupt archive quarantined")
}

// applyRetention prunes the shared folder: per device only the newest
// RetentionCount archives survive, and devices silent for longer than the
// staleness window lose all their archives.
func (s *syncService) applyRetention(groups map[string][]archiveFile) {
	selfID := s.state.DeviceID()
	staleBefore := s.now().Add(-s.cfg.StalenessWindow)

	for deviceID, archives := range groups {
		if deviceID != selfID && s.cfg.StalenessWindow > 0 && len(archives) > 0 {
			newest := archives[len(archives)-1]
			if newest.modTime.Before(staleBefore) {
				s.removeArchives(archives)
				s.logger.Info().
					Str("func", "syncService.applyRetention").
					Str("device", deviceID).
					Msg("removed archives of stale device")
				continue
			}
		}

		if s.cfg.RetentionCount > 0 && len(archives) > s.cfg.RetentionCount {
			s.removeArchives(archives[:len(archives)-s.cfg.RetentionCount])
		}
	}
}

func (s *syncService) removeArchives(archives []archiveFile) {
	for _, archive := range archives {
		if err := os.Remove(archive.path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).
				Str("func", "syncService.removeArchives").
				Str("path", archive.path).
				Msg("failed to remove archive")
		}
	}
}
