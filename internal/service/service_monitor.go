package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"
	"time"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/unxlabs/unx-clipboard/internal/adapter"
	"github.com/unxlabs/unx-clipboard/internal/config"
	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/utils"
	"github.com/unxlabs/unx-clipboard/models"
)

// retentionSweepInterval is how often the running monitor re-applies the
// age-based retention policy. Retention also runs once at startup.
const retentionSweepInterval = time.Hour

type monitorService struct {
	clipboard adapter.Clipboard
	history   History
	cfg       config.Monitor
	logger    *logger.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	paused   bool
	ignore   int
	lastHash string

	wg sync.WaitGroup
}

// NewMonitorService constructs the clipboard [Monitor] poll loop.
func NewMonitorService(clip adapter.Clipboard, history History, cfg config.Monitor, log *logger.Logger) Monitor {
	return &monitorService{
		clipboard: clip,
		history:   history,
		cfg:       cfg,
		logger:    log,
	}
}

// Run starts the poll loop in a background goroutine. Calling Run on an
// already running monitor is a no-op.
func (m *monitorService) Run() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.logger.Warn().
			Str("func", "monitorService.Run").
			Msg("monitor already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	// a pre-existing clipboard value at startup is not a new copy
	m.lastHash = ""

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Info().
		Str("func", "monitorService.Run").
		Dur("poll_interval", m.cfg.PollInterval).
		Msg("clipboard monitor started")
}

// Stop cancels the poll loop and waits for it to finish.
func (m *monitorService) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()

	m.logger.Info().
		Str("func", "monitorService.Stop").
		Msg("clipboard monitor stopped")
}

func (m *monitorService) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.sweepRetention(ctx)
	nextSweep := time.Now().Add(retentionSweepInterval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
			if time.Now().After(nextSweep) {
				m.sweepRetention(ctx)
				nextSweep = time.Now().Add(retentionSweepInterval)
			}
		}
	}
}

func (m *monitorService) sweepRetention(ctx context.Context) {
	if _, err := m.history.ApplyRetention(ctx); err != nil {
		m.logger.Warn().Err(err).
			Str("func", "monitorService.sweepRetention").
			Msg("retention sweep failed")
	}
}

// sample takes one clipboard observation and records it when it differs
// from the previous one.
func (m *monitorService) sample(ctx context.Context) {
	m.mu.Lock()
	if m.paused {
		m.mu.Unlock()
		return
	}
	if m.ignore > 0 {
		m.ignore--
		m.mu.Unlock()
		return
	}
	last := m.lastHash
	m.mu.Unlock()

	snapshot, err := m.clipboard.Snapshot()
	if err != nil {
		// clipboard reads fail transiently while another app holds it;
		// the next tick retries
		m.logger.Debug().Err(err).
			Str("func", "monitorService.sample").
			Msg("clipboard read failed")
		return
	}

	kind, payload := classifySnapshot(snapshot, m.cfg.LogImages)
	if len(payload) == 0 {
		return
	}

	hash := utils.HashBytes(payload)
	if hash == last {
		return
	}

	if _, _, err = m.history.Record(ctx, kind, payload); err != nil {
		// last-seen stays untouched so the next tick retries this capture
		m.logger.Warn().Err(err).
			Str("func", "monitorService.sample").
			Str("kind", kind).
			Msg("failed to record clipboard entry, retrying next tick")
		return
	}

	m.mu.Lock()
	m.lastHash = hash
	m.mu.Unlock()
}

func (m *monitorService) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

func (m *monitorService) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *monitorService) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// CopyEntry writes a stored text entry back to the OS clipboard. The
// monitor suppresses its own write twice over: the next IgnoreSamples polls
// are skipped, and the written content's hash is primed as last-seen.
func (m *monitorService) CopyEntry(ctx context.Context, id int64) error {
	entry, err := m.history.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Kind != models.KindText {
		return fmt.Errorf("%w: cannot copy %q entries to the clipboard", ErrUnsupportedKind, entry.Kind)
	}

	m.mu.Lock()
	m.ignore = m.cfg.IgnoreSamples
	m.lastHash = utils.HashBytes([]byte(entry.Content))
	m.mu.Unlock()

	if err = m.clipboard.WriteText(entry.Content); err != nil {
		m.mu.Lock()
		m.ignore = 0
		m.mu.Unlock()
		return err
	}

	m.logger.Debug().
		Str("func", "monitorService.CopyEntry").
		Int64("id", id).
		Msg("entry copied to clipboard")

	return nil
}

// classifySnapshot decides what one clipboard observation is worth storing
// as. Raster content wins over text; text that is empty or whitespace-only
// is not content. For images the payload is the PNG re-encoding of the
// decoded pixels, so the same picture hashes identically regardless of the
// source encoder.
func classifySnapshot(snapshot adapter.Snapshot, logImages bool) (kind string, payload []byte) {
	if logImages && len(snapshot.Image) > 0 {
		if normalized, err := normalizePNG(snapshot.Image); err == nil {
			return models.KindImage, normalized
		}
		// undecodable raster data falls through to the text representation
	}

	if strings.TrimSpace(snapshot.Text) == "" {
		return "", nil
	}
	return models.KindText, []byte(snapshot.Text)
}

// normalizePNG decodes any supported raster format and re-encodes it as PNG.
func normalizePNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err = encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	return buf.Bytes(), nil
}
