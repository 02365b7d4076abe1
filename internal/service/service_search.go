package service

import (
	"context"
	"sync"

	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/internal/search"
	"github.com/unxlabs/unx-clipboard/internal/store"
	"github.com/unxlabs/unx-clipboard/models"
)

// defaultSearchLimit bounds a search when the caller passes no limit.
const defaultSearchLimit = 50

type searchService struct {
	entries store.EntryRepository
	index   *search.Index
	logger  *logger.Logger

	mu      sync.Mutex
	pending map[string]*searchToken
	wg      sync.WaitGroup
	closed  bool
}

// searchToken identifies one in-flight search registration. Pointer
// identity tells a finishing goroutine whether its slot was already taken
// over by a newer search.
type searchToken struct {
	cancel context.CancelFunc
}

// NewSearchService constructs the [Searcher] implementation. Substring
// matches come from the store, token matches from the full-text index; both
// are combined into one ranked result.
func NewSearchService(entries store.EntryRepository, index *search.Index, log *logger.Logger) Searcher {
	return &searchService{
		entries: entries,
		index:   index,
		logger:  log,
		pending: make(map[string]*searchToken),
	}
}

func (s *searchService) Submit(ctx context.Context, caller, query string, limit int) <-chan SearchResult {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results := make(chan SearchResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		results <- SearchResult{Query: query, Err: context.Canceled}
		close(results)
		return results
	}

	// at most one in-flight search per caller: a new query supersedes the
	// previous one instead of racing it
	if prev, ok := s.pending[caller]; ok {
		prev.cancel()
	}
	searchCtx, cancel := context.WithCancel(ctx)
	token := &searchToken{cancel: cancel}
	s.pending[caller] = token
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer close(results)
		defer func() {
			s.mu.Lock()
			// only clear the slot if it still belongs to this search
			if s.pending[caller] == token {
				delete(s.pending, caller)
			}
			s.mu.Unlock()
			cancel()
		}()

		entries, err := s.run(searchCtx, query, limit)
		results <- SearchResult{Query: query, Entries: entries, Err: err}
	}()

	return results
}

func (s *searchService) run(ctx context.Context, query string, limit int) ([]models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// substring matches first: they are exact and keep the list ordering
	entries, err := s.entries.Search(ctx, query, 1, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(entries))
	for _, entry := range entries {
		seen[entry.ID] = struct{}{}
	}

	if len(entries) >= limit {
		return entries[:limit], nil
	}

	// token matches fill the remainder, best score first
	ids, err := s.index.Search(query, limit)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("func", "searchService.run").
			Str("query", query).
			Msg("token search failed, returning substring matches only")
		return entries, nil
	}

	for _, id := range ids {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}

		entry, getErr := s.entries.GetByID(ctx, id)
		if getErr != nil {
			// the index may lag a delete; skip vanished rows
			continue
		}

		entries = append(entries, entry)
		seen[id] = struct{}{}
		if len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

func (s *searchService) Close() {
	s.mu.Lock()
	s.closed = true
	for caller, token := range s.pending {
		token.cancel()
		delete(s.pending, caller)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
