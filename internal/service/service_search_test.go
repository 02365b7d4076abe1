package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unxlabs/unx-clipboard/internal/logger"
	"github.com/unxlabs/unx-clipboard/models"
)

func newSearcher(t *testing.T, f *fixture) Searcher {
	t.Helper()
	s := NewSearchService(f.repo, f.index, logger.Nop())
	t.Cleanup(s.Close)
	return s
}

func awaitResult(t *testing.T, results <-chan SearchResult) SearchResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for search result")
		return SearchResult{}
	}
}

func TestSearcher_SubstringMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.history.Record(ctx, models.KindText, []byte("deploy checklist for staging"))
	require.NoError(t, err)
	_, _, err = f.history.Record(ctx, models.KindText, []byte("grocery list"))
	require.NoError(t, err)

	s := newSearcher(t, f)
	result := awaitResult(t, s.Submit(ctx, "ui", "staging", 10))

	require.NoError(t, result.Err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "deploy checklist for staging", result.Entries[0].Content)
}

func TestSearcher_TokenMatchesFillRemainder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// "deployment" does not contain the substring "deploy checklist" but
	// the token index still finds it for "deployment"
	_, _, err := f.history.Record(ctx, models.KindText, []byte("notes about the deployment pipeline"))
	require.NoError(t, err)

	s := newSearcher(t, f)
	result := awaitResult(t, s.Submit(ctx, "ui", "deployment pipeline", 10))

	require.NoError(t, result.Err)
	require.NotEmpty(t, result.Entries)
	assert.Equal(t, "notes about the deployment pipeline", result.Entries[0].Content)
}

func TestSearcher_NoDuplicateAcrossSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.history.Record(ctx, models.KindText, []byte("kubernetes upgrade plan"))
	require.NoError(t, err)

	s := newSearcher(t, f)
	result := awaitResult(t, s.Submit(ctx, "ui", "kubernetes", 10))

	require.NoError(t, result.Err)
	assert.Len(t, result.Entries, 1, "substring and token hits for the same row collapse")
}

func TestSearcher_NewQuerySupersedesPrevious(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.history.Record(ctx, models.KindText, []byte("alpha"))
	require.NoError(t, err)
	_, _, err = f.history.Record(ctx, models.KindText, []byte("beta"))
	require.NoError(t, err)

	s := newSearcher(t, f)
	first := s.Submit(ctx, "ui", "alpha", 10)
	second := s.Submit(ctx, "ui", "beta", 10)

	secondResult := awaitResult(t, second)
	require.NoError(t, secondResult.Err)
	require.Len(t, secondResult.Entries, 1)
	assert.Equal(t, "beta", secondResult.Entries[0].Content)

	// the superseded search either finished before the cancel landed or
	// reports cancellation; it never hangs
	firstResult := awaitResult(t, first)
	if firstResult.Err != nil {
		assert.ErrorIs(t, firstResult.Err, context.Canceled)
	}
}

func TestSearcher_IndependentCallers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.history.Record(ctx, models.KindText, []byte("alpha"))
	require.NoError(t, err)
	_, _, err = f.history.Record(ctx, models.KindText, []byte("beta"))
	require.NoError(t, err)

	s := newSearcher(t, f)
	tray := s.Submit(ctx, "tray", "alpha", 10)
	window := s.Submit(ctx, "window", "beta", 10)

	trayResult := awaitResult(t, tray)
	require.NoError(t, trayResult.Err, "another caller's search must not cancel this one")
	require.Len(t, trayResult.Entries, 1)
	assert.Equal(t, "alpha", trayResult.Entries[0].Content)

	windowResult := awaitResult(t, window)
	require.NoError(t, windowResult.Err)
	require.Len(t, windowResult.Entries, 1)
	assert.Equal(t, "beta", windowResult.Entries[0].Content)
}

func TestSearcher_SubmitAfterClose(t *testing.T) {
	f := newFixture(t)

	s := NewSearchService(f.repo, f.index, logger.Nop())
	s.Close()

	result := awaitResult(t, s.Submit(context.Background(), "ui", "anything", 10))
	assert.ErrorIs(t, result.Err, context.Canceled)
}
