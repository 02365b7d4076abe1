// Package search maintains the full-text index over text entries. The index
// is derivative state: the SQLite store stays the source of truth, and the
// index can always be rebuilt from it.
package search

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/unxlabs/unx-clipboard/models"
)

// Index wraps a Bleve search index over text entry payloads.
type Index struct {
	index bleve.Index
}

// IndexedEntry is the document shape stored in the index. Only what token
// queries need: the payload and recency for ranking.
type IndexedEntry struct {
	ID        string
	Content   string
	UpdatedAt string
}

// Open opens or creates a Bleve index at path.
func Open(path string) (*Index, error) {
	var idx bleve.Index
	var err error

	idx, err = bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// OpenMemory creates an in-memory index, used in tests.
func OpenMemory() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	contentFieldMapping := bleve.NewTextFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("ID", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Content", contentFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index.
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexEntry adds or updates one entry in the index. Non-text entries are
// ignored; callers do not need to filter.
func (i *Index) IndexEntry(entry models.Entry) error {
	if entry.Kind != models.KindText {
		return nil
	}

	doc := &IndexedEntry{
		ID:        strconv.FormatInt(entry.ID, 10),
		Content:   entry.Content,
		UpdatedAt: entry.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
	return i.index.Index(doc.ID, doc)
}

// Delete removes an entry from the index. Deleting an id that was never
// indexed (e.g. an image entry) is a no-op.
func (i *Index) Delete(id int64) error {
	return i.index.Delete(strconv.FormatInt(id, 10))
}

// Search runs a token query and returns matching entry ids, best score
// first.
func (i *Index) Search(queryStr string, limit int) ([]int64, error) {
	// Query string syntax supports quotes, boolean operators and fuzzy ~.
	query := bleve.NewQueryStringQuery(queryStr)
	request := bleve.NewSearchRequestOptions(query, limit, 0, false)

	results, err := i.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]int64, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, parseErr := strconv.ParseInt(hit.ID, 10, 64)
		if parseErr != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Rebuild makes the index reflect exactly the given entries, in one batch.
// Used after restore and merge where many rows changed at once; documents
// for rows absent from the new set are dropped, so a shrinking restore
// leaves no ghost hits behind.
func (i *Index) Rebuild(entries []models.Entry) error {
	batch := i.index.NewBatch()

	keep := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.Kind != models.KindText {
			continue
		}
		doc := &IndexedEntry{
			ID:        strconv.FormatInt(entry.ID, 10),
			Content:   entry.Content,
			UpdatedAt: entry.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		}
		keep[doc.ID] = struct{}{}
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}

	existing, err := i.allDocIDs()
	if err != nil {
		return err
	}
	for _, id := range existing {
		if _, ok := keep[id]; !ok {
			batch.Delete(id)
		}
	}

	if err = i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return nil
}

// allDocIDs lists every document id currently in the index.
func (i *Index) allDocIDs() ([]string, error) {
	count, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	request := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	results, err := i.index.Search(request)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	ids := make([]string, 0, len(results.Hits))
	for _, hit := range results.Hits {
		ids = append(ids, hit.ID)
	}

	return ids, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
