package document

import (
	"context"
	"encoding/json"
	"fmt"
)

// Index keys. Each index is a JSON array of document IDs, most recently
// touched first. Indexes are discovery aids, not a source of truth: entries
// may point at deleted records and a record may briefly miss its entry.
const publicIndexKey = "documents:public:index"

func ownerIndexKey(ownerToken string) string {
	return "documents:owner:" + ownerToken
}

func docKey(id string) string {
	return "doc:" + id
}

func versionKey(docID, versionID string) string {
	return "version:" + docID + ":" + versionID
}

// indexKeyFor picks the index a record belongs to.
func indexKeyFor(r *Record) string {
	if r.OwnerToken != "" {
		return ownerIndexKey(r.OwnerToken)
	}
	return publicIndexKey
}

// loadIndex reads an index list. A missing key or malformed JSON is an
// empty index, not an error.
func (s *Store) loadIndex(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

func (s *Store) saveIndex(ctx context.Context, key string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("save index %s: %w", key, err)
	}
	return nil
}

// touchIndex moves id to the front of the index, deduplicating any earlier
// occurrences. The read-modify-write is not atomic; concurrent touches are
// last-writer-wins and self-heal on the next touch.
func (s *Store) touchIndex(ctx context.Context, key, id string) error {
	ids, err := s.loadIndex(ctx, key)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(ids)+1)
	next = append(next, id)
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	return s.saveIndex(ctx, key, next)
}

// dropFromIndex removes id from the index if present.
func (s *Store) dropFromIndex(ctx context.Context, key, id string) error {
	ids, err := s.loadIndex(ctx, key)
	if err != nil {
		return err
	}
	next := ids[:0]
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		return nil
	}
	return s.saveIndex(ctx, key, next)
}
