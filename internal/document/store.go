package document

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillbin/quillbin/internal/kv"
)

// List limits, applied to every index listing.
const (
	minListLimit = 1
	maxListLimit = 50
)

// Store owns document records, version content and the discovery indexes on
// top of a plain key-value backend. It holds no state besides the backend
// handle and the size limit, so a single instance is safe for concurrent
// use by many request handlers.
//
// The backend offers no multi-key transactions, so every multi-step write
// (record + content blob + index) is issued as a concurrent best-effort
// fan-out. Read paths tolerate the resulting windows: a dangling index
// entry is skipped, a record without an index entry is simply not listed
// until the next touch. Concurrent updates to one document are not mutually
// exclusive either; both versions survive, and updatedAt/size reflect
// whichever write lands last.
type Store struct {
	kv      kv.Store
	maxSize int
}

// New returns a Store enforcing maxContentBytes per version.
func New(backing kv.Store, maxContentBytes int) *Store {
	return &Store{kv: backing, maxSize: maxContentBytes}
}

// normalizeToken treats empty and whitespace-only tokens as absent.
func normalizeToken(t string) string {
	return strings.TrimSpace(t)
}

func (s *Store) getRecord(ctx context.Context, id string) (*Record, bool, error) {
	raw, ok, err := s.kv.Get(ctx, docKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("get document %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec Record
	// Malformed or unknown-schema records are treated as missing rather
	// than surfaced as errors; the index entry pointing here is stale.
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, nil
	}
	if rec.Schema != recordSchemaVersion || rec.ID == "" {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *Store) putRecord(ctx context.Context, rec *Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, docKey(rec.ID), string(raw)); err != nil {
		return fmt.Errorf("put document %s: %w", rec.ID, err)
	}
	return nil
}

// Create stores a new document with its first version and indexes it.
// An empty or whitespace-only ownerToken makes the document public.
func (s *Store) Create(ctx context.Context, title, content, ownerToken string) (View, Version, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return View{}, Version{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(content) > s.maxSize {
		return View{}, Version{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(content), s.maxSize)
	}
	owner := normalizeToken(ownerToken)

	id, err := newDocumentID()
	if err != nil {
		return View{}, Version{}, err
	}
	versionID, err := newVersionID()
	if err != nil {
		return View{}, Version{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ver := Version{
		ID:        versionID,
		CreatedAt: now,
		Size:      len(content),
		Hash:      contentHash(content),
	}
	rec := &Record{
		Schema:    recordSchemaVersion,
		ID:        id,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Size:      len(content),
		Versions:  []Version{ver},
	}
	if owner != "" {
		rec.OwnerToken = owner
		if rec.RawKey, err = newRawKey(); err != nil {
			return View{}, Version{}, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.putRecord(gctx, rec) })
	g.Go(func() error {
		if err := s.kv.Put(gctx, versionKey(id, versionID), content); err != nil {
			return fmt.Errorf("put version content: %w", err)
		}
		return nil
	})
	g.Go(func() error { return s.touchIndex(gctx, indexKeyFor(rec), id) })
	if err := g.Wait(); err != nil {
		return View{}, Version{}, err
	}

	ver.Content = content
	return rec.view(owner), ver, nil
}

// checkOwnership enforces the write-access rule: an owned document requires
// the exact stored token; an unowned document rejects any token (ownership
// cannot be claimed after creation).
func checkOwnership(rec *Record, callerToken string) error {
	if rec.OwnerToken != "" {
		if callerToken != rec.OwnerToken {
			return ErrForbidden
		}
		return nil
	}
	if callerToken != "" {
		return ErrForbidden
	}
	return nil
}

// Update prepends a new immutable version. For owned documents the
// raw-access key is rotated, invalidating previously issued raw links.
func (s *Store) Update(ctx context.Context, id, content, ownerToken string) (View, Version, error) {
	rec, ok, err := s.getRecord(ctx, id)
	if err != nil {
		return View{}, Version{}, err
	}
	if !ok {
		return View{}, Version{}, ErrNotFound
	}
	caller := normalizeToken(ownerToken)
	if err := checkOwnership(rec, caller); err != nil {
		return View{}, Version{}, err
	}
	if len(content) > s.maxSize {
		return View{}, Version{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(content), s.maxSize)
	}

	versionID, err := newVersionID()
	if err != nil {
		return View{}, Version{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	ver := Version{
		ID:        versionID,
		CreatedAt: now,
		Size:      len(content),
		Hash:      contentHash(content),
	}
	rec.Versions = append([]Version{ver}, rec.Versions...)
	rec.UpdatedAt = now
	rec.Size = len(content)
	if rec.OwnerToken != "" {
		if rec.RawKey, err = newRawKey(); err != nil {
			return View{}, Version{}, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.putRecord(gctx, rec) })
	g.Go(func() error {
		if err := s.kv.Put(gctx, versionKey(id, versionID), content); err != nil {
			return fmt.Errorf("put version content: %w", err)
		}
		return nil
	})
	g.Go(func() error { return s.touchIndex(gctx, indexKeyFor(rec), id) })
	if err := g.Wait(); err != nil {
		return View{}, Version{}, err
	}

	ver.Content = content
	return rec.view(caller), ver, nil
}

// Delete removes the record, its index entry and every version blob. There
// is no soft delete.
func (s *Store) Delete(ctx context.Context, id, ownerToken string) error {
	rec, ok, err := s.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := checkOwnership(rec, normalizeToken(ownerToken)); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.kv.Delete(gctx, docKey(id)); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error { return s.dropFromIndex(gctx, indexKeyFor(rec), id) })
	for _, ver := range rec.Versions {
		key := versionKey(id, ver.ID)
		g.Go(func() error {
			if err := s.kv.Delete(gctx, key); err != nil {
				return fmt.Errorf("delete version content: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Get is a pure read: it computes isOwner/isPrivate relative to viewerToken
// and enforces nothing. Access decisions based on the returned flags belong
// to the caller.
func (s *Store) Get(ctx context.Context, id, viewerToken string) (View, bool, error) {
	rec, ok, err := s.getRecord(ctx, id)
	if err != nil || !ok {
		return View{}, false, err
	}
	return rec.view(normalizeToken(viewerToken)), true, nil
}

// GetVersion returns one version with its content. The version must be
// listed in the document's metadata; orphaned blobs are not served.
func (s *Store) GetVersion(ctx context.Context, docID, versionID string) (Version, bool, error) {
	rec, ok, err := s.getRecord(ctx, docID)
	if err != nil || !ok {
		return Version{}, false, err
	}
	var ver *Version
	for i := range rec.Versions {
		if rec.Versions[i].ID == versionID {
			ver = &rec.Versions[i]
			break
		}
	}
	if ver == nil {
		return Version{}, false, nil
	}
	content, ok, err := s.kv.Get(ctx, versionKey(docID, versionID))
	if err != nil {
		return Version{}, false, fmt.Errorf("get version content: %w", err)
	}
	if !ok {
		return Version{}, false, nil
	}
	out := *ver
	out.Content = content
	return out, true, nil
}

// RawContent returns the plain content of one version (latest when
// versionID is empty). Private documents require the owner token or the
// current raw-access key.
func (s *Store) RawContent(ctx context.Context, id, versionID, viewerToken, rawKey string) (string, error) {
	rec, ok, err := s.getRecord(ctx, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	if rec.OwnerToken != "" {
		viewer := normalizeToken(viewerToken)
		if viewer != rec.OwnerToken && (rawKey == "" || rawKey != rec.RawKey) {
			return "", ErrForbidden
		}
	}
	if versionID == "" {
		if len(rec.Versions) == 0 {
			return "", ErrNotFound
		}
		versionID = rec.Versions[0].ID
	}
	ver, ok, err := s.GetVersion(ctx, id, versionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotFound
	}
	return ver.Content, nil
}

// ListPublic pages through the public index. Stale entries (missing record,
// or a record that has since gained an owner) are skipped, not errors.
func (s *Store) ListPublic(ctx context.Context, viewerToken string, limit int, cursor string) (Page, error) {
	return s.listIndex(ctx, publicIndexKey, normalizeToken(viewerToken), limit, cursor, func(r *Record) bool {
		return r.OwnerToken == ""
	})
}

// ListOwner pages through one owner's index. Without a token the result is
// empty rather than an error.
func (s *Store) ListOwner(ctx context.Context, ownerToken string, limit int, cursor string) (Page, error) {
	owner := normalizeToken(ownerToken)
	if owner == "" {
		return Page{Documents: []View{}}, nil
	}
	return s.listIndex(ctx, ownerIndexKey(owner), owner, limit, cursor, func(r *Record) bool {
		return r.OwnerToken == owner
	})
}

// listIndex slices an index starting after the cursor (or from the front
// when the cursor is absent or no longer in the index) and resolves each
// entry to a view. NextCursor is the last returned ID when further index
// entries remain.
func (s *Store) listIndex(ctx context.Context, indexKey, viewerToken string, limit int, cursor string, visible func(*Record) bool) (Page, error) {
	if limit < minListLimit {
		limit = minListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ids, err := s.loadIndex(ctx, indexKey)
	if err != nil {
		return Page{}, err
	}

	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}

	page := Page{Documents: []View{}}
	lastPos := -1
	for i := start; i < len(ids) && len(page.Documents) < limit; i++ {
		rec, ok, err := s.getRecord(ctx, ids[i])
		if err != nil {
			return Page{}, err
		}
		if !ok || !visible(rec) {
			continue
		}
		page.Documents = append(page.Documents, rec.view(viewerToken))
		lastPos = i
	}
	if lastPos >= 0 && lastPos+1 < len(ids) {
		page.NextCursor = page.Documents[len(page.Documents)-1].ID
	}
	return page, nil
}
