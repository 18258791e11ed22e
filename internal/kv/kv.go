package kv

import "context"

// Store is the minimal key-value contract the document layer is written
// against. Values are opaque strings (JSON records or raw document content).
// Implementations provide no transactions, no compare-and-swap and no
// ordering guarantees across concurrent writers; callers are expected to
// tolerate the resulting inconsistency windows.
type Store interface {
	// Get returns the value for key. The second result is false when the
	// key does not exist (this is not an error).
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
