package babylog

import (
	"context"
	"time"

	"babylog/internal/model"
)

// DefaultPageSize is the number of records requested per list call.
const DefaultPageSize = 100

// RecordStore is the persistent home of event records.
// Records are created and deleted, never updated.
type RecordStore interface {
	// Create stores a new record and returns it with its assigned ID.
	Create(ctx context.Context, record *model.Record) (*model.Record, error)

	// Delete removes the record with the given ID.
	Delete(ctx context.Context, id string) error

	// List returns one page of records matching the query.
	List(ctx context.Context, query ListQuery) (*Page, error)
}

// ListQuery filters and orders a List call.
type ListQuery struct {
	// Since and Until bound Timestamp to [Since, Until). Zero values leave that side open.
	Since time.Time
	Until time.Time

	// Descending sorts by Timestamp newest first; otherwise oldest first.
	Descending bool

	PageSize int

	// PageToken is the continuation token from a previous Page, empty for the first page.
	PageToken string
}

// Page is one page of List results.
type Page struct {
	Records []*model.Record

	// NextPageToken is empty when there are no further pages.
	NextPageToken string
}

// SessionStore is durable local storage for the single timer session key.
type SessionStore interface {
	// Read returns the stored bytes, or nil with no error if nothing is stored.
	Read() ([]byte, error)

	// Write replaces the stored bytes.
	Write(data []byte) error

	// Clear removes the stored bytes. Clearing an empty store is not an error.
	Clear() error
}
