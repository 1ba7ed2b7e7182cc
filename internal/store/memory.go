package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"babylog/internal/babylog"
	"babylog/internal/model"
)

// MemoryStore is an in-memory RecordStore for tests and offline use.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	idgen   babylog.IDGenerator
	records []*model.Record // insertion order
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore. Nil idgen uses UUIDs.
func NewMemoryStore(idgen babylog.IDGenerator) *MemoryStore {
	if idgen == nil {
		idgen = babylog.UUIDGenerator{}
	}
	return &MemoryStore{idgen: idgen}
}

func (m *MemoryStore) Create(_ context.Context, record *model.Record) (*model.Record, error) {
	if !record.Type.Valid() {
		return nil, fmt.Errorf("creating record: %w", babylog.ErrInvalidEventType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	stored.ID = m.idgen.New()
	m.records = append(m.records, &stored)

	out := stored
	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.records, func(r *model.Record) bool { return r.ID == id })
	if i < 0 {
		return fmt.Errorf("record %s not found", id)
	}
	m.records = slices.Delete(m.records, i, i+1)
	return nil
}

func (m *MemoryStore) List(_ context.Context, query babylog.ListQuery) (*babylog.Page, error) {
	offset, err := parsePageToken(query.PageToken)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	var matched []*model.Record
	for _, r := range m.records {
		if !query.Since.IsZero() && r.Timestamp.Before(query.Since) {
			continue
		}
		if !query.Until.IsZero() && !r.Timestamp.Before(query.Until) {
			continue
		}
		out := *r
		matched = append(matched, &out)
	}
	m.mu.Unlock()

	slices.SortStableFunc(matched, func(a, b *model.Record) int {
		if query.Descending {
			return b.Timestamp.Compare(a.Timestamp)
		}
		return a.Timestamp.Compare(b.Timestamp)
	})

	if offset > len(matched) {
		offset = len(matched)
	}
	end := min(offset+pageSize(query), len(matched))

	return &babylog.Page{
		Records:       matched[offset:end],
		NextPageToken: nextPageToken(offset, end-offset, end < len(matched)),
	}, nil
}

// Len returns the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryStore) Close() error { return nil }
