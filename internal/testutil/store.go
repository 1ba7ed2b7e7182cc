package testutil

import (
	"context"
	"sync"

	"babylog/internal/babylog"
	"babylog/internal/model"
	"babylog/internal/session"
	"babylog/internal/store"
)

// FakeRecordStore wraps an in-memory store with call counting and error
// injection. Safe for concurrent use.
type FakeRecordStore struct {
	*store.MemoryStore

	mu        sync.Mutex
	createErr error
	deleteErr error
	listErr   error
	creates   int
	deletes   []string
	lists     []babylog.ListQuery

	// Hooks run at the start of a call, outside the lock.
	createHook func(record *model.Record)
	listHook   func(query babylog.ListQuery)
}

var _ babylog.RecordStore = (*FakeRecordStore)(nil)

// NewFakeRecordStore creates an empty store with sequential IDs.
func NewFakeRecordStore() *FakeRecordStore {
	return &FakeRecordStore{MemoryStore: store.NewMemoryStore(NewStubIDGenerator())}
}

// Seed stores records directly, bypassing counters and injected errors.
func (f *FakeRecordStore) Seed(records ...*model.Record) []*model.Record {
	out := make([]*model.Record, 0, len(records))
	for _, r := range records {
		created, err := f.MemoryStore.Create(context.Background(), r)
		if err != nil {
			panic(err)
		}
		out = append(out, created)
	}
	return out
}

// FailCreate makes every Create return err. Nil clears the failure.
func (f *FakeRecordStore) FailCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailDelete makes every Delete return err. Nil clears the failure.
func (f *FakeRecordStore) FailDelete(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// FailList makes every List return err. Nil clears the failure.
func (f *FakeRecordStore) FailList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// OnCreate registers a hook run at the start of every Create call.
func (f *FakeRecordStore) OnCreate(hook func(record *model.Record)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createHook = hook
}

// OnList registers a hook run at the start of every List call.
func (f *FakeRecordStore) OnList(hook func(query babylog.ListQuery)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHook = hook
}

func (f *FakeRecordStore) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	f.mu.Lock()
	f.creates++
	err := f.createErr
	hook := f.createHook
	f.mu.Unlock()
	if hook != nil {
		hook(record)
	}
	if err != nil {
		return nil, err
	}
	return f.MemoryStore.Create(ctx, record)
}

func (f *FakeRecordStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.Delete(ctx, id)
}

func (f *FakeRecordStore) List(ctx context.Context, query babylog.ListQuery) (*babylog.Page, error) {
	f.mu.Lock()
	f.lists = append(f.lists, query)
	err := f.listErr
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook(query)
	}
	if err != nil {
		return nil, err
	}
	return f.MemoryStore.List(ctx, query)
}

// Creates returns the number of Create calls, including failed ones.
func (f *FakeRecordStore) Creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// Deletes returns the ids passed to Delete, including failed calls.
func (f *FakeRecordStore) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// Lists returns the queries passed to List.
func (f *FakeRecordStore) Lists() []babylog.ListQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]babylog.ListQuery(nil), f.lists...)
}

// NewTestSessionStore creates an in-memory session store.
func NewTestSessionStore() *session.MemoryStore {
	return session.NewMemoryStore()
}
