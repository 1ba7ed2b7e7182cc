package babylog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"babylog/internal/model"
)

// Snapshot is the result of a full refresh.
type Snapshot struct {
	Today   []*model.Record
	Summary *model.DailySummary
	History []*model.Record
}

// Syncer pulls today's records and the paged history from the record store.
type Syncer struct {
	store   RecordStore
	clock   Clock
	loc     *time.Location
	logger  Logger
	history *HistoryPager
}

// NewSyncer creates a Syncer. Day boundaries are computed in loc.
func NewSyncer(store RecordStore, clock Clock, loc *time.Location, logger Logger) *Syncer {
	if loc == nil {
		loc = time.Local
	}
	return &Syncer{
		store:   store,
		clock:   clock,
		loc:     loc,
		logger:  logger,
		history: NewHistoryPager(store, logger),
	}
}

// History returns the history page set owned by this Syncer.
func (s *Syncer) History() *HistoryPager {
	return s.history
}

// Location returns the time zone used for day boundaries.
func (s *Syncer) Location() *time.Location {
	return s.loc
}

// FetchToday returns every record from local midnight to the next midnight,
// newest first, following continuation tokens until the last page.
func (s *Syncer) FetchToday(ctx context.Context) ([]*model.Record, error) {
	since, until := DayBounds(s.clock.Now(), s.loc)
	query := ListQuery{
		Since:      since,
		Until:      until,
		Descending: true,
		PageSize:   DefaultPageSize,
	}

	var all []*model.Record
	for pages := 0; ; pages++ {
		page, err := s.store.List(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("listing today's records: %w", err)
		}
		all = append(all, page.Records...)
		if page.NextPageToken == "" {
			s.logger.Debug("today fetched", "records", len(all), "pages", pages+1)
			return all, nil
		}
		query.PageToken = page.NextPageToken
	}
}

// Refresh drops the history page set, then fetches today's records and the
// first history page concurrently. Each fetch runs to completion on its own,
// so a failure in one does not cancel the other.
func (s *Syncer) Refresh(ctx context.Context) (*Snapshot, error) {
	s.history.Reset()

	var today []*model.Record
	var g errgroup.Group
	g.Go(func() error {
		records, err := s.FetchToday(ctx)
		if err != nil {
			return err
		}
		today = records
		return nil
	})
	g.Go(func() error {
		_, err := s.history.LoadMore(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{
		Today:   today,
		Summary: Aggregate(today),
		History: s.history.Records(),
	}, nil
}

// HistoryPager accumulates history pages, newest first, one page per LoadMore.
// Pages already held are never fetched again until Reset.
type HistoryPager struct {
	store  RecordStore
	logger Logger

	// loadMu serializes LoadMore so two loads never reuse the same token.
	loadMu sync.Mutex

	mu         sync.Mutex
	records    []*model.Record
	nextToken  string
	started    bool
	done       bool
	generation int
}

// NewHistoryPager creates an empty pager.
func NewHistoryPager(store RecordStore, logger Logger) *HistoryPager {
	return &HistoryPager{store: store, logger: logger}
}

// LoadMore fetches the next page and appends it. It returns the new records,
// or nil when every page is already loaded.
func (p *HistoryPager) LoadMore(ctx context.Context) ([]*model.Record, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return nil, nil
	}
	query := ListQuery{
		Descending: true,
		PageSize:   DefaultPageSize,
		PageToken:  p.nextToken,
	}
	generation := p.generation
	p.mu.Unlock()

	page, err := p.store.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A Reset while the call was in flight makes this page stale.
	if generation != p.generation {
		p.logger.Debug("discarding stale history page")
		return nil, nil
	}

	p.records = append(p.records, page.Records...)
	p.nextToken = page.NextPageToken
	p.started = true
	p.done = page.NextPageToken == ""
	return page.Records, nil
}

// Reset drops every loaded page. The next LoadMore starts from the newest record.
func (p *HistoryPager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
	p.nextToken = ""
	p.started = false
	p.done = false
	p.generation++
}

// Records returns a copy of the loaded records in order.
func (p *HistoryPager) Records() []*model.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Len returns the number of loaded records.
func (p *HistoryPager) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// Started reports whether at least one page has been loaded since the last Reset.
func (p *HistoryPager) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

// Done reports whether the last page has been loaded.
func (p *HistoryPager) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
