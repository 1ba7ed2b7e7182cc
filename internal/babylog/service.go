package babylog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"babylog/internal/model"
)

// Service is the orchestration layer that coordinates the timer, the vitamin
// toggles and the sync engine on top of a RecordStore.
type Service struct {
	store    RecordStore
	notifier Notifier
	logger   Logger
	clock    Clock

	timer    *Timer
	syncer   *Syncer
	vitamins *VitaminCoordinator

	mu      sync.Mutex
	summary *model.DailySummary
}

// NewService creates a Service with the provided dependencies.
// Day boundaries and history grouping use loc.
func NewService(store RecordStore, sessions SessionStore, notifier Notifier, logger Logger, clock Clock, scheduler Scheduler, loc *time.Location) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		clock:    clock,
		timer:    NewTimer(sessions, clock, scheduler, notifier, logger),
		syncer:   NewSyncer(store, clock, loc, logger),
		vitamins: NewVitaminCoordinator(store, clock, logger),
		summary:  &model.DailySummary{},
	}
	s.vitamins.OnChange(func(ctx context.Context) error {
		_, err := s.Refresh(ctx)
		return err
	})
	return s
}

// Start restores any feeding session left by a previous run.
func (s *Service) Start() error {
	return s.timer.Restore()
}

// Timer returns the feeding timer.
func (s *Service) Timer() *Timer {
	return s.timer
}

// Vitamins returns the vitamin toggles.
func (s *Service) Vitamins() *VitaminCoordinator {
	return s.vitamins
}

// Refresh recomputes today's summary and reloads the first history page.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.syncer.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing: %w", err)
	}

	s.mu.Lock()
	s.summary = snap.Summary
	s.mu.Unlock()

	s.vitamins.Sync(snap.Summary)
	return snap, nil
}

// Summary returns the summary computed by the last Refresh.
func (s *Service) Summary() *model.DailySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// LoadMoreHistory appends the next history page.
func (s *Service) LoadMoreHistory(ctx context.Context) ([]*model.Record, error) {
	return s.syncer.History().LoadMore(ctx)
}

// LoadAllHistory keeps loading pages until the history is complete.
func (s *Service) LoadAllHistory(ctx context.Context) ([]*model.Record, error) {
	history := s.syncer.History()
	for !history.Done() {
		if _, err := history.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	return history.Records(), nil
}

// History returns the loaded history records, newest first, and whether more pages exist.
func (s *Service) History() ([]*model.Record, bool) {
	history := s.syncer.History()
	return history.Records(), !history.Done()
}

// GroupedHistory returns the loaded history grouped by local day.
func (s *Service) GroupedHistory(layout string) []model.DayGroup {
	return GroupByDay(s.syncer.History().Records(), s.syncer.Location(), layout)
}

// LogEvent records a pee or poop event now.
func (s *Service) LogEvent(ctx context.Context, eventType model.EventType) (*model.Record, error) {
	if eventType != model.EventPee && eventType != model.EventPoop {
		return nil, fmt.Errorf("logging %q: %w", eventType, ErrInvalidEventType)
	}
	return s.create(ctx, &model.Record{Type: eventType, Timestamp: s.clock.Now()})
}

// LogTemperature records a temperature reading now after validating its range.
func (s *Service) LogTemperature(ctx context.Context, celsius float64) (*model.Record, error) {
	if err := ValidateTemperature(celsius); err != nil {
		return nil, err
	}
	return s.create(ctx, &model.Record{
		Type:        model.EventTemperature,
		Timestamp:   s.clock.Now(),
		Temperature: celsius,
	})
}

// StartFeeding selects a side and starts the timer.
func (s *Service) StartFeeding(side model.Side) error {
	return s.timer.SelectSide(side)
}

// StopFeeding stops the timer, logs the feeding and returns the rest countdown.
// The countdown runs even if logging fails; writes are not queued for retry.
func (s *Service) StopFeeding(ctx context.Context) (*model.Record, *RestCountdown, error) {
	feeding, rest, err := s.timer.Stop()
	if feeding == nil {
		return nil, nil, err
	}
	if err != nil {
		s.logger.Warn("timer stop", "error", err)
	}

	record, err := s.create(ctx, feeding.Record())
	if err != nil {
		return nil, rest, err
	}
	return record, rest, nil
}

// SetVitamin marks a vitamin as given or not given today.
func (s *Service) SetVitamin(ctx context.Context, vitamin model.EventType, given bool) (bool, error) {
	return s.vitamins.Set(ctx, vitamin, given)
}

// DeleteRecord deletes a record. The user must have confirmed the deletion.
func (s *Service) DeleteRecord(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	s.logger.Info("record deleted", "id", id)
	s.afterMutation(ctx)
	return nil
}

func (s *Service) create(ctx context.Context, record *model.Record) (*model.Record, error) {
	created, err := s.store.Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("logging %s: %w", record.Type, err)
	}
	s.logger.Info("record created", "id", created.ID, "type", string(created.Type))
	s.afterMutation(ctx)
	return created, nil
}

// afterMutation resyncs so derived counts reflect the change. A failed
// refresh has already been reported to the user by the store.
func (s *Service) afterMutation(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("refresh after change failed", "error", err)
	}
}
