package babylog

import (
	"context"
	"fmt"
	"sync"

	"babylog/internal/model"
)

type vitaminState struct {
	given    bool
	recordID string
}

// VitaminCoordinator keeps the vitamin D and K toggles in step with the
// presence of today's vitamin records. At most one toggle runs at a time
// across both vitamins.
type VitaminCoordinator struct {
	store  RecordStore
	clock  Clock
	logger Logger

	mu     sync.Mutex
	busy   bool
	states map[model.EventType]*vitaminState

	onChange func(ctx context.Context) error
}

// NewVitaminCoordinator creates a coordinator with both toggles off.
func NewVitaminCoordinator(store RecordStore, clock Clock, logger Logger) *VitaminCoordinator {
	return &VitaminCoordinator{
		store:  store,
		clock:  clock,
		logger: logger,
		states: map[model.EventType]*vitaminState{
			model.EventVitaminD: {},
			model.EventVitaminK: {},
		},
	}
}

// OnChange registers the callback run after every successful toggle.
func (v *VitaminCoordinator) OnChange(fn func(ctx context.Context) error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

// State returns whether the vitamin is marked given and the id of its record.
func (v *VitaminCoordinator) State(vitamin model.EventType) (bool, string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.states[vitamin]
	if !ok {
		return false, ""
	}
	return st.given, st.recordID
}

// Sync loads both toggles from a freshly computed daily summary.
// It is skipped while a toggle is in flight.
func (v *VitaminCoordinator) Sync(summary *model.DailySummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.busy {
		return
	}
	for vitamin, st := range v.states {
		st.given, st.recordID = summary.Vitamin(vitamin)
	}
}

// Toggle flips the vitamin and returns its resulting state.
func (v *VitaminCoordinator) Toggle(ctx context.Context, vitamin model.EventType) (bool, error) {
	given, _ := v.State(vitamin)
	return v.Set(ctx, vitamin, !given)
}

// Set marks the vitamin given or not given and returns the resulting state.
// On failure the previous state is kept. Setting the current state again is a no-op.
func (v *VitaminCoordinator) Set(ctx context.Context, vitamin model.EventType, given bool) (bool, error) {
	if !vitamin.IsVitamin() {
		return false, fmt.Errorf("toggling %q: %w", vitamin, ErrInvalidEventType)
	}

	v.mu.Lock()
	st := v.states[vitamin]
	if v.busy {
		current := st.given
		v.mu.Unlock()
		return current, ErrBusy
	}
	if st.given == given {
		v.mu.Unlock()
		return given, nil
	}
	recordID := st.recordID
	v.busy = true
	v.mu.Unlock()

	var (
		created *model.Record
		err     error
	)
	if given {
		created, err = v.store.Create(ctx, &model.Record{Type: vitamin, Timestamp: v.clock.Now()})
	} else if recordID != "" {
		err = v.store.Delete(ctx, recordID)
	}

	v.mu.Lock()
	v.busy = false
	if err != nil {
		current := st.given
		v.mu.Unlock()
		v.logger.Warn("vitamin toggle failed", "vitamin", string(vitamin), "given", given, "error", err)
		return current, fmt.Errorf("updating %s: %w", vitamin, err)
	}
	st.given = given
	if given {
		st.recordID = created.ID
	} else {
		st.recordID = ""
	}
	onChange := v.onChange
	v.mu.Unlock()

	v.logger.Info("vitamin updated", "vitamin", string(vitamin), "given", given)

	if onChange != nil {
		if err := onChange(ctx); err != nil {
			v.logger.Warn("refresh after vitamin toggle failed", "error", err)
		}
	}
	return given, nil
}
