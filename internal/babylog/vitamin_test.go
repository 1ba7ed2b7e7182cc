package babylog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/model"
	"babylog/internal/testutil"
)

func newCoordinator(store babylog.RecordStore) *babylog.VitaminCoordinator {
	return babylog.NewVitaminCoordinator(store, testutil.FixedClock(), babylog.NewNopLogger())
}

func TestVitaminCoordinator_OnOff(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	v := newCoordinator(store)

	var changes int
	v.OnChange(func(context.Context) error {
		changes++
		return nil
	})

	given, err := v.Set(context.Background(), model.EventVitaminD, true)
	if err != nil {
		t.Fatalf("Set(on) error = %v", err)
	}
	if !given {
		t.Error("Set(on) = false, want true")
	}
	on, id := v.State(model.EventVitaminD)
	if !on || id == "" {
		t.Fatalf("State() = %v/%q, want on with a record id", on, id)
	}
	if store.Len() != 1 {
		t.Errorf("stored records = %d, want 1", store.Len())
	}

	given, err = v.Toggle(context.Background(), model.EventVitaminD)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if given {
		t.Error("Toggle() = true, want false")
	}
	if deletes := store.Deletes(); len(deletes) != 1 || deletes[0] != id {
		t.Errorf("Deletes() = %v, want [%s]", deletes, id)
	}
	if store.Len() != 0 {
		t.Errorf("stored records = %d, want 0", store.Len())
	}
	if changes != 2 {
		t.Errorf("change callbacks = %d, want 2", changes)
	}
}

func TestVitaminCoordinator_SameStateIsNoop(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	v := newCoordinator(store)

	given, err := v.Set(context.Background(), model.EventVitaminK, false)
	if err != nil || given {
		t.Errorf("Set(off) = %v, %v; want false, nil", given, err)
	}
	if store.Creates() != 0 || len(store.Deletes()) != 0 {
		t.Error("store was called for a no-op toggle")
	}
}

func TestVitaminCoordinator_FailedCreateStaysOff(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	store.FailCreate(errors.New("Error 500"))
	v := newCoordinator(store)

	var changes int
	v.OnChange(func(context.Context) error {
		changes++
		return nil
	})

	given, err := v.Set(context.Background(), model.EventVitaminD, true)
	if err == nil {
		t.Fatal("Set() expected error")
	}
	if given {
		t.Error("Set() = true, want false after failure")
	}
	if on, _ := v.State(model.EventVitaminD); on {
		t.Error("State() = on, want off after failed create")
	}
	if len(store.Deletes()) != 0 {
		t.Errorf("Deletes() = %v, want none", store.Deletes())
	}
	if changes != 0 {
		t.Errorf("change callbacks = %d, want 0", changes)
	}
}

func TestVitaminCoordinator_FailedDeleteStaysOn(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	v := newCoordinator(store)

	if _, err := v.Set(context.Background(), model.EventVitaminK, true); err != nil {
		t.Fatalf("Set(on) error = %v", err)
	}
	store.FailDelete(errors.New("offline"))

	given, err := v.Set(context.Background(), model.EventVitaminK, false)
	if err == nil {
		t.Fatal("Set(off) expected error")
	}
	if !given {
		t.Error("Set(off) = false, want true after failure")
	}
	if on, id := v.State(model.EventVitaminK); !on || id == "" {
		t.Errorf("State() = %v/%q, want on with its record id", on, id)
	}
}

func TestVitaminCoordinator_OffWithoutRecordID(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	v := newCoordinator(store)
	v.Sync(&model.DailySummary{VitaminDGiven: true})

	given, err := v.Set(context.Background(), model.EventVitaminD, false)
	if err != nil {
		t.Fatalf("Set(off) error = %v", err)
	}
	if given {
		t.Error("Set(off) = true, want false")
	}
	if len(store.Deletes()) != 0 {
		t.Errorf("Deletes() = %v, want no call without a record id", store.Deletes())
	}
}

func TestVitaminCoordinator_BusyGuard(t *testing.T) {
	store := testutil.NewFakeRecordStore()
	v := newCoordinator(store)

	entered := make(chan struct{})
	release := make(chan struct{})
	store.OnCreate(func(*model.Record) {
		close(entered)
		<-release
	})

	result := make(chan error, 1)
	go func() {
		_, err := v.Set(context.Background(), model.EventVitaminD, true)
		result <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first toggle never reached the store")
	}

	given, err := v.Set(context.Background(), model.EventVitaminK, true)
	if !errors.Is(err, babylog.ErrBusy) {
		t.Errorf("second Set() error = %v, want ErrBusy", err)
	}
	if given {
		t.Error("second Set() = true, want unchanged false")
	}

	// A resync while busy must not clobber the pending toggle.
	v.Sync(&model.DailySummary{VitaminKGiven: true, VitaminKRecordID: "stale"})

	store.OnCreate(nil)
	close(release)
	if err := <-result; err != nil {
		t.Fatalf("first Set() error = %v", err)
	}

	if on, _ := v.State(model.EventVitaminD); !on {
		t.Error("vitamin D off, want on")
	}
	if on, _ := v.State(model.EventVitaminK); on {
		t.Error("vitamin K on, want Sync ignored while busy")
	}
	if store.Creates() != 1 {
		t.Errorf("Creates() = %d, want 1", store.Creates())
	}
}

func TestVitaminCoordinator_RejectsOtherTypes(t *testing.T) {
	v := newCoordinator(testutil.NewFakeRecordStore())
	if _, err := v.Set(context.Background(), model.EventPee, true); !errors.Is(err, babylog.ErrInvalidEventType) {
		t.Errorf("Set(pee) error = %v, want ErrInvalidEventType", err)
	}
}

func TestVitaminCoordinator_Sync(t *testing.T) {
	v := newCoordinator(testutil.NewFakeRecordStore())
	v.Sync(&model.DailySummary{VitaminKGiven: true, VitaminKRecordID: "rec1"})

	if on, id := v.State(model.EventVitaminK); !on || id != "rec1" {
		t.Errorf("State(K) = %v/%q, want on/rec1", on, id)
	}
	if on, _ := v.State(model.EventVitaminD); on {
		t.Error("State(D) = on, want off")
	}
}
