package babylog

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"babylog/internal/model"
)

// RefreshInterval is how often a running timer redraws its display.
const RefreshInterval = time.Second

// TimerState is the run state of a feeding timer.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
)

// TimerSession is a snapshot of the feeding timer.
type TimerSession struct {
	Side        model.Side
	State       TimerState
	Accumulated time.Duration // banked across previous running segments

	// SegmentStart is when the current running segment began. Nil unless Running.
	SegmentStart *time.Time
}

// FeedingLog is what a stopped timer produces for the record store.
type FeedingLog struct {
	Side            model.Side
	StartTime       time.Time
	DurationSeconds int64
	Timestamp       time.Time
}

// Record converts the log into a feeding record ready to be created.
func (f *FeedingLog) Record() *model.Record {
	return &model.Record{
		Type:            model.EventFeeding,
		Timestamp:       f.Timestamp,
		Side:            f.Side,
		StartTime:       f.StartTime,
		DurationSeconds: f.DurationSeconds,
	}
}

// persistedSession is the JSON form of a TimerSession in the SessionStore.
type persistedSession struct {
	SelectedSide       string     `json:"selectedSide"`
	RunState           string     `json:"runState"`
	AccumulatedSeconds float64    `json:"accumulatedSeconds"`
	SegmentStart       *time.Time `json:"segmentStart"`
}

// Timer is the feeding stopwatch. Elapsed time is always derived from the
// clock, never from counting refresh ticks, so suspension or a restart of the
// process loses nothing. Every transition is written to the SessionStore.
type Timer struct {
	mu        sync.Mutex
	store     SessionStore
	clock     Clock
	scheduler Scheduler
	notifier  Notifier
	logger    Logger

	session     TimerSession
	stopRefresh func()
	onRefresh   func(elapsed time.Duration)

	restDuration time.Duration
	rest         *RestCountdown
}

// NewTimer creates an idle timer. Call Restore to pick up a persisted session.
func NewTimer(store SessionStore, clock Clock, scheduler Scheduler, notifier Notifier, logger Logger) *Timer {
	return &Timer{
		store:        store,
		clock:        clock,
		scheduler:    scheduler,
		notifier:     notifier,
		logger:       logger,
		session:      TimerSession{State: TimerIdle},
		restDuration: RestDuration,
	}
}

// OnRefresh registers the display callback invoked once per RefreshInterval while running.
func (t *Timer) OnRefresh(fn func(elapsed time.Duration)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRefresh = fn
}

// Session returns a copy of the current session.
func (t *Timer) Session() TimerSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.session
	if s.SegmentStart != nil {
		start := *s.SegmentStart
		s.SegmentStart = &start
	}
	return s
}

// Elapsed returns the total running time of the session.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked(t.clock.Now())
}

// Display returns the elapsed time formatted for the timer panel.
func (t *Timer) Display() string {
	return FormatElapsed(t.Elapsed())
}

// Rest returns the countdown started by the last Stop, or nil.
func (t *Timer) Rest() *RestCountdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rest
}

// SelectSide starts a new session on the given side.
// A failed session write leaves the timer unchanged.
func (t *Timer) SelectSide(side model.Side) error {
	if side != model.SideLeft && side != model.SideRight {
		return fmt.Errorf("selecting side %q: %w", side, ErrInvalidTransition)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != TimerIdle {
		return fmt.Errorf("selecting side while %s: %w", t.session.State, ErrInvalidTransition)
	}

	// A new feeding closes any rest panel still open from the previous one.
	if t.rest != nil {
		t.rest.Skip()
		t.rest = nil
	}

	now := t.clock.Now()
	next := TimerSession{
		Side:         side,
		State:        TimerRunning,
		SegmentStart: &now,
	}
	if err := t.persist(next); err != nil {
		return err
	}
	t.session = next
	t.startRefreshLocked()
	t.logger.Info("feeding started", "side", string(side))
	return nil
}

// Pause banks the current running segment.
// A failed session write leaves the timer running.
func (t *Timer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != TimerRunning {
		return fmt.Errorf("pausing while %s: %w", t.session.State, ErrInvalidTransition)
	}

	next := TimerSession{
		Side:        t.session.Side,
		State:       TimerPaused,
		Accumulated: t.elapsedLocked(t.clock.Now()),
	}
	if err := t.persist(next); err != nil {
		return err
	}
	t.session = next
	t.stopRefreshLocked()
	t.logger.Debug("feeding paused", "accumulated", next.Accumulated.String())
	return nil
}

// Resume starts a new running segment. The banked time is unchanged.
// A failed session write leaves the timer paused.
func (t *Timer) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State != TimerPaused {
		return fmt.Errorf("resuming while %s: %w", t.session.State, ErrInvalidTransition)
	}

	now := t.clock.Now()
	next := t.session
	next.SegmentStart = &now
	next.State = TimerRunning
	if err := t.persist(next); err != nil {
		return err
	}
	t.session = next
	t.startRefreshLocked()
	t.logger.Debug("feeding resumed")
	return nil
}

// Stop ends the session, returns the feeding to log and starts the rest countdown.
// The persisted session is cleared even if the caller later fails to store the feeding.
func (t *Timer) Stop() (*FeedingLog, *RestCountdown, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State == TimerIdle {
		return nil, nil, fmt.Errorf("stopping while idle: %w", ErrInvalidTransition)
	}

	now := t.clock.Now()
	seconds := int64(t.elapsedLocked(now) / time.Second)
	log := &FeedingLog{
		Side:            t.session.Side,
		StartTime:       now.Add(-time.Duration(seconds) * time.Second),
		DurationSeconds: seconds,
		Timestamp:       now,
	}

	t.resetLocked()
	clearErr := t.store.Clear()

	t.rest = NewRestCountdown(t.clock, t.scheduler, t.notifier, t.restDuration)
	t.rest.Start()

	t.logger.Info("feeding stopped", "side", string(log.Side), "duration", seconds)
	if clearErr != nil {
		return log, t.rest, fmt.Errorf("clearing timer session: %w", clearErr)
	}
	return log, t.rest, nil
}

// Close discards the session without logging anything.
func (t *Timer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session.State == TimerIdle {
		return fmt.Errorf("closing while idle: %w", ErrInvalidTransition)
	}

	t.resetLocked()
	t.logger.Info("feeding discarded")
	if err := t.store.Clear(); err != nil {
		return fmt.Errorf("clearing timer session: %w", err)
	}
	return nil
}

// Restore rehydrates a persisted session as if its events had just happened.
// Missing or malformed data leaves the timer idle and is not an error.
func (t *Timer) Restore() error {
	data, err := t.store.Read()
	if err != nil {
		return fmt.Errorf("reading timer session: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked()
	if data == nil {
		return nil
	}

	session, ok := decodeSession(data)
	if !ok {
		t.logger.Warn("discarding malformed timer session")
		if err := t.store.Clear(); err != nil {
			t.logger.Warn("clearing malformed timer session failed", "error", err)
		}
		return nil
	}

	t.session = session
	if session.State == TimerRunning {
		t.startRefreshLocked()
	}
	t.logger.Debug("timer session restored", "state", string(session.State), "side", string(session.Side))
	return nil
}

func (t *Timer) elapsedLocked(now time.Time) time.Duration {
	elapsed := t.session.Accumulated
	if t.session.State == TimerRunning && t.session.SegmentStart != nil {
		if d := now.Sub(*t.session.SegmentStart); d > 0 {
			elapsed += d
		}
	}
	return elapsed
}

func (t *Timer) resetLocked() {
	t.stopRefreshLocked()
	t.session = TimerSession{State: TimerIdle}
}

func (t *Timer) startRefreshLocked() {
	t.stopRefreshLocked()
	t.stopRefresh = t.scheduler.Every(RefreshInterval, t.refresh)
}

func (t *Timer) stopRefreshLocked() {
	if t.stopRefresh != nil {
		t.stopRefresh()
		t.stopRefresh = nil
	}
}

func (t *Timer) refresh() {
	t.mu.Lock()
	if t.session.State != TimerRunning || t.onRefresh == nil {
		t.mu.Unlock()
		return
	}
	fn := t.onRefresh
	elapsed := t.elapsedLocked(t.clock.Now())
	t.mu.Unlock()

	fn(elapsed)
}

// persist writes s to the session store. The caller holds t.mu.
func (t *Timer) persist(s TimerSession) error {
	p := persistedSession{
		SelectedSide:       string(s.Side),
		RunState:           string(s.State),
		AccumulatedSeconds: s.Accumulated.Seconds(),
	}
	if s.State == TimerRunning {
		p.SegmentStart = s.SegmentStart
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding timer session: %w", err)
	}
	if err := t.store.Write(data); err != nil {
		return fmt.Errorf("writing timer session: %w", err)
	}
	return nil
}

// decodeSession parses persisted bytes, rejecting anything that could not
// have been written by persist.
func decodeSession(data []byte) (TimerSession, bool) {
	var p persistedSession
	if err := json.Unmarshal(data, &p); err != nil {
		return TimerSession{}, false
	}

	side := model.Side(p.SelectedSide)
	if side != model.SideLeft && side != model.SideRight {
		return TimerSession{}, false
	}
	if math.IsNaN(p.AccumulatedSeconds) || math.IsInf(p.AccumulatedSeconds, 0) || p.AccumulatedSeconds < 0 {
		return TimerSession{}, false
	}

	session := TimerSession{
		Side:        side,
		Accumulated: time.Duration(p.AccumulatedSeconds * float64(time.Second)),
	}
	switch TimerState(p.RunState) {
	case TimerRunning:
		if p.SegmentStart == nil {
			return TimerSession{}, false
		}
		start := *p.SegmentStart
		session.State = TimerRunning
		session.SegmentStart = &start
	case TimerPaused:
		session.State = TimerPaused
	default:
		return TimerSession{}, false
	}
	return session, true
}
