package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/config"
	"babylog/internal/credential"
	"babylog/internal/export"
	"babylog/internal/model"
	"babylog/internal/remote"
	"babylog/internal/session"
	"babylog/internal/store"
)

// BabyLogApp is the application layer between the CLI and babylog.Service.
// It constructs all dependencies from config, exposes operations that accept
// raw CLI arguments, and releases the store and log file on Close.
type BabyLogApp struct {
	cfg      *config.Config
	store    store.Store
	service  *babylog.Service
	notifier babylog.Notifier
	logger   babylog.Logger
	clock    babylog.Clock
	op       *Operation
	logFile  *os.File
}

// Options overrides the runtime dependencies of a BabyLogApp.
// Zero values select the real implementations.
type Options struct {
	Stderr    io.Writer
	Verbose   bool
	Clock     babylog.Clock
	Scheduler babylog.Scheduler
	Notifier  babylog.Notifier
}

// NewBabyLogApp creates a fully wired BabyLogApp from the given config.
// operation identifies the CLI command being run (e.g. "log pee", "feed stop").
// The caller must call Close when done.
func NewBabyLogApp(cfg *config.Config, operation string, opts Options) (*BabyLogApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = babylog.RealClock{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = babylog.RealScheduler{}
	}
	if opts.Notifier == nil {
		opts.Notifier = newTerminalNotifier(opts.Stderr)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, opts.Clock.Now())
	l, logFile, err := newLogger(cfg.LogDir, op.ID, opts.Stderr, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l}

	remoteCfg, err := remoteConfig(cfg.Remote, opts.Notifier, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	st, err := store.NewStoreFromConfig(cfg.Store, remoteCfg)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	if db, ok := st.(*store.SQLiteStore); ok {
		if err := db.CheckMigrations(); err != nil {
			st.Close()
			logFile.Close()
			return nil, fmt.Errorf("database schema out of date: %w", err)
		}
	}

	sessions, err := session.NewSessionStoreFromConfig(cfg.Session)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	svc := babylog.NewService(st, sessions, opts.Notifier, logger, opts.Clock, opts.Scheduler, loc)
	if err := svc.Start(); err != nil {
		logger.Warn("restoring feeding session", "error", err)
	}

	logger.Debug("operation started", "operation", op.Name, "store", cfg.Store.Type)

	return &BabyLogApp{
		cfg:      cfg,
		store:    st,
		service:  svc,
		notifier: opts.Notifier,
		logger:   logger,
		clock:    opts.Clock,
		op:       op,
		logFile:  logFile,
	}, nil
}

// remoteConfig resolves the API token, inline or age-encrypted on disk,
// and builds the remote client configuration.
func remoteConfig(rc config.RemoteConfig, notifier babylog.Notifier, logger babylog.Logger) (remote.Config, error) {
	token := rc.Token
	if token == "" && rc.TokenFile != "" {
		loaded, err := credential.NewAgeTokenStore(rc.TokenFile, rc.IdentityPath).Load()
		if err != nil {
			return remote.Config{}, fmt.Errorf("loading API token: %w", err)
		}
		token = loaded
	}

	return remote.Config{
		APIURL:     rc.APIURL,
		BaseID:     rc.BaseID,
		Table:      rc.Table,
		Token:      token,
		RetryDelay: time.Duration(rc.RetryDelaySeconds) * time.Second,
		MaxRetries: rc.MaxRetries,
		Timeout:    time.Duration(rc.TimeoutSeconds) * time.Second,
		Notifier:   notifier,
		Logger:     logger,
	}, nil
}

// Service returns the underlying babylog service.
func (a *BabyLogApp) Service() *babylog.Service {
	return a.service
}

// Config returns the configuration the app was built from.
func (a *BabyLogApp) Config() *config.Config {
	return a.cfg
}

// LogEvent records a pee or poop event now.
func (a *BabyLogApp) LogEvent(ctx context.Context, kind string) (*model.Record, error) {
	eventType := model.EventType(strings.ToLower(strings.TrimSpace(kind)))
	r, err := a.service.LogEvent(ctx, eventType)
	return r, a.op.Fail(err)
}

// LogTemperature parses a Celsius reading ("37.2" or "37,2") and records it.
func (a *BabyLogApp) LogTemperature(ctx context.Context, raw string) (*model.Record, error) {
	celsius, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(raw), ",", ".", 1), 64)
	if err != nil {
		return nil, a.op.Fail(fmt.Errorf("parsing temperature %q: %w", raw, err))
	}
	r, err := a.service.LogTemperature(ctx, celsius)
	return r, a.op.Fail(err)
}

// StartFeeding parses the side and starts or switches the feeding timer.
func (a *BabyLogApp) StartFeeding(rawSide string) error {
	side, err := model.ParseSide(strings.TrimSpace(rawSide))
	if err != nil {
		return a.op.Fail(err)
	}
	return a.op.Fail(a.service.StartFeeding(side))
}

// PauseFeeding pauses a running timer.
func (a *BabyLogApp) PauseFeeding() error {
	return a.op.Fail(a.service.Timer().Pause())
}

// ResumeFeeding resumes a paused timer.
func (a *BabyLogApp) ResumeFeeding() error {
	return a.op.Fail(a.service.Timer().Resume())
}

// StopFeeding logs the feeding and returns the rest countdown that follows it.
func (a *BabyLogApp) StopFeeding(ctx context.Context) (*model.Record, *babylog.RestCountdown, error) {
	r, rest, err := a.service.StopFeeding(ctx)
	return r, rest, a.op.Fail(err)
}

// CloseFeeding discards the current feeding without logging it.
func (a *BabyLogApp) CloseFeeding() error {
	return a.op.Fail(a.service.Timer().Close())
}

// FeedingStatus returns the timer snapshot and its elapsed time.
func (a *BabyLogApp) FeedingStatus() (babylog.TimerSession, time.Duration) {
	t := a.service.Timer()
	return t.Session(), t.Elapsed()
}

// Today refreshes today's summary.
func (a *BabyLogApp) Today(ctx context.Context) (*babylog.Snapshot, error) {
	snap, err := a.service.Refresh(ctx)
	return snap, a.op.Fail(err)
}

// SetVitamin parses a vitamin name ("d", "k", "vitamin_d") and sets today's state.
// The current state is synced from the store first so that turning a vitamin
// off can find today's record.
func (a *BabyLogApp) SetVitamin(ctx context.Context, rawVitamin string, given bool) (bool, error) {
	vitamin, err := parseVitamin(rawVitamin)
	if err != nil {
		return false, a.op.Fail(err)
	}
	if _, err := a.service.Refresh(ctx); err != nil {
		return false, a.op.Fail(err)
	}
	state, err := a.service.SetVitamin(ctx, vitamin, given)
	return state, a.op.Fail(err)
}

func parseVitamin(s string) (model.EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "vitamin_d", "vitamind":
		return model.EventVitaminD, nil
	case "k", "vitamin_k", "vitamink":
		return model.EventVitaminK, nil
	default:
		return "", fmt.Errorf("unknown vitamin %q (want d or k)", s)
	}
}

// History reloads the newest history page and then up to pages-1 more,
// grouped by day, plus whether more pages remain. pages <= 0 loads everything.
func (a *BabyLogApp) History(ctx context.Context, pages int) ([]model.DayGroup, bool, error) {
	if _, err := a.service.Refresh(ctx); err != nil {
		return nil, false, a.op.Fail(err)
	}
	if pages <= 0 {
		if _, err := a.service.LoadAllHistory(ctx); err != nil {
			return nil, false, a.op.Fail(err)
		}
	}
	for i := 1; i < pages; i++ {
		loaded, err := a.service.LoadMoreHistory(ctx)
		if err != nil {
			return nil, false, a.op.Fail(err)
		}
		if loaded == nil {
			break
		}
	}
	_, more := a.service.History()
	return a.service.GroupedHistory(a.cfg.Display.DayLabelFormat), more, nil
}

// DeleteRecord deletes a record after the user confirmed it.
func (a *BabyLogApp) DeleteRecord(ctx context.Context, id string, confirmed bool) error {
	return a.op.Fail(a.service.DeleteRecord(ctx, strings.TrimSpace(id), confirmed))
}

// Export writes the full history to the configured export target.
func (a *BabyLogApp) Export(ctx context.Context, rawFormat string) (*export.Result, error) {
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, a.op.Fail(err)
	}
	target, err := export.NewTargetFromConfig(ctx, a.cfg.Export)
	if err != nil {
		return nil, a.op.Fail(fmt.Errorf("creating export target: %w", err))
	}
	records, err := a.service.LoadAllHistory(ctx)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	result, err := export.NewExporter(target, a.clock, a.logger).Export(ctx, records, format)
	return result, a.op.Fail(err)
}

// Close records how the operation ended and closes all resources.
func (a *BabyLogApp) Close() error {
	var firstErr error

	a.logger.Debug("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", a.op.Duration(a.clock.Now()).String(),
	)

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing record store: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
