package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"babylog/internal/babylog"
	"babylog/internal/model"
	"babylog/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps records in a local SQLite database.
// Timestamps are stored as Unix milliseconds.
type SQLiteStore struct {
	db    *sql.DB
	idgen babylog.IDGenerator
	clock babylog.Clock
	path  string
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, which may be ":memory:".
// Nil clock and idgen use the real implementations.
func NewSQLiteStore(path string, clock babylog.Clock, idgen babylog.IDGenerator) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStoreFromDB(db, path, clock, idgen), nil
}

// NewSQLiteStoreFromDB wraps an open connection. The store takes ownership of db.
func NewSQLiteStoreFromDB(db *sql.DB, path string, clock babylog.Clock, idgen babylog.IDGenerator) *SQLiteStore {
	if clock == nil {
		clock = babylog.RealClock{}
	}
	if idgen == nil {
		idgen = babylog.UUIDGenerator{}
	}
	return &SQLiteStore{db: db, idgen: idgen, clock: clock, path: path}
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

func (s *SQLiteStore) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	if !record.Type.Valid() {
		return nil, fmt.Errorf("creating record: %w", babylog.ErrInvalidEventType)
	}

	created := *record
	created.ID = s.idgen.New()

	var startTime sql.NullInt64
	if !created.StartTime.IsZero() {
		startTime = sql.NullInt64{Int64: created.StartTime.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (id, type, timestamp, side, start_time, duration_seconds, temperature, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID,
		string(created.Type),
		created.Timestamp.UnixMilli(),
		string(created.Side),
		startTime,
		created.DurationSeconds,
		created.Temperature,
		s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting record: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, query babylog.ListQuery) (*babylog.Page, error) {
	offset, err := parsePageToken(query.PageToken)
	if err != nil {
		return nil, err
	}
	limit := pageSize(query)

	var (
		where []string
		args  []any
	)
	if !query.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, query.Since.UnixMilli())
	}
	if !query.Until.IsZero() {
		where = append(where, "timestamp < ?")
		args = append(args, query.Until.UnixMilli())
	}

	var b strings.Builder
	b.WriteString(`SELECT id, type, timestamp, side, start_time, duration_seconds, temperature FROM records`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	if query.Descending {
		b.WriteString(" ORDER BY timestamp DESC, created_at DESC")
	} else {
		b.WriteString(" ORDER BY timestamp ASC, created_at ASC")
	}
	// One extra row tells whether another page exists.
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	more := len(records) > limit
	if more {
		records = records[:limit]
	}
	return &babylog.Page{
		Records:       records,
		NextPageToken: nextPageToken(offset, len(records), more),
	}, nil
}

func scanRecord(rows *sql.Rows) (*model.Record, error) {
	var (
		r         model.Record
		typ, side string
		ts        int64
		startTime sql.NullInt64
	)
	if err := rows.Scan(&r.ID, &typ, &ts, &side, &startTime, &r.DurationSeconds, &r.Temperature); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	r.Type = model.EventType(typ)
	r.Side = model.Side(side)
	r.Timestamp = time.UnixMilli(ts).UTC()
	if startTime.Valid {
		r.StartTime = time.UnixMilli(startTime.Int64).UTC()
	}
	return &r, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
