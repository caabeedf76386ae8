// Package journal keeps a capped SQLite log of HUD engagements: lock attempts,
// shots, kills and lost targets.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-hud/internal/log"
	"github.com/teslashibe/go-hud/pkg/feedback"
)

// DefaultCapacity is how many entries are kept before the oldest are pruned
const DefaultCapacity = 500

// ErrClosed is returned by operations on a closed journal
var ErrClosed = errors.New("journal closed")

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one journaled feedback event
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Kind      string    `json:"kind"`
	TargetID  string    `json:"targetId,omitempty"`
	Class     string    `json:"class,omitempty"`
	Distance  float64   `json:"distance,omitempty"`
	HitPoints *int      `json:"hitPoints,omitempty"`
	At        time.Time `json:"at"`
}

// Journal is a capped engagement log backed by SQLite
type Journal struct {
	db       *sql.DB
	capacity int
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Journal
type Option func(*Journal)

// WithCapacity overrides DefaultCapacity
func WithCapacity(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.capacity = n
		}
	}
}

// Open opens (or creates) the journal at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway journal.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	j := &Journal{
		db:       db,
		capacity: DefaultCapacity,
		logger:   log.Component("journal"),
	}
	for _, opt := range opts {
		opt(j)
	}

	if err := j.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logger: j.logger}
	return m, nil
}

// migrateUp runs all pending migrations. The migrate instance is not closed
// because that would close the shared database handle.
func (j *Journal) migrateUp() error {
	m, err := j.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version returns the schema version and dirty flag
func (j *Journal) Version() (uint, bool, error) {
	if err := j.check(); err != nil {
		return 0, false, err
	}
	m, err := j.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}

func (j *Journal) check() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	return nil
}

// Journaled reports whether events of kind are recorded. Phase changes are
// implied by the other kinds and are skipped.
func Journaled(k feedback.Kind) bool {
	return k != feedback.PhaseChanged && k != ""
}

// Record stores e and prunes the oldest entries beyond capacity.
// Kinds that are not journaled are ignored.
func (j *Journal) Record(ctx context.Context, e feedback.Event) error {
	if err := j.check(); err != nil {
		return err
	}
	if !Journaled(e.Kind) {
		return nil
	}

	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	var hp sql.NullInt64
	if e.HitPoints != nil {
		hp = sql.NullInt64{Int64: int64(*e.HitPoints), Valid: true}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (session_id, kind, target_id, class, distance, hit_points, at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Kind), e.TargetID, e.Class, e.Distance, hp, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM entries WHERE id NOT IN (SELECT id FROM entries ORDER BY id DESC LIMIT ?)`,
		j.capacity)
	if err != nil {
		return fmt.Errorf("prune entries: %w", err)
	}
	return tx.Commit()
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Entries(ctx context.Context, limit int) ([]Entry, error) {
	if err := j.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = j.capacity
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, session_id, kind, target_id, class, distance, hit_points, at_ms
		 FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var hp sql.NullInt64
		var atMS int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.TargetID, &e.Class, &e.Distance, &hp, &atMS); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if hp.Valid {
			n := int(hp.Int64)
			e.HitPoints = &n
		}
		e.At = time.UnixMilli(atMS).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats summarizes the journal
type Stats struct {
	Entries          int            `json:"entries"`
	Sessions         int            `json:"sessions"`
	Acquisitions     int            `json:"acquisitions"`
	Locks            int            `json:"locks"`
	Shots            int            `json:"shots"`
	Kills            int            `json:"kills"`
	Lost             int            `json:"lost"`
	NewObjects       int            `json:"newObjects"`
	MeanKillDistance float64        `json:"meanKillDistance"` // Meters, over kills with a known distance
	KillsByClass     map[string]int `json:"killsByClass"`
}

// Stats aggregates the kept entries
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	if err := j.check(); err != nil {
		return Stats{}, err
	}
	st := Stats{KillsByClass: map[string]int{}}

	rows, err := j.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM entries GROUP BY kind`)
	if err != nil {
		return Stats{}, fmt.Errorf("count kinds: %w", err)
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("scan kind count: %w", err)
		}
		st.Entries += n
		switch feedback.Kind(kind) {
		case feedback.LockBegin:
			st.Acquisitions = n
		case feedback.Locked:
			st.Locks = n
		case feedback.Fire:
			st.Shots = n
		case feedback.Destroyed:
			st.Kills = n
		case feedback.TargetLost:
			st.Lost = n
		case feedback.NewObjectDetected:
			st.NewObjects = n
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, err
	}

	err = j.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM entries WHERE session_id != ''`).Scan(&st.Sessions)
	if err != nil {
		return Stats{}, fmt.Errorf("count sessions: %w", err)
	}

	var mean sql.NullFloat64
	err = j.db.QueryRowContext(ctx,
		`SELECT AVG(distance) FROM entries WHERE kind = ? AND distance > 0`,
		string(feedback.Destroyed)).Scan(&mean)
	if err != nil {
		return Stats{}, fmt.Errorf("mean kill distance: %w", err)
	}
	st.MeanKillDistance = mean.Float64

	rows, err = j.db.QueryContext(ctx,
		`SELECT class, COUNT(*) FROM entries WHERE kind = ? GROUP BY class`,
		string(feedback.Destroyed))
	if err != nil {
		return Stats{}, fmt.Errorf("kills by class: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return Stats{}, fmt.Errorf("scan class count: %w", err)
		}
		st.KillsByClass[class] = n
	}
	return st, rows.Err()
}

// Clear deletes every entry
func (j *Journal) Clear(ctx context.Context) error {
	if err := j.check(); err != nil {
		return err
	}
	if _, err := j.db.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	j.closed = true
	return j.db.Close()
}
