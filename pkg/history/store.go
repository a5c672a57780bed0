// Package history persists final session reports in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.

	"github.com/teslashibe/go-smartspar/pkg/classifier"
	"github.com/teslashibe/go-smartspar/pkg/session"
)

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when no report exists for a session.
var ErrNotFound = errors.New("report not found")

// Store wraps SQLite access for session reports.
type Store struct {
	db *sql.DB
}

// Totals aggregates every stored report.
type Totals struct {
	Sessions      int                          `json:"sessions"`
	Punches       int                          `json:"punches"`
	GuardWarnings int                          `json:"guard_warnings"`
	Seconds       float64                      `json:"seconds"`
	PunchCounts   map[classifier.PunchType]int `json:"punch_counts"`
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			session_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			frames_processed INTEGER NOT NULL,
			frames_dropped INTEGER NOT NULL,
			total_punches INTEGER NOT NULL,
			valid_punches INTEGER NOT NULL,
			accuracy REAL NOT NULL,
			guard_warnings INTEGER NOT NULL,
			guard_perfection REAL NOT NULL,
			session_duration REAL NOT NULL,
			punches_per_minute REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS report_punches (
			session_id TEXT NOT NULL,
			punch_type TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (session_id, punch_type)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_ended_at ON reports(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores a report, replacing any earlier report for the same session.
func (s *Store) Save(ctx context.Context, r session.Report) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	st := r.Stats
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (session_id, started_at, ended_at, frames_processed, frames_dropped,
			total_punches, valid_punches, accuracy, guard_warnings, guard_perfection, session_duration, punches_per_minute)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SessionID,
		r.StartedAt.UTC().Format(timeLayout),
		r.EndedAt.UTC().Format(timeLayout),
		r.FramesProcessed,
		r.FramesDropped,
		st.TotalPunches,
		st.ValidPunches,
		st.Accuracy,
		st.GuardWarnings,
		st.GuardPerfection,
		st.SessionDuration,
		st.PunchesPerMinute,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM report_punches WHERE session_id = ?`, r.SessionID); err != nil {
		return fmt.Errorf("failed to clear punch counts: %w", err)
	}
	for _, p := range classifier.PunchTypes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO report_punches (session_id, punch_type, count) VALUES (?, ?, ?)`,
			r.SessionID, string(p), st.PunchCounts[p]); err != nil {
			return fmt.Errorf("failed to insert punch count: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

const reportColumns = `session_id, started_at, ended_at, frames_processed, frames_dropped,
	total_punches, valid_punches, accuracy, guard_warnings, guard_perfection, session_duration, punches_per_minute`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (session.Report, error) {
	var (
		r              session.Report
		started, ended string
	)
	st := &r.Stats
	err := row.Scan(&r.SessionID, &started, &ended, &r.FramesProcessed, &r.FramesDropped,
		&st.TotalPunches, &st.ValidPunches, &st.Accuracy, &st.GuardWarnings,
		&st.GuardPerfection, &st.SessionDuration, &st.PunchesPerMinute)
	if err != nil {
		return r, err
	}
	if r.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return r, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if r.EndedAt, err = time.Parse(timeLayout, ended); err != nil {
		return r, fmt.Errorf("failed to parse ended_at: %w", err)
	}
	return r, nil
}

// Get returns the report for a session.
func (s *Store) Get(ctx context.Context, sessionID string) (session.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE session_id = ?`, sessionID)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, ErrNotFound
	}
	if err != nil {
		return r, fmt.Errorf("failed to load report: %w", err)
	}

	counts, err := s.punchCounts(ctx, sessionID)
	if err != nil {
		return r, err
	}
	r.Stats.PunchCounts = counts
	return r, nil
}

// List returns the most recently ended reports, newest first. A limit of
// zero or less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]session.Report, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY ended_at DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []session.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Close before issuing more queries on the single connection.
	rows.Close()

	for i := range reports {
		counts, err := s.punchCounts(ctx, reports[i].SessionID)
		if err != nil {
			return nil, err
		}
		reports[i].Stats.PunchCounts = counts
	}
	return reports, nil
}

func (s *Store) punchCounts(ctx context.Context, sessionID string) (map[classifier.PunchType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT punch_type, count FROM report_punches WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load punch counts: %w", err)
	}
	defer rows.Close()

	counts := emptyCounts()
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		counts[classifier.PunchType(p)] = n
	}
	return counts, rows.Err()
}

// Totals sums every stored report.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	t := Totals{PunchCounts: emptyCounts()}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_punches), 0), COALESCE(SUM(guard_warnings), 0),
			COALESCE(SUM(session_duration), 0) FROM reports`)
	if err := row.Scan(&t.Sessions, &t.Punches, &t.GuardWarnings, &t.Seconds); err != nil {
		return t, fmt.Errorf("failed to sum reports: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT punch_type, SUM(count) FROM report_punches GROUP BY punch_type`)
	if err != nil {
		return t, fmt.Errorf("failed to sum punch counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p string
			n int
		)
		if err := rows.Scan(&p, &n); err != nil {
			return t, err
		}
		t.PunchCounts[classifier.PunchType(p)] = n
	}
	return t, rows.Err()
}

// Delete removes a session's report.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM report_punches WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete punch counts: %w", err)
	}
	return nil
}

func emptyCounts() map[classifier.PunchType]int {
	counts := make(map[classifier.PunchType]int, len(classifier.PunchTypes))
	for _, p := range classifier.PunchTypes {
		counts[p] = 0
	}
	return counts
}
