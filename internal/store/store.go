// Package store persists questionnaire results and received alerts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL DEFAULT '',
    questionnaire TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    total         INTEGER NOT NULL,
    max_total     INTEGER NOT NULL,
    level         TEXT NOT NULL,
    answers       TEXT NOT NULL,
    scored        TEXT NOT NULL,
    fingerprint   TEXT NOT NULL DEFAULT '',
    started_at    INTEGER NOT NULL,
    completed_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_completed ON results(completed_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_questionnaire ON results(questionnaire, completed_at DESC);
CREATE TABLE IF NOT EXISTS alerts (
    id          TEXT PRIMARY KEY,
    seq         INTEGER NOT NULL,
    bvp         REAL NOT NULL,
    eda         REAL NOT NULL,
    temp        REAL NOT NULL,
    zone        TEXT NOT NULL,
    source      TEXT NOT NULL DEFAULT '',
    received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_received ON alerts(received_at DESC);
`

// Store is a SQLite-backed results and alerts store. It is safe for
// concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path
func Open(path string, opts ...OpenOption) (*Store, error) {
	db, err := openDB(path, append([]OpenOption{WithMkdirAll()}, opts...)...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, "open database "+path, err).
			WithSuggestion("Check the storage.path setting and directory permissions")
	}
	s, err := newStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newStore(db *sql.DB) (*Store, error) {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, errors.NewStoreError("migrate", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.NewStoreError("ping", err)
	}
	return nil
}

// RecordResult stores a completed questionnaire
func (s *Store) RecordResult(ctx context.Context, r *questionnaire.Result) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return errors.NewStoreError("encode answers", err)
	}
	scored, err := json.Marshal(r.Scored)
	if err != nil {
		return errors.NewStoreError("encode scored answers", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO results (id, session_id, questionnaire, name, total, max_total, level,
			answers, scored, fingerprint, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, string(r.Questionnaire), r.Name, r.Total, r.MaxTotal, string(r.Level),
		string(answers), string(scored), r.Fingerprint,
		r.StartedAt.UnixMilli(), r.CompletedAt.UnixMilli())
	if err != nil {
		return errors.NewStoreError("insert result", err)
	}
	return nil
}

// ResultFilter narrows ListResults
type ResultFilter struct {
	// Questionnaire limits results to one questionnaire when set
	Questionnaire questionnaire.ID
	// Limit caps the number of rows, 0 means no limit
	Limit int
}

// ListResults returns stored results, newest first
func (s *Store) ListResults(ctx context.Context, f ResultFilter) ([]*questionnaire.Result, error) {
	q := `SELECT id, session_id, questionnaire, name, total, max_total, level,
		answers, scored, fingerprint, started_at, completed_at FROM results`
	var args []any
	if f.Questionnaire != "" {
		q += ` WHERE questionnaire = ?`
		args = append(args, string(f.Questionnaire))
	}
	q += ` ORDER BY completed_at DESC, id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStoreError("query results", err)
	}
	defer rows.Close()

	var out []*questionnaire.Result
	for rows.Next() {
		var (
			r                  questionnaire.Result
			qid, level         string
			answers, scored    string
			started, completed int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &qid, &r.Name, &r.Total, &r.MaxTotal, &level,
			&answers, &scored, &r.Fingerprint, &started, &completed); err != nil {
			return nil, errors.NewStoreError("scan result", err)
		}
		if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
			return nil, errors.NewStoreError("decode answers", err)
		}
		if err := json.Unmarshal([]byte(scored), &r.Scored); err != nil {
			return nil, errors.NewStoreError("decode scored answers", err)
		}
		r.Questionnaire = questionnaire.ID(qid)
		r.Level = questionnaire.Level(level)
		r.StartedAt = time.UnixMilli(started).UTC()
		r.CompletedAt = time.UnixMilli(completed).UTC()
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate results", err)
	}
	return out, nil
}

// RecordAlert stores a received alert
func (s *Store) RecordAlert(ctx context.Context, a alert.Alert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, seq, bvp, eda, temp, zone, source, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Seq, a.Reading.BVP, a.Reading.EDA, a.Reading.Temp, string(a.Zone), a.Source,
		a.ReceivedAt.UnixMilli())
	if err != nil {
		return errors.NewStoreError("insert alert", err)
	}
	return nil
}

// ListAlerts returns the most recent alerts, newest first. limit <= 0 returns all.
func (s *Store) ListAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	q := `SELECT id, seq, bvp, eda, temp, zone, source, received_at FROM alerts
		ORDER BY received_at DESC, seq DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStoreError("query alerts", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		var (
			a        alert.Alert
			zone     string
			received int64
		)
		if err := rows.Scan(&a.ID, &a.Seq, &a.Reading.BVP, &a.Reading.EDA, &a.Reading.Temp,
			&zone, &a.Source, &received); err != nil {
			return nil, errors.NewStoreError("scan alert", err)
		}
		a.Zone = alert.Zone(zone)
		a.BVPNormal = alert.BVPInRange(a.Reading.BVP)
		a.TempStatus = alert.TempStatus(a.Reading.Temp)
		a.ReceivedAt = time.UnixMilli(received).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate alerts", err)
	}
	return out, nil
}
