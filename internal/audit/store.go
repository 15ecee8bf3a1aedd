package audit

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS action_log (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	target      TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	reason      TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transition_log (
	id          TEXT PRIMARY KEY,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	severity    TEXT NOT NULL,
	reason      TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS promotion_log (
	id            TEXT PRIMARY KEY,
	from_stage    TEXT NOT NULL,
	to_stage      TEXT NOT NULL,
	window_id     TEXT,
	manifest_hash TEXT NOT NULL,
	snapshot_json TEXT,
	rationale     TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct

// Store is the append-only audit trail in SQLite. There are no update or
// delete paths; every write is an insert.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens the audit database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for offline inspection tools.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region actions

// RecordAction appends one enforcement outcome. ID and CreatedAt are filled
// when empty.
func (s *Store) RecordAction(e ActionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO action_log (id, kind, target, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Target, e.Outcome, nullIfEmpty(e.Reason),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// RecentActions returns the most recent action entries, newest first.
func (s *Store) RecentActions(limit int) ([]ActionEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, target, outcome, reason, created_at
		 FROM action_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var entries []ActionEntry
	for rows.Next() {
		var e ActionEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Target, &e.Outcome, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion actions

// #region transitions

// RecordTransition appends one guardian state transition.
func (s *Store) RecordTransition(e TransitionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO transition_log (id, from_state, to_state, severity, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.FromState, e.ToState, e.Severity, nullIfEmpty(e.Reason),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecentTransitions returns the most recent transitions, newest first.
func (s *Store) RecentTransitions(limit int) ([]TransitionEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, from_state, to_state, severity, reason, created_at
		 FROM transition_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var entries []TransitionEntry
	for rows.Next() {
		var e TransitionEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.ID, &e.FromState, &e.ToState, &e.Severity, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion transitions

// #region promotions

// RecordPromotion appends one canary stage decision.
func (s *Store) RecordPromotion(e PromotionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO promotion_log (id, from_stage, to_stage, window_id, manifest_hash, snapshot_json, rationale, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FromStage, e.ToStage, nullIfEmpty(e.WindowID), e.ManifestHash,
		nullIfEmpty(e.SnapshotJSON), e.Rationale,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record promotion: %w", err)
	}
	return nil
}

// RecentPromotions returns the most recent promotion decisions, newest first.
func (s *Store) RecentPromotions(limit int) ([]PromotionEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, from_stage, to_stage, window_id, manifest_hash, snapshot_json, rationale, created_at
		 FROM promotion_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var entries []PromotionEntry
	for rows.Next() {
		e, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastPromotion returns the newest promotion decision, or nil when the log is
// empty. Used to recover the gate's stage across restarts.
func (s *Store) LastPromotion() (*PromotionEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, from_stage, to_stage, window_id, manifest_hash, snapshot_json, rationale, created_at
		 FROM promotion_log ORDER BY created_at DESC LIMIT 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("last promotion: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	e, err := scanPromotion(rows)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanPromotion(rows *sql.Rows) (PromotionEntry, error) {
	var e PromotionEntry
	var windowID, snapshotJSON sql.NullString
	var createdStr string
	if err := rows.Scan(&e.ID, &e.FromStage, &e.ToStage, &windowID, &e.ManifestHash,
		&snapshotJSON, &e.Rationale, &createdStr); err != nil {
		return PromotionEntry{}, fmt.Errorf("scan promotion: %w", err)
	}
	if windowID.Valid {
		e.WindowID = windowID.String
	}
	if snapshotJSON.Valid {
		e.SnapshotJSON = snapshotJSON.String
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return e, nil
}

// #endregion promotions

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
