// Package sqlite is the SQLite-backed storage.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/event"
	"github.com/louisbranch/avalon.arena/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/avalon.arena/internal/storage"
	"github.com/louisbranch/avalon.arena/internal/storage/sqlite/migrations"
)

// Store provides a SQLite-backed journal and match index.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (or creates) the database at path and applies embedded
// migrations before the store is handed to higher layers.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// The driver serializes writes; a single connection avoids SQLITE_BUSY
	// churn under concurrent appends.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying database. Nil-safe so callers can defer it in
// all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// AppendEvents atomically appends a decision's events with contiguous
// sequence numbers.
func (s *Store) AppendEvents(ctx context.Context, matchID string, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(matchID) == "" {
		return nil, fmt.Errorf("match id is required")
	}
	if len(events) == 0 {
		return nil, nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO event_seq (match_id, next_seq) VALUES (?, 1) ON CONFLICT (match_id) DO NOTHING",
		matchID,
	); err != nil {
		return nil, fmt.Errorf("init event seq: %w", err)
	}

	var baseSeq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM event_seq WHERE match_id = ?", matchID,
	).Scan(&baseSeq); err != nil {
		return nil, fmt.Errorf("get event seq: %w", err)
	}

	stored := make([]event.Event, 0, len(events))
	for i, evt := range events {
		evt.MatchID = matchID
		evt.Seq = uint64(baseSeq) + uint64(i)
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

		defaulted := 0
		if evt.Defaulted {
			defaulted = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO events (match_id, seq, timestamp, event_type, actor_type, seat, round, attempt, defaulted, payload_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evt.MatchID, int64(evt.Seq), toMillis(evt.Timestamp), string(evt.Type),
			string(evt.ActorType), evt.Seat, evt.Round, evt.Attempt, defaulted, evt.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("append event %d: %w", i, err)
		}
		stored = append(stored, evt)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE event_seq SET next_seq = ? WHERE match_id = ?",
		baseSeq+int64(len(events)), matchID,
	); err != nil {
		return nil, fmt.Errorf("update event seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// ListEvents returns events ordered by sequence ascending.
func (s *Store) ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(matchID) == "" {
		return nil, fmt.Errorf("match id is required")
	}
	if limit <= 0 {
		// Negative LIMIT disables the cap in sqlite, matching the contract's
		// "no limit" semantics for replay.
		limit = -1
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT match_id, seq, timestamp, event_type, actor_type, seat, round, attempt, defaulted, payload_json
FROM events WHERE match_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		matchID, int64(afterSeq), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			seq       int64
			timestamp int64
			evtType   string
			actorType string
			defaulted int
		)
		if err := rows.Scan(&evt.MatchID, &seq, &timestamp, &evtType, &actorType,
			&evt.Seat, &evt.Round, &evt.Attempt, &defaulted, &evt.PayloadJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Timestamp = fromMillis(timestamp)
		evt.Type = event.Type(evtType)
		evt.ActorType = event.ActorType(actorType)
		evt.Defaulted = defaulted != 0
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListMatchIDs returns every match id present in the journal.
func (s *Store) ListMatchIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT DISTINCT match_id FROM events ORDER BY match_id")
	if err != nil {
		return nil, fmt.Errorf("list match ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match ids: %w", err)
	}
	return ids, nil
}

// PutMatch upserts a match record.
func (s *Store) PutMatch(ctx context.Context, record storage.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("match id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO matches (id, player_count, phase, outcome, winner, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    phase = excluded.phase,
    outcome = excluded.outcome,
    winner = excluded.winner,
    updated_at = excluded.updated_at`,
		record.ID, record.PlayerCount, string(record.Phase), string(record.Outcome),
		string(record.Winner), toMillis(record.CreatedAt), toMillis(record.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put match: %w", err)
	}
	return nil
}

// GetMatch returns a match record by id.
func (s *Store) GetMatch(ctx context.Context, id string) (storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MatchRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, player_count, phase, outcome, winner, created_at, updated_at
FROM matches WHERE id = ?`, id)

	record, err := scanMatch(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MatchRecord{}, storage.ErrNotFound
		}
		return storage.MatchRecord{}, fmt.Errorf("get match: %w", err)
	}
	return record, nil
}

// ListMatches returns match records, newest first.
func (s *Store) ListMatches(ctx context.Context) ([]storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, player_count, phase, outcome, winner, created_at, updated_at
FROM matches ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var records []storage.MatchRecord
	for rows.Next() {
		record, err := scanMatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return records, nil
}

func scanMatch(scan func(...any) error) (storage.MatchRecord, error) {
	var (
		record    storage.MatchRecord
		phase     string
		outcome   string
		winner    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(&record.ID, &record.PlayerCount, &phase, &outcome, &winner, &createdAt, &updatedAt); err != nil {
		return storage.MatchRecord{}, err
	}
	record.Phase = domain.Phase(phase)
	record.Outcome = domain.Outcome(outcome)
	record.Winner = domain.Team(winner)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
