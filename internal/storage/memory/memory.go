// Package memory is an in-process storage.Store for tests and ephemeral
// deployments where matches need not survive a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/louisbranch/avalon.arena/internal/match/event"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/storage"
)

// Store implements storage.Store in memory.
type Store struct {
	mu       sync.RWMutex
	journals map[string][]event.Event
	matches  map[string]storage.MatchRecord
}

// NewStore builds an empty in-memory store.
func NewStore() *Store {
	return &Store{
		journals: make(map[string][]event.Event),
		matches:  make(map[string]storage.MatchRecord),
	}
}

// AppendEvents appends events under the match id, assigning sequence numbers.
func (s *Store) AppendEvents(ctx context.Context, matchID string, events []event.Event) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if matchID == "" {
		return nil, apperrors.New(apperrors.CodeNotFound, "match id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	journal := s.journals[matchID]
	next := uint64(len(journal)) + 1
	stored := make([]event.Event, 0, len(events))
	for _, evt := range events {
		evt.MatchID = matchID
		evt.Seq = next
		next++
		journal = append(journal, evt)
		stored = append(stored, evt)
	}
	s.journals[matchID] = journal
	return stored, nil
}

// ListEvents returns events after afterSeq in order.
func (s *Store) ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	journal := s.journals[matchID]
	var out []event.Event
	for _, evt := range journal {
		if evt.Seq <= afterSeq {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ListMatchIDs returns journal match ids in stable order.
func (s *Store) ListMatchIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.journals))
	for id := range s.journals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// PutMatch upserts a match record.
func (s *Store) PutMatch(ctx context.Context, record storage.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[record.ID] = record
	return nil
}

// GetMatch returns a match record by id.
func (s *Store) GetMatch(ctx context.Context, id string) (storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.matches[id]
	if !ok {
		return storage.MatchRecord{}, storage.ErrNotFound
	}
	return record, nil
}

// ListMatches returns records ordered by creation time, newest first.
func (s *Store) ListMatches(ctx context.Context) ([]storage.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]storage.MatchRecord, 0, len(s.matches))
	for _, record := range s.matches {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}
