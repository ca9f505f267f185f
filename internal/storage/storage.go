// Package storage defines the persistence contracts for the match journal
// and the match index.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/event"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// ErrNotFound reports a missing match or event.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "not found")

// MatchRecord is the indexed summary of a match. The journal is the source
// of truth; records exist so listings do not replay every match.
type MatchRecord struct {
	ID          string
	PlayerCount int
	Phase       domain.Phase
	Outcome     domain.Outcome
	Winner      domain.Team
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventJournal is the append-only per-match event log. Appends assign
// contiguous sequence numbers starting at 1.
type EventJournal interface {
	// AppendEvents atomically appends a decision's events and returns them
	// with sequence numbers set.
	AppendEvents(ctx context.Context, matchID string, events []event.Event) ([]event.Event, error)
	// ListEvents returns events with Seq > afterSeq ordered ascending, at
	// most limit of them. A non-positive limit returns the full journal.
	ListEvents(ctx context.Context, matchID string, afterSeq uint64, limit int) ([]event.Event, error)
	// ListMatchIDs returns every match id present in the journal.
	ListMatchIDs(ctx context.Context) ([]string, error)
}

// MatchStore indexes match summaries.
type MatchStore interface {
	PutMatch(ctx context.Context, record MatchRecord) error
	GetMatch(ctx context.Context, id string) (MatchRecord, error)
	ListMatches(ctx context.Context) ([]MatchRecord, error)
}

// Store is the combined persistence surface the registry needs.
type Store interface {
	EventJournal
	MatchStore
}
