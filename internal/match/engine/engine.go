// Package engine is the match rules engine write path.
//
// The engine follows a decide/fold split: Decide evaluates a command against
// replayed state and returns events or rejections; Fold applies events to
// state. Both are pure, so the full journal replays to an identical state and
// tests can drive every transition directly.
package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/event"
	"github.com/louisbranch/avalon.arena/internal/match/rules"
	"github.com/louisbranch/avalon.arena/internal/platform/id"
)

// SeatConfig is the per-seat creation input.
type SeatConfig struct {
	Seat     int
	Name     string
	Human    bool
	Provider string
}

// CreateInput captures match-creation configuration. It is validated once
// here; invalid configuration fails creation and never enters role
// assignment.
type CreateInput struct {
	PlayerCount int
	Seats       []SeatConfig
}

// NewMatch validates creation input and returns the initial state along with
// the match.created event. now and idGenerator are injectable for tests.
func NewMatch(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (domain.State, []event.Event, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	if _, err := rules.ForPlayerCount(input.PlayerCount); err != nil {
		return domain.State{}, nil, err
	}
	if len(input.Seats) != input.PlayerCount {
		return domain.State{}, nil, errSeatsMismatch(len(input.Seats), input.PlayerCount)
	}

	seats := append([]SeatConfig(nil), input.Seats...)
	sort.Slice(seats, func(i, j int) bool { return seats[i].Seat < seats[j].Seat })
	for i, seat := range seats {
		if seat.Seat != i {
			return domain.State{}, nil, errSeatIndexGap(seat.Seat)
		}
		if strings.TrimSpace(seat.Name) == "" {
			return domain.State{}, nil, errSeatNameEmpty(seat.Seat)
		}
		if !seat.Human && strings.TrimSpace(seat.Provider) == "" {
			return domain.State{}, nil, errProviderMissing(seat.Seat)
		}
	}

	matchID, err := idGenerator()
	if err != nil {
		return domain.State{}, nil, err
	}

	payload := event.MatchCreatedPayload{PlayerCount: input.PlayerCount}
	for _, seat := range seats {
		payload.Seats = append(payload.Seats, event.SeatConfig{
			Seat:     seat.Seat,
			Name:     strings.TrimSpace(seat.Name),
			Human:    seat.Human,
			Provider: strings.TrimSpace(seat.Provider),
		})
	}

	created := event.Event{
		MatchID:     matchID,
		Timestamp:   now().UTC(),
		Type:        event.TypeMatchCreated,
		ActorType:   event.ActorTypeSystem,
		Seat:        -1,
		Round:       1,
		Attempt:     1,
		PayloadJSON: event.MustMarshal(payload),
	}

	state := domain.State{}
	state, err = Fold(state, created)
	if err != nil {
		return domain.State{}, nil, err
	}
	return state, []event.Event{created}, nil
}

// Replay folds a journal back into canonical state.
func Replay(events []event.Event) (domain.State, error) {
	var state domain.State
	var err error
	for _, evt := range events {
		state, err = Fold(state, evt)
		if err != nil {
			return domain.State{}, err
		}
	}
	return state, nil
}
