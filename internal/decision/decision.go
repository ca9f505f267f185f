// Package decision defines the contract between the match supervisor and the
// things that make choices for seats.
//
// A Source answers one decision request at a time for one seat. The
// supervisor does not care whether a source is a connected human, a scripted
// test double, or a language-model provider; it only sees the contract. A
// request carries the observer-filtered view, so a source can never act on
// information its seat is not entitled to.
package decision

import (
	"context"

	"github.com/louisbranch/avalon.arena/internal/match/projection"
)

// Kind identifies what choice a request asks for.
type Kind string

const (
	// KindProposeTeam asks the leader for a quest team.
	KindProposeTeam Kind = "propose_team"
	// KindStatement asks for an optional discussion statement.
	KindStatement Kind = "statement"
	// KindTeamVote asks for an approve/reject ballot.
	KindTeamVote Kind = "team_vote"
	// KindQuestVote asks a team member for a success/fail ballot.
	KindQuestVote Kind = "quest_vote"
	// KindEvilStatement asks an evil seat for an assassination-discussion
	// statement.
	KindEvilStatement Kind = "evil_statement"
	// KindAssassinate asks the assassin for a target seat.
	KindAssassinate Kind = "assassinate"
)

// Request is one decision put to a source.
type Request struct {
	Kind    Kind
	MatchID string
	Seat    int
	// View is the filtered snapshot for the deciding seat.
	View projection.View
	// TeamSize is set for KindProposeTeam.
	TeamSize int
}

// Action is a source's answer. Only the fields relevant to the request kind
// are read; the supervisor validates everything again through the engine.
type Action struct {
	// Team answers KindProposeTeam.
	Team []int `json:"team,omitempty"`
	// Statement answers KindStatement and KindEvilStatement, and optionally
	// accompanies a team proposal. Empty means the seat passes.
	Statement string `json:"statement,omitempty"`
	// Approve answers KindTeamVote.
	Approve bool `json:"approve,omitempty"`
	// Success answers KindQuestVote.
	Success bool `json:"success,omitempty"`
	// Target answers KindAssassinate.
	Target int `json:"target,omitempty"`
}

// Source produces actions for one seat. Decide blocks until the source
// answers or ctx is done; the supervisor owns timeouts and defaults.
type Source interface {
	Decide(ctx context.Context, req Request) (Action, error)
}
