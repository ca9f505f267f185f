// Package command defines the command envelope and decision contract for the
// match write path.
//
// Commands express intent from the supervisor (on behalf of a seat or the
// engine itself). Deciders evaluate them against replayed state and return
// either events or rejections; commands themselves never mutate anything.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/avalon.arena/internal/match/event"
)

// Type identifies a command.
type Type string

const (
	// TypeStart assigns roles and opens the match.
	TypeStart Type = "match.start"
	// TypeProposeTeam submits the leader's team for the current attempt.
	TypeProposeTeam Type = "team.propose"
	// TypeStatement submits a public discussion statement.
	TypeStatement Type = "discussion.statement"
	// TypeCloseDiscussion closes the current collection window.
	TypeCloseDiscussion Type = "discussion.close"
	// TypeCastVote submits one seat's team-vote ballot.
	TypeCastVote Type = "vote.cast"
	// TypeCastQuestVote submits one team member's quest ballot.
	TypeCastQuestVote Type = "quest.cast"
	// TypeEvilStatement submits an assassination-discussion statement.
	TypeEvilStatement Type = "assassination.statement"
	// TypeCloseEvilDiscussion closes the assassination discussion window.
	TypeCloseEvilDiscussion Type = "assassination.close"
	// TypeAssassinate submits the assassin's target.
	TypeAssassinate Type = "assassination.target"
	// TypeAbort abandons the match.
	TypeAbort Type = "match.abort"
)

// Command is the envelope evaluated by the decider.
type Command struct {
	Type    Type
	MatchID string
	// Seat is the acting seat; -1 for engine-initiated commands.
	Seat int
	// Defaulted marks commands synthesized by the timeout policy.
	Defaulted   bool
	PayloadJSON []byte
}

// Decision represents the pure outcome of handling a command.
type Decision struct {
	Events     []event.Event
	Rejections []Rejection
}

// Rejection captures a domain-level reason a command was declined.
type Rejection struct {
	Code    string
	Message string
}

// Accept returns a decision that emits the provided events.
func Accept(events ...event.Event) Decision {
	return Decision{Events: append([]event.Event(nil), events...)}
}

// Reject returns a decision that carries the provided rejections.
func Reject(rejections ...Rejection) Decision {
	return Decision{Rejections: append([]Rejection(nil), rejections...)}
}

// Rejected reports whether the decision declined the command.
func (d Decision) Rejected() bool {
	return len(d.Rejections) > 0
}

// New builds a command with a marshalled payload.
func New(cmdType Type, matchID string, seat int, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, fmt.Errorf("marshal %s payload: %w", cmdType, err)
	}
	return Command{Type: cmdType, MatchID: matchID, Seat: seat, PayloadJSON: data}, nil
}

// StartPayload accompanies TypeStart. RoleOrder is the shuffled role
// permutation to deal in seat order; supplying it in the payload keeps the
// decider deterministic and the assignment replayable.
type StartPayload struct {
	RoleOrder []string `json:"role_order"`
}

// ProposeTeamPayload accompanies TypeProposeTeam. Statement optionally
// carries the leader's public remark alongside the proposal.
type ProposeTeamPayload struct {
	Team      []int  `json:"team"`
	Statement string `json:"statement,omitempty"`
}

// StatementPayload accompanies TypeStatement and TypeEvilStatement.
type StatementPayload struct {
	Content string `json:"content"`
}

// CastVotePayload accompanies TypeCastVote.
type CastVotePayload struct {
	Approve bool `json:"approve"`
}

// CastQuestVotePayload accompanies TypeCastQuestVote.
type CastQuestVotePayload struct {
	Success bool `json:"success"`
}

// AssassinatePayload accompanies TypeAssassinate.
type AssassinatePayload struct {
	Target int `json:"target"`
}

// AbortPayload accompanies TypeAbort.
type AbortPayload struct {
	Reason string `json:"reason"`
}
