// Package event defines the canonical event envelope for the match journal.
//
// Events are immutable facts emitted by accepted decisions. The ordered
// per-match journal is sufficient to reconstruct full match history and to
// regenerate any past filtered snapshot.
package event

import "time"

// Type identifies the type of a match event.
type Type string

// Match lifecycle events.
const (
	// TypeMatchCreated records match creation and the seat roster.
	TypeMatchCreated Type = "match.created"
	// TypeRolesAssigned records the full role assignment.
	TypeRolesAssigned Type = "match.roles_assigned"
	// TypeNightCompleted records delivery of the night-phase knowledge grants.
	TypeNightCompleted Type = "match.night_completed"
	// TypeMatchEnded records the terminal rules-based result.
	TypeMatchEnded Type = "match.ended"
	// TypeMatchAborted records an abandoned terminal outcome.
	TypeMatchAborted Type = "match.aborted"
)

// Phase and decision events.
const (
	// TypePhaseChanged records a phase transition.
	TypePhaseChanged Type = "phase.changed"
	// TypeTeamProposed records the leader's team proposal for an attempt.
	TypeTeamProposed Type = "team.proposed"
	// TypeStatementAdded records a public discussion entry.
	TypeStatementAdded Type = "discussion.statement_added"
	// TypeEvilStatementAdded records an assassination-discussion entry,
	// visible only to evil observers.
	TypeEvilStatementAdded Type = "discussion.evil_statement_added"
	// TypeVoteCast records one seat's team-vote ballot.
	TypeVoteCast Type = "vote.cast"
	// TypeVoteResolved records a team-vote tally.
	TypeVoteResolved Type = "vote.resolved"
	// TypeQuestVoteCast records one team member's quest ballot.
	TypeQuestVoteCast Type = "quest.vote_cast"
	// TypeQuestResolved records a quest tally.
	TypeQuestResolved Type = "quest.resolved"
	// TypeAssassinationResolved records the assassin's pick and its effect.
	TypeAssassinationResolved Type = "assassination.resolved"
)

// ActorType identifies who or what produced an event.
type ActorType string

const (
	// ActorTypeSystem marks events produced by the engine itself.
	ActorTypeSystem ActorType = "system"
	// ActorTypeSeat marks events produced by a seat's decision.
	ActorTypeSeat ActorType = "seat"
)

// Event represents an immutable event in the per-match journal.
type Event struct {
	// MatchID is the match this event belongs to.
	MatchID string
	// Seq is the event sequence number within the match (starts at 1).
	// Assigned by storage on append; zero until then.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// ActorType identifies who produced the event.
	ActorType ActorType
	// Seat is the acting seat for seat events, -1 for system events.
	Seat int
	// Round and Attempt locate the event in match progress.
	Round   int
	Attempt int
	// Defaulted marks actions applied by the timeout policy rather than a
	// participant decision.
	Defaulted bool
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}
