package event

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
)

// SeatConfig is one seat's roster entry in the created payload.
type SeatConfig struct {
	Seat     int    `json:"seat"`
	Name     string `json:"name"`
	Human    bool   `json:"human"`
	Provider string `json:"provider,omitempty"`
}

// MatchCreatedPayload accompanies TypeMatchCreated.
type MatchCreatedPayload struct {
	PlayerCount int          `json:"player_count"`
	Seats       []SeatConfig `json:"seats"`
}

// RolesAssignedPayload accompanies TypeRolesAssigned. Roles are listed in
// seat order. The payload is part of the canonical record; observer-facing
// redaction happens in projection, never here.
type RolesAssignedPayload struct {
	Roles []domain.Role `json:"roles"`
}

// NightCompletedPayload accompanies TypeNightCompleted with the per-seat
// knowledge grants delivered during the night phase.
type NightCompletedPayload struct {
	Grants map[int]domain.Grant `json:"grants"`
}

// PhaseChangedPayload accompanies TypePhaseChanged.
type PhaseChangedPayload struct {
	From    domain.Phase `json:"from"`
	To      domain.Phase `json:"to"`
	Round   int          `json:"round"`
	Attempt int          `json:"attempt"`
	Leader  int          `json:"leader"`
}

// TeamProposedPayload accompanies TypeTeamProposed.
type TeamProposedPayload struct {
	Leader int   `json:"leader"`
	Team   []int `json:"team"`
}

// StatementPayload accompanies both statement event types.
type StatementPayload struct {
	Seat    int    `json:"seat"`
	Content string `json:"content"`
}

// VoteCastPayload accompanies TypeVoteCast.
type VoteCastPayload struct {
	Seat    int  `json:"seat"`
	Approve bool `json:"approve"`
}

// VoteResolvedPayload accompanies TypeVoteResolved with the full tally.
type VoteResolvedPayload struct {
	Round      int          `json:"round"`
	Attempt    int          `json:"attempt"`
	Leader     int          `json:"leader"`
	Team       []int        `json:"team"`
	Ballots    map[int]bool `json:"ballots"`
	Approvals  int          `json:"approvals"`
	Rejections int          `json:"rejections"`
	Approved   bool         `json:"approved"`
	// Exhausted marks the fifth rejected attempt of a round.
	Exhausted bool `json:"exhausted,omitempty"`
}

// QuestVoteCastPayload accompanies TypeQuestVoteCast. The ballot itself is
// private information; projections expose only resolved fail counts.
type QuestVoteCastPayload struct {
	Seat    int  `json:"seat"`
	Success bool `json:"success"`
}

// QuestResolvedPayload accompanies TypeQuestResolved with the full tally.
type QuestResolvedPayload struct {
	Round         int          `json:"round"`
	Team          []int        `json:"team"`
	Ballots       map[int]bool `json:"ballots"`
	FailVotes     int          `json:"fail_votes"`
	FailThreshold int          `json:"fail_threshold"`
	Succeeded     bool         `json:"succeeded"`
}

// AssassinationResolvedPayload accompanies TypeAssassinationResolved.
type AssassinationResolvedPayload struct {
	Assassin        int  `json:"assassin"`
	Target          int  `json:"target"`
	TargetWasMerlin bool `json:"target_was_merlin"`
}

// MatchEndedPayload accompanies TypeMatchEnded.
type MatchEndedPayload struct {
	Winner  domain.Team    `json:"winner"`
	Outcome domain.Outcome `json:"outcome"`
	Reason  string         `json:"reason"`
}

// MatchAbortedPayload accompanies TypeMatchAborted.
type MatchAbortedPayload struct {
	Reason string `json:"reason"`
}

// Unmarshal decodes an event payload into target, reporting the event type
// on failure.
func Unmarshal(evt Event, target any) error {
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", evt.Type, err)
	}
	return nil
}

// MustMarshal encodes a payload for an event under construction. Payload
// types are plain data; marshalling them cannot fail at runtime.
func MustMarshal(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("marshal event payload: %v", err))
	}
	return data
}
