package domain

import "time"

// Outcome is the terminal result of a match.
type Outcome string

const (
	// OutcomeInProgress means the match has not reached a terminal phase.
	OutcomeInProgress Outcome = "in_progress"
	// OutcomeGoodWin and OutcomeEvilWin are rules-based results.
	OutcomeGoodWin Outcome = "good_win"
	OutcomeEvilWin Outcome = "evil_win"
	// OutcomeAbandoned marks a match ended without a rules-based winner
	// (operator abort, permanent disconnect, or a consistency violation).
	OutcomeAbandoned Outcome = "abandoned"
)

// Player is one fixed seat in a match. Seat index and role are immutable for
// the lifetime of the match once assigned.
type Player struct {
	// Seat is the 0-based stable seat index.
	Seat int
	// Name is the display name.
	Name string
	// Human marks seats driven by an external human channel rather than an
	// automated decision source.
	Human bool
	// Provider identifies the automated decision provider for non-human seats.
	Provider string
	// Role is assigned once during role assignment and never changes.
	Role Role
}

// QuestRound is one resolved (or in-flight) quest.
type QuestRound struct {
	Round    int
	TeamSize int
	Team     []int
	// Ballots maps team member seat to success. Attribution stays hidden
	// during play and surfaces only once the match ends or in reveal-all
	// views.
	Ballots       map[int]bool
	FailVotes     int
	FailThreshold int
	// Succeeded is nil until the round resolves.
	Succeeded *bool
}

// VoteRecord is one resolved team-vote attempt.
type VoteRecord struct {
	Round   int
	Attempt int
	Leader  int
	Team    []int
	// Ballots maps seat to approve. Ballots are public once resolved.
	Ballots  map[int]bool
	Approved bool
}

// Entry is a discussion or assassination-discussion contribution.
type Entry struct {
	Seat      int
	Name      string
	Content   string
	Round     int
	Attempt   int
	Timestamp time.Time
}

// State is the canonical state of one match. Exactly one State instance is
// canonical per match; every observer view derives from it without mutation.
type State struct {
	ID          string
	PlayerCount int
	Players     []Player
	Phase       Phase

	Round   int
	Leader  int
	Attempt int

	// Grants holds the night-phase knowledge grants keyed by observer seat.
	Grants map[int]Grant

	ProposedTeam []int
	// PendingVotes and PendingQuest hold ballots for the open decision point.
	PendingVotes map[int]bool
	PendingQuest map[int]bool

	Quests     []QuestRound
	Votes      []VoteRecord
	Discussion []Entry
	// AssassinationDiscussion is visible only to evil observers.
	AssassinationDiscussion []Entry

	Assassinated *int
	Winner       Team
	Outcome      Outcome
	// AbortReason is set only for abandoned outcomes.
	AbortReason string

	CreatedAt time.Time
	EndedAt   *time.Time
}

// PlayerAt returns the player at a seat, or nil when the seat is out of range.
func (s *State) PlayerAt(seat int) *Player {
	if seat < 0 || seat >= len(s.Players) {
		return nil
	}
	return &s.Players[seat]
}

// EvilSeats returns the seats on the evil team in seat order.
func (s *State) EvilSeats() []int {
	var seats []int
	for _, p := range s.Players {
		if p.Role != "" && p.Role.IsEvil() {
			seats = append(seats, p.Seat)
		}
	}
	return seats
}

// AssassinSeat returns the assassin's seat, or -1 before roles are assigned.
func (s *State) AssassinSeat() int {
	for _, p := range s.Players {
		if p.Role == RoleAssassin {
			return p.Seat
		}
	}
	return -1
}

// SucceededQuests counts resolved successful rounds.
func (s *State) SucceededQuests() int {
	n := 0
	for _, q := range s.Quests {
		if q.Succeeded != nil && *q.Succeeded {
			n++
		}
	}
	return n
}

// FailedQuests counts resolved failed rounds.
func (s *State) FailedQuests() int {
	n := 0
	for _, q := range s.Quests {
		if q.Succeeded != nil && !*q.Succeeded {
			n++
		}
	}
	return n
}

// OnProposedTeam reports whether a seat is on the currently proposed team.
func (s *State) OnProposedTeam(seat int) bool {
	for _, member := range s.ProposedTeam {
		if member == seat {
			return true
		}
	}
	return false
}

// NextLeader returns the seat holding leadership after one rotation.
func (s *State) NextLeader() int {
	if s.PlayerCount == 0 {
		return 0
	}
	return (s.Leader + 1) % s.PlayerCount
}

// Clone returns a deep copy of the state. Observer projections and snapshots
// operate on clones so the canonical instance is never shared.
func (s *State) Clone() State {
	out := *s
	out.Players = append([]Player(nil), s.Players...)
	if s.Grants != nil {
		out.Grants = make(map[int]Grant, len(s.Grants))
		for seat, g := range s.Grants {
			g.Seats = append([]int(nil), g.Seats...)
			out.Grants[seat] = g
		}
	}
	out.ProposedTeam = append([]int(nil), s.ProposedTeam...)
	out.PendingVotes = cloneBallots(s.PendingVotes)
	out.PendingQuest = cloneBallots(s.PendingQuest)
	out.Discussion = append([]Entry(nil), s.Discussion...)
	out.AssassinationDiscussion = append([]Entry(nil), s.AssassinationDiscussion...)
	out.Votes = make([]VoteRecord, len(s.Votes))
	for i, v := range s.Votes {
		v.Team = append([]int(nil), v.Team...)
		v.Ballots = cloneBallots(v.Ballots)
		out.Votes[i] = v
	}
	out.Quests = make([]QuestRound, len(s.Quests))
	for i, q := range s.Quests {
		q.Team = append([]int(nil), q.Team...)
		q.Ballots = cloneBallots(q.Ballots)
		if q.Succeeded != nil {
			succeeded := *q.Succeeded
			q.Succeeded = &succeeded
		}
		out.Quests[i] = q
	}
	if s.Assassinated != nil {
		seat := *s.Assassinated
		out.Assassinated = &seat
	}
	if s.EndedAt != nil {
		ended := *s.EndedAt
		out.EndedAt = &ended
	}
	return out
}

func cloneBallots(in map[int]bool) map[int]bool {
	if in == nil {
		return nil
	}
	out := make(map[int]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
