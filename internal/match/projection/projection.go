// Package projection derives observer-facing views from canonical match
// state.
//
// A view is a pure function of (state, observer seat); it never mutates state
// and never leaks information the observer is not entitled to. The same
// redaction rules serve human clients, automated decision sources, and
// spectators, so a prompt built from a view can only ever contain what that
// seat may know.
package projection

import (
	"sort"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
)

// Spectator is the observer value for a non-seated viewer. Spectators see
// public information only.
const Spectator = -1

// SeatView is one seat as a given observer sees it.
type SeatView struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Human bool   `json:"human"`
	// Self marks the observer's own seat.
	Self bool `json:"self,omitempty"`
	// Role is set only when the observer may see the exact role: their own
	// seat, a teammate under an evil grant, or any seat once the match ends.
	Role domain.Role `json:"role,omitempty"`
	// KnownEvil marks seats the observer knows to be evil without knowing the
	// role. This is how Merlin's grant surfaces.
	KnownEvil bool `json:"known_evil,omitempty"`
}

// QuestView is one resolved quest as everyone sees it. During play only the
// aggregate tally is exposed; ballot attribution appears once the match ends
// or in a reveal-all view.
type QuestView struct {
	Round         int   `json:"round"`
	Team          []int `json:"team"`
	FailVotes     int   `json:"fail_votes"`
	FailThreshold int   `json:"fail_threshold"`
	Succeeded     *bool `json:"succeeded"`
	// Ballots maps team member seat to success. Set only when the view
	// reveals everything.
	Ballots map[int]bool `json:"ballots,omitempty"`
}

// VoteView is one resolved team-vote attempt. Ballots are public once the
// attempt resolves.
type VoteView struct {
	Round    int          `json:"round"`
	Attempt  int          `json:"attempt"`
	Leader   int          `json:"leader"`
	Team     []int        `json:"team"`
	Ballots  map[int]bool `json:"ballots"`
	Approved bool         `json:"approved"`
}

// EntryView is one discussion contribution.
type EntryView struct {
	Seat    int    `json:"seat"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Round   int    `json:"round"`
	Attempt int    `json:"attempt"`
}

// View is a filtered snapshot of a match for one observer.
type View struct {
	MatchID     string       `json:"match_id"`
	Observer    int          `json:"observer"`
	Phase       domain.Phase `json:"phase"`
	Round       int          `json:"round"`
	Attempt     int          `json:"attempt"`
	Leader      int          `json:"leader"`
	PlayerCount int          `json:"player_count"`
	Players     []SeatView   `json:"players"`

	ProposedTeam []int `json:"proposed_team,omitempty"`
	// VotesSubmitted and QuestBallotsSubmitted list seats whose ballot for
	// the open decision point is in. The ballots themselves stay hidden until
	// resolution.
	VotesSubmitted        []int `json:"votes_submitted,omitempty"`
	QuestBallotsSubmitted []int `json:"quest_ballots_submitted,omitempty"`

	Quests     []QuestView `json:"quests"`
	Votes      []VoteView  `json:"votes"`
	Discussion []EntryView `json:"discussion"`
	// AssassinationDiscussion is present only for evil observers or once the
	// match ends.
	AssassinationDiscussion []EntryView `json:"assassination_discussion,omitempty"`

	Assassinated *int           `json:"assassinated,omitempty"`
	Winner       domain.Team    `json:"winner,omitempty"`
	Outcome      domain.Outcome `json:"outcome"`
}

// Project builds the view of state for an observer seat. Pass Spectator for
// a non-seated viewer. Projection is deterministic: the same state and
// observer always yield an identical view, so snapshots can be diffed or
// re-sent without coordination.
func Project(state domain.State, observer int) View {
	return project(state, observer, state.Phase.Terminal())
}

// RevealAll builds the unredacted view for a privileged observer: every role
// and every quest ballot is visible regardless of phase. Match clients never
// receive this view; it serves audit and debug surfaces.
func RevealAll(state domain.State, observer int) View {
	return project(state, observer, true)
}

func project(state domain.State, observer int, revealAll bool) View {
	observerEvil := false
	if p := state.PlayerAt(observer); p != nil && p.Role != "" {
		observerEvil = p.Role.IsEvil()
	}
	grant, hasGrant := state.Grants[observer]

	view := View{
		MatchID:     state.ID,
		Observer:    observer,
		Phase:       state.Phase,
		Round:       state.Round,
		Attempt:     state.Attempt,
		Leader:      state.Leader,
		PlayerCount: state.PlayerCount,
		Outcome:     state.Outcome,
		Winner:      state.Winner,
	}

	for _, p := range state.Players {
		seat := SeatView{Seat: p.Seat, Name: p.Name, Human: p.Human, Self: p.Seat == observer}
		switch {
		case p.Role == "":
			// Roles not dealt yet.
		case revealAll || p.Seat == observer:
			seat.Role = p.Role
		case hasGrant && grant.Includes(p.Seat):
			if grant.RolesVisible {
				seat.Role = p.Role
			} else {
				seat.KnownEvil = true
			}
		}
		view.Players = append(view.Players, seat)
	}

	view.ProposedTeam = append([]int(nil), state.ProposedTeam...)
	view.VotesSubmitted = sortedSeats(state.PendingVotes)
	view.QuestBallotsSubmitted = sortedSeats(state.PendingQuest)

	for _, q := range state.Quests {
		var succeeded *bool
		if q.Succeeded != nil {
			v := *q.Succeeded
			succeeded = &v
		}
		qv := QuestView{
			Round:         q.Round,
			Team:          append([]int(nil), q.Team...),
			FailVotes:     q.FailVotes,
			FailThreshold: q.FailThreshold,
			Succeeded:     succeeded,
		}
		if revealAll && len(q.Ballots) > 0 {
			qv.Ballots = make(map[int]bool, len(q.Ballots))
			for seat, success := range q.Ballots {
				qv.Ballots[seat] = success
			}
		}
		view.Quests = append(view.Quests, qv)
	}

	for _, v := range state.Votes {
		ballots := make(map[int]bool, len(v.Ballots))
		for seat, approve := range v.Ballots {
			ballots[seat] = approve
		}
		view.Votes = append(view.Votes, VoteView{
			Round:    v.Round,
			Attempt:  v.Attempt,
			Leader:   v.Leader,
			Team:     append([]int(nil), v.Team...),
			Ballots:  ballots,
			Approved: v.Approved,
		})
	}

	for _, entry := range state.Discussion {
		view.Discussion = append(view.Discussion, entryView(entry))
	}
	if observerEvil || revealAll {
		for _, entry := range state.AssassinationDiscussion {
			view.AssassinationDiscussion = append(view.AssassinationDiscussion, entryView(entry))
		}
	}

	if state.Assassinated != nil {
		target := *state.Assassinated
		view.Assassinated = &target
	}
	return view
}

func entryView(entry domain.Entry) EntryView {
	return EntryView{
		Seat:    entry.Seat,
		Name:    entry.Name,
		Content: entry.Content,
		Round:   entry.Round,
		Attempt: entry.Attempt,
	}
}

func sortedSeats(ballots map[int]bool) []int {
	if len(ballots) == 0 {
		return nil
	}
	seats := make([]int, 0, len(ballots))
	for seat := range ballots {
		seats = append(seats, seat)
	}
	sort.Ints(seats)
	return seats
}
