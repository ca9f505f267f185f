package projection

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
)

func testState() domain.State {
	players := []domain.Player{
		{Seat: 0, Name: "ana", Human: true, Role: domain.RoleMerlin},
		{Seat: 1, Name: "bo", Provider: "scripted", Role: domain.RoleLoyalServant},
		{Seat: 2, Name: "cy", Provider: "scripted", Role: domain.RoleLoyalServant},
		{Seat: 3, Name: "dee", Provider: "scripted", Role: domain.RoleAssassin},
		{Seat: 4, Name: "eli", Provider: "scripted", Role: domain.RoleMinion},
	}
	succeeded := true
	return domain.State{
		ID:           "m1",
		PlayerCount:  5,
		Players:      players,
		Phase:        domain.PhaseTeamVote,
		Round:        2,
		Attempt:      1,
		Leader:       1,
		Grants:       domain.KnowledgeGrants(players),
		ProposedTeam: []int{1, 3, 4},
		PendingVotes: map[int]bool{0: true, 3: false},
		Quests: []domain.QuestRound{{
			Round:         1,
			TeamSize:      2,
			Team:          []int{0, 1},
			Ballots:       map[int]bool{0: true, 1: true},
			FailThreshold: 1,
			Succeeded:     &succeeded,
		}},
		Votes: []domain.VoteRecord{{
			Round: 1, Attempt: 1, Leader: 0, Team: []int{0, 1},
			Ballots: map[int]bool{0: true, 1: true, 2: true, 3: false, 4: false}, Approved: true,
		}},
		Discussion: []domain.Entry{
			{Seat: 0, Name: "ana", Content: "I like this team", Round: 1, Attempt: 1, Timestamp: time.Unix(100, 0)},
		},
		AssassinationDiscussion: []domain.Entry{
			{Seat: 3, Name: "dee", Content: "watch seat 0", Round: 2, Attempt: 1, Timestamp: time.Unix(200, 0)},
		},
		Outcome: domain.OutcomeInProgress,
	}
}

func roleOf(t *testing.T, view View, seat int) SeatView {
	t.Helper()
	for _, p := range view.Players {
		if p.Seat == seat {
			return p
		}
	}
	t.Fatalf("seat %d missing from view", seat)
	return SeatView{}
}

func TestMerlinSeesEvilWithoutRoles(t *testing.T) {
	view := Project(testState(), 0)

	if got := roleOf(t, view, 0); got.Role != domain.RoleMerlin || !got.Self {
		t.Fatalf("observer must see own role, got %+v", got)
	}
	for _, seat := range []int{3, 4} {
		got := roleOf(t, view, seat)
		if got.Role != "" {
			t.Fatalf("merlin must not see exact role of seat %d, got %s", seat, got.Role)
		}
		if !got.KnownEvil {
			t.Fatalf("merlin must know seat %d is evil", seat)
		}
	}
	if got := roleOf(t, view, 1); got.Role != "" || got.KnownEvil {
		t.Fatalf("merlin must know nothing about loyal seats, got %+v", got)
	}
}

func TestEvilSeesTeammateRoles(t *testing.T) {
	view := Project(testState(), 3)

	if got := roleOf(t, view, 4); got.Role != domain.RoleMinion {
		t.Fatalf("evil observer must see teammate role, got %+v", got)
	}
	if got := roleOf(t, view, 0); got.Role != "" || got.KnownEvil {
		t.Fatalf("evil observer must not identify merlin, got %+v", got)
	}
}

func TestLoyalAndSpectatorSeeNoRoles(t *testing.T) {
	for _, observer := range []int{2, Spectator} {
		view := Project(testState(), observer)
		for _, p := range view.Players {
			if p.Seat == observer {
				continue
			}
			if p.Role != "" || p.KnownEvil {
				t.Fatalf("observer %d must see nothing for seat %d, got %+v", observer, p.Seat, p)
			}
		}
	}
}

func TestTerminalRevealsEverything(t *testing.T) {
	state := testState()
	state.Phase = domain.PhaseGameOver
	state.Outcome = domain.OutcomeGoodWin
	state.Winner = domain.TeamGood

	view := Project(state, Spectator)
	for _, p := range view.Players {
		if p.Role == "" {
			t.Fatalf("terminal view must reveal role for seat %d", p.Seat)
		}
	}
	if len(view.AssassinationDiscussion) != 1 {
		t.Fatalf("terminal view must include the evil discussion")
	}
	if len(view.Quests) != 1 || len(view.Quests[0].Ballots) != 2 {
		t.Fatalf("terminal view must attribute quest ballots, got %+v", view.Quests)
	}
}

func TestPendingBallotsAreHidden(t *testing.T) {
	view := Project(testState(), 0)

	want := []int{0, 3}
	if len(view.VotesSubmitted) != len(want) || view.VotesSubmitted[0] != 0 || view.VotesSubmitted[1] != 3 {
		t.Fatalf("expected submitted seats %v, got %v", want, view.VotesSubmitted)
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	// Resolved attempt ballots are public; the open attempt's ballot values
	// must not appear anywhere in the serialized view.
	if bytes.Contains(data, []byte(`"pending`)) {
		t.Fatalf("view leaks pending ballot structure: %s", data)
	}
}

func TestQuestBallotsHiddenDuringPlay(t *testing.T) {
	for _, observer := range []int{0, 1, 3, Spectator} {
		view := Project(testState(), observer)
		if len(view.Quests) != 1 {
			t.Fatalf("observer %d: expected 1 quest, got %d", observer, len(view.Quests))
		}
		data, err := json.Marshal(view.Quests[0])
		if err != nil {
			t.Fatalf("marshal quest view: %v", err)
		}
		if bytes.Contains(data, []byte("ballots")) {
			t.Fatalf("observer %d: quest view exposes ballots: %s", observer, data)
		}
	}
}

func TestRevealAllExposesEverythingMidMatch(t *testing.T) {
	state := testState()

	view := RevealAll(state, Spectator)
	if view.Phase.Terminal() {
		t.Fatalf("reveal-all must not change the phase, got %s", view.Phase)
	}
	for _, p := range view.Players {
		if p.Role == "" {
			t.Fatalf("reveal-all view must show role for seat %d", p.Seat)
		}
	}
	if len(view.AssassinationDiscussion) != 1 {
		t.Fatalf("reveal-all view must include the evil discussion")
	}
	if len(view.Quests) != 1 {
		t.Fatalf("expected 1 quest, got %d", len(view.Quests))
	}
	ballots := view.Quests[0].Ballots
	if len(ballots) != 2 || !ballots[0] || !ballots[1] {
		t.Fatalf("reveal-all view must attribute quest ballots, got %v", ballots)
	}

	// The revealed ballots are a copy, not an alias of state.
	ballots[0] = false
	if !state.Quests[0].Ballots[0] {
		t.Fatalf("reveal-all view aliased quest ballots")
	}
}

func TestEvilDiscussionVisibility(t *testing.T) {
	state := testState()

	for _, observer := range []int{0, 1, 2, Spectator} {
		if view := Project(state, observer); len(view.AssassinationDiscussion) != 0 {
			t.Fatalf("observer %d must not see the evil discussion", observer)
		}
	}
	for _, observer := range []int{3, 4} {
		view := Project(state, observer)
		if len(view.AssassinationDiscussion) != 1 || view.AssassinationDiscussion[0].Content != "watch seat 0" {
			t.Fatalf("evil observer %d must see the evil discussion, got %+v", observer, view.AssassinationDiscussion)
		}
	}
}

func TestProjectionIsDeterministic(t *testing.T) {
	state := testState()
	first, err := json.Marshal(Project(state, 3))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Project(state, 3))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("projection is not byte-stable:\n%s\n%s", first, second)
	}
}

func TestProjectionDoesNotMutateState(t *testing.T) {
	state := testState()
	view := Project(state, 0)
	view.Players[1].Role = domain.RoleAssassin
	view.ProposedTeam[0] = 99
	view.Quests[0].Team[0] = 99

	if state.Players[1].Role != domain.RoleLoyalServant {
		t.Fatalf("projection aliased player roster")
	}
	if state.ProposedTeam[0] != 1 || state.Quests[0].Team[0] != 0 {
		t.Fatalf("projection aliased state slices")
	}
}
