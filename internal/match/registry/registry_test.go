package registry

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/avalon.arena/internal/decision"
	"github.com/louisbranch/avalon.arena/internal/match/command"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/engine"
	"github.com/louisbranch/avalon.arena/internal/match/supervisor"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
	"github.com/louisbranch/avalon.arena/internal/storage/memory"
)

type autoSource struct{}

func (autoSource) Decide(_ context.Context, req decision.Request) (decision.Action, error) {
	switch req.Kind {
	case decision.KindProposeTeam:
		team := make([]int, req.TeamSize)
		for i := range team {
			team[i] = i
		}
		return decision.Action{Team: team}, nil
	case decision.KindTeamVote:
		return decision.Action{Approve: true}, nil
	case decision.KindQuestVote:
		return decision.Action{Success: true}, nil
	case decision.KindAssassinate:
		return decision.Action{Target: 1}, nil
	}
	return decision.Action{}, nil
}

func autoFactory(domain.Player) decision.Source { return autoSource{} }

func testInput() engine.CreateInput {
	input := engine.CreateInput{PlayerCount: 5}
	for i := 0; i < 5; i++ {
		input.Seats = append(input.Seats, engine.SeatConfig{
			Seat: i, Name: "p" + string(rune('0'+i)), Provider: "scripted",
		})
	}
	return input
}

func fixedShuffle(roles []domain.Role) {
	copy(roles, []domain.Role{
		domain.RoleMerlin,
		domain.RoleLoyalServant,
		domain.RoleLoyalServant,
		domain.RoleAssassin,
		domain.RoleMinion,
	})
}

func waitTerminal(t *testing.T, sup *supervisor.Supervisor) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if sup.View(-1).Phase.Terminal() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("match %s never finished", sup.MatchID())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCreateRunsMatchToCompletion(t *testing.T) {
	store := memory.NewStore()
	reg := New(store, supervisor.Config{
		DecisionTimeout: time.Second,
		ShuffleRoles:    fixedShuffle,
	}, autoFactory)

	sup, err := reg.Create(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitTerminal(t, sup)

	got, err := reg.Get(sup.MatchID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.View(-1).Outcome != domain.OutcomeGoodWin {
		t.Fatalf("expected good win, got %s", got.View(-1).Outcome)
	}

	records, err := reg.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].ID != sup.MatchID() {
		t.Fatalf("expected one indexed match, got %+v", records)
	}

	if _, err := reg.Get("missing"); !apperrors.Is(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	reg.Shutdown()
}

func TestRestoreRegistersTerminalMatches(t *testing.T) {
	store := memory.NewStore()

	first := New(store, supervisor.Config{
		DecisionTimeout: time.Second,
		ShuffleRoles:    fixedShuffle,
	}, autoFactory)
	sup, err := first.Create(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	waitTerminal(t, sup)
	first.Shutdown()
	matchID := sup.MatchID()

	// A fresh registry over the same journal resolves the finished match
	// without restarting its loop.
	second := New(store, supervisor.Config{
		DecisionTimeout: time.Second,
		ShuffleRoles:    fixedShuffle,
	}, autoFactory)
	if err := second.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := second.Get(matchID)
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	view := restored.View(-1)
	if !view.Phase.Terminal() || view.Outcome != domain.OutcomeGoodWin {
		t.Fatalf("restored match lost its terminal state: %+v", view)
	}
	// Terminal restores reveal all roles to any observer.
	for _, p := range view.Players {
		if p.Role == "" {
			t.Fatalf("terminal restore must reveal roles: %+v", p)
		}
	}
	second.Shutdown()
}

func TestRestoreResumesUnfinishedMatches(t *testing.T) {
	store := memory.NewStore()

	// Journal a match that stopped mid-flight by writing its opening events
	// directly, as if the process died after role assignment.
	state, created, err := engine.NewMatch(testInput(), nil, nil)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	if _, err := store.AppendEvents(context.Background(), state.ID, created); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	start, err := command.New(command.TypeStart, state.ID, -1, command.StartPayload{
		RoleOrder: []string{"merlin", "loyal_servant", "loyal_servant", "assassin", "minion"},
	})
	if err != nil {
		t.Fatalf("build start: %v", err)
	}
	decided := engine.Decide(state, start, nil)
	if decided.Rejected() {
		t.Fatalf("start rejected: %+v", decided.Rejections)
	}
	if _, err := store.AppendEvents(context.Background(), state.ID, decided.Events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	matchID := state.ID

	resumed := New(store, supervisor.Config{
		DecisionTimeout: time.Second,
		ShuffleRoles:    fixedShuffle,
	}, autoFactory)
	if err := resumed.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	restoredSup, err := resumed.Get(matchID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	waitTerminal(t, restoredSup)
	resumed.Shutdown()
}
