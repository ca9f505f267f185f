package resolve

import (
	"testing"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
)

func TestTeamVoteMajority(t *testing.T) {
	tests := []struct {
		name        string
		ballots     map[int]bool
		playerCount int
		approved    bool
		approvals   int
	}{
		{
			name:        "three of five approve",
			ballots:     map[int]bool{0: true, 1: true, 2: true, 3: false, 4: false},
			playerCount: 5,
			approved:    true,
			approvals:   3,
		},
		{
			name:        "two of five approve",
			ballots:     map[int]bool{0: true, 1: true, 2: false, 3: false, 4: false},
			playerCount: 5,
			approved:    false,
			approvals:   2,
		},
		{
			name:        "even split rejects",
			ballots:     map[int]bool{0: true, 1: true, 2: true, 3: false, 4: false, 5: false},
			playerCount: 6,
			approved:    false,
			approvals:   3,
		},
		{
			name:        "unanimous reject",
			ballots:     map[int]bool{0: false, 1: false, 2: false, 3: false, 4: false},
			playerCount: 5,
			approved:    false,
			approvals:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := TeamVote(tt.ballots, tt.playerCount)
			if tally.Approved != tt.approved {
				t.Fatalf("expected approved=%v, got %v", tt.approved, tally.Approved)
			}
			if tally.Approvals != tt.approvals {
				t.Fatalf("expected %d approvals, got %d", tt.approvals, tally.Approvals)
			}
			if tally.Approvals+tally.Rejections != len(tt.ballots) {
				t.Fatalf("tally does not account for every ballot")
			}
		})
	}
}

func TestQuestThresholds(t *testing.T) {
	tests := []struct {
		name      string
		ballots   map[int]bool
		threshold int
		succeeded bool
		failVotes int
	}{
		{"no fails", map[int]bool{0: true, 1: true}, 1, true, 0},
		{"one fail at threshold one", map[int]bool{0: true, 1: false}, 1, false, 1},
		{"one fail under threshold two", map[int]bool{0: true, 1: false, 2: true, 3: true}, 2, true, 1},
		{"two fails at threshold two", map[int]bool{0: false, 1: false, 2: true, 3: true}, 2, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := Quest(tt.ballots, tt.threshold)
			if tally.Succeeded != tt.succeeded {
				t.Fatalf("expected succeeded=%v, got %v", tt.succeeded, tally.Succeeded)
			}
			if tally.FailVotes != tt.failVotes {
				t.Fatalf("expected %d fail votes, got %d", tt.failVotes, tally.FailVotes)
			}
			if tally.FailThreshold != tt.threshold {
				t.Fatalf("expected threshold %d carried in tally, got %d", tt.threshold, tally.FailThreshold)
			}
		})
	}
}

func TestAssassination(t *testing.T) {
	if out := Assassination(domain.RoleMerlin); !out.TargetWasMerlin || out.Winner != domain.TeamEvil {
		t.Fatalf("expected evil win on Merlin hit, got %+v", out)
	}
	for _, role := range []domain.Role{domain.RoleLoyalServant, domain.RoleAssassin, domain.RoleMinion} {
		if out := Assassination(role); out.TargetWasMerlin || out.Winner != domain.TeamGood {
			t.Fatalf("role %s: expected good win, got %+v", role, out)
		}
	}
}
