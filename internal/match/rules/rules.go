// Package rules holds the static rule tables for the hidden-role game.
//
// Everything here is a pure lookup keyed by player count. The tables are the
// single source of truth for role composition, quest team sizes, and fail
// thresholds; no other package hardcodes these numbers.
package rules

import (
	"strconv"

	"github.com/louisbranch/avalon.arena/internal/match/domain"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// Rounds is the fixed number of quest rounds in a match.
const Rounds = 5

// MaxVoteAttempts is the number of rejected team votes in a single round
// after which evil wins by exhaustion.
const MaxVoteAttempts = 5

// Rules is the configuration for a specific player count.
type Rules struct {
	PlayerCount int
	GoodCount   int
	EvilCount   int
	// TeamSizes holds the required quest team size per round, index 0 = round 1.
	TeamSizes [Rounds]int
	// TwoFailRounds marks rounds that need two fail votes to fail the quest.
	TwoFailRounds [Rounds]bool
}

var tables = map[int]Rules{
	5:  {PlayerCount: 5, GoodCount: 3, EvilCount: 2, TeamSizes: [Rounds]int{2, 3, 2, 3, 3}},
	6:  {PlayerCount: 6, GoodCount: 4, EvilCount: 2, TeamSizes: [Rounds]int{2, 3, 4, 3, 4}},
	7:  {PlayerCount: 7, GoodCount: 4, EvilCount: 3, TeamSizes: [Rounds]int{2, 3, 3, 4, 4}, TwoFailRounds: [Rounds]bool{false, false, false, true, false}},
	8:  {PlayerCount: 8, GoodCount: 5, EvilCount: 3, TeamSizes: [Rounds]int{3, 4, 4, 5, 5}, TwoFailRounds: [Rounds]bool{false, false, false, true, false}},
	9:  {PlayerCount: 9, GoodCount: 6, EvilCount: 3, TeamSizes: [Rounds]int{3, 4, 4, 5, 5}, TwoFailRounds: [Rounds]bool{false, false, false, true, false}},
	10: {PlayerCount: 10, GoodCount: 6, EvilCount: 4, TeamSizes: [Rounds]int{3, 4, 4, 5, 5}, TwoFailRounds: [Rounds]bool{false, false, false, true, false}},
}

// ForPlayerCount returns the rules for a player count, or a configuration
// error when the count is outside [5,10].
func ForPlayerCount(playerCount int) (Rules, error) {
	r, ok := tables[playerCount]
	if !ok {
		return Rules{}, apperrors.WithMetadata(
			apperrors.CodeMatchPlayerCountInvalid,
			"player count must be between 5 and 10",
			map[string]string{"player_count": strconv.Itoa(playerCount)},
		)
	}
	return r, nil
}

// Roles returns the role multiset for this player count: exactly one Merlin,
// the remaining good seats as loyal servants, exactly one Assassin, and the
// remaining evil seats as minions.
func (r Rules) Roles() []domain.Role {
	roles := make([]domain.Role, 0, r.PlayerCount)
	roles = append(roles, domain.RoleMerlin)
	for i := 1; i < r.GoodCount; i++ {
		roles = append(roles, domain.RoleLoyalServant)
	}
	roles = append(roles, domain.RoleAssassin)
	for i := 1; i < r.EvilCount; i++ {
		roles = append(roles, domain.RoleMinion)
	}
	return roles
}

// TeamSize returns the required quest team size for a round (1-indexed).
func (r Rules) TeamSize(round int) int {
	if round < 1 || round > Rounds {
		return 0
	}
	return r.TeamSizes[round-1]
}

// FailThreshold returns the fail-vote count at which a round's quest fails.
func (r Rules) FailThreshold(round int) int {
	if round < 1 || round > Rounds {
		return 0
	}
	if r.TwoFailRounds[round-1] {
		return 2
	}
	return 1
}
