// Package resolve holds the stateless tally functions for team votes, quest
// votes, and the assassination.
//
// Resolvers are role-blind arithmetic: roles constrain what an individual
// input is allowed to be, but never alter a tally. Each resolver returns the
// counts it used so the supervisor can emit a complete, auditable event.
package resolve

import "github.com/louisbranch/avalon.arena/internal/match/domain"

// VoteTally is the outcome of a team-vote attempt.
type VoteTally struct {
	Approvals  int
	Rejections int
	Approved   bool
}

// TeamVote tallies approve/reject ballots. A team is approved iff strictly
// more than half of all seats approve; ties (possible only with even player
// counts) resolve to reject.
func TeamVote(ballots map[int]bool, playerCount int) VoteTally {
	tally := VoteTally{}
	for _, approve := range ballots {
		if approve {
			tally.Approvals++
		} else {
			tally.Rejections++
		}
	}
	tally.Approved = tally.Approvals > playerCount/2
	return tally
}

// QuestTally is the outcome of a quest round.
type QuestTally struct {
	FailVotes     int
	FailThreshold int
	Succeeded     bool
}

// Quest tallies success/fail ballots against the round's fail threshold.
func Quest(ballots map[int]bool, failThreshold int) QuestTally {
	tally := QuestTally{FailThreshold: failThreshold}
	for _, success := range ballots {
		if !success {
			tally.FailVotes++
		}
	}
	tally.Succeeded = tally.FailVotes < failThreshold
	return tally
}

// AssassinationOutcome is the result of the assassin's pick.
type AssassinationOutcome struct {
	TargetWasMerlin bool
	Winner          domain.Team
}

// Assassination resolves the assassin's target against the role assignment.
func Assassination(targetRole domain.Role) AssassinationOutcome {
	if targetRole == domain.RoleMerlin {
		return AssassinationOutcome{TargetWasMerlin: true, Winner: domain.TeamEvil}
	}
	return AssassinationOutcome{Winner: domain.TeamGood}
}
