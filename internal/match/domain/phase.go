package domain

// Phase is a state of the match state machine.
type Phase string

const (
	// PhaseRoleAssignment deals roles; no decisions are taken here.
	PhaseRoleAssignment Phase = "role_assignment"
	// PhaseNight delivers each seat's knowledge grant as a one-time event.
	PhaseNight Phase = "night_phase"
	// PhaseTeamSelection waits for the leader to propose a quest team.
	PhaseTeamSelection Phase = "team_selection"
	// PhaseDiscussion collects free-text statements for the current attempt.
	PhaseDiscussion Phase = "discussion"
	// PhaseTeamVote collects one approve/reject ballot per seat.
	PhaseTeamVote Phase = "team_vote"
	// PhaseQuestExecution collects one success/fail ballot per team member.
	PhaseQuestExecution Phase = "quest_execution"
	// PhaseAssassinationDiscussion lets the evil team confer privately.
	PhaseAssassinationDiscussion Phase = "assassination_discussion"
	// PhaseAssassination waits for the assassin to pick a target seat.
	PhaseAssassination Phase = "assassination"
	// PhaseGameOver is terminal; all roles are revealed.
	PhaseGameOver Phase = "game_over"
)

// Transitions declares every legal rules-based phase transition as data so
// tests can enumerate the full machine. Aborting a match is not listed: any
// non-terminal phase may move to game_over on abort. A transition not listed
// here is an invariant violation, not a user error.
var Transitions = map[Phase][]Phase{
	PhaseRoleAssignment: {PhaseNight},
	PhaseNight:          {PhaseTeamSelection},
	PhaseTeamSelection:  {PhaseDiscussion},
	PhaseDiscussion:     {PhaseTeamVote},
	// Rejected vote returns to team selection; the fifth rejection and a
	// third failed quest short-circuit to game over.
	PhaseTeamVote:       {PhaseQuestExecution, PhaseTeamSelection, PhaseGameOver},
	PhaseQuestExecution: {PhaseTeamSelection, PhaseAssassinationDiscussion, PhaseGameOver},

	PhaseAssassinationDiscussion: {PhaseAssassination},
	PhaseAssassination:           {PhaseGameOver},
	PhaseGameOver:                {},
}

// CanTransition reports whether moving from one phase to another is legal.
// Any non-terminal phase may transition to game_over on abort.
func CanTransition(from, to Phase) bool {
	if to == PhaseGameOver && !from.Terminal() {
		return true
	}
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the phase permits no further mutation.
func (p Phase) Terminal() bool {
	return p == PhaseGameOver
}
