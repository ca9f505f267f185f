package engine

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/louisbranch/avalon.arena/internal/match/command"
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/event"
	"github.com/louisbranch/avalon.arena/internal/match/resolve"
	"github.com/louisbranch/avalon.arena/internal/match/rules"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// Decide evaluates a command against current state and returns the events to
// commit or the rejections explaining why nothing may change.
//
// Decide is pure: the same state and command always produce the same
// decision. Anything nondeterministic (the role shuffle, timestamps) arrives
// through the command payload or the injected clock.
func Decide(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if now == nil {
		now = time.Now
	}

	if state.Phase.Terminal() && cmd.Type != command.TypeAbort {
		return reject(apperrors.CodeMatchFinished, "match has ended")
	}

	switch cmd.Type {
	case command.TypeStart:
		return decideStart(state, cmd, now)
	case command.TypeProposeTeam:
		return decideProposeTeam(state, cmd, now)
	case command.TypeStatement:
		return decideStatement(state, cmd, now)
	case command.TypeCloseDiscussion:
		return decideCloseDiscussion(state, cmd, now)
	case command.TypeCastVote:
		return decideCastVote(state, cmd, now)
	case command.TypeCastQuestVote:
		return decideCastQuestVote(state, cmd, now)
	case command.TypeEvilStatement:
		return decideEvilStatement(state, cmd, now)
	case command.TypeCloseEvilDiscussion:
		return decideCloseEvilDiscussion(state, cmd, now)
	case command.TypeAssassinate:
		return decideAssassinate(state, cmd, now)
	case command.TypeAbort:
		return decideAbort(state, cmd, now)
	}
	return reject(apperrors.CodePhaseDisallowsOp, "unsupported command type")
}

func reject(code apperrors.Code, message string) command.Decision {
	return command.Reject(command.Rejection{Code: string(code), Message: message})
}

// envelope stamps the shared event fields for a decision in flight.
func envelope(state domain.State, cmd command.Command, evtType event.Type, now func() time.Time, payload any) event.Event {
	actor := event.ActorTypeSeat
	if cmd.Seat < 0 {
		actor = event.ActorTypeSystem
	}
	return event.Event{
		MatchID:     state.ID,
		Timestamp:   now().UTC(),
		Type:        evtType,
		ActorType:   actor,
		Seat:        cmd.Seat,
		Round:       state.Round,
		Attempt:     state.Attempt,
		Defaulted:   cmd.Defaulted,
		PayloadJSON: event.MustMarshal(payload),
	}
}

func phaseChange(state domain.State, cmd command.Command, now func() time.Time, to domain.Phase, round, attempt, leader int) event.Event {
	evt := envelope(state, cmd, event.TypePhaseChanged, now, event.PhaseChangedPayload{
		From:    state.Phase,
		To:      to,
		Round:   round,
		Attempt: attempt,
		Leader:  leader,
	})
	evt.ActorType = event.ActorTypeSystem
	evt.Seat = -1
	return evt
}

func decideStart(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseRoleAssignment {
		return reject(apperrors.CodePhaseDisallowsOp, "match already started")
	}
	table, err := rules.ForPlayerCount(state.PlayerCount)
	if err != nil {
		return reject(apperrors.CodeMatchPlayerCountInvalid, err.Error())
	}

	var payload command.StartPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if len(payload.RoleOrder) != state.PlayerCount {
		return reject(apperrors.CodeMatchSeatsInvalid, "role order must cover every seat")
	}
	want := map[domain.Role]int{}
	for _, role := range table.Roles() {
		want[role]++
	}
	for _, name := range payload.RoleOrder {
		role := domain.Role(name)
		if want[role] == 0 {
			return reject(apperrors.CodeMatchSeatsInvalid, "role order is not the rule-table multiset")
		}
		want[role]--
	}

	roles := make([]domain.Role, state.PlayerCount)
	for i, name := range payload.RoleOrder {
		roles[i] = domain.Role(name)
	}

	assigned := envelope(state, cmd, event.TypeRolesAssigned, now, event.RolesAssignedPayload{Roles: roles})

	players := append([]domain.Player(nil), state.Players...)
	for i := range players {
		players[i].Role = roles[i]
	}
	night := envelope(state, cmd, event.TypeNightCompleted, now, event.NightCompletedPayload{
		Grants: domain.KnowledgeGrants(players),
	})

	// Night phase carries no decisions, so both unconditional transitions
	// commit in one decision.
	toNight := phaseChange(state, cmd, now, domain.PhaseNight, 1, 1, state.Leader)
	mid := state
	mid.Phase = domain.PhaseNight
	toSelection := phaseChange(mid, cmd, now, domain.PhaseTeamSelection, 1, 1, state.Leader)

	return command.Accept(assigned, toNight, night, toSelection)
}

func decideProposeTeam(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseTeamSelection {
		return reject(apperrors.CodePhaseDisallowsOp, "team selection is not open")
	}
	if cmd.Seat != state.Leader {
		return reject(apperrors.CodeActionNotLeader, "only the leader proposes a team")
	}

	var payload command.ProposeTeamPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)

	table, err := rules.ForPlayerCount(state.PlayerCount)
	if err != nil {
		return reject(apperrors.CodeMatchPlayerCountInvalid, err.Error())
	}
	required := table.TeamSize(state.Round)
	if len(payload.Team) != required {
		return reject(apperrors.CodeActionTeamSizeInvalid, "proposed team size does not match the rule table")
	}
	seen := map[int]bool{}
	for _, seat := range payload.Team {
		if seat < 0 || seat >= state.PlayerCount {
			return reject(apperrors.CodeActionTeamSeatUnknown, "proposed team contains an unknown seat")
		}
		if seen[seat] {
			return reject(apperrors.CodeActionTeamSeatUnknown, "proposed team repeats a seat")
		}
		seen[seat] = true
	}

	events := []event.Event{
		envelope(state, cmd, event.TypeTeamProposed, now, event.TeamProposedPayload{
			Leader: state.Leader,
			Team:   payload.Team,
		}),
	}
	if statement := strings.TrimSpace(payload.Statement); statement != "" {
		events = append(events, envelope(state, cmd, event.TypeStatementAdded, now, event.StatementPayload{
			Seat:    cmd.Seat,
			Content: statement,
		}))
	}
	events = append(events, phaseChange(state, cmd, now, domain.PhaseDiscussion, state.Round, state.Attempt, state.Leader))
	return command.Accept(events...)
}

func decideStatement(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseDiscussion {
		return reject(apperrors.CodePhaseDisallowsOp, "discussion is not open")
	}
	if state.PlayerAt(cmd.Seat) == nil {
		return reject(apperrors.CodeActionSeatInvalid, "unknown seat")
	}
	var payload command.StatementPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return reject(apperrors.CodeActionStatementEmpty, "statement content is required")
	}
	return command.Accept(envelope(state, cmd, event.TypeStatementAdded, now, event.StatementPayload{
		Seat:    cmd.Seat,
		Content: content,
	}))
}

func decideCloseDiscussion(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseDiscussion {
		return reject(apperrors.CodePhaseDisallowsOp, "discussion is not open")
	}
	return command.Accept(phaseChange(state, cmd, now, domain.PhaseTeamVote, state.Round, state.Attempt, state.Leader))
}

func decideCastVote(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseTeamVote {
		return reject(apperrors.CodePhaseDisallowsOp, "team vote is not open")
	}
	if state.PlayerAt(cmd.Seat) == nil {
		return reject(apperrors.CodeActionSeatInvalid, "unknown seat")
	}
	if _, voted := state.PendingVotes[cmd.Seat]; voted {
		return reject(apperrors.CodeActionDuplicateBallot, "seat already voted this attempt")
	}

	var payload command.CastVotePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)

	events := []event.Event{
		envelope(state, cmd, event.TypeVoteCast, now, event.VoteCastPayload{
			Seat:    cmd.Seat,
			Approve: payload.Approve,
		}),
	}

	if len(state.PendingVotes)+1 < state.PlayerCount {
		return command.Accept(events...)
	}

	// Final ballot: resolve the attempt in the same decision.
	ballots := map[int]bool{cmd.Seat: payload.Approve}
	for seat, approve := range state.PendingVotes {
		ballots[seat] = approve
	}
	tally := resolve.TeamVote(ballots, state.PlayerCount)
	exhausted := !tally.Approved && state.Attempt >= rules.MaxVoteAttempts

	events = append(events, envelope(state, cmd, event.TypeVoteResolved, now, event.VoteResolvedPayload{
		Round:      state.Round,
		Attempt:    state.Attempt,
		Leader:     state.Leader,
		Team:       state.ProposedTeam,
		Ballots:    ballots,
		Approvals:  tally.Approvals,
		Rejections: tally.Rejections,
		Approved:   tally.Approved,
		Exhausted:  exhausted,
	}))

	switch {
	case tally.Approved:
		events = append(events, phaseChange(state, cmd, now, domain.PhaseQuestExecution, state.Round, state.Attempt, state.Leader))
	case exhausted:
		events = append(events, ended(state, cmd, now, domain.TeamEvil, "five team votes rejected"))
		events = append(events, phaseChange(state, cmd, now, domain.PhaseGameOver, state.Round, state.Attempt, state.Leader))
	default:
		events = append(events, phaseChange(state, cmd, now, domain.PhaseTeamSelection, state.Round, state.Attempt+1, state.NextLeader()))
	}
	return command.Accept(events...)
}

func decideCastQuestVote(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseQuestExecution {
		return reject(apperrors.CodePhaseDisallowsOp, "quest execution is not open")
	}
	player := state.PlayerAt(cmd.Seat)
	if player == nil {
		return reject(apperrors.CodeActionSeatInvalid, "unknown seat")
	}
	if !state.OnProposedTeam(cmd.Seat) {
		return reject(apperrors.CodeActionNotOnQuest, "seat is not on the quest team")
	}
	if _, voted := state.PendingQuest[cmd.Seat]; voted {
		return reject(apperrors.CodeActionDuplicateBallot, "seat already submitted a quest ballot")
	}

	var payload command.CastQuestVotePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	if !payload.Success && !player.Role.IsEvil() {
		return reject(apperrors.CodeActionGoodCannotFail, "good-aligned seats must submit success")
	}

	events := []event.Event{
		envelope(state, cmd, event.TypeQuestVoteCast, now, event.QuestVoteCastPayload{
			Seat:    cmd.Seat,
			Success: payload.Success,
		}),
	}

	if len(state.PendingQuest)+1 < len(state.ProposedTeam) {
		return command.Accept(events...)
	}

	table, err := rules.ForPlayerCount(state.PlayerCount)
	if err != nil {
		return reject(apperrors.CodeMatchPlayerCountInvalid, err.Error())
	}

	ballots := map[int]bool{cmd.Seat: payload.Success}
	for seat, success := range state.PendingQuest {
		ballots[seat] = success
	}
	tally := resolve.Quest(ballots, table.FailThreshold(state.Round))

	events = append(events, envelope(state, cmd, event.TypeQuestResolved, now, event.QuestResolvedPayload{
		Round:         state.Round,
		Team:          state.ProposedTeam,
		Ballots:       ballots,
		FailVotes:     tally.FailVotes,
		FailThreshold: tally.FailThreshold,
		Succeeded:     tally.Succeeded,
	}))

	succeeded := state.SucceededQuests()
	failed := state.FailedQuests()
	if tally.Succeeded {
		succeeded++
	} else {
		failed++
	}

	switch {
	case failed >= 3:
		events = append(events, ended(state, cmd, now, domain.TeamEvil, "three quests failed"))
		events = append(events, phaseChange(state, cmd, now, domain.PhaseGameOver, state.Round, state.Attempt, state.Leader))
	case succeeded >= 3:
		events = append(events, phaseChange(state, cmd, now, domain.PhaseAssassinationDiscussion, state.Round, state.Attempt, state.Leader))
	default:
		events = append(events, phaseChange(state, cmd, now, domain.PhaseTeamSelection, state.Round+1, 1, state.NextLeader()))
	}
	return command.Accept(events...)
}

func decideEvilStatement(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseAssassinationDiscussion {
		return reject(apperrors.CodePhaseDisallowsOp, "assassination discussion is not open")
	}
	player := state.PlayerAt(cmd.Seat)
	if player == nil {
		return reject(apperrors.CodeActionSeatInvalid, "unknown seat")
	}
	if !player.Role.IsEvil() {
		return reject(apperrors.CodeActionNotEvil, "only evil seats join the assassination discussion")
	}
	var payload command.StatementPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return reject(apperrors.CodeActionStatementEmpty, "statement content is required")
	}
	return command.Accept(envelope(state, cmd, event.TypeEvilStatementAdded, now, event.StatementPayload{
		Seat:    cmd.Seat,
		Content: content,
	}))
}

func decideCloseEvilDiscussion(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseAssassinationDiscussion {
		return reject(apperrors.CodePhaseDisallowsOp, "assassination discussion is not open")
	}
	return command.Accept(phaseChange(state, cmd, now, domain.PhaseAssassination, state.Round, state.Attempt, state.Leader))
}

func decideAssassinate(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase != domain.PhaseAssassination {
		return reject(apperrors.CodePhaseDisallowsOp, "assassination is not open")
	}
	if cmd.Seat != state.AssassinSeat() {
		return reject(apperrors.CodeActionNotAssassin, "only the assassin picks a target")
	}

	var payload command.AssassinatePayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	target := state.PlayerAt(payload.Target)
	if target == nil {
		return reject(apperrors.CodeActionTargetInvalid, "target seat is out of range")
	}

	outcome := resolve.Assassination(target.Role)
	reason := "assassin missed Merlin"
	if outcome.TargetWasMerlin {
		reason = "Merlin assassinated"
	}

	events := []event.Event{
		envelope(state, cmd, event.TypeAssassinationResolved, now, event.AssassinationResolvedPayload{
			Assassin:        cmd.Seat,
			Target:          payload.Target,
			TargetWasMerlin: outcome.TargetWasMerlin,
		}),
		ended(state, cmd, now, outcome.Winner, reason),
		phaseChange(state, cmd, now, domain.PhaseGameOver, state.Round, state.Attempt, state.Leader),
	}
	return command.Accept(events...)
}

func decideAbort(state domain.State, cmd command.Command, now func() time.Time) command.Decision {
	if state.Phase.Terminal() {
		return reject(apperrors.CodeMatchFinished, "match has ended")
	}
	var payload command.AbortPayload
	_ = json.Unmarshal(cmd.PayloadJSON, &payload)
	reason := strings.TrimSpace(payload.Reason)
	if reason == "" {
		reason = "aborted"
	}
	aborted := envelope(state, cmd, event.TypeMatchAborted, now, event.MatchAbortedPayload{Reason: reason})
	aborted.ActorType = event.ActorTypeSystem
	return command.Accept(
		aborted,
		phaseChange(state, cmd, now, domain.PhaseGameOver, state.Round, state.Attempt, state.Leader),
	)
}

func ended(state domain.State, cmd command.Command, now func() time.Time, winner domain.Team, reason string) event.Event {
	outcome := domain.OutcomeGoodWin
	if winner == domain.TeamEvil {
		outcome = domain.OutcomeEvilWin
	}
	evt := envelope(state, cmd, event.TypeMatchEnded, now, event.MatchEndedPayload{
		Winner:  winner,
		Outcome: outcome,
		Reason:  reason,
	})
	evt.ActorType = event.ActorTypeSystem
	evt.Seat = -1
	return evt
}
