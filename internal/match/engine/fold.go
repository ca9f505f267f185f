package engine

import (
	"github.com/louisbranch/avalon.arena/internal/match/domain"
	"github.com/louisbranch/avalon.arena/internal/match/event"
	apperrors "github.com/louisbranch/avalon.arena/internal/platform/errors"
)

// Fold applies a single event to state, returning the next state. Fold never
// re-derives outcomes: resolutions are computed in Decide and carried in the
// event payload, so folding a journal is pure bookkeeping.
func Fold(state domain.State, evt event.Event) (domain.State, error) {
	next := state.Clone()

	switch evt.Type {
	case event.TypeMatchCreated:
		var payload event.MatchCreatedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next = domain.State{
			ID:          evt.MatchID,
			PlayerCount: payload.PlayerCount,
			Phase:       domain.PhaseRoleAssignment,
			Round:       1,
			Attempt:     1,
			Outcome:     domain.OutcomeInProgress,
			CreatedAt:   evt.Timestamp,
		}
		for _, seat := range payload.Seats {
			next.Players = append(next.Players, domain.Player{
				Seat:     seat.Seat,
				Name:     seat.Name,
				Human:    seat.Human,
				Provider: seat.Provider,
			})
		}

	case event.TypeRolesAssigned:
		var payload event.RolesAssignedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		if len(payload.Roles) != len(next.Players) {
			return state, apperrors.New(apperrors.CodeMatchConsistencyBroken,
				"role assignment does not cover the roster")
		}
		for i := range next.Players {
			next.Players[i].Role = payload.Roles[i]
		}

	case event.TypeNightCompleted:
		var payload event.NightCompletedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next.Grants = payload.Grants

	case event.TypePhaseChanged:
		var payload event.PhaseChangedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		if !domain.CanTransition(next.Phase, payload.To) {
			return state, apperrors.WithMetadata(apperrors.CodePhaseInvalidTransition,
				"illegal phase transition",
				map[string]string{"from": string(next.Phase), "to": string(payload.To)})
		}
		next.Phase = payload.To
		next.Round = payload.Round
		next.Attempt = payload.Attempt
		next.Leader = payload.Leader
		switch payload.To {
		case domain.PhaseTeamSelection:
			next.ProposedTeam = nil
			next.PendingVotes = nil
			next.PendingQuest = nil
		case domain.PhaseTeamVote:
			next.PendingVotes = map[int]bool{}
		case domain.PhaseQuestExecution:
			next.PendingQuest = map[int]bool{}
		}

	case event.TypeTeamProposed:
		var payload event.TeamProposedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next.ProposedTeam = payload.Team

	case event.TypeStatementAdded, event.TypeEvilStatementAdded:
		var payload event.StatementPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		entry := domain.Entry{
			Seat:      payload.Seat,
			Content:   payload.Content,
			Round:     evt.Round,
			Attempt:   evt.Attempt,
			Timestamp: evt.Timestamp,
		}
		if p := next.PlayerAt(payload.Seat); p != nil {
			entry.Name = p.Name
		}
		if evt.Type == event.TypeEvilStatementAdded {
			next.AssassinationDiscussion = append(next.AssassinationDiscussion, entry)
		} else {
			next.Discussion = append(next.Discussion, entry)
		}

	case event.TypeVoteCast:
		var payload event.VoteCastPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		if next.PendingVotes == nil {
			next.PendingVotes = map[int]bool{}
		}
		next.PendingVotes[payload.Seat] = payload.Approve

	case event.TypeVoteResolved:
		var payload event.VoteResolvedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next.Votes = append(next.Votes, domain.VoteRecord{
			Round:    payload.Round,
			Attempt:  payload.Attempt,
			Leader:   payload.Leader,
			Team:     payload.Team,
			Ballots:  payload.Ballots,
			Approved: payload.Approved,
		})
		next.PendingVotes = nil

	case event.TypeQuestVoteCast:
		var payload event.QuestVoteCastPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		if next.PendingQuest == nil {
			next.PendingQuest = map[int]bool{}
		}
		next.PendingQuest[payload.Seat] = payload.Success

	case event.TypeQuestResolved:
		var payload event.QuestResolvedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		succeeded := payload.Succeeded
		next.Quests = append(next.Quests, domain.QuestRound{
			Round:         payload.Round,
			TeamSize:      len(payload.Team),
			Team:          payload.Team,
			Ballots:       payload.Ballots,
			FailVotes:     payload.FailVotes,
			FailThreshold: payload.FailThreshold,
			Succeeded:     &succeeded,
		})
		next.PendingQuest = nil

	case event.TypeAssassinationResolved:
		var payload event.AssassinationResolvedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		target := payload.Target
		next.Assassinated = &target

	case event.TypeMatchEnded:
		var payload event.MatchEndedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next.Winner = payload.Winner
		next.Outcome = payload.Outcome
		ended := evt.Timestamp
		next.EndedAt = &ended

	case event.TypeMatchAborted:
		var payload event.MatchAbortedPayload
		if err := event.Unmarshal(evt, &payload); err != nil {
			return state, err
		}
		next.Outcome = domain.OutcomeAbandoned
		next.AbortReason = payload.Reason
		ended := evt.Timestamp
		next.EndedAt = &ended

	default:
		return state, apperrors.WithMetadata(apperrors.CodeMatchConsistencyBroken,
			"unknown event type in journal",
			map[string]string{"type": string(evt.Type)})
	}

	return next, nil
}
