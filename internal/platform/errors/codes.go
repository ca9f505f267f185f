// Package errors provides structured error handling for the match engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Match configuration errors
	CodeMatchPlayerCountInvalid Code = "MATCH_PLAYER_COUNT_INVALID"
	CodeMatchSeatsInvalid       Code = "MATCH_SEATS_INVALID"
	CodeMatchPlayerNameEmpty    Code = "MATCH_PLAYER_NAME_EMPTY"
	CodeMatchProviderMissing    Code = "MATCH_PROVIDER_MISSING"
	CodeMatchHumanChannelless   Code = "MATCH_HUMAN_WITHOUT_CHANNEL"

	// Action validation errors
	CodeActionSeatInvalid      Code = "ACTION_SEAT_INVALID"
	CodeActionNotLeader        Code = "ACTION_NOT_LEADER"
	CodeActionNotAssassin      Code = "ACTION_NOT_ASSASSIN"
	CodeActionNotOnQuest       Code = "ACTION_NOT_ON_QUEST"
	CodeActionTeamSizeInvalid  Code = "ACTION_TEAM_SIZE_INVALID"
	CodeActionTeamSeatUnknown  Code = "ACTION_TEAM_SEAT_UNKNOWN"
	CodeActionGoodCannotFail   Code = "ACTION_GOOD_CANNOT_FAIL"
	CodeActionDuplicateBallot  Code = "ACTION_DUPLICATE_BALLOT"
	CodeActionTargetInvalid    Code = "ACTION_TARGET_INVALID"
	CodeActionStatementEmpty   Code = "ACTION_STATEMENT_EMPTY"
	CodeActionNotEvil          Code = "ACTION_NOT_EVIL"
	CodeActionDecisionResolved Code = "ACTION_DECISION_RESOLVED"

	// Phase errors
	CodePhaseDisallowsOp        Code = "PHASE_DISALLOWS_OPERATION"
	CodePhaseInvalidTransition  Code = "PHASE_INVALID_TRANSITION"
	CodeMatchFinished           Code = "MATCH_FINISHED"
	CodeMatchConsistencyBroken  Code = "MATCH_CONSISTENCY_BROKEN"
	CodeDecisionSourceExhausted Code = "DECISION_SOURCE_EXHAUSTED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeMatchPlayerCountInvalid,
		CodeMatchSeatsInvalid,
		CodeMatchPlayerNameEmpty,
		CodeMatchProviderMissing,
		CodeMatchHumanChannelless,
		CodeActionSeatInvalid,
		CodeActionTeamSizeInvalid,
		CodeActionTeamSeatUnknown,
		CodeActionGoodCannotFail,
		CodeActionTargetInvalid,
		CodeActionStatementEmpty:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeActionNotLeader,
		CodeActionNotAssassin,
		CodeActionNotOnQuest,
		CodeActionNotEvil,
		CodeActionDuplicateBallot,
		CodeActionDecisionResolved,
		CodePhaseDisallowsOp,
		CodePhaseInvalidTransition,
		CodeMatchFinished:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
