package errors

import (
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeMatchPlayerCountInvalid, codes.InvalidArgument},
		{CodeMatchSeatsInvalid, codes.InvalidArgument},
		{CodeMatchPlayerNameEmpty, codes.InvalidArgument},
		{CodeActionSeatInvalid, codes.InvalidArgument},
		{CodeActionTeamSizeInvalid, codes.InvalidArgument},
		{CodeActionTargetInvalid, codes.InvalidArgument},
		{CodeActionStatementEmpty, codes.InvalidArgument},
		{CodeActionNotLeader, codes.FailedPrecondition},
		{CodeActionNotAssassin, codes.FailedPrecondition},
		{CodeActionDuplicateBallot, codes.FailedPrecondition},
		{CodePhaseDisallowsOp, codes.FailedPrecondition},
		{CodePhaseInvalidTransition, codes.FailedPrecondition},
		{CodeMatchFinished, codes.FailedPrecondition},
		{CodeNotFound, codes.NotFound},
		{CodeMatchConsistencyBroken, codes.Internal},
		{CodeDecisionSourceExhausted, codes.Internal},
		{CodeUnknown, codes.Internal},
		{Code("SOMETHING_NEW"), codes.Internal},
	}
	for _, tt := range tests {
		if got := tt.code.GRPCCode(); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestToGRPCStatusCarriesErrorInfo(t *testing.T) {
	err := WithMetadata(CodeActionNotLeader, "seat 2 is not the leader",
		map[string]string{"seat": "2", "leader": "0"})

	st := status.Convert(err.ToGRPCStatus())
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("status code: got %v, want %v", st.Code(), codes.FailedPrecondition)
	}
	if st.Message() != "seat 2 is not the leader" {
		t.Fatalf("status message: got %q", st.Message())
	}

	details := st.Details()
	if len(details) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(details))
	}
	info, ok := details[0].(*errdetails.ErrorInfo)
	if !ok {
		t.Fatalf("detail is %T, want *errdetails.ErrorInfo", details[0])
	}
	if info.Reason != string(CodeActionNotLeader) {
		t.Fatalf("reason: got %q, want %q", info.Reason, CodeActionNotLeader)
	}
	if info.Domain != Domain {
		t.Fatalf("domain: got %q, want %q", info.Domain, Domain)
	}
	if info.Metadata["seat"] != "2" || info.Metadata["leader"] != "0" {
		t.Fatalf("metadata not carried: %v", info.Metadata)
	}
}
