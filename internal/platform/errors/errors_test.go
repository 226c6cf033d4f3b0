package errors

import (
	"errors"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	base := New(CodeTurnNotYourTurn, "not your turn")
	other := WithMetadata(CodeTurnNotYourTurn, "different message", map[string]string{"ActivePlayer": "slot2"})

	if !errors.Is(other, base) {
		t.Fatal("expected errors with the same code to match")
	}
	if errors.Is(New(CodeSessionNotFound, "missing"), base) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(CodePersistenceUnavailable, "persist session", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestGRPCCodeMapping(t *testing.T) {
	tests := []struct {
		code Code
		want codes.Code
	}{
		{CodeSessionNotFound, codes.NotFound},
		{CodeSlotNotFound, codes.NotFound},
		{CodeSessionInvalidTransition, codes.FailedPrecondition},
		{CodeTurnNotYourTurn, codes.FailedPrecondition},
		{CodeSessionHostRequired, codes.PermissionDenied},
		{CodeReadinessSelectionNeeded, codes.InvalidArgument},
		{CodePersistenceUnavailable, codes.Unavailable},
		{CodeUnknown, codes.Internal},
	}
	for _, tc := range tests {
		if got := tc.code.GRPCCode(); got != tc.want {
			t.Fatalf("GRPCCode(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	err := WithMetadata(CodeSessionInvalidTransition, "phase transition not allowed", map[string]string{
		"FromPhase": "PLAYER_SETUP",
		"ToPhase":   "GAME_FINISHED",
	})

	st, ok := status.FromError(err.ToGRPCStatus("en-US", "The game cannot move there."))
	if !ok {
		t.Fatal("expected a gRPC status error")
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("status code = %v, want %v", st.Code(), codes.FailedPrecondition)
	}

	var foundInfo, foundLocalized bool
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			foundInfo = true
			if d.Reason != string(CodeSessionInvalidTransition) {
				t.Fatalf("error info reason = %q, want %q", d.Reason, CodeSessionInvalidTransition)
			}
			if d.Metadata["FromPhase"] != "PLAYER_SETUP" {
				t.Fatalf("error info metadata missing FromPhase, got %v", d.Metadata)
			}
		case *errdetails.LocalizedMessage:
			foundLocalized = true
			if d.Locale != "en-US" {
				t.Fatalf("localized message locale = %q, want en-US", d.Locale)
			}
		}
	}
	if !foundInfo || !foundLocalized {
		t.Fatalf("expected ErrorInfo and LocalizedMessage details, got info=%v localized=%v", foundInfo, foundLocalized)
	}
}
