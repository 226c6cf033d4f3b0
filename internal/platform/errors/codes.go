// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session errors
	CodeSessionEmptyID            Code = "SESSION_EMPTY_ID"
	CodeSessionNotFound           Code = "SESSION_NOT_FOUND"
	CodeSessionInvalidTransition  Code = "SESSION_INVALID_PHASE_TRANSITION"
	CodeSessionPhaseDisallowsOp   Code = "SESSION_PHASE_DISALLOWS_OPERATION"
	CodeSessionHostRequired       Code = "SESSION_HOST_REQUIRED"
	CodeSessionTooFewPlayers      Code = "SESSION_TOO_FEW_PLAYERS"
	CodeSessionAlreadyInitialized Code = "SESSION_ALREADY_INITIALIZED"

	// Player slot errors
	CodeSlotEmptyID          Code = "SLOT_EMPTY_ID"
	CodeSlotNotFound         Code = "SLOT_NOT_FOUND"
	CodeSlotEmptyDisplayName Code = "SLOT_EMPTY_DISPLAY_NAME"

	// Readiness errors
	CodeReadinessPhaseClosed     Code = "READINESS_PHASE_CLOSED"
	CodeReadinessSelectionNeeded Code = "READINESS_SELECTION_NEEDED"
	CodeReadinessPlayersNotReady Code = "READINESS_PLAYERS_NOT_READY"
	CodeReadinessInvalidStatus   Code = "READINESS_INVALID_STATUS"

	// Turn errors
	CodeTurnNotYourTurn     Code = "TURN_NOT_YOUR_TURN"
	CodeTurnNotActive       Code = "TURN_NOT_ACTIVE"
	CodeTurnAlreadyActive   Code = "TURN_ALREADY_ACTIVE"
	CodeTurnInvalidOrder    Code = "TURN_INVALID_ORDER"
	CodeTurnInvalidLimit    Code = "TURN_INVALID_TIME_LIMIT"
	CodeTurnUnknownReason   Code = "TURN_UNKNOWN_ADVANCE_REASON"
	CodeTurnInvalidAction   Code = "TURN_INVALID_ACTION"
	CodeTurnGameplayStopped Code = "TURN_GAMEPLAY_STOPPED"

	// Storage errors
	CodeNotFound               Code = "NOT_FOUND"
	CodePersistenceUnavailable Code = "PERSISTENCE_UNAVAILABLE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeSessionEmptyID,
		CodeSessionTooFewPlayers,
		CodeSlotEmptyID,
		CodeSlotEmptyDisplayName,
		CodeReadinessSelectionNeeded,
		CodeReadinessInvalidStatus,
		CodeTurnInvalidOrder,
		CodeTurnInvalidLimit,
		CodeTurnUnknownReason,
		CodeTurnInvalidAction:
		return codes.InvalidArgument

	// FailedPrecondition - guard violated, client must resynchronize
	case CodeSessionInvalidTransition,
		CodeSessionPhaseDisallowsOp,
		CodeSessionAlreadyInitialized,
		CodeReadinessPhaseClosed,
		CodeReadinessPlayersNotReady,
		CodeTurnNotYourTurn,
		CodeTurnNotActive,
		CodeTurnAlreadyActive,
		CodeTurnGameplayStopped:
		return codes.FailedPrecondition

	// PermissionDenied - host-only operations
	case CodeSessionHostRequired:
		return codes.PermissionDenied

	// NotFound - missing records
	case CodeSessionNotFound,
		CodeSlotNotFound,
		CodeNotFound:
		return codes.NotFound

	// Unavailable - transient persistence failures
	case CodePersistenceUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
