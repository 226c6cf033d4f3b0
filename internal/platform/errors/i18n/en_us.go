package i18n

// enUSMessages maps error codes to en-US message templates.
// Codes must match the codes defined in internal/platform/errors/codes.go.
// They are duplicated as strings to avoid an import cycle.
var enUSMessages = map[Code]string{
	"UNKNOWN": "Something went wrong. Please try again.",

	"SESSION_EMPTY_ID":                  "A session id is required.",
	"SESSION_NOT_FOUND":                 "This game session no longer exists.",
	"SESSION_INVALID_PHASE_TRANSITION":  "The game cannot move from {{.FromPhase}} to {{.ToPhase}}.",
	"SESSION_PHASE_DISALLOWS_OPERATION": "This action is not allowed while the game is in {{.CurrentPhase}}.",
	"SESSION_HOST_REQUIRED":             "Only the session host can do that.",
	"SESSION_TOO_FEW_PLAYERS":           "At least {{.MinPlayers}} players are needed to start.",
	"SESSION_ALREADY_INITIALIZED":       "This session has already been set up.",

	"SLOT_EMPTY_ID":           "A player slot id is required.",
	"SLOT_NOT_FOUND":          "That player is not part of this session.",
	"SLOT_EMPTY_DISPLAY_NAME": "A display name is required.",

	"READINESS_PHASE_CLOSED":      "Readiness can no longer be changed; the game is in {{.CurrentPhase}}.",
	"READINESS_SELECTION_NEEDED":  "Pick a career and a goal before readying up.",
	"READINESS_PLAYERS_NOT_READY": "{{.ReadyPlayers}} of {{.TotalPlayers}} players are ready.",
	"READINESS_INVALID_STATUS":    "That readiness status is not recognized.",

	"TURN_NOT_YOUR_TURN":          "It is {{.ActivePlayer}}'s turn.",
	"TURN_NOT_ACTIVE":             "There is no active turn for this session.",
	"TURN_ALREADY_ACTIVE":         "A turn is already running for this session.",
	"TURN_INVALID_ORDER":          "The turn order is invalid.",
	"TURN_INVALID_TIME_LIMIT":     "The turn time limit is invalid.",
	"TURN_UNKNOWN_ADVANCE_REASON": "The turn advance reason is not recognized.",
	"TURN_INVALID_ACTION":         "That action is not recognized.",
	"TURN_GAMEPLAY_STOPPED":       "Gameplay is paused for this session.",

	"NOT_FOUND":               "The requested record was not found.",
	"PERSISTENCE_UNAVAILABLE": "The game could not be saved. Please retry.",
}
