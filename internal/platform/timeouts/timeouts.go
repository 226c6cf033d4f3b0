// Package timeouts defines shared timing constants used across the game service.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// TurnTimeLimit is the default countdown for one player turn.
const TurnTimeLimit = 60 * time.Second

// GameStartSettle is the pause between GAME_STARTING and GAMEPLAY_ACTIVE,
// giving clients time to render the start sequence before the first turn.
const GameStartSettle = 3 * time.Second

// GameEndSettle is the pause between GAME_ENDING and GAME_FINISHED.
const GameEndSettle = 5 * time.Second

// PersistRetry bounds how long a persistence write waits on a busy database
// before failing.
const PersistRetry = 2 * time.Second

// Shutdown limits how long the server waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second
