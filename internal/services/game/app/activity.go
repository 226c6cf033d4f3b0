package app

import (
	"context"
	"log"
	"time"

	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

// ActivityRecorder appends gameplay actions to the durable per-session log.
// Writes are best effort: a failed append is logged and swallowed so a
// storage hiccup never blocks live play.
type ActivityRecorder struct {
	store       storage.ActivityLogStore
	idGenerator func() (string, error)
	clock       func() time.Time
}

// NewActivityRecorder builds a recorder over the given log store.
func NewActivityRecorder(store storage.ActivityLogStore, idGenerator func() (string, error), clock func() time.Time) *ActivityRecorder {
	if clock == nil {
		clock = time.Now
	}
	return &ActivityRecorder{
		store:       store,
		idGenerator: idGenerator,
		clock:       clock,
	}
}

// Record appends one action to the session's activity log.
func (r *ActivityRecorder) Record(ctx context.Context, sessionID, slotID string, turnNumber int, action, detail string) {
	id, err := r.idGenerator()
	if err != nil {
		log.Printf("activity id generation failed session_id=%s action=%s err=%v", sessionID, action, err)
		return
	}
	record := storage.ActivityRecord{
		ID:         id,
		SessionID:  sessionID,
		SlotID:     slotID,
		TurnNumber: turnNumber,
		Action:     action,
		Detail:     detail,
		CreatedAt:  r.clock().UTC(),
	}
	if err := r.store.AppendActivityLog(ctx, record); err != nil {
		log.Printf("activity append failed session_id=%s action=%s err=%v", sessionID, action, err)
	}
}

// History returns the most recent entries for a session, newest first.
func (r *ActivityRecorder) History(ctx context.Context, sessionID string, limit int) ([]storage.ActivityRecord, error) {
	return r.store.ListActivityLog(ctx, sessionID, limit)
}
