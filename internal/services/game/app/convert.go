package app

import (
	"github.com/wealthpath/wealthpath/internal/services/game/domain/session"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
)

func slotFromRecord(record storage.PlayerSlotRecord) session.PlayerSlot {
	return session.PlayerSlot{
		ID:          record.ID,
		SessionID:   record.SessionID,
		DisplayName: record.DisplayName,
		Status:      record.Status,
		Career:      record.Career,
		Goal:        record.Goal,
		TurnOrder:   record.TurnOrder,
		JoinedAt:    record.JoinedAt,
	}
}

func slotsFromRecords(records []storage.PlayerSlotRecord) []session.PlayerSlot {
	slots := make([]session.PlayerSlot, 0, len(records))
	for _, record := range records {
		slots = append(slots, slotFromRecord(record))
	}
	return slots
}
