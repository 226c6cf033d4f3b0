// Package sqlite provides a SQLite-backed implementation of the game storage
// interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/wealthpath/wealthpath/internal/platform/storage/sqlitemigrate"
	"github.com/wealthpath/wealthpath/internal/platform/timeouts"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/session"
	"github.com/wealthpath/wealthpath/internal/services/game/storage"
	"github.com/wealthpath/wealthpath/internal/services/game/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store provides SQLite-backed persistence for game session records.
type Store struct {
	sqlDB *sql.DB
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=%d&_synchronous=NORMAL",
		cleanPath, timeouts.PersistRetry.Milliseconds())
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Session methods

// PutSession stores a session record, replacing any existing row.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (id, name, phase, phase_entered_at, host_slot_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    phase = excluded.phase,
    phase_entered_at = excluded.phase_entered_at,
    host_slot_id = excluded.host_slot_id,
    updated_at = excluded.updated_at
`,
		record.ID,
		record.Name,
		record.Phase.String(),
		toMillis(record.PhaseEnteredAt),
		record.HostSlotID,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns a session record by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, phase, phase_entered_at, host_slot_id, created_at, updated_at
FROM sessions WHERE id = ?
`, sessionID)

	var (
		record         storage.SessionRecord
		phaseLabel     string
		phaseEnteredAt int64
		createdAt      int64
		updatedAt      int64
	)
	err := row.Scan(&record.ID, &record.Name, &phaseLabel, &phaseEnteredAt, &record.HostSlotID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SessionRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	record.Phase = phase.Parse(phaseLabel)
	record.PhaseEnteredAt = fromMillis(phaseEnteredAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// UpdateSessionPhase writes a committed phase transition.
func (s *Store) UpdateSessionPhase(ctx context.Context, sessionID string, current phase.Phase, enteredAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET phase = ?, phase_entered_at = ?, updated_at = ? WHERE id = ?
`, current.String(), toMillis(enteredAt), toMillis(enteredAt), sessionID)
	if err != nil {
		return fmt.Errorf("update session phase: %w", err)
	}
	return requireRowAffected(result, "update session phase")
}

// UpdateSessionHost reassigns the host slot for a session.
func (s *Store) UpdateSessionHost(ctx context.Context, sessionID, hostSlotID string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET host_slot_id = ?, updated_at = ? WHERE id = ?
`, hostSlotID, toMillis(updatedAt), sessionID)
	if err != nil {
		return fmt.Errorf("update session host: %w", err)
	}
	return requireRowAffected(result, "update session host")
}

// DeleteSession removes a session and all of its slots and activity records.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM activity_log WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete activity log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM player_slots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete player slots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

// requireRowAffected maps zero-row updates to ErrNotFound.
func requireRowAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Player slot methods

// PutPlayerSlot stores a slot record, replacing any existing row.
func (s *Store) PutPlayerSlot(ctx context.Context, record storage.PlayerSlotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("slot id and session id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO player_slots (id, session_id, display_name, status, career, goal, turn_order, joined_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, id) DO UPDATE SET
    display_name = excluded.display_name,
    status = excluded.status,
    career = excluded.career,
    goal = excluded.goal,
    turn_order = excluded.turn_order,
    updated_at = excluded.updated_at
`,
		record.ID,
		record.SessionID,
		record.DisplayName,
		record.Status.String(),
		record.Career,
		record.Goal,
		record.TurnOrder,
		toMillis(record.JoinedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put player slot: %w", err)
	}
	return nil
}

// GetPlayerSlot returns one slot by session and slot id.
func (s *Store) GetPlayerSlot(ctx context.Context, sessionID, slotID string) (storage.PlayerSlotRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PlayerSlotRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PlayerSlotRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, session_id, display_name, status, career, goal, turn_order, joined_at, updated_at
FROM player_slots WHERE session_id = ? AND id = ?
`, sessionID, slotID)
	record, err := scanPlayerSlotRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.PlayerSlotRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.PlayerSlotRecord{}, fmt.Errorf("get player slot: %w", err)
	}
	return record, nil
}

// ListPlayerSlots returns every slot for a session ordered by join time.
func (s *Store) ListPlayerSlots(ctx context.Context, sessionID string) ([]storage.PlayerSlotRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, display_name, status, career, goal, turn_order, joined_at, updated_at
FROM player_slots WHERE session_id = ? ORDER BY joined_at ASC, id ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list player slots: %w", err)
	}
	defer rows.Close()

	var records []storage.PlayerSlotRecord
	for rows.Next() {
		record, err := scanPlayerSlotRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan player slot: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player slots: %w", err)
	}
	return records, nil
}

// UpdatePlayerSlot rewrites a slot's mutable fields.
func (s *Store) UpdatePlayerSlot(ctx context.Context, record storage.PlayerSlotRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE player_slots
SET display_name = ?, status = ?, career = ?, goal = ?, turn_order = ?, updated_at = ?
WHERE session_id = ? AND id = ?
`,
		record.DisplayName,
		record.Status.String(),
		record.Career,
		record.Goal,
		record.TurnOrder,
		toMillis(record.UpdatedAt),
		record.SessionID,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update player slot: %w", err)
	}
	return requireRowAffected(result, "update player slot")
}

// DeletePlayerSlot removes one slot from a session.
func (s *Store) DeletePlayerSlot(ctx context.Context, sessionID, slotID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM player_slots WHERE session_id = ? AND id = ?
`, sessionID, slotID)
	if err != nil {
		return fmt.Errorf("delete player slot: %w", err)
	}
	return requireRowAffected(result, "delete player slot")
}

// AssignTurnOrder writes the 1-based turn order for every listed slot in one
// transaction and marks the slots in-game.
func (s *Store) AssignTurnOrder(ctx context.Context, sessionID string, order []string, updatedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if len(order) == 0 {
		return fmt.Errorf("turn order is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for position, slotID := range order {
		result, err := tx.ExecContext(ctx, `
UPDATE player_slots SET turn_order = ?, status = ?, updated_at = ?
WHERE session_id = ? AND id = ?
`, position+1, session.ReadyStatusInGame.String(), toMillis(updatedAt), sessionID, slotID)
		if err != nil {
			return fmt.Errorf("assign turn order: %w", err)
		}
		if err := requireRowAffected(result, "assign turn order"); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func scanPlayerSlotRow(scan func(dest ...any) error) (storage.PlayerSlotRecord, error) {
	var (
		record      storage.PlayerSlotRecord
		statusLabel string
		joinedAt    int64
		updatedAt   int64
	)
	if err := scan(
		&record.ID,
		&record.SessionID,
		&record.DisplayName,
		&statusLabel,
		&record.Career,
		&record.Goal,
		&record.TurnOrder,
		&joinedAt,
		&updatedAt,
	); err != nil {
		return storage.PlayerSlotRecord{}, err
	}

	status, err := session.ParseReadyStatus(statusLabel)
	if err != nil {
		return storage.PlayerSlotRecord{}, fmt.Errorf("parse ready status %q: %w", statusLabel, err)
	}
	record.Status = status
	record.JoinedAt = fromMillis(joinedAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// Activity log methods

// AppendActivityLog appends one action record for match history.
func (s *Store) AppendActivityLog(ctx context.Context, record storage.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("activity id and session id are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO activity_log (id, session_id, slot_id, turn_number, action, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.SessionID,
		record.SlotID,
		record.TurnNumber,
		record.Action,
		record.Detail,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}

// ListActivityLog returns the most recent activity records for a session.
func (s *Store) ListActivityLog(ctx context.Context, sessionID string, limit int) ([]storage.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, slot_id, turn_number, action, detail, created_at
FROM activity_log WHERE session_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity log: %w", err)
	}
	defer rows.Close()

	var records []storage.ActivityRecord
	for rows.Next() {
		var (
			record    storage.ActivityRecord
			createdAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.SlotID,
			&record.TurnNumber,
			&record.Action,
			&record.Detail,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity log: %w", err)
	}
	return records, nil
}
