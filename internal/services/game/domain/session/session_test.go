package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/wealthpath/wealthpath/internal/services/game/domain/phase"
)

func TestCreateSessionGeneratesIdentity(t *testing.T) {
	fixedTime := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	created, err := CreateSession(CreateSessionInput{Name: "  Friday game  "}, func() time.Time { return fixedTime }, func() (string, error) {
		return "sess1", nil
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.ID != "sess1" {
		t.Fatalf("id = %q, want sess1", created.ID)
	}
	if created.Name != "Friday game" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if created.Phase != phase.PhaseSessionCreation {
		t.Fatalf("phase = %v, want SESSION_CREATION", created.Phase)
	}
	if !created.CreatedAt.Equal(fixedTime) || !created.UpdatedAt.Equal(fixedTime) {
		t.Fatal("expected timestamps to match fixed time")
	}
}

func TestCreatePlayerSlotValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreatePlayerSlotInput
		err   error
	}{
		{
			name:  "missing session id",
			input: CreatePlayerSlotInput{SessionID: "  ", DisplayName: "Ada"},
			err:   ErrEmptySessionID,
		},
		{
			name:  "missing display name",
			input: CreatePlayerSlotInput{SessionID: "sess1", DisplayName: "   "},
			err:   ErrEmptyDisplayName,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreatePlayerSlot(tc.input, nil, nil)
			if !errors.Is(err, tc.err) {
				t.Fatalf("error = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestCreatePlayerSlotDefaults(t *testing.T) {
	slot, err := CreatePlayerSlot(CreatePlayerSlotInput{SessionID: "sess1", DisplayName: " Ada "}, nil, nil)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if slot.Status != ReadyStatusNotReady {
		t.Fatalf("status = %v, want not ready", slot.Status)
	}
	if slot.TurnOrder != 0 {
		t.Fatalf("turn order = %d, want unassigned", slot.TurnOrder)
	}
	if slot.DisplayName != "Ada" {
		t.Fatalf("expected trimmed display name, got %q", slot.DisplayName)
	}
}

func TestIsReadyRequiresFlagAndSelections(t *testing.T) {
	tests := []struct {
		name string
		slot PlayerSlot
		want bool
	}{
		{"ready with selections", PlayerSlot{Status: ReadyStatusReady, Career: "teacher", Goal: "retire-early"}, true},
		{"ready without career", PlayerSlot{Status: ReadyStatusReady, Goal: "retire-early"}, false},
		{"ready without goal", PlayerSlot{Status: ReadyStatusReady, Career: "teacher"}, false},
		{"selections without flag", PlayerSlot{Status: ReadyStatusNotReady, Career: "teacher", Goal: "retire-early"}, false},
		{"in game does not count as ready", PlayerSlot{Status: ReadyStatusInGame, Career: "teacher", Goal: "retire-early"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.slot.IsReady(); got != tc.want {
				t.Fatalf("IsReady = %v, want %v", got, tc.want)
			}
		})
	}
}

func readySlot(id string) PlayerSlot {
	return PlayerSlot{ID: id, Status: ReadyStatusReady, Career: "teacher", Goal: "retire-early"}
}

func TestSummarizeCanStartGameProperty(t *testing.T) {
	// canStartGame must hold exactly when all players are ready, the minimum
	// count is met, and the phase is PLAYER_SETUP. Verified over randomized
	// readiness combinations.
	rng := rand.New(rand.NewSource(42))
	phases := []phase.Phase{
		phase.PhaseWaitingForPlayers,
		phase.PhasePlayerSetup,
		phase.PhaseAllPlayersReady,
		phase.PhaseGameplayActive,
	}

	for i := 0; i < 500; i++ {
		total := rng.Intn(MaxPlayers + 1)
		current := phases[rng.Intn(len(phases))]

		slots := make([]PlayerSlot, 0, total)
		ready := 0
		for j := 0; j < total; j++ {
			slot := PlayerSlot{ID: "slot", Status: ReadyStatusNotReady}
			switch rng.Intn(4) {
			case 0:
				slot = readySlot("slot")
				ready++
			case 1:
				slot.Status = ReadyStatusReady // flag without selections
			case 2:
				slot.Career, slot.Goal = "teacher", "retire-early" // selections without flag
			}
			slots = append(slots, slot)
		}

		summary := Summarize(current, slots)
		want := total >= MinPlayers && ready == total && current == phase.PhasePlayerSetup
		if summary.CanStartGame != want {
			t.Fatalf("iteration %d: canStartGame = %v, want %v (total=%d ready=%d phase=%v)",
				i, summary.CanStartGame, want, total, ready, current)
		}
		if summary.TotalPlayers != total || summary.ReadyPlayers != ready {
			t.Fatalf("iteration %d: summary counts %+v, want total=%d ready=%d", i, summary, total, ready)
		}
	}
}

func TestNextHostPicksLongestSeated(t *testing.T) {
	base := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	slots := []PlayerSlot{
		{ID: "host", JoinedAt: base},
		{ID: "second", JoinedAt: base.Add(time.Minute)},
		{ID: "third", JoinedAt: base.Add(2 * time.Minute)},
	}

	if got := NextHost(slots, "host"); got != "second" {
		t.Fatalf("next host = %q, want second", got)
	}
	if got := NextHost(slots[:1], "host"); got != "" {
		t.Fatalf("next host with no remaining players = %q, want empty", got)
	}
}

func TestReadyStatusLabelsRoundTrip(t *testing.T) {
	for _, status := range []ReadyStatus{ReadyStatusNotReady, ReadyStatusReady, ReadyStatusInGame} {
		parsed, err := ParseReadyStatus(status.String())
		if err != nil {
			t.Fatalf("parse %q: %v", status.String(), err)
		}
		if parsed != status {
			t.Fatalf("round trip %v -> %v", status, parsed)
		}
	}
	if _, err := ParseReadyStatus("bogus"); !errors.Is(err, ErrInvalidReadyStatus) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}
