package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
)

func TestCreateDecisionRejectsOffTurnPlayer(t *testing.T) {
	te := newTestEngine()
	sessionID, order := liveGameplaySession(t, te)

	_, err := te.engine.Decisions.Create(context.Background(), sessionID, order[1],
		"Buy the rental property?", []string{"buy", "pass"})
	if !apperrors.IsCode(err, apperrors.CodeTurnNotYourTurn) {
		t.Fatalf("error = %v, want not your turn", err)
	}
}

func TestCreateDecisionAllowsOnePendingPerSession(t *testing.T) {
	te := newTestEngine()
	sessionID, order := liveGameplaySession(t, te)
	ctx := context.Background()

	decision, err := te.engine.Decisions.Create(ctx, sessionID, order[0],
		"Buy the rental property?", []string{"buy", "pass"})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if decision.ID == "" || decision.SlotID != order[0] {
		t.Fatalf("decision = %+v, want id and owning slot", decision)
	}
	if _, ok := te.events.last(EventDecisionRequested); !ok {
		t.Fatal("expected decisionRequested broadcast")
	}

	_, err = te.engine.Decisions.Create(ctx, sessionID, order[0],
		"Another choice?", []string{"yes", "no"})
	if !apperrors.IsCode(err, apperrors.CodeTurnInvalidAction) {
		t.Fatalf("error = %v, want invalid action while one is pending", err)
	}
}

func TestSubmitDecisionValidatesOwnerAndChoice(t *testing.T) {
	te := newTestEngine()
	sessionID, order := liveGameplaySession(t, te)
	ctx := context.Background()

	decision, err := te.engine.Decisions.Create(ctx, sessionID, order[0],
		"Buy the rental property?", []string{"buy", "pass"})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}

	err = te.engine.Decisions.Submit(ctx, sessionID, order[1], decision.ID, "buy")
	if !apperrors.IsCode(err, apperrors.CodeTurnNotYourTurn) {
		t.Fatalf("error = %v, want rejection for non-owner", err)
	}
	err = te.engine.Decisions.Submit(ctx, sessionID, order[0], decision.ID, "sell")
	if !apperrors.IsCode(err, apperrors.CodeTurnInvalidAction) {
		t.Fatalf("error = %v, want rejection for unlisted choice", err)
	}
	err = te.engine.Decisions.Submit(ctx, sessionID, order[0], "missing", "buy")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("error = %v, want not found for wrong id", err)
	}

	if err := te.engine.Decisions.Submit(ctx, sessionID, order[0], decision.ID, "buy"); err != nil {
		t.Fatalf("submit decision: %v", err)
	}
	resolved, ok := te.events.last(EventDecisionResolved)
	if !ok {
		t.Fatal("expected decisionResolved broadcast")
	}
	result := resolved.Payload.(DecisionResult)
	if result.Canceled || result.Choice != "buy" {
		t.Fatalf("result = %+v, want choice buy", result)
	}
	logged := false
	for _, action := range te.store.actionsLogged(sessionID) {
		if action == ActionDecision {
			logged = true
		}
	}
	if !logged {
		t.Fatal("expected decision activity record")
	}

	err = te.engine.Decisions.Submit(ctx, sessionID, order[0], decision.ID, "buy")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("error = %v, want not found after resolution", err)
	}
}

func TestTurnAdvanceCancelsPendingDecision(t *testing.T) {
	te := newTestEngine()
	sessionID, order := liveGameplaySession(t, te)
	ctx := context.Background()

	decision, err := te.engine.Decisions.Create(ctx, sessionID, order[0],
		"Buy the rental property?", []string{"buy", "pass"})
	if err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if _, err := te.engine.Bridge.ExecuteAction(ctx, sessionID, order[0], ActionEndTurn); err != nil {
		t.Fatalf("end turn: %v", err)
	}

	resolved, ok := te.events.last(EventDecisionResolved)
	if !ok {
		t.Fatal("expected decisionResolved broadcast after turn change")
	}
	result := resolved.Payload.(DecisionResult)
	if !result.Canceled || result.Decision.ID != decision.ID {
		t.Fatalf("result = %+v, want canceled decision %s", result, decision.ID)
	}

	if _, err := te.engine.Decisions.Create(ctx, sessionID, order[1],
		"Take the side job?", []string{"accept", "decline"}); err != nil {
		t.Fatalf("create decision on next turn: %v", err)
	}
}

func TestConcurrentDecisionsAcrossSessions(t *testing.T) {
	te := newTestEngine()
	ctx := context.Background()

	sessionIDs := make([]string, 8)
	for i := range sessionIDs {
		sessionIDs[i] = fmt.Sprintf("sess%d", i)
		if err := te.engine.Scheduler.Initialize(ctx, sessionIDs[i], []string{"a", "b"}, 60*time.Second); err != nil {
			t.Fatalf("initialize %s: %v", sessionIDs[i], err)
		}
	}

	var wg sync.WaitGroup
	for _, sessionID := range sessionIDs {
		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = te.engine.Decisions.Create(ctx, sessionID, "a",
					"Buy the rental property?", []string{"buy", "pass"})
				te.engine.Decisions.Cancel(ctx, sessionID)
			}
		}(sessionID)
	}
	wg.Wait()

	for _, sessionID := range sessionIDs {
		if _, err := te.engine.Decisions.Create(ctx, sessionID, "a",
			"Take the side job?", []string{"accept", "decline"}); err != nil {
			t.Fatalf("create after churn on %s: %v", sessionID, err)
		}
	}
}

func TestStopGameplayCancelsPendingDecision(t *testing.T) {
	te := newTestEngine()
	sessionID, order := liveGameplaySession(t, te)
	ctx := context.Background()

	if _, err := te.engine.Decisions.Create(ctx, sessionID, order[0],
		"Buy the rental property?", []string{"buy", "pass"}); err != nil {
		t.Fatalf("create decision: %v", err)
	}
	if err := te.engine.Phases.EndGame(ctx, sessionID, "", EndReasonHostEnded); err != nil {
		t.Fatalf("end game: %v", err)
	}

	resolved, ok := te.events.last(EventDecisionResolved)
	if !ok {
		t.Fatal("expected decisionResolved broadcast on game end")
	}
	if result := resolved.Payload.(DecisionResult); !result.Canceled {
		t.Fatalf("result = %+v, want canceled", result)
	}
}
