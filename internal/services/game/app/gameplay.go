package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
	"github.com/wealthpath/wealthpath/internal/services/game/domain/core/dice"
)

// Action kinds recorded in the activity log.
const (
	ActionRollDice = "roll_dice"
	ActionDrawCard = "draw_card"
	ActionEndTurn  = "end_turn"
)

// WinningNetWorth is the cash balance a player must reach to win.
const WinningNetWorth = 10000

// StartingBalance is every player's balance when gameplay begins.
const StartingBalance = 2000

// Card is a financial event drawn from the deck. Delta is applied to the
// drawing player's balance.
type Card struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Delta int    `json:"delta"`
}

// ActionResult is the outcome of one gameplay action, suitable for
// broadcasting and for the activity log detail column.
type ActionResult struct {
	Action  string       `json:"action"`
	Dice    *dice.Result `json:"dice,omitempty"`
	Card    *Card        `json:"card,omitempty"`
	Balance int          `json:"balance"`
	Detail  string       `json:"detail"`
}

// ActionExecutor runs gameplay actions for a session. Implementations must
// be safe for concurrent use; the engine calls them under the session lock.
type ActionExecutor interface {
	RollDice(ctx context.Context, sessionID, slotID string) (ActionResult, error)
	DrawCard(ctx context.Context, sessionID, slotID string) (ActionResult, error)
	EndTurn(ctx context.Context, sessionID, slotID string) (ActionResult, error)
	CheckWinCondition(ctx context.Context, sessionID, slotID string) (bool, error)
}

// defaultDeck is the built-in financial event deck.
var defaultDeck = []Card{
	{Title: "Payday", Text: "Monthly salary lands in your account.", Delta: 800},
	{Title: "Car repair", Text: "The transmission gives out.", Delta: -450},
	{Title: "Tax refund", Text: "You filed early and it paid off.", Delta: 300},
	{Title: "Medical bill", Text: "An urgent care visit was not covered.", Delta: -250},
	{Title: "Side gig", Text: "A weekend of freelance work.", Delta: 200},
	{Title: "Market dip", Text: "Your index fund takes a hit.", Delta: -350},
	{Title: "Dividend", Text: "Quarterly dividends arrive.", Delta: 150},
	{Title: "Rent increase", Text: "Your landlord raises the rent.", Delta: -300},
	{Title: "Bonus", Text: "Your quarterly targets were met.", Delta: 500},
	{Title: "Impulse buy", Text: "That gadget was not in the budget.", Delta: -150},
}

// ledgerExecutor is the built-in ActionExecutor. It keeps per-player cash
// balances in memory for the lifetime of a game; durable history goes
// through the activity log instead.
type ledgerExecutor struct {
	mu       sync.Mutex
	balances map[string]map[string]int
	deck     []Card
	rng      *rand.Rand
}

// NewLedgerExecutor builds the default executor seeded for reproducible
// games in tests.
func NewLedgerExecutor(seed int64) ActionExecutor {
	return &ledgerExecutor{
		balances: make(map[string]map[string]int),
		deck:     defaultDeck,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (e *ledgerExecutor) balance(sessionID, slotID string) int {
	session, ok := e.balances[sessionID]
	if !ok {
		session = make(map[string]int)
		e.balances[sessionID] = session
	}
	if _, ok := session[slotID]; !ok {
		session[slotID] = StartingBalance
	}
	return session[slotID]
}

func (e *ledgerExecutor) apply(sessionID, slotID string, delta int) int {
	current := e.balance(sessionID, slotID)
	e.balances[sessionID][slotID] = current + delta
	return current + delta
}

func (e *ledgerExecutor) RollDice(ctx context.Context, sessionID, slotID string) (ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return ActionResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	roll, err := dice.Roll(e.rng.Int63(), dice.Spec{Sides: 6, Count: 2})
	if err != nil {
		return ActionResult{}, err
	}
	balance := e.apply(sessionID, slotID, roll.Total*10)
	return ActionResult{
		Action:  ActionRollDice,
		Dice:    &roll,
		Balance: balance,
		Detail:  fmt.Sprintf("rolled %d, advanced %d spaces", roll.Total, roll.Total),
	}, nil
}

func (e *ledgerExecutor) DrawCard(ctx context.Context, sessionID, slotID string) (ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return ActionResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	card := e.deck[e.rng.Intn(len(e.deck))]
	balance := e.apply(sessionID, slotID, card.Delta)
	return ActionResult{
		Action:  ActionDrawCard,
		Card:    &card,
		Balance: balance,
		Detail:  fmt.Sprintf("drew %q (%+d)", card.Title, card.Delta),
	}, nil
}

func (e *ledgerExecutor) EndTurn(ctx context.Context, sessionID, slotID string) (ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return ActionResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return ActionResult{
		Action:  ActionEndTurn,
		Balance: e.balance(sessionID, slotID),
		Detail:  "ended turn",
	}, nil
}

func (e *ledgerExecutor) CheckWinCondition(ctx context.Context, sessionID, slotID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance(sessionID, slotID) >= WinningNetWorth, nil
}

// Forget drops a session's balances after the game ends.
func (e *ledgerExecutor) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.balances, sessionID)
}

// validateAction rejects action kinds the engine does not know.
func validateAction(action string) error {
	switch action {
	case ActionRollDice, ActionDrawCard, ActionEndTurn:
		return nil
	}
	return apperrors.WithMetadata(apperrors.CodeTurnInvalidAction, "unknown gameplay action", map[string]string{"Action": action})
}
