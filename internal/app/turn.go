package app

import (
	"mesa/internal/domain"
	"mesa/internal/domain/la51"
	"mesa/internal/domain/ludo"
)

// engine adapts one rule engine to the generic turn driver.
type engine interface {
	beginTurn(seat int)
	legalActions(seat int) []ActionName
	remove(seat int)
}

type la51Engine struct{ g *la51.Game }

func (e la51Engine) beginTurn(seat int) { e.g.BeginTurn(seat) }
func (e la51Engine) remove(seat int)    { e.g.RemovePlayer(seat) }

func (e la51Engine) legalActions(seat int) []ActionName {
	if e.g.Turn.Seat != seat {
		return nil
	}
	if !e.g.Turn.HasDrawn {
		var out []ActionName
		if e.g.CanDrawFromDeck() {
			out = append(out, ActionDrawFromDeck)
		}
		if len(e.g.DiscardPile) > 0 {
			out = append(out, ActionDrawFromDiscard)
		}
		return out
	}
	return []ActionName{ActionMeld, ActionDiscard}
}

type ludoEngine struct{ g *ludo.Game }

func (e ludoEngine) beginTurn(seat int) { e.g.BeginTurn(seat) }
func (e ludoEngine) remove(seat int)    { e.g.RemoveSeat(seat) }

func (e ludoEngine) legalActions(seat int) []ActionName {
	if e.g.Turn.Seat != seat || e.g.Finished {
		return nil
	}
	if e.g.Turn.CanRoll {
		return []ActionName{ActionRollDice}
	}
	if len(e.g.LegalMoves(seat)) > 0 {
		return []ActionName{ActionMovePiece}
	}
	return nil
}

// TurnMachine tracks the single current seat of a game and which seats are
// still active. Advancing is round-robin over active seats in seat order.
type TurnMachine struct {
	current   int
	active    [domain.SeatCount]bool
	engine    engine
	firstTurn bool

	La51 *la51.Game
	Ludo *ludo.Game
}

func newLa51Turns(g *la51.Game, seats []int, first int) *TurnMachine {
	t := &TurnMachine{engine: la51Engine{g}, La51: g}
	t.start(seats, first)
	return t
}

func newLudoTurns(g *ludo.Game, seats []int, first int) *TurnMachine {
	t := &TurnMachine{engine: ludoEngine{g}, Ludo: g}
	t.start(seats, first)
	return t
}

func (t *TurnMachine) start(seats []int, first int) {
	for _, s := range seats {
		t.active[s] = true
	}
	t.current = first
	t.firstTurn = true
	t.engine.beginTurn(first)
}

// Current is the seat whose turn it is.
func (t *TurnMachine) Current() int {
	return t.current
}

// FirstTurn reports whether nobody has finished a turn yet.
func (t *TurnMachine) FirstTurn() bool {
	return t.firstTurn
}

// IsActive reports whether seat still takes turns.
func (t *TurnMachine) IsActive(seat int) bool {
	return seat >= 0 && seat < domain.SeatCount && t.active[seat]
}

// CanAct reports whether seat may act now.
func (t *TurnMachine) CanAct(seat int) bool {
	return t.IsActive(seat) && seat == t.current
}

// LegalActions lists what seat may do now; empty when it is not seat's turn.
func (t *TurnMachine) LegalActions(seat int) []ActionName {
	if !t.CanAct(seat) {
		return nil
	}
	return t.engine.legalActions(seat)
}

// Allows reports whether name is currently legal for seat.
func (t *TurnMachine) Allows(seat int, name ActionName) bool {
	for _, a := range t.LegalActions(seat) {
		if a == name {
			return true
		}
	}
	return false
}

// ActiveSeats lists active seats in seat order.
func (t *TurnMachine) ActiveSeats() []int {
	var out []int
	for i, a := range t.active {
		if a {
			out = append(out, i)
		}
	}
	return out
}

// Advance moves to the next active seat after the current one and begins its turn.
// It returns false when no active seat remains.
func (t *TurnMachine) Advance() (int, bool) {
	t.firstTurn = false
	for i := 1; i <= domain.SeatCount; i++ {
		next := (t.current + i) % domain.SeatCount
		if t.active[next] {
			t.current = next
			t.engine.beginTurn(next)
			return next, true
		}
	}
	return -1, false
}

// Eliminate removes seat from play and reports whether it held the turn.
func (t *TurnMachine) Eliminate(seat int) bool {
	if !t.IsActive(seat) {
		return false
	}
	t.active[seat] = false
	t.engine.remove(seat)
	return seat == t.current
}
