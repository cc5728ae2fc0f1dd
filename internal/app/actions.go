package app

import "mesa/internal/domain/ludo"

// ActionName is the client-facing name of a turn action.
type ActionName string

const (
	ActionDrawFromDeck    ActionName = "drawFromDeck"
	ActionDrawFromDiscard ActionName = "drawFromDiscard"
	ActionMeld            ActionName = "meldAction"
	ActionDiscard         ActionName = "accionDescartar"
	ActionRollDice        ActionName = "ludoRollDice"
	ActionMovePiece       ActionName = "ludoMovePiece"
)

// Action is the closed set of inputs a room processes. Every variant is
// handled by the switch in Service.Handle.
type Action interface {
	isAction()
}

type StartGame struct{ UserID string }

type DrawFromDeck struct{ UserID string }

type DrawFromDiscard struct{ UserID string }

// Meld places a new meld, or extends melds[TargetMeldIndex] when set.
type Meld struct {
	UserID          string
	CardIDs         []string
	TargetMeldIndex *int
}

type Discard struct {
	UserID string
	CardID string
}

type RollDice struct{ UserID string }

type MovePiece struct {
	UserID string
	Move   ludo.Move
}

type RequestToSit struct{ UserID string }

type LeaveGame struct{ UserID string }

type ConfirmRematch struct{ UserID string }

type StartRematch struct{ UserID string }

type SendChat struct {
	UserID string
	Text   string
}

type Resync struct{ UserID string }

// InactivityExpired is fired by the room's idle timer.
type InactivityExpired struct{ Seat int }

// RematchExpired is fired when the rematch window closes.
type RematchExpired struct{}

func (StartGame) isAction()         {}
func (DrawFromDeck) isAction()      {}
func (DrawFromDiscard) isAction()   {}
func (Meld) isAction()              {}
func (Discard) isAction()           {}
func (RollDice) isAction()          {}
func (MovePiece) isAction()         {}
func (RequestToSit) isAction()      {}
func (LeaveGame) isAction()         {}
func (ConfirmRematch) isAction()    {}
func (StartRematch) isAction()      {}
func (SendChat) isAction()          {}
func (Resync) isAction()            {}
func (InactivityExpired) isAction() {}
func (RematchExpired) isAction()    {}
