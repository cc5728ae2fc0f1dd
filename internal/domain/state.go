package domain

import "errors"

// SeatCount is the fixed number of seats at every table.
const SeatCount = 4

// GameType identifies which rule engine drives a room.
type GameType string

const (
	GameLa51    GameType = "la51"
	GameLudo    GameType = "ludo"
	GameParchis GameType = "parchis"
)

// Valid reports whether the game type is one the engine can run.
func (g GameType) Valid() bool {
	switch g {
	case GameLa51, GameLudo, GameParchis:
		return true
	}
	return false
}

// IsBoard reports whether the game is played on the dice/board engine.
func (g GameType) IsBoard() bool {
	return g == GameLudo || g == GameParchis
}

// RoomState represents the lifecycle stage of a room.
type RoomState string

const (
	// RoomWaiting is the pre-game state where players join and the host may start.
	RoomWaiting RoomState = "waiting"
	// RoomPlaying is the active game state.
	RoomPlaying RoomState = "playing"
	// RoomPostGame follows a finished game while the rematch window is open.
	RoomPostGame RoomState = "post-game"
)

// SeatStatus describes what an occupied seat is doing in the current game.
type SeatStatus string

const (
	SeatPlaying    SeatStatus = "playing"
	SeatWaiting    SeatStatus = "waiting"
	SeatEliminated SeatStatus = "eliminated"
)

// ParchisMode selects individual play or 2v2 teams.
type ParchisMode string

const (
	ParchisIndividual ParchisMode = "individual"
	ParchisPairs      ParchisMode = "pairs"
)

var (
	ErrBetNotPositive   = errors.New("bet must be positive")
	ErrPenaltyNegative  = errors.New("penalty must not be negative")
	ErrCurrencyRequired = errors.New("bet currency is required")
	ErrUnknownGameType  = errors.New("unknown game type")
	ErrUnknownMode      = errors.New("unknown parchis mode")
)

// Settings are fixed when a room is created.
type Settings struct {
	Bet         int64       `json:"bet"`
	Penalty     int64       `json:"penalty"`
	Currency    string      `json:"betCurrency"`
	ParchisMode ParchisMode `json:"parchisMode,omitempty"`
	AutoExit    bool        `json:"autoExit"`
}

// Validate checks the settings against the given game type.
func (s Settings) Validate(game GameType) error {
	if !game.Valid() {
		return ErrUnknownGameType
	}
	if s.Bet <= 0 {
		return ErrBetNotPositive
	}
	if s.Penalty < 0 {
		return ErrPenaltyNegative
	}
	if s.Currency == "" {
		return ErrCurrencyRequired
	}
	switch s.ParchisMode {
	case "", ParchisIndividual:
	case ParchisPairs:
		if game != GameParchis {
			return ErrUnknownMode
		}
	default:
		return ErrUnknownMode
	}
	return nil
}

// Pairs reports whether the settings describe a team game.
func (s Settings) Pairs() bool {
	return s.ParchisMode == ParchisPairs
}

// FaultReason names the rule a player broke.
type FaultReason string

const (
	FaultInvalidMeld        FaultReason = "invalid_meld"
	FaultInvalidAddition    FaultReason = "invalid_meld_addition"
	FaultIllegalDiscard     FaultReason = "illegal_discard"
	FaultFirstMeldThreshold FaultReason = "first_meld_below_threshold"
)

// Fault is a rule violation that ends the offender's participation.
// It is returned as an error by the rule engines so callers can tell it apart
// from a plain rejected action with errors.As.
type Fault struct {
	Reason       FaultReason `json:"reason"`
	Seat         int         `json:"seat"`
	InvalidCards []string    `json:"invalidCards,omitempty"`
	ContextCards []string    `json:"contextCards,omitempty"`
	Detail       string      `json:"detail,omitempty"`
}

func (f *Fault) Error() string {
	if f.Detail != "" {
		return string(f.Reason) + ": " + f.Detail
	}
	return string(f.Reason)
}
