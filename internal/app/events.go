package app

import (
	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
	"mesa/internal/domain/la51"
	"mesa/internal/domain/ludo"
)

// EventKind identifies emitted events for Nakama dispatch. The values are the
// event names clients listen for.
type EventKind string

const (
	EventJoinedRoom          EventKind = "joinedRoomSuccessfully"
	EventJoinedAsSpectator   EventKind = "joinedAsSpectator"
	EventRoomState           EventKind = "roomStateUpdated"
	EventSeatAvailable       EventKind = "seatBecameAvailable"
	EventSatDownToWait       EventKind = "playerSatDownToWait"
	EventPlayerLeft          EventKind = "playerLeft"
	EventNewHost             EventKind = "newHostAssigned"
	EventGameStarted         EventKind = "gameStarted"
	EventCardDrawn           EventKind = "cardDrawn"
	EventDiscardCardDrawn    EventKind = "discardCardDrawn"
	EventPlayerDrewCard      EventKind = "playerDrewCard"
	EventDeckShuffled        EventKind = "deckShuffled"
	EventMeldSuccess         EventKind = "meldSuccess"
	EventMeldUpdate          EventKind = "meldUpdate"
	EventFault               EventKind = "fault"
	EventTurnChanged         EventKind = "turnChanged"
	EventDiceRolling         EventKind = "ludoDiceRolling"
	EventDiceRolled          EventKind = "ludoDiceRolled"
	EventBoardUpdated        EventKind = "ludoGameStateUpdated"
	EventFoulPenalty         EventKind = "ludoFoulPenalty"
	EventPlayerEliminated    EventKind = "playerEliminated"
	EventPlayerAbandoned     EventKind = "playerAbandoned"
	EventGameEnd             EventKind = "gameEnd"
	EventLudoGameOver        EventKind = "ludoGameOver"
	EventRematchUpdate       EventKind = "rematchUpdate"
	EventRematchStarted      EventKind = "rematchStarted"
	EventChatMessage         EventKind = "chatMessage"
	EventGameResumed         EventKind = "gameResumed"
	EventRateWarning         EventKind = "rateWarning"
	EventSettlementCompleted EventKind = "settlementCompleted"
)

// Event is an app event with optional targeted recipients.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string // user IDs; empty means broadcast
	Except     []string // user IDs excluded from a broadcast
}

// SeatView is the public view of a seat.
type SeatView struct {
	Seat       int               `json:"seat"`
	UserID     string            `json:"userId"`
	PlayerID   string            `json:"playerId"`
	PlayerName string            `json:"playerName"`
	Avatar     string            `json:"avatar,omitempty"`
	Status     domain.SeatStatus `json:"status"`
	Connected  bool              `json:"connected"`
	IsHost     bool              `json:"isHost"`
}

type JoinedPayload struct {
	RoomID      string     `json:"roomId"`
	Seat        int        `json:"seat"`
	Spectator   bool       `json:"spectator"`
	ResumeToken string     `json:"resumeToken,omitempty"`
	Seats       []SeatView `json:"seats"`
}

type RoomStatePayload struct {
	RoomID     string           `json:"roomId"`
	GameType   domain.GameType  `json:"gameType"`
	State      domain.RoomState `json:"state"`
	Settings   domain.Settings  `json:"settings"`
	Seats      []SeatView       `json:"seats"`
	HostSeat   int              `json:"hostSeat"`
	Spectators int              `json:"spectators"`
}

type SeatPayload struct {
	Seat       int    `json:"seat"`
	UserID     string `json:"userId"`
	PlayerName string `json:"playerName"`
	Reason     string `json:"reason,omitempty"`
}

type GameStartedPayload struct {
	GameType        domain.GameType `json:"gameType"`
	Hand            []la51.Card     `json:"hand,omitempty"`
	DiscardPile     []la51.Card     `json:"discardPile,omitempty"`
	Melds           []la51.Meld     `json:"melds,omitempty"`
	Board           *ludo.View      `json:"board,omitempty"`
	Seats           []SeatView      `json:"seats"`
	CurrentPlayerID string          `json:"currentPlayerId"`
	CurrentSeat     int             `json:"currentSeat"`
	IsFirstTurn     bool            `json:"isFirstTurn"`
	Pot             int64           `json:"pot"`
	Currency        string          `json:"currency"`
}

type CardDrawnPayload struct {
	Card           la51.Card   `json:"card"`
	NewDiscardPile []la51.Card `json:"newDiscardPile"`
	DeckCount      int         `json:"deckCount"`
}

type PlayerDrewPayload struct {
	Seat           int         `json:"seat"`
	UserID         string      `json:"userId"`
	Source         string      `json:"source"`
	Card           *la51.Card  `json:"card,omitempty"`
	HandCount      int         `json:"handCount"`
	NewDiscardPile []la51.Card `json:"newDiscardPile"`
	DeckCount      int         `json:"deckCount"`
}

type DeckShuffledPayload struct {
	DeckCount   int         `json:"deckCount"`
	DiscardPile []la51.Card `json:"discardPile"`
}

type MeldSuccessPayload struct {
	MeldIndex int         `json:"meldIndex"`
	Cards     []la51.Card `json:"cards"`
	Hand      []la51.Card `json:"hand"`
	Opened    bool        `json:"opened"`
}

type MeldUpdatePayload struct {
	Seat             int              `json:"seat"`
	UserID           string           `json:"userId"`
	NewMelds         []la51.Meld      `json:"newMelds"`
	TurnMelds        []int            `json:"turnMelds"`
	PlayerHandCounts []la51.HandCount `json:"playerHandCounts"`
}

type FaultPayload struct {
	Seat         int                `json:"seat"`
	UserID       string             `json:"userId"`
	PlayerName   string             `json:"playerName"`
	FaultType    domain.FaultReason `json:"faultType"`
	InvalidCards []string           `json:"invalidCards,omitempty"`
	ContextCards []string           `json:"contextCards,omitempty"`
	Detail       string             `json:"detail,omitempty"`
}

type TurnChangedPayload struct {
	PreviousSeat     int              `json:"previousSeat"`
	DiscardedCard    *la51.Card       `json:"discardedCard,omitempty"`
	NewMelds         []la51.Meld      `json:"newMelds"`
	NewDiscardPile   []la51.Card      `json:"newDiscardPile"`
	NextPlayerID     string           `json:"nextPlayerId"`
	NextSeat         int              `json:"nextSeat"`
	PlayerHandCounts []la51.HandCount `json:"playerHandCounts"`
	DeckCount        int              `json:"deckCount"`
}

type DiceRollingPayload struct {
	Seat   int    `json:"seat"`
	UserID string `json:"userId"`
}

type TurnData struct {
	Seat          int         `json:"seat"`
	PossibleMoves []ludo.Move `json:"possibleMoves"`
	CanRoll       bool        `json:"canRoll"`
	RollAgain     bool        `json:"rollAgain"`
	TurnOver      bool        `json:"turnOver"`
}

type DiceRolledPayload struct {
	Seat       int               `json:"seat"`
	DiceValues [2]int            `json:"diceValues"`
	Doubles    bool              `json:"doubles"`
	AutoMoves  []ludo.MoveResult `json:"autoMoves,omitempty"`
	TurnData   TurnData          `json:"turnData"`
}

type BoardUpdatedPayload struct {
	NewGameState ludo.View        `json:"newGameState"`
	MoveInfo     *ludo.MoveResult `json:"moveInfo,omitempty"`
	Seats        []SeatView       `json:"seats,omitempty"`
}

type FoulPenaltyPayload struct {
	ludo.Foul
	UserID     string `json:"userId"`
	PlayerName string `json:"playerName"`
}

type EliminatedPayload struct {
	Seat             int           `json:"seat"`
	PlayerID         string        `json:"playerId"`
	UserID           string        `json:"userId"`
	PlayerName       string        `json:"playerName"`
	Reason           string        `json:"reason"`
	FaultData        *domain.Fault `json:"faultData,omitempty"`
	Redirect         bool          `json:"redirect"`
	PenaltyCollected int64         `json:"penaltyCollected"`
}

type GameOverPayload struct {
	GameType       domain.GameType  `json:"gameType"`
	WinnerSeats    []int            `json:"winnerSeats"`
	WinnerName     string           `json:"winnerName"`
	WinnerNames    []string         `json:"winnerNames"`
	TotalPot       int64            `json:"totalPot"`
	Commission     int64            `json:"commission"`
	FinalWinnings  int64            `json:"finalWinnings"`
	Currency       string           `json:"currency"`
	Settled        bool             `json:"settled"`
	Payouts        []escrow.Share   `json:"payouts"`
	FinalRoomState RoomStatePayload `json:"finalRoomState"`
	Scores         []la51.HandCount `json:"scores,omitempty"`
	Board          *ludo.View       `json:"board,omitempty"`
}

type RematchUpdatePayload struct {
	ConfirmedPlayers []string `json:"confirmedPlayers"`
	PlayersReady     int      `json:"playersReady"`
	TotalPlayers     int      `json:"totalPlayers"`
	CanStart         bool     `json:"canStart"`
	DeadlineTick     int64    `json:"deadlineTick"`
}

type ChatMessage struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"text"`
	Tick       int64  `json:"tick"`
}

type RateWarningPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SettlementPayload struct {
	Settlement escrow.Settlement `json:"settlement"`
}
