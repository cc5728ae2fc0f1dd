package nakama

import "mesa/internal/app"

const (
	// RpcCreateRoom creates a room with an explicit bet or a configured tier.
	RpcCreateRoom = "create_room"
	// RpcQuickMatch is the Nakama RPC id clients call to find or create a waiting room.
	RpcQuickMatch = "quick_match"
	// RpcResumeSession exchanges a resume token for a fresh snapshot.
	RpcResumeSession = "resume_session"

	// MatchNameMesa is the authoritative match handler name registered with Nakama.
	MatchNameMesa = "mesa_room"

	MatchLabelKey_OpenSeats = "open" // Key for the open seats in the match label
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpStartGame       int64 = 1
	OpDrawFromDeck    int64 = 2
	OpDrawFromDiscard int64 = 3
	OpMeld            int64 = 4
	OpDiscard         int64 = 5
	OpRollDice        int64 = 6
	OpMovePiece       int64 = 7
	OpRequestToSit    int64 = 8
	OpLeaveGame       int64 = 9
	OpConfirmRematch  int64 = 10 // also sent as requestRematch
	OpStartRematch    int64 = 11
	OpSendChat        int64 = 12
	OpResync          int64 = 13

	// Server -> Client events
	OpJoinedRoom          int64 = 101
	OpJoinedAsSpectator   int64 = 102
	OpRoomState           int64 = 103
	OpSeatAvailable       int64 = 104
	OpSatDownToWait       int64 = 105
	OpPlayerLeft          int64 = 106
	OpNewHost             int64 = 107
	OpGameStarted         int64 = 108
	OpCardDrawn           int64 = 109 // send privately
	OpDiscardCardDrawn    int64 = 110 // send privately
	OpPlayerDrewCard      int64 = 111
	OpDeckShuffled        int64 = 112
	OpMeldSuccess         int64 = 113
	OpMeldUpdate          int64 = 114
	OpFault               int64 = 115
	OpTurnChanged         int64 = 116
	OpDiceRolling         int64 = 117
	OpDiceRolled          int64 = 118
	OpBoardUpdated        int64 = 119
	OpFoulPenalty         int64 = 120
	OpPlayerEliminated    int64 = 121
	OpPlayerAbandoned     int64 = 122
	OpGameEnd             int64 = 123
	OpLudoGameOver        int64 = 124
	OpRematchUpdate       int64 = 125
	OpRematchStarted      int64 = 126
	OpChatMessage         int64 = 127
	OpGameResumed         int64 = 128
	OpRateWarning         int64 = 129
	OpSettlementCompleted int64 = 130
	OpActionRejected      int64 = 131
	OpJoinError           int64 = 132
)

var eventOpCodes = map[app.EventKind]int64{
	app.EventJoinedRoom:          OpJoinedRoom,
	app.EventJoinedAsSpectator:   OpJoinedAsSpectator,
	app.EventRoomState:           OpRoomState,
	app.EventSeatAvailable:       OpSeatAvailable,
	app.EventSatDownToWait:       OpSatDownToWait,
	app.EventPlayerLeft:          OpPlayerLeft,
	app.EventNewHost:             OpNewHost,
	app.EventGameStarted:         OpGameStarted,
	app.EventCardDrawn:           OpCardDrawn,
	app.EventDiscardCardDrawn:    OpDiscardCardDrawn,
	app.EventPlayerDrewCard:      OpPlayerDrewCard,
	app.EventDeckShuffled:        OpDeckShuffled,
	app.EventMeldSuccess:         OpMeldSuccess,
	app.EventMeldUpdate:          OpMeldUpdate,
	app.EventFault:               OpFault,
	app.EventTurnChanged:         OpTurnChanged,
	app.EventDiceRolling:         OpDiceRolling,
	app.EventDiceRolled:          OpDiceRolled,
	app.EventBoardUpdated:        OpBoardUpdated,
	app.EventFoulPenalty:         OpFoulPenalty,
	app.EventPlayerEliminated:    OpPlayerEliminated,
	app.EventPlayerAbandoned:     OpPlayerAbandoned,
	app.EventGameEnd:             OpGameEnd,
	app.EventLudoGameOver:        OpLudoGameOver,
	app.EventRematchUpdate:       OpRematchUpdate,
	app.EventRematchStarted:      OpRematchStarted,
	app.EventChatMessage:         OpChatMessage,
	app.EventGameResumed:         OpGameResumed,
	app.EventRateWarning:         OpRateWarning,
	app.EventSettlementCompleted: OpSettlementCompleted,
}

const (
	eventActionRejected = "actionRejected"
	eventJoinError      = "joinError"
	eventRoomCreated    = "roomCreatedSuccessfully"
)
