package nakama

import (
	"encoding/json"
	"testing"

	"mesa/internal/app"
	"mesa/internal/domain"
	"mesa/internal/domain/ludo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAction(t *testing.T) {
	two := 2
	tests := []struct {
		name   string
		opCode int64
		body   string
		want   app.Action
	}{
		{"StartGame", OpStartGame, "", app.StartGame{UserID: "u1"}},
		{"DrawFromDeck", OpDrawFromDeck, `{"roomId":"r"}`, app.DrawFromDeck{UserID: "u1"}},
		{"DrawFromDiscard", OpDrawFromDiscard, "", app.DrawFromDiscard{UserID: "u1"}},
		{"Meld", OpMeld, `{"cardIds":["a","b","c"]}`, app.Meld{UserID: "u1", CardIDs: []string{"a", "b", "c"}}},
		{"MeldOnto", OpMeld, `{"cardIds":["a"],"targetMeldIndex":2}`, app.Meld{UserID: "u1", CardIDs: []string{"a"}, TargetMeldIndex: &two}},
		{"DiscardById", OpDiscard, `{"cardId":"7H-1"}`, app.Discard{UserID: "u1", CardID: "7H-1"}},
		{"DiscardByCard", OpDiscard, `{"card":{"id":"7H-1","rank":7}}`, app.Discard{UserID: "u1", CardID: "7H-1"}},
		{"Roll", OpRollDice, "", app.RollDice{UserID: "u1"}},
		{"Move", OpMovePiece, `{"move":{"type":"die","pieceId":"p1","diceValue":5}}`, app.MovePiece{UserID: "u1", Move: ludo.Move{Type: ludo.MoveDie, PieceID: "p1", DiceValue: 5}}},
		{"Sit", OpRequestToSit, "", app.RequestToSit{UserID: "u1"}},
		{"Leave", OpLeaveGame, "", app.LeaveGame{UserID: "u1"}},
		{"Confirm", OpConfirmRematch, "", app.ConfirmRematch{UserID: "u1"}},
		{"Rematch", OpStartRematch, "", app.StartRematch{UserID: "u1"}},
		{"Chat", OpSendChat, `{"text":"hola"}`, app.SendChat{UserID: "u1", Text: "hola"}},
		{"Resync", OpResync, "", app.Resync{UserID: "u1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAction(tt.opCode, "u1", []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAction_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		opCode int64
		body   string
		want   error
	}{
		{"UnknownOpCode", 42, "", ErrUnknownOpCode},
		{"BadJSON", OpSendChat, "{", ErrInvalidPayload},
		{"MeldWithoutCards", OpMeld, `{}`, ErrInvalidPayload},
		{"DiscardWithoutCard", OpDiscard, `{"card":{}}`, ErrInvalidPayload},
		{"MoveWithoutMove", OpMovePiece, "", ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeAction(tt.opCode, "u1", []byte(tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeEnvelope(t *testing.T) {
	b, err := encodeEnvelope("playerLeft", app.SeatPayload{Seat: 2, UserID: "u3", PlayerName: "Ana", Reason: "left"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"playerLeft","data":{"seat":2,"userId":"u3","playerName":"Ana","reason":"left"}}`, string(b))
}

func TestEveryEventKindHasAnOpCode(t *testing.T) {
	seen := map[int64]app.EventKind{}
	for kind, op := range eventOpCodes {
		assert.GreaterOrEqual(t, op, int64(100), kind)
		if other, dup := seen[op]; dup {
			t.Fatalf("opcode %d used by %s and %s", op, kind, other)
		}
		seen[op] = kind
	}
	assert.Len(t, eventOpCodes, 30)
}

func TestRoomLabel(t *testing.T) {
	room := app.NewRoom("r1", domain.GameParchis, domain.Settings{Bet: 50, Penalty: 10, Currency: "COP", ParchisMode: domain.ParchisPairs})
	label, err := roomLabel(room)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(label), &fields))
	assert.Equal(t, map[string]interface{}{
		"open": float64(4), "game": "parchis", "state": "waiting", "bet": float64(50), "currency": "COP", "mode": "pairs",
	}, fields)

	room.State = domain.RoomPlaying
	label, err = roomLabel(room)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(label), &fields))
	assert.Equal(t, float64(0), fields["open"])
}
