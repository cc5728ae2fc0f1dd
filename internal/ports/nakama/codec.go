package nakama

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mesa/internal/app"
	"mesa/internal/domain"
	"mesa/internal/domain/ludo"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrUnknownOpCode  = errors.New("unknown opcode")
	ErrInvalidPayload = errors.New("invalid payload")
)

// actionRequest is the union of every client message body. Fields a given
// opcode does not use are ignored.
type actionRequest struct {
	RoomID          string     `json:"roomId"`
	CardIDs         []string   `json:"cardIds"`
	TargetMeldIndex *int       `json:"targetMeldIndex"`
	CardID          string     `json:"cardId"`
	Card            *cardRef   `json:"card"`
	Move            *ludo.Move `json:"move"`
	Text            string     `json:"text"`
}

type cardRef struct {
	ID string `json:"id"`
}

// decodeAction maps an inbound opcode and body to an app action.
func decodeAction(opCode int64, userID string, data []byte) (app.Action, error) {
	var req actionRequest
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	switch opCode {
	case OpStartGame:
		return app.StartGame{UserID: userID}, nil
	case OpDrawFromDeck:
		return app.DrawFromDeck{UserID: userID}, nil
	case OpDrawFromDiscard:
		return app.DrawFromDiscard{UserID: userID}, nil
	case OpMeld:
		if len(req.CardIDs) == 0 {
			return nil, fmt.Errorf("%w: cardIds required", ErrInvalidPayload)
		}
		return app.Meld{UserID: userID, CardIDs: req.CardIDs, TargetMeldIndex: req.TargetMeldIndex}, nil
	case OpDiscard:
		id := req.CardID
		if id == "" && req.Card != nil {
			id = req.Card.ID
		}
		if id == "" {
			return nil, fmt.Errorf("%w: card required", ErrInvalidPayload)
		}
		return app.Discard{UserID: userID, CardID: id}, nil
	case OpRollDice:
		return app.RollDice{UserID: userID}, nil
	case OpMovePiece:
		if req.Move == nil {
			return nil, fmt.Errorf("%w: move required", ErrInvalidPayload)
		}
		return app.MovePiece{UserID: userID, Move: *req.Move}, nil
	case OpRequestToSit:
		return app.RequestToSit{UserID: userID}, nil
	case OpLeaveGame:
		return app.LeaveGame{UserID: userID}, nil
	case OpConfirmRematch:
		return app.ConfirmRematch{UserID: userID}, nil
	case OpStartRematch:
		return app.StartRematch{UserID: userID}, nil
	case OpSendChat:
		return app.SendChat{UserID: userID, Text: req.Text}, nil
	case OpResync:
		return app.Resync{UserID: userID}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpCode, opCode)
	}
}

// encodeEnvelope wraps a payload as {"event": name, "data": payload}.
func encodeEnvelope(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	data := &structpb.Value{}
	if err := protojson.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("failed to convert %s payload: %w", event, err)
	}
	envelope := &structpb.Struct{Fields: map[string]*structpb.Value{
		"event": structpb.NewStringValue(event),
		"data":  data,
	}}
	return protojson.Marshal(envelope)
}

// roomLabel is what quick_match filters on.
func roomLabel(room *app.Room) (string, error) {
	mode := string(room.Settings.ParchisMode)
	if mode == "" {
		mode = string(domain.ParchisIndividual)
	}
	open := 0
	if room.Open() {
		for _, s := range room.Seats {
			if s == nil {
				open++
			}
		}
	}
	label, err := structpb.NewStruct(map[string]interface{}{
		MatchLabelKey_OpenSeats: open,
		"game":                  string(room.GameType),
		"state":                 string(room.State),
		"bet":                   room.Settings.Bet,
		"currency":              room.Settings.Currency,
		"mode":                  mode,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build label: %w", err)
	}
	b, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
