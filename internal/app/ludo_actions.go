package app

import (
	"context"

	"mesa/internal/domain/ludo"
)

func (s *Service) rollDice(ctx context.Context, room *Room, userID string) ([]Event, error) {
	seat, err := s.actor(room, userID, ActionRollDice)
	if err != nil {
		return nil, err
	}
	g := room.Turn.Ludo
	values := s.roller.Roll()
	res, err := g.Roll(seat, values)
	if err != nil {
		return nil, illegal(err)
	}
	s.touch(room, seat)

	events := []Event{{Kind: EventDiceRolling, Payload: DiceRollingPayload{Seat: seat, UserID: userID}}}
	if res.Foul != nil {
		events = append(events, s.foulEvent(room, *res.Foul))
	}
	moves := res.LegalMoves
	if moves == nil {
		moves = []ludo.Move{}
	}
	events = append(events, Event{Kind: EventDiceRolled, Payload: DiceRolledPayload{
		Seat:       seat,
		DiceValues: values,
		Doubles:    res.Doubles,
		AutoMoves:  res.AutoMoves,
		TurnData: TurnData{
			Seat:          seat,
			PossibleMoves: moves,
			CanRoll:       g.Turn.CanRoll,
			RollAgain:     res.RollAgain,
			TurnOver:      res.TurnOver,
		},
	}})

	if res.TurnOver {
		return append(events, s.passTurn(room, seat, nil, nil)...), nil
	}
	if len(res.AutoMoves) > 0 {
		last := res.AutoMoves[len(res.AutoMoves)-1]
		events = append(events, s.boardEvent(room, &last))
	}
	return events, nil
}

func (s *Service) movePiece(ctx context.Context, room *Room, a MovePiece) ([]Event, error) {
	seat, err := s.actor(room, a.UserID, ActionMovePiece)
	if err != nil {
		return nil, err
	}
	g := room.Turn.Ludo
	res, err := g.Move(seat, a.Move)
	if err != nil {
		return nil, illegal(err)
	}
	s.touch(room, seat)

	var events []Event
	if res.Foul != nil {
		events = append(events, s.foulEvent(room, *res.Foul))
	}
	if len(res.Winners) > 0 {
		events = append(events, s.boardEvent(room, &res))
		return append(events, s.finishGame(ctx, room, res.Winners)...), nil
	}
	if res.TurnOver {
		return append(events, s.passTurn(room, seat, nil, &res)...), nil
	}
	return append(events, s.boardEvent(room, &res)), nil
}

func (s *Service) foulEvent(room *Room, f ludo.Foul) Event {
	p := FoulPenaltyPayload{Foul: f}
	if st := room.Seats[f.Seat]; st != nil {
		p.UserID = st.UserID
		p.PlayerName = st.Name
	}
	return Event{Kind: EventFoulPenalty, Payload: p}
}
