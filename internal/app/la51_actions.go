package app

import (
	"context"
	"errors"

	"mesa/internal/domain"
	"mesa/internal/domain/la51"
)

func (s *Service) drawFromDeck(room *Room, userID string) ([]Event, error) {
	seat, err := s.actor(room, userID, ActionDrawFromDeck)
	if err != nil {
		return nil, err
	}
	g := room.Turn.La51
	card, reshuffled, err := g.DrawFromDeck(seat)
	if err != nil {
		return nil, illegal(err)
	}
	s.touch(room, seat)

	var events []Event
	if reshuffled {
		events = append(events, Event{Kind: EventDeckShuffled, Payload: DeckShuffledPayload{
			DeckCount:   len(g.Deck) + 1,
			DiscardPile: pile(g),
		}})
	}
	return append(events,
		Event{
			Kind:       EventCardDrawn,
			Payload:    CardDrawnPayload{Card: card, NewDiscardPile: pile(g), DeckCount: len(g.Deck)},
			Recipients: []string{userID},
		},
		Event{
			Kind: EventPlayerDrewCard,
			Payload: PlayerDrewPayload{
				Seat:           seat,
				UserID:         userID,
				Source:         "deck",
				HandCount:      len(g.Players[seat].Hand),
				NewDiscardPile: pile(g),
				DeckCount:      len(g.Deck),
			},
			Except: []string{userID},
		},
	), nil
}

func (s *Service) drawFromDiscard(room *Room, userID string) ([]Event, error) {
	seat, err := s.actor(room, userID, ActionDrawFromDiscard)
	if err != nil {
		return nil, err
	}
	g := room.Turn.La51
	card, err := g.DrawFromDiscard(seat)
	if err != nil {
		return nil, illegal(err)
	}
	s.touch(room, seat)

	return []Event{
		{
			Kind:       EventDiscardCardDrawn,
			Payload:    CardDrawnPayload{Card: card, NewDiscardPile: pile(g), DeckCount: len(g.Deck)},
			Recipients: []string{userID},
		},
		{
			Kind: EventPlayerDrewCard,
			Payload: PlayerDrewPayload{
				Seat:           seat,
				UserID:         userID,
				Source:         "discard",
				Card:           &card,
				HandCount:      len(g.Players[seat].Hand),
				NewDiscardPile: pile(g),
				DeckCount:      len(g.Deck),
			},
			Except: []string{userID},
		},
	}, nil
}

func (s *Service) meld(ctx context.Context, room *Room, a Meld) ([]Event, error) {
	seat, err := s.actor(room, a.UserID, ActionMeld)
	if err != nil {
		return nil, err
	}
	g := room.Turn.La51

	var res la51.MeldResult
	if a.TargetMeldIndex != nil {
		res, err = g.AddToMeld(seat, *a.TargetMeldIndex, a.CardIDs)
	} else {
		res, err = g.Meld(seat, a.CardIDs)
	}
	if err != nil {
		var fault *domain.Fault
		if errors.As(err, &fault) {
			return s.eliminate(ctx, room, seat, elimination{reason: ReasonFault, fault: fault}), nil
		}
		return nil, illegal(err)
	}
	s.touch(room, seat)

	events := []Event{
		{
			Kind: EventMeldSuccess,
			Payload: MeldSuccessPayload{
				MeldIndex: res.Index,
				Cards:     res.Cards,
				Hand:      append([]la51.Card{}, g.Players[seat].Hand...),
				Opened:    res.Opened,
			},
			Recipients: []string{a.UserID},
		},
		{
			Kind: EventMeldUpdate,
			Payload: MeldUpdatePayload{
				Seat:             seat,
				UserID:           a.UserID,
				NewMelds:         g.MeldsCopy(),
				TurnMelds:        append([]int{}, g.Turn.TurnMelds...),
				PlayerHandCounts: g.HandCounts(),
			},
		},
	}
	if res.HandEmpty {
		events = append(events, s.finishGame(ctx, room, []int{seat})...)
	}
	return events, nil
}

func (s *Service) discard(ctx context.Context, room *Room, a Discard) ([]Event, error) {
	seat, err := s.actor(room, a.UserID, ActionDiscard)
	if err != nil {
		return nil, err
	}
	g := room.Turn.La51

	res, err := g.Discard(seat, a.CardID)
	if err != nil {
		var fault *domain.Fault
		if errors.As(err, &fault) {
			return s.eliminate(ctx, room, seat, elimination{reason: ReasonFault, fault: fault}), nil
		}
		return nil, illegal(err)
	}
	if res.Won {
		return s.finishGame(ctx, room, []int{seat}), nil
	}
	card := res.Card
	return s.passTurn(room, seat, &card, nil), nil
}

func pile(g *la51.Game) []la51.Card {
	return append([]la51.Card{}, g.DiscardPile...)
}
