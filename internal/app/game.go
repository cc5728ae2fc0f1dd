package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
	"mesa/internal/domain/la51"
	"mesa/internal/domain/ludo"
	"mesa/internal/ports"
)

type elimination struct {
	reason   string
	fault    *domain.Fault
	redirect bool
}

// StartGame lets the host start the first game of a waiting room.
func (s *Service) StartGame(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if room.State != domain.RoomWaiting {
		return nil, ErrWrongState
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, ErrNotSeated
	}
	if seat != room.HostSeat {
		return nil, ErrNotHost
	}
	return s.startGame(ctx, room, room.OccupiedSeats())
}

// startGame re-checks every balance, collects the bets into the pot in one
// wallet update and deals a fresh game.
func (s *Service) startGame(ctx context.Context, room *Room, seats []int) ([]Event, error) {
	if len(seats) < MinPlayersToStartGame {
		return nil, ErrTooFewPlayers
	}
	if room.Settings.Pairs() && len(seats) != PairsPlayers {
		return nil, ErrPairsNeedFour
	}
	if room.pending != nil {
		return nil, ErrSettlementPending
	}

	var events []Event
	for _, seat := range seats {
		st := room.Seats[seat]
		evs, err := s.checkFunds(ctx, room.Settings, st.UserID, st.Currency)
		events = append(events, evs...)
		if err != nil {
			return events, fmt.Errorf("%s: %w", st.Name, err)
		}
	}

	first := s.firstSeat(room, seats)
	var turns *TurnMachine
	switch {
	case room.GameType == domain.GameLa51:
		g, err := la51.NewGame(seats, s.opts.La51, s.rng)
		if err != nil {
			return events, err
		}
		turns = newLa51Turns(g, seats, first)
	case room.GameType.IsBoard():
		g, err := ludo.NewGame(room.GameType, seats, ludo.Options{AutoExit: room.Settings.AutoExit, Pairs: room.Settings.Pairs()})
		if err != nil {
			return events, illegal(err)
		}
		turns = newLudoTurns(g, seats, first)
	default:
		return events, fmt.Errorf("%w: %s", ErrInvalidSettings, room.GameType)
	}

	room.Pot.Reset()
	if err := s.debit(ctx, room, seats, room.Settings.Bet, "bet"); err != nil {
		return events, err
	}

	for _, seat := range seats {
		room.Seats[seat].Status = domain.SeatPlaying
	}
	room.Turn = turns
	room.State = domain.RoomPlaying
	room.Rematch = nil
	room.GameNumber++
	room.Idle.Clear()
	s.touch(room, first)

	return append(events, s.gameStartedEvents(room, seats)...), nil
}

// firstSeat is the previous winner when still at the table, else the lowest seat.
func (s *Service) firstSeat(room *Room, seats []int) int {
	if len(room.LastWinners) > 0 {
		for _, seat := range seats {
			if seat == room.LastWinners[0] {
				return seat
			}
		}
	}
	return seats[0]
}

func (s *Service) gameStartedEvents(room *Room, seats []int) []Event {
	cur := room.Turn.Current()
	base := GameStartedPayload{
		GameType:        room.GameType,
		Seats:           room.seatViews(),
		CurrentPlayerID: room.userAt(cur),
		CurrentSeat:     cur,
		IsFirstTurn:     true,
		Pot:             room.Pot.Amount(),
		Currency:        room.Settings.Currency,
	}

	if g := room.Turn.Ludo; g != nil {
		view := g.View()
		base.Board = &view
		return []Event{{Kind: EventGameStarted, Payload: base}}
	}

	g := room.Turn.La51
	var events []Event
	for _, seat := range seats {
		p := base
		v := g.View(seat)
		p.Hand = v.Hand
		p.DiscardPile = v.DiscardPile
		p.Melds = v.Melds
		events = append(events, Event{Kind: EventGameStarted, Payload: p, Recipients: []string{room.userAt(seat)}})
	}
	if ids := room.spectatorIDs(); len(ids) > 0 {
		p := base
		v := g.View(-1)
		p.DiscardPile = v.DiscardPile
		p.Melds = v.Melds
		events = append(events, Event{Kind: EventGameStarted, Payload: p, Recipients: ids})
	}
	return events
}

// eliminate takes seat out of the current game and charges the penalty.
// In parchís pairs the partner goes out with it.
func (s *Service) eliminate(ctx context.Context, room *Room, seat int, e elimination) []Event {
	st := room.Seats[seat]
	if st == nil || room.Turn == nil || !room.Turn.IsActive(seat) {
		return nil
	}
	st.Status = domain.SeatEliminated
	wasCurrent := room.Turn.Eliminate(seat)
	room.Idle.Cancel(seat)

	var events []Event
	penalty := room.Settings.Penalty
	if err := s.debit(ctx, room, []int{seat}, penalty, "penalty"); err != nil {
		penalty = 0
	}

	if e.fault != nil {
		events = append(events, Event{Kind: EventFault, Payload: FaultPayload{
			Seat:         seat,
			UserID:       st.UserID,
			PlayerName:   st.Name,
			FaultType:    e.fault.Reason,
			InvalidCards: e.fault.InvalidCards,
			ContextCards: e.fault.ContextCards,
			Detail:       e.fault.Detail,
		}})
	}
	if e.reason == ReasonAbandon && room.Turn.Ludo != nil {
		events = append(events, Event{Kind: EventFoulPenalty, Payload: FoulPenaltyPayload{
			Foul:       ludo.Foul{Type: ludo.FoulAbandon, Seat: seat},
			UserID:     st.UserID,
			PlayerName: st.Name,
		}})
	}
	events = append(events, Event{Kind: EventPlayerEliminated, Payload: EliminatedPayload{
		Seat:             seat,
		PlayerID:         st.PlayerID,
		UserID:           st.UserID,
		PlayerName:       st.Name,
		Reason:           e.reason,
		FaultData:        e.fault,
		Redirect:         e.redirect,
		PenaltyCollected: penalty,
	}})
	if e.reason == ReasonAbandon {
		events = append(events, Event{Kind: EventPlayerAbandoned, Payload: s.seatPayload(room, seat, ReasonAbandon)})
	}

	if room.Settings.Pairs() {
		partner := ludo.Partner(seat)
		if ps := room.Seats[partner]; ps != nil && room.Turn.IsActive(partner) {
			ps.Status = domain.SeatEliminated
			if room.Turn.Eliminate(partner) {
				wasCurrent = true
			}
			room.Idle.Cancel(partner)
			events = append(events, Event{Kind: EventPlayerEliminated, Payload: EliminatedPayload{
				Seat:       partner,
				PlayerID:   ps.PlayerID,
				UserID:     ps.UserID,
				PlayerName: ps.Name,
				Reason:     ReasonTeam,
			}})
		}
	}

	return append(events, s.afterElimination(ctx, room, seat, wasCurrent)...)
}

// afterElimination ends the game when one side is left, otherwise passes the
// turn on if the eliminated seat held it.
func (s *Service) afterElimination(ctx context.Context, room *Room, seat int, wasCurrent bool) []Event {
	remaining := room.Turn.ActiveSeats()
	if len(remaining) <= 1 || (room.Settings.Pairs() && oneTeam(remaining)) {
		return s.finishGame(ctx, room, remaining)
	}
	if !wasCurrent {
		return nil
	}
	return s.passTurn(room, seat, nil, nil)
}

func oneTeam(seats []int) bool {
	for _, seat := range seats[1:] {
		if seat%2 != seats[0]%2 {
			return false
		}
	}
	return true
}

// passTurn advances to the next active seat and announces it.
func (s *Service) passTurn(room *Room, prev int, discarded *la51.Card, move *ludo.MoveResult) []Event {
	room.Idle.Cancel(prev)
	next, ok := room.Turn.Advance()
	if !ok {
		return nil
	}
	s.touch(room, next)

	if g := room.Turn.La51; g != nil {
		return []Event{{Kind: EventTurnChanged, Payload: TurnChangedPayload{
			PreviousSeat:     prev,
			DiscardedCard:    discarded,
			NewMelds:         g.MeldsCopy(),
			NewDiscardPile:   append([]la51.Card{}, g.DiscardPile...),
			NextPlayerID:     room.userAt(next),
			NextSeat:         next,
			PlayerHandCounts: g.HandCounts(),
			DeckCount:        len(g.Deck),
		}}}
	}
	return []Event{s.boardEvent(room, move)}
}

func (s *Service) boardEvent(room *Room, move *ludo.MoveResult) Event {
	return Event{Kind: EventBoardUpdated, Payload: BoardUpdatedPayload{
		NewGameState: room.Turn.Ludo.View(),
		MoveInfo:     move,
		Seats:        room.seatViews(),
	}}
}

// finishGame settles the pot between winners and opens the rematch window.
func (s *Service) finishGame(ctx context.Context, room *Room, winners []int) []Event {
	room.State = domain.RoomPostGame
	room.Idle.Clear()
	room.LastWinners = append([]int(nil), winners...)
	if room.Turn != nil && room.Turn.Ludo != nil {
		room.Turn.Ludo.Finished = true
	}

	ids := make([]string, 0, len(winners))
	names := make([]string, 0, len(winners))
	for _, seat := range winners {
		ids = append(ids, room.userAt(seat))
		names = append(names, room.Seats[seat].Name)
	}

	pot := room.Pot.Amount()
	settlement, err := escrow.ComputeSettlement(pot, room.Settings.Currency, ids, s.opts.CommissionRate)
	if errors.Is(err, escrow.ErrNoWinners) {
		settlement = escrow.Settlement{Currency: room.Settings.Currency, Pot: pot, Commission: pot}
	}

	pending := &pendingSettlement{Settlement: settlement}
	table := s.rateTable()
	for _, share := range settlement.Payouts {
		seat, _ := room.SeatOf(share.UserID)
		currency := room.Seats[seat].Currency
		amount, _ := escrow.Convert(share.Amount, room.Settings.Currency, currency, table, escrow.RoundDown)
		pending.Credits = append(pending.Credits, walletCredit{UserID: share.UserID, Currency: currency, Amount: amount})
	}
	settled := s.paySettlement(ctx, room, pending)

	for _, seat := range room.OccupiedSeats() {
		room.Seats[seat].Status = domain.SeatWaiting
	}
	room.Rematch = &RematchState{Confirmed: make(map[string]bool), DeadlineTick: room.Tick + s.opts.RematchTicks}

	payload := GameOverPayload{
		GameType:       room.GameType,
		WinnerSeats:    room.LastWinners,
		WinnerName:     strings.Join(names, " & "),
		WinnerNames:    names,
		TotalPot:       settlement.Pot,
		Commission:     settlement.Commission + settlement.Remainder,
		FinalWinnings:  settlement.WinnerShare(),
		Currency:       settlement.Currency,
		Settled:        settled,
		Payouts:        settlement.Payouts,
		FinalRoomState: room.statePayload(),
	}
	kind := EventGameEnd
	if g := room.Turn.Ludo; g != nil {
		view := g.View()
		payload.Board = &view
		kind = EventLudoGameOver
	} else if g := room.Turn.La51; g != nil {
		payload.Scores = g.HandCounts()
	}
	if payload.WinnerSeats == nil {
		payload.WinnerSeats = []int{}
	}
	return []Event{{Kind: kind, Payload: payload}, s.rematchEvent(room)}
}

// paySettlement credits every winner in one wallet update. On failure the
// settlement stays pending and is retried on the next tick.
func (s *Service) paySettlement(ctx context.Context, room *Room, p *pendingSettlement) bool {
	updates := make([]ports.WalletUpdate, 0, len(p.Credits))
	for _, c := range p.Credits {
		if c.Amount <= 0 {
			continue
		}
		updates = append(updates, ports.WalletUpdate{
			UserID:   c.UserID,
			Currency: c.Currency,
			Amount:   c.Amount,
			Metadata: map[string]interface{}{
				"reason":  "winnings",
				"room_id": room.ID,
				"game":    string(room.GameType),
				"number":  room.GameNumber,
			},
		})
	}
	if len(updates) > 0 {
		if err := s.economy.UpdateBalances(ctx, updates); err != nil {
			room.pending = p
			return false
		}
	}
	if err := room.Pot.Settle(p.Settlement); err != nil {
		room.pending = p
		return false
	}
	room.pending = nil
	return true
}

func (s *Service) retrySettlement(ctx context.Context, room *Room) []Event {
	p := room.pending
	if !s.paySettlement(ctx, room, p) {
		return nil
	}
	events := []Event{{Kind: EventSettlementCompleted, Payload: SettlementPayload{Settlement: p.Settlement}}}
	if room.State == domain.RoomPostGame && room.Rematch != nil {
		events = append(events, s.rematchEvent(room))
	}
	return events
}

func (s *Service) inactivityExpired(ctx context.Context, room *Room, seat int) ([]Event, error) {
	room.Idle.Cancel(seat)
	if room.State != domain.RoomPlaying || room.Turn == nil || !room.Turn.CanAct(seat) {
		return nil, nil
	}
	events := s.eliminate(ctx, room, seat, elimination{reason: ReasonInactivity, redirect: true})
	return append(events, s.vacate(ctx, room, seat, ReasonInactivity)...), nil
}

func (s *Service) rematchPayload(room *Room) RematchUpdatePayload {
	p := RematchUpdatePayload{ConfirmedPlayers: []string{}}
	for _, seat := range room.OccupiedSeats() {
		p.TotalPlayers++
		if room.Rematch != nil && room.Rematch.Confirmed[room.Seats[seat].UserID] {
			p.ConfirmedPlayers = append(p.ConfirmedPlayers, room.Seats[seat].UserID)
		}
	}
	p.PlayersReady = len(p.ConfirmedPlayers)
	if room.Rematch != nil {
		p.DeadlineTick = room.Rematch.DeadlineTick
	}
	p.CanStart = p.TotalPlayers >= MinPlayersToStartGame &&
		p.PlayersReady == p.TotalPlayers &&
		(!room.Settings.Pairs() || p.TotalPlayers == PairsPlayers) &&
		room.pending == nil
	return p
}

func (s *Service) rematchEvent(room *Room) Event {
	return Event{Kind: EventRematchUpdate, Payload: s.rematchPayload(room)}
}

// ConfirmRematch records that a seated player wants to play again.
func (s *Service) ConfirmRematch(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if room.State != domain.RoomPostGame || room.Rematch == nil {
		return nil, ErrWrongState
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, ErrNotSeated
	}
	events, err := s.checkFunds(ctx, room.Settings, userID, room.Seats[seat].Currency)
	if err != nil {
		return events, err
	}
	room.Rematch.Confirmed[userID] = true
	return append(events, s.rematchEvent(room)), nil
}

// StartRematch starts the next game once everyone seated confirmed. Only the
// previous winner or the host may trigger it.
func (s *Service) StartRematch(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if room.State != domain.RoomPostGame || room.Rematch == nil {
		return nil, ErrWrongState
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, ErrNotSeated
	}
	allowed := seat == room.HostSeat
	for _, w := range room.LastWinners {
		if w == seat {
			allowed = true
		}
	}
	if !allowed {
		return nil, ErrNotHost
	}
	if room.pending != nil {
		return nil, ErrSettlementPending
	}
	if !s.rematchPayload(room).CanStart {
		return nil, ErrRematchNotReady
	}

	events := []Event{{Kind: EventRematchStarted, Payload: s.rematchPayload(room)}}
	started, err := s.startGame(ctx, room, room.OccupiedSeats())
	if err != nil {
		return started, err
	}
	return append(events, started...), nil
}

// rematchExpired removes everyone who did not confirm and reopens the room.
func (s *Service) rematchExpired(ctx context.Context, room *Room) ([]Event, error) {
	if room.State != domain.RoomPostGame || room.Rematch == nil {
		return nil, nil
	}
	confirmed := room.Rematch.Confirmed
	room.Rematch = nil
	room.State = domain.RoomWaiting
	room.Turn = nil

	var events []Event
	for _, seat := range room.OccupiedSeats() {
		if !confirmed[room.Seats[seat].UserID] {
			events = append(events, s.vacate(ctx, room, seat, ReasonRematchTimeout)...)
		}
	}
	for _, seat := range room.OccupiedSeats() {
		room.Seats[seat].Status = domain.SeatWaiting
	}
	return append(events, room.stateEvent()), nil
}
