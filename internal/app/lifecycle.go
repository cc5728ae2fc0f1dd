package app

import (
	"context"
	"strings"
	"unicode/utf8"

	"mesa/internal/domain"
)

// Reasons carried in playerLeft and playerEliminated events.
const (
	ReasonLeft           = "left"
	ReasonDisconnected   = "disconnected"
	ReasonAbandon        = "abandon"
	ReasonInactivity     = "inactivity"
	ReasonFault          = "fault"
	ReasonTeam           = "team"
	ReasonRematchTimeout = "rematch_timeout"
	ReasonQueued         = "queued"
)

// AdmitJoin reports whether sess may enter the room. Users that would take a
// seat must be able to cover bet plus penalty.
func (s *Service) AdmitJoin(ctx context.Context, room *Room, sess Session) error {
	if _, ok := room.SeatOf(sess.UserID); ok {
		return nil
	}
	if _, ok := room.spectator(sess.UserID); ok {
		return nil
	}
	if _, free := room.freeSeat(); !free {
		return nil
	}
	_, err := s.checkFunds(ctx, room.Settings, sess.UserID, sess.Currency)
	return err
}

// JoinRoom seats or re-attaches sess. A full table, or a table mid-game with
// no free seat, turns the caller into a spectator.
func (s *Service) JoinRoom(ctx context.Context, room *Room, sess Session) ([]Event, error) {
	if seat, ok := room.SeatOf(sess.UserID); ok {
		st := room.Seats[seat]
		st.PlayerID = sess.PlayerID
		st.Connected = true
		events := []Event{s.joinedEvent(room, sess.UserID, seat, false), room.stateEvent()}
		if room.State != domain.RoomWaiting {
			if snap, err := s.Snapshot(room, sess.UserID); err == nil {
				events = append(events, snap)
			}
		}
		return events, nil
	}
	if i, ok := room.spectator(sess.UserID); ok {
		room.Spectators[i].Session = sess
		return s.spectatorJoined(room, sess.UserID), nil
	}

	seat, free := room.freeSeat()
	if !free {
		room.Spectators = append(room.Spectators, &Spectator{Session: sess})
		return s.spectatorJoined(room, sess.UserID), nil
	}

	events, err := s.checkFunds(ctx, room.Settings, sess.UserID, sess.Currency)
	if err != nil {
		return events, err
	}
	s.seat(room, seat, sess)
	events = append(events, s.joinedEvent(room, sess.UserID, seat, false))
	if room.State == domain.RoomPlaying {
		events = append(events, Event{Kind: EventSatDownToWait, Payload: s.seatPayload(room, seat, "")})
		if snap, err := s.Snapshot(room, sess.UserID); err == nil {
			events = append(events, snap)
		}
	}
	events = append(events, room.stateEvent())
	return events, nil
}

func (s *Service) seat(room *Room, seat int, sess Session) {
	currency := sess.Currency
	if currency == "" {
		currency = room.Settings.Currency
	}
	room.Seats[seat] = &Seat{
		UserID:    sess.UserID,
		PlayerID:  sess.PlayerID,
		Name:      sess.Username,
		Avatar:    sess.Avatar,
		Currency:  currency,
		Status:    domain.SeatWaiting,
		Connected: true,
	}
	if room.HostSeat < 0 {
		room.HostSeat = seat
	}
}

func (s *Service) joinedEvent(room *Room, userID string, seat int, spectator bool) Event {
	payload := JoinedPayload{RoomID: room.ID, Seat: seat, Spectator: spectator, Seats: room.seatViews()}
	if s.tokens != nil {
		if token, err := s.tokens.Issue(userID, room.ID); err == nil {
			payload.ResumeToken = token
		}
	}
	kind := EventJoinedRoom
	if spectator {
		kind = EventJoinedAsSpectator
	}
	return Event{Kind: kind, Payload: payload, Recipients: []string{userID}}
}

func (s *Service) spectatorJoined(room *Room, userID string) []Event {
	events := []Event{s.joinedEvent(room, userID, -1, true)}
	if room.State != domain.RoomWaiting {
		if snap, err := s.Snapshot(room, userID); err == nil {
			events = append(events, snap)
		}
	}
	return append(events, room.stateEvent())
}

func (s *Service) seatPayload(room *Room, seat int, reason string) SeatPayload {
	p := SeatPayload{Seat: seat, Reason: reason}
	if st := room.Seats[seat]; st != nil {
		p.UserID = st.UserID
		p.PlayerName = st.Name
	}
	return p
}

// RequestToSit moves a spectator into a free seat, or queues them for the
// next seat that frees up.
func (s *Service) RequestToSit(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if _, ok := room.SeatOf(userID); ok {
		return nil, ErrAlreadySeated
	}
	i, ok := room.spectator(userID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	sp := room.Spectators[i]

	seat, free := room.freeSeat()
	if !free {
		sp.WantsSeat = true
		return []Event{{
			Kind:       EventSatDownToWait,
			Payload:    SeatPayload{Seat: -1, UserID: userID, PlayerName: sp.Username, Reason: ReasonQueued},
			Recipients: []string{userID},
		}}, nil
	}

	events, err := s.checkFunds(ctx, room.Settings, userID, sp.Currency)
	if err != nil {
		return events, err
	}
	room.Spectators = append(room.Spectators[:i], room.Spectators[i+1:]...)
	s.seat(room, seat, sp.Session)
	events = append(events,
		Event{Kind: EventSatDownToWait, Payload: s.seatPayload(room, seat, "")},
		room.stateEvent(),
	)
	return events, nil
}

// LeaveGame removes the user from the room. Leaving mid-game while still
// playing is an abandonment and costs the penalty.
func (s *Service) LeaveGame(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if i, ok := room.spectator(userID); ok {
		room.Spectators = append(room.Spectators[:i], room.Spectators[i+1:]...)
		return []Event{room.stateEvent()}, nil
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, ErrNotSeated
	}

	var events []Event
	if room.State == domain.RoomPlaying && room.Seats[seat].Status == domain.SeatPlaying {
		events = append(events, s.eliminate(ctx, room, seat, elimination{reason: ReasonAbandon, redirect: true})...)
		events = append(events, s.vacate(ctx, room, seat, ReasonAbandon)...)
		return events, nil
	}
	events = append(events, s.vacate(ctx, room, seat, ReasonLeft)...)
	if room.State == domain.RoomPostGame && room.Rematch != nil {
		events = append(events, s.rematchEvent(room))
	}
	return events, nil
}

// Disconnect handles a dropped connection. Active players keep their seat and
// may resume; anyone else is removed.
func (s *Service) Disconnect(ctx context.Context, room *Room, userID string) ([]Event, error) {
	if i, ok := room.spectator(userID); ok {
		room.Spectators = append(room.Spectators[:i], room.Spectators[i+1:]...)
		return []Event{room.stateEvent()}, nil
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return nil, nil
	}
	if room.State == domain.RoomPlaying && room.Seats[seat].Status == domain.SeatPlaying {
		room.Seats[seat].Connected = false
		return []Event{room.stateEvent()}, nil
	}
	events := s.vacate(ctx, room, seat, ReasonDisconnected)
	if room.State == domain.RoomPostGame && room.Rematch != nil {
		events = append(events, s.rematchEvent(room))
	}
	return events, nil
}

// vacate frees seat, hands the host role on and seats a queued spectator.
func (s *Service) vacate(ctx context.Context, room *Room, seat int, reason string) []Event {
	st := room.Seats[seat]
	if st == nil {
		return nil
	}
	events := []Event{{Kind: EventPlayerLeft, Payload: s.seatPayload(room, seat, reason)}}
	room.Seats[seat] = nil
	room.Idle.Cancel(seat)
	if room.Rematch != nil {
		delete(room.Rematch.Confirmed, st.UserID)
	}

	if seat == room.HostSeat {
		room.HostSeat = -1
		if next, ok := room.nextOccupied(seat); ok {
			room.HostSeat = next
			events = append(events, Event{Kind: EventNewHost, Payload: s.seatPayload(room, next, "")})
		}
	}
	events = append(events, s.promoteSpectator(ctx, room, seat)...)
	return append(events, room.stateEvent())
}

// promoteSpectator gives seat to the first queued spectator who can afford it.
func (s *Service) promoteSpectator(ctx context.Context, room *Room, seat int) []Event {
	for i := 0; i < len(room.Spectators); i++ {
		sp := room.Spectators[i]
		if !sp.WantsSeat {
			continue
		}
		events, err := s.checkFunds(ctx, room.Settings, sp.UserID, sp.Currency)
		if err != nil {
			sp.WantsSeat = false
			continue
		}
		room.Spectators = append(room.Spectators[:i], room.Spectators[i+1:]...)
		s.seat(room, seat, sp.Session)
		return append(events,
			Event{Kind: EventSeatAvailable, Payload: s.seatPayload(room, seat, ""), Recipients: []string{sp.UserID}},
			Event{Kind: EventSatDownToWait, Payload: s.seatPayload(room, seat, "")},
		)
	}
	return nil
}

// SendChat appends a message to the room history and broadcasts it.
func (s *Service) SendChat(room *Room, userID, text string) ([]Event, error) {
	name := ""
	if seat, ok := room.SeatOf(userID); ok {
		name = room.Seats[seat].Name
	} else if i, ok := room.spectator(userID); ok {
		name = room.Spectators[i].Username
	} else {
		return nil, ErrRoomNotFound
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyChat
	}
	if utf8.RuneCountInString(text) > MaxChatLength {
		text = string([]rune(text)[:MaxChatLength])
	}

	msg := ChatMessage{ID: s.newID(), UserID: userID, PlayerName: name, Text: text, Tick: room.Tick}
	room.Chat = append(room.Chat, msg)
	if limit := s.opts.ChatHistory; limit > 0 && len(room.Chat) > limit {
		room.Chat = append([]ChatMessage(nil), room.Chat[len(room.Chat)-limit:]...)
	}
	return []Event{{Kind: EventChatMessage, Payload: msg}}, nil
}
