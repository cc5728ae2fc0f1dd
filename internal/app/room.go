package app

import (
	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
)

// Session is the per-connection identity handed to every room operation.
type Session struct {
	UserID   string
	PlayerID string // transport session id, changes on reconnect
	Username string
	Avatar   string
	Currency string
}

// Seat is an occupied table slot.
type Seat struct {
	UserID    string
	PlayerID  string
	Name      string
	Avatar    string
	Currency  string
	Status    domain.SeatStatus
	Connected bool
}

// Spectator watches a room and may queue for the next free seat.
type Spectator struct {
	Session
	WantsSeat bool
}

// RematchState tracks confirmations while the room is in post-game.
type RematchState struct {
	Confirmed    map[string]bool
	DeadlineTick int64
}

// pendingSettlement is a settlement whose wallet credit has not gone through yet.
type pendingSettlement struct {
	Settlement escrow.Settlement
	Credits    []walletCredit
}

type walletCredit struct {
	UserID   string
	Currency string
	Amount   int64
}

// Room is the authoritative state of one table. It is only touched from the
// room's own actor loop.
type Room struct {
	ID         string
	GameType   domain.GameType
	Settings   domain.Settings
	State      domain.RoomState
	Seats      [domain.SeatCount]*Seat
	HostSeat   int
	Spectators []*Spectator
	Chat       []ChatMessage
	Pot        *escrow.Pot
	Turn       *TurnMachine
	Rematch    *RematchState
	Idle       *IdleTimers

	// Tick is the current match tick, set by the actor before every call.
	Tick        int64
	LastWinners []int
	GameNumber  int

	pending *pendingSettlement
}

// NewRoom builds an empty room in the waiting state.
func NewRoom(id string, game domain.GameType, settings domain.Settings) *Room {
	return &Room{
		ID:       id,
		GameType: game,
		Settings: settings,
		State:    domain.RoomWaiting,
		HostSeat: -1,
		Pot:      escrow.NewPot(settings.Currency),
		Idle:     NewIdleTimers(),
	}
}

// SeatOf returns the seat index held by userID.
func (r *Room) SeatOf(userID string) (int, bool) {
	for i, s := range r.Seats {
		if s != nil && s.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

func (r *Room) spectator(userID string) (int, bool) {
	for i, s := range r.Spectators {
		if s.UserID == userID {
			return i, true
		}
	}
	return -1, false
}

// OccupiedSeats lists occupied seat indexes in seat order.
func (r *Room) OccupiedSeats() []int {
	var out []int
	for i, s := range r.Seats {
		if s != nil {
			out = append(out, i)
		}
	}
	return out
}

// PlayingSeats lists seats taking part in the current game and not eliminated.
func (r *Room) PlayingSeats() []int {
	var out []int
	for i, s := range r.Seats {
		if s != nil && s.Status == domain.SeatPlaying {
			out = append(out, i)
		}
	}
	return out
}

func (r *Room) freeSeat() (int, bool) {
	for i, s := range r.Seats {
		if s == nil {
			return i, true
		}
	}
	return -1, false
}

// Empty reports whether nobody is seated or watching.
func (r *Room) Empty() bool {
	return len(r.OccupiedSeats()) == 0 && len(r.Spectators) == 0
}

// Open reports whether a new player could take a seat right now.
func (r *Room) Open() bool {
	_, free := r.freeSeat()
	return free && r.State == domain.RoomWaiting
}

// SettlementPending reports whether a finished game still owes payouts.
func (r *Room) SettlementPending() bool {
	return r.pending != nil
}

// UserIDs lists every seated and spectating user.
func (r *Room) UserIDs() []string {
	var out []string
	for _, s := range r.Seats {
		if s != nil {
			out = append(out, s.UserID)
		}
	}
	for _, s := range r.Spectators {
		out = append(out, s.UserID)
	}
	return out
}

func (r *Room) spectatorIDs() []string {
	out := make([]string, 0, len(r.Spectators))
	for _, s := range r.Spectators {
		out = append(out, s.UserID)
	}
	return out
}

func (r *Room) seatViews() []SeatView {
	var out []SeatView
	for i, s := range r.Seats {
		if s == nil {
			continue
		}
		out = append(out, SeatView{
			Seat:       i,
			UserID:     s.UserID,
			PlayerID:   s.PlayerID,
			PlayerName: s.Name,
			Avatar:     s.Avatar,
			Status:     s.Status,
			Connected:  s.Connected,
			IsHost:     i == r.HostSeat,
		})
	}
	return out
}

func (r *Room) statePayload() RoomStatePayload {
	return RoomStatePayload{
		RoomID:     r.ID,
		GameType:   r.GameType,
		State:      r.State,
		Settings:   r.Settings,
		Seats:      r.seatViews(),
		HostSeat:   r.HostSeat,
		Spectators: len(r.Spectators),
	}
}

func (r *Room) stateEvent() Event {
	return Event{Kind: EventRoomState, Payload: r.statePayload()}
}

func (r *Room) userAt(seat int) string {
	if seat < 0 || seat >= domain.SeatCount || r.Seats[seat] == nil {
		return ""
	}
	return r.Seats[seat].UserID
}

// nextOccupied finds the first occupied seat after from, wrapping around.
func (r *Room) nextOccupied(from int) (int, bool) {
	for i := 1; i <= domain.SeatCount; i++ {
		seat := (from + i) % domain.SeatCount
		if r.Seats[seat] != nil {
			return seat, true
		}
	}
	return -1, false
}
