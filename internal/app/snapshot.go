package app

import (
	"mesa/internal/domain"
	"mesa/internal/domain/la51"
	"mesa/internal/domain/ludo"
)

// SnapshotPayload is everything a client needs to rebuild its table view.
type SnapshotPayload struct {
	Room         RoomStatePayload      `json:"room"`
	YourSeat     int                   `json:"yourSeat"`
	Spectator    bool                  `json:"spectator"`
	Pot          int64                 `json:"pot"`
	Currency     string                `json:"currency"`
	GameNumber   int                   `json:"gameNumber"`
	CurrentSeat  int                   `json:"currentSeat"`
	CurrentUser  string                `json:"currentPlayerId"`
	IsFirstTurn  bool                  `json:"isFirstTurn"`
	LegalActions []ActionName          `json:"legalActions"`
	IdleDeadline int64                 `json:"idleDeadlineTick,omitempty"`
	La51         *la51.View            `json:"la51,omitempty"`
	Ludo         *ludo.View            `json:"ludo,omitempty"`
	Chat         []ChatMessage         `json:"chat"`
	Rematch      *RematchUpdatePayload `json:"rematch,omitempty"`
	Settling     bool                  `json:"settling"`
}

// Snapshot renders the room as seen by userID. It never mutates the room, so
// repeated calls without intervening actions return identical payloads.
func (s *Service) Snapshot(room *Room, userID string) (Event, error) {
	seat, seated := room.SeatOf(userID)
	_, watching := room.spectator(userID)
	if !seated && !watching {
		return Event{}, ErrRoomNotFound
	}

	p := SnapshotPayload{
		Room:         room.statePayload(),
		YourSeat:     seat,
		Spectator:    !seated,
		Pot:          room.Pot.Amount(),
		Currency:     room.Settings.Currency,
		GameNumber:   room.GameNumber,
		CurrentSeat:  -1,
		LegalActions: []ActionName{},
		Chat:         append([]ChatMessage{}, room.Chat...),
		Settling:     room.pending != nil,
	}

	if t := room.Turn; t != nil && room.State != domain.RoomWaiting {
		if room.State == domain.RoomPlaying {
			p.CurrentSeat = t.Current()
			p.CurrentUser = room.userAt(p.CurrentSeat)
			p.IsFirstTurn = t.FirstTurn()
			if seated {
				if actions := t.LegalActions(seat); actions != nil {
					p.LegalActions = actions
				}
			}
			if d, ok := room.Idle.Deadline(p.CurrentSeat); ok {
				p.IdleDeadline = d
			}
		}
		switch {
		case t.La51 != nil:
			viewer := -1
			if seated {
				viewer = seat
			}
			v := t.La51.View(viewer)
			p.La51 = &v
		case t.Ludo != nil:
			v := t.Ludo.View()
			p.Ludo = &v
		}
	}
	if room.State == domain.RoomPostGame && room.Rematch != nil {
		r := s.rematchPayload(room)
		p.Rematch = &r
	}
	return Event{Kind: EventGameResumed, Payload: p, Recipients: []string{userID}}, nil
}
