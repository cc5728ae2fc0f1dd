package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"mesa/internal/domain"
	"mesa/internal/domain/escrow"
	"mesa/internal/domain/la51"
	"mesa/internal/domain/ludo"
	"mesa/internal/ports"
)

var (
	ErrInvalidSettings   = errors.New("invalid room settings")
	ErrIllegalAction     = errors.New("illegal action")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoomNotFound      = errors.New("room not found")
	ErrUnknownAction     = errors.New("unknown action")

	ErrNotPlaying        = fmt.Errorf("%w: room is not playing", ErrIllegalAction)
	ErrWrongState        = fmt.Errorf("%w: not allowed in the current room state", ErrIllegalAction)
	ErrNotSeated         = fmt.Errorf("%w: player is not seated", ErrIllegalAction)
	ErrAlreadySeated     = fmt.Errorf("%w: player is already seated", ErrIllegalAction)
	ErrNotHost           = fmt.Errorf("%w: only the host can do that", ErrIllegalAction)
	ErrNotYourTurn       = fmt.Errorf("%w: not your turn", ErrIllegalAction)
	ErrTooFewPlayers     = fmt.Errorf("%w: not enough players to start", ErrIllegalAction)
	ErrPairsNeedFour     = fmt.Errorf("%w: pairs mode needs four players", ErrIllegalAction)
	ErrRematchNotReady   = fmt.Errorf("%w: not every player confirmed the rematch", ErrIllegalAction)
	ErrSettlementPending = fmt.Errorf("%w: previous game is still settling", ErrIllegalAction)
	ErrEmptyChat         = fmt.Errorf("%w: chat message is empty", ErrIllegalAction)
)

// MaxChatLength bounds a single chat message, in runes.
const MaxChatLength = 280

// Options are the tunables the service needs from configuration.
type Options struct {
	CommissionRate  float64
	InactivityTicks int64
	RematchTicks    int64
	ChatHistory     int
	La51            la51.Options
}

// DefaultOptions matches the shipped configuration at one tick per second.
func DefaultOptions() Options {
	return Options{
		CommissionRate:  0.10,
		InactivityTicks: 120,
		RematchTicks:    60,
		ChatHistory:     50,
		La51:            la51.DefaultOptions(),
	}
}

// Service contains the room use-cases. It is not safe for concurrent use on
// the same Room; each room's actor serializes its calls.
type Service struct {
	rng     *rand.Rand
	roller  ludo.Roller
	economy ports.EconomyPort
	rates   *escrow.RateBook
	tokens  *ResumeTokens
	opts    Options
	newID   func() string
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(economy ports.EconomyPort, rates *escrow.RateBook, opts Options, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if rates == nil {
		rates = escrow.NewRateBook(nil)
	}
	return &Service{
		rng:     rng,
		roller:  ludo.NewRandRoller(rng),
		economy: economy,
		rates:   rates,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// WithRoller replaces the dice source.
func (s *Service) WithRoller(r ludo.Roller) *Service {
	s.roller = r
	return s
}

// WithResumeTokens enables resume tokens in join acknowledgements.
func (s *Service) WithResumeTokens(t *ResumeTokens) *Service {
	s.tokens = t
	return s
}

// Options returns the service options.
func (s *Service) Options() Options {
	return s.opts
}

// Handle applies one inbound action to the room.
func (s *Service) Handle(ctx context.Context, room *Room, action Action) ([]Event, error) {
	switch a := action.(type) {
	case StartGame:
		return s.StartGame(ctx, room, a.UserID)
	case DrawFromDeck:
		return s.drawFromDeck(room, a.UserID)
	case DrawFromDiscard:
		return s.drawFromDiscard(room, a.UserID)
	case Meld:
		return s.meld(ctx, room, a)
	case Discard:
		return s.discard(ctx, room, a)
	case RollDice:
		return s.rollDice(ctx, room, a.UserID)
	case MovePiece:
		return s.movePiece(ctx, room, a)
	case RequestToSit:
		return s.RequestToSit(ctx, room, a.UserID)
	case LeaveGame:
		return s.LeaveGame(ctx, room, a.UserID)
	case ConfirmRematch:
		return s.ConfirmRematch(ctx, room, a.UserID)
	case StartRematch:
		return s.StartRematch(ctx, room, a.UserID)
	case SendChat:
		return s.SendChat(room, a.UserID, a.Text)
	case Resync:
		ev, err := s.Snapshot(room, a.UserID)
		if err != nil {
			return nil, err
		}
		return []Event{ev}, nil
	case InactivityExpired:
		return s.inactivityExpired(ctx, room, a.Seat)
	case RematchExpired:
		return s.rematchExpired(ctx, room)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
}

// Tick advances the room clock and fires due timers as synthetic actions.
func (s *Service) Tick(ctx context.Context, room *Room, tick int64) ([]Event, error) {
	room.Tick = tick
	var events []Event
	var errs []error

	if room.pending != nil {
		events = append(events, s.retrySettlement(ctx, room)...)
	}
	if room.State == domain.RoomPlaying {
		for _, seat := range room.Idle.Expired(tick) {
			evs, err := s.Handle(ctx, room, InactivityExpired{Seat: seat})
			if err != nil {
				errs = append(errs, err)
			}
			events = append(events, evs...)
		}
	}
	if room.State == domain.RoomPostGame && room.Rematch != nil && tick >= room.Rematch.DeadlineTick {
		evs, err := s.Handle(ctx, room, RematchExpired{})
		if err != nil {
			errs = append(errs, err)
		}
		events = append(events, evs...)
	}
	return events, errors.Join(errs...)
}

// actor resolves userID to the current seat and checks name is legal for it.
func (s *Service) actor(room *Room, userID string, name ActionName) (int, error) {
	if room.State != domain.RoomPlaying || room.Turn == nil {
		return -1, ErrNotPlaying
	}
	seat, ok := room.SeatOf(userID)
	if !ok {
		return -1, ErrNotSeated
	}
	if !room.Turn.CanAct(seat) {
		return -1, ErrNotYourTurn
	}
	if !room.Turn.Allows(seat, name) {
		return -1, fmt.Errorf("%w: %s is not available now", ErrIllegalAction, name)
	}
	return seat, nil
}

func illegal(err error) error {
	return fmt.Errorf("%w: %v", ErrIllegalAction, err)
}

// touch re-arms the idle timer of seat after a legal action.
func (s *Service) touch(room *Room, seat int) {
	room.Idle.Arm(seat, room.Tick+s.opts.InactivityTicks)
}

func (s *Service) rateTable() escrow.RateTable {
	return s.rates.Snapshot()
}

// CheckCreate validates settings and the creator's funds before a room exists.
func (s *Service) CheckCreate(ctx context.Context, game domain.GameType, settings domain.Settings, sess Session) ([]Event, error) {
	if err := settings.Validate(game); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return s.checkFunds(ctx, settings, sess.UserID, sess.Currency)
}

// checkFunds reads a fresh balance and compares it to bet plus penalty.
// A missing exchange rate yields a rateWarning event but does not block.
func (s *Service) checkFunds(ctx context.Context, settings domain.Settings, userID, currency string) ([]Event, error) {
	if currency == "" {
		currency = settings.Currency
	}
	balance, err := s.economy.GetBalance(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	ok, required, rateErr := escrow.CanAfford(balance, currency, settings, s.rateTable())

	var events []Event
	if errors.Is(rateErr, escrow.ErrNoRateAvailable) {
		events = append(events, Event{
			Kind:       EventRateWarning,
			Payload:    RateWarningPayload{From: settings.Currency, To: currency},
			Recipients: []string{userID},
		})
	}
	if !ok {
		return events, fmt.Errorf("%w: %d %s required, %d available", ErrInsufficientFunds, required, currency, balance)
	}
	return events, nil
}

// debit charges amount (room currency) to every seat in one atomic wallet
// update and adds it to the pot only once the update succeeded.
func (s *Service) debit(ctx context.Context, room *Room, seats []int, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	table := s.rateTable()
	updates := make([]ports.WalletUpdate, 0, len(seats))
	for _, seat := range seats {
		st := room.Seats[seat]
		currency := st.Currency
		if currency == "" {
			currency = room.Settings.Currency
		}
		charged, _ := escrow.Convert(amount, room.Settings.Currency, currency, table, escrow.RoundUp)
		updates = append(updates, ports.WalletUpdate{
			UserID:   st.UserID,
			Currency: currency,
			Amount:   -charged,
			Metadata: map[string]interface{}{
				"reason":       reason,
				"room_id":      room.ID,
				"game":         string(room.GameType),
				"pot_amount":   amount,
				"pot_currency": room.Settings.Currency,
			},
		})
	}
	if err := s.economy.UpdateBalances(ctx, updates); err != nil {
		return fmt.Errorf("failed to collect %s: %w", reason, err)
	}
	for _, seat := range seats {
		if err := room.Pot.Collect(room.Seats[seat].UserID, amount); err != nil {
			return err
		}
	}
	return nil
}
