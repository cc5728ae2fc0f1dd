package escrow

import (
	"errors"
	"math"

	"mesa/internal/domain"
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrPotUnderflow   = errors.New("payout exceeds pot")
	ErrNoWinners      = errors.New("settlement needs at least one winner")
	ErrUnbalanced     = errors.New("settlement does not match pot")
)

// RequiredStake is what a player must be able to cover to play: bet plus penalty,
// in the room currency.
func RequiredStake(s domain.Settings) int64 {
	return s.Bet + s.Penalty
}

// StakeIn converts the required stake into the player's currency, rounding up.
func StakeIn(s domain.Settings, playerCurrency string, table RateTable) (int64, error) {
	return Convert(RequiredStake(s), s.Currency, playerCurrency, table, RoundUp)
}

// CanAfford compares a balance in the player's currency against the required stake.
// A missing rate is reported but does not block the check.
func CanAfford(balance int64, playerCurrency string, s domain.Settings, table RateTable) (bool, int64, error) {
	required, err := StakeIn(s, playerCurrency, table)
	return balance >= required, required, err
}

// Pot is a room's escrow. Amount is always Collected minus PaidOut.
type Pot struct {
	Currency      string           `json:"currency"`
	Collected     int64            `json:"collected"`
	PaidOut       int64            `json:"paidOut"`
	Contributions map[string]int64 `json:"contributions"`
}

func NewPot(currency string) *Pot {
	return &Pot{Currency: currency, Contributions: make(map[string]int64)}
}

// Amount is what the pot currently holds.
func (p *Pot) Amount() int64 {
	return p.Collected - p.PaidOut
}

// Collect adds a contribution from userID.
func (p *Pot) Collect(userID string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	p.Collected += amount
	p.Contributions[userID] += amount
	return nil
}

// Refund reverses a contribution made earlier in the same collection round.
func (p *Pot) Refund(userID string, amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if amount > p.Amount() || amount > p.Contributions[userID] {
		return ErrPotUnderflow
	}
	p.PaidOut += amount
	p.Contributions[userID] -= amount
	return nil
}

// Settle records a finished settlement. It must account for the whole pot.
func (p *Pot) Settle(s Settlement) error {
	if s.Total() != p.Amount() {
		return ErrUnbalanced
	}
	p.PaidOut += s.Total()
	return nil
}

// Reset starts a fresh pot for the next game.
func (p *Pot) Reset() {
	p.Collected = 0
	p.PaidOut = 0
	p.Contributions = make(map[string]int64)
}

// Share is one winner's payout in the room currency.
type Share struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

// Settlement splits a pot between the winners and the house.
type Settlement struct {
	Currency   string  `json:"currency"`
	Pot        int64   `json:"totalPot"`
	Commission int64   `json:"commission"`
	Remainder  int64   `json:"remainder"`
	Payouts    []Share `json:"payouts"`
}

// Total is everything the settlement pays out, house take included.
func (s Settlement) Total() int64 {
	total := s.Commission + s.Remainder
	for _, sh := range s.Payouts {
		total += sh.Amount
	}
	return total
}

// WinnerShare is the amount each winner receives.
func (s Settlement) WinnerShare() int64 {
	if len(s.Payouts) == 0 {
		return 0
	}
	return s.Payouts[0].Amount
}

// ComputeSettlement takes the commission from the whole pot and splits the
// rest evenly. Units that do not divide evenly stay with the house.
func ComputeSettlement(pot int64, currency string, winners []string, rate float64) (Settlement, error) {
	if len(winners) == 0 {
		return Settlement{}, ErrNoWinners
	}
	if pot < 0 {
		return Settlement{}, ErrNegativeAmount
	}
	commission := int64(math.Round(float64(pot) * rate))
	if commission > pot {
		commission = pot
	}
	net := pot - commission
	each := net / int64(len(winners))

	s := Settlement{
		Currency:   currency,
		Pot:        pot,
		Commission: commission,
		Remainder:  net - each*int64(len(winners)),
		Payouts:    make([]Share, len(winners)),
	}
	for i, w := range winners {
		s.Payouts[i] = Share{UserID: w, Amount: each}
	}
	return s, nil
}
