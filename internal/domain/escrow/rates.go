package escrow

import (
	"errors"
	"math"
	"sync/atomic"
)

// ErrNoRateAvailable is a warning: the amount was passed through unconverted.
var ErrNoRateAvailable = errors.New("no exchange rate available")

// RateTable maps from-currency to to-currency to the multiplier.
type RateTable map[string]map[string]float64

// Rate looks up a direct rate, then the inverse of the reverse rate.
// A missing rate yields 1 together with ErrNoRateAvailable.
func (t RateTable) Rate(from, to string) (float64, error) {
	if from == to {
		return 1, nil
	}
	if r, ok := t[from][to]; ok && r > 0 {
		return r, nil
	}
	if r, ok := t[to][from]; ok && r > 0 {
		return 1 / r, nil
	}
	return 1, ErrNoRateAvailable
}

// Clone deep-copies the table.
func (t RateTable) Clone() RateTable {
	out := make(RateTable, len(t))
	for from, row := range t {
		cp := make(map[string]float64, len(row))
		for to, r := range row {
			cp[to] = r
		}
		out[from] = cp
	}
	return out
}

// Set stores a rate, creating the row if needed.
func (t RateTable) Set(from, to string, rate float64) {
	row, ok := t[from]
	if !ok {
		row = make(map[string]float64)
		t[from] = row
	}
	row[to] = rate
}

// Rounding decides which way fractional units go.
type Rounding int

const (
	// RoundUp is used for debits so the house never under-collects.
	RoundUp Rounding = iota
	// RoundDown is used for credits.
	RoundDown
)

// conversion slack so 10*0.92 does not ceil to 10.000000001.
const epsilon = 1e-9

// Convert converts an integer amount between currencies. When no rate exists
// it returns amount unchanged along with ErrNoRateAvailable.
func Convert(amount int64, from, to string, table RateTable, mode Rounding) (int64, error) {
	rate, err := table.Rate(from, to)
	if err != nil {
		return amount, err
	}
	if rate == 1 {
		return amount, nil
	}
	v := float64(amount) * rate
	if mode == RoundUp {
		return int64(math.Ceil(v - epsilon)), nil
	}
	return int64(math.Floor(v + epsilon)), nil
}

// RateBook holds the current rate table. Readers get an immutable snapshot;
// writers swap in a new table so game actions never wait on rate updates.
type RateBook struct {
	table atomic.Pointer[RateTable]
}

func NewRateBook(initial RateTable) *RateBook {
	b := &RateBook{}
	b.Replace(initial)
	return b
}

// Snapshot returns the current table. Callers must not modify it.
func (b *RateBook) Snapshot() RateTable {
	if t := b.table.Load(); t != nil {
		return *t
	}
	return RateTable{}
}

// Replace swaps in a copy of t.
func (b *RateBook) Replace(t RateTable) {
	cp := t.Clone()
	b.table.Store(&cp)
}

// Update sets a single rate with copy-on-write.
func (b *RateBook) Update(from, to string, rate float64) {
	for {
		old := b.table.Load()
		var next RateTable
		if old != nil {
			next = old.Clone()
		} else {
			next = RateTable{}
		}
		next.Set(from, to, rate)
		if b.table.CompareAndSwap(old, &next) {
			return
		}
	}
}
