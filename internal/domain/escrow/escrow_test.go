package escrow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mesa/internal/domain"
)

func TestConvert(t *testing.T) {
	table := RateTable{"USD": {"EUR": 0.92}}

	tests := []struct {
		name    string
		amount  int64
		from    string
		to      string
		mode    Rounding
		want    int64
		wantErr error
	}{
		{"same currency", 15, "USD", "USD", RoundUp, 15, nil},
		{"direct debit rounds up", 10, "USD", "EUR", RoundUp, 10, nil},
		{"direct credit rounds down", 10, "USD", "EUR", RoundDown, 9, nil},
		{"exact product", 100, "USD", "EUR", RoundUp, 92, nil},
		{"inverse", 92, "EUR", "USD", RoundDown, 100, nil},
		{"missing rate passes through", 15, "USD", "COP", RoundUp, 15, ErrNoRateAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.from, tt.to, table, tt.mode)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanAffordUsesBetPlusPenalty(t *testing.T) {
	settings := domain.Settings{Bet: 10, Penalty: 5, Currency: "USD"}

	ok, required, err := CanAfford(12, "USD", settings, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(15), required)

	ok, _, err = CanAfford(15, "USD", settings, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanAffordAcrossCurrencies(t *testing.T) {
	settings := domain.Settings{Bet: 10, Penalty: 5, Currency: "USD"}
	table := RateTable{"USD": {"COP": 4000}}

	ok, required, err := CanAfford(59999, "COP", settings, table)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(60000), required)

	ok, _, err = CanAfford(20, "MXN", settings, table)
	require.ErrorIs(t, err, ErrNoRateAvailable)
	assert.True(t, ok, "missing rate degrades to 1:1")
}

func TestComputeSettlement(t *testing.T) {
	tests := []struct {
		name       string
		pot        int64
		winners    []string
		commission int64
		share      int64
		remainder  int64
	}{
		{"single winner", 100, []string{"u1"}, 10, 90, 0},
		{"team", 100, []string{"u1", "u2"}, 10, 45, 0},
		{"uneven split stays with house", 35, []string{"u1", "u2"}, 4, 15, 1},
		{"commission rounds", 15, []string{"u1"}, 2, 13, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ComputeSettlement(tt.pot, "USD", tt.winners, 0.10)
			require.NoError(t, err)
			assert.Equal(t, tt.commission, s.Commission)
			assert.Equal(t, tt.share, s.WinnerShare())
			assert.Equal(t, tt.remainder, s.Remainder)
			assert.Equal(t, tt.pot, s.Total())
		})
	}

	_, err := ComputeSettlement(100, "USD", nil, 0.10)
	require.ErrorIs(t, err, ErrNoWinners)
}

func TestPotInvariant(t *testing.T) {
	pot := NewPot("USD")
	require.NoError(t, pot.Collect("u1", 50))
	require.NoError(t, pot.Collect("u2", 50))
	require.ErrorIs(t, pot.Collect("u2", -1), ErrNegativeAmount)
	assert.Equal(t, int64(100), pot.Amount())

	require.NoError(t, pot.Refund("u2", 50))
	assert.Equal(t, int64(50), pot.Amount())
	require.ErrorIs(t, pot.Refund("u2", 1), ErrPotUnderflow)
	require.NoError(t, pot.Collect("u2", 50))

	s, err := ComputeSettlement(pot.Amount(), pot.Currency, []string{"u1"}, 0.10)
	require.NoError(t, err)
	require.ErrorIs(t, pot.Settle(Settlement{Commission: 1}), ErrUnbalanced)
	require.NoError(t, pot.Settle(s))
	assert.Equal(t, int64(0), pot.Amount())
	assert.Equal(t, pot.Collected-pot.PaidOut, pot.Amount())

	pot.Reset()
	assert.Equal(t, int64(0), pot.Collected)
	assert.Empty(t, pot.Contributions)
}

func TestRateBookCopyOnWrite(t *testing.T) {
	book := NewRateBook(RateTable{"USD": {"EUR": 0.9}})
	before := book.Snapshot()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			book.Update("USD", "COP", float64(4000+i))
			_ = book.Snapshot()
		}(i)
	}
	wg.Wait()

	_, err := before.Rate("USD", "COP")
	require.ErrorIs(t, err, ErrNoRateAvailable, "old snapshots are never mutated")

	r, err := book.Snapshot().Rate("USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 0.9, r)
	_, err = book.Snapshot().Rate("USD", "COP")
	require.NoError(t, err)
}
