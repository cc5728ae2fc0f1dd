package redisrates

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Source) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, New(client, "")
}

func TestFetchRates(t *testing.T) {
	mr, src := setupTestRedis(t)
	mr.HSet(DefaultKey, "USD:COP", "4000", "usd:eur", " 0.92 ")

	rates, err := src.FetchRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{
		"USD": {"COP": 4000, "EUR": 0.92},
	}, rates)
}

func TestFetchRatesSkipsMalformedEntries(t *testing.T) {
	mr, src := setupTestRedis(t)
	mr.HSet(DefaultKey, "USD:COP", "4000", "USDCOP", "1", "USD:MXN", "abc", "EUR:EUR", "1", "USD:JPY", "-2")

	rates, err := src.FetchRates(context.Background())
	require.Error(t, err)
	assert.Equal(t, map[string]map[string]float64{"USD": {"COP": 4000}}, rates)
}

func TestFetchRatesMissingKey(t *testing.T) {
	_, src := setupTestRedis(t)

	_, err := src.FetchRates(context.Background())
	require.ErrorIs(t, err, ErrNoRates)
}

func TestFetchRatesConnectionError(t *testing.T) {
	mr, src := setupTestRedis(t)
	mr.Close()

	_, err := src.FetchRates(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRates)
}

func TestParsePair(t *testing.T) {
	tests := []struct {
		field    string
		from, to string
		ok       bool
	}{
		{"USD:COP", "USD", "COP", true},
		{" eur : usd ", "EUR", "USD", true},
		{"USD", "", "", false},
		{":COP", "", "", false},
		{"USD:USD", "", "", false},
	}
	for _, tt := range tests {
		from, to, ok := ParsePair(tt.field)
		assert.Equal(t, tt.ok, ok, tt.field)
		assert.Equal(t, tt.from, from, tt.field)
		assert.Equal(t, tt.to, to, tt.field)
	}
}
