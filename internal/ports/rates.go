package ports

import "context"

// RateSource loads a full exchange-rate table: from -> to -> multiplier.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]map[string]float64, error)
}
