// Package redisrates reads exchange rates from a Redis hash whose fields are
// "FROM:TO" currency pairs and whose values are decimal multipliers.
package redisrates

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"mesa/internal/ports"
)

// DefaultKey is the hash read when no key is configured.
const DefaultKey = "fx:rates"

var ErrNoRates = errors.New("no exchange rates found")

// Source implements ports.RateSource on top of a Redis hash.
type Source struct {
	client redis.Cmdable
	key    string
}

func New(client redis.Cmdable, key string) *Source {
	if key == "" {
		key = DefaultKey
	}
	return &Source{client: client, key: key}
}

// FetchRates loads the whole hash. Malformed fields are skipped and reported
// in the returned error alongside the rates that did parse.
func (s *Source) FetchRates(ctx context.Context) (map[string]map[string]float64, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}
	if len(entries) == 0 {
		return nil, ErrNoRates
	}

	out := make(map[string]map[string]float64)
	var bad []error
	for field, raw := range entries {
		from, to, ok := ParsePair(field)
		if !ok {
			bad = append(bad, fmt.Errorf("malformed pair %q", field))
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || rate <= 0 {
			bad = append(bad, fmt.Errorf("malformed rate %q for %s", raw, field))
			continue
		}
		if out[from] == nil {
			out[from] = make(map[string]float64)
		}
		out[from][to] = rate
	}
	return out, errors.Join(bad...)
}

// ParsePair splits "usd:cop" into ("USD", "COP").
func ParsePair(field string) (from, to string, ok bool) {
	from, to, found := strings.Cut(field, ":")
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if !found || from == "" || to == "" || from == to {
		return "", "", false
	}
	return from, to, true
}

var _ ports.RateSource = (*Source)(nil)
