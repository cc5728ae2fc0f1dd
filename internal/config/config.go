package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// BetTier is a quick-match table preset.
type BetTier struct {
	ID       string `mapstructure:"id"`
	Bet      int64  `mapstructure:"bet"`
	Penalty  int64  `mapstructure:"penalty"`
	Currency string `mapstructure:"currency"`
}

// La51Config tunes the card engine deal.
type La51Config struct {
	DeckCount          int `mapstructure:"deck_count"`
	HandSize           int `mapstructure:"hand_size"`
	FirstMeldThreshold int `mapstructure:"first_meld_threshold"`
}

// Rate is one static exchange rate. Rates are a list because viper folds map keys to lower case.
type Rate struct {
	From string  `mapstructure:"from"`
	To   string  `mapstructure:"to"`
	Rate float64 `mapstructure:"rate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	RatesKey string `mapstructure:"rates_key"`
}

type NATSConfig struct {
	URL          string `mapstructure:"url"`
	RatesSubject string `mapstructure:"rates_subject"`
}

type GameConfig struct {
	CommissionRate        float64       `mapstructure:"commission_rate"`
	InactivitySeconds     int           `mapstructure:"inactivity_seconds"`
	RematchTimeoutSeconds int           `mapstructure:"rematch_timeout_seconds"`
	TickRate              int           `mapstructure:"tick_rate"`
	ChatHistory           int           `mapstructure:"chat_history"`
	ResumeTokenTTL        time.Duration `mapstructure:"resume_token_ttl"`
	DefaultCurrency       string        `mapstructure:"default_currency"`
	WelcomeBonus          int64         `mapstructure:"welcome_bonus"`
	DefaultTier           string        `mapstructure:"default_tier"`
	Tiers                 []BetTier     `mapstructure:"tiers"`
	La51                  La51Config    `mapstructure:"la51"`
	Rates                 []Rate        `mapstructure:"rates"`
	Redis                 RedisConfig   `mapstructure:"redis"`
	NATS                  NATSConfig    `mapstructure:"nats"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("commission_rate", 0.10)
	v.SetDefault("inactivity_seconds", 120)
	v.SetDefault("rematch_timeout_seconds", 60)
	v.SetDefault("tick_rate", 1)
	v.SetDefault("chat_history", 50)
	v.SetDefault("resume_token_ttl", 24*time.Hour)
	v.SetDefault("default_currency", "USD")
	v.SetDefault("welcome_bonus", 100)
	v.SetDefault("default_tier", "")
	v.SetDefault("la51.deck_count", 2)
	v.SetDefault("la51.hand_size", 14)
	v.SetDefault("la51.first_meld_threshold", 51)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.rates_key", "fx:rates")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.rates_subject", "fx.rates")
}

// Load reads the YAML file at path (optional) and applies MESA_* environment overrides.
func Load(path string) (*GameConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MESA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
	}

	var c GameConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &c, nil
}

// LoadGameConfig loads the process-wide configuration once.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		cfg, loadErr = Load(path)
	})
	return loadErr
}

// GetGameConfig returns the global game configuration, or defaults when none was loaded.
func GetGameConfig() *GameConfig {
	if cfg != nil {
		return cfg
	}
	c, err := Load("")
	if err != nil {
		return &GameConfig{CommissionRate: 0.10, InactivitySeconds: 120, RematchTimeoutSeconds: 60, TickRate: 1}
	}
	return c
}

// Tier returns the tier with the given id, falling back to the default tier.
func (c *GameConfig) Tier(id string) (BetTier, bool) {
	target := id
	if target == "" {
		target = c.DefaultTier
	}
	for _, t := range c.Tiers {
		if t.ID == target {
			return t, true
		}
	}
	for _, t := range c.Tiers {
		if t.ID == c.DefaultTier {
			return t, true
		}
	}
	return BetTier{}, false
}

// RateTable converts the static rate list into from -> to -> rate.
func (c *GameConfig) RateTable() map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, r := range c.Rates {
		from, to := strings.ToUpper(r.From), strings.ToUpper(r.To)
		if out[from] == nil {
			out[from] = make(map[string]float64)
		}
		out[from][to] = r.Rate
	}
	return out
}

// InactivityTicks is the idle timeout expressed in match ticks.
func (c *GameConfig) InactivityTicks() int64 {
	return int64(c.InactivitySeconds * c.tickRate())
}

// RematchTicks is the rematch window expressed in match ticks.
func (c *GameConfig) RematchTicks() int64 {
	return int64(c.RematchTimeoutSeconds * c.tickRate())
}

func (c *GameConfig) tickRate() int {
	if c.TickRate <= 0 {
		return 1
	}
	return c.TickRate
}
