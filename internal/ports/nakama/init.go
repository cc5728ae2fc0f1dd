package nakama

import (
	"context"
	"database/sql"
	"time"

	"mesa/internal/app"
	"mesa/internal/app/onboarding"
	"mesa/internal/config"
	"mesa/internal/domain/escrow"
	"mesa/internal/domain/la51"
	"mesa/internal/ports/natsrates"
	"mesa/internal/ports/redisrates"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/redis/go-redis/v9"
)

const (
	defaultConfigPath = "data/game_config.yaml"

	envConfigPath   = "mesa_config_path"
	envResumeSecret = "mesa_resume_secret"
	envRedisAddr    = "mesa_redis_addr"
	envNATSURL      = "mesa_nats_url"
)

// InitModule wires RPCs, hooks and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)

	path := defaultConfigPath
	if p := env[envConfigPath]; p != "" {
		path = p
	}
	if err := config.LoadGameConfig(path); err != nil {
		logger.Warn("Could not load game config %s, using defaults: %v", path, err)
	}
	cfg := config.GetGameConfig()
	if addr := env[envRedisAddr]; addr != "" {
		cfg.Redis.Addr = addr
	}
	if url := env[envNATSURL]; url != "" {
		cfg.NATS.URL = url
	}

	rates := escrow.NewRateBook(escrow.RateTable(cfg.RateTable()))
	loadRedisRates(ctx, logger, cfg, rates)
	subscribeRateUpdates(logger, cfg, rates)

	var tokens *app.ResumeTokens
	if secret := env[envResumeSecret]; secret != "" {
		tokens = app.NewResumeTokens(secret, cfg.ResumeTokenTTL)
	} else {
		logger.Warn("%s is not set; resume tokens are disabled", envResumeSecret)
	}

	opts := serviceOptions(cfg)
	economy := NewNakamaEconomyAdapter(nk)
	accounts := NewNakamaAccountAdapter(nk)

	rpcs := &rpcService{
		rooms:    nk,
		accounts: accounts,
		checker:  app.NewService(economy, rates, opts, nil),
		tokens:   tokens,
		cfg:      cfg,
	}
	if err := rpcs.RegisterRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterAfterAuthenticateDevice(afterAuthenticateDevice(onboarding.Options{
		Currency:     cfg.DefaultCurrency,
		WelcomeBonus: cfg.WelcomeBonus,
	})); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameMesa, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(NewNakamaEconomyAdapter(nk), NewNakamaAccountAdapter(nk), rates, tokens, opts, cfg.TickRate), nil
	}); err != nil {
		return err
	}

	logger.Info("Mesa Go module loaded.")
	return nil
}

// serviceOptions converts configuration to app options, keeping defaults for unset values.
func serviceOptions(cfg *config.GameConfig) app.Options {
	opts := app.DefaultOptions()
	if cfg.CommissionRate > 0 {
		opts.CommissionRate = cfg.CommissionRate
	}
	if t := cfg.InactivityTicks(); t > 0 {
		opts.InactivityTicks = t
	}
	if t := cfg.RematchTicks(); t > 0 {
		opts.RematchTicks = t
	}
	if cfg.ChatHistory > 0 {
		opts.ChatHistory = cfg.ChatHistory
	}
	la := la51.DefaultOptions()
	if cfg.La51.DeckCount > 0 {
		la.DeckCount = cfg.La51.DeckCount
	}
	if cfg.La51.HandSize > 0 {
		la.HandSize = cfg.La51.HandSize
	}
	if cfg.La51.FirstMeldThreshold > 0 {
		la.FirstMeldThreshold = cfg.La51.FirstMeldThreshold
	}
	opts.La51 = la
	return opts
}

// loadRedisRates merges the Redis rate hash over the static table. The
// static table stays in force when Redis is unreachable.
func loadRedisRates(ctx context.Context, logger runtime.Logger, cfg *config.GameConfig, book *escrow.RateBook) {
	if cfg.Redis.Addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	fetched, err := redisrates.New(client, cfg.Redis.RatesKey).FetchRates(ctx)
	if err != nil {
		logger.Warn("Rates from Redis %s: %v", cfg.Redis.Addr, err)
	}
	if len(fetched) == 0 {
		return
	}
	table := book.Snapshot().Clone()
	for from, row := range fetched {
		for to, rate := range row {
			table.Set(from, to, rate)
		}
	}
	book.Replace(table)
	logger.Info("Loaded %d rate rows from Redis", len(fetched))
}

// subscribeRateUpdates keeps the rate book current from NATS for the life of the process.
func subscribeRateUpdates(logger runtime.Logger, cfg *config.GameConfig, book *escrow.RateBook) {
	if cfg.NATS.URL == "" {
		return
	}
	nc, err := natsrates.Connect(cfg.NATS.URL, logger)
	if err != nil {
		logger.Warn("NATS %s unavailable, rate updates disabled: %v", cfg.NATS.URL, err)
		return
	}
	if err := natsrates.NewSubscriber(book, logger).Subscribe(nc, cfg.NATS.RatesSubject); err != nil {
		logger.Warn("Rate updates disabled: %v", err)
		nc.Close()
		return
	}
	logger.Info("Subscribed to rate updates on %s", cfg.NATS.RatesSubject)
}
