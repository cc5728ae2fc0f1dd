package onboarding

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"mesa/internal/ports"
)

const (
	defaultCurrency     = "USD"
	defaultWelcomeBonus = 100
)

// Result captures non-fatal onboarding outcomes.
type Result struct {
	// ProfileUpdateErr is set when the profile update failed but onboarding continued.
	ProfileUpdateErr error
	// CurrencyErr is set when the display currency could not be stored.
	CurrencyErr error
	// WelcomeBonusGranted is false when the bonus had been granted before.
	WelcomeBonusGranted bool
	Currency            string
}

// Options override the default currency and bonus.
type Options struct {
	Currency     string
	WelcomeBonus int64
}

// Service handles post-auth onboarding for new users.
type Service struct {
	accounts ports.AccountPort
	bonuses  ports.WelcomeBonusPort
	rng      *rand.Rand
	opts     Options
}

// NewService constructs an onboarding service with required ports.
// accounts/bonuses must be non-nil; rng may be nil to use a time-seeded default.
func NewService(accounts ports.AccountPort, bonuses ports.WelcomeBonusPort, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		accounts: accounts,
		bonuses:  bonuses,
		rng:      rng,
		opts:     Options{Currency: defaultCurrency, WelcomeBonus: defaultWelcomeBonus},
	}
}

// WithOptions replaces the currency and bonus amount; zero fields keep the defaults.
func (s *Service) WithOptions(opts Options) *Service {
	if opts.Currency != "" {
		s.opts.Currency = strings.ToUpper(opts.Currency)
	}
	if opts.WelcomeBonus > 0 {
		s.opts.WelcomeBonus = opts.WelcomeBonus
	}
	return s
}

// OnboardNewUser initializes profile, display currency and wallet for a newly
// created account. Profile and currency failures are reported in Result; only
// a failed bonus grant is an error.
func (s *Service) OnboardNewUser(ctx context.Context, userID string) (Result, error) {
	if s.accounts == nil || s.bonuses == nil {
		return Result{}, fmt.Errorf("onboarding service not configured")
	}

	result := Result{Currency: s.opts.Currency}
	displayName := s.generateFriendlyName()
	if err := s.accounts.UpdateProfile(ctx, userID, displayName, displayName); err != nil {
		// Profile updates are best-effort; wallet grants are more important.
		result.ProfileUpdateErr = err
	}
	if err := s.accounts.SetCurrency(ctx, userID, s.opts.Currency); err != nil {
		result.CurrencyErr = err
	}

	granted, err := s.bonuses.GrantWelcomeBonusOnce(ctx, userID, s.opts.Currency, s.opts.WelcomeBonus, map[string]interface{}{
		"reason": "welcome_bonus",
	})
	if err != nil {
		return result, fmt.Errorf("failed to grant welcome bonus: %w", err)
	}
	result.WelcomeBonusGranted = granted
	return result, nil
}

func (s *Service) generateFriendlyName() string {
	adjectives := []string{"Lucky", "Bold", "Sharp", "Quiet", "Swift", "Calm", "Sly", "Keen", "Wild", "Cool"}
	nouns := []string{"Joker", "Dealer", "Ace", "Knight", "Queen", "Rook", "Dice", "Token", "Bishop", "King"}

	adj := adjectives[s.rng.Intn(len(adjectives))]
	noun := nouns[s.rng.Intn(len(nouns))]
	num := s.rng.Intn(9000) + 1000

	return fmt.Sprintf("%s%s%d", adj, noun, num)
}
