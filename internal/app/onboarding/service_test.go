package onboarding

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"mesa/internal/ports"
)

type fakeAccountPort struct {
	updateErr   error
	currencyErr error
	currencies  map[string]string
}

func (f *fakeAccountPort) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	return f.updateErr
}

func (f *fakeAccountPort) SetCurrency(ctx context.Context, userID, currency string) error {
	if f.currencyErr != nil {
		return f.currencyErr
	}
	if f.currencies == nil {
		f.currencies = make(map[string]string)
	}
	f.currencies[userID] = currency
	return nil
}

func (f *fakeAccountPort) GetProfile(ctx context.Context, userID string) (ports.Profile, error) {
	return ports.Profile{UserID: userID, Currency: f.currencies[userID]}, nil
}

type fakeWelcomeBonusPort struct {
	updateErr error
	updates   []welcomeBonusCall
	granted   bool
}

type welcomeBonusCall struct {
	userID   string
	currency string
	amount   int64
	metadata map[string]interface{}
}

func (f *fakeWelcomeBonusPort) GrantWelcomeBonusOnce(ctx context.Context, userID, currency string, amount int64, metadata map[string]interface{}) (bool, error) {
	f.updates = append(f.updates, welcomeBonusCall{
		userID:   userID,
		currency: currency,
		amount:   amount,
		metadata: metadata,
	})
	if f.updateErr != nil {
		return false, f.updateErr
	}
	return f.granted, nil
}

func TestOnboardNewUser_GrantsWelcomeBonus(t *testing.T) {
	accounts := &fakeAccountPort{}
	bonuses := &fakeWelcomeBonusPort{granted: true}
	service := NewService(accounts, bonuses, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.ProfileUpdateErr != nil {
		t.Fatalf("Expected no profile update error, got %v", result.ProfileUpdateErr)
	}

	if len(bonuses.updates) != 1 {
		t.Fatalf("Expected 1 welcome bonus call, got %d", len(bonuses.updates))
	}
	if bonuses.updates[0].amount != defaultWelcomeBonus {
		t.Fatalf("Expected welcome bonus %d, got %d", defaultWelcomeBonus, bonuses.updates[0].amount)
	}
	if bonuses.updates[0].currency != defaultCurrency {
		t.Fatalf("Expected bonus currency %s, got %s", defaultCurrency, bonuses.updates[0].currency)
	}
	if accounts.currencies["user-1"] != defaultCurrency {
		t.Fatalf("Expected display currency %s, got %q", defaultCurrency, accounts.currencies["user-1"])
	}
	if !result.WelcomeBonusGranted {
		t.Fatal("Expected welcome bonus to be marked as granted")
	}
}

func TestOnboardNewUser_UsesConfiguredCurrency(t *testing.T) {
	accounts := &fakeAccountPort{}
	bonuses := &fakeWelcomeBonusPort{granted: true}
	service := NewService(accounts, bonuses, rand.New(rand.NewSource(1))).
		WithOptions(Options{Currency: "cop", WelcomeBonus: 400000})

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.Currency != "COP" || accounts.currencies["user-1"] != "COP" {
		t.Fatalf("Expected COP, got result=%s stored=%s", result.Currency, accounts.currencies["user-1"])
	}
	if bonuses.updates[0].amount != 400000 {
		t.Fatalf("Expected bonus 400000, got %d", bonuses.updates[0].amount)
	}
}

func TestOnboardNewUser_AccountUpdateFailureStillGrantsBonus(t *testing.T) {
	bonuses := &fakeWelcomeBonusPort{granted: true}
	accounts := &fakeAccountPort{updateErr: errors.New("update failed"), currencyErr: errors.New("metadata failed")}
	service := NewService(accounts, bonuses, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.ProfileUpdateErr == nil {
		t.Fatal("Expected profile update error to be captured")
	}
	if result.CurrencyErr == nil {
		t.Fatal("Expected currency error to be captured")
	}

	if len(bonuses.updates) != 1 {
		t.Fatalf("Expected 1 welcome bonus call, got %d", len(bonuses.updates))
	}
	if !result.WelcomeBonusGranted {
		t.Fatal("Expected welcome bonus to be marked as granted")
	}
}

func TestOnboardNewUser_WelcomeBonusFailureReturnsError(t *testing.T) {
	service := NewService(&fakeAccountPort{}, &fakeWelcomeBonusPort{updateErr: errors.New("wallet failed")}, rand.New(rand.NewSource(1)))

	if _, err := service.OnboardNewUser(context.Background(), "user-1"); err == nil {
		t.Fatal("Expected error when welcome bonus fails")
	}
}

func TestOnboardNewUser_WelcomeBonusAlreadyGranted(t *testing.T) {
	bonuses := &fakeWelcomeBonusPort{granted: false}
	service := NewService(&fakeAccountPort{}, bonuses, rand.New(rand.NewSource(1)))

	result, err := service.OnboardNewUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("OnboardNewUser returned error: %v", err)
	}
	if result.WelcomeBonusGranted {
		t.Fatal("Expected welcome bonus to be marked as already granted")
	}
}
