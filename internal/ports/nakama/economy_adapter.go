package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mesa/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaEconomyAdapter implements ports.EconomyPort using Nakama's wallet system.
// Each currency is a separate key in the wallet.
type NakamaEconomyAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaEconomyAdapter creates a new economy adapter.
func NewNakamaEconomyAdapter(nk runtime.NakamaModule) *NakamaEconomyAdapter {
	return &NakamaEconomyAdapter{
		nk: nk,
	}
}

// GetBalance retrieves the balance a user holds in currency.
func (a *NakamaEconomyAdapter) GetBalance(ctx context.Context, userID, currency string) (int64, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if account.Wallet == "" {
		return 0, nil
	}

	var wallet map[string]int64
	if err := json.Unmarshal([]byte(account.Wallet), &wallet); err != nil {
		return 0, fmt.Errorf("failed to unmarshal wallet: %w", err)
	}

	return wallet[strings.ToUpper(currency)], nil
}

// UpdateBalances applies every change in one MultiUpdate so a failed debit
// leaves all wallets untouched.
func (a *NakamaEconomyAdapter) UpdateBalances(ctx context.Context, updates []ports.WalletUpdate) error {
	walletUpdates := make([]*runtime.WalletUpdate, 0, len(updates))
	for _, update := range updates {
		if update.Amount == 0 {
			continue
		}
		walletUpdates = append(walletUpdates, &runtime.WalletUpdate{
			UserID:    update.UserID,
			Changeset: map[string]int64{strings.ToUpper(update.Currency): update.Amount},
			Metadata:  update.Metadata,
		})
	}
	if len(walletUpdates) == 0 {
		return nil
	}

	if _, _, err := a.nk.MultiUpdate(ctx, nil, nil, nil, walletUpdates, true); err != nil {
		return fmt.Errorf("failed to update %d wallets: %w", len(walletUpdates), err)
	}
	return nil
}

var _ ports.EconomyPort = (*NakamaEconomyAdapter)(nil)
