package nakama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mesa/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

// metadataCurrencyKey holds the display currency in account metadata.
const metadataCurrencyKey = "currency"

// NakamaAccountAdapter implements ports.AccountPort using Nakama's account API.
type NakamaAccountAdapter struct {
	nk runtime.NakamaModule
}

// NewNakamaAccountAdapter creates a new account adapter.
func NewNakamaAccountAdapter(nk runtime.NakamaModule) *NakamaAccountAdapter {
	return &NakamaAccountAdapter{nk: nk}
}

// UpdateProfile updates the account username and display name in Nakama.
// userID identifies the account to update; username/displayName are applied as provided.
// Returns an error if the Nakama update fails.
func (a *NakamaAccountAdapter) UpdateProfile(ctx context.Context, userID, username, displayName string) error {
	return a.nk.AccountUpdateId(ctx, userID, username, nil, displayName, "", "", "", "")
}

// SetCurrency merges the display currency into the account metadata.
func (a *NakamaAccountAdapter) SetCurrency(ctx context.Context, userID, currency string) error {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get account: %w", err)
	}
	metadata := map[string]interface{}{}
	if account.User != nil && account.User.Metadata != "" {
		if err := json.Unmarshal([]byte(account.User.Metadata), &metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	metadata[metadataCurrencyKey] = strings.ToUpper(currency)
	return a.nk.AccountUpdateId(ctx, userID, "", metadata, "", "", "", "", "")
}

// GetProfile loads the public profile. Currency is empty when never set.
func (a *NakamaAccountAdapter) GetProfile(ctx context.Context, userID string) (ports.Profile, error) {
	account, err := a.nk.AccountGetId(ctx, userID)
	if err != nil {
		return ports.Profile{}, fmt.Errorf("failed to get account: %w", err)
	}
	profile := ports.Profile{UserID: userID}
	if account.User == nil {
		return profile, nil
	}
	profile.Username = account.User.Username
	profile.DisplayName = account.User.DisplayName
	profile.AvatarURL = account.User.AvatarUrl

	if account.User.Metadata != "" {
		var metadata map[string]interface{}
		if err := json.Unmarshal([]byte(account.User.Metadata), &metadata); err == nil {
			if c, ok := metadata[metadataCurrencyKey].(string); ok {
				profile.Currency = strings.ToUpper(c)
			}
		}
	}
	return profile, nil
}

var _ ports.AccountPort = (*NakamaAccountAdapter)(nil)
