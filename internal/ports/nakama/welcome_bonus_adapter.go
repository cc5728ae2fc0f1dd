package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mesa/internal/ports"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	welcomeBonusCollection = "onboarding"
	welcomeBonusKey        = "welcome_bonus_v2"
)

var errInvalidGrant = errors.New("invalid welcome grant")

// welcomeGrant is the storage marker. Its GrantID is also written to the
// wallet ledger entry so the two can be joined when auditing.
type welcomeGrant struct {
	GrantID   string `json:"grantId"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
	GrantedAt string `json:"grantedAt"`
}

// NakamaWelcomeBonusAdapter credits the one-time welcome bonus.
type NakamaWelcomeBonusAdapter struct {
	nk  runtime.NakamaModule
	now func() time.Time
}

func NewNakamaWelcomeBonusAdapter(nk runtime.NakamaModule) *NakamaWelcomeBonusAdapter {
	return &NakamaWelcomeBonusAdapter{nk: nk, now: time.Now}
}

// GrantWelcomeBonusOnce writes the marker with version "*" in the same
// MultiUpdate as the credit; storage rejects the second attempt and the
// wallet is left untouched.
func (a *NakamaWelcomeBonusAdapter) GrantWelcomeBonusOnce(ctx context.Context, userID, currency string, amount int64, metadata map[string]interface{}) (bool, error) {
	grant, err := a.newGrant(userID, currency, amount)
	if err != nil {
		return false, err
	}
	marker, err := json.Marshal(grant)
	if err != nil {
		return false, fmt.Errorf("failed to encode welcome grant: %w", err)
	}

	ledger := map[string]interface{}{"grantId": grant.GrantID}
	for k, v := range metadata {
		ledger[k] = v
	}

	_, _, err = a.nk.MultiUpdate(ctx, nil,
		[]*runtime.StorageWrite{{
			Collection:      welcomeBonusCollection,
			Key:             welcomeBonusKey,
			UserID:          userID,
			Value:           string(marker),
			Version:         "*",
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		}},
		nil,
		[]*runtime.WalletUpdate{{
			UserID:    userID,
			Changeset: map[string]int64{grant.Currency: grant.Amount},
			Metadata:  ledger,
		}},
		true)
	switch {
	case errors.Is(err, runtime.ErrStorageRejectedVersion):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to grant %d %s to %s: %w", grant.Amount, grant.Currency, userID, err)
	}
	return true, nil
}

func (a *NakamaWelcomeBonusAdapter) newGrant(userID, currency string, amount int64) (welcomeGrant, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	switch {
	case userID == "":
		return welcomeGrant{}, fmt.Errorf("%w: user id is required", errInvalidGrant)
	case currency == "":
		return welcomeGrant{}, fmt.Errorf("%w: currency is required", errInvalidGrant)
	case amount <= 0:
		return welcomeGrant{}, fmt.Errorf("%w: amount %d", errInvalidGrant, amount)
	}
	return welcomeGrant{
		GrantID:   uuid.NewString(),
		Currency:  currency,
		Amount:    amount,
		GrantedAt: a.now().UTC().Format(time.RFC3339),
	}, nil
}

var _ ports.WelcomeBonusPort = (*NakamaWelcomeBonusAdapter)(nil)
