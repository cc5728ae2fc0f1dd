package ports

import "context"

// WalletUpdate represents a single currency change for a user.
type WalletUpdate struct {
	UserID   string
	Currency string
	Amount   int64
	Metadata map[string]interface{}
}

// EconomyPort defines the interface for managing player balances.
type EconomyPort interface {
	// GetBalance retrieves the current balance of currency for a user.
	GetBalance(ctx context.Context, userID, currency string) (int64, error)

	// UpdateBalances applies multiple wallet changes atomically.
	// Either every update is applied or none is.
	UpdateBalances(ctx context.Context, updates []WalletUpdate) error
}
