package ports

import "context"

// Profile is the subset of an account the game needs.
type Profile struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	Currency    string
}

// AccountPort defines the interface for reading and updating account profiles.
type AccountPort interface {
	// UpdateProfile updates account profile fields for the given user.
	// userID identifies the account to update; username/displayName are applied as provided.
	// Returns an error if the profile update fails.
	UpdateProfile(ctx context.Context, userID, username, displayName string) error

	// SetCurrency stores the user's display currency.
	SetCurrency(ctx context.Context, userID, currency string) error

	// GetProfile loads the profile, including the display currency.
	GetProfile(ctx context.Context, userID string) (Profile, error)
}
