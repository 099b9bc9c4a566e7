package core

import (
	"context"

	"github.com/go-authgate/exchauth/internal/models"
)

// UserRepository is the local user store the reconciler reads and writes.
// Lookups return store.ErrRecordNotFound when absent; CreateUser returns
// store.ErrUsernameConflict when the username is already taken.
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
}

// ProvisionHook is notified once when a user is created on first login.
// Errors are logged by the caller and never abort authentication.
type ProvisionHook interface {
	OnUserProvisioned(ctx context.Context, user *models.User, domain string) error
}

// UserCounter reports how many local users exist.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountUsersByDomain(ctx context.Context, domain string) (int64, error)
}
