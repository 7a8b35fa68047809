// Package identity abstracts the external identity provider holding login
// accounts. Profiles in core/user are keyed by the account id it allocates.
package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("account not found")
	ErrEmailExists = errors.New("an account with this email already exists")
)

type Account struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

type NewAccount struct {
	Email          string
	EmailConfirmed bool
}

// Provider is any collaborator that can look up and allocate login accounts.
type Provider interface {
	GetByEmail(ctx context.Context, email string) (Account, error)
	Create(ctx context.Context, na NewAccount) (Account, error)
}
