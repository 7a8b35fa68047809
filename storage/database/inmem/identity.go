package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shulehq/shule/core/identity"
)

type accountProvider struct {
	db *accountTable
}

var _ identity.Provider = (*accountProvider)(nil)

// NewAccountProvider returns an identity.Provider backed by the in-memory DB.
func NewAccountProvider(db *DB) *accountProvider {
	return &accountProvider{db: db.account}
}

func (p *accountProvider) GetByEmail(ctx context.Context, email string) (identity.Account, error) {
	p.db.RLock()
	defer p.db.RUnlock()

	for _, acct := range p.db.table {
		if acct.Email == email {
			return *acct, nil
		}
	}
	return identity.Account{}, identity.ErrNotFound
}

func (p *accountProvider) Create(ctx context.Context, na identity.NewAccount) (identity.Account, error) {
	p.db.Lock()
	defer p.db.Unlock()

	for _, acct := range p.db.table {
		if acct.Email == na.Email {
			return identity.Account{}, identity.ErrEmailExists
		}
	}
	acct := identity.Account{
		ID:             uuid.New().String(),
		Email:          na.Email,
		EmailConfirmed: na.EmailConfirmed,
		CreatedAt:      time.Now().UTC(),
	}
	p.db.table[acct.ID] = &acct
	return acct, nil
}
