package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/shulehq/shule/core/identity"
)

type accountRow struct {
	ID             string    `db:"id"`
	Email          string    `db:"email"`
	EmailConfirmed bool      `db:"email_confirmed"`
	CreatedAt      time.Time `db:"created_at"`
}

type accountProvider struct {
	db *sqlx.DB
}

var _ identity.Provider = (*accountProvider)(nil) // interface compliance check

func NewAccountProvider(db *sqlx.DB) *accountProvider {
	return &accountProvider{db: db}
}

func (repo accountProvider) GetByEmail(ctx context.Context, email string) (identity.Account, error) {
	var row accountRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, email, email_confirmed, created_at FROM account WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return identity.Account{}, identity.ErrNotFound
		}
		return identity.Account{}, errors.Wrap(err, "finding account by email")
	}
	return identity.Account(row), nil
}

func (repo accountProvider) Create(ctx context.Context, na identity.NewAccount) (identity.Account, error) {
	acc := identity.Account{
		ID:             uuid.New().String(),
		Email:          na.Email,
		EmailConfirmed: na.EmailConfirmed,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO account (id, email, email_confirmed, created_at) VALUES ($1, $2, $3, $4)`,
		acc.ID, acc.Email, acc.EmailConfirmed, acc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "account_email_key") {
			return identity.Account{}, identity.ErrEmailExists
		}
		return identity.Account{}, errors.Wrap(err, "inserting account")
	}
	return acc, nil
}
