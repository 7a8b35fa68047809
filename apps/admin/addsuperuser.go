package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/identity"
	"github.com/shulehq/shule/core/user"
)

// addSuperUser creates or promotes an operator profile. The identity account
// is reused when the email is already known.
func (cli *commandLine) addSuperUser(name, email, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}

		acc, err := cli.accounts.GetByEmail(ctx, email)
		if err != nil {
			if errors.Cause(err) != identity.ErrNotFound {
				return err
			}
			acc, err = cli.accounts.Create(ctx, identity.NewAccount{Email: email, EmailConfirmed: true})
			if err != nil {
				return err
			}
		}
		usr = user.User{
			ID:        acc.ID,
			Email:     email,
			CreatedAt: time.Now().UTC(),
		}
	}

	active := true
	usr.Name = name
	usr.Role = user.RoleSuper
	usr.SchoolID = ""
	usr.IsActive = &active
	usr.UpdatedAt = time.Now().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
