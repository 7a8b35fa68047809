package user

import (
	"context"

	"github.com/shulehq/shule/core"
	"github.com/shulehq/shule/core/identity"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose async side-effects run synchronously.
// accounts, mailSvc and conf may be nil when the test only reads users.
func NewServiceMock(repo Repository, accounts identity.Provider, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:     repo,
			accounts: accounts,
			mailSvc:  mailSvc,
			conf:     conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
