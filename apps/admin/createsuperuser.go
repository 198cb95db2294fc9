package main

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/koneum/eduwaly/core"
	"github.com/koneum/eduwaly/core/user"
)

// createSuperUser creates a SUPER_ADMIN. The password policy applies.
func (cli *commandLine) createSuperUser(ctx context.Context, uname, email, pwd string) error {
	name := uname
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Role:            user.RoleSuperAdmin,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return cli.describe(err)
	}
	if _, err := cli.usrSvc.Create(ctx, nu); err != nil {
		return errors.Wrap(err, "creating user")
	}
	return nil
}

// describe flattens validation errors into a single line.
func (cli *commandLine) describe(err error) error {
	var msgs []string
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range verr {
			msgs = append(msgs, fe.Field()+": "+fe.Translate(cli.translator))
		}
	case *core.ValidationError:
		for _, fe := range verr.Fields {
			msgs = append(msgs, fe.Field+": "+fe.Error)
		}
	}
	if len(msgs) == 0 {
		return err
	}
	return errors.New(strings.Join(msgs, "; "))
}
