package main

import (
	"context"

	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

// addProfile creates an active profile.
func (cli *commandLine) addProfile(ctx context.Context, email, first, last, role, pwd string) error {
	p, err := cli.profiles.Register(ctx, profile.NewProfile{
		Email:           email,
		FirstName:       first,
		LastName:        last,
		Role:            authz.Role(role),
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	if err != nil {
		return err
	}
	cli.printf("%s %s created: %s\n", p.Role, p.Email, p.ID)
	return nil
}
