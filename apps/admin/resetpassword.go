package main

import (
	"context"

	"github.com/trezcool/coachdesk/core/profile"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	p, err := cli.profiles.SetPassword(ctx, email, profile.ChangePassword{Password: pwd, PasswordConfirm: pwd})
	if err != nil {
		return err
	}
	cli.printf("password of %s updated\n", p.Email)
	return nil
}

func (cli *commandLine) setActive(ctx context.Context, email string, active bool) error {
	p, err := cli.profiles.SetActive(ctx, email, active)
	if err != nil {
		return err
	}
	cli.printf("%s is_active=%t\n", p.Email, p.IsActive)
	return nil
}
