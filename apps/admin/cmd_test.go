package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	emailsvc "github.com/trezcool/coachdesk/services/email"
	testutil "github.com/trezcool/coachdesk/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		profiles:  env.Profiles,
		reminders: env.Reminders,
		out:       new(bytes.Buffer),
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantKind   string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()

	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	case tt.wantKind != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantKind, core.ErrorKind(err))
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	err := cli.run([]string{"admin", "migrate", "up"})
	assert.Equal(t, errNoDatabase, err)

	cli.db = sqlx.NewDb(&sql.DB{}, "postgres")
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "attachments", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addProfile(t *testing.T) {
	cli, env := setup(t)
	testutil.CreateProfile(t, env.ProfileRepo, "taken@test.cd", "Taken", "Coach", authz.RoleCoach, "", true)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "missing names", args: []string{"addprofile", "-email", "new@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"addprofile", "-email", "new@test.cd", "-first", "Nia", "-last", "Ngoy"}, wantErr: errHelp},
		{
			name: "email taken", args: []string{"addprofile", "-email", "taken@test.cd", "-first", "Nia", "-last", "Ngoy"},
			extra: "L0ng&Unguessable", wantKind: core.KindValidation,
		},
		{
			name: "unknown role", args: []string{"addprofile", "-email", "new@test.cd", "-first", "Nia", "-last", "Ngoy", "-role", "admin"},
			extra: "L0ng&Unguessable", wantKind: core.KindValidation,
		},
		{
			name: "coach", args: []string{"addprofile", "-email", "new@test.cd", "-first", "Nia", "-last", "Ngoy"},
			extra: "L0ng&Unguessable",
		},
		{
			name: "student", args: []string{"addprofile", "-email", "kid@test.cd", "-first", "Kid", "-last", "Ngoy", "-role", "student"},
			extra: "L0ng&Unguessable",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	p, err := env.Profiles.GetByEmail(context.Background(), "kid@test.cd")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleStudent, p.Role)
	assert.True(t, p.IsActive)
	assert.NoError(t, p.CheckPassword("L0ng&Unguessable"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	p := testutil.CreateProfile(t, env.ProfileRepo, "awe@test.cd", "Awe", "Some", authz.RoleCoach, "0ld&Unguessable", true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "awe@test.cd"}, wantErr: errHelp},
		{name: "profile not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: "N3w&Unguessable", wantKind: core.KindNotFound},
		{name: "weak password", args: []string{"resetpassword", "-email", "awe@test.cd"}, extra: "password", wantKind: core.KindValidation},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: "N3w&Unguessable"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		pwd, _ := tt.extra.(string)
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	refreshed, err := env.ProfileRepo.GetProfileByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, p.PasswordHash, refreshed.PasswordHash)
	assert.NoError(t, refreshed.CheckPassword("N3w&Unguessable"))
}

func Test_commandLine_setActive(t *testing.T) {
	cli, env := setup(t)
	testutil.CreateProfile(t, env.ProfileRepo, "awe@test.cd", "Awe", "Some", authz.RoleCoach, "", true)

	tests := []cliTest{
		{name: "no args", args: []string{"setactive"}, wantErr: errHelp},
		{name: "profile not found", args: []string{"setactive", "-email", "lol@test.cd"}, wantKind: core.KindNotFound},
		{name: "deactivate", args: []string{"setactive", "-email", "awe@test.cd", "-active=false"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	p, err := env.Profiles.GetByEmail(context.Background(), "awe@test.cd")
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}

func Test_commandLine_reminders(t *testing.T) {
	cli, env := setup(t)
	coach := env.Coach(t, "coach@test.cd")
	stud := env.Student(t, "student@test.cd", coach.ID)
	testutil.CreateAssignment(t, env.AssignmentRepo, coach.ID, stud.ID, "Essay", time.Now().Add(2*time.Hour), assignment.StatusPending)

	tests := []cliTest{
		{name: "no action", args: []string{"reminders"}, wantErr: errHelp},
		{name: "unknown action", args: []string{"reminders", "lol"}, wantErr: errHelp},
		{name: "generate", args: []string{"reminders", "generate"}},
		{name: "generate again", args: []string{"reminders", "generate"}},
		{name: "dispatch", args: []string{"reminders", "dispatch"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	out := cli.out.(*bytes.Buffer).String()
	assert.Contains(t, out, "1 due assignments: 2 reminders created, 0 refreshed")
	assert.Contains(t, out, "1 due assignments: 0 reminders created, 2 refreshed")
	assert.Contains(t, out, "2 reminders sent")
	assert.Len(t, emailsvc.SentMessages, 2)
}
