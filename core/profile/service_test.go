package profile_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/tests"
)

var ctx = context.Background()

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	profile.LoadCommonPasswords(env.Logger)
	testutil.CreateProfile(t, env.ProfileRepo, "taken@test.cd", "Taken", "Email", authz.RoleCoach, "", true)

	valid := func() profile.NewProfile {
		return profile.NewProfile{
			Email:           "  New.Coach@Test.cd ",
			FirstName:       "New",
			LastName:        "Coach",
			Role:            authz.RoleCoach,
			Password:        "L0ng&Unguessable",
			PasswordConfirm: "L0ng&Unguessable",
		}
	}

	tests := []struct {
		name      string
		mutate    func(np *profile.NewProfile)
		wantField string
	}{
		{name: "valid", mutate: func(*profile.NewProfile) {}},
		{name: "bad email", mutate: func(np *profile.NewProfile) { np.Email = "new.coach" }, wantField: "email"},
		{name: "taken email", mutate: func(np *profile.NewProfile) { np.Email = "TAKEN@test.cd" }, wantField: "email"},
		{name: "blank name", mutate: func(np *profile.NewProfile) { np.FirstName = "   " }, wantField: "first_name"},
		{name: "unknown role", mutate: func(np *profile.NewProfile) { np.Role = "admin" }, wantField: "role"},
		{name: "passwords differ", mutate: func(np *profile.NewProfile) { np.PasswordConfirm = "L0ng&Unguessable!" }, wantField: "password_confirm"},
		{name: "short password", mutate: func(np *profile.NewProfile) { np.Password, np.PasswordConfirm = "Sh0r&", "Sh0r&" }, wantField: "password"},
		{name: "simple password", mutate: func(np *profile.NewProfile) { np.Password, np.PasswordConfirm = "longpassword", "longpassword" }, wantField: "password"},
		{
			name:      "password like the email",
			mutate:    func(np *profile.NewProfile) { np.Email, np.Password, np.PasswordConfirm = "pat@test.cd", "Pat@test.cd1", "Pat@test.cd1" },
			wantField: "password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			np := valid()
			tt.mutate(&np)

			p, err := env.Profiles.Register(ctx, np)
			if tt.wantField != "" {
				require.Error(t, err)
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "want *core.ValidationError, got %v", err)
				assert.Contains(t, vErr.FieldMap(), tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "new.coach@test.cd", p.Email)
			assert.Equal(t, authz.RoleCoach, p.Role)
			assert.True(t, p.IsActive)
			assert.NoError(t, p.CheckPassword("L0ng&Unguessable"))
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	pwd := "L0ng&Unguessable"
	testutil.CreateProfile(t, env.ProfileRepo, "active@test.cd", "Active", "Coach", authz.RoleCoach, pwd, true)
	testutil.CreateProfile(t, env.ProfileRepo, "inactive@test.cd", "Inactive", "Coach", authz.RoleCoach, pwd, false)

	tests := []struct {
		name    string
		creds   profile.Credentials
		wantErr error
	}{
		{name: "unknown email", creds: profile.Credentials{Email: "ghost@test.cd", Password: pwd}, wantErr: profile.ErrAuthenticationFailed},
		{name: "wrong password", creds: profile.Credentials{Email: "active@test.cd", Password: "nope"}, wantErr: profile.ErrAuthenticationFailed},
		{name: "deactivated", creds: profile.Credentials{Email: "inactive@test.cd", Password: pwd}, wantErr: profile.ErrAccountDeactivated},
		{name: "valid", creds: profile.Credentials{Email: "Active@Test.cd", Password: pwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := env.Profiles.Authenticate(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p.LastLogin)
		})
	}
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv(t)
	coach := env.Coach(t, "coach@test.cd")
	first, avatar, badAvatar := "Carla", "https://cdn.test/c.png", "c.png"

	_, err := env.Profiles.Update(ctx, authz.Identity{}, profile.UpdateProfile{FirstName: &first})
	assert.Equal(t, core.KindAuthorization, core.ErrorKind(err))

	_, err = env.Profiles.Update(ctx, coach, profile.UpdateProfile{AvatarURL: &badAvatar})
	assert.Equal(t, core.KindValidation, core.ErrorKind(err))

	p, err := env.Profiles.Update(ctx, coach, profile.UpdateProfile{FirstName: &first, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Carla", p.FirstName)
	assert.Equal(t, avatar, p.AvatarURL)
	assert.Equal(t, "coach@test.cd", p.Email)
	assert.Equal(t, authz.RoleCoach, p.Role)
}

func TestService_SetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Coach(t, "coach@test.cd")

	_, err := env.Profiles.SetPassword(ctx, "ghost@test.cd", profile.ChangePassword{Password: "N3w&Secret", PasswordConfirm: "N3w&Secret"})
	assert.Equal(t, core.KindNotFound, core.ErrorKind(err))

	_, err = env.Profiles.SetPassword(ctx, "coach@test.cd", profile.ChangePassword{Password: "secret", PasswordConfirm: "secret"})
	assert.Equal(t, core.KindValidation, core.ErrorKind(err))

	p, err := env.Profiles.SetPassword(ctx, "coach@test.cd", profile.ChangePassword{Password: "N3w&Secret", PasswordConfirm: "N3w&Secret"})
	require.NoError(t, err)
	assert.NoError(t, p.CheckPassword("N3w&Secret"))
}
