package profile

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
)

var (
	// errors
	ErrNotFound             = errors.New("profile not found")
	ErrEmailExists          = errors.New("a profile with this email already exists")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
		GetProfileByID(ctx context.Context, id string, exec ...core.DBExecutor) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (Profile, error)
		// UpdateProfile saves every mutable field of p; ID, Email, Role and CreatedAt are left untouched.
		UpdateProfile(ctx context.Context, p Profile, exec ...core.DBExecutor) (Profile, error)
	}

	Service struct {
		repo     Repository
		validate *core.Validator
	}
)

func NewService(repo Repository, validate *core.Validator) *Service {
	return &Service{repo: repo, validate: validate}
}

// Register creates a new active profile.
func (svc *Service) Register(ctx context.Context, np NewProfile) (Profile, error) {
	np.Clean()
	if err := svc.validate.Struct(np); err != nil {
		return Profile{}, err
	}

	now := core.Now()
	p := Profile{
		Email:     np.Email,
		FirstName: np.FirstName,
		LastName:  np.LastName,
		Role:      np.Role,
		Phone:     np.Phone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.SetPassword(np.Password); err != nil {
		return Profile{}, err
	}

	p, err := svc.repo.CreateProfile(ctx, p)
	if errors.Cause(err) == ErrEmailExists {
		return Profile{}, core.NewFieldError("email", err.Error())
	}
	return p, core.RepoError(err, "creating profile", nil, "")
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Profile, error) {
	if err := svc.validate.Struct(creds); err != nil {
		return Profile{}, err
	}

	p, err := svc.repo.GetProfileByEmail(ctx, core.CleanString(creds.Email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Profile{}, ErrAuthenticationFailed
		}
		return Profile{}, core.RepoError(err, "finding profile by email", nil, "")
	}
	if err = p.CheckPassword(creds.Password); err != nil {
		return Profile{}, ErrAuthenticationFailed
	}
	if !p.IsActive {
		return Profile{}, ErrAccountDeactivated
	}

	now := core.Now()
	p.LastLogin = &now
	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, core.RepoError(err, "setting last login", ErrNotFound, "profile")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Profile, error) {
	p, err := svc.repo.GetProfileByID(ctx, id)
	return p, core.RepoError(err, "getting profile", ErrNotFound, "profile")
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	p, err := svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
	return p, core.RepoError(err, "getting profile by email", ErrNotFound, "profile")
}

// Me returns the profile of the acting identity.
func (svc *Service) Me(ctx context.Context, actor authz.Identity) (Profile, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Profile{}, err
	}
	return svc.GetByID(ctx, actor.ID)
}

// Update modifies the acting identity's own profile.
func (svc *Service) Update(ctx context.Context, actor authz.Identity, up UpdateProfile) (Profile, error) {
	p, err := svc.Me(ctx, actor)
	if err != nil {
		return Profile{}, err
	}

	up.Clean()
	if err = svc.validate.Struct(up); err != nil {
		return Profile{}, err
	}
	up.Apply(&p)
	p.UpdatedAt = core.Now()

	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, core.RepoError(err, "updating profile", ErrNotFound, "profile")
}

// SetPassword replaces the password of the profile identified by email, enforcing the password policy.
func (svc *Service) SetPassword(ctx context.Context, email string, cp ChangePassword) (Profile, error) {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}

	cp.profile = p
	if err = svc.validate.Struct(cp); err != nil {
		return Profile{}, err
	}
	if err = p.SetPassword(cp.Password); err != nil {
		return Profile{}, err
	}
	p.UpdatedAt = core.Now()

	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, core.RepoError(err, "setting password", ErrNotFound, "profile")
}

// SetActive activates or deactivates the profile identified by email.
func (svc *Service) SetActive(ctx context.Context, email string, active bool) (Profile, error) {
	p, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return Profile{}, err
	}
	p.IsActive = active
	p.UpdatedAt = core.Now()

	p, err = svc.repo.UpdateProfile(ctx, p)
	return p, core.RepoError(err, "setting active", ErrNotFound, "profile")
}
