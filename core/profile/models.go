package profile

import (
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
)

type Profile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Role         authz.Role `json:"role"` // immutable
	Phone        string     `json:"phone,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	IsActive     bool       `json:"is_active"`
	PasswordHash []byte     `json:"-"`
	LastLogin    *time.Time `json:"last_login,omitempty"` // UTC
	CreatedAt    time.Time  `json:"created_at"`           // UTC
	UpdatedAt    time.Time  `json:"updated_at"`           // UTC
}

func (p *Profile) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.PasswordHash = hash
	return nil
}

func (p *Profile) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(pwd))
}

func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p Profile) Address() mail.Address {
	return mail.Address{Name: p.FullName(), Address: p.Email}
}

func (p Profile) Identity() authz.Identity {
	return authz.Identity{ID: p.ID, Role: p.Role}
}

// NewProfile contains information needed to register a new Profile.
type NewProfile struct {
	Email           string     `json:"email" validate:"required,email,max=254"`
	FirstName       string     `json:"first_name" validate:"required,notblank,max=100"`
	LastName        string     `json:"last_name" validate:"required,notblank,max=100"`
	Role            authz.Role `json:"role" validate:"required,oneof=coach student"`
	Phone           string     `json:"phone" validate:"omitempty,max=30"`
	Password        string     `json:"password" validate:"required"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (np *NewProfile) Clean() {
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.FirstName = core.CleanString(np.FirstName)
	np.LastName = core.CleanString(np.LastName)
	np.Phone = core.CleanString(np.Phone)
}

// UpdateProfile defines what information may be provided to modify an existing Profile.
// The role and email cannot be changed.
type UpdateProfile struct {
	FirstName *string `json:"first_name" validate:"omitempty,notblank,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,notblank,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,absurl"`
}

func (up *UpdateProfile) Clean() {
	for _, s := range []*string{up.FirstName, up.LastName, up.Phone, up.AvatarURL} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
}

func (up UpdateProfile) Apply(p *Profile) {
	if up.FirstName != nil {
		p.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		p.LastName = *up.LastName
	}
	if up.Phone != nil {
		p.Phone = *up.Phone
	}
	if up.AvatarURL != nil {
		p.AvatarURL = *up.AvatarURL
	}
}

// ChangePassword is used to set a new password; the policy is checked against the profile attributes.
type ChangePassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	profile Profile
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
