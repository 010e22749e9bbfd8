package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

var profileColumns = []string{
	"id", "email", "first_name", "last_name", "role", "phone", "avatar_url",
	"password_hash", "is_active", "last_login", "created_at", "updated_at",
}

type profileRow struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	FirstName    string      `db:"first_name"`
	LastName     string      `db:"last_name"`
	Role         string      `db:"role"`
	Phone        null.String `db:"phone"`
	AvatarURL    null.String `db:"avatar_url"`
	PasswordHash null.Bytes  `db:"password_hash"`
	IsActive     bool        `db:"is_active"`
	LastLogin    null.Time   `db:"last_login"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

func (r profileRow) profile() profile.Profile {
	p := profile.Profile{
		ID:           r.ID,
		Email:        r.Email,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Role:         authz.Role(r.Role),
		Phone:        r.Phone.String,
		AvatarURL:    r.AvatarURL.String,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		t := r.LastLogin.Time.UTC()
		p.LastLogin = &t
	}
	return p
}

type profileRepository struct {
	repository
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{repository{db: db}}
}

// trapNoRowsErr maps psql "no rows" err to profile.ErrNotFound
func (repo profileRepository) trapNoRowsErr(err error, msg string) error {
	if isNoRows(err) {
		return profile.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo profileRepository) CreateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	p.ID = uuid.New().String()
	q := psql.Insert("profiles").
		Columns(profileColumns...).
		Values(
			p.ID, p.Email, p.FirstName, p.LastName, string(p.Role),
			null.NewString(p.Phone, p.Phone != ""),
			null.NewString(p.AvatarURL, p.AvatarURL != ""),
			null.NewBytes(p.PasswordHash, len(p.PasswordHash) > 0),
			p.IsActive, null.TimeFromPtr(p.LastLogin), p.CreatedAt, p.UpdatedAt,
		).
		Suffix("RETURNING " + columns("", profileColumns...))

	var row profileRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if pqCode(err) == uniqueViolation {
			return profile.Profile{}, profile.ErrEmailExists
		}
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return row.profile(), nil
}

func (repo profileRepository) getProfile(ctx context.Context, where sq.Eq, exec []core.DBExecutor) (profile.Profile, error) {
	q := psql.Select(profileColumns...).From("profiles").Where(where)

	var row profileRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		return profile.Profile{}, repo.trapNoRowsErr(err, "finding profile")
	}
	return row.profile(), nil
}

func (repo profileRepository) GetProfileByID(ctx context.Context, id string, exec ...core.DBExecutor) (profile.Profile, error) {
	if !validID(id) {
		return profile.Profile{}, profile.ErrNotFound
	}
	return repo.getProfile(ctx, sq.Eq{"id": id}, exec)
}

func (repo profileRepository) GetProfileByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (profile.Profile, error) {
	return repo.getProfile(ctx, sq.Eq{"email": email}, exec)
}

func (repo profileRepository) UpdateProfile(ctx context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	if !validID(p.ID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	q := psql.Update("profiles").
		SetMap(map[string]interface{}{
			"first_name":    p.FirstName,
			"last_name":     p.LastName,
			"phone":         null.NewString(p.Phone, p.Phone != ""),
			"avatar_url":    null.NewString(p.AvatarURL, p.AvatarURL != ""),
			"password_hash": null.NewBytes(p.PasswordHash, len(p.PasswordHash) > 0),
			"is_active":     p.IsActive,
			"last_login":    null.TimeFromPtr(p.LastLogin),
			"updated_at":    p.UpdatedAt,
		}).
		Where(sq.Eq{"id": p.ID}).
		Suffix("RETURNING " + columns("", profileColumns...))

	var row profileRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		return profile.Profile{}, repo.trapNoRowsErr(err, "updating profile")
	}
	return row.profile(), nil
}
