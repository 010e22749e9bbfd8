package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
)

type profileRepository struct {
	db *DB
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(_ context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, other := range repo.db.profiles {
		if other.Email == p.Email {
			return profile.Profile{}, profile.ErrEmailExists
		}
	}

	p.ID = uuid.New().String()
	repo.db.profiles[p.ID] = p
	repo.db.insert(p.ID)
	repo.db.journal(exec, func() { delete(repo.db.profiles, p.ID) })
	return p, nil
}

func (repo *profileRepository) GetProfileByID(_ context.Context, id string, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.profiles[id]; ok {
		return p, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetProfileByEmail(_ context.Context, email string, _ ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) UpdateProfile(_ context.Context, p profile.Profile, exec ...core.DBExecutor) (profile.Profile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.profiles[p.ID]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	// immutable fields
	p.Email = orig.Email
	p.Role = orig.Role
	p.CreatedAt = orig.CreatedAt

	repo.db.profiles[p.ID] = p
	repo.db.journal(exec, func() { repo.db.profiles[orig.ID] = orig })
	return p, nil
}
