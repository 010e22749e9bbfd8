package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

// withProfile fills the profile fields of s. db.mu must be held.
func (repo *studentRepository) withProfile(s student.Student) student.Student {
	p := repo.db.profiles[s.ID]
	s.Email = p.Email
	s.FirstName = p.FirstName
	s.LastName = p.LastName
	s.Subjects = copyStrings(s.Subjects)
	return s
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return repo.withProfile(s), nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) SaveStudent(_ context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.profiles[s.ID]; !ok {
		return student.Student{}, profile.ErrNotFound
	}

	orig, existed := repo.db.students[s.ID]
	if existed {
		s.CreatedAt = orig.CreatedAt
	} else {
		repo.db.insert(s.ID)
	}
	s.Email, s.FirstName, s.LastName = "", "", ""
	s.Subjects = copyStrings(s.Subjects)
	repo.db.students[s.ID] = s

	repo.db.journal(exec, func() {
		if existed {
			repo.db.students[orig.ID] = orig
		} else {
			delete(repo.db.students, s.ID)
		}
	})
	return repo.withProfile(s), nil
}

func (repo *studentRepository) QueryStudents(
	_ context.Context,
	filter student.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	rows := make(map[string]student.Student)
	ids := make([]string, 0)
	for id, s := range repo.db.students {
		s = repo.withProfile(s)
		if filter.CoachID != "" && s.CoachID != filter.CoachID {
			continue
		}
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.FirstName), search) &&
			!strings.Contains(strings.ToLower(s.LastName), search) &&
			!strings.Contains(s.Email, search) {
			continue
		}
		rows[id] = s
		ids = append(ids, id)
	}

	sortRows(ids, repo.db.order, ordering, func(id, name string) interface{} {
		s := rows[id]
		switch name {
		case "first_name":
			return s.FirstName
		case "last_name":
			return s.LastName
		case "email":
			return s.Email
		case "enrollment_date":
			return s.EnrollmentDate
		case "created_at":
			return s.CreatedAt
		}
		return nil
	}, true)

	students := make([]student.Student, 0, len(ids))
	for _, id := range ids {
		students = append(students, rows[id])
	}
	return students, nil
}
