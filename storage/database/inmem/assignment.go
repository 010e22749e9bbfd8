package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = uuid.New().String()
	if a.Version == 0 {
		a.Version = 1
	}
	repo.db.assignments[a.ID] = a
	repo.db.insert(a.ID)
	repo.db.journal(exec, func() { delete(repo.db.assignments, a.ID) })
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string, _ ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

// filter returns the IDs of the assignments matching f. db.mu must be held.
func (repo *assignmentRepository) filter(f assignment.QueryFilter) []string {
	ids := make([]string, 0)
	for id, a := range repo.db.assignments {
		if f.CoachID != "" && a.CoachID != f.CoachID {
			continue
		}
		if f.StudentID != "" && a.StudentID != f.StudentID {
			continue
		}
		if len(f.Statuses) > 0 && !hasStatus(f.Statuses, a.Status) {
			continue
		}
		if f.Subject != "" && !strings.EqualFold(a.Subject, f.Subject) {
			continue
		}
		if !f.DueFrom.IsZero() && a.DueDate.Before(f.DueFrom) {
			continue
		}
		if !f.DueTo.IsZero() && a.DueDate.After(f.DueTo) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (repo *assignmentRepository) QueryAssignments(
	_ context.Context,
	filter assignment.QueryFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := repo.filter(filter)
	sortRows(ids, repo.db.order, ordering, func(id, name string) interface{} {
		a := repo.db.assignments[id]
		switch name {
		case "due_date":
			return a.DueDate
		case "created_at":
			return a.CreatedAt
		case "updated_at":
			return a.UpdatedAt
		case "title":
			return a.Title
		case "priority":
			return string(a.Priority)
		case "status":
			return string(a.Status)
		}
		return nil
	}, true)

	as := make([]assignment.Assignment, 0, len(ids))
	for _, id := range ids {
		as = append(as, repo.db.assignments[id])
	}
	return as, nil
}

func (repo *assignmentRepository) CountAssignmentsByStatus(
	_ context.Context,
	filter assignment.QueryFilter,
	_ ...core.DBExecutor,
) (map[assignment.Status]int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	counts := make(map[assignment.Status]int)
	for _, id := range repo.filter(filter) {
		counts[repo.db.assignments[id].Status]++
	}
	return counts, nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if orig.Version != a.Version {
		return assignment.Assignment{}, assignment.ErrVersionConflict
	}
	// immutable fields
	a.CoachID = orig.CoachID
	a.StudentID = orig.StudentID
	a.CreatedAt = orig.CreatedAt
	a.Version++

	repo.db.assignments[a.ID] = a
	repo.db.journal(exec, func() { repo.db.assignments[orig.ID] = orig })
	return a, nil
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[s.AssignmentID]; !ok {
		return assignment.Submission{}, assignment.ErrNotFound
	}
	s.ID = uuid.New().String()
	s.AttachmentURLs = copyStrings(s.AttachmentURLs)
	repo.db.submissions[s.ID] = s
	repo.db.insert(s.ID)
	repo.db.journal(exec, func() { delete(repo.db.submissions, s.ID) })
	return s, nil
}

func (repo *assignmentRepository) GetSubmission(_ context.Context, id string, _ ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		s.AttachmentURLs = copyStrings(s.AttachmentURLs)
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make([]string, 0)
	for id, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID {
			ids = append(ids, id)
		}
	}
	newestFirst := []core.DBOrdering{{Field: "submitted_at"}}
	sortRows(ids, repo.db.order, newestFirst, func(id, _ string) interface{} {
		return repo.db.submissions[id].SubmittedAt
	}, false)

	subs := make([]assignment.Submission, 0, len(ids))
	for _, id := range ids {
		s := repo.db.submissions[id]
		s.AttachmentURLs = copyStrings(s.AttachmentURLs)
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo *assignmentRepository) CreateReview(_ context.Context, r assignment.Review, exec ...core.DBExecutor) (assignment.Review, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.submissions[r.SubmissionID]; !ok {
		return assignment.Review{}, assignment.ErrSubmissionNotFound
	}
	r.ID = uuid.New().String()
	repo.db.reviews[r.ID] = r
	repo.db.insert(r.ID)
	repo.db.journal(exec, func() { delete(repo.db.reviews, r.ID) })
	return r, nil
}

func (repo *assignmentRepository) QueryReviews(_ context.Context, assignmentID string, _ ...core.DBExecutor) ([]assignment.Review, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make([]string, 0)
	for id, r := range repo.db.reviews {
		if r.AssignmentID == assignmentID {
			ids = append(ids, id)
		}
	}
	newestFirst := []core.DBOrdering{{Field: "reviewed_at"}}
	sortRows(ids, repo.db.order, newestFirst, func(id, _ string) interface{} {
		return repo.db.reviews[id].ReviewedAt
	}, false)

	revs := make([]assignment.Review, 0, len(ids))
	for _, id := range ids {
		revs = append(revs, repo.db.reviews[id])
	}
	return revs, nil
}

func hasStatus(statuses []assignment.Status, s assignment.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
