package student

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/profile"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")

	errNoStudentProfile = "no student profile is registered with this email"
	errHasAnotherCoach  = "this student is already coached by someone else"
)

type (
	Repository interface {
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// SaveStudent creates or replaces the student row of s.ID.
		SaveStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		QueryStudents(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
	}

	Service struct {
		repo     Repository
		profiles profile.Repository
		validate *core.Validator
	}
)

func NewService(repo Repository, profiles profile.Repository, validate *core.Validator) *Service {
	return &Service{repo: repo, profiles: profiles, validate: validate}
}

// Add links the student profile registered with ns.Email to the acting coach.
// A student has at most one active coach at a time.
func (svc *Service) Add(ctx context.Context, actor authz.Identity, ns NewStudent) (Student, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Student{}, err
	}
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Student{}, err
	}

	p, err := svc.profiles.GetProfileByEmail(ctx, ns.Email)
	if err != nil {
		if errors.Cause(err) == profile.ErrNotFound {
			return Student{}, core.NewFieldError("email", errNoStudentProfile)
		}
		return Student{}, core.RepoError(err, "finding profile by email", nil, "")
	}
	if p.Role != authz.RoleStudent {
		return Student{}, core.NewFieldError("email", errNoStudentProfile)
	}

	now := core.Now()
	s, err := svc.repo.GetStudent(ctx, p.ID)
	switch errors.Cause(err) {
	case nil:
		if s.IsActive && s.CoachID != "" && s.CoachID != actor.ID {
			return Student{}, core.NewFieldError("email", errHasAnotherCoach)
		}
		if s.CoachID != actor.ID {
			s.EnrollmentDate = now
		}
	case ErrNotFound:
		s = Student{ID: p.ID, EnrollmentDate: now, CreatedAt: now}
	default:
		return Student{}, core.RepoError(err, "getting student", nil, "")
	}

	s.CoachID = actor.ID
	s.GradeLevel = ns.GradeLevel
	s.SchoolName = ns.SchoolName
	s.Subjects = ns.Subjects
	if s.Subjects == nil {
		s.Subjects = []string{}
	}
	s.Goals = ns.Goals
	s.ParentEmail = ns.ParentEmail
	s.ParentPhone = ns.ParentPhone
	s.IsActive = true
	s.UpdatedAt = now

	s, err = svc.repo.SaveStudent(ctx, s)
	return s, core.RepoError(err, "saving student", nil, "")
}

// List returns the acting coach's students.
func (svc *Service) List(ctx context.Context, actor authz.Identity, filter QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return nil, err
	}
	filter.Clean()
	filter.CoachID = actor.ID

	students, err := svc.repo.QueryStudents(ctx, filter, core.AllowedOrderings(ordering, OrderingFields...))
	return students, core.RepoError(err, "querying students", nil, "")
}

// Get returns a student visible to the actor: the student themselves or their coach.
func (svc *Service) Get(ctx context.Context, actor authz.Identity, id string) (Student, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, core.RepoError(err, "getting student", ErrNotFound, "student")
	}
	if !(actor.Is(s.ID) || (actor.IsCoach() && actor.Is(s.CoachID))) {
		return Student{}, core.NewNotFoundError("student")
	}
	return s, nil
}

// SetActive activates or deactivates one of the acting coach's students.
func (svc *Service) SetActive(ctx context.Context, actor authz.Identity, id string, active bool) (Student, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Student{}, err
	}
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, core.RepoError(err, "getting student", ErrNotFound, "student")
	}
	if s.CoachID != actor.ID {
		return Student{}, core.NewNotFoundError("student")
	}

	s.IsActive = active
	s.UpdatedAt = core.Now()
	s, err = svc.repo.SaveStudent(ctx, s)
	return s, core.RepoError(err, "saving student", nil, "")
}

// IsCoachOf reports whether studentID is an active student of coachID.
func (svc *Service) IsCoachOf(ctx context.Context, coachID, studentID string) (bool, error) {
	s, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, core.RepoError(err, "getting student", nil, "")
	}
	return s.IsActive && s.CoachID == coachID, nil
}
