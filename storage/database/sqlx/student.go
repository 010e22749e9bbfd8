package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/profile"
	"github.com/trezcool/coachdesk/core/student"
)

var (
	studentColumns = []string{
		"id", "coach_id", "grade_level", "school_name", "subjects", "goals", "parent_email", "parent_phone",
		"enrollment_date", "is_active", "created_at", "updated_at",
	}

	studentOrderingColumns = map[string]string{
		"first_name":      "p.first_name",
		"last_name":       "p.last_name",
		"email":           "p.email",
		"enrollment_date": "s.enrollment_date",
		"created_at":      "s.created_at",
	}
)

type studentRow struct {
	ID             string         `db:"id"`
	CoachID        null.String    `db:"coach_id"`
	Email          string         `db:"email"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	GradeLevel     null.String    `db:"grade_level"`
	SchoolName     null.String    `db:"school_name"`
	Subjects       pq.StringArray `db:"subjects"`
	Goals          null.String    `db:"goals"`
	ParentEmail    null.String    `db:"parent_email"`
	ParentPhone    null.String    `db:"parent_phone"`
	EnrollmentDate time.Time      `db:"enrollment_date"`
	IsActive       bool           `db:"is_active"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r studentRow) student() student.Student {
	subjects := []string(r.Subjects)
	if subjects == nil {
		subjects = []string{}
	}
	return student.Student{
		ID:             r.ID,
		CoachID:        r.CoachID.String,
		Email:          r.Email,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		GradeLevel:     r.GradeLevel.String,
		SchoolName:     r.SchoolName.String,
		Subjects:       subjects,
		Goals:          r.Goals.String,
		ParentEmail:    r.ParentEmail.String,
		ParentPhone:    r.ParentPhone.String,
		EnrollmentDate: r.EnrollmentDate.UTC(),
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{repository{db: db}}
}

// selectStudents joins the students with their profiles.
func (repo studentRepository) selectStudents() sq.SelectBuilder {
	return psql.Select(columns("s", studentColumns...), "p.email", "p.first_name", "p.last_name").
		From("students s").
		Join("profiles p ON p.id = s.id")
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if !validID(id) {
		return student.Student{}, student.ErrNotFound
	}

	var row studentRow
	if err := getRow(ctx, repo.getExec(exec), &row, repo.selectStudents().Where(sq.Eq{"s.id": id})); err != nil {
		if isNoRows(err) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) SaveStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if !validID(s.ID) {
		return student.Student{}, profile.ErrNotFound
	}
	subjects := s.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	q := psql.Insert("students").
		Columns(studentColumns...).
		Values(
			s.ID, null.NewString(s.CoachID, s.CoachID != ""),
			null.NewString(s.GradeLevel, s.GradeLevel != ""),
			null.NewString(s.SchoolName, s.SchoolName != ""),
			pq.StringArray(subjects),
			null.NewString(s.Goals, s.Goals != ""),
			null.NewString(s.ParentEmail, s.ParentEmail != ""),
			null.NewString(s.ParentPhone, s.ParentPhone != ""),
			s.EnrollmentDate, s.IsActive, s.CreatedAt, s.UpdatedAt,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			coach_id = EXCLUDED.coach_id,
			grade_level = EXCLUDED.grade_level,
			school_name = EXCLUDED.school_name,
			subjects = EXCLUDED.subjects,
			goals = EXCLUDED.goals,
			parent_email = EXCLUDED.parent_email,
			parent_phone = EXCLUDED.parent_phone,
			enrollment_date = EXCLUDED.enrollment_date,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`)

	exe := repo.getExec(exec)
	if _, err := execute(ctx, exe, q); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return student.Student{}, profile.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "saving student")
	}
	return repo.GetStudent(ctx, s.ID, exec...)
}

func (repo studentRepository) QueryStudents(
	ctx context.Context,
	filter student.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]student.Student, error) {
	q := repo.selectStudents()
	if filter.CoachID != "" {
		if !validID(filter.CoachID) {
			return []student.Student{}, nil
		}
		q = q.Where(sq.Eq{"s.coach_id": filter.CoachID})
	}
	// students with first name, last name or email matching the search keyword
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		q = q.Where(sq.Or{
			sq.ILike{"p.first_name": val},
			sq.ILike{"p.last_name": val},
			sq.ILike{"p.email": val},
		})
	}
	if filter.IsActive != nil {
		q = q.Where(sq.Eq{"s.is_active": *filter.IsActive})
	}
	q = q.OrderBy(append(orderBy(ordering, studentOrderingColumns), "s.created_at DESC")...)

	var rows []studentRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}
