package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
)

var (
	assignmentColumns = []string{
		"id", "title", "description", "subject", "coach_id", "student_id", "due_date", "priority", "status",
		"estimated_duration", "instructions", "max_score", "version", "created_at", "updated_at",
	}
	submissionColumns = []string{
		"id", "assignment_id", "student_id", "content", "attachment_urls", "notes", "is_final", "submitted_at",
	}
	reviewColumns = []string{
		"id", "assignment_id", "submission_id", "coach_id", "score", "feedback", "suggestions",
		"is_final_review", "reviewed_at",
	}

	assignmentOrderingColumns = map[string]string{
		"due_date":   "due_date",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"title":      "title",
		"priority":   "priority",
		"status":     "status",
	}
)

type (
	assignmentRow struct {
		ID                string      `db:"id"`
		Title             string      `db:"title"`
		Description       null.String `db:"description"`
		Subject           null.String `db:"subject"`
		CoachID           string      `db:"coach_id"`
		StudentID         string      `db:"student_id"`
		DueDate           time.Time   `db:"due_date"`
		Priority          string      `db:"priority"`
		Status            string      `db:"status"`
		EstimatedDuration null.Int    `db:"estimated_duration"`
		Instructions      null.String `db:"instructions"`
		MaxScore          int         `db:"max_score"`
		Version           int         `db:"version"`
		CreatedAt         time.Time   `db:"created_at"`
		UpdatedAt         time.Time   `db:"updated_at"`
	}

	submissionRow struct {
		ID             string         `db:"id"`
		AssignmentID   string         `db:"assignment_id"`
		StudentID      string         `db:"student_id"`
		Content        null.String    `db:"content"`
		AttachmentURLs pq.StringArray `db:"attachment_urls"`
		Notes          null.String    `db:"notes"`
		IsFinal        bool           `db:"is_final"`
		SubmittedAt    time.Time      `db:"submitted_at"`
	}

	reviewRow struct {
		ID            string      `db:"id"`
		AssignmentID  string      `db:"assignment_id"`
		SubmissionID  string      `db:"submission_id"`
		CoachID       string      `db:"coach_id"`
		Score         null.Int    `db:"score"`
		Feedback      null.String `db:"feedback"`
		Suggestions   null.String `db:"suggestions"`
		IsFinalReview bool        `db:"is_final_review"`
		ReviewedAt    time.Time   `db:"reviewed_at"`
	}

	statusCount struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
)

func (r assignmentRow) assignment() assignment.Assignment {
	return assignment.Assignment{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description.String,
		Subject:           r.Subject.String,
		CoachID:           r.CoachID,
		StudentID:         r.StudentID,
		DueDate:           r.DueDate.UTC(),
		Priority:          assignment.Priority(r.Priority),
		Status:            assignment.Status(r.Status),
		EstimatedDuration: r.EstimatedDuration.Ptr(),
		Instructions:      r.Instructions.String,
		MaxScore:          r.MaxScore,
		Version:           r.Version,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func (r submissionRow) submission() assignment.Submission {
	urls := []string(r.AttachmentURLs)
	if urls == nil {
		urls = []string{}
	}
	return assignment.Submission{
		ID:             r.ID,
		AssignmentID:   r.AssignmentID,
		StudentID:      r.StudentID,
		Content:        r.Content.String,
		AttachmentURLs: urls,
		Notes:          r.Notes.String,
		IsFinal:        r.IsFinal,
		SubmittedAt:    r.SubmittedAt.UTC(),
	}
}

func (r reviewRow) review() assignment.Review {
	return assignment.Review{
		ID:            r.ID,
		AssignmentID:  r.AssignmentID,
		SubmissionID:  r.SubmissionID,
		CoachID:       r.CoachID,
		Score:         r.Score.Ptr(),
		Feedback:      r.Feedback.String,
		Suggestions:   r.Suggestions.String,
		IsFinalReview: r.IsFinalReview,
		ReviewedAt:    r.ReviewedAt.UTC(),
	}
}

type assignmentRepository struct {
	repository
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{repository{db: db}}
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	a.ID = uuid.New().String()
	if a.Version == 0 {
		a.Version = 1
	}
	q := psql.Insert("assignments").
		Columns(assignmentColumns...).
		Values(
			a.ID, a.Title,
			null.NewString(a.Description, a.Description != ""),
			null.NewString(a.Subject, a.Subject != ""),
			a.CoachID, a.StudentID, a.DueDate, string(a.Priority), string(a.Status),
			null.IntFromPtr(a.EstimatedDuration),
			null.NewString(a.Instructions, a.Instructions != ""),
			a.MaxScore, a.Version, a.CreatedAt, a.UpdatedAt,
		).
		Suffix("RETURNING " + columns("", assignmentColumns...))

	var row assignmentRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.assignment(), nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	q := psql.Select(assignmentColumns...).From("assignments").Where(sq.Eq{"id": id})

	var row assignmentRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if isNoRows(err) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return row.assignment(), nil
}

// where renders the conditions of filter; ok is false when no row can match.
func (repo assignmentRepository) where(filter assignment.QueryFilter) (cond sq.And, ok bool) {
	cond = sq.And{}
	for _, eq := range [][2]string{{"coach_id", filter.CoachID}, {"student_id", filter.StudentID}} {
		col, id := eq[0], eq[1]
		if id == "" {
			continue
		}
		if !validID(id) {
			return nil, false
		}
		cond = append(cond, sq.Eq{col: id})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		cond = append(cond, sq.Eq{"status": statuses})
	}
	if filter.Subject != "" {
		cond = append(cond, sq.ILike{"subject": filter.Subject})
	}
	if !filter.DueFrom.IsZero() {
		cond = append(cond, sq.GtOrEq{"due_date": filter.DueFrom.UTC()})
	}
	if !filter.DueTo.IsZero() {
		cond = append(cond, sq.LtOrEq{"due_date": filter.DueTo.UTC()})
	}
	return cond, true
}

func (repo assignmentRepository) QueryAssignments(
	ctx context.Context,
	filter assignment.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]assignment.Assignment, error) {
	cond, ok := repo.where(filter)
	if !ok {
		return []assignment.Assignment{}, nil
	}
	q := psql.Select(assignmentColumns...).
		From("assignments").
		Where(cond).
		OrderBy(append(orderBy(ordering, assignmentOrderingColumns), "created_at")...)

	var rows []assignmentRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	as := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.assignment())
	}
	return as, nil
}

func (repo assignmentRepository) CountAssignmentsByStatus(
	ctx context.Context,
	filter assignment.QueryFilter,
	exec ...core.DBExecutor,
) (map[assignment.Status]int, error) {
	counts := make(map[assignment.Status]int)
	cond, ok := repo.where(filter)
	if !ok {
		return counts, nil
	}
	q := psql.Select("status", "COUNT(*) AS count").From("assignments").Where(cond).GroupBy("status")

	var rows []statusCount
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "counting assignments")
	}
	for _, r := range rows {
		counts[assignment.Status(r.Status)] = r.Count
	}
	return counts, nil
}

// UpdateAssignment only writes when the stored version still equals a.Version.
func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	if !validID(a.ID) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	exe := repo.getExec(exec)
	q := psql.Update("assignments").
		SetMap(map[string]interface{}{
			"title":              a.Title,
			"description":        null.NewString(a.Description, a.Description != ""),
			"subject":            null.NewString(a.Subject, a.Subject != ""),
			"due_date":           a.DueDate,
			"priority":           string(a.Priority),
			"status":             string(a.Status),
			"estimated_duration": null.IntFromPtr(a.EstimatedDuration),
			"instructions":       null.NewString(a.Instructions, a.Instructions != ""),
			"max_score":          a.MaxScore,
			"version":            sq.Expr("version + 1"),
			"updated_at":         a.UpdatedAt,
		}).
		Where(sq.Eq{"id": a.ID, "version": a.Version}).
		Suffix("RETURNING " + columns("", assignmentColumns...))

	var row assignmentRow
	err := getRow(ctx, exe, &row, q)
	if err == nil {
		return row.assignment(), nil
	}
	if !isNoRows(err) {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}

	// no row updated: tell a stale version from a missing assignment
	if _, err = repo.GetAssignment(ctx, a.ID, exec...); err != nil {
		return assignment.Assignment{}, err
	}
	return assignment.Assignment{}, assignment.ErrVersionConflict
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	s.ID = uuid.New().String()
	urls := s.AttachmentURLs
	if urls == nil {
		urls = []string{}
	}
	q := psql.Insert("assignment_submissions").
		Columns(submissionColumns...).
		Values(
			s.ID, s.AssignmentID, s.StudentID,
			null.NewString(s.Content, s.Content != ""),
			pq.StringArray(urls),
			null.NewString(s.Notes, s.Notes != ""),
			s.IsFinal, s.SubmittedAt,
		).
		Suffix("RETURNING " + columns("", submissionColumns...))

	var row submissionRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return assignment.Submission{}, assignment.ErrNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Submission, error) {
	if !validID(id) {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	q := psql.Select(submissionColumns...).From("assignment_submissions").Where(sq.Eq{"id": id})

	var row submissionRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if isNoRows(err) {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission")
	}
	return row.submission(), nil
}

func (repo assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	if !validID(assignmentID) {
		return []assignment.Submission{}, nil
	}
	q := psql.Select(submissionColumns...).
		From("assignment_submissions").
		Where(sq.Eq{"assignment_id": assignmentID}).
		OrderBy("submitted_at DESC")

	var rows []submissionRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.submission())
	}
	return subs, nil
}

func (repo assignmentRepository) CreateReview(ctx context.Context, r assignment.Review, exec ...core.DBExecutor) (assignment.Review, error) {
	r.ID = uuid.New().String()
	q := psql.Insert("assignment_reviews").
		Columns(reviewColumns...).
		Values(
			r.ID, r.AssignmentID, r.SubmissionID, r.CoachID,
			null.IntFromPtr(r.Score),
			null.NewString(r.Feedback, r.Feedback != ""),
			null.NewString(r.Suggestions, r.Suggestions != ""),
			r.IsFinalReview, r.ReviewedAt,
		).
		Suffix("RETURNING " + columns("", reviewColumns...))

	var row reviewRow
	if err := getRow(ctx, repo.getExec(exec), &row, q); err != nil {
		if pqCode(err) == foreignKeyViolation {
			return assignment.Review{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Review{}, errors.Wrap(err, "inserting review")
	}
	return row.review(), nil
}

func (repo assignmentRepository) QueryReviews(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Review, error) {
	if !validID(assignmentID) {
		return []assignment.Review{}, nil
	}
	q := psql.Select(reviewColumns...).
		From("assignment_reviews").
		Where(sq.Eq{"assignment_id": assignmentID}).
		OrderBy("reviewed_at DESC")

	var rows []reviewRow
	if err := selectRows(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	revs := make([]assignment.Review, 0, len(rows))
	for _, r := range rows {
		revs = append(revs, r.review())
	}
	return revs, nil
}
