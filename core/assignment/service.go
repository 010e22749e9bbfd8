package assignment

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrVersionConflict    = errors.New("assignment was modified concurrently")

	errUnknownStudent    = "student is not one of your active students"
	errForeignSubmission = "submission does not belong to this assignment"
	errEmptyUpdate       = "nothing to update"

	defaultOrdering      = []core.DBOrdering{{Field: "due_date", Ascending: true}}
	activeStatuses       = []Status{StatusPending, StatusSubmitted, StatusReviewed}
	reminderableStatuses = []Status{StatusPending}
	overdueStatuses      = []Status{StatusPending}
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		// QueryAssignments applies AND operation on available QueryFilter fields.
		QueryAssignments(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Assignment, error)
		CountAssignmentsByStatus(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) (map[Status]int, error)
		// UpdateAssignment saves a only if the stored version still equals a.Version, returning ErrVersionConflict
		// otherwise. The saved version is a.Version + 1.
		UpdateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)

		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns the submissions of an assignment, most recent first.
		QuerySubmissions(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Submission, error)

		CreateReview(ctx context.Context, r Review, exec ...core.DBExecutor) (Review, error)
		// QueryReviews returns the reviews of an assignment, most recent first.
		QueryReviews(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]Review, error)
	}

	// Roster tells whether a student is coached by a coach.
	Roster interface {
		IsCoachOf(ctx context.Context, coachID, studentID string) (bool, error)
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		roster   Roster
		validate *core.Validator
		tracker  *core.Tracker
		grace    time.Duration
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	roster Roster,
	validate *core.Validator,
	tracker *core.Tracker,
	conf *core.Config,
) *Service {
	return &Service{
		tx:       tx,
		repo:     repo,
		roster:   roster,
		validate: validate,
		tracker:  tracker,
		grace:    conf.Assignment.DueDateGrace,
	}
}

// Create creates a pending assignment owned by the acting coach for one of their students.
func (svc *Service) Create(ctx context.Context, actor authz.Identity, na NewAssignment) (Assignment, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Assignment{}, err
	}

	now := core.Now()
	na.Clean()
	na.now, na.grace = now, svc.grace
	if err := svc.validate.Struct(na); err != nil {
		return Assignment{}, err
	}

	ok, err := svc.roster.IsCoachOf(ctx, actor.ID, na.StudentID)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "checking roster")
	}
	if !ok {
		return Assignment{}, core.NewFieldError("student_id", errUnknownStudent)
	}

	due, _ := parseDueDate(na.DueDate)
	a := Assignment{
		Title:             na.Title,
		Description:       na.Description,
		Subject:           na.Subject,
		CoachID:           actor.ID,
		StudentID:         na.StudentID,
		DueDate:           due,
		Priority:          na.Priority,
		Status:            StatusPending,
		EstimatedDuration: na.EstimatedDuration,
		Instructions:      na.Instructions,
		MaxScore:          na.MaxScore,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if a, err = svc.repo.CreateAssignment(ctx, a); err != nil {
		return Assignment{}, core.RepoError(err, "creating assignment", nil, "")
	}

	svc.tracker.Track(ctx, core.EventAssignmentCreated, map[string]string{
		"assignment_id": a.ID,
		"coach_id":      a.CoachID,
		"student_id":    a.StudentID,
		"priority":      string(a.Priority),
	})
	return a, nil
}

// Update modifies the mutable fields of one of the acting coach's assignments.
// An assignment the coach does not own is reported as not found.
func (svc *Service) Update(ctx context.Context, actor authz.Identity, id string, ua UpdateAssignment) (Assignment, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Assignment{}, err
	}
	a, err := svc.get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.CoachID != actor.ID {
		return Assignment{}, core.NewNotFoundError("assignment")
	}

	now := core.Now()
	ua.Clean()
	ua.now, ua.grace = now, svc.grace
	if err = svc.validate.Struct(ua); err != nil {
		return Assignment{}, err
	}
	if ua.IsEmpty() {
		return Assignment{}, core.NewValidationError(errors.New(errEmptyUpdate))
	}
	if ua.Version != nil && *ua.Version != a.Version {
		return Assignment{}, core.NewConflictError("assignment")
	}

	prevStatus := a.Status
	ua.apply(&a)
	if ua.Status != nil {
		if a.Status, err = svc.explicitStatus(a.Status, *ua.Status); err != nil {
			return Assignment{}, err
		}
	}
	a.UpdatedAt = now

	if a, err = svc.save(ctx, a); err != nil {
		return Assignment{}, err
	}

	svc.trackUpdate(ctx, a, prevStatus)
	return a, nil
}

// Submit records a submission of the target student and moves the assignment to submitted.
func (svc *Service) Submit(ctx context.Context, actor authz.Identity, id string, ns NewSubmission) (Submission, error) {
	if err := authz.Check(actor, authz.StudentOnly()); err != nil {
		return Submission{}, err
	}
	a, err := svc.get(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if err = authz.Check(actor, authz.TargetStudent(a.StudentID)); err != nil {
		return Submission{}, err
	}

	ns.Clean()
	if err = svc.validate.Struct(ns); err != nil {
		return Submission{}, err
	}
	next, err := Next(a.Status, TriggerSubmit)
	if err != nil {
		return Submission{}, core.NewFieldError("status", err.Error())
	}

	now := core.Now()
	sub := Submission{
		AssignmentID:   a.ID,
		StudentID:      actor.ID,
		Content:        ns.Content,
		AttachmentURLs: ns.AttachmentURLs,
		Notes:          ns.Notes,
		IsFinal:        ns.IsFinal == nil || *ns.IsFinal,
		SubmittedAt:    now,
	}
	if sub.AttachmentURLs == nil {
		sub.AttachmentURLs = []string{}
	}

	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var txErr error
		if sub, txErr = svc.repo.CreateSubmission(ctx, sub, exec); txErr != nil {
			return core.RepoError(txErr, "creating submission", nil, "")
		}
		a.Status = next
		a.UpdatedAt = now
		a, txErr = svc.save(ctx, a, exec)
		return txErr
	})
	if err != nil {
		return Submission{}, err
	}

	svc.tracker.Track(ctx, core.EventSubmissionCreated, map[string]string{
		"assignment_id": a.ID,
		"submission_id": sub.ID,
		"student_id":    sub.StudentID,
	})
	return sub, nil
}

// Review records the owning coach's review of a submission and moves the assignment to reviewed,
// whatever its current status.
func (svc *Service) Review(ctx context.Context, actor authz.Identity, id string, nr NewReview) (Review, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Review{}, err
	}
	a, err := svc.get(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if err = authz.Check(actor, authz.OwningCoach(a.CoachID)); err != nil {
		return Review{}, err
	}

	nr.Clean()
	if err = svc.validate.Struct(nr); err != nil {
		return Review{}, err
	}
	sub, err := svc.repo.GetSubmission(ctx, nr.SubmissionID)
	if err != nil {
		if errors.Cause(err) == ErrSubmissionNotFound {
			return Review{}, core.NewFieldError("submission_id", errForeignSubmission)
		}
		return Review{}, core.RepoError(err, "getting submission", nil, "")
	}
	if sub.AssignmentID != a.ID {
		return Review{}, core.NewFieldError("submission_id", errForeignSubmission)
	}
	next, err := Next(a.Status, TriggerReview)
	if err != nil {
		return Review{}, core.NewFieldError("status", err.Error())
	}

	now := core.Now()
	rev := Review{
		AssignmentID:  a.ID,
		SubmissionID:  sub.ID,
		CoachID:       actor.ID,
		Score:         nr.Score,
		Feedback:      nr.Feedback,
		Suggestions:   nr.Suggestions,
		IsFinalReview: nr.IsFinalReview == nil || *nr.IsFinalReview,
		ReviewedAt:    now,
	}
	err = svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var txErr error
		if rev, txErr = svc.repo.CreateReview(ctx, rev, exec); txErr != nil {
			return core.RepoError(txErr, "creating review", nil, "")
		}
		a.Status = next
		a.UpdatedAt = now
		a, txErr = svc.save(ctx, a, exec)
		return txErr
	})
	if err != nil {
		return Review{}, err
	}

	props := map[string]string{
		"assignment_id": a.ID,
		"review_id":     rev.ID,
		"coach_id":      rev.CoachID,
	}
	if rev.Score != nil {
		props["score"] = strconv.Itoa(*rev.Score)
	}
	svc.tracker.Track(ctx, core.EventReviewCreated, props)
	return rev, nil
}

// SetStatus applies an explicit status change requested by the owning coach.
// Only forward moves the coach can trigger directly are allowed: reviewed -> completed.
func (svc *Service) SetStatus(ctx context.Context, actor authz.Identity, id string, ss SetStatus) (Assignment, error) {
	a, err := svc.getAsOwningCoach(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.validate.Struct(ss); err != nil {
		return Assignment{}, err
	}
	if ss.Version != nil && *ss.Version != a.Version {
		return Assignment{}, core.NewConflictError("assignment")
	}

	prevStatus := a.Status
	if a.Status, err = svc.explicitStatus(a.Status, ss.Status); err != nil {
		return Assignment{}, err
	}
	if a.Status == prevStatus {
		return a, nil
	}
	return svc.transition(ctx, a, prevStatus)
}

// Reopen moves a completed assignment back to reviewed.
func (svc *Service) Reopen(ctx context.Context, actor authz.Identity, id string) (Assignment, error) {
	a, err := svc.getAsOwningCoach(ctx, actor, id)
	if err != nil {
		return Assignment{}, err
	}

	prevStatus := a.Status
	if a.Status, err = Next(a.Status, TriggerReopen); err != nil {
		return Assignment{}, core.NewFieldError("status", err.Error())
	}
	return svc.transition(ctx, a, prevStatus)
}

// Get returns an assignment visible to the actor: its coach or its student.
func (svc *Service) Get(ctx context.Context, actor authz.Identity, id string) (Assignment, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Assignment{}, err
	}
	a, err := svc.get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if authz.Check(actor, authz.Participant(a.CoachID, a.StudentID)) != nil {
		return Assignment{}, core.NewNotFoundError("assignment")
	}
	return a, nil
}

// Query lists the actor's assignments: those they coach or those assigned to them.
func (svc *Service) Query(ctx context.Context, actor authz.Identity, filter QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return nil, err
	}
	filter.Clean()
	svc.scope(actor, &filter)

	ordering = core.AllowedOrderings(ordering, OrderingFields...)
	if len(ordering) == 0 {
		ordering = defaultOrdering
	}
	as, err := svc.repo.QueryAssignments(ctx, filter, ordering)
	return as, core.RepoError(err, "querying assignments", nil, "")
}

// Submissions lists the submissions of an assignment visible to the actor, most recent first.
func (svc *Service) Submissions(ctx context.Context, actor authz.Identity, id string) ([]Submission, error) {
	a, err := svc.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, a.ID)
	return subs, core.RepoError(err, "querying submissions", nil, "")
}

// LatestSubmission returns the operative submission of an assignment.
func (svc *Service) LatestSubmission(ctx context.Context, actor authz.Identity, id string) (Submission, error) {
	subs, err := svc.Submissions(ctx, actor, id)
	if err != nil {
		return Submission{}, err
	}
	if len(subs) == 0 {
		return Submission{}, core.NewNotFoundError("submission")
	}
	return subs[0], nil
}

// Reviews lists the reviews of an assignment visible to the actor, most recent first.
func (svc *Service) Reviews(ctx context.Context, actor authz.Identity, id string) ([]Review, error) {
	a, err := svc.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	revs, err := svc.repo.QueryReviews(ctx, a.ID)
	return revs, core.RepoError(err, "querying reviews", nil, "")
}

// Stats counts the actor's assignments per status, plus those due today and overdue.
func (svc *Service) Stats(ctx context.Context, actor authz.Identity) (Stats, error) {
	if err := authz.Check(actor, authz.Authenticated()); err != nil {
		return Stats{}, err
	}

	var filter QueryFilter
	svc.scope(actor, &filter)
	counts, err := svc.repo.CountAssignmentsByStatus(ctx, filter)
	if err != nil {
		return Stats{}, core.RepoError(err, "counting assignments", nil, "")
	}
	stats := Stats{
		Pending:   counts[StatusPending],
		Submitted: counts[StatusSubmitted],
		Reviewed:  counts[StatusReviewed],
		Completed: counts[StatusCompleted],
	}
	stats.Total = stats.Pending + stats.Submitted + stats.Reviewed + stats.Completed

	now := core.Now()
	startOfDay := now.Truncate(24 * time.Hour)
	filter.Statuses = activeStatuses
	filter.DueFrom, filter.DueTo = startOfDay, startOfDay.Add(24*time.Hour-time.Microsecond)
	if stats.DueToday, err = svc.count(ctx, filter); err != nil {
		return Stats{}, err
	}

	filter.Statuses = overdueStatuses
	filter.DueFrom, filter.DueTo = time.Time{}, now
	if stats.Overdue, err = svc.count(ctx, filter); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// DueBetween lists the pending assignments due within [from, to], soonest first.
func (svc *Service) DueBetween(ctx context.Context, from, to time.Time) ([]Assignment, error) {
	filter := QueryFilter{Statuses: reminderableStatuses, DueFrom: from, DueTo: to}
	as, err := svc.repo.QueryAssignments(ctx, filter, defaultOrdering)
	return as, core.RepoError(err, "querying due assignments", nil, "")
}

func (svc *Service) get(ctx context.Context, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	return a, core.RepoError(err, "getting assignment", ErrNotFound, "assignment")
}

func (svc *Service) getAsOwningCoach(ctx context.Context, actor authz.Identity, id string) (Assignment, error) {
	if err := authz.Check(actor, authz.CoachOnly()); err != nil {
		return Assignment{}, err
	}
	a, err := svc.get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = authz.Check(actor, authz.OwningCoach(a.CoachID)); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// save persists a, mapping a lost optimistic concurrency race to a ConflictError.
func (svc *Service) save(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error) {
	saved, err := svc.repo.UpdateAssignment(ctx, a, exec...)
	if errors.Cause(err) == ErrVersionConflict {
		return Assignment{}, core.NewConflictError("assignment")
	}
	return saved, core.RepoError(err, "updating assignment", ErrNotFound, "assignment")
}

func (svc *Service) transition(ctx context.Context, a Assignment, prevStatus Status) (Assignment, error) {
	a.UpdatedAt = core.Now()
	a, err := svc.save(ctx, a)
	if err != nil {
		return Assignment{}, err
	}
	svc.trackUpdate(ctx, a, prevStatus)
	return a, nil
}

func (svc *Service) explicitStatus(current, target Status) (Status, error) {
	trigger, err := triggerFor(current, target)
	if err != nil {
		return current, core.NewFieldError("status", err.Error())
	}
	if trigger == "" {
		return current, nil
	}
	next, err := Next(current, trigger)
	if err != nil {
		return current, core.NewFieldError("status", err.Error())
	}
	return next, nil
}

func (svc *Service) trackUpdate(ctx context.Context, a Assignment, prevStatus Status) {
	props := map[string]string{
		"assignment_id": a.ID,
		"coach_id":      a.CoachID,
		"status":        string(a.Status),
	}
	if prevStatus != a.Status {
		props["previous_status"] = string(prevStatus)
	}
	svc.tracker.Track(ctx, core.EventAssignmentUpdated, props)
}

func (svc *Service) scope(actor authz.Identity, filter *QueryFilter) {
	if actor.IsCoach() {
		filter.CoachID = actor.ID
	} else {
		filter.CoachID = ""
		filter.StudentID = actor.ID
	}
}

func (svc *Service) count(ctx context.Context, filter QueryFilter) (int, error) {
	counts, err := svc.repo.CountAssignmentsByStatus(ctx, filter)
	if err != nil {
		return 0, core.RepoError(err, "counting assignments", nil, "")
	}
	var n int
	for _, c := range counts {
		n += c
	}
	return n, nil
}
