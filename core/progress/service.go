package progress

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/authz"
	"github.com/trezcool/coachdesk/core/student"
)

const errWeeksRange = "must be between 1 and 52"

type (
	// Assignments reads the assignments and reviews progress is computed from.
	Assignments interface {
		QueryAssignments(ctx context.Context, filter assignment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]assignment.Assignment, error)
		QueryReviews(ctx context.Context, assignmentID string, exec ...core.DBExecutor) ([]assignment.Review, error)
	}

	// Students resolves a student visible to the actor.
	Students interface {
		Get(ctx context.Context, actor authz.Identity, id string) (student.Student, error)
	}

	Service struct {
		assignments Assignments
		students    Students
	}
)

func NewService(assignments Assignments, students Students) *Service {
	return &Service{assignments: assignments, students: students}
}

// Progress returns the weekly progress of a student over the last weeks (current week included),
// most recent week first, then by subject. Only the student and their coach may see it.
func (svc *Service) Progress(ctx context.Context, actor authz.Identity, studentID string, weeks int) ([]Week, error) {
	if weeks == 0 {
		weeks = DefaultWeeks
	}
	if weeks < 1 || weeks > MaxWeeks {
		return nil, core.NewFieldError("weeks", errWeeksRange)
	}
	s, err := svc.students.Get(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	thisWeek := weekStart(core.Now())
	filter := assignment.QueryFilter{
		StudentID: s.ID,
		DueFrom:   thisWeek.AddDate(0, 0, -7*(weeks-1)),
		DueTo:     thisWeek.AddDate(0, 0, 7).Add(-time.Microsecond),
	}
	as, err := svc.assignments.QueryAssignments(ctx, filter, []core.DBOrdering{{Field: "due_date", Ascending: true}})
	if err != nil {
		return nil, core.RepoError(err, "querying assignments", nil, "")
	}

	type key struct {
		week    time.Time
		subject string
	}
	type bucket struct {
		Week
		scoreSum float64
		scored   int
	}
	buckets := make(map[key]*bucket)

	for _, a := range as {
		k := key{week: weekStart(a.DueDate), subject: a.Subject}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{Week: Week{WeekStart: k.week, Subject: k.subject}}
			buckets[k] = b
		}

		b.AssignmentsTotal++
		if a.Status == assignment.StatusCompleted {
			b.AssignmentsCompleted++
			if a.EstimatedDuration != nil {
				b.StudyMinutes += *a.EstimatedDuration
			}
		}

		if a.Status != assignment.StatusReviewed && a.Status != assignment.StatusCompleted {
			continue
		}
		pct, ok, err := svc.latestScore(ctx, a)
		if err != nil {
			return nil, err
		}
		if ok {
			b.scoreSum += pct
			b.scored++
		}
	}

	out := make([]Week, 0, len(buckets))
	for _, b := range buckets {
		if b.scored > 0 {
			avg := math.Round(b.scoreSum/float64(b.scored)*100) / 100
			b.AverageScore = &avg
		}
		out = append(out, b.Week)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.After(out[j].WeekStart)
		}
		return out[i].Subject < out[j].Subject
	})
	return out, nil
}

// latestScore returns the most recent review score of a, as a percentage of its max score.
func (svc *Service) latestScore(ctx context.Context, a assignment.Assignment) (float64, bool, error) {
	revs, err := svc.assignments.QueryReviews(ctx, a.ID)
	if err != nil {
		return 0, false, core.RepoError(err, "querying reviews", nil, "")
	}
	for _, r := range revs {
		if r.Score != nil && a.MaxScore > 0 {
			return float64(*r.Score) * 100 / float64(a.MaxScore), true, nil
		}
	}
	return 0, false, nil
}
