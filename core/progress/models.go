package progress

import "time"

const (
	DefaultWeeks = 8
	MaxWeeks     = 52
)

// Week sums up a student's assignments of one subject due within one week.
type Week struct {
	WeekStart            time.Time `json:"week_start"` // Monday 00:00 UTC
	Subject              string    `json:"subject"`    // empty for assignments without subject
	AssignmentsCompleted int       `json:"assignments_completed"`
	AssignmentsTotal     int       `json:"assignments_total"`
	// AverageScore is the mean of the latest scored reviews, as a percentage of the max score.
	// nil when no assignment of the week was scored.
	AverageScore *float64 `json:"average_score"`
	StudyMinutes int      `json:"study_minutes"` // estimated duration of the completed assignments
}

// weekStart returns the Monday 00:00 UTC of the week t falls in.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
}
