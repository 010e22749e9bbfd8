package student

import (
	"time"

	"github.com/trezcool/coachdesk/core"
)

// Student extends a student profile with its coaching data; ID is the profile ID.
type Student struct {
	ID             string    `json:"id"`
	CoachID        string    `json:"coach_id,omitempty"`
	Email          string    `json:"email"`      // from the profile
	FirstName      string    `json:"first_name"` // from the profile
	LastName       string    `json:"last_name"`  // from the profile
	GradeLevel     string    `json:"grade_level,omitempty"`
	SchoolName     string    `json:"school_name,omitempty"`
	Subjects       []string  `json:"subjects"`
	Goals          string    `json:"goals,omitempty"`
	ParentEmail    string    `json:"parent_email,omitempty"`
	ParentPhone    string    `json:"parent_phone,omitempty"`
	EnrollmentDate time.Time `json:"enrollment_date"` // UTC
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// NewStudent links an existing student profile, found by email, to the acting coach.
type NewStudent struct {
	Email       string   `json:"email" validate:"required,email"`
	GradeLevel  string   `json:"grade_level" validate:"omitempty,max=50"`
	SchoolName  string   `json:"school_name" validate:"omitempty,max=200"`
	Subjects    []string `json:"subjects" validate:"omitempty,max=20,dive,notblank,max=100"`
	Goals       string   `json:"goals" validate:"omitempty,max=2000"`
	ParentEmail string   `json:"parent_email" validate:"omitempty,email"`
	ParentPhone string   `json:"parent_phone" validate:"omitempty,max=30"`
}

func (ns *NewStudent) Clean() {
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.GradeLevel = core.CleanString(ns.GradeLevel)
	ns.SchoolName = core.CleanString(ns.SchoolName)
	ns.Goals = core.CleanString(ns.Goals)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
	for i, s := range ns.Subjects {
		ns.Subjects[i] = core.CleanString(s)
	}
}

type QueryFilter struct {
	CoachID  string `query:"-"`
	Search   string `query:"search"` // case-insensitive match on first name, last name or email
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields are the fields students can be ordered by.
var OrderingFields = []string{"first_name", "last_name", "email", "enrollment_date", "created_at"}
