package echoapi_test

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	testutil "github.com/trezcool/coachdesk/tests"
)

func Test_assignmentApi_scenario(t *testing.T) {
	srv, env := setup(t)
	coach := env.Coach(t, "coach@test.cd")
	stud := env.Student(t, "student@test.cd", coach.ID)
	intruder := env.Student(t, "intruder@test.cd", "")
	coachToken := getToken(t, env.Conf, coach)
	studToken := getToken(t, env.Conf, stud)
	intruderToken := getToken(t, env.Conf, intruder)

	due := time.Now().Add(48 * time.Hour)
	newAssignment := assignment.NewAssignment{
		Title:     "Algebra worksheet",
		Subject:   "Maths",
		StudentID: stud.ID,
		DueDate:   testutil.RFC3339(due),
		MaxScore:  100,
	}

	// create
	run(t, srv, httpTest{
		name: "auth required", method: http.MethodPost, path: "/v1/assignments",
		body: marchallObj(t, newAssignment), wantCode: http.StatusUnauthorized, wantKind: core.KindAuthorization,
	})
	run(t, srv, httpTest{
		name: "student cannot create", method: http.MethodPost, path: "/v1/assignments", token: studToken,
		body: marchallObj(t, newAssignment), wantCode: http.StatusForbidden, wantKind: core.KindAuthorization,
	})
	run(t, srv, httpTest{
		name: "every invalid field reported", method: http.MethodPost, path: "/v1/assignments", token: coachToken,
		body:     marchallObj(t, assignment.NewAssignment{Title: "ab", MaxScore: 1001, DueDate: "tomorrow"}),
		wantCode: http.StatusBadRequest, wantKind: core.KindValidation,
		wantField: []string{"title", "max_score", "due_date", "student_id"},
	})
	rec := run(t, srv, httpTest{
		name: "create", method: http.MethodPost, path: "/v1/assignments", token: coachToken,
		body: marchallObj(t, newAssignment), wantCode: http.StatusCreated,
	})
	var a assignment.Assignment
	decode(t, rec, &a)
	require.NotEmpty(t, a.ID)
	assert.Equal(t, assignment.StatusPending, a.Status)
	assert.Equal(t, coach.ID, a.CoachID)

	detail := "/v1/assignments/" + a.ID

	// visibility
	run(t, srv, httpTest{name: "student sees it", path: detail, token: studToken, wantCode: http.StatusOK})
	run(t, srv, httpTest{name: "intruder does not", path: detail, token: intruderToken, wantCode: http.StatusNotFound, wantKind: core.KindNotFound})

	// submit
	run(t, srv, httpTest{
		name: "empty submission", method: http.MethodPost, path: detail + "/submissions", token: studToken,
		body:     marchallObj(t, assignment.NewSubmission{}),
		wantCode: http.StatusBadRequest, wantKind: core.KindValidation, wantField: []string{"content", "attachment_urls"},
	})
	run(t, srv, httpTest{
		name: "coach cannot submit", method: http.MethodPost, path: detail + "/submissions", token: coachToken,
		body: marchallObj(t, assignment.NewSubmission{Content: "done"}), wantCode: http.StatusForbidden, wantKind: core.KindAuthorization,
	})
	rec = run(t, srv, httpTest{
		name: "submit", method: http.MethodPost, path: detail + "/submissions", token: studToken,
		body: marchallObj(t, assignment.NewSubmission{Content: "my answers"}), wantCode: http.StatusCreated,
	})
	var sub assignment.Submission
	decode(t, rec, &sub)

	rec = run(t, srv, httpTest{name: "submissions", path: detail + "/submissions", token: coachToken, wantCode: http.StatusOK})
	var subs []assignment.Submission
	decode(t, rec, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	// review
	run(t, srv, httpTest{
		name: "score out of range", method: http.MethodPost, path: detail + "/reviews", token: coachToken,
		body:     marchallObj(t, assignment.NewReview{SubmissionID: sub.ID, Score: testutil.IntPtr(1001)}),
		wantCode: http.StatusBadRequest, wantKind: core.KindValidation, wantField: []string{"score"},
	})
	run(t, srv, httpTest{
		name: "review", method: http.MethodPost, path: detail + "/reviews", token: coachToken,
		body: marchallObj(t, assignment.NewReview{SubmissionID: sub.ID, Score: testutil.IntPtr(90), Feedback: "Good"}), wantCode: http.StatusCreated,
	})
	rec = run(t, srv, httpTest{name: "reviews", path: detail + "/reviews", token: studToken, wantCode: http.StatusOK})
	var revs []assignment.Review
	decode(t, rec, &revs)
	require.Len(t, revs, 1)

	rec = run(t, srv, httpTest{name: "reviewed", path: detail, token: coachToken, wantCode: http.StatusOK})
	decode(t, rec, &a)
	assert.Equal(t, assignment.StatusReviewed, a.Status)

	// status
	stale := a.Version - 1
	run(t, srv, httpTest{
		name: "stale version", method: http.MethodPut, path: detail + "/status", token: coachToken,
		body:     marchallObj(t, assignment.SetStatus{Status: assignment.StatusCompleted, Version: &stale}),
		wantCode: http.StatusConflict, wantKind: core.KindConflict,
	})
	run(t, srv, httpTest{
		name: "backward status", method: http.MethodPut, path: detail + "/status", token: coachToken,
		body:     marchallObj(t, assignment.SetStatus{Status: assignment.StatusPending}),
		wantCode: http.StatusBadRequest, wantKind: core.KindValidation, wantField: []string{"status"},
	})
	rec = run(t, srv, httpTest{
		name: "complete", method: http.MethodPut, path: detail + "/status", token: coachToken,
		body: marchallObj(t, assignment.SetStatus{Status: assignment.StatusCompleted, Version: &a.Version}), wantCode: http.StatusOK,
	})
	decode(t, rec, &a)
	assert.Equal(t, assignment.StatusCompleted, a.Status)

	rec = run(t, srv, httpTest{name: "reopen", method: http.MethodPost, path: detail + "/reopen", token: coachToken, wantCode: http.StatusOK})
	decode(t, rec, &a)
	assert.Equal(t, assignment.StatusReviewed, a.Status)

	// update
	title := "Algebra worksheet (v2)"
	rec = run(t, srv, httpTest{
		name: "update", method: http.MethodPut, path: detail, token: coachToken,
		body: marchallObj(t, assignment.UpdateAssignment{Title: &title}), wantCode: http.StatusOK,
	})
	decode(t, rec, &a)
	assert.Equal(t, title, a.Title)
	assert.Equal(t, stud.ID, a.StudentID)

	run(t, srv, httpTest{name: "unknown assignment", path: "/v1/assignments/" + coach.ID, token: coachToken, wantCode: http.StatusNotFound, wantKind: core.KindNotFound})
	run(t, srv, httpTest{name: "unknown route", path: "/v1/nowhere", token: coachToken, wantCode: http.StatusNotFound, wantKind: core.KindNotFound})
}

func Test_assignmentApi_query(t *testing.T) {
	srv, env := setup(t)
	coach := env.Coach(t, "coach@test.cd")
	stud1 := env.Student(t, "s1@test.cd", coach.ID)
	stud2 := env.Student(t, "s2@test.cd", coach.ID)
	coachToken := getToken(t, env.Conf, coach)

	now := time.Now()
	a1 := testutil.CreateAssignment(t, env.AssignmentRepo, coach.ID, stud1.ID, "First", now.Add(24*time.Hour), assignment.StatusPending)
	a2 := testutil.CreateAssignment(t, env.AssignmentRepo, coach.ID, stud2.ID, "Second", now.Add(72*time.Hour), assignment.StatusSubmitted)
	a3 := testutil.CreateAssignment(t, env.AssignmentRepo, coach.ID, stud1.ID, "Third", now.Add(-24*time.Hour), assignment.StatusPending)

	path := func(v url.Values) string { return "/v1/assignments?" + v.Encode() }
	ids := func(as []assignment.Assignment) []string {
		res := make([]string, 0, len(as))
		for _, a := range as {
			res = append(res, a.ID)
		}
		return res
	}

	tests := []struct {
		name    string
		path    string
		token   string
		wantIDs []string
	}{
		{name: "default ordering: due date", path: "/v1/assignments", token: coachToken, wantIDs: []string{a3.ID, a1.ID, a2.ID}},
		{name: "ordering=-due_date", path: path(url.Values{"ordering": {"-due_date"}}), token: coachToken, wantIDs: []string{a2.ID, a1.ID, a3.ID}},
		{name: "status", path: path(url.Values{"status": {"submitted"}}), token: coachToken, wantIDs: []string{a2.ID}},
		{name: "student", path: path(url.Values{"student_id": {stud1.ID}}), token: coachToken, wantIDs: []string{a3.ID, a1.ID}},
		{
			name: "due range", token: coachToken, wantIDs: []string{a1.ID},
			path: path(url.Values{"due_from": {testutil.RFC3339(now)}, "due_to": {testutil.RFC3339(now.Add(48 * time.Hour))}}),
		},
		{name: "student sees own only", path: "/v1/assignments", token: getToken(t, env.Conf, stud2), wantIDs: []string{a2.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := run(t, srv, httpTest{path: tt.path, token: tt.token, wantCode: http.StatusOK})
			var as []assignment.Assignment
			decode(t, rec, &as)
			assert.Equal(t, tt.wantIDs, ids(as))
		})
	}

	run(t, srv, httpTest{
		name: "bad due_from", path: path(url.Values{"due_from": {"yesterday"}}), token: coachToken,
		wantCode: http.StatusBadRequest, wantKind: core.KindValidation, wantField: []string{"due_from"},
	})

	rec := run(t, srv, httpTest{name: "stats", path: "/v1/assignments/stats", token: coachToken, wantCode: http.StatusOK})
	var stats assignment.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 3, stats.Total, fmt.Sprintf("%+v", stats))
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.Overdue)
}
