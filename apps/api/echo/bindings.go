package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/assignment"
	"github.com/trezcool/coachdesk/core/student"
)

var orderingParam = "ordering"

// Ordering is bound from "?ordering=-due_date,created_at": a leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindBody decodes the JSON body into dst; malformed bodies are validation errors.
func bindBody(ctx echo.Context, dst interface{}, name string) error {
	if err := ctx.Bind(dst); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			msg, _ := herr.Message.(string)
			return core.NewValidationError(errors.Errorf("malformed %s: %s", name, msg))
		}
		return errors.Wrapf(err, "binding to %s", name)
	}
	return nil
}

func bindAssignmentFilter(ctx echo.Context) (assignment.QueryFilter, error) {
	params := ctx.QueryParams()
	filter := assignment.QueryFilter{
		StudentID: params.Get("student_id"),
		Subject:   params.Get("subject"),
	}
	for _, s := range params["status"] {
		filter.Statuses = append(filter.Statuses, assignment.Status(s))
	}

	var flds []core.FieldError
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"due_from", &filter.DueFrom}, {"due_to", &filter.DueTo}} {
		val := params.Get(p.name)
		if val == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			flds = append(flds, core.FieldError{Field: p.name, Error: p.name + " must be an RFC3339 datetime"})
			continue
		}
		*p.dst = t.UTC()
	}
	if len(flds) > 0 {
		return filter, core.NewValidationError(nil, flds...)
	}
	return filter, nil
}

func bindStudentFilter(ctx echo.Context) (student.QueryFilter, error) {
	filter := student.QueryFilter{Search: ctx.QueryParam("search")}
	if val := ctx.QueryParam("is_active"); val != "" {
		active, err := strconv.ParseBool(val)
		if err != nil {
			return filter, core.NewFieldError("is_active", "is_active must be a boolean")
		}
		filter.IsActive = &active
	}
	return filter, nil
}
