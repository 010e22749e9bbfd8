package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/progress"
	"github.com/trezcool/coachdesk/core/student"
)

type studentApi struct {
	svc         *student.Service
	progressSvc *progress.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *student.Service, progressSvc *progress.Service) {
	api := studentApi{svc: svc, progressSvc: progressSvc}

	sg := g.Group("/students", jwt)
	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id/active", api.setActive)
	sg.GET("/:id/progress", api.progress)
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active"`
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := bindBody(ctx, &data, "NewStudent"); err != nil {
		return err
	}

	s, err := api.svc.Add(ctx.Request().Context(), getContextIdentity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter, err := bindStudentFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.List(ctx.Request().Context(), getContextIdentity(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) setActive(ctx echo.Context) error {
	var data SetActiveRequest
	if err := bindBody(ctx, &data, "SetActiveRequest"); err != nil {
		return err
	}
	if data.IsActive == nil {
		return core.NewFieldError("is_active", "this field is required")
	}

	s, err := api.svc.SetActive(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting student active")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) progress(ctx echo.Context) error {
	var weeks int
	if v := ctx.QueryParam("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.NewFieldError("weeks", "must be a number")
		}
		weeks = n
	}

	ps, err := api.progressSvc.Progress(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), weeks)
	if err != nil {
		return errors.Wrap(err, "computing student progress")
	}
	return ctx.JSON(http.StatusOK, ps)
}
