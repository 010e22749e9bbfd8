package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core/assignment"
)

type assignmentApi struct {
	svc *assignment.Service
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *assignment.Service) {
	api := assignmentApi{svc: svc}

	ag := g.Group("/assignments", jwt)
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/stats", api.stats)

	// detail endpoints
	dg := ag.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.PUT("/status", api.setStatus)
	dg.POST("/reopen", api.reopen)
	dg.POST("/submissions", api.submit)
	dg.GET("/submissions", api.submissions)
	dg.POST("/reviews", api.review)
	dg.GET("/reviews", api.reviews)
}

// Handlers

func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := bindBody(ctx, &data, "NewAssignment"); err != nil {
		return err
	}

	a, err := api.svc.Create(ctx.Request().Context(), getContextIdentity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assignmentApi) query(ctx echo.Context) error {
	filter, err := bindAssignmentFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	as, err := api.svc.Query(ctx.Request().Context(), getContextIdentity(ctx), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if as == nil {
		as = []assignment.Assignment{}
	}
	return ctx.JSON(http.StatusOK, as)
}

func (api *assignmentApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "computing assignment stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.Get(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	var data assignment.UpdateAssignment
	if err := bindBody(ctx, &data, "UpdateAssignment"); err != nil {
		return err
	}

	a, err := api.svc.Update(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) setStatus(ctx echo.Context) error {
	var data assignment.SetStatus
	if err := bindBody(ctx, &data, "SetStatus"); err != nil {
		return err
	}

	a, err := api.svc.SetStatus(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting assignment status")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) reopen(ctx echo.Context) error {
	a, err := api.svc.Reopen(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reopening assignment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assignmentApi) submit(ctx echo.Context) error {
	var data assignment.NewSubmission
	if err := bindBody(ctx, &data, "NewSubmission"); err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting assignment")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *assignmentApi) submissions(ctx echo.Context) error {
	subs, err := api.svc.Submissions(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *assignmentApi) review(ctx echo.Context) error {
	var data assignment.NewReview
	if err := bindBody(ctx, &data, "NewReview"); err != nil {
		return err
	}

	rev, err := api.svc.Review(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "reviewing submission")
	}
	return ctx.JSON(http.StatusCreated, rev)
}

func (api *assignmentApi) reviews(ctx echo.Context) error {
	revs, err := api.svc.Reviews(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying reviews")
	}
	return ctx.JSON(http.StatusOK, revs)
}
