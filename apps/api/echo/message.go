package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/core/reminder"
)

type messageApi struct {
	svc *message.Service
}

func registerMessageAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *message.Service) {
	api := messageApi{svc: svc}

	mg := g.Group("/messages", jwt)
	mg.POST("", api.send)
	mg.GET("/unread-count", api.unreadCount)
	mg.GET("/threads", api.threads)
	mg.GET("/threads/:id", api.thread)
	mg.POST("/threads/:id/read", api.markRead)
}

type (
	MarkReadResponse struct {
		Marked int `json:"marked"`
	}

	UnreadCountResponse struct {
		Unread int `json:"unread"`
	}
)

func (api *messageApi) send(ctx echo.Context) error {
	var data message.NewMessage
	if err := bindBody(ctx, &data, "NewMessage"); err != nil {
		return err
	}

	m, err := api.svc.Send(ctx.Request().Context(), getContextIdentity(ctx), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *messageApi) threads(ctx echo.Context) error {
	roots, err := api.svc.ListThreads(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing threads")
	}
	return ctx.JSON(http.StatusOK, roots)
}

func (api *messageApi) thread(ctx echo.Context) error {
	th, err := api.svc.GetThread(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *messageApi) markRead(ctx echo.Context) error {
	n, err := api.svc.MarkThreadRead(ctx.Request().Context(), getContextIdentity(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking thread read")
	}
	return ctx.JSON(http.StatusOK, MarkReadResponse{Marked: n})
}

func (api *messageApi) unreadCount(ctx echo.Context) error {
	n, err := api.svc.UnreadCount(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "counting unread messages")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{Unread: n})
}

type reminderApi struct {
	svc *reminder.Service
}

func registerReminderAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *reminder.Service) {
	api := reminderApi{svc: svc}
	g.GET("/reminders", api.query, jwt)
}

func (api *reminderApi) query(ctx echo.Context) error {
	rs, err := api.svc.ForUser(ctx.Request().Context(), getContextIdentity(ctx))
	if err != nil {
		return errors.Wrap(err, "listing reminders")
	}
	return ctx.JSON(http.StatusOK, rs)
}
