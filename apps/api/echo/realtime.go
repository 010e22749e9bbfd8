package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/message"
	"github.com/trezcool/coachdesk/services/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 // clients only send control frames
)

type realtimeApi struct {
	svc      *message.Service
	broker   *pubsub.Broker
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerRealtimeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	conf *core.Config,
	logger core.Logger,
	svc *message.Service,
	broker *pubsub.Broker,
) {
	api := realtimeApi{
		svc:    svc,
		broker: broker,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == conf.FrontendBaseURL
			},
		},
	}

	// browsers cannot set headers on websocket requests: the token is read from ?token=
	g.GET("/messages/ws", api.streamInbox, jwt)
	g.GET("/messages/threads/:id/ws", api.streamThread, jwt)
}

// streamInbox pushes the events of every message the caller receives.
func (api *realtimeApi) streamInbox(ctx echo.Context) error {
	return api.stream(ctx, core.InboxTopic(getContextIdentity(ctx).ID))
}

// streamThread pushes the message events of a thread the caller takes part in.
func (api *realtimeApi) streamThread(ctx echo.Context) error {
	rootID := ctx.Param("id")
	if _, err := api.svc.GetThread(ctx.Request().Context(), getContextIdentity(ctx), rootID); err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return api.stream(ctx, core.ThreadTopic(rootID))
}

func (api *realtimeApi) stream(ctx echo.Context, topic string) error {
	// subscribe before upgrading so no event published after the handshake is missed
	sub, err := api.broker.Subscribe(topic)
	if err != nil {
		return core.NewDependencyError(err, "subscribing to "+topic)
	}
	defer sub.Close()

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		api.logger.Debug("realtime: upgrading connection: " + err.Error())
		return nil // the upgrader already replied
	}
	defer func() { _ = conn.Close() }()

	api.pump(conn, sub)
	return nil
}

func (api *realtimeApi) pump(conn *websocket.Conn, sub *pubsub.Subscription) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return // client went away
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case payload, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok { // broker closed
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(payload); err != nil {
				api.logger.Debug("realtime: writing event: " + err.Error())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
