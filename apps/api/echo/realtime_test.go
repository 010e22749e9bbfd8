package echoapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coachdesk/core/message"
)

func Test_realtimeApi_streamThread(t *testing.T) {
	srv, env := setup(t)
	coach := env.Coach(t, "coach@test.cd")
	stud := env.Student(t, "student@test.cd", coach.ID)
	outsider := env.Student(t, "outsider@test.cd", "")

	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx := context.Background()
	root, err := env.Messages.Send(ctx, coach, message.NewMessage{ReceiverID: stud.ID, Content: "Ready for the quiz?"})
	require.NoError(t, err)

	wsURL := func(rootID, token string) string {
		u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/messages/threads/" + rootID + "/ws"
		if token != "" {
			u += "?token=" + token
		}
		return u
	}

	t.Run("auth required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(root.ID, ""), nil)
		require.Equal(t, websocket.ErrBadHandshake, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("not a participant", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(root.ID, getToken(t, env.Conf, outsider)), nil)
		require.Equal(t, websocket.ErrBadHandshake, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("receives replies", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(root.ID, getToken(t, env.Conf, stud)), nil)
		require.NoError(t, err)
		defer conn.Close()

		reply, err := env.Messages.Send(ctx, coach, message.NewMessage{ReceiverID: stud.ID, Content: "Chapter 3 only", ParentID: root.ID})
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var evt message.Event
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, message.EventMessageCreated, evt.Type)
		assert.Equal(t, reply.ID, evt.Message.ID)
		assert.Equal(t, root.ID, evt.Message.ParentID)
	})
}

func Test_realtimeApi_streamInbox(t *testing.T) {
	srv, env := setup(t)
	coach := env.Coach(t, "coach@test.cd")
	stud := env.Student(t, "student@test.cd", coach.ID)
	other := env.Student(t, "other@test.cd", coach.ID)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/messages/ws"

	t.Run("auth required", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Equal(t, websocket.ErrBadHandshake, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("receives own messages only", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+getToken(t, env.Conf, stud), nil)
		require.NoError(t, err)
		defer conn.Close()

		ctx := context.Background()
		_, err = env.Messages.Send(ctx, coach, message.NewMessage{ReceiverID: other.ID, Content: "Not for you"})
		require.NoError(t, err)
		m, err := env.Messages.Send(ctx, coach, message.NewMessage{ReceiverID: stud.ID, Content: "Quiz moved to Friday"})
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var evt message.Event
		require.NoError(t, conn.ReadJSON(&evt))
		assert.Equal(t, message.EventMessageCreated, evt.Type)
		assert.Equal(t, m.ID, evt.Message.ID)
		assert.Equal(t, stud.ID, evt.Message.ReceiverID)
	})
}
