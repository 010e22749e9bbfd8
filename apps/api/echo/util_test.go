package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	echoapi "github.com/trezcool/coachdesk/apps/api/echo"
	"github.com/trezcool/coachdesk/core"
	"github.com/trezcool/coachdesk/core/authz"
	testutil "github.com/trezcool/coachdesk/tests"
)

type httpTest struct {
	name      string
	method    string
	path      string
	body      []byte
	token     string
	wantCode  int
	wantKind  string   // error kind of the reply, if any
	wantField []string // fields reported by a validation error
}

func setup(t *testing.T) (*echoapi.Server, *testutil.Env) {
	t.Helper()

	env := testutil.NewEnv(t)
	env.Conf.Server.DisableReqLogs = true
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        env.Conf,
		Logger:      env.Logger,
		Broker:      env.Broker,
		ProfileSvc:  env.Profiles,
		StudentSvc:  env.Students,
		AssignSvc:   env.Assignments,
		MessageSvc:  env.Messages,
		ReminderSvc: env.Reminders,
		ProgressSvc: env.Progress,
	})
	return srv, env
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, id authz.Identity) string {
	t.Helper()

	token, err := echoapi.GenerateToken(conf, echoapi.GetIdentityClaims(conf, id))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
	}
}

// run serves tt and checks the status code, then the error kind and fields when expected.
func run(t *testing.T, srv http.Handler, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()

	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	srv.ServeHTTP(rec, req)

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
		return rec
	}
	if tt.wantKind == "" {
		return rec
	}

	var resp echoapi.ErrorResponse
	decode(t, rec, &resp)
	if resp.Error != tt.wantKind {
		t.Errorf("failed! error = %q; wantKind %q", resp.Error, tt.wantKind)
	}
	for _, f := range tt.wantField {
		if _, ok := resp.Fields[f]; !ok {
			t.Errorf("failed! fields = %v; want field %q", resp.Fields, f)
		}
	}
	return rec
}
