// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/auth/authtest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// recordingAuditor keeps every event it receives.
type recordingAuditor struct {
	mu     sync.Mutex
	events []auth.Event
}

func (a *recordingAuditor) Record(_ context.Context, e auth.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAuditor) kinds() []auth.EventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	kinds := make([]auth.EventKind, 0, len(a.events))
	for _, e := range a.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (a *recordingAuditor) last() auth.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.events[len(a.events)-1]
}

type testApp struct {
	router    *gin.Engine
	users     *authtest.Users
	records   *authtest.Sessions
	directory *auth.Directory
	sessions  *auth.SessionManager
	audit     *recordingAuditor
	logs      *bytes.Buffer
}

type appOption func(*Deps, *Options)

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()

	users := authtest.NewUsers()
	records := authtest.NewSessions()

	directory, err := auth.NewDirectory(users, authtest.NewHasher())
	require.NoError(t, err)
	store, err := auth.NewDatabaseSessionStore(records)
	require.NoError(t, err)
	sessions, err := auth.NewSessionManager(store, directory, auth.SessionOptions{})
	require.NoError(t, err)

	app := &testApp{
		users:     users,
		records:   records,
		directory: directory,
		sessions:  sessions,
		audit:     &recordingAuditor{},
		logs:      &bytes.Buffer{},
	}

	deps := Deps{
		Accounts: directory,
		Sessions: sessions,
		Auditor:  app.audit,
		Logger:   slog.New(slog.NewJSONHandler(app.logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}
	options := Options{AppName: "Test App"}
	for _, opt := range opts {
		opt(&deps, &options)
	}

	app.router, err = NewRouter(deps, options)
	require.NoError(t, err)
	return app
}

// testCSRFToken stands in for the token a browser got with the form.
const testCSRFToken = "test-csrf-token"

// newRequest builds a request with cookies and, for a non-nil form, an
// urlencoded body.
func newRequest(method, target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

// send serves req as is.
func (a *testApp) send(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

// do performs a same-site request: posts carry a matching CSRF cookie and
// header.
func (a *testApp) do(t *testing.T, method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := newRequest(method, target, form, cookies...)
	if method == http.MethodPost {
		req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: testCSRFToken})
		req.Header.Set(HeaderCSRFToken, testCSRFToken)
	}
	return a.send(req)
}

func (a *testApp) register(t *testing.T, username, password string) {
	t.Helper()
	rec := a.do(t, http.MethodPost, PathRegister, url.Values{
		"username":         {username},
		"password":         {password},
		"confirm_password": {password},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
}

// login signs in and returns the session cookie.
func (a *testApp) login(t *testing.T, username, password string, remember bool) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	if remember {
		form.Set("remember", "on")
	}
	rec := a.do(t, http.MethodPost, PathLogin, form)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie, "login sets the session cookie")
	return cookie
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	return responseCookie(rec, CookieName)
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
