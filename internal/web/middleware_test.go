// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/observability"
)

type stubReader struct {
	session *auth.Session
}

func (s stubReader) Current(context.Context) (*auth.Session, bool) {
	return s.session, s.session != nil
}

func gatedEngine(reader SessionReader, calls *int) *gin.Engine {
	r := gin.New()
	r.GET("/private/*rest", RequireLogin(reader, "/login"), func(c *gin.Context) {
		*calls++
		s, ok := SessionFrom(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, s.Username)
	})
	return r
}

func TestRequireLogin_AnonymousIsRedirected(t *testing.T) {
	calls := 0
	r := gatedEngine(stubReader{}, &calls)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private/report?year=2026&q=a+b", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next=%2Fprivate%2Freport%3Fyear%3D2026%26q%3Da%2Bb", rec.Header().Get("Location"))
	assert.Zero(t, calls, "gated handler must not run")
}

func TestRequireLogin_AuthenticatedRunsHandlerOnce(t *testing.T) {
	calls := 0
	session := &auth.Session{UserID: 1, Username: "alice", ExpiresAt: time.Now().Add(time.Hour)}
	r := gatedEngine(stubReader{session: session}, &calls)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private/x", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
	assert.Equal(t, 1, calls)
}

func TestSessionFrom_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := SessionFrom(c)
	assert.False(t, ok)
}

func TestRequestID_HeaderAndLogs(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, PathAbout, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(HeaderRequestID)
	assert.Len(t, id, 26, "ULID")
	assert.Contains(t, app.logs.String(), `"route":"/about"`)
}

func TestAccessLog_RecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	app := newTestApp(t, func(d *Deps, _ *Options) { d.Metrics = metrics })

	app.do(t, http.MethodGet, PathAbout, nil)
	app.do(t, http.MethodGet, PathAbout, nil)
	app.do(t, http.MethodGet, "/missing", nil)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("/about", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("unmatched", "404")), 0)
}

// brokenSessions fails every Bind with a storage error.
type brokenSessions struct {
	*auth.SessionManager
}

func (brokenSessions) Bind(ctx context.Context, _ string) (context.Context, error) {
	return ctx, oops.Code("SESSION_LOAD_FAILED").Wrap(auth.WrapStorage(context.DeadlineExceeded))
}

func TestBindSession_StorageErrorIs500(t *testing.T) {
	app := newTestApp(t)
	app2 := newTestApp(t, func(d *Deps, _ *Options) {
		d.Sessions = brokenSessions{SessionManager: app.sessions}
	})

	rec := app2.do(t, http.MethodGet, PathAbout, nil, &http.Cookie{Name: CookieName, Value: "whatever"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"INTERNAL","message":"internal error"}`, rec.Body.String())
	assert.Contains(t, app2.logs.String(), "SESSION_LOAD_FAILED")
}

func TestBindSession_GarbageCookieIsAnonymous(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/status", nil, &http.Cookie{Name: CookieName, Value: "not-a-token"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"status":"running","authenticated":false}`, rec.Body.String())
}

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	app := newTestApp(t)
	app.router.GET("/boom", func(*gin.Context) { panic("kaboom") })

	rec := app.do(t, http.MethodGet, "/boom", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"INTERNAL","message":"internal error"}`, rec.Body.String())
	assert.Contains(t, app.logs.String(), "panic serving request")
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"code":"NOT_FOUND","message":"not found"}`, rec.Body.String())

	rec = app.do(t, http.MethodDelete, PathLogin, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS_AllowedOriginOnAPI(t *testing.T) {
	app := newTestApp(t, func(_ *Deps, o *Options) { o.CORSOrigins = []string{"http://localhost:5173"} })

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
