// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/internal/logging"
	"github.com/holomush/webauth/pkg/errutil"
)

// HeaderRequestID carries the request id back to the client.
const HeaderRequestID = "X-Request-ID"

// CookieName is the name of the session cookie.
const CookieName = "webauth_session"

// sessionKey holds the gated session in the gin context.
const sessionKey = "webauth.session"

// SessionReader reports the session bound to a request context.
type SessionReader interface {
	Current(ctx context.Context) (*auth.Session, bool)
}

// RequireLogin gates a route. Anonymous requests are redirected with 302
// to loginPath, carrying the original request URI in the next parameter,
// and the gated handler never runs. Authenticated requests continue with
// the session available through SessionFrom.
func RequireLogin(sessions SessionReader, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := sessions.Current(c.Request.Context())
		if !ok {
			c.Redirect(http.StatusFound, loginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// SessionFrom returns the session stored by RequireLogin.
func SessionFrom(c *gin.Context) (*auth.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*auth.Session)
	return s, ok && s != nil
}

// requestID tags every request with a ULID. The id travels in the request
// context so log records written with it carry request_id.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ulid.Make().String()
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// accessLog logs each finished request and records its metrics.
func accessLog(logger *slog.Logger, metrics RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if metrics != nil {
			metrics.ObserveRequest(route, status, elapsed)
		}

		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// bindSession resolves the session cookie into the request context. A
// cookie that does not name a live session leaves the request anonymous;
// storage failures end the request with 500.
func bindSession(sessions Sessions, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(CookieName) //nolint:errcheck // a missing cookie is an anonymous request
		ctx, err := sessions.Bind(c.Request.Context(), token)
		c.Request = c.Request.WithContext(ctx)
		if err != nil {
			errutil.LogErrorContext(ctx, logger, "session lookup failed", err)
			abortInternal(c)
			return
		}
		c.Next()
	}
}

func recoverJSON(logger *slog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic serving request",
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		abortInternal(c)
	}
}
