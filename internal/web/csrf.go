// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
)

// Double-submit CSRF protection. The form endpoints issue a random token in
// CSRFCookieName and in the response; state-changing posts must echo it in
// HeaderCSRFToken or the csrf_token form field.
const (
	CSRFCookieName  = "webauth_csrf"
	HeaderCSRFToken = "X-CSRF-Token"
	CSRFFormField   = "csrf_token"
)

const csrfTokenBytes = 32

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("CSRF_TOKEN_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// issueCSRF returns the client's current token, minting and setting a new
// one when the request carries none.
func (h *handlers) issueCSRF(c *gin.Context) (string, error) {
	if token, err := c.Cookie(CSRFCookieName); err == nil && len(token) == base64.RawURLEncoding.EncodedLen(csrfTokenBytes) {
		c.Header(HeaderCSRFToken, token)
		return token, nil
	}

	token, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	c.Header(HeaderCSRFToken, token)
	return token, nil
}

// VerifyCSRF rejects unsafe requests whose submitted token does not match
// the CSRF cookie. Safe methods pass through.
func VerifyCSRF(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		expected, err := c.Cookie(CSRFCookieName)
		if err != nil || expected == "" {
			rejectCSRF(c, logger, "CSRF_MISSING", "CSRF token is missing. Reload the form and try again.")
			return
		}

		received := c.GetHeader(HeaderCSRFToken)
		if received == "" {
			received = c.PostForm(CSRFFormField)
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(received)) != 1 {
			rejectCSRF(c, logger, "CSRF_INVALID", "CSRF token does not match. Reload the form and try again.")
			return
		}
		c.Next()
	}
}

func rejectCSRF(c *gin.Context, logger *slog.Logger, code, msg string) {
	logger.WarnContext(c.Request.Context(), "csrf check failed",
		"code", code,
		"route", c.FullPath(),
		"origin", c.GetHeader("Origin"),
		"remote_addr", c.ClientIP(),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Code: code, Message: msg})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
