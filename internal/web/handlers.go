// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/holomush/webauth/internal/auth"
	"github.com/holomush/webauth/pkg/errutil"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type registerForm struct {
	Username        string `form:"username" binding:"required,min=3,max=50"`
	Password        string `form:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Remember string `form:"remember"`
	Next     string `form:"next"`
}

// formField describes one input of a form for clients that render it.
type formField struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

var registerFields = []formField{
	{Name: "username", Type: "text", Required: true, MinLength: auth.MinUsernameLength, MaxLength: auth.MaxUsernameLength},
	{Name: "password", Type: "password", Required: true, MinLength: auth.MinPasswordLength},
	{Name: "confirm_password", Type: "password", Required: true},
	{Name: CSRFFormField, Type: "hidden", Required: true},
}

var loginFields = []formField{
	{Name: "username", Type: "text", Required: true},
	{Name: "password", Type: "password", Required: true},
	{Name: "remember", Type: "checkbox"},
	{Name: "next", Type: "hidden"},
	{Name: CSRFFormField, Type: "hidden", Required: true},
}

type handlers struct {
	accounts      Accounts
	sessions      Sessions
	auditor       auth.Auditor
	logger        *slog.Logger
	appName       string
	secureCookies bool
}

func (h *handlers) index(c *gin.Context) {
	session, _ := SessionFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"app_name": h.appName,
		"username": session.Username,
	})
}

func (h *handlers) about(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"app_name": h.appName})
}

func (h *handlers) registerForm(c *gin.Context) {
	if h.loggedIn(c) {
		redirectHome(c)
		return
	}
	token, err := h.issueCSRF(c)
	if err != nil {
		h.fail(c, "csrf token failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"app_name":   h.appName,
		"form":       registerFields,
		"csrf_token": token,
	})
}

func (h *handlers) register(c *gin.Context) {
	if h.loggedIn(c) {
		redirectHome(c)
		return
	}

	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, validationBody(err))
		return
	}

	ctx := c.Request.Context()
	event := auth.Event{
		Kind:       auth.EventRegister,
		Username:   form.Username,
		RemoteAddr: c.ClientIP(),
		Time:       time.Now(),
	}

	taken, err := h.accounts.UsernameTaken(ctx, form.Username)
	if err != nil {
		h.fail(c, "username lookup failed", err)
		return
	}
	if taken {
		h.registerRejected(c, event, "duplicate_username")
		return
	}

	id, err := h.accounts.RegisterUser(ctx, form.Username, form.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrDuplicateUsername):
		h.registerRejected(c, event, "duplicate_username")
		return
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		event.Kind = auth.EventRegisterFailed
		event.Reason = "invalid_input"
		h.auditor.Record(ctx, event)
		c.JSON(http.StatusBadRequest, errorBody{Code: "VALIDATION_FAILED", Message: userMessage(err)})
		return
	default:
		h.fail(c, "registration failed", err)
		return
	}

	event.UserID = id
	h.auditor.Record(ctx, event)
	c.Redirect(http.StatusSeeOther, PathLogin)
}

func (h *handlers) registerRejected(c *gin.Context, event auth.Event, reason string) {
	event.Kind = auth.EventRegisterFailed
	event.Reason = reason
	h.auditor.Record(c.Request.Context(), event)
	c.JSON(http.StatusConflict, errorBody{
		Code:    "DUPLICATE_USERNAME",
		Message: "Username already exists. Please choose a different one.",
	})
}

func (h *handlers) loginForm(c *gin.Context) {
	if h.loggedIn(c) {
		redirectHome(c)
		return
	}
	token, err := h.issueCSRF(c)
	if err != nil {
		h.fail(c, "csrf token failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"app_name":   h.appName,
		"form":       loginFields,
		"next":       c.Query("next"),
		"csrf_token": token,
	})
}

func (h *handlers) login(c *gin.Context) {
	if h.loggedIn(c) {
		redirectHome(c)
		return
	}

	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, validationBody(err))
		return
	}
	if form.Next == "" {
		form.Next = c.Query("next")
	}

	ctx := c.Request.Context()
	event := auth.Event{
		Kind:       auth.EventLogin,
		Username:   form.Username,
		RemoteAddr: c.ClientIP(),
		Time:       time.Now(),
	}

	user, err := h.accounts.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			event.Kind = auth.EventLoginFailed
			event.Reason = "invalid_credentials"
			h.auditor.Record(ctx, event)
			c.JSON(http.StatusUnauthorized, errorBody{
				Code:    "INVALID_CREDENTIALS",
				Message: "Invalid username or password",
			})
			return
		}
		h.fail(c, "authentication failed", err)
		return
	}

	session, token, err := h.sessions.Establish(ctx, user, checked(form.Remember))
	if err != nil {
		h.fail(c, "session establish failed", err)
		return
	}
	h.setSessionCookie(c, token, session.Persistent)

	event.UserID = user.ID
	h.auditor.Record(ctx, event)
	c.Redirect(http.StatusSeeOther, safeNext(form.Next))
}

func (h *handlers) logout(c *gin.Context) {
	ctx := c.Request.Context()
	event := auth.Event{Kind: auth.EventLogout, RemoteAddr: c.ClientIP(), Time: time.Now()}
	if session, ok := h.sessions.Current(ctx); ok {
		event.Username = session.Username
		event.UserID = session.UserID
	}

	if err := h.sessions.Destroy(ctx); err != nil {
		// The binding is already cleared; the client still gets logged out.
		errutil.LogErrorContext(ctx, h.logger, "session destroy failed", err)
	}
	h.clearSessionCookie(c)

	h.auditor.Record(ctx, event)
	c.Redirect(http.StatusSeeOther, PathLogin)
}

func (h *handlers) apiUser(c *gin.Context) {
	session, ok := h.sessions.Current(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Not authenticated",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":       session.UserID,
			"username": session.Username,
		},
	})
}

func (h *handlers) apiStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"status":        "running",
		"authenticated": h.loggedIn(c),
	})
}

func (h *handlers) loggedIn(c *gin.Context) bool {
	_, ok := h.sessions.Current(c.Request.Context())
	return ok
}

// fail logs err once and answers with a generic 500.
func (h *handlers) fail(c *gin.Context, msg string, err error) {
	errutil.LogErrorContext(c.Request.Context(), h.logger, msg, err)
	abortInternal(c)
}

func (h *handlers) setSessionCookie(c *gin.Context, token string, persistent bool) {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if persistent {
		cookie.MaxAge = int(h.sessions.RememberTTL().Seconds())
	}
	http.SetCookie(c.Writer, cookie)
}

func (h *handlers) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func abortInternal(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL",
		Message: "internal error",
	})
}

// redirectHome sends an already authenticated client to the index. Form
// posts get 303 so the browser switches to GET.
func redirectHome(c *gin.Context) {
	status := http.StatusFound
	if c.Request.Method == http.MethodPost {
		status = http.StatusSeeOther
	}
	c.Redirect(status, PathIndex)
}

// safeNext returns next when it is a local absolute path, otherwise the
// index.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return PathIndex
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return PathIndex
	}
	return next
}

// checked interprets an HTML checkbox value.
func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}

func validationBody(err error) errorBody {
	body := errorBody{Code: "VALIDATION_FAILED", Message: "invalid form input"}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return body
	}
	body.Fields = make(map[string]string, len(verrs))
	for _, fe := range verrs {
		body.Fields[fe.Field()] = fieldMessage(fe)
	}
	return body
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min":
		return "Must be at least " + fe.Param() + " characters long."
	case "max":
		return "Must be at most " + fe.Param() + " characters long."
	case "eqfield":
		return "Passwords must match."
	default:
		return "Invalid value."
	}
}

// userMessage extracts the validation message of a domain error, which
// never contains secrets.
func userMessage(err error) string {
	if errors.Is(err, auth.ErrInvalidPassword) {
		return "invalid password"
	}
	return "invalid username"
}
