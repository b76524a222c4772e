// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/holomush/webauth/internal/auth"
)

// Route paths.
const (
	PathIndex    = "/"
	PathAbout    = "/about"
	PathRegister = "/register"
	PathLogin    = "/login"
	PathLogout   = "/logout"
)

// Accounts registers and authenticates users. auth.Directory implements it.
type Accounts interface {
	RegisterUser(ctx context.Context, username, password string) (auth.UserID, error)
	Authenticate(ctx context.Context, username, password string) (*auth.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
}

// Sessions is the per-request session API. auth.SessionManager implements
// it.
type Sessions interface {
	SessionReader
	Bind(ctx context.Context, token string) (context.Context, error)
	Establish(ctx context.Context, user *auth.User, remember bool) (*auth.Session, string, error)
	Destroy(ctx context.Context) error
	RememberTTL() time.Duration
}

// RequestObserver records finished requests.
type RequestObserver interface {
	ObserveRequest(route string, status int, elapsed time.Duration)
}

// Deps are the collaborators of the router.
type Deps struct {
	Accounts Accounts
	Sessions Sessions
	// Auditor may be nil.
	Auditor auth.Auditor
	// Metrics may be nil.
	Metrics RequestObserver
	// Logger may be nil.
	Logger *slog.Logger
}

// Options tune the router.
type Options struct {
	AppName       string
	SecureCookies bool
	// CORSOrigins lists origins allowed to call /api with credentials. No
	// CORS headers are sent when empty.
	CORSOrigins []string
}

var registerTagNames sync.Once

// NewRouter builds the gin engine serving the application routes.
func NewRouter(deps Deps, opts Options) (*gin.Engine, error) {
	if deps.Accounts == nil {
		return nil, oops.Errorf("accounts are required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("sessions are required")
	}
	if deps.Auditor == nil {
		deps.Auditor = auth.NopAuditor{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.AppName == "" {
		opts.AppName = "webauth"
	}

	useFormTagNames()

	h := &handlers{
		accounts:      deps.Accounts,
		sessions:      deps.Sessions,
		auditor:       deps.Auditor,
		logger:        deps.Logger,
		appName:       opts.AppName,
		secureCookies: opts.SecureCookies,
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		requestID(),
		accessLog(deps.Logger, deps.Metrics),
		gin.CustomRecovery(recoverJSON(deps.Logger)),
		bindSession(deps.Sessions, deps.Logger),
	)
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	csrf := VerifyCSRF(deps.Logger)

	r.GET(PathIndex, RequireLogin(deps.Sessions, PathLogin), h.index)
	r.GET(PathAbout, h.about)
	r.GET(PathRegister, h.registerForm)
	r.POST(PathRegister, csrf, h.register)
	r.GET(PathLogin, h.loginForm)
	r.POST(PathLogin, csrf, h.login)
	r.GET(PathLogout, h.logout)
	r.POST(PathLogout, csrf, h.logout)

	api := r.Group("/api")
	if len(opts.CORSOrigins) > 0 {
		api.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	api.GET("/user", h.apiUser)
	api.GET("/status", h.apiStatus)

	return r, nil
}

// useFormTagNames makes validation errors report the form field name
// ("confirm_password") instead of the Go field name.
func useFormTagNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
}
