package auth

import (
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthControllerRoutes are the endpoint paths, relative to the router the
// controller is mounted on
type AuthControllerRoutes struct {
	Login         string
	Signup        string
	ResetRequest  string
	PasswordReset string
	Logout        string
	Session       string
}

// DefaultAuthControllerRoutes mirrors the /auth contract
var DefaultAuthControllerRoutes = AuthControllerRoutes{
	Login:         "/login",
	Signup:        "/signup",
	ResetRequest:  "/password-reset-request",
	PasswordReset: "/password-reset",
	Logout:        "/logout",
	Session:       "/session",
}

// AuthController serves the JSON auth contract
type AuthController struct {
	Backend        AuthBackend
	Tokens         TokenService
	Logger         Logger
	Routes         AuthControllerRoutes
	guard          *AccessGuard
	cfg            Config
	cookieDuration time.Duration
	secureCookies  bool
	activity       ActivitySink
}

// AuthControllerOption configures the controller
type AuthControllerOption func(*AuthController)

// WithControllerLogger sets the logger
func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) {
		c.Logger = normalizeLogger(l)
	}
}

// WithControllerRoutes overrides DefaultAuthControllerRoutes
func WithControllerRoutes(routes AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) {
		c.Routes = routes
	}
}

// WithSecureCookies marks session cookies Secure. Off for plain HTTP
// development servers.
func WithSecureCookies(secure bool) AuthControllerOption {
	return func(c *AuthController) {
		c.secureCookies = secure
	}
}

// WithControllerActivitySink records logouts made through the API
func WithControllerActivitySink(sink ActivitySink) AuthControllerOption {
	return func(c *AuthController) {
		c.activity = normalizeActivitySink(sink)
	}
}

// WithControllerGuard sets the guard that picks the post login landing route
func WithControllerGuard(g *AccessGuard) AuthControllerOption {
	return func(c *AuthController) {
		if g != nil {
			c.guard = g
		}
	}
}

// NewAuthController creates the controller
func NewAuthController(backend AuthBackend, tokens TokenService, cfg Config, opts ...AuthControllerOption) *AuthController {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	c := &AuthController{
		Backend:        backend,
		Tokens:         tokens,
		Logger:         defLogger{},
		Routes:         DefaultAuthControllerRoutes,
		guard:          NewAccessGuard(WithGuardConfig(cfg)),
		cfg:            cfg,
		cookieDuration: cookieDuration,
		secureCookies:  true,
		activity:       noopActivitySink{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// RegisterAuthRoutes mounts the controller on r, usually
// srv.Router().Group("/auth")
func RegisterAuthRoutes[T any](r router.Router[T], controller *AuthController) {
	r.Post(controller.Routes.Login, controller.LoginPost).SetName("auth.login")
	r.Post(controller.Routes.Signup, controller.SignupPost).SetName("auth.signup")
	r.Post(controller.Routes.ResetRequest, controller.PasswordResetRequestPost).SetName("auth.password-reset-request")
	r.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).SetName("auth.password-reset")
	r.Post(controller.Routes.Logout, controller.LogoutPost).SetName("auth.logout")
	r.Get(controller.Routes.Session, controller.SessionGet).SetName("auth.session")
}

func (a *AuthController) LoginPost(c router.Context) error {
	payload := LoginPayload{}
	if err := c.Bind(&payload); err != nil {
		return a.fail(c, badBody(err))
	}

	form := LoginForm{Identifier: payload.Identifier, Secret: payload.Secret}
	if err := form.Validate(); err != nil {
		return a.fail(c, err)
	}

	session, err := a.Backend.Verify(c.Context(), payload.Identifier, payload.Secret)
	if err != nil {
		return a.fail(c, err)
	}

	a.setCookieToken(c, session.Token)

	redirect := a.GetRedirect(c, a.guard.HomeRoute(session))

	profile := session.Profile
	return c.JSON(http.StatusOK, AuthResponse{
		Success:  true,
		Token:    session.Token,
		Role:     string(session.Role),
		Profile:  &profile,
		Message:  MessageLoggedIn,
		Redirect: redirect,
	})
}

func (a *AuthController) SignupPost(c router.Context) error {
	payload := SignupRequest{}
	if err := c.Bind(&payload); err != nil {
		return a.fail(c, badBody(err))
	}

	profile, err := a.Backend.Register(c.Context(), payload)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, AuthResponse{
		Success:  true,
		Role:     string(RoleUser),
		Profile:  profile,
		Message:  MessageSignupComplete,
		Redirect: LoginRoute,
	})
}

func (a *AuthController) PasswordResetRequestPost(c router.Context) error {
	payload := ResetRequestPayload{}
	if err := c.Bind(&payload); err != nil {
		return a.fail(c, badBody(err))
	}

	if err := a.Backend.RequestPasswordReset(c.Context(), payload.Email); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Success:  true,
		Message:  MessageResetRequested,
		Redirect: LoginRoute,
	})
}

func (a *AuthController) PasswordResetPost(c router.Context) error {
	payload := ResetPayload{}
	if err := c.Bind(&payload); err != nil {
		return a.fail(c, badBody(err))
	}

	if payload.Token == "" {
		return a.fail(c, ErrTokenInvalid)
	}

	if err := a.Backend.ResetPassword(c.Context(), payload.Token, payload.NewSecret); err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		Success:  true,
		Message:  MessageResetComplete,
		Redirect: LoginRoute,
	})
}

// LogoutPost drops the session cookie. Logging out without a session is
// not an error.
func (a *AuthController) LogoutPost(c router.Context) error {
	if token := TokenFromRequest(c, a.cfg.GetContextKey()); token != "" {
		if session, err := a.Tokens.SessionFromToken(token); err == nil {
			recordActivity(c.Context(), a.activity, a.Logger, ActivityEvent{
				Type:     ActivityLogout,
				Username: session.Profile.Username,
				Role:     session.Role,
			})
		}
	}

	a.cookieDel(c, a.cfg.GetContextKey())

	return c.JSON(http.StatusOK, AuthResponse{
		Success:  true,
		Message:  MessageLoggedOut,
		Redirect: LoginRoute,
	})
}

func (a *AuthController) SessionGet(c router.Context) error {
	session, err := a.Tokens.SessionFromToken(TokenFromRequest(c, a.cfg.GetContextKey()))
	if err != nil {
		return a.fail(c, err)
	}

	profile := session.Profile
	return c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Role:    string(session.Role),
		Profile: &profile,
	})
}

// GetRedirect returns the route rejected before login and clears it
func (a *AuthController) GetRedirect(c router.Context, def string) string {
	key := a.cfg.GetRejectedRouteKey()
	r := c.Cookies(key)
	if r == "" {
		return def
	}
	a.cookieDel(c, key)
	return r
}

func (a *AuthController) fail(c router.Context, err error) error {
	status, res := FailureResponse(err)
	if status >= http.StatusInternalServerError {
		a.Logger.Error("auth request failed", "path", c.Path(), "error", err)
	} else {
		a.Logger.Debug("auth request rejected", "path", c.Path(), "code", res.Code)
	}
	return c.JSON(status, res)
}

func (a *AuthController) setCookieToken(c router.Context, val string) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(a.cookieDuration),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func (a *AuthController) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.secureCookies,
		SameSite: "Lax",
	})
}

func badBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request body").
		WithCode(goerrors.CodeBadRequest)
}
