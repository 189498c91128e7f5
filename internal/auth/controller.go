// Package auth drives the login, registration, logout, and password-reset
// state machine. Which top-level UI region is visible is a pure function of
// the controller state, never left inconsistent with the session store.
package auth

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kgcollins/parishport/internal/gateway"
	"github.com/kgcollins/parishport/internal/household"
	"github.com/kgcollins/parishport/internal/model"
	"github.com/kgcollins/parishport/internal/session"
)

type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

const minPasswordLen = 8

type Controller struct {
	gw       *gateway.Client
	sessions *session.Store
	cache    *household.Cache
	logger   *slog.Logger

	mu    sync.Mutex
	state State

	// onLogout runs whenever the session ends, locally or via 401. The member
	// controller hooks its edit-state reset here.
	onLogout func()
}

func NewController(gw *gateway.Client, sessions *session.Store, cache *household.Cache, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		gw:       gw,
		sessions: sessions,
		cache:    cache,
		logger:   logger,
		state:    Unauthenticated,
	}
}

// SetLogoutHook registers a callback invoked on logout and on forced
// deauthentication.
func (c *Controller) SetLogoutHook(fn func()) {
	c.onLogout = fn
}

// State reports which UI region should be visible.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// RegisterInput is the registration form.
type RegisterInput struct {
	HouseholdName   string
	Email           string
	Password        string
	PasswordConfirm string
	Phone           string
	TermsAccepted   bool
}

// Register validates locally, then registers the household and starts its
// session. Validation failures never reach the network.
func (c *Controller) Register(ctx context.Context, in RegisterInput) error {
	if in.Password != in.PasswordConfirm {
		return &model.ValidationError{Field: "password_confirm", Message: "Passwords do not match"}
	}
	if !in.TermsAccepted {
		return &model.ValidationError{Field: "terms_accepted", Message: "You must agree to the Terms & Conditions and Privacy Policy"}
	}

	c.setState(Authenticating)
	res, err := c.gw.Register(ctx, gateway.RegisterPayload{
		HouseholdName: in.HouseholdName,
		Email:         in.Email,
		Password:      in.Password,
		Phone:         in.Phone,
		TermsAccepted: 1,
	})
	if err != nil {
		c.setState(Unauthenticated)
		return err
	}

	return c.startSession(ctx, res)
}

// Login authenticates an existing household.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.setState(Authenticating)
	res, err := c.gw.Login(ctx, gateway.Credentials{Email: email, Password: password})
	if err != nil {
		c.setState(Unauthenticated)
		return err
	}

	return c.startSession(ctx, res)
}

func (c *Controller) startSession(ctx context.Context, res *gateway.AuthResult) error {
	if err := c.sessions.SetToken(res.Token); err != nil {
		// Persistence failure is non-fatal for this run; the next invocation
		// simply re-authenticates.
		c.logger.Warn("persist session token", "error", err)
	}
	c.cache.Seed(res.Household)
	c.setState(Authenticated)

	if err := c.cache.Load(ctx); err != nil {
		c.logger.Warn("load household after auth", "error", err)
	}
	return nil
}

// Logout ends the session. The remote call is best-effort: its failure is
// logged, never surfaced, and local state is cleared regardless.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.gw.Logout(ctx); err != nil {
		c.logger.Warn("remote logout", "error", err)
	}
	c.sessions.ClearToken()
	c.cache.Clear()
	c.setState(Unauthenticated)
	if c.onLogout != nil {
		c.onLogout()
	}
}

// CheckAuthenticationStatus runs once at startup: a present token moves
// straight to Authenticated and triggers a household reload.
func (c *Controller) CheckAuthenticationStatus(ctx context.Context) error {
	if !c.sessions.HasValidToken() {
		c.setState(Unauthenticated)
		return nil
	}
	c.setState(Authenticated)
	if err := c.cache.Load(ctx); err != nil {
		// A 401 has already forced Unauthenticated via the gateway hook.
		return err
	}
	return nil
}

// ForceUnauthenticated is the gateway's 401 hook: the token is already
// cleared, so only the visible region and dependent state change here.
func (c *Controller) ForceUnauthenticated() {
	c.cache.Clear()
	c.setState(Unauthenticated)
	if c.onLogout != nil {
		c.onLogout()
	}
}

// RequestReset asks for a password-reset email. One-shot; no state change.
func (c *Controller) RequestReset(ctx context.Context, email, resetURL string) (string, error) {
	return c.gw.ForgotPassword(ctx, email, resetURL)
}

// CompleteReset finishes a reset with the emailed token. Local validation
// short-circuits before any request; success does not auto-login.
func (c *Controller) CompleteReset(ctx context.Context, token, email, password, confirm string) (string, error) {
	if password != confirm {
		return "", &model.ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	if len(password) < minPasswordLen {
		return "", &model.ValidationError{Field: "password", Message: "Password must be at least 8 characters long"}
	}
	return c.gw.ResetPassword(ctx, token, email, password, confirm)
}
