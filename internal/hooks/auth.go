package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"chub/internal/models"
	"chub/internal/session"
	"chub/internal/validation"
)

// Auth covers login, signup and the current session.
type Auth struct {
	c *core
}

// Login authenticates and establishes the session. Cached data is dropped
// because viewer-relative flags belong to the previous session.
func (a *Auth) Login(ctx context.Context, req models.LoginRequest) (models.LoginResponse, error) {
	m := &Mutation[models.LoginRequest, models.LoginResponse]{
		c:        a.c,
		action:   "log in",
		public:   true,
		validate: validation.ValidateLogin,
		do: func(ctx context.Context, _ string, in models.LoginRequest) (models.LoginResponse, error) {
			var out models.LoginResponse
			if err := a.c.call(ctx, http.MethodPost, "/login", "/login", "", nil, in, &out); err != nil {
				return out, err
			}
			if out.Token == "" {
				return out, fmt.Errorf("login response missing token")
			}
			return out, nil
		},
		failure: "Login failed",
		onSuccess: func(ctx context.Context, _ models.LoginRequest, out models.LoginResponse) {
			a.reset()
			if err := a.c.session.SetSession(ctx, out.Token, out.User); err != nil {
				a.c.log.LogStorageError(ctx, "session", "set", err)
			}
		},
	}
	return m.Run(ctx, req)
}

// registerResponse accepts both a bare user and a {token, user} body.
type registerResponse struct {
	models.User
	Token   string       `json:"token"`
	Session *models.User `json:"user"`
}

// Register creates an account. When the backend answers with a token the
// session is established as for Login; otherwise the user must log in.
func (a *Auth) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	m := &Mutation[models.RegisterRequest, registerResponse]{
		c:        a.c,
		action:   "register",
		public:   true,
		validate: validation.ValidateRegister,
		do: func(ctx context.Context, _ string, in models.RegisterRequest) (registerResponse, error) {
			var raw json.RawMessage
			var out registerResponse
			if err := a.c.call(ctx, http.MethodPost, "/register", "/register", "", nil, in, &raw); err != nil {
				return out, err
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &out); err != nil {
					return out, fmt.Errorf("decode register response: %w", err)
				}
			}
			return out, nil
		},
		success: "Registration successful! Please login to continue.",
		failure: "Registration failed",
		onSuccess: func(ctx context.Context, _ models.RegisterRequest, out registerResponse) {
			if out.Token == "" || out.Session == nil {
				return
			}
			a.reset()
			if err := a.c.session.SetSession(ctx, out.Token, *out.Session); err != nil {
				a.c.log.LogStorageError(ctx, "session", "set", err)
			}
		},
	}
	out, err := m.Run(ctx, req)
	if err != nil {
		return models.User{}, err
	}
	if out.Session != nil {
		return *out.Session, nil
	}
	return out.User, nil
}

// Logout clears the session and every cached query.
func (a *Auth) Logout(ctx context.Context) error {
	a.c.tracker.Reset()
	err := a.c.session.ClearSession(ctx)
	a.c.cache.Clear()
	if err != nil {
		a.c.notifier.Error(ctx, "Failed to clear saved session")
		return err
	}
	a.c.notifier.Success(ctx, "Logged out")
	a.c.log.LogMutation(ctx, "log out", nil, nil)
	return nil
}

// CurrentUser reads the profile of the logged-in user.
func (a *Auth) CurrentUser() *Query[models.User] {
	return newQuery(a.c, KeyProfile, true, "Failed to load profile",
		func(ctx context.Context, token string) (models.User, error) {
			var out models.User
			err := a.c.call(ctx, http.MethodGet, "/profile", "/profile", token, nil, nil, &out)
			return out, err
		})
}

// RequireSession resolves the session and fails unless it is authenticated.
func (a *Auth) RequireSession(ctx context.Context, action string) (session.Snapshot, error) {
	status, err := a.c.session.Resolve(ctx)
	if err != nil && status != session.StatusAuthenticated {
		a.c.log.LogStorageError(ctx, "session", "hydrate", err)
	}
	if status != session.StatusAuthenticated {
		return session.Snapshot{Status: status}, models.NewNotAuthenticatedError(action)
	}
	return a.c.session.Snapshot(), nil
}

func (a *Auth) reset() {
	a.c.tracker.Reset()
	a.c.cache.Clear()
}
