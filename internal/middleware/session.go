package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cinevo/backend/internal/auth"
	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/models"
)

// Cookie names for the session token pair.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type userCtxKey struct{}

// UserFrom returns the authenticated account stored on the context by the
// session middleware.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(models.User)
	return user, ok
}

// WithUser stores the authenticated account on the context and tags the
// request logger with the account id.
func WithUser(ctx context.Context, user models.User) context.Context {
	ctx = context.WithValue(ctx, userCtxKey{}, user)
	return logging.WithUserID(ctx, user.ID)
}

// Session authenticates requests from the access-token cookie or bearer
// header. When the access token has expired but the refresh cookie still
// verifies, the middleware renews the pair in place and sets fresh cookies,
// so callers never observe the expiry. A refresh token that was superseded
// by a newer login cannot renew and the request is rejected.
type Session struct {
	manager *auth.Manager
}

// NewSession constructs the session middleware around the token manager.
func NewSession(manager *auth.Manager) *Session {
	if manager == nil {
		panic("middleware: session manager must not be nil")
	}
	return &Session{manager: manager}
}

// Require rejects unauthenticated requests with 401.
func (s *Session) Require(next http.Handler) http.Handler {
	return s.wrap(next, true, false)
}

// Optional resolves the viewer identity when credentials are present but
// lets anonymous requests through untouched.
func (s *Session) Optional(next http.Handler) http.Handler {
	return s.wrap(next, false, false)
}

// RequireAdmin rejects unauthenticated requests with 401 and authenticated
// non-admin accounts with 403.
func (s *Session) RequireAdmin(next http.Handler) http.Handler {
	return s.wrap(next, true, true)
}

func (s *Session) wrap(next http.Handler, required, adminOnly bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, renewed, err := s.resolve(w, r)
		if err != nil {
			if required {
				denyUnauthorized(w, err)
				return
			}
			// Anonymous access is fine here; drop the bad credentials.
			next.ServeHTTP(w, r)
			return
		}

		if user.ID == "" {
			if required {
				denyUnauthorized(w, auth.ErrTokenInvalid)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Public browse routes stay open to banned viewers; only routes
		// that demand a session enforce the ban.
		if required && user.IsBanned {
			writeAuthError(w, http.StatusForbidden, "account is banned")
			return
		}
		if adminOnly && user.Role != models.RoleAdmin {
			writeAuthError(w, http.StatusForbidden, "admin access required")
			return
		}

		if renewed {
			logging.FromContext(r.Context()).Info("session renewed", "user_id", user.ID)
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// resolve extracts credentials and authenticates them. A zero user with nil
// error means no credentials were presented. renewed reports whether a new
// token pair was issued and set on the response.
func (s *Session) resolve(w http.ResponseWriter, r *http.Request) (models.User, bool, error) {
	access := accessToken(r)
	refresh := refreshToken(r)

	if access == "" && refresh == "" {
		return models.User{}, false, nil
	}

	if access != "" {
		user, err := s.manager.Authenticate(r.Context(), access)
		if err == nil {
			return user, false, nil
		}
		if !errors.Is(err, auth.ErrTokenExpired) || refresh == "" {
			return models.User{}, false, err
		}
	}

	tokens, user, err := s.manager.Refresh(r.Context(), refresh)
	if err != nil {
		return models.User{}, false, err
	}

	SetSessionCookies(w, tokens)
	return user, true, nil
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func refreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}

// SetSessionCookies writes the token pair as httpOnly cookies. SameSite=None
// lets browser clients on other origins send them; that mode requires the
// Secure flag.
func SetSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, sessionCookie(AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, sessionCookie(RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

// ClearSessionCookies expires both session cookies.
func ClearSessionCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, sessionCookie(AccessCookie, "", expired))
	http.SetCookie(w, sessionCookie(RefreshCookie, "", expired))
}

func sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func denyUnauthorized(w http.ResponseWriter, err error) {
	message := "authentication required"
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		message = "session expired"
	case errors.Is(err, auth.ErrRefreshMismatch):
		message = "session superseded"
	}
	writeAuthError(w, http.StatusUnauthorized, message)
}

// writeAuthError emits the uniform response envelope. The handlers package
// owns the canonical writer; this local copy avoids an import cycle.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":    false,
		"statusCode": status,
		"message":    message,
		"data":       nil,
		"errors":     []string{message},
	})
}
