package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/cinevo/backend/internal/auth"
	"github.com/cinevo/backend/internal/models"
)

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

type memoryCredentialStore struct {
	users map[string]models.User
}

func (m *memoryCredentialStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, errors.New("no such user")
	}
	return user, nil
}

func (m *memoryCredentialStore) SetRefreshToken(_ context.Context, userID, token string) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("no such user")
	}
	user.RefreshToken = token
	m.users[userID] = user
	return nil
}

func newTestSession(users ...models.User) (*Session, *auth.Manager, *memoryCredentialStore) {
	store := &memoryCredentialStore{users: make(map[string]models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	issuer := auth.NewTokenIssuer([]byte(testAccessSecret), []byte(testRefreshSecret), 15*time.Minute, 7*24*time.Hour)
	manager := auth.NewManager(issuer, store)
	return NewSession(manager), manager, store
}

// expiredAccessToken signs a well-formed access token whose lifetime has
// already passed, which is the state the renewal path has to handle.
func expiredAccessToken(t *testing.T, userID string) string {
	t.Helper()

	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}
	return signed
}

func captureUser(seen *models.User, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if user, ok := UserFrom(r.Context()); ok {
			*seen = user
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return body
}

func TestSessionRequireValidAccessCookie(t *testing.T) {
	session, manager, _ := newTestSession(models.User{ID: "user-1", Username: "alice"})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen models.User
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tokens.AccessToken})
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected handler to run")
	}
	if seen.Username != "alice" {
		t.Fatalf("expected alice on context, got %+v", seen)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected no cookie rotation for a valid access token")
	}
}

func TestSessionRequireBearerHeader(t *testing.T) {
	session, manager, _ := newTestSession(models.User{ID: "user-1"})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen models.User
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called || seen.ID != "user-1" {
		t.Fatalf("expected bearer auth to resolve user-1, called=%v seen=%+v", called, seen)
	}
}

func TestSessionRequireRejectsMissingCredentials(t *testing.T) {
	session, _, _ := newTestSession()

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if called {
		t.Fatal("expected handler to be skipped")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["success"] != false {
		t.Fatalf("expected failure envelope, got %v", body)
	}
}

func TestSessionRenewsExpiredAccessToken(t *testing.T) {
	session, manager, store := newTestSession(models.User{ID: "user-1", Username: "alice"})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen models.User
	var called bool
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: expiredAccessToken(t, "user-1")})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected renewal to let the request through, got %d", rec.Code)
	}
	if seen.ID != "user-1" {
		t.Fatalf("expected user-1 on context, got %+v", seen)
	}

	cookies := rec.Result().Cookies()
	fresh := map[string]*http.Cookie{}
	for _, c := range cookies {
		fresh[c.Name] = c
	}
	access, ok := fresh[AccessCookie]
	if !ok || access.Value == "" {
		t.Fatal("expected a fresh access cookie")
	}
	refresh, ok := fresh[RefreshCookie]
	if !ok || refresh.Value == "" {
		t.Fatal("expected a fresh refresh cookie")
	}
	if !access.HttpOnly || !access.Secure || access.SameSite != http.SameSiteNoneMode {
		t.Fatalf("unexpected access cookie attributes %+v", access)
	}
	if store.users["user-1"].RefreshToken != refresh.Value {
		t.Fatal("expected rotated refresh token to be stored")
	}
}

func TestSessionRejectsSupersededRefreshToken(t *testing.T) {
	session, manager, store := newTestSession(models.User{ID: "user-1"})

	old, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	// A later login replaces the stored refresh token.
	if err := store.SetRefreshToken(context.Background(), "user-1", "newer-refresh-token"); err != nil {
		t.Fatalf("replace stored token: %v", err)
	}

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: expiredAccessToken(t, "user-1")})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: old.RefreshToken})
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if called {
		t.Fatal("expected superseded session to be rejected")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["message"] != "session superseded" {
		t.Fatalf("expected superseded message, got %v", body["message"])
	}
}

func TestSessionRejectsTamperedAccessWithoutRenewal(t *testing.T) {
	session, manager, _ := newTestSession(models.User{ID: "user-1"})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "tampered-token"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	// Only expiry triggers the renewal path; tampering never does.
	if called {
		t.Fatal("expected tampered token to be rejected")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionBlocksBannedAccount(t *testing.T) {
	session, manager, _ := newTestSession(models.User{ID: "user-1", IsBanned: true})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tokens.AccessToken})
	rec := httptest.NewRecorder()

	session.Require(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if called {
		t.Fatal("expected banned account to be blocked")
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	body := decodeEnvelope(t, rec)
	if body["message"] != "account is banned" {
		t.Fatalf("unexpected message %v", body["message"])
	}
}

func TestSessionRequireAdmin(t *testing.T) {
	session, manager, _ := newTestSession(
		models.User{ID: "user-1", Role: models.RoleUser},
		models.User{ID: "admin-1", Role: models.RoleAdmin},
	)

	userTokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue user: %v", err)
	}
	adminTokens, err := manager.Issue(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("issue admin: %v", err)
	}

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: userTokens.AccessToken})
	rec := httptest.NewRecorder()

	session.RequireAdmin(captureUser(&seen, &called)).ServeHTTP(rec, req)
	if called || rec.Code != http.StatusForbidden {
		t.Fatalf("expected non-admin to get 403, called=%v code=%d", called, rec.Code)
	}

	called = false
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: adminTokens.AccessToken})
	rec = httptest.NewRecorder()

	session.RequireAdmin(captureUser(&seen, &called)).ServeHTTP(rec, req)
	if !called {
		t.Fatalf("expected admin through, got %d", rec.Code)
	}
	if seen.ID != "admin-1" {
		t.Fatalf("expected admin on context, got %+v", seen)
	}
}

func TestSessionOptionalAllowsAnonymous(t *testing.T) {
	session, _, _ := newTestSession()

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	rec := httptest.NewRecorder()

	session.Optional(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected anonymous request through")
	}
	if seen.ID != "" {
		t.Fatalf("expected no user on context, got %+v", seen)
	}
}

func TestSessionOptionalServesBannedViewer(t *testing.T) {
	session, manager, _ := newTestSession(models.User{ID: "user-1", IsBanned: true})

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: tokens.AccessToken})
	rec := httptest.NewRecorder()

	session.Optional(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected public route to serve banned viewer, got %d", rec.Code)
	}
	if seen.ID != "user-1" {
		t.Fatalf("expected viewer identity on context, got %+v", seen)
	}
}

func TestSessionOptionalDropsBadCredentials(t *testing.T) {
	session, _, _ := newTestSession()

	var called bool
	var seen models.User
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "garbage"})
	rec := httptest.NewRecorder()

	session.Optional(captureUser(&seen, &called)).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected request through despite bad credentials")
	}
	if seen.ID != "" {
		t.Fatalf("expected anonymous context, got %+v", seen)
	}
}

func TestClearSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearSessionCookies(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected both cookies cleared, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Value != "" {
			t.Fatalf("expected empty value for %s", c.Name)
		}
		if c.Expires.After(time.Now()) {
			t.Fatalf("expected %s to be expired", c.Name)
		}
	}
}
