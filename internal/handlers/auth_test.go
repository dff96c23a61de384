package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/middleware"
	"github.com/cinevo/backend/internal/models"
	"github.com/cinevo/backend/internal/repositories"
)

type fakeUserStore struct {
	users     map[string]models.User
	createErr error
	updateErr error
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]models.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.users {
		if existing.Username == user.Username {
			return &repositories.ConflictError{Field: "username"}
		}
		if existing.Email == user.Email {
			return &repositories.ConflictError{Field: "email"}
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	identifier = strings.ToLower(identifier)
	for _, u := range f.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (f *fakeUserStore) Update(_ context.Context, user models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

type fakeSessionManager struct {
	issued     []string
	revoked    []string
	issueErr   error
	refreshErr error
	user       models.User
}

func (f *fakeSessionManager) Issue(_ context.Context, userID string) (models.SessionTokens, error) {
	if f.issueErr != nil {
		return models.SessionTokens{}, f.issueErr
	}
	f.issued = append(f.issued, userID)
	now := time.Now()
	return models.SessionTokens{
		AccessToken:      "access-" + userID,
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     "refresh-" + userID,
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
	}, nil
}

func (f *fakeSessionManager) Refresh(ctx context.Context, _ string) (models.SessionTokens, models.User, error) {
	if f.refreshErr != nil {
		return models.SessionTokens{}, models.User{}, f.refreshErr
	}
	tokens, err := f.Issue(ctx, f.user.ID)
	return tokens, f.user, err
}

func (f *fakeSessionManager) Revoke(_ context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeFeedService struct {
	page    feed.VideoPage
	item    feed.VideoItem
	items   []feed.VideoItem
	channel feed.ChannelProfile
	profile feed.UserProfile

	detailErr error

	historyUser  string
	historyLimit int
}

func (f *fakeFeedService) List(_ context.Context, _ feed.Filter, _ feed.Sort, _, _ int, _ string) (feed.VideoPage, error) {
	return f.page, nil
}

func (f *fakeFeedService) Detail(_ context.Context, videoID, _ string) (feed.VideoItem, error) {
	if f.detailErr != nil {
		return feed.VideoItem{}, f.detailErr
	}
	item := f.item
	item.ID = videoID
	return item, nil
}

func (f *fakeFeedService) Recommendations(_ context.Context, _ string, _ int) ([]feed.VideoItem, error) {
	return f.items, nil
}

func (f *fakeFeedService) Shorts(_ context.Context, _ int, _ string) ([]feed.VideoItem, error) {
	return f.items, nil
}

func (f *fakeFeedService) Channel(_ context.Context, _, _ string) (feed.ChannelProfile, error) {
	return f.channel, nil
}

func (f *fakeFeedService) Profile(_ context.Context, _ string) (feed.UserProfile, error) {
	return f.profile, nil
}

func (f *fakeFeedService) History(_ context.Context, viewerID string, limit int) ([]feed.VideoItem, error) {
	f.historyUser = viewerID
	f.historyLimit = limit
	return f.items, nil
}

func (f *fakeFeedService) Decorate(_ context.Context, videos []models.Video, _ string) ([]feed.VideoItem, error) {
	items := make([]feed.VideoItem, 0, len(videos))
	for _, v := range videos {
		items = append(items, feed.VideoItem{
			ID:       v.ID,
			Title:    v.Title,
			Duration: v.Duration,
			IsShort:  v.IsShort,
			Likes:    v.Likes,
			Dislikes: v.Dislikes,
			Owner:    models.PublicProfile{ID: v.OwnerID, Username: "owner-" + v.OwnerID},
		})
	}
	return items, nil
}

type fakeBlobStore struct {
	saved   []string
	saveErr error
	failOn  string
}

func (f *fakeBlobStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	if f.failOn != "" && strings.HasPrefix(name, f.failOn+"/") {
		return "", errors.New("upload refused")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.saved = append(f.saved, name)
	return "https://cdn.test/" + name, nil
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (s *stubLimiter) Allow(key string) bool {
	s.keys = append(s.keys, key)
	return s.allow
}

type envelope struct {
	Success    bool            `json:"success"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Errors     []string        `json:"errors"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return env
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create file part %s: %v", field, err)
		}
		if _, err := part.Write([]byte("file-bytes")); err != nil {
			t.Fatalf("write file part %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func authedRequest(req *http.Request, user models.User) *http.Request {
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(hashed)
}

func newAuthHandler(users *fakeUserStore) (AuthHandler, *fakeSessionManager, *fakeBlobStore) {
	sessions := &fakeSessionManager{}
	blobs := &fakeBlobStore{}
	handler := AuthHandler{
		Users:    users,
		Sessions: sessions,
		Feed:     &fakeFeedService{},
		Blobs:    blobs,
		NowFunc:  func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) },
	}
	return handler, sessions, blobs
}

func TestRegisterCreatesAccount(t *testing.T) {
	users := newFakeUserStore()
	handler, sessions, blobs := newAuthHandler(users)

	req := multipartRequest(t, "/api/v1/users/register", map[string]string{
		"username": "Alice_99",
		"email":    "Alice@Example.COM",
		"password": "hunter2hunter2",
	}, map[string]string{
		"avatar": "me.PNG",
	})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(users.users) != 1 {
		t.Fatalf("expected 1 stored user, got %d", len(users.users))
	}
	var created models.User
	for _, u := range users.users {
		created = u
	}
	if created.Username != "alice_99" || created.Email != "alice@example.com" {
		t.Fatalf("expected lowercased identity, got %q / %q", created.Username, created.Email)
	}
	if created.DisplayName != "alice_99" {
		t.Fatalf("expected display name to default to username, got %q", created.DisplayName)
	}
	if created.Role != models.RoleUser {
		t.Fatalf("expected role user, got %q", created.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("hunter2hunter2")); err != nil {
		t.Fatalf("stored password does not verify: %v", err)
	}
	if !strings.HasPrefix(created.Avatar, "https://cdn.test/avatars/") || !strings.HasSuffix(created.Avatar, ".png") {
		t.Fatalf("unexpected avatar url %q", created.Avatar)
	}

	if len(sessions.issued) != 1 || sessions.issued[0] != created.ID {
		t.Fatalf("expected session issued for new account, got %v", sessions.issued)
	}
	if len(blobs.saved) != 1 {
		t.Fatalf("expected one upload, got %v", blobs.saved)
	}

	cookies := rec.Result().Cookies()
	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
	}
	if !names[middleware.AccessCookie] || !names[middleware.RefreshCookie] {
		t.Fatalf("expected session cookies, got %v", cookies)
	}

	env := decodeBody(t, rec)
	if !env.Success || env.Message != "account created" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if strings.Contains(string(env.Data), created.Password) {
		t.Fatal("response must not leak the password hash")
	}
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		files  map[string]string
		want   string
	}{
		{
			name:   "missing avatar",
			fields: map[string]string{"username": "alice", "email": "a@example.com", "password": "hunter2hunter2"},
			files:  nil,
			want:   "avatar image is required",
		},
		{
			name:   "bad username",
			fields: map[string]string{"username": "a!", "email": "a@example.com", "password": "hunter2hunter2"},
			files:  map[string]string{"avatar": "me.png"},
			want:   "username must be 3-30 characters: lowercase letters, digits, underscores",
		},
		{
			name:   "bad email",
			fields: map[string]string{"username": "alice", "email": "nope", "password": "hunter2hunter2"},
			files:  map[string]string{"avatar": "me.png"},
			want:   "invalid email address",
		},
		{
			name:   "short password",
			fields: map[string]string{"username": "alice", "email": "a@example.com", "password": "short"},
			files:  map[string]string{"avatar": "me.png"},
			want:   "password must be at least 8 characters",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, _, _ := newAuthHandler(newFakeUserStore())

			rec := httptest.NewRecorder()
			handler.Register(rec, multipartRequest(t, "/api/v1/users/register", tc.fields, tc.files))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if env := decodeBody(t, rec); env.Message != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, env.Message)
			}
		})
	}
}

func TestRegisterConflictNamesField(t *testing.T) {
	users := newFakeUserStore(models.User{ID: "u1", Username: "alice", Email: "alice@example.com"})
	handler, _, _ := newAuthHandler(users)

	req := multipartRequest(t, "/api/v1/users/register", map[string]string{
		"username": "bob",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, map[string]string{"avatar": "me.png"})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if env := decodeBody(t, rec); env.Message != "email already in use" {
		t.Fatalf("expected conflict field in message, got %q", env.Message)
	}
}

func TestRegisterCoverUploadFailureDegrades(t *testing.T) {
	users := newFakeUserStore()
	handler, _, blobs := newAuthHandler(users)
	blobs.failOn = "covers"

	req := multipartRequest(t, "/api/v1/users/register", map[string]string{
		"username": "alice",
		"email":    "a@example.com",
		"password": "hunter2hunter2",
	}, map[string]string{"avatar": "me.png", "coverImage": "cover.jpg"})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected cover failure to degrade, got %d", rec.Code)
	}
	for _, u := range users.users {
		if u.CoverImage != "" {
			t.Fatalf("expected empty cover image, got %q", u.CoverImage)
		}
		if u.Avatar == "" {
			t.Fatal("expected avatar to be stored")
		}
	}
}

func TestRegisterRateLimited(t *testing.T) {
	handler, _, _ := newAuthHandler(newFakeUserStore())
	limiter := &stubLimiter{allow: false}
	handler.Limiter = limiter

	req := multipartRequest(t, "/api/v1/users/register", map[string]string{
		"username": "alice",
		"email":    "a@example.com",
		"password": "hunter2hunter2",
	}, map[string]string{"avatar": "me.png"})
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if len(limiter.keys) != 1 || !strings.HasPrefix(limiter.keys[0], "register:") {
		t.Fatalf("expected scoped limiter key, got %v", limiter.keys)
	}
}

func TestLoginWithUsernameOrEmail(t *testing.T) {
	user := models.User{
		ID:       "u1",
		Username: "alice",
		Email:    "alice@example.com",
		Password: hashPassword(t, "hunter2hunter2"),
	}

	for _, body := range []string{
		`{"username":"alice","password":"hunter2hunter2"}`,
		`{"email":"alice@example.com","password":"hunter2hunter2"}`,
	} {
		handler, sessions, _ := newAuthHandler(newFakeUserStore(user))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("body %s: expected 200, got %d: %s", body, rec.Code, rec.Body.String())
		}
		if len(sessions.issued) != 1 || sessions.issued[0] != "u1" {
			t.Fatalf("body %s: expected session for u1, got %v", body, sessions.issued)
		}
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	user := models.User{ID: "u1", Username: "alice", Password: hashPassword(t, "hunter2hunter2")}
	handler, sessions, _ := newAuthHandler(newFakeUserStore(user))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"alice","password":"wrong-password"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(sessions.issued) != 0 {
		t.Fatal("expected no session issued")
	}
	// Unknown identifiers read the same as wrong passwords.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"nobody","password":"hunter2hunter2"}`))
	rec = httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", rec.Code)
	}
}

func TestLoginRejectsBannedAccount(t *testing.T) {
	user := models.User{ID: "u1", Username: "alice", Password: hashPassword(t, "hunter2hunter2"), IsBanned: true}
	handler, _, _ := newAuthHandler(newFakeUserStore(user))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"username":"alice","password":"hunter2hunter2"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if env := decodeBody(t, rec); env.Message != "account is banned" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestRefreshFromCookie(t *testing.T) {
	handler, sessions, _ := newAuthHandler(newFakeUserStore())
	sessions.user = models.User{ID: "u1", Username: "alice"}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshCookie, Value: "refresh-u1"})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 2 {
		t.Fatal("expected fresh session cookies")
	}
}

func TestRefreshFromBody(t *testing.T) {
	handler, sessions, _ := newAuthHandler(newFakeUserStore())
	sessions.user = models.User{ID: "u1"}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh",
		strings.NewReader(`{"refreshToken":"refresh-u1"}`))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRefreshWithoutTokenFails(t *testing.T) {
	handler, _, _ := newAuthHandler(newFakeUserStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLogoutRevokesAndClearsCookies(t *testing.T) {
	handler, sessions, _ := newAuthHandler(newFakeUserStore())

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil), models.User{ID: "u1"})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != "u1" {
		t.Fatalf("expected revoke for u1, got %v", sessions.revoked)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Value != "" {
			t.Fatalf("expected cleared cookie %s", c.Name)
		}
	}
}

func TestMeOmitsCredentials(t *testing.T) {
	handler, _, _ := newAuthHandler(newFakeUserStore())

	user := models.User{ID: "u1", Username: "alice", Email: "a@example.com", Password: "bcrypt-hash", RefreshToken: "stored-refresh-token"}
	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil), user)
	rec := httptest.NewRecorder()

	handler.Me(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "bcrypt-hash") || strings.Contains(body, "stored-refresh-token") {
		t.Fatalf("response leaks credentials: %s", body)
	}
	env := decodeBody(t, rec)
	var got account
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if got.Username != "alice" || got.Email != "a@example.com" {
		t.Fatalf("unexpected account %+v", got)
	}
}

func TestChangePassword(t *testing.T) {
	user := models.User{ID: "u1", Username: "alice", Password: hashPassword(t, "old-password-1")}
	users := newFakeUserStore(user)
	handler, _, _ := newAuthHandler(users)

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password",
		strings.NewReader(`{"currentPassword":"old-password-1","newPassword":"new-password-1"}`)), user)
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := users.users["u1"]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("new-password-1")); err != nil {
		t.Fatalf("new password does not verify: %v", err)
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	user := models.User{ID: "u1", Password: hashPassword(t, "old-password-1")}
	handler, _, _ := newAuthHandler(newFakeUserStore(user))

	req := authedRequest(httptest.NewRequest(http.MethodPost, "/api/v1/users/change-password",
		strings.NewReader(`{"currentPassword":"not-it","newPassword":"new-password-1"}`)), user)
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestUpdateAccountPatchSemantics(t *testing.T) {
	user := models.User{ID: "u1", Username: "alice", Email: "old@example.com", DisplayName: "Alice"}
	users := newFakeUserStore(user)
	handler, _, _ := newAuthHandler(users)

	// Only the email is patched; the display name stays.
	req := authedRequest(httptest.NewRequest(http.MethodPatch, "/api/v1/users/me",
		strings.NewReader(`{"email":"New@Example.com"}`)), user)
	rec := httptest.NewRecorder()

	handler.UpdateAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	stored := users.users["u1"]
	if stored.Email != "new@example.com" {
		t.Fatalf("expected lowercased email update, got %q", stored.Email)
	}
	if stored.DisplayName != "Alice" {
		t.Fatalf("expected display name untouched, got %q", stored.DisplayName)
	}

	req = authedRequest(httptest.NewRequest(http.MethodPatch, "/api/v1/users/me",
		strings.NewReader(`{"displayName":"  "}`)), stored)
	rec = httptest.NewRecorder()

	handler.UpdateAccount(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank display name, got %d", rec.Code)
	}
}

func TestHistoryUsesViewer(t *testing.T) {
	handler, _, _ := newAuthHandler(newFakeUserStore())
	feedSvc := &fakeFeedService{items: []feed.VideoItem{{ID: "v1"}}}
	handler.Feed = feedSvc

	req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/v1/users/history?limit=5", nil), models.User{ID: "u1"})
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if feedSvc.historyUser != "u1" || feedSvc.historyLimit != 5 {
		t.Fatalf("expected history for u1 limit 5, got %q/%d", feedSvc.historyUser, feedSvc.historyLimit)
	}
}
