package handlers

import (
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/media"
	"github.com/cinevo/backend/internal/middleware"
	"github.com/cinevo/backend/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// AuthHandler implements registration, login, session renewal, and the
// account-management endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Feed     FeedService
	Blobs    media.BlobStore
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

// account is the caller's own view of their record. Unlike PublicProfile it
// carries the email and role, never the password hash or refresh token.
type account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
	CoverImage  string    `json:"coverImage"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAccount(u models.User) account {
	return account{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		CoverImage:  u.CoverImage,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
	}
}

type sessionResponse struct {
	User   account              `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

// Register handles POST /api/v1/users/register. The request is multipart:
// profile fields plus a required avatar image and an optional cover.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		fail(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	username := strings.ToLower(strings.TrimSpace(r.FormValue("username")))
	email := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")
	displayName := strings.TrimSpace(r.FormValue("displayName"))
	if displayName == "" {
		displayName = username
	}

	if msg := validateCredentials(username, email, password); msg != "" {
		fail(ctx, w, http.StatusBadRequest, msg)
		return
	}
	if !hasUpload(r, "avatar") {
		fail(ctx, w, http.StatusBadRequest, "avatar image is required")
		return
	}

	avatarURL, err := saveUpload(ctx, h.Blobs, media.FolderAvatars, r, "avatar")
	if err != nil {
		logger.Error("avatar upload failed", "error", err)
		fail(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	coverURL := ""
	if hasUpload(r, "coverImage") {
		coverURL, err = saveUpload(ctx, h.Blobs, media.FolderCovers, r, "coverImage")
		if err != nil {
			// Cover art is decorative; registration proceeds without it.
			logger.Warn("cover upload failed", "error", err)
			coverURL = ""
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		fail(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		Username:    username,
		Email:       email,
		DisplayName: displayName,
		Password:    string(hashed),
		Avatar:      avatarURL,
		CoverImage:  coverURL,
		Role:        models.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		fail(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	middleware.SetSessionCookies(w, tokens)
	respond(ctx, w, http.StatusCreated, "account created", sessionResponse{User: toAccount(user), Tokens: tokens})
}

// Login handles POST /api/v1/users/login. The identifier may be a username
// or an email address.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		fail(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		fail(ctx, w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	user, err := h.Users.FindByLogin(ctx, identifier)
	if err != nil {
		logger.Warn("login lookup failed", "identifier", identifier)
		fail(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		fail(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if user.IsBanned {
		fail(ctx, w, http.StatusForbidden, "account is banned")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		fail(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	middleware.SetSessionCookies(w, tokens)
	respond(ctx, w, http.StatusOK, "logged in", sessionResponse{User: toAccount(user), Tokens: tokens})
}

// Refresh handles POST /api/v1/users/refresh. The refresh token comes from
// the cookie or, for non-browser clients, the request body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if c, err := r.Cookie(middleware.RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeJSON(r, &req); err == nil {
			token = strings.TrimSpace(req.RefreshToken)
		}
	}
	if token == "" {
		fail(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, user, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		failWith(ctx, w, err, "unable to refresh session")
		return
	}

	if user.IsBanned {
		fail(ctx, w, http.StatusForbidden, "account is banned")
		return
	}

	middleware.SetSessionCookies(w, tokens)
	respond(ctx, w, http.StatusOK, "session refreshed", sessionResponse{User: toAccount(user), Tokens: tokens})
}

// Logout handles POST /api/v1/users/logout. It revokes the stored refresh
// token so the pair in the wild cannot renew, then clears the cookies.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)

	if err := h.Sessions.Revoke(ctx, user.ID); err != nil {
		failWith(ctx, w, err, "failed to log out")
		return
	}

	middleware.ClearSessionCookies(w)
	respond(ctx, w, http.StatusOK, "logged out", nil)
}

// Me handles GET /api/v1/users/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)
	respond(ctx, w, http.StatusOK, "ok", toAccount(user))
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.NewPassword) < 8 {
		fail(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		fail(ctx, w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logging.FromContext(ctx).Error("failed to hash password", "error", err)
		fail(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	user.Password = string(hashed)
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "password updated", nil)
}

// UpdateAccount handles PATCH /api/v1/users/me for display name and email.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)

	var req struct {
		DisplayName *string `json:"displayName"`
		Email       *string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			fail(ctx, w, http.StatusBadRequest, "display name must not be empty")
			return
		}
		user.DisplayName = name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			fail(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
		user.Email = email
	}

	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "account updated", toAccount(user))
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "avatar", media.FolderAvatars, func(u *models.User, url string) {
		u.Avatar = url
	})
}

// UpdateCover handles PATCH /api/v1/users/cover.
func (h AuthHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.updateImage(w, r, "coverImage", media.FolderCovers, func(u *models.User, url string) {
		u.CoverImage = url
	})
}

func (h AuthHandler) updateImage(w http.ResponseWriter, r *http.Request, field, folder string, apply func(*models.User, string)) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	if !hasUpload(r, field) {
		fail(ctx, w, http.StatusBadRequest, field+" image is required")
		return
	}

	url, err := saveUpload(ctx, h.Blobs, folder, r, field)
	if err != nil {
		logging.FromContext(ctx).Error("image upload failed", "field", field, "error", err)
		fail(ctx, w, http.StatusInternalServerError, "failed to store image")
		return
	}

	apply(&user, url)
	user.UpdatedAt = h.now()
	if err := h.Users.Update(ctx, user); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "image updated", toAccount(user))
}

// History handles GET /api/v1/users/history.
func (h AuthHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := middleware.UserFrom(ctx)

	limit := queryInt(r, "limit", 50)
	items, err := h.Feed.History(ctx, user.ID, limit)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{"videos": items})
}

func validateCredentials(username, email, password string) string {
	if username == "" || email == "" || password == "" {
		return "username, email, and password are required"
	}
	if !usernamePattern.MatchString(username) {
		return "username must be 3-30 characters: lowercase letters, digits, underscores"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "invalid email address"
	}
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	return ""
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
