package handlers

import (
	"net/http"
	"strings"

	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/models"
	"github.com/cinevo/backend/internal/repositories"
)

// AdminHandler implements the moderation and analytics surface. Routing
// guards these endpoints behind the admin session middleware.
type AdminHandler struct {
	Users  AdminUserStore
	Videos AdminVideoStore
}

// DeleteVideo handles DELETE /api/v1/admin/videos/{videoId}. Unlike the
// owner route, any video may be removed.
func (h AdminHandler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := r.PathValue("videoId")

	if err := h.Videos.Delete(ctx, videoID); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	logging.FromContext(ctx).Info("video removed by admin", "video_id", videoID)
	respond(ctx, w, http.StatusOK, "video deleted", nil)
}

// ToggleBan handles PATCH /api/v1/admin/users/{userId}/ban. Admin accounts
// cannot be banned.
func (h AdminHandler) ToggleBan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userId")

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	if user.Role == models.RoleAdmin {
		fail(ctx, w, http.StatusForbidden, "admin accounts cannot be banned")
		return
	}

	banned := !user.IsBanned
	if err := h.Users.SetBanned(ctx, userID, banned); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	message := "user unbanned"
	if banned {
		message = "user banned"
	}
	logging.FromContext(ctx).Info(message, "user_id", userID)
	respond(ctx, w, http.StatusOK, message, map[string]any{"isBanned": banned})
}

// ListUsers handles GET /api/v1/admin/users with search, role, and banned
// filters.
func (h AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := repositories.UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Role:   strings.TrimSpace(r.URL.Query().Get("role")),
		Banned: queryBoolPtr(r, "banned"),
	}
	page, limit := feed.CoercePage(queryInt(r, "page", 1), queryInt(r, "limit", 20), 20)

	users, total, err := h.Users.List(ctx, filter, page, limit)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	type adminUserRow struct {
		account
		IsBanned bool `json:"isBanned"`
	}
	rows := make([]adminUserRow, 0, len(users))
	for _, user := range users {
		rows = append(rows, adminUserRow{account: toAccount(user), IsBanned: user.IsBanned})
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{
		"users": rows,
		"meta":  models.NewPageMeta(page, limit, total),
	})
}

// Analytics handles GET /api/v1/admin/analytics.
func (h AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userStats, err := h.Users.Stats(ctx)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	videoStats, engagement, err := h.Videos.Stats(ctx)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{
		"users":      userStats,
		"videos":     videoStats,
		"engagement": engagement,
	})
}
