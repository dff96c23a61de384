package handlers

import (
	"net/http"
	"time"

	"github.com/cinevo/backend/internal/media"
	"github.com/cinevo/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	DB            Pinger
	Users         UserStore
	AdminUsers    AdminUserStore
	Sessions      SessionManager
	Session       *middleware.Session
	Feed          FeedService
	Videos        VideoStore
	AdminVideos   AdminVideoStore
	Reactions     ReactionStore
	Progress      ProgressStore
	Subscriptions SubscriptionStore
	Blobs         media.BlobStore
	Prober        DurationProber
	History       HistoryRecorder
	AuthLimiter   RateLimiter
	NowFunc       func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Session
// handling is per route: public feed routes use optional auth so viewer
// reactions join in when credentials are present.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB, NowFunc: deps.NowFunc}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Feed: deps.Feed, Blobs: deps.Blobs, Limiter: deps.AuthLimiter, NowFunc: deps.NowFunc}
	videos := VideoHandler{Videos: deps.Videos, Feed: deps.Feed, Reactions: deps.Reactions, Blobs: deps.Blobs, Prober: deps.Prober, History: deps.History, NowFunc: deps.NowFunc}
	progress := ProgressHandler{Progress: deps.Progress, Videos: deps.Videos, Feed: deps.Feed, NowFunc: deps.NowFunc}
	subs := SubscriptionHandler{Subscriptions: deps.Subscriptions, Users: deps.Users}
	admin := AdminHandler{Users: deps.AdminUsers, Videos: deps.AdminVideos}

	session := deps.Session
	optional := func(h http.HandlerFunc) http.Handler { return session.Optional(h) }
	authed := func(h http.HandlerFunc) http.Handler { return session.Require(h) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return session.RequireAdmin(h) }

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", auth.Register)
	mux.HandleFunc("POST /api/v1/users/login", auth.Login)
	mux.HandleFunc("POST /api/v1/users/refresh", auth.Refresh)

	mux.Handle("GET /api/v1/videos", optional(videos.List))
	mux.Handle("GET /api/v1/videos/shorts/feed", optional(videos.Shorts))
	mux.Handle("GET /api/v1/videos/{videoId}", optional(videos.Detail))
	mux.Handle("GET /api/v1/videos/{videoId}/recommendations", optional(videos.Recommendations))
	mux.Handle("GET /api/v1/users/{userId}/profile", optional(videos.Profile))
	mux.Handle("GET /api/v1/channels/{username}", optional(videos.Channel))

	mux.Handle("POST /api/v1/users/logout", authed(auth.Logout))
	mux.Handle("GET /api/v1/users/me", authed(auth.Me))
	mux.Handle("PATCH /api/v1/users/me", authed(auth.UpdateAccount))
	mux.Handle("POST /api/v1/users/change-password", authed(auth.ChangePassword))
	mux.Handle("PATCH /api/v1/users/avatar", authed(auth.UpdateAvatar))
	mux.Handle("PATCH /api/v1/users/cover", authed(auth.UpdateCover))
	mux.Handle("GET /api/v1/users/history", authed(auth.History))

	mux.Handle("POST /api/v1/videos", authed(videos.Publish))
	mux.Handle("PATCH /api/v1/videos/{videoId}", authed(videos.Update))
	mux.Handle("DELETE /api/v1/videos/{videoId}", authed(videos.Delete))
	mux.Handle("PATCH /api/v1/videos/{videoId}/publish", authed(videos.TogglePublish))
	mux.Handle("POST /api/v1/videos/{videoId}/react", authed(videos.React))

	mux.Handle("POST /api/v1/subscriptions/{channelId}", authed(subs.Toggle))

	mux.Handle("POST /api/v1/watch-progress", authed(progress.Upsert))
	mux.Handle("GET /api/v1/watch-progress/continue-watching", authed(progress.ContinueWatching))
	mux.Handle("GET /api/v1/watch-progress/{videoId}", authed(progress.Get))

	mux.Handle("DELETE /api/v1/admin/videos/{videoId}", adminOnly(admin.DeleteVideo))
	mux.Handle("PATCH /api/v1/admin/users/{userId}/ban", adminOnly(admin.ToggleBan))
	mux.Handle("GET /api/v1/admin/users", adminOnly(admin.ListUsers))
	mux.Handle("GET /api/v1/admin/analytics", adminOnly(admin.Analytics))
}
