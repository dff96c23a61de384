package handlers

import (
	"net/http"
	"time"

	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/middleware"
	"github.com/cinevo/backend/internal/models"
)

// ProgressHandler implements the watch-progress endpoints.
type ProgressHandler struct {
	Progress ProgressStore
	Videos   VideoStore
	Feed     FeedService
	NowFunc  func() time.Time
}

type progressPayload struct {
	VideoID   string    `json:"videoId"`
	WatchTime int       `json:"watchTime"`
	Completed bool      `json:"completed"`
	WatchedAt time.Time `json:"watchedAt"`
}

func toProgressPayload(p models.WatchProgress) progressPayload {
	return progressPayload{
		VideoID:   p.VideoID,
		WatchTime: p.WatchTime,
		Completed: p.Completed,
		WatchedAt: p.WatchedAt,
	}
}

// Upsert handles POST /api/v1/watch-progress.
func (h ProgressHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	var req struct {
		VideoID   string `json:"videoId"`
		WatchTime int    `json:"watchTime"`
		Completed bool   `json:"completed"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VideoID == "" {
		fail(ctx, w, http.StatusBadRequest, "videoId is required")
		return
	}
	if req.WatchTime < 0 {
		fail(ctx, w, http.StatusBadRequest, "watchTime must not be negative")
		return
	}

	stored, err := h.Progress.Upsert(ctx, models.WatchProgress{
		UserID:    viewer.ID,
		VideoID:   req.VideoID,
		WatchTime: req.WatchTime,
		Completed: req.Completed,
		WatchedAt: h.now(),
	})
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "progress saved", toProgressPayload(stored))
}

// Get handles GET /api/v1/watch-progress/{videoId}.
func (h ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	progress, err := h.Progress.Find(ctx, viewer.ID, r.PathValue("videoId"))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", toProgressPayload(progress))
}

// continueWatchingItem pairs a feed row with the viewer's position in it.
type continueWatchingItem struct {
	feed.VideoItem
	WatchTime       int       `json:"watchTime"`
	ProgressPercent float64   `json:"progressPercent"`
	WatchedAt       time.Time `json:"watchedAt"`
}

// ContinueWatching handles GET /api/v1/watch-progress/continue-watching.
// Rows come back most recently watched first, joined with full video data.
func (h ProgressHandler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	entries, err := h.Progress.ContinueWatching(ctx, viewer.ID, queryInt(r, "limit", 20))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	ids := make([]string, 0, len(entries))
	byVideo := make(map[string]models.WatchProgress, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.VideoID)
		byVideo[entry.VideoID] = entry
	}

	videos, err := h.Videos.ListByIDs(ctx, ids)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	items, err := h.Feed.Decorate(ctx, videos, viewer.ID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	out := make([]continueWatchingItem, 0, len(items))
	for _, item := range items {
		entry := byVideo[item.ID]
		percent := 0.0
		if item.Duration > 0 {
			percent = float64(entry.WatchTime) / float64(item.Duration) * 100
			if percent > 100 {
				percent = 100
			}
		}
		out = append(out, continueWatchingItem{
			VideoItem:       item,
			WatchTime:       entry.WatchTime,
			ProgressPercent: percent,
			WatchedAt:       entry.WatchedAt,
		})
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{"videos": out})
}

func (h ProgressHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
