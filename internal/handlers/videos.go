package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/media"
	"github.com/cinevo/backend/internal/middleware"
	"github.com/cinevo/backend/internal/models"
)

// VideoHandler implements the video catalog endpoints: feed queries, detail
// views, publishing, and reactions.
type VideoHandler struct {
	Videos    VideoStore
	Feed      FeedService
	Reactions ReactionStore
	Blobs     media.BlobStore
	Prober    DurationProber
	History   HistoryRecorder
	NowFunc   func() time.Time
}

// List handles GET /api/v1/videos. Anonymous viewers get the same rows
// without the userReaction join.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, sort, page, limit := feedQuery(r)
	result, err := h.Feed.List(ctx, filter, sort, page, limit, viewerID(r))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", result)
}

// Detail handles GET /api/v1/videos/{videoId}. Every successful fetch
// increments the view counter; authenticated fetches also land in the
// viewer's watch history, asynchronously.
func (h VideoHandler) Detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := r.PathValue("videoId")

	item, err := h.Feed.Detail(ctx, videoID, viewerID(r))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	if viewer := viewerID(r); viewer != "" && h.History != nil {
		h.History.Record(viewer, videoID)
	}

	respond(ctx, w, http.StatusOK, "ok", item)
}

// Recommendations handles GET /api/v1/videos/{videoId}/recommendations.
func (h VideoHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.Feed.Recommendations(ctx, r.PathValue("videoId"), queryInt(r, "limit", 10))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{"videos": items})
}

// Shorts handles GET /api/v1/videos/shorts/feed.
func (h VideoHandler) Shorts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.Feed.Shorts(ctx, queryInt(r, "limit", 10), viewerID(r))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", map[string]any{"videos": items})
}

// Publish handles POST /api/v1/videos. The media file is required and its
// upload failure aborts the request; the thumbnail is optional and a failed
// thumbnail upload degrades to an empty one.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	owner, _ := middleware.UserFrom(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		fail(ctx, w, http.StatusBadRequest, "title is required")
		return
	}

	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		category = string(models.CategoryOther)
	}
	if !models.ValidCategory(category) {
		fail(ctx, w, http.StatusBadRequest, "unknown category")
		return
	}

	if !hasUpload(r, "video") {
		fail(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}

	mediaURL, err := saveUpload(ctx, h.Blobs, media.FolderVideos, r, "video")
	if err != nil {
		logger.Error("video upload failed", "error", err)
		fail(ctx, w, http.StatusInternalServerError, "failed to store video")
		return
	}

	thumbnailURL := ""
	if hasUpload(r, "thumbnail") {
		thumbnailURL, err = saveUpload(ctx, h.Blobs, media.FolderThumbnails, r, "thumbnail")
		if err != nil {
			logger.Warn("thumbnail upload failed", "error", err)
			thumbnailURL = ""
		}
	}

	duration := formInt(r, "duration")
	if duration <= 0 && h.Prober != nil {
		probed, err := h.Prober.Duration(ctx, mediaURL)
		if err != nil {
			logger.Warn("duration probe failed", "error", err)
		} else {
			duration = probed
		}
	}
	if duration < 0 {
		duration = 0
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     owner.ID,
		Title:       title,
		Description: strings.TrimSpace(r.FormValue("description")),
		MediaURL:    mediaURL,
		Thumbnail:   thumbnailURL,
		Duration:    duration,
		IsPublished: true,
		IsShort:     duration <= models.ShortMaxDuration,
		Category:    models.Category(category),
		Tags:        splitTags(r.FormValue("tags")),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	items, err := h.Feed.Decorate(ctx, []models.Video{video}, owner.ID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusCreated, "video published", items[0])
}

// Update handles PATCH /api/v1/videos/{videoId}. Only the owner may edit.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	video, ok := h.loadOwned(w, r, viewer, false)
	if !ok {
		return
	}

	var req struct {
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Category    *string   `json:"category"`
		Tags        *[]string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			fail(ctx, w, http.StatusBadRequest, "title must not be empty")
			return
		}
		video.Title = title
	}
	if req.Description != nil {
		video.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		if !models.ValidCategory(*req.Category) {
			fail(ctx, w, http.StatusBadRequest, "unknown category")
			return
		}
		video.Category = models.Category(*req.Category)
	}
	if req.Tags != nil {
		video.Tags = normalizeTags(*req.Tags)
	}

	video.UpdatedAt = h.now()
	if err := h.Videos.Update(ctx, video); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	items, err := h.Feed.Decorate(ctx, []models.Video{video}, viewer.ID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "video updated", items[0])
}

// Delete handles DELETE /api/v1/videos/{videoId}. The owner or an admin may
// delete.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	video, ok := h.loadOwned(w, r, viewer, true)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "video deleted", nil)
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	video, ok := h.loadOwned(w, r, viewer, false)
	if !ok {
		return
	}

	updated, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	items, err := h.Feed.Decorate(ctx, []models.Video{updated}, viewer.ID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "publication toggled", items[0])
}

// React handles POST /api/v1/videos/{videoId}/react. A null type removes
// the viewer's reaction; repeating the current reaction is a no-op.
func (h VideoHandler) React(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)

	var req struct {
		Type *string `json:"type"`
	}
	if err := decodeJSON(r, &req); err != nil {
		fail(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	video, result, err := h.Reactions.Apply(ctx, viewer.ID, r.PathValue("videoId"), req.Type)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	items, err := h.Feed.Decorate(ctx, []models.Video{video}, "")
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	// The decorated row carries the counters Apply just committed; the
	// viewer's resulting state comes from the transition itself.
	item := items[0]
	item.UserReaction = nil
	if result != "" {
		item.UserReaction = &result
	}

	respond(ctx, w, http.StatusOK, "reaction recorded", item)
}

// Profile handles GET /api/v1/users/{userId}/profile.
func (h VideoHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	profile, err := h.Feed.Profile(ctx, r.PathValue("userId"))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", profile)
}

// Channel handles GET /api/v1/channels/{username}.
func (h VideoHandler) Channel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channel, err := h.Feed.Channel(ctx, r.PathValue("username"), viewerID(r))
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	respond(ctx, w, http.StatusOK, "ok", channel)
}

// loadOwned fetches the path video and enforces ownership. When allowAdmin
// is set, admins pass the ownership check.
func (h VideoHandler) loadOwned(w http.ResponseWriter, r *http.Request, viewer models.User, allowAdmin bool) (models.Video, bool) {
	ctx := r.Context()

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		failWith(ctx, w, err, "")
		return models.Video{}, false
	}

	if video.OwnerID != viewer.ID && !(allowAdmin && viewer.Role == models.RoleAdmin) {
		fail(ctx, w, http.StatusForbidden, "you do not own this video")
		return models.Video{}, false
	}

	return video, true
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func viewerID(r *http.Request) string {
	if user, ok := middleware.UserFrom(r.Context()); ok {
		return user.ID
	}
	return ""
}

func splitTags(raw string) []string {
	return normalizeTags(strings.Split(raw, ","))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
