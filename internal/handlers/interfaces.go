package handlers

import (
	"context"

	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/models"
	"github.com/cinevo/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth and
// account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// SessionManager issues, renews, and revokes session token pairs.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, models.User, error)
	Revoke(ctx context.Context, userID string) error
}

// FeedService composes catalog reads into viewer-personalized responses.
type FeedService interface {
	List(ctx context.Context, filter feed.Filter, sort feed.Sort, page, limit int, viewerID string) (feed.VideoPage, error)
	Detail(ctx context.Context, videoID, viewerID string) (feed.VideoItem, error)
	Recommendations(ctx context.Context, videoID string, limit int) ([]feed.VideoItem, error)
	Shorts(ctx context.Context, limit int, viewerID string) ([]feed.VideoItem, error)
	Channel(ctx context.Context, username, viewerID string) (feed.ChannelProfile, error)
	Profile(ctx context.Context, userID string) (feed.UserProfile, error)
	History(ctx context.Context, viewerID string, limit int) ([]feed.VideoItem, error)
	Decorate(ctx context.Context, videos []models.Video, viewerID string) ([]feed.VideoItem, error)
}

// VideoStore captures the catalog writes required by the video handlers.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	TogglePublish(ctx context.Context, id string) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// ReactionStore applies reaction transitions atomically.
type ReactionStore interface {
	Apply(ctx context.Context, userID, videoID string, desired *string) (models.Video, string, error)
}

// ProgressStore captures watch-progress persistence.
type ProgressStore interface {
	Upsert(ctx context.Context, progress models.WatchProgress) (models.WatchProgress, error)
	Find(ctx context.Context, userID, videoID string) (models.WatchProgress, error)
	ContinueWatching(ctx context.Context, userID string, limit int) ([]models.WatchProgress, error)
}

// SubscriptionStore toggles channel subscriptions.
type SubscriptionStore interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// AdminUserStore captures the account operations behind the admin surface.
type AdminUserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	SetBanned(ctx context.Context, userID string, banned bool) error
	List(ctx context.Context, filter repositories.UserFilter, page, limit int) ([]models.User, int64, error)
	Stats(ctx context.Context) (repositories.UserStats, error)
}

// AdminVideoStore captures the catalog operations behind the admin surface.
type AdminVideoStore interface {
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (repositories.VideoStats, repositories.EngagementStats, error)
}

// HistoryRecorder schedules asynchronous watch-history appends.
type HistoryRecorder interface {
	Record(userID, videoID string)
}

// DurationProber resolves a video's duration in seconds from its media.
type DurationProber interface {
	Duration(ctx context.Context, location string) (int, error)
}
