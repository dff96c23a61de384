package repositories

import (
	"context"

	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/models"
)

// VideoStats aggregates catalog totals for the admin dashboard.
type VideoStats struct {
	TotalVideos int64 `json:"totalVideos"`
	TotalViews  int64 `json:"totalViews"`
	TotalLikes  int64 `json:"totalLikes"`
	TotalShorts int64 `json:"totalShorts"`
}

// EngagementStats covers the most recent seven days of uploads and views.
type EngagementStats struct {
	RecentVideos int64 `json:"videosLast7Days"`
	RecentViews  int64 `json:"viewsLast7Days"`
}

// VideoRepository exposes data access for the video catalog.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	SearchPage(ctx context.Context, filter feed.Filter, sort feed.Sort, page, limit int) ([]models.Video, int64, error)
	IncrementViews(ctx context.Context, id string) (models.Video, error)
	Recommend(ctx context.Context, source models.Video, limit int) ([]models.Video, error)
	RandomShorts(ctx context.Context, limit int) ([]models.Video, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	OwnerStats(ctx context.Context, ownerID string) (feed.OwnerStats, error)
	WatchHistoryVideos(ctx context.Context, userID string, limit int) ([]models.Video, error)
	Update(ctx context.Context, video models.Video) error
	TogglePublish(ctx context.Context, id string) (models.Video, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (VideoStats, EngagementStats, error)
}
