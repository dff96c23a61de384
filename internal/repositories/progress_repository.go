package repositories

import (
	"context"

	"github.com/cinevo/backend/internal/models"
)

// ProgressRepository exposes data access for per-viewer watch progress.
type ProgressRepository interface {
	// Upsert stores the viewer's position in a video, replacing any earlier
	// report for the same pair, and returns the stored record.
	Upsert(ctx context.Context, progress models.WatchProgress) (models.WatchProgress, error)
	// Find returns the viewer's progress on one video.
	Find(ctx context.Context, userID, videoID string) (models.WatchProgress, error)
	// ContinueWatching lists partially watched videos, most recently watched
	// first. Completed videos and videos never started are excluded.
	ContinueWatching(ctx context.Context, userID string, limit int) ([]models.WatchProgress, error)
}
