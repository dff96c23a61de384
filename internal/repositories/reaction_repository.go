package repositories

import (
	"context"

	"github.com/cinevo/backend/internal/models"
)

// ReactionRepository exposes data access for viewer reactions.
type ReactionRepository interface {
	// ForViewer returns the viewer's reaction type keyed by video ID for the
	// requested videos. Videos without a reaction are absent from the map.
	ForViewer(ctx context.Context, viewerID string, videoIDs []string) (map[string]string, error)
	// Apply transitions the viewer's reaction on a video to the desired state
	// (nil removes it) and adjusts the video's counters in the same
	// transaction. It returns the updated video and the resulting reaction
	// type, empty when none remains.
	Apply(ctx context.Context, userID, videoID string, desired *string) (models.Video, string, error)
}
