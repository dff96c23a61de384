package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cinevo/backend/internal/db"
	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/models"
	"github.com/cinevo/backend/internal/reaction"
)

// PostgresReactionRepository provides PostgreSQL-backed persistence for
// viewer reactions.
type PostgresReactionRepository struct {
	pool db.Pool
}

// NewPostgresReactionRepository constructs a reaction repository backed by PostgreSQL.
func NewPostgresReactionRepository(pool db.Pool) *PostgresReactionRepository {
	return &PostgresReactionRepository{pool: pool}
}

// ForViewer returns the viewer's reactions on the given videos keyed by
// video ID.
func (r *PostgresReactionRepository) ForViewer(ctx context.Context, viewerID string, videoIDs []string) (map[string]string, error) {
	reactions := make(map[string]string, len(videoIDs))
	if len(videoIDs) == 0 {
		return reactions, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT video_id, type
        FROM reactions
        WHERE user_id = $1 AND video_id = ANY($2)
    `, viewerID, videoIDs)
	if err != nil {
		return nil, fmt.Errorf("query reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var videoID, reactionType string
		if err := rows.Scan(&videoID, &reactionType); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions[videoID] = reactionType
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}

	return reactions, nil
}

// Apply resolves the reaction transition and writes the row change together
// with the counter adjustment in one transaction. The video row is locked
// first, which serializes concurrent reactions to the same video and keeps
// the counters consistent with the reaction rows.
func (r *PostgresReactionRepository) Apply(ctx context.Context, userID, videoID string, desired *string) (models.Video, string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.Video{}, "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE`, videoID)
	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, "", ErrNotFound
		}
		return models.Video{}, "", fmt.Errorf("lock video: %w", err)
	}

	var current string
	err = tx.QueryRow(ctx, `
        SELECT type FROM reactions WHERE user_id = $1 AND video_id = $2
    `, userID, videoID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, "", fmt.Errorf("select reaction: %w", err)
	}

	t, err := reaction.Resolve(current, desired)
	if err != nil {
		return models.Video{}, "", err
	}

	now := time.Now().UTC()
	switch t.Op {
	case reaction.OpCreate:
		_, err = tx.Exec(ctx, `
            INSERT INTO reactions (id, user_id, video_id, type, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $5)
        `, uuid.NewString(), userID, videoID, t.NewType, now)
	case reaction.OpUpdate:
		_, err = tx.Exec(ctx, `
            UPDATE reactions SET type = $3, updated_at = $4
            WHERE user_id = $1 AND video_id = $2
        `, userID, videoID, t.NewType, now)
	case reaction.OpDelete:
		_, err = tx.Exec(ctx, `
            DELETE FROM reactions WHERE user_id = $1 AND video_id = $2
        `, userID, videoID)
	}
	if err != nil {
		return models.Video{}, "", fmt.Errorf("write reaction: %w", err)
	}

	if t.LikesDelta != 0 || t.DislikesDelta != 0 {
		row := tx.QueryRow(ctx, `
            UPDATE videos
            SET likes = GREATEST(likes + $2, 0),
                dislikes = GREATEST(dislikes + $3, 0),
                updated_at = $4
            WHERE id = $1
            RETURNING `+videoColumns+`
        `, videoID, t.LikesDelta, t.DislikesDelta, now)
		video, err = scanVideo(row)
		if err != nil {
			return models.Video{}, "", fmt.Errorf("adjust counters: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Video{}, "", fmt.Errorf("commit transaction: %w", err)
	}

	return video, t.NewType, nil
}

var _ ReactionRepository = (*PostgresReactionRepository)(nil)
var _ feed.ReactionSource = (*PostgresReactionRepository)(nil)
