package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cinevo/backend/internal/db"
	"github.com/cinevo/backend/internal/models"
)

// PostgresProgressRepository provides PostgreSQL-backed persistence for
// watch progress.
type PostgresProgressRepository struct {
	pool db.Pool
}

// NewPostgresProgressRepository constructs a progress repository backed by PostgreSQL.
func NewPostgresProgressRepository(pool db.Pool) *PostgresProgressRepository {
	return &PostgresProgressRepository{pool: pool}
}

// Upsert stores or replaces the viewer's position in a video.
func (r *PostgresProgressRepository) Upsert(ctx context.Context, progress models.WatchProgress) (models.WatchProgress, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.WatchProgress{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}

	row := conn.QueryRow(ctx, `
        INSERT INTO watch_progress (id, user_id, video_id, watch_time, completed, watched_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET watch_time = EXCLUDED.watch_time,
                      completed = EXCLUDED.completed,
                      watched_at = EXCLUDED.watched_at
        RETURNING id, user_id, video_id, watch_time, completed, watched_at
    `, progress.ID, progress.UserID, progress.VideoID, progress.WatchTime,
		progress.Completed, progress.WatchedAt)

	stored, err := scanProgress(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.WatchProgress{}, ErrNotFound
		}
		return models.WatchProgress{}, fmt.Errorf("upsert watch progress: %w", err)
	}
	return stored, nil
}

// Find returns the viewer's progress on one video.
func (r *PostgresProgressRepository) Find(ctx context.Context, userID, videoID string) (models.WatchProgress, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.WatchProgress{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, user_id, video_id, watch_time, completed, watched_at
        FROM watch_progress
        WHERE user_id = $1 AND video_id = $2
    `, userID, videoID)

	progress, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WatchProgress{}, ErrNotFound
		}
		return models.WatchProgress{}, fmt.Errorf("select watch progress: %w", err)
	}
	return progress, nil
}

// ContinueWatching lists unfinished videos, most recently watched first.
func (r *PostgresProgressRepository) ContinueWatching(ctx context.Context, userID string, limit int) ([]models.WatchProgress, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, video_id, watch_time, completed, watched_at
        FROM watch_progress
        WHERE user_id = $1 AND completed = FALSE AND watch_time > 0
        ORDER BY watched_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query watch progress: %w", err)
	}
	defer rows.Close()

	var entries []models.WatchProgress
	for rows.Next() {
		progress, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watch progress: %w", err)
		}
		entries = append(entries, progress)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch progress: %w", err)
	}

	return entries, nil
}

func scanProgress(row pgx.Row) (models.WatchProgress, error) {
	var p models.WatchProgress
	err := row.Scan(&p.ID, &p.UserID, &p.VideoID, &p.WatchTime, &p.Completed, &p.WatchedAt)
	return p, err
}

var _ ProgressRepository = (*PostgresProgressRepository)(nil)
