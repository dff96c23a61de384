package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cinevo/backend/internal/db"
	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/models"
)

const videoColumns = `id, owner_id, title, description, media_url, thumbnail, duration, views, likes, dislikes, is_published, is_short, category, tags, created_at, updated_at`

// PostgresVideoRepository provides PostgreSQL-backed persistence for the
// video catalog.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (`+videoColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    `, video.ID, video.OwnerID, video.Title, video.Description, video.MediaURL,
		video.Thumbnail, video.Duration, video.Views, video.Likes, video.Dislikes,
		video.IsPublished, video.IsShort, video.Category, video.Tags,
		video.CreatedAt, video.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video by its identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return video, nil
}

// ListByIDs fetches the given videos, preserving the order of ids. Unknown
// ids are skipped.
func (r *PostgresVideoRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Video, error) {
	if len(ids) == 0 {
		return []models.Video{}, nil
	}

	videos, err := r.queryVideos(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	ordered := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}
	return ordered, nil
}

// SearchPage returns one page of videos matching the filter plus the total
// match count. The filter renders to a single SQL predicate so counting and
// fetching stay consistent.
func (r *PostgresVideoRepository) SearchPage(ctx context.Context, filter feed.Filter, sort feed.Sort, page, limit int) ([]models.Video, int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where, args := filter.Predicate(time.Now(), 0)

	var total int64
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM videos WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count videos: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT `+videoColumns+`
        FROM videos
        WHERE `+where+`
        ORDER BY `+sort.OrderBy()+`
        LIMIT $%d OFFSET $%d
    `, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos, err := collectVideos(rows)
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

// IncrementViews bumps the view counter and returns the updated row. The
// increment and read happen in one statement so concurrent fetches never
// lose a view.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET views = views + 1
        WHERE id = $1
        RETURNING `+videoColumns+`
    `, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("increment views: %w", err)
	}
	return video, nil
}

// Recommend returns published videos related to the source by shared
// category, overlapping tags, or same owner, most viewed first.
func (r *PostgresVideoRepository) Recommend(ctx context.Context, source models.Video, limit int) ([]models.Video, error) {
	tags := source.Tags
	if tags == nil {
		tags = []string{}
	}
	return r.queryVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE id <> $1
          AND is_published = TRUE
          AND (category = $2 OR tags && $3 OR owner_id = $4)
        ORDER BY views DESC, likes DESC
        LIMIT $5
    `, source.ID, source.Category, tags, source.OwnerID, limit)
}

// RandomShorts samples published short-form videos in random order.
func (r *PostgresVideoRepository) RandomShorts(ctx context.Context, limit int) ([]models.Video, error) {
	return r.queryVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE is_short = TRUE AND is_published = TRUE
        ORDER BY random()
        LIMIT $1
    `, limit)
}

// ListByOwner returns all of an owner's videos, newest first.
func (r *PostgresVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error) {
	return r.queryVideos(ctx, `
        SELECT `+videoColumns+`
        FROM videos
        WHERE owner_id = $1
        ORDER BY created_at DESC
    `, ownerID)
}

// OwnerStats aggregates catalog totals for a single owner.
func (r *PostgresVideoRepository) OwnerStats(ctx context.Context, ownerID string) (feed.OwnerStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return feed.OwnerStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats feed.OwnerStats
	err = conn.QueryRow(ctx, `
        SELECT count(*), COALESCE(SUM(views), 0), COALESCE(SUM(likes), 0)
        FROM videos
        WHERE owner_id = $1
    `, ownerID).Scan(&stats.TotalVideos, &stats.TotalViews, &stats.TotalLikes)
	if err != nil {
		return feed.OwnerStats{}, fmt.Errorf("aggregate owner stats: %w", err)
	}

	return stats, nil
}

// WatchHistoryVideos returns the videos a user watched, most recent first.
func (r *PostgresVideoRepository) WatchHistoryVideos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	return r.queryVideos(ctx, `
        SELECT `+prefixedVideoColumns("v")+`
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        WHERE wh.user_id = $1
        ORDER BY wh.watched_at DESC
        LIMIT $2
    `, userID, limit)
}

// Update modifies the editable metadata of an existing video.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, thumbnail = $4, category = $5, tags = $6, updated_at = $7
        WHERE id = $1
    `, video.ID, video.Title, video.Description, video.Thumbnail, video.Category, video.Tags, video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// TogglePublish flips the publication flag atomically and returns the
// updated row.
func (r *PostgresVideoRepository) TogglePublish(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        UPDATE videos
        SET is_published = NOT is_published, updated_at = now()
        WHERE id = $1
        RETURNING `+videoColumns+`
    `, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("toggle publish: %w", err)
	}
	return video, nil
}

// Delete removes a video. Reactions, watch progress, and history rows go
// with it via foreign keys.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Stats aggregates catalog and recent-engagement totals for the admin
// dashboard.
func (r *PostgresVideoRepository) Stats(ctx context.Context) (VideoStats, EngagementStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return VideoStats{}, EngagementStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		catalog    VideoStats
		engagement EngagementStats
	)
	err = conn.QueryRow(ctx, `
        SELECT count(*),
               COALESCE(SUM(views), 0),
               COALESCE(SUM(likes), 0),
               count(*) FILTER (WHERE is_short),
               count(*) FILTER (WHERE created_at >= now() - interval '7 days'),
               COALESCE(SUM(views) FILTER (WHERE created_at >= now() - interval '7 days'), 0)
        FROM videos
    `).Scan(&catalog.TotalVideos, &catalog.TotalViews, &catalog.TotalLikes,
		&catalog.TotalShorts, &engagement.RecentVideos, &engagement.RecentViews)
	if err != nil {
		return VideoStats{}, EngagementStats{}, fmt.Errorf("aggregate video stats: %w", err)
	}

	return catalog, engagement, nil
}

func (r *PostgresVideoRepository) queryVideos(ctx context.Context, query string, args ...any) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func collectVideos(rows pgx.Rows) ([]models.Video, error) {
	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.OwnerID, &video.Title, &video.Description,
		&video.MediaURL, &video.Thumbnail, &video.Duration, &video.Views,
		&video.Likes, &video.Dislikes, &video.IsPublished, &video.IsShort,
		&video.Category, &video.Tags, &video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func prefixedVideoColumns(alias string) string {
	return alias + ".id, " + alias + ".owner_id, " + alias + ".title, " + alias + ".description, " +
		alias + ".media_url, " + alias + ".thumbnail, " + alias + ".duration, " + alias + ".views, " +
		alias + ".likes, " + alias + ".dislikes, " + alias + ".is_published, " + alias + ".is_short, " +
		alias + ".category, " + alias + ".tags, " + alias + ".created_at, " + alias + ".updated_at"
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ feed.VideoSource = (*PostgresVideoRepository)(nil)
