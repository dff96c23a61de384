package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cinevo/backend/internal/auth"
	"github.com/cinevo/backend/internal/db"
	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/history"
	"github.com/cinevo/backend/internal/models"
)

const userColumns = `id, username, email, display_name, password_hash, avatar, cover_image, role, is_banned, refresh_token, created_at, updated_at`

// PostgresUserRepository provides PostgreSQL-backed persistence for accounts.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new account record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (`+userColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, user.ID, user.Username, user.Email, user.DisplayName, user.Password,
		user.Avatar, user.CoverImage, user.Role, user.IsBanned, user.RefreshToken,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return conflictOn(pgErr.ConstraintName)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches an account by its identifier.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByLogin fetches an account by username or email. Both are stored
// lowercase, so the identifier is folded before matching.
func (r *PostgresUserRepository) FindByLogin(ctx context.Context, identifier string) (models.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return r.findOne(ctx, `WHERE username = $1 OR email = $1`, identifier)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, where string, args ...any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users `+where, args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

// Update modifies the mutable profile fields of an existing account.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET email = $2, display_name = $3, password_hash = $4, avatar = $5, cover_image = $6, updated_at = $7
        WHERE id = $1
    `, user.ID, user.Email, user.DisplayName, user.Password, user.Avatar, user.CoverImage, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return conflictOn(pgErr.ConstraintName)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetRefreshToken replaces the account's single active refresh token. An
// empty token revokes the session.
func (r *PostgresUserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET refresh_token = $2, updated_at = now()
        WHERE id = $1
    `, userID, token)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SetBanned flips the account's ban flag.
func (r *PostgresUserRepository) SetBanned(ctx context.Context, userID string, banned bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users
        SET is_banned = $2, updated_at = now()
        WHERE id = $1
    `, userID, banned)
	if err != nil {
		return fmt.Errorf("update ban flag: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns one page of accounts matching the filter, newest first, with
// the total match count.
func (r *PostgresUserRepository) List(ctx context.Context, filter UserFilter, page, limit int) ([]models.User, int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where, args := userFilterPredicate(filter)

	var total int64
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	rows, err := conn.Query(ctx, fmt.Sprintf(`
        SELECT `+userColumns+`
        FROM users
        WHERE `+where+`
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// Stats aggregates account totals for the admin dashboard.
func (r *PostgresUserRepository) Stats(ctx context.Context) (UserStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return UserStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats UserStats
	err = conn.QueryRow(ctx, `
        SELECT count(*),
               count(*) FILTER (WHERE is_banned),
               count(*) FILTER (WHERE role = 'admin')
        FROM users
    `).Scan(&stats.TotalUsers, &stats.BannedUsers, &stats.AdminUsers)
	if err != nil {
		return UserStats{}, fmt.Errorf("aggregate user stats: %w", err)
	}

	return stats, nil
}

// FindProfileByID resolves the public projection of an account.
func (r *PostgresUserRepository) FindProfileByID(ctx context.Context, id string) (models.PublicProfile, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return models.PublicProfile{}, err
	}
	return user.Public(), nil
}

// FindProfileByUsername resolves the public projection of a channel name.
func (r *PostgresUserRepository) FindProfileByUsername(ctx context.Context, username string) (models.PublicProfile, error) {
	user, err := r.findOne(ctx, `WHERE username = $1`, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return models.PublicProfile{}, err
	}
	return user.Public(), nil
}

// ProfilesByIDs batch-resolves public projections for the given account IDs.
// Unknown IDs are simply absent from the result map.
func (r *PostgresUserRepository) ProfilesByIDs(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	profiles := make(map[string]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, username, display_name, avatar, cover_image, created_at
        FROM users
        WHERE id = ANY($1)
    `, ids)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Avatar, &p.CoverImage, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}

	return profiles, nil
}

// AppendWatchHistory records that the user watched the video. Re-watching
// moves the entry to the top of the history instead of duplicating it.
func (r *PostgresUserRepository) AppendWatchHistory(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, watched_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET watched_at = now()
    `, userID, videoID)
	if err != nil {
		return fmt.Errorf("append watch history: %w", err)
	}

	return nil
}

func userFilterPredicate(filter UserFilter) (string, []any) {
	clauses := make([]string, 0, 3)
	args := make([]any, 0, 3)

	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d OR display_name ILIKE $%d)", n, n, n))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Banned != nil {
		args = append(args, *filter.Banned)
		clauses = append(clauses, fmt.Sprintf("is_banned = $%d", len(args)))
	}

	if len(clauses) == 0 {
		return "TRUE", args
	}
	return strings.Join(clauses, " AND "), args
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName,
		&user.Password, &user.Avatar, &user.CoverImage, &user.Role,
		&user.IsBanned, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ auth.CredentialStore = (*PostgresUserRepository)(nil)
var _ feed.ProfileSource = (*PostgresUserRepository)(nil)
var _ history.Appender = (*PostgresUserRepository)(nil)
