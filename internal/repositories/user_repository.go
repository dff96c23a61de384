package repositories

import (
	"context"

	"github.com/cinevo/backend/internal/models"
)

// UserFilter narrows the admin user listing.
type UserFilter struct {
	// Search matches username, email, or display name, case-insensitively.
	Search string
	// Role restricts the listing to a single role when non-empty.
	Role string
	// Banned restricts to banned or active accounts when set.
	Banned *bool
}

// UserStats aggregates account totals for the admin dashboard.
type UserStats struct {
	TotalUsers  int64 `json:"totalUsers"`
	BannedUsers int64 `json:"bannedUsers"`
	AdminUsers  int64 `json:"adminUsers"`
}

// UserRepository defines the data access contract for accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, identifier string) (models.User, error)
	Update(ctx context.Context, user models.User) error
	SetRefreshToken(ctx context.Context, userID, token string) error
	SetBanned(ctx context.Context, userID string, banned bool) error
	List(ctx context.Context, filter UserFilter, page, limit int) ([]models.User, int64, error)
	Stats(ctx context.Context) (UserStats, error)
}
