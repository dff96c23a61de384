package models

import "time"

// Category enumerates the allowed video categories.
type Category string

const (
	CategoryGaming        Category = "gaming"
	CategoryMusic         Category = "music"
	CategoryEducation     Category = "education"
	CategoryEntertainment Category = "entertainment"
	CategorySports        Category = "sports"
	CategoryTechnology    Category = "technology"
	CategoryNews          Category = "news"
	CategoryComedy        Category = "comedy"
	CategoryLifestyle     Category = "lifestyle"
	CategoryOther         Category = "other"
)

// ValidCategory reports whether the provided value is a known category.
func ValidCategory(c string) bool {
	switch Category(c) {
	case CategoryGaming, CategoryMusic, CategoryEducation, CategoryEntertainment,
		CategorySports, CategoryTechnology, CategoryNews, CategoryComedy,
		CategoryLifestyle, CategoryOther:
		return true
	}
	return false
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ShortMaxDuration is the inclusive duration ceiling, in seconds, for a video
// to be flagged as short-form.
const ShortMaxDuration = 60

// User represents an account within the Cinevo platform. Password holds the
// bcrypt hash, never the plaintext. RefreshToken is the single active refresh
// token for the account; issuing a new one replaces it.
type User struct {
	ID           string
	Username     string
	Email        string
	DisplayName  string
	Password     string
	Avatar       string
	CoverImage   string
	Role         string
	IsBanned     bool
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicProfile is the owner projection exposed in feeds and joins. It must
// never carry credentials, email, or watch history.
type PublicProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar"`
	CoverImage  string    `json:"coverImage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public returns the projection of the user safe for list views.
func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		CoverImage:  u.CoverImage,
		CreatedAt:   u.CreatedAt,
	}
}

// Video is a published piece of content. Counters never go negative; IsShort
// is derived from Duration at creation time.
type Video struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	MediaURL    string
	Thumbnail   string
	Duration    int
	Views       int64
	Likes       int64
	Dislikes    int64
	IsPublished bool
	IsShort     bool
	Category    Category
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reaction types. A (user, video) pair has at most one reaction.
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Reaction records a viewer's like or dislike on a video.
type Reaction struct {
	ID        string
	UserID    string
	VideoID   string
	Type      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WatchProgress tracks how far a viewer got through a video. One record per
// (user, video) pair, upserted on every progress report.
type WatchProgress struct {
	ID        string
	UserID    string
	VideoID   string
	WatchTime int
	Completed bool
	WatchedAt time.Time
}

// Subscription links a subscriber to a channel owner.
type Subscription struct {
	ID           string
	SubscriberID string
	ChannelID    string
	CreatedAt    time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// PageMeta describes the pagination window of a list response.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPageMeta computes TotalPages for the provided window.
func NewPageMeta(page, limit int, total int64) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PageMeta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}
