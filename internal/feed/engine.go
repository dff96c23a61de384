package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/models"
)

var (
	// ErrVideoNotFound indicates the requested video does not exist.
	ErrVideoNotFound = errors.New("video not found")
	// ErrChannelNotFound indicates no user owns the requested channel name.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrUserNotFound indicates the requested profile owner does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// VideoSource is the read surface the engine needs from the video catalog.
type VideoSource interface {
	SearchPage(ctx context.Context, filter Filter, sort Sort, page, limit int) ([]models.Video, int64, error)
	FindByID(ctx context.Context, id string) (models.Video, error)
	IncrementViews(ctx context.Context, id string) (models.Video, error)
	Recommend(ctx context.Context, source models.Video, limit int) ([]models.Video, error)
	RandomShorts(ctx context.Context, limit int) ([]models.Video, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Video, error)
	OwnerStats(ctx context.Context, ownerID string) (OwnerStats, error)
	WatchHistoryVideos(ctx context.Context, userID string, limit int) ([]models.Video, error)
}

// ProfileSource resolves owner projections for feed rows.
type ProfileSource interface {
	FindProfileByID(ctx context.Context, id string) (models.PublicProfile, error)
	FindProfileByUsername(ctx context.Context, username string) (models.PublicProfile, error)
	ProfilesByIDs(ctx context.Context, ids []string) (map[string]models.PublicProfile, error)
}

// ReactionSource resolves the viewer's own reactions for feed rows.
type ReactionSource interface {
	ForViewer(ctx context.Context, viewerID string, videoIDs []string) (map[string]string, error)
}

// SubscriptionSource resolves channel relationship aggregates.
type SubscriptionSource interface {
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
}

// VideoItem is a feed row: the video joined with its owner's public profile
// and, when a viewer is known, that viewer's own reaction.
type VideoItem struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	MediaURL     string               `json:"mediaUrl"`
	Thumbnail    string               `json:"thumbnail"`
	Duration     int                  `json:"duration"`
	Views        int64                `json:"views"`
	Likes        int64                `json:"likes"`
	Dislikes     int64                `json:"dislikes"`
	IsPublished  bool                 `json:"isPublished"`
	IsShort      bool                 `json:"isShort"`
	Category     models.Category      `json:"category"`
	Tags         []string             `json:"tags"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Owner        models.PublicProfile `json:"owner"`
	UserReaction *string              `json:"userReaction"`
}

// VideoPage is one page of feed rows together with its pagination window.
type VideoPage struct {
	Items []VideoItem     `json:"videos"`
	Meta  models.PageMeta `json:"meta"`
}

// OwnerStats aggregates a channel's catalog totals.
type OwnerStats struct {
	TotalVideos int64 `json:"totalVideos"`
	TotalViews  int64 `json:"totalViews"`
	TotalLikes  int64 `json:"totalLikes"`
}

// ChannelProfile is the public channel view with relationship aggregates.
type ChannelProfile struct {
	models.PublicProfile
	SubscriberCount   int64 `json:"subscriberCount"`
	SubscribedToCount int64 `json:"subscribedToCount"`
	IsSubscribed      bool  `json:"isSubscribed"`
}

// UserProfile is the public profile plus the user's videos and totals.
type UserProfile struct {
	User   models.PublicProfile `json:"user"`
	Videos []VideoItem          `json:"videos"`
	Stats  OwnerStats           `json:"stats"`
}

// Engine composes catalog reads into viewer-personalized feed responses. The
// joins run application-side as a sequence of explicit reads so the logic
// stays portable across storage engines.
type Engine struct {
	videos    VideoSource
	profiles  ProfileSource
	reactions ReactionSource
	subs      SubscriptionSource
}

// NewEngine wires the engine to its read sources.
func NewEngine(videos VideoSource, profiles ProfileSource, reactions ReactionSource, subs SubscriptionSource) *Engine {
	return &Engine{videos: videos, profiles: profiles, reactions: reactions, subs: subs}
}

// List returns one page of videos matching the filter, each row joined with
// owner projection and the viewer's reaction. viewerID may be empty.
func (e *Engine) List(ctx context.Context, filter Filter, sort Sort, page, limit int, viewerID string) (VideoPage, error) {
	ctx, span := logging.StartSpan(ctx, "feed.list")
	defer span.End()

	page, limit = CoercePage(page, limit, 10)

	videos, total, err := e.videos.SearchPage(ctx, filter, sort, page, limit)
	if err != nil {
		return VideoPage{}, fmt.Errorf("search videos: %w", err)
	}

	items, err := e.Decorate(ctx, videos, viewerID)
	if err != nil {
		return VideoPage{}, err
	}

	return VideoPage{Items: items, Meta: models.NewPageMeta(page, limit, total)}, nil
}

// Detail increments the video's view counter and returns the joined row.
// Every successful fetch counts as a view, repeat viewers included.
func (e *Engine) Detail(ctx context.Context, videoID, viewerID string) (VideoItem, error) {
	ctx, span := logging.StartSpan(ctx, "feed.detail")
	defer span.End()

	video, err := e.videos.IncrementViews(ctx, videoID)
	if err != nil {
		return VideoItem{}, err
	}

	items, err := e.Decorate(ctx, []models.Video{video}, viewerID)
	if err != nil {
		return VideoItem{}, err
	}
	return items[0], nil
}

// Recommendations ranks videos related to the source by shared category,
// overlapping tags, or same owner: views descending, then likes.
func (e *Engine) Recommendations(ctx context.Context, videoID string, limit int) ([]VideoItem, error) {
	ctx, span := logging.StartSpan(ctx, "feed.recommendations")
	defer span.End()

	if limit < 1 {
		limit = 10
	}

	source, err := e.videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}

	related, err := e.videos.Recommend(ctx, source, limit)
	if err != nil {
		return nil, fmt.Errorf("recommend videos: %w", err)
	}

	return e.Decorate(ctx, related, "")
}

// Shorts returns a fresh random sample of published short-form videos. The
// sample is intentionally unstable between calls; clients request a new batch
// for each scroll page.
func (e *Engine) Shorts(ctx context.Context, limit int, viewerID string) ([]VideoItem, error) {
	ctx, span := logging.StartSpan(ctx, "feed.shorts")
	defer span.End()

	if limit < 1 {
		limit = 10
	}

	shorts, err := e.videos.RandomShorts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("sample shorts: %w", err)
	}

	return e.Decorate(ctx, shorts, viewerID)
}

// Channel resolves a channel by its lowercase username and joins subscriber
// aggregates plus the viewer's subscription status.
func (e *Engine) Channel(ctx context.Context, username, viewerID string) (ChannelProfile, error) {
	ctx, span := logging.StartSpan(ctx, "feed.channel")
	defer span.End()

	owner, err := e.profiles.FindProfileByUsername(ctx, username)
	if err != nil {
		return ChannelProfile{}, ErrChannelNotFound
	}

	subscribers, err := e.subs.CountSubscribers(ctx, owner.ID)
	if err != nil {
		return ChannelProfile{}, fmt.Errorf("count subscribers: %w", err)
	}

	subscribedTo, err := e.subs.CountSubscribedTo(ctx, owner.ID)
	if err != nil {
		return ChannelProfile{}, fmt.Errorf("count subscriptions: %w", err)
	}

	profile := ChannelProfile{
		PublicProfile:     owner,
		SubscriberCount:   subscribers,
		SubscribedToCount: subscribedTo,
	}

	if viewerID != "" {
		subscribed, err := e.subs.IsSubscribed(ctx, viewerID, owner.ID)
		if err != nil {
			return ChannelProfile{}, fmt.Errorf("check subscription: %w", err)
		}
		profile.IsSubscribed = subscribed
	}

	return profile, nil
}

// History returns the viewer's watch history, most recently watched first.
func (e *Engine) History(ctx context.Context, viewerID string, limit int) ([]VideoItem, error) {
	ctx, span := logging.StartSpan(ctx, "feed.history")
	defer span.End()

	if limit < 1 {
		limit = 50
	}

	watched, err := e.videos.WatchHistoryVideos(ctx, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list watch history: %w", err)
	}

	return e.Decorate(ctx, watched, viewerID)
}

// Profile returns a user's public profile, all their videos, and catalog
// totals.
func (e *Engine) Profile(ctx context.Context, userID string) (UserProfile, error) {
	ctx, span := logging.StartSpan(ctx, "feed.profile")
	defer span.End()

	owner, err := e.profiles.FindProfileByID(ctx, userID)
	if err != nil {
		return UserProfile{}, ErrUserNotFound
	}

	videos, err := e.videos.ListByOwner(ctx, userID)
	if err != nil {
		return UserProfile{}, fmt.Errorf("list owner videos: %w", err)
	}

	stats, err := e.videos.OwnerStats(ctx, userID)
	if err != nil {
		return UserProfile{}, fmt.Errorf("aggregate owner stats: %w", err)
	}

	items, err := e.Decorate(ctx, videos, "")
	if err != nil {
		return UserProfile{}, err
	}

	return UserProfile{User: owner, Videos: items, Stats: stats}, nil
}

// Decorate joins owner projections and viewer reactions onto raw video rows.
func (e *Engine) Decorate(ctx context.Context, videos []models.Video, viewerID string) ([]VideoItem, error) {
	items := make([]VideoItem, 0, len(videos))
	if len(videos) == 0 {
		return items, nil
	}

	ownerIDs := make([]string, 0, len(videos))
	videoIDs := make([]string, 0, len(videos))
	seen := make(map[string]struct{}, len(videos))
	for _, v := range videos {
		videoIDs = append(videoIDs, v.ID)
		if _, ok := seen[v.OwnerID]; !ok {
			seen[v.OwnerID] = struct{}{}
			ownerIDs = append(ownerIDs, v.OwnerID)
		}
	}

	owners, err := e.profiles.ProfilesByIDs(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve owners: %w", err)
	}

	var reactions map[string]string
	if viewerID != "" {
		reactions, err = e.reactions.ForViewer(ctx, viewerID, videoIDs)
		if err != nil {
			return nil, fmt.Errorf("resolve viewer reactions: %w", err)
		}
	}

	for _, v := range videos {
		item := newVideoItem(v, owners[v.OwnerID])
		if t, ok := reactions[v.ID]; ok {
			reaction := t
			item.UserReaction = &reaction
		}
		items = append(items, item)
	}

	return items, nil
}

func newVideoItem(v models.Video, owner models.PublicProfile) VideoItem {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return VideoItem{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		MediaURL:    v.MediaURL,
		Thumbnail:   v.Thumbnail,
		Duration:    v.Duration,
		Views:       v.Views,
		Likes:       v.Likes,
		Dislikes:    v.Dislikes,
		IsPublished: v.IsPublished,
		IsShort:     v.IsShort,
		Category:    v.Category,
		Tags:        tags,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
		Owner:       owner,
	}
}
