package app

import (
	"context"
	"time"

	"github.com/cinevo/backend/internal/auth"
	"github.com/cinevo/backend/internal/config"
	"github.com/cinevo/backend/internal/db"
	"github.com/cinevo/backend/internal/feed"
	"github.com/cinevo/backend/internal/handlers"
	"github.com/cinevo/backend/internal/history"
	"github.com/cinevo/backend/internal/logging"
	"github.com/cinevo/backend/internal/media"
	"github.com/cinevo/backend/internal/middleware"
	"github.com/cinevo/backend/internal/repositories"
)

// cachedFeed overlays the TTL recommendation cache on the feed engine while
// delegating every other read to it.
type cachedFeed struct {
	*feed.Engine
	recommender *feed.CachingRecommender
}

func (c cachedFeed) Recommendations(ctx context.Context, videoID string, limit int) ([]feed.VideoItem, error) {
	return c.recommender.Recommendations(ctx, videoID, limit)
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains background workers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	reactions := repositories.NewPostgresReactionRepository(pool)
	progress := repositories.NewPostgresProgressRepository(pool)
	subscriptions := repositories.NewPostgresSubscriptionRepository(pool)

	issuer := auth.NewTokenIssuer(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	sessions := auth.NewManager(issuer, users)

	engine := feed.NewEngine(videos, users, reactions, subscriptions)
	feedService := cachedFeed{
		Engine:      engine,
		recommender: feed.NewCachingRecommender(engine, cfg.RecommendationCacheTTL),
	}

	recorder := history.NewRecorder(users, history.RecorderConfig{
		QueueSize: cfg.HistoryQueueSize,
		Workers:   cfg.HistoryWorkers,
	}, logging.FromContext(ctx))

	var blobs media.BlobStore
	if cfg.ObjectStore.Bucket != "" {
		store, err := media.NewS3Store(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, err
		}
		blobs = store
	}

	deps := handlers.Dependencies{
		DB:            db.PoolPinger{Pool: pool},
		Users:         users,
		AdminUsers:    users,
		Sessions:      sessions,
		Session:       middleware.NewSession(sessions),
		Feed:          feedService,
		Videos:        videos,
		AdminVideos:   videos,
		Reactions:     reactions,
		Progress:      progress,
		Subscriptions: subscriptions,
		Blobs:         blobs,
		Prober:        media.NewFFProbe(cfg.FFProbePath, cfg.FFProbeTimeout),
		History:       recorder,
		AuthLimiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
	}

	return deps, recorder.Shutdown, nil
}
