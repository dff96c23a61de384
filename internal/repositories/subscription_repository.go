package repositories

import "context"

// SubscriptionRepository exposes data access for channel subscriptions.
type SubscriptionRepository interface {
	// Toggle flips the subscriber's relationship to the channel and reports
	// the resulting state: true when now subscribed.
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	CountSubscribers(ctx context.Context, channelID string) (int64, error)
	CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error)
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)
}
