package handlers

import (
	"net/http"

	"github.com/cinevo/backend/internal/middleware"
)

// SubscriptionHandler implements the subscribe/unsubscribe toggle.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Users         UserStore
}

// Toggle handles POST /api/v1/subscriptions/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, _ := middleware.UserFrom(ctx)
	channelID := r.PathValue("channelId")

	if channelID == viewer.ID {
		fail(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		failWith(ctx, w, err, "channel not found")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, viewer.ID, channelID)
	if err != nil {
		failWith(ctx, w, err, "")
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}
	respond(ctx, w, http.StatusOK, message, map[string]any{"subscribed": subscribed})
}
