package server

import (
	"context"
	"log/slog"

	"tutorx/internal/featureflags"
	"tutorx/internal/middleware"
	"tutorx/internal/notifications"
	"tutorx/internal/observability"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated    = "post_created"
	EventPostUpdated    = "post_updated"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventCommentCreated = "comment_created"
	EventCommentDeleted = "comment_deleted"
	EventUserFollowed   = "user_followed"
	EventTutorRated     = "tutor_rated"
	EventUserFavorited  = "user_favorited"
)

// publishUserEvent delivers an event to one user. With Redis the event goes
// through pub/sub so every instance's hub sees it; without Redis it goes
// straight to the local hub.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload any) {
	if userID == 0 || !s.featureFlags.Enabled(featureflags.Realtime, userID) {
		return
	}
	message, ok := encodeEvent(ctx, eventType, payload)
	if !ok {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if s.notifier.Enabled() {
		if err := s.notifier.PublishUser(context.WithoutCancel(ctx), userID, message); err != nil {
			middleware.Logger.WarnContext(ctx, "publish user event failed",
				slog.String("event", eventType), slog.Any("target_user_id", userID), slog.String("error", err.Error()))
		}
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(userID, message)
	}
}

// publishBroadcastEvent delivers an event to every connected client.
func (s *Server) publishBroadcastEvent(ctx context.Context, eventType string, payload any) {
	if !s.featureFlags.Enabled(featureflags.Realtime, 0) {
		return
	}
	message, ok := encodeEvent(ctx, eventType, payload)
	if !ok {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()

	if s.notifier.Enabled() {
		if err := s.notifier.PublishBroadcast(context.WithoutCancel(ctx), message); err != nil {
			middleware.Logger.WarnContext(ctx, "publish broadcast event failed",
				slog.String("event", eventType), slog.String("error", err.Error()))
		}
		return
	}
	if s.hub != nil {
		s.hub.BroadcastAll(message)
	}
}

func encodeEvent(ctx context.Context, eventType string, payload any) (string, bool) {
	message, err := notifications.EncodeEvent(eventType, payload)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "encode event failed", slog.String("error", err.Error()))
		return "", false
	}
	return message, true
}
