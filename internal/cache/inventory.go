package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	userKeyPattern         = "user:%d"
	favoritesKeyPattern    = "favorites:%d"
	ratingsKeyPattern      = "ratings:tutor:%d"
	tutorsKeyPattern       = "tutors:v%d:%s"
	tutorsVersionKey       = "tutors:version"
	wsTicketKeyPattern     = "ws_ticket:%s"
	revokedTokenKeyPrefix  = "blacklist:"
	presenceSeenKeyPattern = "presence:seen:%d"

	// PresenceOnlineKey is the set of user IDs with a live event stream on any instance.
	PresenceOnlineKey = "presence:online"
)

const (
	UserTTL      = 5 * time.Minute
	FavoritesTTL = 2 * time.Minute
	RatingsTTL   = 5 * time.Minute
	TutorsTTL    = 2 * time.Minute
	WSTicketTTL  = 30 * time.Second
	PresenceTTL  = 90 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(userKeyPattern, userID)
}

func FavoritesKey(viewerID uint) string {
	return fmt.Sprintf(favoritesKeyPattern, viewerID)
}

func RatingsKey(tutorID uint) string {
	return fmt.Sprintf(ratingsKeyPattern, tutorID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(wsTicketKeyPattern, ticket)
}

func PresenceSeenKey(userID uint) string {
	return fmt.Sprintf(presenceSeenKeyPattern, userID)
}

func RevokedTokenKey(jti string) string {
	return revokedTokenKeyPrefix + jti
}

// TutorsKey scopes a tutor directory query to the current list version.
func TutorsKey(ctx context.Context, query string) string {
	var version int64
	if client != nil {
		version, _ = client.Get(ctx, tutorsVersionKey).Int64()
	}
	return fmt.Sprintf(tutorsKeyPattern, version, query)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidateFavorites(ctx context.Context, viewerID uint) {
	Invalidate(ctx, FavoritesKey(viewerID))
}

// InvalidateTutor drops a tutor's profile and ratings and bumps the directory version.
func InvalidateTutor(ctx context.Context, tutorID uint) {
	Invalidate(ctx, UserKey(tutorID), RatingsKey(tutorID))
	InvalidateTutorDirectory(ctx)
}

// InvalidateTutorDirectory orphans every cached tutor list; entries expire on their own TTL.
func InvalidateTutorDirectory(ctx context.Context) {
	if client != nil {
		client.Incr(ctx, tutorsVersionKey)
	}
}
