package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnavailable is returned when an operation needs Redis and none is configured.
	ErrUnavailable = errors.New("redis is not configured")
	// ErrTicketInvalid covers unknown, expired and already-used websocket tickets.
	ErrTicketInvalid = errors.New("invalid or expired websocket ticket")
)

// TokenStore keeps revoked JWT ids and single-use websocket tickets in Redis.
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Revoke blacklists jti until ttl elapses. Without Redis it is a no-op.
func (s *TokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, RevokedTokenKey(jti), "1", ttl).Err()
}

func (s *TokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	n, err := s.rdb.Exists(ctx, RevokedTokenKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IssueTicket stores a random ticket for userID with WSTicketTTL.
func (s *TokenStore) IssueTicket(ctx context.Context, userID uint) (string, error) {
	if s.rdb == nil {
		return "", ErrUnavailable
	}
	ticket := uuid.NewString()
	if err := s.rdb.Set(ctx, WSTicketKey(ticket), userID, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// ConsumeTicket atomically reads and deletes the ticket.
func (s *TokenStore) ConsumeTicket(ctx context.Context, ticket string) (uint, error) {
	if s.rdb == nil {
		return 0, ErrUnavailable
	}
	raw, err := s.rdb.GetDel(ctx, WSTicketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTicketInvalid
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, ErrTicketInvalid
	}
	return uint(id), nil
}
