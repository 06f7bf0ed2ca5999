// Package session keeps local-backend sign-in sessions and password-reset
// tokens in redis. Both expire on their own through key TTLs.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"smec/conclave/internal/crypto"
	"smec/conclave/internal/model"
)

const (
	sessionPrefix = "conclave:session:"
	resetPrefix   = "conclave:reset:"
)

type Store struct {
	rdb redis.Cmdable
}

func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Open(ctx context.Context, sessionID, accountID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, sessionPrefix+sessionID, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	return nil
}

// Revoke ends a session and reports whether it was still live.
func (s *Store) Revoke(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Del(ctx, sessionPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return n > 0, nil
}

// IssueReset stores a single-use reset token for accountID. Only the token
// hash is kept.
func (s *Store) IssueReset(ctx context.Context, accountID string, ttl time.Duration) (string, error) {
	token, err := crypto.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, resetPrefix+crypto.HashToken(token), accountID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

func (s *Store) ConsumeReset(ctx context.Context, token string) (string, error) {
	accountID, err := s.rdb.GetDel(ctx, resetPrefix+crypto.HashToken(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", model.ErrInvalidResetToken
	}
	if err != nil {
		return "", fmt.Errorf("consume reset token: %w", err)
	}
	return accountID, nil
}
