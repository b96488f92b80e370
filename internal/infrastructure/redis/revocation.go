package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oksasatya/ailens-auth/internal/application"
)

// RevocationStore keeps logged-out token ids until the token would have
// expired anyway, so the set never grows past the live token population.
type RevocationStore struct {
	rdb    *goredis.Client
	prefix string
	now    func() time.Time
}

func NewRevocationStore(rdb *goredis.Client) *RevocationStore {
	return &RevocationStore{rdb: rdb, prefix: "auth:revoked:", now: time.Now}
}

func (s *RevocationStore) key(id string) string { return s.prefix + id }

func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, s.key(tokenID), 1, ttl).Err()
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.rdb.Get(ctx, s.key(tokenID)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ application.TokenRevoker = (*RevocationStore)(nil)
