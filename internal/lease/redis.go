// SPDX-License-Identifier: MIT

package lease

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Acquire or extend when free or already ours. Returns 1 on success.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false or cur == ARGV[1] then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore keeps leases in Redis for multi-host deployments. Expiry is
// enforced by the key TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + ":lease:"}
}

func (s *RedisStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	ok, err := acquireScript.Run(ctx, s.client, []string{s.prefix + key}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return Lease{}, false, err
	}
	if ok == 1 {
		return Lease{Key: key, Owner: owner, ExpiresAt: time.Now().Add(ttl)}, true, nil
	}
	cur, found, err := s.Get(ctx, key)
	if err != nil {
		return Lease{}, false, err
	}
	if !found {
		// Expired between the script and the lookup.
		return s.TryAcquire(ctx, key, owner, ttl)
	}
	return cur, false, nil
}

func (s *RedisStore) Renew(ctx context.Context, key, owner string, ttl time.Duration) (Lease, bool, error) {
	return s.TryAcquire(ctx, key, owner, ttl)
}

func (s *RedisStore) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{s.prefix + key}, owner).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (Lease, bool, error) {
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, s.prefix+key)
	ttl := pipe.PTTL(ctx, s.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Lease{}, false, err
	}
	owner, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, err
	}
	return Lease{Key: key, Owner: owner, ExpiresAt: time.Now().Add(ttl.Val())}, true, nil
}
