// SPDX-License-Identifier: MIT

package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript returns the data field and deletes the hash when the token
// matches, "mismatch" when it does not, and nil when the key is absent.
var takeScript = redis.NewScript(`
local tok = redis.call('HGET', KEYS[1], 'token')
if tok == false then
	return false
end
if tok ~= ARGV[1] then
	return 'mismatch'
end
local data = redis.call('HGET', KEYS[1], 'data')
redis.call('DEL', KEYS[1])
return data
`)

// RedisStore keeps checkpoints as hashes {token, data}. Expiry uses the
// native key expiry, so lapsed checkpoints simply disappear.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
	now    func() time.Time
}

// NewRedisStore namespaces keys under prefix. When owned, Close closes client.
func NewRedisStore(client *redis.Client, prefix string, owned bool) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + ":checkpoint:", owned: owned, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	buf, err := encode(cp)
	if err != nil {
		return err
	}
	k := s.prefix + key(cp.Tenant, cp.Platform)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k, "token", cp.ResumeToken, "data", string(buf))
		if !cp.ExpiresAt.IsZero() {
			pipe.PExpireAt(ctx, k, cp.ExpiresAt)
		}
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, tenant, platform string) (Checkpoint, error) {
	raw, err := s.client.HGet(ctx, s.prefix+key(tenant, platform), "data").Result()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, err
	}
	cp, err := decode([]byte(raw))
	if err != nil {
		return Checkpoint{}, err
	}
	return checkLoad(cp, tenant, s.now())
}

func (s *RedisStore) Take(ctx context.Context, tenant, platform, token string) (Checkpoint, error) {
	if token == "" {
		if _, err := s.Load(ctx, tenant, platform); err != nil {
			return Checkpoint{}, err
		}
		return Checkpoint{}, ErrTokenMismatch
	}
	raw, err := takeScript.Run(ctx, s.client, []string{s.prefix + key(tenant, platform)}, token).Text()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, err
	}
	if raw == "mismatch" {
		return Checkpoint{}, ErrTokenMismatch
	}
	cp, err := decode([]byte(raw))
	if err != nil {
		return Checkpoint{}, err
	}
	if !owns(cp, tenant) {
		return Checkpoint{}, ErrNotFound
	}
	if cp.Expired(s.now()) {
		return Checkpoint{}, ErrExpired
	}
	return cp, nil
}

func (s *RedisStore) Delete(ctx context.Context, tenant, platform string) error {
	return s.client.Del(ctx, s.prefix+key(tenant, platform)).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]Checkpoint, error) {
	var out []Checkpoint
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.HGet(ctx, iter.Val(), "data").Result()
		if err != nil {
			continue
		}
		cp, err := decode([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sortCheckpoints(out)
	return out, nil
}

func (s *RedisStore) Backend() string { return "redis" }
func (s *RedisStore) Degraded() bool  { return false }

func (s *RedisStore) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
