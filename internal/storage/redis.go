package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

const (
	redisRecordPrefix = "license:record:"
	redisKeySet       = "license:keys"

	// redisMaxTxRetries bounds optimistic retries when a watched key changes.
	redisMaxTxRetries = 16
)

// ConnectRedis initializes a client from a redis:// URL or a host:port pair.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore keeps each record as a JSON string and tracks keys in a set.
// Mutations use WATCH/MULTI and are retried when a concurrent writer wins.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(key string) string {
	return redisRecordPrefix + key
}

func decodeRecord(raw string) (license.Record, error) {
	var rec license.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return license.Record{}, fmt.Errorf("decode license record: %w", err)
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.LastHeartbeatAt != nil {
		t := rec.LastHeartbeatAt.UTC()
		rec.LastHeartbeatAt = &t
	}
	return rec, nil
}

func encodeRecord(rec license.Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode license record: %w", err)
	}
	return string(data), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (license.Record, error) {
	raw, err := s.client.Get(ctx, recordKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return license.Record{}, license.ErrKeyNotFound
	}
	if err != nil {
		return license.Record{}, license.NewStoreError("get", err)
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return license.Record{}, license.NewStoreError("get", err)
	}
	return rec, nil
}

func (s *RedisStore) Create(ctx context.Context, key string, rec license.Record) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return license.NewStoreError("create", err)
	}
	rk := recordKey(key)
	return s.watch(ctx, "create", func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, rk).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return license.ErrKeyConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rk, payload, 0)
			p.SAdd(ctx, redisKeySet, key)
			return nil
		})
		return err
	}, rk)
}

func (s *RedisStore) Update(ctx context.Context, key string, fn license.UpdateFunc) (license.Record, error) {
	rk := recordKey(key)
	var out license.Record
	err := s.watch(ctx, "update", func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, rk).Result()
		if errors.Is(err, redis.Nil) {
			return license.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return err
		}
		next, save, err := fn(rec)
		if err != nil {
			return err
		}
		out = next
		if !save {
			return nil
		}
		payload, err := encodeRecord(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, rk, payload, 0)
			return nil
		})
		return err
	}, rk)
	if err != nil {
		return license.Record{}, err
	}
	return out, nil
}

func (s *RedisStore) Rename(ctx context.Context, oldKey, newKey string) error {
	oldRK, newRK := recordKey(oldKey), recordKey(newKey)
	return s.watch(ctx, "rename", func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, oldRK).Result()
		if errors.Is(err, redis.Nil) {
			return license.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		n, err := tx.Exists(ctx, newRK).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return license.ErrKeyConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, newRK, raw, 0)
			p.Del(ctx, oldRK)
			p.SRem(ctx, redisKeySet, oldKey)
			p.SAdd(ctx, redisKeySet, newKey)
			return nil
		})
		return err
	}, oldRK, newRK)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	rk := recordKey(key)
	return s.watch(ctx, "delete", func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, rk).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return license.ErrKeyNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, rk)
			p.SRem(ctx, redisKeySet, key)
			return nil
		})
		return err
	}, rk)
}

func (s *RedisStore) Snapshot(ctx context.Context) (map[string]license.Record, error) {
	keys, err := s.client.SMembers(ctx, redisKeySet).Result()
	if err != nil {
		return nil, license.NewStoreError("snapshot", err)
	}
	records := make(map[string]license.Record, len(keys))
	if len(keys) == 0 {
		return records, nil
	}

	rks := make([]string, len(keys))
	for i, k := range keys {
		rks[i] = recordKey(k)
	}
	values, err := s.client.MGet(ctx, rks...).Result()
	if err != nil {
		return nil, license.NewStoreError("snapshot", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Key removed between SMEMBERS and MGET.
			continue
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, license.NewStoreError("snapshot", err)
		}
		records[keys[i]] = rec
	}
	return records, nil
}

func (s *RedisStore) Export(ctx context.Context) ([]byte, error) {
	records, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return license.EncodeSnapshot(records)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return license.NewStoreError("ping", s.client.Ping(ctx).Err())
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// watch runs fn in an optimistic transaction over keys, retrying when a
// watched key is modified concurrently. Denials from fn pass through
// unwrapped; backend failures are wrapped as store errors.
func (s *RedisStore) watch(ctx context.Context, op string, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < redisMaxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case license.IsDenial(err):
			return err
		default:
			return license.NewStoreError(op, err)
		}
	}
	return license.NewStoreError(op, fmt.Errorf("transaction retries exhausted after %d attempts", redisMaxTxRetries))
}
