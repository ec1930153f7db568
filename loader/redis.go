package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/IvanBrykalov/refreshcache/cache"
)

// RedisClient captures the subset of redis.Client used by the Redis loader.
// *redis.Client, *redis.ClusterClient and *redis.Ring all satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisOptions configures Redis.
type RedisOptions[V any] struct {
	// Prefix is prepended to every cache key to form the Redis key.
	Prefix string

	// Decode turns the stored string into V. nil => the string itself when V
	// is string, JSON otherwise.
	Decode func(raw string) (V, error)
}

// Redis returns a Loader that reads Prefix+k with GET. A missing key is
// reported as "no value".
func Redis[V any](client RedisClient, opt RedisOptions[V]) (cache.Loader[string, V], error) {
	if client == nil {
		return nil, errors.New("loader: nil redis client")
	}
	decode := opt.Decode
	if decode == nil {
		decode = decodeDefault[V]
	}
	prefix := opt.Prefix

	return func(ctx context.Context, k string) (V, bool, error) {
		var zero V
		raw, err := client.Get(ctx, prefix+k).Result()
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		if err != nil {
			log.Debugw("redis get failed", "key", prefix+k, "err", err)
			return zero, false, fmt.Errorf("redis get %q: %w", prefix+k, err)
		}
		v, err := decode(raw)
		if err != nil {
			return zero, false, fmt.Errorf("decode %q: %w", prefix+k, err)
		}
		return v, true, nil
	}, nil
}

func decodeDefault[V any](raw string) (V, error) {
	var v V
	if p, ok := any(&v).(*string); ok {
		*p = raw
		return v, nil
	}
	err := json.Unmarshal([]byte(raw), &v)
	return v, err
}
