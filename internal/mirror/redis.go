package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rogerio-castellano/mall-billing/internal/models"
)

// putScript stores a record and records its position only when the key is new.
var putScript = redis.NewScript(`
local added = redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
if added == 1 then
	if ARGV[3] == 'prepend' then
		redis.call('LPUSH', KEYS[2], ARGV[1])
	else
		redis.call('RPUSH', KEYS[2], ARGV[1])
	end
end
return added
`)

// RedisCollection stores records as JSON in a hash, with a list holding their order.
type RedisCollection[T any] struct {
	rdb   redis.UniversalClient
	name  string
	key   func(T) string
	order Order

	dataKey  string
	orderKey string
	metaKey  string
}

// NewRedisCollection creates a collection under prefix, e.g. "mirror:v1".
func NewRedisCollection[T any](rdb redis.UniversalClient, prefix, name string, key func(T) string, order Order) *RedisCollection[T] {
	base := fmt.Sprintf("%s:%s", prefix, name)
	return &RedisCollection[T]{
		rdb:      rdb,
		name:     name,
		key:      key,
		order:    order,
		dataKey:  base + ":data",
		orderKey: base + ":order",
		metaKey:  base + ":meta",
	}
}

// NewRedis creates a mirror persisted in Redis.
func NewRedis(rdb redis.UniversalClient, prefix string) *Mirror {
	return New(
		NewRedisCollection(rdb, prefix, ProductsCollection, ProductKey, Append),
		NewRedisCollection(rdb, prefix, BillsCollection, BillKey, Prepend),
	)
}

func (c *RedisCollection[T]) Name() string {
	return c.name
}

func (c *RedisCollection[T]) ReplaceAll(ctx context.Context, records []T) error {
	keys, byKey := dedupe(records, c.key)

	fields := make([]any, 0, len(keys)*2)
	order := make([]any, 0, len(keys))
	for _, k := range keys {
		data, err := json.Marshal(byKey[k])
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", c.name, k, err)
		}
		fields = append(fields, k, data)
		order = append(order, k)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.dataKey, c.orderKey)
		if len(keys) > 0 {
			pipe.HSet(ctx, c.dataKey, fields...)
			pipe.RPush(ctx, c.orderKey, order...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", c.name, err)
	}
	return nil
}

func (c *RedisCollection[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	data, err := c.rdb.HGet(ctx, c.dataKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("get %s/%s: %w", c.name, key, err)
	}
	var r T
	if err := json.Unmarshal(data, &r); err != nil {
		return zero, false, fmt.Errorf("decode %s/%s: %w", c.name, key, err)
	}
	return r, true, nil
}

func (c *RedisCollection[T]) All(ctx context.Context) ([]T, error) {
	var (
		orderCmd *redis.StringSliceCmd
		dataCmd  *redis.MapStringStringCmd
	)
	// MULTI/EXEC so the order list and the hash come from the same state.
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		orderCmd = pipe.LRange(ctx, c.orderKey, 0, -1)
		dataCmd = pipe.HGetAll(ctx, c.dataKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.name, err)
	}

	data := dataCmd.Val()
	out := make([]T, 0, len(data))
	for _, k := range orderCmd.Val() {
		raw, ok := data[k]
		if !ok {
			continue
		}
		var r T
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c.name, k, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *RedisCollection[T]) Put(ctx context.Context, record T) error {
	k := c.key(record)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, k, err)
	}
	position := "append"
	if c.order == Prepend {
		position = "prepend"
	}
	if err := putScript.Run(ctx, c.rdb, []string{c.dataKey, c.orderKey}, k, data, position).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", c.name, k, err)
	}
	return nil
}

func (c *RedisCollection[T]) Len(ctx context.Context) (int, error) {
	n, err := c.rdb.HLen(ctx, c.dataKey).Result()
	if err != nil {
		return 0, fmt.Errorf("len %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *RedisCollection[T]) Meta(ctx context.Context) (models.SyncMetadata, bool, error) {
	data, err := c.rdb.Get(ctx, c.metaKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SyncMetadata{}, false, nil
	}
	if err != nil {
		return models.SyncMetadata{}, false, fmt.Errorf("meta %s: %w", c.name, err)
	}
	var meta models.SyncMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.SyncMetadata{}, false, fmt.Errorf("decode meta %s: %w", c.name, err)
	}
	return meta, true, nil
}

func (c *RedisCollection[T]) SetMeta(ctx context.Context, meta models.SyncMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.metaKey, data, 0).Err(); err != nil {
		return fmt.Errorf("set meta %s: %w", c.name, err)
	}
	return nil
}

// Clear removes every key of the collection.
func (c *RedisCollection[T]) Clear(ctx context.Context) error {
	return c.rdb.Del(ctx, c.dataKey, c.orderKey, c.metaKey).Err()
}
