// Package cache 提供基于键值存储的泛型缓存实现，目前用于上传列表.
//
// 值使用 sonic 编码为 JSON 存入 KV，支持 TTL.
// GetOrSet 通过 singleflight 合并同一键的并发回源，避免列表缓存失效后集中查询数据库.
//
// 基本用法:
//
//	c := cache.NewCache(kvStore, "catalog")
//	items, err := cache.GetOrSet(ctx, c, "uploads", func() ([]Item, error) {
//	    return loadFromDB(ctx)
//	}, 30*time.Second)
//
// 缓存未命中或读取失败不会视为错误，GetOrSet 会回源并尽力写回.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/dataviz/pkg/internal/storage/kv"
	"github.com/yeisme/dataviz/pkg/log"
)

// ErrMiss 缓存未命中.
var ErrMiss = errors.New("cache: miss")

// Cache 基于 KV 存储的缓存实现.
type Cache struct {
	kvStore   kv.KVStore
	namespace string
	group     singleflight.Group
}

// NewCache 创建缓存实例，namespace 作为所有键的前缀.
func NewCache(kvStore kv.KVStore, namespace string) *Cache {
	return &Cache{
		kvStore:   kvStore,
		namespace: namespace,
	}
}

// Key 组合命名空间与业务键.
func (c *Cache) Key(key string) string {
	if c.namespace == "" {
		return key
	}

	return c.namespace + ":" + key
}

// HashKey 将任意长度的参数压缩为定长键，用于带查询参数的缓存项.
func HashKey(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}

	return strconv.FormatUint(d.Sum64(), 16)
}

// Get 泛型获取缓存值，未命中返回 ErrMiss.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.Key(key))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return zero, ErrMiss
		}

		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.Key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.Key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.Key(key))
}

// GetOrSet 获取缓存值，未命中时调用 getter 并写回.
// 同一键的并发调用只会执行一次 getter.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	} else if !errors.Is(err, ErrMiss) {
		log.Logger().Warn().Err(err).Str("key", c.Key(key)).Msg("cache read failed, falling back")
	}

	v, err, _ := c.group.Do(c.Key(key), func() (any, error) {
		value, err := getter()
		if err != nil {
			return value, err
		}

		if setErr := Set(ctx, c, key, value, ttl); setErr != nil {
			// 写回失败不影响本次结果
			log.Logger().Warn().Err(setErr).Str("key", c.Key(key)).Msg("cache write failed")
		}

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil
}
