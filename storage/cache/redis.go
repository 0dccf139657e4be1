package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/core"
)

const keyPrefix = "attendance"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ReportCache = (*redisCache)(nil)

// Open connects to redis and checks it answers.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Redis.Addr)
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) ReportCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisCache{client: client, ttl: ttl}
}

func versionKey(tenantID string) string {
	return fmt.Sprintf("%s:%s:version", keyPrefix, tenantID)
}

// Key scopes report to the current version of the tenant; bumping the version orphans older entries.
func (c *redisCache) Key(ctx context.Context, tenantID, report string) (string, error) {
	version, err := c.client.Get(ctx, versionKey(tenantID)).Int64()
	if err != nil && err != redis.Nil {
		return "", errors.Wrap(err, "reading cache version")
	}
	return fmt.Sprintf("%s:%s:v%d:%s", keyPrefix, tenantID, version, report), nil
}

func (c *redisCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", key)
	}
	if err = json.Unmarshal(data, dst); err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, val interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	return errors.Wrapf(c.client.Set(ctx, key, data, c.ttl).Err(), "writing %s", key)
}

func (c *redisCache) Invalidate(ctx context.Context, tenantID string) error {
	return errors.Wrapf(c.client.Incr(ctx, versionKey(tenantID)).Err(), "bumping cache version of %s", tenantID)
}
