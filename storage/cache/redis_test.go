package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	Name string `json:"name"`
	Rate int    `json:"rate"`
}

func newRedisCache(t *testing.T) (ReportCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), srv
}

func key(t *testing.T, c ReportCache, tenantID, report string) string {
	t.Helper()
	k, err := c.Key(context.Background(), tenantID, report)
	require.NoError(t, err)
	return k
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, srv := newRedisCache(t)

	var got report
	hit, err := c.Get(ctx, key(t, c, "t1", "classes"), &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, key(t, c, "t1", "classes"), report{Name: "Grade 5", Rate: 80}))
	hit, err = c.Get(ctx, key(t, c, "t1", "classes"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, report{Name: "Grade 5", Rate: 80}, got)

	// other tenants are untouched by an invalidation
	require.NoError(t, c.Set(ctx, key(t, c, "t2", "classes"), report{Name: "Grade 1"}))
	require.NoError(t, c.Invalidate(ctx, "t1"))

	hit, err = c.Get(ctx, key(t, c, "t1", "classes"), &got)
	require.NoError(t, err)
	assert.False(t, hit, "entry survived invalidation")

	hit, err = c.Get(ctx, key(t, c, "t2", "classes"), &got)
	require.NoError(t, err)
	assert.True(t, hit)

	srv.FastForward(2 * time.Minute)
	hit, err = c.Get(ctx, key(t, c, "t2", "classes"), &got)
	require.NoError(t, err)
	assert.False(t, hit, "entry outlived its ttl")
}

func TestRedisCache_writeDuringCompute(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)

	// a report is computed from data read before the invalidation
	k := key(t, c, "t1", "classes")
	var got report
	hit, err := c.Get(ctx, k, &got)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, c.Invalidate(ctx, "t1"))
	require.NoError(t, c.Set(ctx, k, report{Name: "Grade 5", Rate: 2}))

	hit, err = c.Get(ctx, key(t, c, "t1", "classes"), &got)
	require.NoError(t, err)
	assert.False(t, hit, "stale report served after invalidation")
}

func TestRedisCache_unavailable(t *testing.T) {
	c, srv := newRedisCache(t)
	srv.Close()

	_, err := c.Key(context.Background(), "t1", "classes")
	assert.Error(t, err)

	var got report
	_, err = c.Get(context.Background(), "attendance:t1:v0:classes", &got)
	assert.Error(t, err)
}

func TestNopCache(t *testing.T) {
	c := NewNopCache()
	k := key(t, c, "t1", "k")
	require.NoError(t, c.Set(context.Background(), k, 1))
	var got int
	hit, err := c.Get(context.Background(), k, &got)
	assert.NoError(t, err)
	assert.False(t, hit)
}
