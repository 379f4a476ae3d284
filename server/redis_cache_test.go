package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache, err := NewRedisCache(context.Background(), mr.Addr(), 60)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return cache, mr
}

func TestRedisCacheUserRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	user := &User{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 28, IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, cache.SetUser(ctx, user))

	got, err := cache.GetUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Name, got.Name)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))
}

func TestRedisCacheUserMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.GetUser(context.Background(), 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisCacheDeleteUser(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	user := &User{ID: 2, Name: "Bob", Email: "bob@example.com", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, cache.SetUser(ctx, user))
	require.NoError(t, cache.DeleteUser(ctx, 2))

	_, err := cache.GetUser(ctx, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisCacheProductRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	product := &Product{Name: "Laptop", Price: 999.99, Category: "electronics", CreatedAt: time.Now().UTC()}
	require.NoError(t, cache.SetProduct(ctx, product))

	got, err := cache.GetProduct(ctx, "Laptop")
	require.NoError(t, err)
	assert.Equal(t, product.Name, got.Name)
	assert.Equal(t, product.Price, got.Price)

	require.NoError(t, cache.DeleteProduct(ctx, "Laptop"))
	_, err = cache.GetProduct(ctx, "Laptop")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	user := &User{ID: 3, Name: "Charlie", Email: "charlie@example.com", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, cache.SetUser(ctx, user))

	mr.FastForward(61 * time.Second)

	_, err := cache.GetUser(ctx, 3)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRedisCacheConnectFailure(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "localhost:1", 60)
	assert.Error(t, err)
}
