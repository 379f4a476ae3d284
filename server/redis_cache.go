package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCache implements the Cache interface using Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(ctx context.Context, address string, ttlSeconds int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        address,
		Password:    "", // no password
		DB:          0,  // use default DB
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func userKey(id int) string {
	return fmt.Sprintf("user:%d", id)
}

func productKey(name string) string {
	return fmt.Sprintf("product:%s", name)
}

// GetUser gets a user from the cache
func (c *RedisCache) GetUser(ctx context.Context, id int) (*User, error) {
	data, err := c.client.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: user %d not cached", ErrNotFound, id)
		}
		return nil, err
	}

	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// SetUser sets a user in the cache
func (c *RedisCache) SetUser(ctx context.Context, user *User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, userKey(user.ID), data, c.ttl).Err()
}

// DeleteUser deletes a user from the cache
func (c *RedisCache) DeleteUser(ctx context.Context, id int) error {
	return c.client.Del(ctx, userKey(id)).Err()
}

// GetProduct gets a product from the cache
func (c *RedisCache) GetProduct(ctx context.Context, name string) (*Product, error) {
	data, err := c.client.Get(ctx, productKey(name)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: product %q not cached", ErrNotFound, name)
		}
		return nil, err
	}

	var product Product
	if err := json.Unmarshal(data, &product); err != nil {
		return nil, err
	}

	return &product, nil
}

// SetProduct sets a product in the cache
func (c *RedisCache) SetProduct(ctx context.Context, product *Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, productKey(product.Name), data, c.ttl).Err()
}

// DeleteProduct deletes a product from the cache
func (c *RedisCache) DeleteProduct(ctx context.Context, name string) error {
	return c.client.Del(ctx, productKey(name)).Err()
}
