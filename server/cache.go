package server

import (
	"context"
)

// Cache defines the interface for caching single-record lookups
type Cache interface {
	GetUser(ctx context.Context, id int) (*User, error)
	SetUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id int) error
	GetProduct(ctx context.Context, name string) (*Product, error)
	SetProduct(ctx context.Context, product *Product) error
	DeleteProduct(ctx context.Context, name string) error
}

// NoOpCache implements the Cache interface but does nothing
type NoOpCache struct{}

// GetUser returns a not found error
func (c *NoOpCache) GetUser(ctx context.Context, id int) (*User, error) {
	return nil, ErrNotFound
}

// SetUser does nothing
func (c *NoOpCache) SetUser(ctx context.Context, user *User) error {
	return nil
}

// DeleteUser does nothing
func (c *NoOpCache) DeleteUser(ctx context.Context, id int) error {
	return nil
}

// GetProduct returns a not found error
func (c *NoOpCache) GetProduct(ctx context.Context, name string) (*Product, error) {
	return nil, ErrNotFound
}

// SetProduct does nothing
func (c *NoOpCache) SetProduct(ctx context.Context, product *Product) error {
	return nil
}

// DeleteProduct does nothing
func (c *NoOpCache) DeleteProduct(ctx context.Context, name string) error {
	return nil
}
