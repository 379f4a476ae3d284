package server

import (
	"context"
	"time"
)

// User represents a user record. The id is assigned by the store and is
// never taken from client input.
type User struct {
	ID        int       `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Age       int       `json:"age" bson:"age"`
	IsActive  bool      `json:"isActive" bson:"isActive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Product represents a product record, keyed by its unique name.
type Product struct {
	Name      string    `json:"name" bson:"name"`
	Price     float64   `json:"price" bson:"price"`
	Category  string    `json:"category" bson:"category"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// CreateUserRequest is the payload for creating a new user. Age and
// IsActive are pointers so absent fields can fall back to defaults.
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      *int   `json:"age"`
	IsActive *bool  `json:"isActive"`
}

// CreateProductRequest is the payload for creating a new product.
type CreateProductRequest struct {
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Category string   `json:"category"`
}

// UserFilter restricts a user listing. A nil field means no restriction.
type UserFilter struct {
	Active *bool
	MinAge *int
}

// Store defines the interface for resource store operations.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error)
	ListUsers(ctx context.Context, filter *UserFilter) ([]*User, error)
	GetUser(ctx context.Context, id int) (*User, error)
	UpdateUser(ctx context.Context, id int, fields map[string]interface{}) (*User, error)
	ToggleUserActive(ctx context.Context, id int) (bool, error)
	DeleteUser(ctx context.Context, id int) error

	// Product operations
	CreateProduct(ctx context.Context, req *CreateProductRequest) (*Product, error)
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, name string) (*Product, error)
	UpdateProduct(ctx context.Context, name string, fields map[string]interface{}) (*Product, error)
	DeleteProduct(ctx context.Context, name string) error

	// Close releases the underlying storage connection.
	Close(ctx context.Context) error
}
