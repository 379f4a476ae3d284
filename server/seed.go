package server

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// seed populates empty collections with the bootstrap dataset. Seeding
// failures are logged and non-fatal: the store remains usable empty.
func (s *MongoStore) seed(ctx context.Context) {
	if err := s.seedUsers(ctx); err != nil {
		log.WithError(err).Warn("failed to seed users")
	}
	if err := s.seedProducts(ctx); err != nil {
		log.WithError(err).Warn("failed to seed products")
	}
}

// seedUsers inserts the bootstrap users if and only if the collection is
// empty. The pre-assigned ids 1..5 anchor the identifier sequence.
func (s *MongoStore) seedUsers(ctx context.Context) error {
	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	users := []interface{}{
		&User{ID: 1, Name: "Alice", Email: "alice@example.com", Age: 28, IsActive: true, CreatedAt: now},
		&User{ID: 2, Name: "Bob", Email: "bob@example.com", Age: 35, IsActive: true, CreatedAt: now},
		&User{ID: 3, Name: "Charlie", Email: "charlie@example.com", Age: 22, IsActive: true, CreatedAt: now},
		&User{ID: 4, Name: "Diana", Email: "diana@example.com", Age: 41, IsActive: false, CreatedAt: now},
		&User{ID: 5, Name: "Evan", Email: "evan@example.com", Age: 19, IsActive: true, CreatedAt: now},
	}

	if _, err := s.users.InsertMany(ctx, users); err != nil {
		return err
	}

	log.Infof("seeded %d users", len(users))
	return nil
}

// seedProducts inserts the bootstrap products if and only if the
// collection is empty.
func (s *MongoStore) seedProducts(ctx context.Context) error {
	count, err := s.products.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	products := []interface{}{
		&Product{Name: "Laptop", Price: 999.99, Category: "electronics", CreatedAt: now},
		&Product{Name: "T-Shirt", Price: 19.99, Category: "apparel", CreatedAt: now},
		&Product{Name: "Coffee Mug", Price: 12.50, Category: "kitchen", CreatedAt: now},
	}

	if _, err := s.products.InsertMany(ctx, products); err != nil {
		return err
	}

	log.Infof("seeded %d products", len(products))
	return nil
}
