package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// getPasswordFromSecretsManager retrieves the database password from AWS
// Secrets Manager. Used for DocumentDB clusters where credentials are not
// embedded in the connection string.
func getPasswordFromSecretsManager(region, secretArn string) (string, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc := secretsmanager.New(sess)

	result, err := svc.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}

	if result.SecretString == nil {
		return "", fmt.Errorf("secret value is nil")
	}

	return *result.SecretString, nil
}

// loadTLSConfig builds a TLS configuration from a CA bundle file, as
// required when connecting to DocumentDB.
func loadTLSConfig(caFile string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate from %s: %w", caFile, err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{RootCAs: caCertPool}, nil
}

// MongoStore implements the Store interface on MongoDB or DocumentDB.
// Uniqueness of users.id and products.name is guaranteed by unique
// indexes declared at initialization; application-level pre-checks are
// advisory only.
type MongoStore struct {
	client   *mongo.Client
	database *mongo.Database
	users    *mongo.Collection
	products *mongo.Collection
}

// NewMongoStore connects to the configured document store, declares the
// uniqueness constraints, and seeds the bootstrap data if the
// collections are empty.
func NewMongoStore(ctx context.Context, config *Config) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(config.Mongo.URI)

	if config.Mongo.PasswordSecretArn != "" {
		password, err := getPasswordFromSecretsManager(config.AWS.Region, config.Mongo.PasswordSecretArn)
		if err != nil {
			return nil, fmt.Errorf("failed to get password from Secrets Manager: %w", err)
		}
		clientOptions.SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-1",
			AuthSource:    "admin",
			Username:      config.Mongo.Username,
			Password:      password,
		})
	}

	if config.Mongo.TLSCAFile != "" {
		tlsConfig, err := loadTLSConfig(config.Mongo.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		clientOptions.SetTLSConfig(tlsConfig)
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.Mongo.URI, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping document store: %w", err)
	}

	log.Infof("connected to document store, database %s", config.Mongo.Database)

	database := client.Database(config.Mongo.Database)
	store := &MongoStore{
		client:   client,
		database: database,
		users:    database.Collection("users"),
		products: database.Collection("products"),
	}

	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	store.seed(ctx)

	return store, nil
}

// ensureIndexes declares the unique indexes that back the uniqueness
// invariants. The store, not application logic, is the final arbiter of
// identifier and name collisions.
func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique index on users.id: %w", err)
	}

	_, err = s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create unique index on products.name: %w", err)
	}

	return nil
}

// NextUserID returns the next identifier to assign: one past the current
// maximum, or 1 for an empty collection. This is a read-then-derive
// step, not an atomic counter; two concurrent creates can compute the
// same value, in which case the unique index rejects the loser and the
// insert surfaces ErrConflict.
func (s *MongoStore) NextUserID(ctx context.Context) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})

	var last User
	err := s.users.FindOne(ctx, bson.M{}, opts).Decode(&last)
	if err == mongo.ErrNoDocuments {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read max user id: %w", err)
	}

	return last.ID + 1, nil
}

// CreateUser creates a new user with a server-assigned id and defaults
// applied for omitted fields.
func (s *MongoStore) CreateUser(ctx context.Context, req *CreateUserRequest) (*User, error) {
	if req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}

	id, err := s.NextUserID(ctx)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:        id,
		Name:      req.Name,
		Email:     req.Email,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if req.Age != nil {
		user.Age = *req.Age
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: user id %d already assigned", ErrConflict, id)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// ListUsers returns users matching the filter, sorted by id so reads are
// deterministic for a fixed store state.
func (s *MongoStore) ListUsers(ctx context.Context, filter *UserFilter) ([]*User, error) {
	query := bson.M{}
	if filter != nil {
		if filter.Active != nil {
			query["isActive"] = *filter.Active
		}
		if filter.MinAge != nil {
			query["age"] = bson.M{"$gt": *filter.MinAge}
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "id", Value: 1}})
	cursor, err := s.users.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []*User{}
	for cursor.Next(ctx) {
		var user User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		users = append(users, &user)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return users, nil
}

// GetUser retrieves a user by id.
func (s *MongoStore) GetUser(ctx context.Context, id int) (*User, error) {
	var user User
	err := s.users.FindOne(ctx, bson.M{"id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// UpdateUser applies a partial update to a user. The id and createdAt
// fields are stripped from the payload: the identifier is immutable and
// the creation timestamp is set exactly once at insert.
func (s *MongoStore) UpdateUser(ctx context.Context, id int, fields map[string]interface{}) (*User, error) {
	set := bson.M{}
	for key, value := range fields {
		switch key {
		case "name", "email":
			if _, ok := value.(string); !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidInput, key)
			}
		case "age":
			// JSON numbers decode as float64; store ages as integers.
			switch v := value.(type) {
			case float64:
				value = int(v)
			case int:
			default:
				return nil, fmt.Errorf("%w: age must be a number", ErrInvalidInput)
			}
		case "isActive":
			if _, ok := value.(bool); !ok {
				return nil, fmt.Errorf("%w: isActive must be a boolean", ErrInvalidInput)
			}
		default:
			// Immutable and unknown fields are dropped from the update.
			continue
		}
		set[key] = value
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields in payload", ErrInvalidInput)
	}

	result, err := s.users.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}

	return s.GetUser(ctx, id)
}

// ToggleUserActive flips a user's isActive flag and returns the new value.
func (s *MongoStore) ToggleUserActive(ctx context.Context, id int) (bool, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}

	active := !user.IsActive
	if _, err := s.users.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"isActive": active}}); err != nil {
		return false, fmt.Errorf("failed to toggle user active flag: %w", err)
	}

	return active, nil
}

// DeleteUser removes a user by id.
func (s *MongoStore) DeleteUser(ctx context.Context, id int) error {
	result, err := s.users.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}

	return nil
}

// CreateProduct creates a new product keyed by its unique name. The
// existence pre-check is advisory; the unique index on name is the
// final guarantee and a duplicate-key insert surfaces ErrConflict.
func (s *MongoStore) CreateProduct(ctx context.Context, req *CreateProductRequest) (*Product, error) {
	if req.Name == "" || req.Category == "" || req.Price == nil {
		return nil, fmt.Errorf("%w: name, price and category are required", ErrInvalidInput)
	}

	count, err := s.products.CountDocuments(ctx, bson.M{"name": req.Name})
	if err != nil {
		return nil, fmt.Errorf("failed to check product existence: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: product %q already exists", ErrConflict, req.Name)
	}

	product := &Product{
		Name:      req.Name,
		Price:     *req.Price,
		Category:  req.Category,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.products.InsertOne(ctx, product); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: product %q already exists", ErrConflict, req.Name)
		}
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	return product, nil
}

// ListProducts returns all products sorted by name.
func (s *MongoStore) ListProducts(ctx context.Context) ([]*Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []*Product{}
	for cursor.Next(ctx) {
		var product Product
		if err := cursor.Decode(&product); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, &product)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return products, nil
}

// GetProduct retrieves a product by name.
func (s *MongoStore) GetProduct(ctx context.Context, name string) (*Product, error) {
	var product Product
	err := s.products.FindOne(ctx, bson.M{"name": name}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: product %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &product, nil
}

// UpdateProduct applies a partial update to a product. A rename is
// allowed only if no other record holds the new name; the pre-check is
// advisory and the unique index catches the rename race. A matched
// update that modifies nothing (payload identical to the stored record)
// is a no-op success.
func (s *MongoStore) UpdateProduct(ctx context.Context, name string, fields map[string]interface{}) (*Product, error) {
	set := bson.M{}
	newName := ""
	renamed := false
	for key, value := range fields {
		switch key {
		case "name":
			v, ok := value.(string)
			if !ok || v == "" {
				return nil, fmt.Errorf("%w: name must be a non-empty string", ErrInvalidInput)
			}
			if v != name {
				newName = v
				renamed = true
			}
		case "price":
			switch v := value.(type) {
			case float64:
			case int:
				value = float64(v)
			default:
				return nil, fmt.Errorf("%w: price must be a number", ErrInvalidInput)
			}
		case "category":
			if _, ok := value.(string); !ok {
				return nil, fmt.Errorf("%w: category must be a string", ErrInvalidInput)
			}
		default:
			continue
		}
		set[key] = value
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields in payload", ErrInvalidInput)
	}

	if renamed {
		count, err := s.products.CountDocuments(ctx, bson.M{"name": newName})
		if err != nil {
			return nil, fmt.Errorf("failed to check product existence: %w", err)
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: product %q already exists", ErrConflict, newName)
		}
	}

	result, err := s.products.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: product %q already exists", ErrConflict, newName)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, fmt.Errorf("%w: product %q", ErrNotFound, name)
	}

	lookup := name
	if renamed {
		lookup = newName
	}
	return s.GetProduct(ctx, lookup)
}

// DeleteProduct removes a product by name.
func (s *MongoStore) DeleteProduct(ctx context.Context, name string) error {
	result, err := s.products.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: product %q", ErrNotFound, name)
	}

	return nil
}

// Close disconnects from the document store.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
