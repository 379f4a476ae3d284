package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server translates HTTP requests into store operations and store
// results into HTTP responses.
type Server struct {
	config  *Config
	store   Store
	cache   Cache
	grpcSrv *grpc.Server
}

// NewServer creates a new server. A storage fault here is fatal: the
// caller is expected to exit.
func NewServer(config *Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewMongoStore(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	// Use the Redis cache when configured, NoOpCache otherwise. A cache
	// connection failure is not fatal.
	var cache Cache = &NoOpCache{}
	if config.Cache.Address != "" {
		cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cacheCancel()

		redisCache, err := NewRedisCache(cacheCtx, config.Cache.Address, config.Cache.TTL)
		if err != nil {
			log.WithError(err).Warn("failed to connect to Redis cache, continuing without cache")
		} else {
			cache = redisCache
			log.Infof("connected to Redis cache at %s", config.Cache.Address)
		}
	}

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, health.NewServer())
	reflection.Register(grpcSrv)

	return &Server{
		config:  config,
		store:   store,
		cache:   cache,
		grpcSrv: grpcSrv,
	}, nil
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/users", s.handleUsers)
	mux.HandleFunc("/users/", s.handleUserPath)
	mux.HandleFunc("/products", s.handleProducts)
	mux.HandleFunc("/products/", s.handleProductPath)
	return mux
}

// Start runs the gRPC health server and the HTTP server, and shuts both
// down on SIGINT/SIGTERM, releasing the store connection before exit.
func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf(":%d", s.config.Server.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("failed to listen on %s: %v", addr, err)
		}
		log.Infof("gRPC server listening on %s", addr)
		if err := s.grpcSrv.Serve(lis); err != nil {
			log.Fatalf("failed to serve gRPC: %v", err)
		}
	}()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.HTTPPort),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.Infof("HTTP server listening on %s", httpSrv.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	s.grpcSrv.GracefulStop()
	if closer, ok := s.cache.(io.Closer); ok {
		closer.Close()
	}
	return s.store.Close(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeStoreError maps a store failure to a status code. Storage faults
// are logged and reported generically; the detail never reaches the
// caller.
func writeStoreError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Errorf("failed to %s", op)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to %s", op))
	}
}

// handleHealth handles the health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// handleUsers handles the /users endpoint
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		filter := &UserFilter{}
		if activeStr := r.URL.Query().Get("active"); activeStr != "" {
			active, err := strconv.ParseBool(activeStr)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid active parameter")
				return
			}
			filter.Active = &active
		}

		users, err := s.store.ListUsers(ctx, filter)
		if err != nil {
			writeStoreError(w, err, "list users")
			return
		}
		writeJSON(w, http.StatusOK, users)

	case http.MethodPost:
		var req CreateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		user, err := s.store.CreateUser(ctx, &req)
		if err != nil {
			writeStoreError(w, err, "create user")
			return
		}
		writeJSON(w, http.StatusCreated, user)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleUserPath dispatches /users/{id}, /users/active, /users/age/{minAge}
// and /users/{id}/toggle-active.
func (s *Server) handleUserPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] == "active":
		s.handleActiveUsers(w, r)
	case parts[0] == "age" && len(parts) == 2:
		s.handleUsersByAge(w, r, parts[1])
	case len(parts) == 1:
		s.handleUser(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "toggle-active":
		s.handleToggleUserActive(w, r, parts[0])
	default:
		http.NotFound(w, r)
	}
}

// handleActiveUsers handles GET /users/active
func (s *Server) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	active := true
	users, err := s.store.ListUsers(r.Context(), &UserFilter{Active: &active})
	if err != nil {
		writeStoreError(w, err, "list active users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// handleUsersByAge handles GET /users/age/{minAge}
func (s *Server) handleUsersByAge(w http.ResponseWriter, r *http.Request, minAgeStr string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	minAge, err := strconv.Atoi(minAgeStr)
	if err != nil || minAge < 0 {
		writeError(w, http.StatusBadRequest, "invalid age parameter")
		return
	}

	filter := &UserFilter{MinAge: &minAge}
	if activeStr := r.URL.Query().Get("active"); activeStr != "" {
		active, err := strconv.ParseBool(activeStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active parameter")
			return
		}
		filter.Active = &active
	}

	users, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err, "list users by age")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(users),
		"users": users,
	})
}

// handleUser handles GET/PUT/DELETE /users/{id}
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, idStr string) {
	ctx := r.Context()

	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		if user, err := s.cache.GetUser(ctx, id); err == nil {
			writeJSON(w, http.StatusOK, user)
			return
		}

		user, err := s.store.GetUser(ctx, id)
		if err != nil {
			writeStoreError(w, err, "get user")
			return
		}
		if err := s.cache.SetUser(ctx, user); err != nil {
			log.WithError(err).Warn("failed to cache user")
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodPut:
		var fields map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		user, err := s.store.UpdateUser(ctx, id, fields)
		if err != nil {
			writeStoreError(w, err, "update user")
			return
		}
		if err := s.cache.DeleteUser(ctx, id); err != nil {
			log.WithError(err).Warn("failed to invalidate cached user")
		}
		writeJSON(w, http.StatusOK, user)

	case http.MethodDelete:
		if err := s.store.DeleteUser(ctx, id); err != nil {
			writeStoreError(w, err, "delete user")
			return
		}
		if err := s.cache.DeleteUser(ctx, id); err != nil {
			log.WithError(err).Warn("failed to invalidate cached user")
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted successfully"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleToggleUserActive handles PATCH /users/{id}/toggle-active
func (s *Server) handleToggleUserActive(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodPatch {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx := r.Context()
	active, err := s.store.ToggleUserActive(ctx, id)
	if err != nil {
		writeStoreError(w, err, "toggle user active flag")
		return
	}
	if err := s.cache.DeleteUser(ctx, id); err != nil {
		log.WithError(err).Warn("failed to invalidate cached user")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "user active status toggled",
		"isActive": active,
	})
}

// handleProducts handles the /products endpoint
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			writeStoreError(w, err, "list products")
			return
		}
		writeJSON(w, http.StatusOK, products)

	case http.MethodPost:
		var req CreateProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		product, err := s.store.CreateProduct(ctx, &req)
		if err != nil {
			writeStoreError(w, err, "create product")
			return
		}
		writeJSON(w, http.StatusCreated, product)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProductPath dispatches /products/{name}.
func (s *Server) handleProductPath(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/products/")
	if name == "" || strings.Contains(name, "/") {
		http.NotFound(w, r)
		return
	}
	s.handleProduct(w, r, name)
}

// handleProduct handles GET/PUT/DELETE /products/{name}
func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		if product, err := s.cache.GetProduct(ctx, name); err == nil {
			writeJSON(w, http.StatusOK, product)
			return
		}

		product, err := s.store.GetProduct(ctx, name)
		if err != nil {
			writeStoreError(w, err, "get product")
			return
		}
		if err := s.cache.SetProduct(ctx, product); err != nil {
			log.WithError(err).Warn("failed to cache product")
		}
		writeJSON(w, http.StatusOK, product)

	case http.MethodPut:
		var fields map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		product, err := s.store.UpdateProduct(ctx, name, fields)
		if err != nil {
			writeStoreError(w, err, "update product")
			return
		}
		// Invalidate the old key, and the new one on a rename.
		if err := s.cache.DeleteProduct(ctx, name); err != nil {
			log.WithError(err).Warn("failed to invalidate cached product")
		}
		if product.Name != name {
			if err := s.cache.DeleteProduct(ctx, product.Name); err != nil {
				log.WithError(err).Warn("failed to invalidate cached product")
			}
		}
		writeJSON(w, http.StatusOK, product)

	case http.MethodDelete:
		if err := s.store.DeleteProduct(ctx, name); err != nil {
			writeStoreError(w, err, "delete product")
			return
		}
		if err := s.cache.DeleteProduct(ctx, name); err != nil {
			log.WithError(err).Warn("failed to invalidate cached product")
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted successfully"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
