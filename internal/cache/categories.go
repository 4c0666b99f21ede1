// Package cache keeps the public category listing in Redis between aggregate changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// categoriesKey holds the JSON-encoded active category listing.
	categoriesKey = "forum:categories:active"

	// DefaultCategoriesTTL bounds how long a listing survives a missed invalidation.
	DefaultCategoriesTTL = 30 * time.Second

	pingTimeout = 5 * time.Second
)

var _ forum.CategoryCache = (*CategoryCache)(nil)

// RedisConfig locates the Redis server.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// ConnectRedis creates a Redis client and verifies the connection with a ping.
func ConnectRedis(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	if logger != nil {
		logger.Info("redis connected", zap.String("address", address), zap.Int("db", cfg.DB))
	}
	return client, nil
}

// CategoryCache implements forum.CategoryCache on a Redis string key.
type CategoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCategoryCache wraps client; a non-positive ttl falls back to DefaultCategoriesTTL.
func NewCategoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultCategoriesTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryCache{client: client, ttl: ttl, logger: logger}
}

// Load returns the cached listing; found is false on a miss.
func (c *CategoryCache) Load(ctx context.Context) ([]forum.CategoryListing, bool, error) {
	payload, err := c.client.Get(ctx, categoriesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("category cache get: %w", err)
	}
	listings, err := decodeListings(payload)
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("category cache hit", zap.Int("categories", len(listings)))
	return listings, true, nil
}

// Store replaces the cached listing.
func (c *CategoryCache) Store(ctx context.Context, listings []forum.CategoryListing) error {
	payload, err := encodeListings(listings)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, categoriesKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("category cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached listing.
func (c *CategoryCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, categoriesKey).Err(); err != nil {
		return fmt.Errorf("category cache invalidate: %w", err)
	}
	c.logger.Debug("category cache invalidated")
	return nil
}

func encodeListings(listings []forum.CategoryListing) ([]byte, error) {
	if listings == nil {
		listings = []forum.CategoryListing{}
	}
	payload, err := json.Marshal(listings)
	if err != nil {
		return nil, fmt.Errorf("category cache encode: %w", err)
	}
	return payload, nil
}

func decodeListings(payload []byte) ([]forum.CategoryListing, error) {
	var listings []forum.CategoryListing
	if err := json.Unmarshal(payload, &listings); err != nil {
		return nil, fmt.Errorf("category cache decode: %w", err)
	}
	return listings, nil
}
