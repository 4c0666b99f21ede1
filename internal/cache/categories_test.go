package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedisClient returns a client on DB 15 and skips when no server is reachable.
func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	address := os.Getenv("FORUM_TEST_REDIS_ADDR")
	if address == "" {
		address = "localhost:6379"
	}
	client, err := ConnectRedis(context.Background(), RedisConfig{Address: address, DB: 15}, nil)
	if err != nil {
		t.Skipf("skipping integration test: redis not reachable: %v", err)
	}
	t.Cleanup(func() {
		client.Del(context.Background(), categoriesKey)
		_ = client.Close()
	})
	return client
}

func sampleListings() []forum.CategoryListing {
	lastTopicID := "topic-1"
	lastPostAt := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	return []forum.CategoryListing{
		{
			Category: forum.Category{
				ID:          "cat-1",
				Name:        "General Discussion",
				Description: "General topics",
				Order:       1,
				IsActive:    true,
				TopicCount:  4,
				LastTopicID: &lastTopicID,
				LastPostAt:  &lastPostAt,
				CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			},
			LastTopic: &forum.TopicPreview{
				ID:         lastTopicID,
				Title:      "Welcome",
				AuthorName: "Ada",
				CreatedAt:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			Category: forum.Category{ID: "cat-2", Name: "Marketplace", Order: 5, IsActive: true},
		},
	}
}

func TestListingsEncodingPreservesPreviews(t *testing.T) {
	payload, err := encodeListings(sampleListings())
	require.NoError(t, err)

	decoded, err := decodeListings(payload)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.NotNil(t, decoded[0].LastTopic)
	assert.Equal(t, "Welcome", decoded[0].LastTopic.Title)
	require.NotNil(t, decoded[0].Category.LastPostAt)
	assert.True(t, decoded[0].Category.LastPostAt.Equal(*sampleListings()[0].Category.LastPostAt))
	assert.Nil(t, decoded[1].LastTopic)
	assert.Nil(t, decoded[1].Category.LastTopicID)

	_, err = decodeListings([]byte("not json"))
	require.Error(t, err)
}

func TestConnectRedisRequiresAddress(t *testing.T) {
	_, err := ConnectRedis(context.Background(), RedisConfig{}, nil)
	require.Error(t, err)
}

func TestCategoryCacheStoreLoadInvalidate(t *testing.T) {
	client := testRedisClient(t)
	cache := NewCategoryCache(client, time.Minute, nil)
	ctx := context.Background()

	_, found, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Store(ctx, sampleListings()))
	listings, found, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, listings, 2)
	assert.Equal(t, "cat-1", listings[0].Category.ID)

	ttl, err := client.TTL(ctx, categoriesKey).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, cache.Invalidate(ctx))
	_, found, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCategoryCacheEmptyListingIsAHit(t *testing.T) {
	client := testRedisClient(t)
	cache := NewCategoryCache(client, 0, nil)
	ctx := context.Background()

	require.NoError(t, cache.Store(ctx, nil))
	listings, found, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, listings)
}
