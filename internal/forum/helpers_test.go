package forum

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testEpoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// steppingClock returns strictly increasing instants so created_at never ties unless step is zero.
type steppingClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

func newSteppingClock(step time.Duration) *steppingClock {
	return &steppingClock{current: testEpoch, step: step}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	value := c.current
	c.current = c.current.Add(c.step)
	return value
}

type staticIDGenerator struct {
	mu    sync.Mutex
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type stubDirectory struct {
	profiles map[string]AuthorSnapshot
	err      error
}

func (d *stubDirectory) LookupAuthor(_ context.Context, userID string) (AuthorSnapshot, error) {
	if d.err != nil {
		return AuthorSnapshot{}, d.err
	}
	return d.profiles[userID], nil
}

type memoryCategoryCache struct {
	mu            sync.Mutex
	listings      []CategoryListing
	stored        bool
	loads         int
	invalidations int
}

func (c *memoryCategoryCache) Load(context.Context) ([]CategoryListing, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	return c.listings, c.stored, nil
}

func (c *memoryCategoryCache) Store(_ context.Context, listings []CategoryListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = listings
	c.stored = true
	return nil
}

func (c *memoryCategoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = nil
	c.stored = false
	c.invalidations++
	return nil
}

type testHarness struct {
	service *Service
	db      *gorm.DB
	clock   *steppingClock
	logs    *observer.ObservedLogs
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forum.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func newTestHarness(t *testing.T, configure ...func(*ServiceConfig)) *testHarness {
	t.Helper()
	db := openTestDatabase(t)
	clock := newSteppingClock(time.Second)
	core, logs := observer.New(zap.DebugLevel)
	cfg := ServiceConfig{
		Database:   db,
		Clock:      clock.Now,
		IDProvider: NewUUIDProvider(),
		Logger:     zap.New(core),
	}
	for _, apply := range configure {
		apply(&cfg)
	}
	service, err := NewService(cfg)
	require.NoError(t, err)
	return &testHarness{service: service, db: db, clock: clock, logs: logs}
}

func (h *testHarness) mustCategory(t *testing.T, name string) Category {
	t.Helper()
	category, err := h.service.Catalog().CreateCategory(context.Background(), CategoryInput{
		Name:        name,
		Description: name + " discussions",
		Order:       1,
	})
	require.NoError(t, err)
	return category
}

func (h *testHarness) mustTopic(t *testing.T, caller Caller, categoryID, title string) Topic {
	t.Helper()
	topic, err := h.service.Topics().CreateTopic(context.Background(), caller, TopicInput{
		Title:      title,
		Content:    title + " body",
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return topic
}

func (h *testHarness) mustPost(t *testing.T, caller Caller, topicID, content string) Post {
	t.Helper()
	post, err := h.service.Posts().CreatePost(context.Background(), caller, topicID, content)
	require.NoError(t, err)
	return post
}

func (h *testHarness) reloadTopic(t *testing.T, id string) Topic {
	t.Helper()
	var topic Topic
	require.NoError(t, h.db.Where(queryID, id).Take(&topic).Error)
	return topic
}

func (h *testHarness) reloadCategory(t *testing.T, id string) Category {
	t.Helper()
	var category Category
	require.NoError(t, h.db.Where(queryID, id).Take(&category).Error)
	return category
}

func (h *testHarness) reloadPost(t *testing.T, id string) Post {
	t.Helper()
	var post Post
	require.NoError(t, h.db.Where(queryID, id).Take(&post).Error)
	return post
}

func requireSameInstant(t *testing.T, expected time.Time, actual *time.Time) {
	t.Helper()
	require.NotNil(t, actual)
	require.Truef(t, expected.Equal(*actual), "expected %s, got %s", expected, *actual)
}

var (
	alice = Caller{UserID: "user-alice-000001", DisplayName: "Alice", Email: "alice@example.com"}
	bob   = Caller{UserID: "user-bob-000002", DisplayName: "Bob", Email: "bob@example.com"}
	admin = Caller{UserID: "user-admin-000003", DisplayName: "Admin", Email: "admin@example.com", IsAdmin: true}
)
