package forum

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTopicValidatesInput(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Computing")

	testCases := []struct {
		name    string
		input   TopicInput
		message string
	}{
		{name: "missing title", input: TopicInput{Content: "body", CategoryID: category.ID}, message: "Title is required"},
		{name: "blank content", input: TopicInput{Title: "Go", Content: "  ", CategoryID: category.ID}, message: "Content is required"},
		{name: "missing category", input: TopicInput{Title: "Go", Content: "body"}, message: "Category is required"},
		{
			name:    "title too long",
			input:   TopicInput{Title: strings.Repeat("t", maxTopicTitleLength+1), Content: "body", CategoryID: category.ID},
			message: fmt.Sprintf("Title must be at most %d characters", maxTopicTitleLength),
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := h.service.Topics().CreateTopic(ctx, alice, testCase.input)
			require.ErrorIs(t, err, ErrInvalidInput)
			var serviceErr *ServiceError
			require.ErrorAs(t, err, &serviceErr)
			assert.Equal(t, testCase.message, serviceErr.Message())
		})
	}
	assert.EqualValues(t, 0, h.reloadCategory(t, category.ID).TopicCount)
}

func TestCreateTopicRequiresActiveCategory(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Archived")
	inactive := false
	_, err := h.service.Catalog().UpdateCategory(ctx, category.ID, CategoryPatch{IsActive: &inactive})
	require.NoError(t, err)

	_, err = h.service.Topics().CreateTopic(ctx, alice, TopicInput{Title: "Hello", Content: "body", CategoryID: category.ID})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.Topics().CreateTopic(ctx, alice, TopicInput{Title: "Hello", Content: "body", CategoryID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTopicUsesPlaceholderAuthor(t *testing.T) {
	h := newTestHarness(t)
	category := h.mustCategory(t, "Travel")

	topic := h.mustTopic(t, Caller{UserID: "firebase-uid-abcdef123456"}, category.ID, "Japan")
	assert.Equal(t, "User_123456", topic.AuthorName)
	assert.Equal(t, unknownAuthorEmail, topic.AuthorEmail)
	assert.Equal(t, "firebase-uid-abcdef123456", topic.AuthorID)
}

func TestListTopicsPaginatesAndPinsFirst(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Astronomy")
	var topics []Topic
	for index := 0; index < 5; index++ {
		topics = append(topics, h.mustTopic(t, alice, category.ID, fmt.Sprintf("Planet %d", index)))
	}
	pinned := true
	_, err := h.service.Topics().SetTopicFlags(ctx, topics[0].ID, TopicFlags{IsPinned: &pinned})
	require.NoError(t, err)
	h.mustPost(t, bob, topics[1].ID, "rings")

	page, err := h.service.Topics().ListTopics(ctx, TopicQuery{CategoryID: category.ID, Page: PageRequest{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: 2, Total: 5, Pages: 3}, page.Pagination)
	require.Len(t, page.Topics, 2)
	assert.Equal(t, topics[0].ID, page.Topics[0].Topic.ID)
	assert.Equal(t, topics[1].ID, page.Topics[1].Topic.ID)
	require.NotNil(t, page.Topics[1].LastPost)
	assert.Equal(t, "Bob", page.Topics[1].LastPost.AuthorName)
	require.NotNil(t, page.Topics[1].Category)
	assert.Equal(t, "Astronomy", page.Topics[1].Category.Name)

	last, err := h.service.Topics().ListTopics(ctx, TopicQuery{CategoryID: category.ID, Page: PageRequest{Page: 3, Limit: 2}})
	require.NoError(t, err)
	require.Len(t, last.Topics, 1)

	beyond, err := h.service.Topics().ListTopics(ctx, TopicQuery{Page: PageRequest{Page: 9, Limit: 2}})
	require.NoError(t, err)
	assert.Empty(t, beyond.Topics)
	assert.EqualValues(t, 5, beyond.Pagination.Total)

	capped, err := h.service.Topics().ListTopics(ctx, TopicQuery{Page: PageRequest{Limit: 5000}})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPageSize, capped.Pagination.Limit)
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Mathematics")
	other := h.mustCategory(t, "Music")
	algebra := h.mustTopic(t, alice, category.ID, "Algebra Basics")
	h.mustTopic(t, alice, category.ID, "Calculus")
	h.mustTopic(t, alice, other.ID, "Rhythm")

	for _, query := range []string{"algebra", "ALGEBRA", "bra ba"} {
		page, err := h.service.Topics().Search(ctx, TopicQuery{Search: query})
		require.NoError(t, err)
		require.Len(t, page.Topics, 1, query)
		assert.Equal(t, algebra.ID, page.Topics[0].Topic.ID)
	}

	scoped, err := h.service.Topics().Search(ctx, TopicQuery{Search: "algebra", CategoryID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, scoped.Topics)

	listed, err := h.service.Topics().ListTopics(ctx, TopicQuery{Search: "CALC"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, listed.Pagination.Total)

	_, err = h.service.Topics().Search(ctx, TopicQuery{Search: "   "})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchFoldsNonASCIILetters(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Mathematics")
	algebra := h.mustTopic(t, alice, category.ID, "Álgebra Básica")
	h.mustTopic(t, alice, category.ID, "Algebra Basics")

	for _, query := range []string{"álgebra", "ÁLGEBRA", "Álgebra", "BÁSICA", "ra bás"} {
		page, err := h.service.Topics().Search(ctx, TopicQuery{Search: query})
		require.NoError(t, err)
		require.Len(t, page.Topics, 1, query)
		assert.Equal(t, algebra.ID, page.Topics[0].Topic.ID, query)
	}

	listed, err := h.service.Topics().ListTopics(ctx, TopicQuery{Search: "BÁSICA BODY"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, listed.Pagination.Total)
}

func TestSearchTreatsWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Finance")
	discount := h.mustTopic(t, alice, category.ID, "50% off")
	h.mustTopic(t, alice, category.ID, "500 points")

	page, err := h.service.Topics().Search(ctx, TopicQuery{Search: "50%"})
	require.NoError(t, err)
	require.Len(t, page.Topics, 1)
	assert.Equal(t, discount.ID, page.Topics[0].Topic.ID)

	underscore, err := h.service.Topics().Search(ctx, TopicQuery{Search: "5_0"})
	require.NoError(t, err)
	assert.Empty(t, underscore.Topics)
}

func TestSearchIgnoresPinning(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Gardening")
	pinnedTopic := h.mustTopic(t, alice, category.ID, "Roses guide")
	recent := h.mustTopic(t, alice, category.ID, "Roses pests")
	pinned := true
	_, err := h.service.Topics().SetTopicFlags(ctx, pinnedTopic.ID, TopicFlags{IsPinned: &pinned})
	require.NoError(t, err)

	page, err := h.service.Topics().Search(ctx, TopicQuery{Search: "roses"})
	require.NoError(t, err)
	require.Len(t, page.Topics, 2)
	assert.Equal(t, recent.ID, page.Topics[0].Topic.ID)

	listed, err := h.service.Topics().ListTopics(ctx, TopicQuery{Search: "roses"})
	require.NoError(t, err)
	assert.Equal(t, pinnedTopic.ID, listed.Topics[0].Topic.ID)
}

func TestGetTopicIncrementsViews(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Cooking")
	topic := h.mustTopic(t, alice, category.ID, "Bread")

	viewed, err := h.service.Topics().GetTopic(ctx, topic.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, viewed.Topic.ViewCount)
	viewed, err = h.service.Topics().GetTopic(ctx, topic.ID, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, viewed.Topic.ViewCount)

	peeked, err := h.service.Topics().GetTopic(ctx, topic.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, peeked.Topic.ViewCount)
	require.NotNil(t, peeked.Category)
	assert.Equal(t, category.ID, peeked.Category.ID)
	assert.Nil(t, peeked.LastPost)

	_, err = h.service.Topics().GetTopic(ctx, "missing-topic", true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetTopicFlagsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Films")
	topic := h.mustTopic(t, alice, category.ID, "Noir")

	on, off := true, false
	updated, err := h.service.Topics().SetTopicFlags(ctx, topic.ID, TopicFlags{IsLocked: &on, IsPinned: &on})
	require.NoError(t, err)
	assert.True(t, updated.IsLocked)
	assert.True(t, updated.IsPinned)

	updated, err = h.service.Topics().SetTopicFlags(ctx, topic.ID, TopicFlags{IsLocked: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsLocked)
	assert.True(t, updated.IsPinned)

	_, err = h.service.Topics().SetTopicFlags(ctx, "missing-topic", TopicFlags{IsLocked: &on})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListTopicsForModerationMatchesAuthor(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Forum Feedback")
	h.mustTopic(t, alice, category.ID, "Dark mode")
	byBob := h.mustTopic(t, bob, category.ID, "Notifications")

	page, err := h.service.Topics().ListForModeration(ctx, TopicQuery{Search: "BOB"})
	require.NoError(t, err)
	require.Len(t, page.Topics, 1)
	assert.Equal(t, byBob.ID, page.Topics[0].Topic.ID)

	public, err := h.service.Topics().ListTopics(ctx, TopicQuery{Search: "bob"})
	require.NoError(t, err)
	assert.Empty(t, public.Topics)
}

func TestListTopicsForModerationFoldsNonASCIIAuthor(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)
	category := h.mustCategory(t, "Forum Feedback")
	zoe := Caller{UserID: "user-zoe-000004", DisplayName: "ZOË Åberg", Email: "zoe@example.com"}
	h.mustTopic(t, alice, category.ID, "Dark mode")
	byZoe := h.mustTopic(t, zoe, category.ID, "Keyboard shortcuts")

	for _, query := range []string{"zoë", "åberg", "ZOË ÅBERG"} {
		page, err := h.service.Topics().ListForModeration(ctx, TopicQuery{Search: query})
		require.NoError(t, err)
		require.Len(t, page.Topics, 1, query)
		assert.Equal(t, byZoe.ID, page.Topics[0].Topic.ID, query)
	}
}
