package forum

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListTopics         = "forum.list_topics"
	opGetTopic           = "forum.get_topic"
	opSearchTopics       = "forum.search_topics"
	opCreateTopic        = "forum.create_topic"
	opSetTopicFlags      = "forum.set_topic_flags"
	opListTopicsModerate = "forum.list_topics_for_moderation"
)

// UserDirectory resolves the current display name and email for an author id.
// A lookup failure never blocks a write; the caller falls back to session claims.
type UserDirectory interface {
	LookupAuthor(ctx context.Context, userID string) (AuthorSnapshot, error)
}

// CategoryRef is the populated form of a topic's category reference.
type CategoryRef struct {
	ID   string
	Name string
}

// PostRef is the populated form of a topic's last-post reference.
type PostRef struct {
	ID         string
	AuthorName string
	CreatedAt  time.Time
}

// TopicListing is a topic with its category and last post populated.
type TopicListing struct {
	Topic    Topic
	Category *CategoryRef
	LastPost *PostRef
}

// TopicPage is one page of topic listings.
type TopicPage struct {
	Topics     []TopicListing
	Pagination Pagination
}

// TopicQuery parameterizes ListTopics and Search.
type TopicQuery struct {
	CategoryID string
	Search     string
	Page       PageRequest
}

// TopicInput carries a new topic's fields.
type TopicInput struct {
	Title      string
	Content    string
	CategoryID string
}

// TopicFlags carries moderator flag changes; nil fields are left unchanged.
type TopicFlags struct {
	IsLocked *bool
	IsPinned *bool
}

// Topics serves topic listings, search, detail reads, creation and moderation flags.
type Topics struct {
	topics      *TopicStore
	categories  *CategoryStore
	posts       *PostStore
	aggregator  *Aggregator
	directory   UserDirectory
	ids         IDProvider
	clock       func() time.Time
	maxPageSize int
	logger      *zap.Logger
}

// ListTopics filters by category and case-insensitive substring search, pinned topics first,
// then by most recent post and creation time.
func (t *Topics) ListTopics(ctx context.Context, query TopicQuery) (TopicPage, error) {
	filter := TopicFilter{
		CategoryID: strings.TrimSpace(query.CategoryID),
		Search:     strings.TrimSpace(query.Search),
	}
	return t.find(ctx, opListTopics, filter, orderTopicsPinned, query.Page.normalize(DefaultListLimit, t.maxPageSize))
}

// Search is ListTopics without the pinning boost and with a mandatory query string.
func (t *Topics) Search(ctx context.Context, query TopicQuery) (TopicPage, error) {
	search := strings.TrimSpace(query.Search)
	if search == "" {
		return TopicPage{}, invalidInput(opSearchTopics, reasonEmptyField, "Search query is required")
	}
	filter := TopicFilter{
		CategoryID: strings.TrimSpace(query.CategoryID),
		Search:     search,
	}
	return t.find(ctx, opSearchTopics, filter, orderTopicsActivity, query.Page.normalize(DefaultListLimit, t.maxPageSize))
}

// ListForModeration searches title, content and author name, newest topics first.
func (t *Topics) ListForModeration(ctx context.Context, query TopicQuery) (TopicPage, error) {
	filter := TopicFilter{
		CategoryID:   strings.TrimSpace(query.CategoryID),
		Search:       strings.TrimSpace(query.Search),
		SearchAuthor: true,
	}
	return t.find(ctx, opListTopicsModerate, filter, orderNewestFirst, query.Page.normalize(DefaultListLimit, t.maxPageSize))
}

// GetTopic loads one topic with its category populated. When incrementView is set the view
// counter is bumped first and the returned topic carries the incremented value.
func (t *Topics) GetTopic(ctx context.Context, rawID string, incrementView bool) (TopicListing, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return TopicListing{}, notFound(opGetTopic, messageTopicNotFound)
	}

	var topic Topic
	if incrementView {
		topic, err = t.topics.IncrementViews(ctx, id)
	} else {
		topic, err = t.topics.Get(ctx, id)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TopicListing{}, notFound(opGetTopic, messageTopicNotFound)
	}
	if err != nil {
		logServiceError(t.logger, opGetTopic, reasonQueryFailed, err, zap.String("topic_id", id))
		return TopicListing{}, internalError(opGetTopic, reasonQueryFailed, err)
	}

	listings, err := t.populate(ctx, []Topic{topic})
	if err != nil {
		logServiceError(t.logger, opGetTopic, reasonQueryFailed, err, zap.String("topic_id", id))
		return TopicListing{}, internalError(opGetTopic, reasonQueryFailed, err)
	}
	return listings[0], nil
}

// CreateTopic stores a topic in an existing active category, snapshotting the author, then
// recomputes the category aggregates before returning.
func (t *Topics) CreateTopic(ctx context.Context, caller Caller, input TopicInput) (Topic, error) {
	title, err := requiredText(opCreateTopic, "Title", input.Title, maxTopicTitleLength)
	if err != nil {
		return Topic{}, err
	}
	content, err := requiredText(opCreateTopic, "Content", input.Content, maxTopicContentLength)
	if err != nil {
		return Topic{}, err
	}
	categoryID, err := requiredText(opCreateTopic, "Category", input.CategoryID, maxIdentifierLength)
	if err != nil {
		return Topic{}, err
	}

	category, err := t.categories.Get(ctx, categoryID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !category.IsActive) {
		return Topic{}, notFound(opCreateTopic, messageCategoryMissing)
	}
	if err != nil {
		logServiceError(t.logger, opCreateTopic, reasonQueryFailed, err, zap.String("category_id", categoryID))
		return Topic{}, internalError(opCreateTopic, reasonQueryFailed, err)
	}

	author := resolveAuthor(ctx, t.directory, caller, t.logger)
	id, err := t.ids.NewID()
	if err != nil {
		logServiceError(t.logger, opCreateTopic, reasonIDGeneration, err)
		return Topic{}, internalError(opCreateTopic, reasonIDGeneration, err)
	}
	now := normalizeTime(t.clock())
	topic := Topic{
		ID:          id,
		Title:       title,
		Content:     content,
		CategoryID:  category.ID,
		AuthorID:    caller.UserID,
		AuthorName:  author.Name,
		AuthorEmail: author.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := t.topics.Create(ctx, &topic); err != nil {
		logServiceError(t.logger, opCreateTopic, reasonInsertFailed, err,
			zap.String("category_id", category.ID), zap.String("user_id", caller.UserID))
		return Topic{}, internalError(opCreateTopic, reasonInsertFailed, err)
	}

	t.aggregator.afterTopicChange(ctx, category.ID)
	return topic, nil
}

// SetTopicFlags toggles the independent locked and pinned flags. Aggregates are unaffected.
func (t *Topics) SetTopicFlags(ctx context.Context, rawID string, flags TopicFlags) (Topic, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return Topic{}, notFound(opSetTopicFlags, messageTopicNotFound)
	}
	if _, err := t.loadTopic(ctx, opSetTopicFlags, id); err != nil {
		return Topic{}, err
	}

	fields := map[string]any{}
	if flags.IsLocked != nil {
		fields["is_locked"] = *flags.IsLocked
	}
	if flags.IsPinned != nil {
		fields["is_pinned"] = *flags.IsPinned
	}
	if len(fields) > 0 {
		fields["updated_at"] = normalizeTime(t.clock())
		if err := t.topics.UpdateFlags(ctx, id, fields); err != nil {
			logServiceError(t.logger, opSetTopicFlags, reasonUpdateFailed, err, zap.String("topic_id", id))
			return Topic{}, internalError(opSetTopicFlags, reasonUpdateFailed, err)
		}
	}
	return t.loadTopic(ctx, opSetTopicFlags, id)
}

func (t *Topics) find(ctx context.Context, operation string, filter TopicFilter, order string, page PageRequest) (TopicPage, error) {
	topics, total, err := t.topics.Find(ctx, filter, order, page)
	if err != nil {
		logServiceError(t.logger, operation, reasonQueryFailed, err)
		return TopicPage{}, internalError(operation, reasonQueryFailed, err)
	}
	listings, err := t.populate(ctx, topics)
	if err != nil {
		logServiceError(t.logger, operation, reasonQueryFailed, err)
		return TopicPage{}, internalError(operation, reasonQueryFailed, err)
	}
	return TopicPage{Topics: listings, Pagination: newPagination(page, total)}, nil
}

// populate resolves category and last-post references for a batch of topics.
func (t *Topics) populate(ctx context.Context, topics []Topic) ([]TopicListing, error) {
	categoryIDs := make([]string, 0, len(topics))
	postIDs := make([]string, 0, len(topics))
	for _, topic := range topics {
		categoryIDs = append(categoryIDs, topic.CategoryID)
		if topic.LastPostID != nil {
			postIDs = append(postIDs, *topic.LastPostID)
		}
	}
	categories, err := t.categories.GetMany(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}
	posts, err := t.posts.GetMany(ctx, postIDs)
	if err != nil {
		return nil, err
	}

	listings := make([]TopicListing, 0, len(topics))
	for _, topic := range topics {
		listing := TopicListing{Topic: topic}
		if category, ok := categories[topic.CategoryID]; ok {
			listing.Category = &CategoryRef{ID: category.ID, Name: category.Name}
		}
		if topic.LastPostID != nil {
			if post, ok := posts[*topic.LastPostID]; ok {
				listing.LastPost = &PostRef{ID: post.ID, AuthorName: post.AuthorName, CreatedAt: post.CreatedAt}
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (t *Topics) loadTopic(ctx context.Context, operation, id string) (Topic, error) {
	topic, err := t.topics.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Topic{}, notFound(operation, messageTopicNotFound)
	}
	if err != nil {
		logServiceError(t.logger, operation, reasonQueryFailed, err, zap.String("topic_id", id))
		return Topic{}, internalError(operation, reasonQueryFailed, err)
	}
	return topic, nil
}

// resolveAuthor snapshots the caller's identity for a new topic or post.
func resolveAuthor(ctx context.Context, directory UserDirectory, caller Caller, logger *zap.Logger) AuthorSnapshot {
	var profile AuthorSnapshot
	if directory != nil && caller.UserID != "" {
		found, err := directory.LookupAuthor(ctx, caller.UserID)
		if err != nil {
			logger.Warn("author lookup failed, using session claims",
				zap.String("user_id", caller.UserID), zap.Error(err))
		} else {
			profile = found
		}
	}
	return snapshotAuthor(profile, caller)
}
