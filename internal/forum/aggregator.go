package forum

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opRecomputeTopic     = "forum.recompute_topic"
	opRecomputeCategory  = "forum.recompute_category"
	opRecomputePostVotes = "forum.recompute_post_votes"
	opReconcile          = "forum.reconcile"
)

// TopicAggregate is the derived state written onto a topic.
type TopicAggregate struct {
	TopicID    string
	ReplyCount int64
	LastPostID *string
	LastPostAt *time.Time
}

// CategoryAggregate is the derived state written onto a category.
type CategoryAggregate struct {
	CategoryID  string
	TopicCount  int64
	LastTopicID *string
	LastPostAt  *time.Time
}

// VoteAggregate is the derived vote tally written onto a post.
type VoteAggregate struct {
	PostID        string
	UpvoteCount   int64
	DownvoteCount int64
}

// ReconcileSummary reports a full reconciliation pass.
type ReconcileSummary struct {
	Topics     int
	Categories int
	Posts      int
}

// CategoryInvalidator drops cached category listings after their aggregates change.
type CategoryInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AggregatorConfig describes the aggregator's dependencies.
type AggregatorConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
	Cache    CategoryInvalidator
}

// Aggregator recomputes the denormalized fields on topics, categories and posts.
//
// Every recompute is a full recount from the child rows, never an increment, so any later
// successful recompute repairs drift left by an earlier failure. Each recompute reads and
// writes inside one transaction and is idempotent.
type Aggregator struct {
	db     *gorm.DB
	logger *zap.Logger
	cache  CategoryInvalidator
}

// NewAggregator constructs an Aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Database == nil {
		return nil, newServiceError(ErrInternal, "forum.aggregator.new", reasonMissingDatabase, "", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Aggregator{db: cfg.Database, logger: logger, cache: cfg.Cache}, nil
}

// RecomputeTopic recounts a topic's posts and rewrites reply_count, last_post_id and last_post_at.
// The last post is the one with the greatest created_at, ties going to the greatest id.
func (a *Aggregator) RecomputeTopic(ctx context.Context, topicID string) (TopicAggregate, error) {
	aggregate := TopicAggregate{TopicID: topicID}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Post{}).Where(queryTopicID, topicID).Count(&aggregate.ReplyCount).Error; err != nil {
			return err
		}
		var latest Post
		err := tx.Select("id", "created_at").
			Where(queryTopicID, topicID).
			Order("created_at DESC, id DESC").
			Take(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			aggregate.LastPostID = nil
			aggregate.LastPostAt = nil
		case err != nil:
			return err
		default:
			id := latest.ID
			createdAt := latest.CreatedAt
			aggregate.LastPostID = &id
			aggregate.LastPostAt = &createdAt
		}
		return tx.Model(&Topic{}).Where(queryID, topicID).UpdateColumns(map[string]any{
			"reply_count":  aggregate.ReplyCount,
			"last_post_id": aggregate.LastPostID,
			"last_post_at": aggregate.LastPostAt,
		}).Error
	})
	if err != nil {
		logServiceError(a.logger, opRecomputeTopic, reasonUpdateFailed, err, zap.String("topic_id", topicID))
		return TopicAggregate{}, internalError(opRecomputeTopic, reasonUpdateFailed, err)
	}
	return aggregate, nil
}

// RecomputeCategory recounts a category's topics and points last_topic_id at the topic with the
// most recent activity, where activity is max(last_post_at, created_at).
func (a *Aggregator) RecomputeCategory(ctx context.Context, categoryID string) (CategoryAggregate, error) {
	aggregate := CategoryAggregate{CategoryID: categoryID}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var topics []Topic
		if err := tx.Select("id", "created_at", "last_post_at").
			Where(queryCategoryID, categoryID).
			Find(&topics).Error; err != nil {
			return err
		}
		aggregate.TopicCount = int64(len(topics))
		for _, topic := range topics {
			activity := topicActivity(topic)
			if aggregate.LastPostAt == nil ||
				activity.After(*aggregate.LastPostAt) ||
				(activity.Equal(*aggregate.LastPostAt) && topic.ID > *aggregate.LastTopicID) {
				id := topic.ID
				aggregate.LastTopicID = &id
				aggregate.LastPostAt = &activity
			}
		}
		return tx.Model(&Category{}).Where(queryID, categoryID).UpdateColumns(map[string]any{
			"topic_count":   aggregate.TopicCount,
			"last_topic_id": aggregate.LastTopicID,
			"last_post_at":  aggregate.LastPostAt,
		}).Error
	})
	if err != nil {
		logServiceError(a.logger, opRecomputeCategory, reasonUpdateFailed, err, zap.String("category_id", categoryID))
		return CategoryAggregate{}, internalError(opRecomputeCategory, reasonUpdateFailed, err)
	}
	a.invalidateCategories(ctx)
	return aggregate, nil
}

// RecomputePostVotes recounts a post's votes into upvote_count and downvote_count.
func (a *Aggregator) RecomputePostVotes(ctx context.Context, postID string) (VoteAggregate, error) {
	aggregate := VoteAggregate{PostID: postID}
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PostVote{}).
			Where("post_id = ? AND direction = ?", postID, VoteUp).
			Count(&aggregate.UpvoteCount).Error; err != nil {
			return err
		}
		if err := tx.Model(&PostVote{}).
			Where("post_id = ? AND direction = ?", postID, VoteDown).
			Count(&aggregate.DownvoteCount).Error; err != nil {
			return err
		}
		return tx.Model(&Post{}).Where(queryID, postID).UpdateColumns(map[string]any{
			"upvote_count":   aggregate.UpvoteCount,
			"downvote_count": aggregate.DownvoteCount,
		}).Error
	})
	if err != nil {
		logServiceError(a.logger, opRecomputePostVotes, reasonUpdateFailed, err, zap.String("post_id", postID))
		return VoteAggregate{}, internalError(opRecomputePostVotes, reasonUpdateFailed, err)
	}
	return aggregate, nil
}

// ReconcileAll recomputes every post tally, topic and category. Topics go before categories
// because category activity reads topic.last_post_at.
func (a *Aggregator) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary
	db := a.db.WithContext(ctx)

	var postIDs []string
	if err := db.Model(&Post{}).Order(columnID).Pluck(columnID, &postIDs).Error; err != nil {
		logServiceError(a.logger, opReconcile, reasonQueryFailed, err)
		return summary, internalError(opReconcile, reasonQueryFailed, err)
	}
	for _, postID := range postIDs {
		if _, err := a.RecomputePostVotes(ctx, postID); err != nil {
			return summary, err
		}
		summary.Posts++
	}

	var topicIDs []string
	if err := db.Model(&Topic{}).Order(columnID).Pluck(columnID, &topicIDs).Error; err != nil {
		logServiceError(a.logger, opReconcile, reasonQueryFailed, err)
		return summary, internalError(opReconcile, reasonQueryFailed, err)
	}
	for _, topicID := range topicIDs {
		if _, err := a.RecomputeTopic(ctx, topicID); err != nil {
			return summary, err
		}
		summary.Topics++
	}

	var categoryIDs []string
	if err := db.Model(&Category{}).Order(columnID).Pluck(columnID, &categoryIDs).Error; err != nil {
		logServiceError(a.logger, opReconcile, reasonQueryFailed, err)
		return summary, internalError(opReconcile, reasonQueryFailed, err)
	}
	for _, categoryID := range categoryIDs {
		if _, err := a.RecomputeCategory(ctx, categoryID); err != nil {
			return summary, err
		}
		summary.Categories++
	}

	a.logger.Info("forum aggregates reconciled",
		zap.Int("posts", summary.Posts),
		zap.Int("topics", summary.Topics),
		zap.Int("categories", summary.Categories))
	return summary, nil
}

// afterPostChange runs the topic then category recompute that follows a post create or delete.
// Failures are logged and swallowed: the post write has already committed and the next
// successful recompute on the same topic repairs the aggregates. The recompute ignores
// cancellation of ctx so a caller that goes away after the commit cannot strand the counters.
func (a *Aggregator) afterPostChange(ctx context.Context, topicID, categoryID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := a.RecomputeTopic(ctx, topicID); err != nil {
		a.logRecomputeFailure(err, zap.String("topic_id", topicID))
	}
	if categoryID == "" {
		return
	}
	if _, err := a.RecomputeCategory(ctx, categoryID); err != nil {
		a.logRecomputeFailure(err, zap.String("category_id", categoryID))
	}
}

// afterTopicChange runs the category recompute that follows a topic create.
func (a *Aggregator) afterTopicChange(ctx context.Context, categoryID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := a.RecomputeCategory(ctx, categoryID); err != nil {
		a.logRecomputeFailure(err, zap.String("category_id", categoryID))
	}
}

// afterVoteChange recounts a post's votes, logging and swallowing failures.
func (a *Aggregator) afterVoteChange(ctx context.Context, postID string) {
	ctx = context.WithoutCancel(ctx)
	if _, err := a.RecomputePostVotes(ctx, postID); err != nil {
		a.logRecomputeFailure(err, zap.String("post_id", postID))
	}
}

func (a *Aggregator) logRecomputeFailure(err error, fields ...zap.Field) {
	attrs := append([]zap.Field{zap.Error(err)}, fields...)
	a.logger.Error("aggregate recompute failed", attrs...)
}

func (a *Aggregator) invalidateCategories(ctx context.Context) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx); err != nil {
		a.logger.Warn("category cache invalidation failed", zap.Error(err))
	}
}

func topicActivity(topic Topic) time.Time {
	if topic.LastPostAt != nil && topic.LastPostAt.After(topic.CreatedAt) {
		return *topic.LastPostAt
	}
	return topic.CreatedAt
}
