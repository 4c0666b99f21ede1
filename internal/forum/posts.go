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
	opListPosts         = "forum.list_posts"
	opCreatePost        = "forum.create_post"
	opEditPost          = "forum.edit_post"
	opDeletePost        = "forum.delete_post"
	opVotePost          = "forum.vote_post"
	opListPostsModerate = "forum.list_posts_for_moderation"
)

// PostPage is one page of posts.
type PostPage struct {
	Posts      []Post
	Pagination Pagination
}

// PostQuery parameterizes ListForModeration.
type PostQuery struct {
	TopicID    string
	CategoryID string
	Search     string
	Page       PageRequest
}

// PostEdit carries an author's edit.
type PostEdit struct {
	Content    string
	EditReason string
}

// Posts owns the post lifecycle: listing, create, edit, delete and voting.
// Create and delete call the aggregator synchronously before returning.
type Posts struct {
	posts       *PostStore
	topics      *TopicStore
	aggregator  *Aggregator
	directory   UserDirectory
	ids         IDProvider
	clock       func() time.Time
	maxPageSize int
	logger      *zap.Logger
}

// ListPosts returns a topic's posts oldest first.
func (p *Posts) ListPosts(ctx context.Context, rawTopicID string, page PageRequest) (PostPage, error) {
	topicID, err := normalizeID(rawTopicID)
	if err != nil {
		return PostPage{}, notFound(opListPosts, messageTopicNotFound)
	}
	request := page.normalize(DefaultTopicPostsLimit, p.maxPageSize)
	posts, total, err := p.posts.ListByTopic(ctx, topicID, request)
	if err != nil {
		logServiceError(p.logger, opListPosts, reasonQueryFailed, err, zap.String("topic_id", topicID))
		return PostPage{}, internalError(opListPosts, reasonQueryFailed, err)
	}
	if err := p.posts.LoadVoters(ctx, posts); err != nil {
		logServiceError(p.logger, opListPosts, reasonQueryFailed, err, zap.String("topic_id", topicID))
		return PostPage{}, internalError(opListPosts, reasonQueryFailed, err)
	}
	return PostPage{Posts: posts, Pagination: newPagination(request, total)}, nil
}

// ListForModeration searches content and author name across posts, newest first.
func (p *Posts) ListForModeration(ctx context.Context, query PostQuery) (PostPage, error) {
	request := query.Page.normalize(DefaultListLimit, p.maxPageSize)
	filter := PostFilter{
		TopicID:    strings.TrimSpace(query.TopicID),
		CategoryID: strings.TrimSpace(query.CategoryID),
		Search:     strings.TrimSpace(query.Search),
	}
	posts, total, err := p.posts.Find(ctx, filter, request)
	if err != nil {
		logServiceError(p.logger, opListPostsModerate, reasonQueryFailed, err)
		return PostPage{}, internalError(opListPostsModerate, reasonQueryFailed, err)
	}
	return PostPage{Posts: posts, Pagination: newPagination(request, total)}, nil
}

// CreatePost replies to an unlocked topic, then recomputes the topic and its category.
func (p *Posts) CreatePost(ctx context.Context, caller Caller, rawTopicID, rawContent string) (Post, error) {
	topicID, err := normalizeID(rawTopicID)
	if err != nil {
		return Post{}, notFound(opCreatePost, messageTopicNotFound)
	}
	topic, err := p.loadTopic(ctx, opCreatePost, topicID)
	if err != nil {
		return Post{}, err
	}
	if topic.IsLocked {
		return Post{}, newServiceError(ErrLocked, opCreatePost, reasonLocked, messageTopicLocked, nil)
	}
	content, err := requiredText(opCreatePost, "Content", rawContent, maxPostContentLength)
	if err != nil {
		return Post{}, err
	}

	author := resolveAuthor(ctx, p.directory, caller, p.logger)
	id, err := p.ids.NewID()
	if err != nil {
		logServiceError(p.logger, opCreatePost, reasonIDGeneration, err)
		return Post{}, internalError(opCreatePost, reasonIDGeneration, err)
	}
	now := normalizeTime(p.clock())
	post := Post{
		ID:          id,
		Content:     content,
		TopicID:     topic.ID,
		AuthorID:    caller.UserID,
		AuthorName:  author.Name,
		AuthorEmail: author.Email,
		CreatedAt:   now,
		UpdatedAt:   now,
		Voters:      map[string]VoteDirection{},
	}
	if err := p.posts.Create(ctx, &post); err != nil {
		logServiceError(p.logger, opCreatePost, reasonInsertFailed, err,
			zap.String("topic_id", topic.ID), zap.String("user_id", caller.UserID))
		return Post{}, internalError(opCreatePost, reasonInsertFailed, err)
	}

	p.aggregator.afterPostChange(ctx, topic.ID, topic.CategoryID)
	return post, nil
}

// EditPost replaces the content of the caller's own post. Counts and last-post identity do not
// change, so no recompute runs.
func (p *Posts) EditPost(ctx context.Context, caller Caller, rawPostID string, edit PostEdit) (Post, error) {
	postID, err := normalizeID(rawPostID)
	if err != nil {
		return Post{}, notFound(opEditPost, messagePostNotFound)
	}
	content, err := requiredText(opEditPost, "Content", edit.Content, maxPostContentLength)
	if err != nil {
		return Post{}, err
	}
	reason, err := optionalText(opEditPost, "Edit reason", edit.EditReason, maxEditReasonLength)
	if err != nil {
		return Post{}, err
	}
	post, err := p.loadPost(ctx, opEditPost, postID)
	if err != nil {
		return Post{}, err
	}
	if post.AuthorID != caller.UserID {
		return Post{}, forbidden(opEditPost, "You can only edit your own posts")
	}

	now := normalizeTime(p.clock())
	if err := p.posts.Update(ctx, postID, map[string]any{
		"content":     content,
		"is_edited":   true,
		"edit_reason": reason,
		"edited_at":   now,
		"updated_at":  now,
	}); err != nil {
		logServiceError(p.logger, opEditPost, reasonUpdateFailed, err, zap.String("post_id", postID))
		return Post{}, internalError(opEditPost, reasonUpdateFailed, err)
	}
	return p.loadPostWithVoters(ctx, opEditPost, postID)
}

// DeletePost removes a post owned by the caller, or any post when the caller is an admin,
// then recomputes the topic and its category. The deleted post is returned.
func (p *Posts) DeletePost(ctx context.Context, caller Caller, rawPostID string) (Post, error) {
	postID, err := normalizeID(rawPostID)
	if err != nil {
		return Post{}, notFound(opDeletePost, messagePostNotFound)
	}
	post, err := p.loadPost(ctx, opDeletePost, postID)
	if err != nil {
		return Post{}, err
	}
	if post.AuthorID != caller.UserID && !caller.IsAdmin {
		return Post{}, forbidden(opDeletePost, "You can only delete your own posts")
	}

	affected, err := p.posts.Delete(ctx, postID)
	if err != nil {
		logServiceError(p.logger, opDeletePost, reasonDeleteFailed, err, zap.String("post_id", postID))
		return Post{}, internalError(opDeletePost, reasonDeleteFailed, err)
	}
	if affected == 0 {
		return Post{}, notFound(opDeletePost, messagePostNotFound)
	}

	categoryID := ""
	if topic, err := p.topics.Get(ctx, post.TopicID); err == nil {
		categoryID = topic.CategoryID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		p.logger.Warn("topic lookup after post delete failed",
			zap.String("topic_id", post.TopicID), zap.Error(err))
	}
	p.aggregator.afterPostChange(ctx, post.TopicID, categoryID)
	return post, nil
}

// VotePost records the caller's vote (up, down, or clear) and returns the post with its
// recounted tallies and voters.
func (p *Posts) VotePost(ctx context.Context, caller Caller, rawPostID string, vote int) (Post, error) {
	postID, err := normalizeID(rawPostID)
	if err != nil {
		return Post{}, notFound(opVotePost, messagePostNotFound)
	}
	direction, ok := parseVoteDirection(vote)
	if !ok {
		return Post{}, invalidInput(opVotePost, reasonInvalidVote, "Vote must be -1, 0 or 1")
	}
	if _, err := p.loadPost(ctx, opVotePost, postID); err != nil {
		return Post{}, err
	}

	if err := p.posts.SetVote(ctx, postID, caller.UserID, direction, normalizeTime(p.clock())); err != nil {
		logServiceError(p.logger, opVotePost, reasonUpdateFailed, err,
			zap.String("post_id", postID), zap.String("user_id", caller.UserID))
		return Post{}, internalError(opVotePost, reasonUpdateFailed, err)
	}
	p.aggregator.afterVoteChange(ctx, postID)
	return p.loadPostWithVoters(ctx, opVotePost, postID)
}

func (p *Posts) loadTopic(ctx context.Context, operation, id string) (Topic, error) {
	topic, err := p.topics.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Topic{}, notFound(operation, messageTopicNotFound)
	}
	if err != nil {
		logServiceError(p.logger, operation, reasonQueryFailed, err, zap.String("topic_id", id))
		return Topic{}, internalError(operation, reasonQueryFailed, err)
	}
	return topic, nil
}

func (p *Posts) loadPost(ctx context.Context, operation, id string) (Post, error) {
	post, err := p.posts.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, notFound(operation, messagePostNotFound)
	}
	if err != nil {
		logServiceError(p.logger, operation, reasonQueryFailed, err, zap.String("post_id", id))
		return Post{}, internalError(operation, reasonQueryFailed, err)
	}
	return post, nil
}

func (p *Posts) loadPostWithVoters(ctx context.Context, operation, id string) (Post, error) {
	post, err := p.loadPost(ctx, operation, id)
	if err != nil {
		return Post{}, err
	}
	loaded := []Post{post}
	if err := p.posts.LoadVoters(ctx, loaded); err != nil {
		logServiceError(p.logger, operation, reasonQueryFailed, err, zap.String("post_id", id))
		return Post{}, internalError(operation, reasonQueryFailed, err)
	}
	return loaded[0], nil
}
