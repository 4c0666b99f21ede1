package server

import (
	"net/http"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/gin-gonic/gin"
)

type createTopicRequest struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID string `json:"categoryId"`
}

type createPostRequest struct {
	Content string `json:"content"`
}

type editPostRequest struct {
	Content    string `json:"content"`
	EditReason string `json:"editReason"`
}

type votePostRequest struct {
	Vote *int `json:"vote"`
}

func (h *httpHandler) handleListCategories(c *gin.Context) {
	listings, err := h.forum.Catalog().ListActive(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": newCategoryListingViews(listings)})
}

func (h *httpHandler) handleInitCategories(c *gin.Context) {
	listings, err := h.forum.Catalog().ListActive(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to initialize categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Default categories initialized successfully",
		"categories": newCategoryListingViews(listings),
	})
}

func (h *httpHandler) handleListTopics(c *gin.Context) {
	page, err := h.forum.Topics().ListTopics(c.Request.Context(), forum.TopicQuery{
		CategoryID: c.Query("categoryId"),
		Search:     c.Query("search"),
		Page:       pageFromQuery(c),
	})
	if err != nil {
		h.respondError(c, err, "Failed to fetch topics")
		return
	}
	respondTopicPage(c, page)
}

func (h *httpHandler) handleSearchTopics(c *gin.Context) {
	page, err := h.forum.Topics().Search(c.Request.Context(), forum.TopicQuery{
		CategoryID: c.Query("categoryId"),
		Search:     c.Query("q"),
		Page:       pageFromQuery(c),
	})
	if err != nil {
		h.respondError(c, err, "Failed to search topics")
		return
	}
	respondTopicPage(c, page)
}

func (h *httpHandler) handleGetTopic(c *gin.Context) {
	ctx := c.Request.Context()
	topicID := c.Param("id")
	incrementView := c.DefaultQuery("incrementView", "true") == "true"

	listing, err := h.forum.Topics().GetTopic(ctx, topicID, incrementView)
	if err != nil {
		h.respondError(c, err, "Failed to fetch topic")
		return
	}
	posts, err := h.forum.Posts().ListPosts(ctx, listing.Topic.ID, pageFromQuery(c))
	if err != nil {
		h.respondError(c, err, "Failed to fetch topic")
		return
	}

	topic := newTopicListingView(listing)
	topic.LastPostID = nil
	if listing.Topic.LastPostID != nil {
		topic.LastPostID = *listing.Topic.LastPostID
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"topic":      topic,
		"posts":      newPostViews(posts.Posts),
		"pagination": newPaginationView(posts.Pagination),
	})
}

func (h *httpHandler) handleCreateTopic(c *gin.Context) {
	var request createTopicRequest
	if !bindJSON(c, &request) {
		return
	}
	topic, err := h.forum.Topics().CreateTopic(c.Request.Context(), callerFrom(c), forum.TopicInput{
		Title:      request.Title,
		Content:    request.Content,
		CategoryID: request.CategoryID,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create topic")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "topic": newTopicView(topic)})
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var request createPostRequest
	if !bindJSON(c, &request) {
		return
	}
	post, err := h.forum.Posts().CreatePost(c.Request.Context(), callerFrom(c), c.Param("id"), request.Content)
	if err != nil {
		h.respondError(c, err, "Failed to create post")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": newPostView(post)})
}

func (h *httpHandler) handleEditPost(c *gin.Context) {
	var request editPostRequest
	if !bindJSON(c, &request) {
		return
	}
	post, err := h.forum.Posts().EditPost(c.Request.Context(), callerFrom(c), c.Param("id"), forum.PostEdit{
		Content:    request.Content,
		EditReason: request.EditReason,
	})
	if err != nil {
		h.respondError(c, err, "Failed to edit post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": newPostView(post)})
}

func (h *httpHandler) handleDeletePost(c *gin.Context) {
	if _, err := h.forum.Posts().DeletePost(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to delete post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully"})
}

func (h *httpHandler) handleVotePost(c *gin.Context) {
	var request votePostRequest
	if !bindJSON(c, &request) {
		return
	}
	if request.Vote == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Vote is required"})
		return
	}
	post, err := h.forum.Posts().VotePost(c.Request.Context(), callerFrom(c), c.Param("id"), *request.Vote)
	if err != nil {
		h.respondError(c, err, "Failed to vote on post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": newPostView(post)})
}

func respondTopicPage(c *gin.Context, page forum.TopicPage) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"topics":     newTopicListingViews(page.Topics),
		"pagination": newPaginationView(page.Pagination),
	})
}
