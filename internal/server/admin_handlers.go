package server

import (
	"net/http"
	"strings"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"github.com/gin-gonic/gin"
)

type createCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

type updateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Order       *int    `json:"order"`
	IsActive    *bool   `json:"isActive"`
}

type topicFlagsRequest struct {
	IsLocked *bool `json:"isLocked"`
	IsPinned *bool `json:"isPinned"`
}

type moderationDeleteRequest struct {
	Reason string `json:"reason"`
}

func (h *httpHandler) handleCreateCategory(c *gin.Context) {
	var request createCategoryRequest
	if !bindJSON(c, &request) {
		return
	}
	category, err := h.forum.Catalog().CreateCategory(c.Request.Context(), forum.CategoryInput{
		Name:        request.Name,
		Description: request.Description,
		Order:       request.Order,
	})
	if err != nil {
		h.respondError(c, err, "Failed to create category")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "category": newCategoryView(category)})
}

func (h *httpHandler) handleUpdateCategory(c *gin.Context) {
	var request updateCategoryRequest
	if !bindJSON(c, &request) {
		return
	}
	category, err := h.forum.Catalog().UpdateCategory(c.Request.Context(), c.Param("id"), forum.CategoryPatch{
		Name:        request.Name,
		Description: request.Description,
		Order:       request.Order,
		IsActive:    request.IsActive,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "category": newCategoryView(category)})
}

func (h *httpHandler) handleDeleteCategory(c *gin.Context) {
	if err := h.forum.Catalog().DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to delete category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category deleted successfully"})
}

func (h *httpHandler) handleAdminCategories(c *gin.Context) {
	listings, err := h.forum.Catalog().ListAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": newCategoryListingViews(listings)})
}

func (h *httpHandler) handleAdminTopics(c *gin.Context) {
	page, err := h.forum.Topics().ListForModeration(c.Request.Context(), forum.TopicQuery{
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

func (h *httpHandler) handleSetTopicFlags(c *gin.Context) {
	var request topicFlagsRequest
	if !bindJSON(c, &request) {
		return
	}
	topic, err := h.forum.Topics().SetTopicFlags(c.Request.Context(), c.Param("id"), forum.TopicFlags{
		IsLocked: request.IsLocked,
		IsPinned: request.IsPinned,
	})
	if err != nil {
		h.respondError(c, err, "Failed to update topic")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "topic": newTopicView(topic)})
}

func (h *httpHandler) handleAdminPosts(c *gin.Context) {
	page, err := h.forum.Posts().ListForModeration(c.Request.Context(), forum.PostQuery{
		TopicID:    c.Query("topicId"),
		CategoryID: c.Query("categoryId"),
		Search:     c.Query("search"),
		Page:       pageFromQuery(c),
	})
	if err != nil {
		h.respondError(c, err, "Failed to fetch posts")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"posts":      newPostViews(page.Posts),
		"pagination": newPaginationView(page.Pagination),
	})
}

// handleAdminDeletePost removes a post through the regular delete path so aggregates are recomputed.
func (h *httpHandler) handleAdminDeletePost(c *gin.Context) {
	var request moderationDeleteRequest
	if !bindJSON(c, &request) {
		return
	}
	post, err := h.forum.Posts().DeletePost(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to delete post")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Post deleted successfully",
		"deletedPost": newDeletedPostView(post, strings.TrimSpace(request.Reason)),
	})
}
