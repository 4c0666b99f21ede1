package server

import (
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
)

const deletedContentPreviewLength = 100

type paginationView struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type topicPreviewView struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

// categoryView.LastTopic holds a populated preview on listings and the bare id elsewhere.
type categoryView struct {
	ID          string     `json:"_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	IsActive    bool       `json:"isActive"`
	TopicCount  int64      `json:"topicCount"`
	LastTopic   any        `json:"lastTopic"`
	LastPostAt  *time.Time `json:"lastPostAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type categoryRefView struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

type postRefView struct {
	ID         string    `json:"_id"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
}

type topicView struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	CategoryID  any        `json:"categoryId"`
	AuthorID    string     `json:"authorId"`
	AuthorName  string     `json:"authorName"`
	AuthorEmail string     `json:"authorEmail"`
	ViewCount   int64      `json:"viewCount"`
	ReplyCount  int64      `json:"replyCount"`
	IsLocked    bool       `json:"isLocked"`
	IsPinned    bool       `json:"isPinned"`
	LastPostID  any        `json:"lastPostId"`
	LastPostAt  *time.Time `json:"lastPostAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type postView struct {
	ID            string         `json:"_id"`
	Content       string         `json:"content"`
	TopicID       string         `json:"topicId"`
	AuthorID      string         `json:"authorId"`
	AuthorName    string         `json:"authorName"`
	AuthorEmail   string         `json:"authorEmail"`
	IsEdited      bool           `json:"isEdited"`
	EditReason    string         `json:"editReason,omitempty"`
	EditedAt      *time.Time     `json:"editedAt,omitempty"`
	UpvoteCount   int64          `json:"upvoteCount"`
	DownvoteCount int64          `json:"downvoteCount"`
	Voters        map[string]int `json:"voters"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type deletedPostView struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	AuthorName string `json:"authorName"`
	Reason     string `json:"reason"`
}

func newPaginationView(pagination forum.Pagination) paginationView {
	return paginationView{
		Page:  pagination.Page,
		Limit: pagination.Limit,
		Total: pagination.Total,
		Pages: pagination.Pages,
	}
}

func newCategoryView(category forum.Category) categoryView {
	var lastTopic any
	if category.LastTopicID != nil {
		lastTopic = *category.LastTopicID
	}
	return categoryView{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		Order:       category.Order,
		IsActive:    category.IsActive,
		TopicCount:  category.TopicCount,
		LastTopic:   lastTopic,
		LastPostAt:  category.LastPostAt,
		CreatedAt:   category.CreatedAt,
		UpdatedAt:   category.UpdatedAt,
	}
}

func newCategoryListingViews(listings []forum.CategoryListing) []categoryView {
	views := make([]categoryView, 0, len(listings))
	for _, listing := range listings {
		view := newCategoryView(listing.Category)
		view.LastTopic = nil
		if listing.LastTopic != nil {
			view.LastTopic = topicPreviewView{
				ID:         listing.LastTopic.ID,
				Title:      listing.LastTopic.Title,
				AuthorName: listing.LastTopic.AuthorName,
				CreatedAt:  listing.LastTopic.CreatedAt,
			}
		}
		views = append(views, view)
	}
	return views
}

func newTopicView(topic forum.Topic) topicView {
	var lastPost any
	if topic.LastPostID != nil {
		lastPost = *topic.LastPostID
	}
	return topicView{
		ID:          topic.ID,
		Title:       topic.Title,
		Content:     topic.Content,
		CategoryID:  topic.CategoryID,
		AuthorID:    topic.AuthorID,
		AuthorName:  topic.AuthorName,
		AuthorEmail: topic.AuthorEmail,
		ViewCount:   topic.ViewCount,
		ReplyCount:  topic.ReplyCount,
		IsLocked:    topic.IsLocked,
		IsPinned:    topic.IsPinned,
		LastPostID:  lastPost,
		LastPostAt:  topic.LastPostAt,
		CreatedAt:   topic.CreatedAt,
		UpdatedAt:   topic.UpdatedAt,
	}
}

// newTopicListingView populates categoryId and lastPostId the way listing endpoints return them.
func newTopicListingView(listing forum.TopicListing) topicView {
	view := newTopicView(listing.Topic)
	if listing.Category != nil {
		view.CategoryID = categoryRefView{ID: listing.Category.ID, Name: listing.Category.Name}
	}
	view.LastPostID = nil
	if listing.LastPost != nil {
		view.LastPostID = postRefView{
			ID:         listing.LastPost.ID,
			AuthorName: listing.LastPost.AuthorName,
			CreatedAt:  listing.LastPost.CreatedAt,
		}
	}
	return view
}

func newTopicListingViews(listings []forum.TopicListing) []topicView {
	views := make([]topicView, 0, len(listings))
	for _, listing := range listings {
		views = append(views, newTopicListingView(listing))
	}
	return views
}

func newPostView(post forum.Post) postView {
	voters := make(map[string]int, len(post.Voters))
	for userID, direction := range post.Voters {
		voters[userID] = int(direction)
	}
	return postView{
		ID:            post.ID,
		Content:       post.Content,
		TopicID:       post.TopicID,
		AuthorID:      post.AuthorID,
		AuthorName:    post.AuthorName,
		AuthorEmail:   post.AuthorEmail,
		IsEdited:      post.IsEdited,
		EditReason:    post.EditReason,
		EditedAt:      post.EditedAt,
		UpvoteCount:   post.UpvoteCount,
		DownvoteCount: post.DownvoteCount,
		Voters:        voters,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
}

func newPostViews(posts []forum.Post) []postView {
	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		views = append(views, newPostView(post))
	}
	return views
}

func newDeletedPostView(post forum.Post, reason string) deletedPostView {
	content := []rune(post.Content)
	if len(content) > deletedContentPreviewLength {
		content = content[:deletedContentPreviewLength]
	}
	if reason == "" {
		reason = "No reason provided"
	}
	return deletedPostView{
		ID:         post.ID,
		Content:    string(content) + "...",
		AuthorName: post.AuthorName,
		Reason:     reason,
	}
}
