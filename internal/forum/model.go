package forum

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxIdentifierLength     = 190
	maxCategoryNameLength   = 100
	maxCategoryDescLength   = 500
	maxTopicTitleLength     = 200
	maxTopicContentLength   = 5000
	maxPostContentLength    = 2000
	maxEditReasonLength     = 200
	placeholderAuthorPrefix = "User_"
	anonymousAuthorName     = "Anonymous"
	unknownAuthorEmail      = "unknown@example.com"
)

// VoteDirection is the value a single user contributes to a post's score.
type VoteDirection int

const (
	VoteDown  VoteDirection = -1
	VoteClear VoteDirection = 0
	VoteUp    VoteDirection = 1
)

var errInvalidIdentifier = errors.New("forum: invalid identifier")

// Category groups topics. Derived fields are written only by Aggregator.
type Category struct {
	ID          string     `gorm:"column:id;primaryKey;size:64;not null"`
	Name        string     `gorm:"column:name;size:100;not null"`
	NameFolded  string     `gorm:"column:name_folded;size:400;not null;default:'';index:idx_categories_name_folded"`
	Description string     `gorm:"column:description;size:500;not null"`
	Order       int        `gorm:"column:sort_order;not null;default:0;index:idx_categories_order,priority:1"`
	IsActive    bool       `gorm:"column:is_active;not null"`
	TopicCount  int64      `gorm:"column:topic_count;not null;default:0"`
	LastTopicID *string    `gorm:"column:last_topic_id;size:64"`
	LastPostAt  *time.Time `gorm:"column:last_post_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_categories_order,priority:2"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Category) TableName() string {
	return "forum_categories"
}

func (c *Category) foldSearchColumns() {
	c.NameFolded = foldForSearch(c.Name)
}

// foldForSearch is the case folding applied to stored search columns and to search terms alike.
func foldForSearch(value string) string {
	return strings.ToLower(value)
}

// Topic is a discussion thread inside a category.
type Topic struct {
	ID          string     `gorm:"column:id;primaryKey;size:64;not null"`
	Title       string     `gorm:"column:title;size:200;not null"`
	Content     string     `gorm:"column:content;type:text;not null"`
	CategoryID  string     `gorm:"column:category_id;size:64;not null;index:idx_topics_category"`
	AuthorID    string     `gorm:"column:author_id;size:190;not null"`
	AuthorName  string     `gorm:"column:author_name;size:320;not null"`
	AuthorEmail string     `gorm:"column:author_email;size:320;not null"`
	ViewCount   int64      `gorm:"column:view_count;not null;default:0"`
	ReplyCount  int64      `gorm:"column:reply_count;not null;default:0"`
	IsLocked    bool       `gorm:"column:is_locked;not null"`
	IsPinned    bool       `gorm:"column:is_pinned;not null;index:idx_topics_activity,priority:1"`
	LastPostID  *string    `gorm:"column:last_post_id;size:64"`
	LastPostAt  *time.Time `gorm:"column:last_post_at;index:idx_topics_activity,priority:2"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null;index:idx_topics_activity,priority:3"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;not null"`

	// Lower-cased copies of the searchable text. SQLite's LOWER only folds ASCII, so search
	// matches against these instead.
	TitleFolded      string `gorm:"column:title_folded;type:text;not null;default:''"`
	ContentFolded    string `gorm:"column:content_folded;type:text;not null;default:''"`
	AuthorNameFolded string `gorm:"column:author_name_folded;type:text;not null;default:''"`
}

// TableName provides the explicit table binding for GORM.
func (Topic) TableName() string {
	return "forum_topics"
}

func (t *Topic) foldSearchColumns() {
	t.TitleFolded = foldForSearch(t.Title)
	t.ContentFolded = foldForSearch(t.Content)
	t.AuthorNameFolded = foldForSearch(t.AuthorName)
}

// Author returns the snapshot captured when the topic was created.
func (t Topic) Author() AuthorSnapshot {
	return AuthorSnapshot{Name: t.AuthorName, Email: t.AuthorEmail}
}

// Post is a reply within a topic.
type Post struct {
	ID            string     `gorm:"column:id;primaryKey;size:64;not null"`
	Content       string     `gorm:"column:content;type:text;not null"`
	TopicID       string     `gorm:"column:topic_id;size:64;not null;index:idx_posts_topic_created,priority:1"`
	AuthorID      string     `gorm:"column:author_id;size:190;not null"`
	AuthorName    string     `gorm:"column:author_name;size:320;not null"`
	AuthorEmail   string     `gorm:"column:author_email;size:320;not null"`
	IsEdited      bool       `gorm:"column:is_edited;not null"`
	EditReason    string     `gorm:"column:edit_reason;size:200;not null;default:''"`
	EditedAt      *time.Time `gorm:"column:edited_at"`
	UpvoteCount   int64      `gorm:"column:upvote_count;not null;default:0"`
	DownvoteCount int64      `gorm:"column:downvote_count;not null;default:0"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;index:idx_posts_topic_created,priority:2"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null"`

	ContentFolded    string `gorm:"column:content_folded;type:text;not null;default:''"`
	AuthorNameFolded string `gorm:"column:author_name_folded;type:text;not null;default:''"`

	// Voters is loaded from forum_post_votes on read paths.
	Voters map[string]VoteDirection `gorm:"-"`
}

// TableName provides the explicit table binding for GORM.
func (Post) TableName() string {
	return "forum_posts"
}

func (p *Post) foldSearchColumns() {
	p.ContentFolded = foldForSearch(p.Content)
	p.AuthorNameFolded = foldForSearch(p.AuthorName)
}

// Author returns the snapshot captured when the post was created.
func (p Post) Author() AuthorSnapshot {
	return AuthorSnapshot{Name: p.AuthorName, Email: p.AuthorEmail}
}

// PostVote records one user's vote on one post.
type PostVote struct {
	PostID    string        `gorm:"column:post_id;primaryKey;size:64;not null"`
	UserID    string        `gorm:"column:user_id;primaryKey;size:190;not null"`
	Direction VoteDirection `gorm:"column:direction;not null"`
	CreatedAt time.Time     `gorm:"column:created_at;not null"`
	UpdatedAt time.Time     `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PostVote) TableName() string {
	return "forum_post_votes"
}

// Models lists the persisted forum types for schema migration.
func Models() []any {
	return []any{&Category{}, &Topic{}, &Post{}, &PostVote{}}
}

// AuthorSnapshot is the author identity copied onto a topic or post at write time.
// It is never re-joined against the live profile.
type AuthorSnapshot struct {
	Name  string
	Email string
}

// Caller describes the authenticated principal performing an operation.
type Caller struct {
	UserID      string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// snapshotAuthor resolves the author snapshot: directory profile first, then the
// caller's own claims, then generated placeholders.
func snapshotAuthor(profile AuthorSnapshot, caller Caller) AuthorSnapshot {
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = strings.TrimSpace(caller.DisplayName)
	}
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		email = strings.TrimSpace(caller.Email)
	}
	if name == "" && email != "" {
		if local, _, found := strings.Cut(email, "@"); found && strings.TrimSpace(local) != "" {
			name = strings.TrimSpace(local)
		}
	}
	if name == "" {
		name = placeholderAuthorName(caller.UserID)
	}
	if email == "" {
		email = unknownAuthorEmail
	}
	return AuthorSnapshot{Name: name, Email: email}
}

func placeholderAuthorName(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return anonymousAuthorName
	}
	runes := []rune(trimmed)
	if len(runes) > 6 {
		runes = runes[len(runes)-6:]
	}
	return placeholderAuthorPrefix + string(runes)
}

// normalizeID trims and bounds an identifier taken from a request.
func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", errInvalidIdentifier)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", errInvalidIdentifier, maxIdentifierLength)
	}
	return trimmed, nil
}

func tooLong(value string, limit int) bool {
	return utf8.RuneCountInString(value) > limit
}

func parseVoteDirection(value int) (VoteDirection, bool) {
	switch VoteDirection(value) {
	case VoteDown, VoteClear, VoteUp:
		return VoteDirection(value), true
	default:
		return 0, false
	}
}
