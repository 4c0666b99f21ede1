package forum

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	columnID              = "id"
	queryID               = "id = ?"
	queryIDIn             = "id IN ?"
	queryCategoryID       = "category_id = ?"
	queryTopicID          = "topic_id = ?"
	queryPostID           = "post_id = ?"
	queryPostIDIn         = "post_id IN ?"
	queryPostUser         = "post_id = ? AND user_id = ?"
	likeEscape            = `\`
	orderCategories       = "sort_order ASC, created_at ASC, id ASC"
	orderTopicsPinned     = "is_pinned DESC, last_post_at DESC, created_at DESC, id DESC"
	orderTopicsActivity   = "last_post_at DESC, created_at DESC, id DESC"
	orderNewestFirst      = "created_at DESC, id DESC"
	orderConversation     = "created_at ASC, id ASC"
	queryTitleOrContent   = "title_folded LIKE ? ESCAPE '\\' OR content_folded LIKE ? ESCAPE '\\'"
	queryTopicTextAuthor  = "title_folded LIKE ? ESCAPE '\\' OR content_folded LIKE ? ESCAPE '\\' OR author_name_folded LIKE ? ESCAPE '\\'"
	queryPostTextAuthor   = "content_folded LIKE ? ESCAPE '\\' OR author_name_folded LIKE ? ESCAPE '\\'"
	queryCategoryNameFold = "name_folded = ?"
)

// containsPattern builds a case-insensitive LIKE pattern matching value as a literal substring.
func containsPattern(value string) string {
	replacer := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return "%" + replacer.Replace(foldForSearch(value)) + "%"
}

// withFolded adds the folded companion of source to fields when source is being written.
func withFolded(fields map[string]any, source, folded string) map[string]any {
	if value, ok := fields[source].(string); ok {
		fields[folded] = foldForSearch(value)
	}
	return fields
}

// CategoryStore owns category rows.
type CategoryStore struct {
	db *gorm.DB
}

// NewCategoryStore binds a CategoryStore to the provided database handle.
func NewCategoryStore(db *gorm.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// Count returns the number of stored categories, active or not.
func (s *CategoryStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Category{}).Count(&count).Error
	return count, err
}

// Create inserts category and fills its folded name.
func (s *CategoryStore) Create(ctx context.Context, category *Category) error {
	category.foldSearchColumns()
	return s.db.WithContext(ctx).Create(category).Error
}

// CreateMany inserts categories in one statement.
func (s *CategoryStore) CreateMany(ctx context.Context, categories []Category) error {
	if len(categories) == 0 {
		return nil
	}
	for i := range categories {
		categories[i].foldSearchColumns()
	}
	return s.db.WithContext(ctx).Create(&categories).Error
}

// Get returns gorm.ErrRecordNotFound when the category does not exist.
func (s *CategoryStore) Get(ctx context.Context, id string) (Category, error) {
	var category Category
	err := s.db.WithContext(ctx).Where(queryID, id).Take(&category).Error
	return category, err
}

// GetMany returns the categories found among ids keyed by id. Missing ids are absent.
func (s *CategoryStore) GetMany(ctx context.Context, ids []string) (map[string]Category, error) {
	result := make(map[string]Category, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var categories []Category
	if err := s.db.WithContext(ctx).Where(queryIDIn, ids).Find(&categories).Error; err != nil {
		return nil, err
	}
	for _, category := range categories {
		result[category.ID] = category
	}
	return result, nil
}

// List returns categories in display order, optionally only the active ones.
func (s *CategoryStore) List(ctx context.Context, activeOnly bool) ([]Category, error) {
	query := s.db.WithContext(ctx).Model(&Category{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var categories []Category
	err := query.Order(orderCategories).Find(&categories).Error
	return categories, err
}

// NameTaken reports whether another category already uses name, ignoring case.
func (s *CategoryStore) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&Category{}).Where(queryCategoryNameFold, foldForSearch(name))
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update writes fields to one category, refolding the name when it changes.
func (s *CategoryStore) Update(ctx context.Context, id string, fields map[string]any) error {
	fields = withFolded(fields, "name", "name_folded")
	return s.db.WithContext(ctx).Model(&Category{}).Where(queryID, id).Updates(fields).Error
}

// Delete removes one category and reports how many rows went away.
func (s *CategoryStore) Delete(ctx context.Context, id string) (int64, error) {
	result := s.db.WithContext(ctx).Where(queryID, id).Delete(&Category{})
	return result.RowsAffected, result.Error
}

// TopicFilter narrows topic listings.
type TopicFilter struct {
	CategoryID string
	Search     string
	// SearchAuthor extends Search to the author snapshot name.
	SearchAuthor bool
}

// TopicStore owns topic rows.
type TopicStore struct {
	db *gorm.DB
}

// NewTopicStore binds a TopicStore to the provided database handle.
func NewTopicStore(db *gorm.DB) *TopicStore {
	return &TopicStore{db: db}
}

// Create inserts topic and fills its folded search columns.
func (s *TopicStore) Create(ctx context.Context, topic *Topic) error {
	topic.foldSearchColumns()
	return s.db.WithContext(ctx).Create(topic).Error
}

// Get returns gorm.ErrRecordNotFound when the topic does not exist.
func (s *TopicStore) Get(ctx context.Context, id string) (Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).Where(queryID, id).Take(&topic).Error
	return topic, err
}

// GetMany returns the topics found among ids keyed by id.
func (s *TopicStore) GetMany(ctx context.Context, ids []string) (map[string]Topic, error) {
	result := make(map[string]Topic, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var topics []Topic
	if err := s.db.WithContext(ctx).Where(queryIDIn, ids).Find(&topics).Error; err != nil {
		return nil, err
	}
	for _, topic := range topics {
		result[topic.ID] = topic
	}
	return result, nil
}

// CountByCategory counts the topics filed under categoryID.
func (s *TopicStore) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Topic{}).Where(queryCategoryID, categoryID).Count(&count).Error
	return count, err
}

// Find returns one page of topics matching filter in the given order plus the full match count.
func (s *TopicStore) Find(ctx context.Context, filter TopicFilter, order string, page PageRequest) ([]Topic, int64, error) {
	query := s.db.WithContext(ctx).Model(&Topic{})
	if filter.CategoryID != "" {
		query = query.Where(queryCategoryID, filter.CategoryID)
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		if filter.SearchAuthor {
			query = query.Where(queryTopicTextAuthor, pattern, pattern, pattern)
		} else {
			query = query.Where(queryTitleOrContent, pattern, pattern)
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var topics []Topic
	if err := query.Order(order).Offset(page.offset()).Limit(page.Limit).Find(&topics).Error; err != nil {
		return nil, 0, err
	}
	return topics, total, nil
}

// IncrementViews bumps view_count by one and returns the row as persisted afterwards.
func (s *TopicStore) IncrementViews(ctx context.Context, id string) (Topic, error) {
	var topic Topic
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Topic{}).Where(queryID, id).UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where(queryID, id).Take(&topic).Error
	})
	return topic, err
}

// UpdateFlags writes the locked and pinned columns present in fields.
func (s *TopicStore) UpdateFlags(ctx context.Context, id string, fields map[string]any) error {
	return s.db.WithContext(ctx).Model(&Topic{}).Where(queryID, id).Updates(fields).Error
}

// PostFilter narrows moderation post listings.
type PostFilter struct {
	TopicID    string
	CategoryID string
	Search     string
}

// PostStore owns post and vote rows.
type PostStore struct {
	db *gorm.DB
}

// NewPostStore binds a PostStore to the provided database handle.
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// Create inserts post and fills its folded search columns.
func (s *PostStore) Create(ctx context.Context, post *Post) error {
	post.foldSearchColumns()
	return s.db.WithContext(ctx).Create(post).Error
}

// Get returns gorm.ErrRecordNotFound when the post does not exist.
func (s *PostStore) Get(ctx context.Context, id string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where(queryID, id).Take(&post).Error
	return post, err
}

// GetMany returns the posts found among ids keyed by id.
func (s *PostStore) GetMany(ctx context.Context, ids []string) (map[string]Post, error) {
	result := make(map[string]Post, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var posts []Post
	if err := s.db.WithContext(ctx).Where(queryIDIn, ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	for _, post := range posts {
		result[post.ID] = post
	}
	return result, nil
}

// Update writes fields to one post, refolding the content when it changes.
func (s *PostStore) Update(ctx context.Context, id string, fields map[string]any) error {
	fields = withFolded(fields, "content", "content_folded")
	return s.db.WithContext(ctx).Model(&Post{}).Where(queryID, id).Updates(fields).Error
}

// Delete removes the post together with its votes.
func (s *PostStore) Delete(ctx context.Context, id string) (int64, error) {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(queryPostID, id).Delete(&PostVote{}).Error; err != nil {
			return err
		}
		result := tx.Where(queryID, id).Delete(&Post{})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

// ListByTopic returns one page of a topic's posts in conversation order.
func (s *PostStore) ListByTopic(ctx context.Context, topicID string, page PageRequest) ([]Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&Post{}).Where(queryTopicID, topicID)
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []Post
	if err := query.Order(orderConversation).Offset(page.offset()).Limit(page.Limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// Find returns one page of posts matching filter, newest first.
func (s *PostStore) Find(ctx context.Context, filter PostFilter, page PageRequest) ([]Post, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&Post{})
	if filter.TopicID != "" {
		query = query.Where(queryTopicID, filter.TopicID)
	}
	if filter.CategoryID != "" {
		topicIDs := db.Model(&Topic{}).Select(columnID).Where(queryCategoryID, filter.CategoryID)
		query = query.Where("topic_id IN (?)", topicIDs)
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		query = query.Where(queryPostTextAuthor, pattern, pattern)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []Post
	if err := query.Order(orderNewestFirst).Offset(page.offset()).Limit(page.Limit).Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// SetVote records direction for (postID, userID); VoteClear removes the row.
func (s *PostStore) SetVote(ctx context.Context, postID, userID string, direction VoteDirection, now time.Time) error {
	db := s.db.WithContext(ctx)
	if direction == VoteClear {
		return db.Where(queryPostUser, postID, userID).Delete(&PostVote{}).Error
	}
	vote := PostVote{
		PostID:    postID,
		UserID:    userID,
		Direction: direction,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}).Create(&vote).Error
}

// LoadVoters fills the Voters map on every post in place.
func (s *PostStore) LoadVoters(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, 0, len(posts))
	index := make(map[string]int, len(posts))
	for i := range posts {
		posts[i].Voters = map[string]VoteDirection{}
		ids = append(ids, posts[i].ID)
		index[posts[i].ID] = i
	}
	var votes []PostVote
	if err := s.db.WithContext(ctx).Where(queryPostIDIn, ids).Find(&votes).Error; err != nil {
		return err
	}
	for _, vote := range votes {
		if i, ok := index[vote.PostID]; ok {
			posts[i].Voters[vote.UserID] = vote.Direction
		}
	}
	return nil
}

const refoldBatchSize = 200

// RefoldSearchColumns rewrites every folded search column from its source text in one
// transaction and returns the number of rows touched. Rows stored before the folded columns
// existed are invisible to search until this runs.
func RefoldSearchColumns(ctx context.Context, db *gorm.DB) (int, error) {
	refolded := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var categories []Category
		if err := tx.FindInBatches(&categories, refoldBatchSize, func(*gorm.DB, int) error {
			for i := range categories {
				categories[i].foldSearchColumns()
				if err := tx.Model(&Category{}).Where(queryID, categories[i].ID).
					UpdateColumn("name_folded", categories[i].NameFolded).Error; err != nil {
					return err
				}
			}
			refolded += len(categories)
			return nil
		}).Error; err != nil {
			return err
		}

		var topics []Topic
		if err := tx.FindInBatches(&topics, refoldBatchSize, func(*gorm.DB, int) error {
			for i := range topics {
				topics[i].foldSearchColumns()
				if err := tx.Model(&Topic{}).Where(queryID, topics[i].ID).UpdateColumns(map[string]any{
					"title_folded":       topics[i].TitleFolded,
					"content_folded":     topics[i].ContentFolded,
					"author_name_folded": topics[i].AuthorNameFolded,
				}).Error; err != nil {
					return err
				}
			}
			refolded += len(topics)
			return nil
		}).Error; err != nil {
			return err
		}

		var posts []Post
		return tx.FindInBatches(&posts, refoldBatchSize, func(*gorm.DB, int) error {
			for i := range posts {
				posts[i].foldSearchColumns()
				if err := tx.Model(&Post{}).Where(queryID, posts[i].ID).UpdateColumns(map[string]any{
					"content_folded":     posts[i].ContentFolded,
					"author_name_folded": posts[i].AuthorNameFolded,
				}).Error; err != nil {
					return err
				}
			}
			refolded += len(posts)
			return nil
		}).Error
	})
	return refolded, err
}
