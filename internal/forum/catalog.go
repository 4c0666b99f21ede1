package forum

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opListCategories         = "forum.list_categories"
	opEnsureDefaults         = "forum.ensure_default_categories"
	opCreateCategory         = "forum.create_category"
	opUpdateCategory         = "forum.update_category"
	opDeleteCategory         = "forum.delete_category"
	messageDuplicateCategory = "Category with this name already exists"
)

// DefaultCategory describes one of the categories seeded into an empty forum.
type DefaultCategory struct {
	Name        string
	Description string
	Order       int
}

// DefaultCategories is the fixed seed set installed by EnsureDefaultCategories.
var DefaultCategories = []DefaultCategory{
	{Name: "General Discussion", Description: "General topics and discussions about the platform", Order: 1},
	{Name: "Educational Content", Description: "Discussions about educational materials, learning resources, and study tips", Order: 2},
	{Name: "Technical Support", Description: "Get help with technical issues and platform features", Order: 3},
	{Name: "Feature Requests", Description: "Suggest new features and improvements for the platform", Order: 4},
	{Name: "Marketplace", Description: "Discussions about buying, selling, and sharing educational content", Order: 5},
	{Name: "Collaboration", Description: "Find study partners and discuss collaborative learning", Order: 6},
}

// TopicPreview is the short form of a topic shown next to its category.
type TopicPreview struct {
	ID         string
	Title      string
	AuthorName string
	CreatedAt  time.Time
}

// CategoryListing pairs a category with a preview of its most active topic.
type CategoryListing struct {
	Category  Category
	LastTopic *TopicPreview
}

// CategoryCache stores the active category listing between aggregate changes.
type CategoryCache interface {
	CategoryInvalidator
	Load(ctx context.Context) ([]CategoryListing, bool, error)
	Store(ctx context.Context, listings []CategoryListing) error
}

// CategoryInput carries the admin-supplied fields for a new category.
type CategoryInput struct {
	Name        string
	Description string
	Order       int
}

// CategoryPatch carries optional admin updates; nil fields are left unchanged.
type CategoryPatch struct {
	Name        *string
	Description *string
	Order       *int
	IsActive    *bool
}

// Catalog lists, seeds and administers categories.
type Catalog struct {
	categories *CategoryStore
	topics     *TopicStore
	ids        IDProvider
	clock      func() time.Time
	cache      CategoryCache
	logger     *zap.Logger
}

// ListActive seeds defaults into an empty forum, then returns active categories ordered by
// (order, createdAt) with a preview of each category's most active topic.
func (c *Catalog) ListActive(ctx context.Context) ([]CategoryListing, error) {
	if err := c.EnsureDefaultCategories(ctx); err != nil {
		return nil, err
	}
	if c.cache != nil {
		listings, found, err := c.cache.Load(ctx)
		if err != nil {
			c.logger.Warn("category cache load failed", zap.Error(err))
		} else if found {
			return listings, nil
		}
	}

	listings, err := c.list(ctx, true)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.Store(ctx, listings); err != nil {
			c.logger.Warn("category cache store failed", zap.Error(err))
		}
	}
	return listings, nil
}

// ListAll returns every category, including inactive ones, in display order.
func (c *Catalog) ListAll(ctx context.Context) ([]CategoryListing, error) {
	return c.list(ctx, false)
}

// EnsureDefaultCategories inserts DefaultCategories when no category exists at all.
// The count-then-insert guard is not atomic: concurrent first requests may both seed.
func (c *Catalog) EnsureDefaultCategories(ctx context.Context) error {
	count, err := c.categories.Count(ctx)
	if err != nil {
		logServiceError(c.logger, opEnsureDefaults, reasonQueryFailed, err)
		return internalError(opEnsureDefaults, reasonQueryFailed, err)
	}
	if count > 0 {
		return nil
	}

	now := normalizeTime(c.clock())
	seeded := make([]Category, 0, len(DefaultCategories))
	for _, def := range DefaultCategories {
		id, err := c.ids.NewID()
		if err != nil {
			logServiceError(c.logger, opEnsureDefaults, reasonIDGeneration, err)
			return internalError(opEnsureDefaults, reasonIDGeneration, err)
		}
		seeded = append(seeded, Category{
			ID:          id,
			Name:        def.Name,
			Description: def.Description,
			Order:       def.Order,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := c.categories.CreateMany(ctx, seeded); err != nil {
		logServiceError(c.logger, opEnsureDefaults, reasonInsertFailed, err)
		return internalError(opEnsureDefaults, reasonInsertFailed, err)
	}
	c.invalidate(ctx)
	c.logger.Info("default forum categories created", zap.Int("count", len(seeded)))
	return nil
}

// CreateCategory adds an active category; names are unique ignoring case.
func (c *Catalog) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	name, err := requiredText(opCreateCategory, "Name", input.Name, maxCategoryNameLength)
	if err != nil {
		return Category{}, err
	}
	description, err := requiredText(opCreateCategory, "Description", input.Description, maxCategoryDescLength)
	if err != nil {
		return Category{}, err
	}
	taken, err := c.categories.NameTaken(ctx, name, "")
	if err != nil {
		logServiceError(c.logger, opCreateCategory, reasonQueryFailed, err)
		return Category{}, internalError(opCreateCategory, reasonQueryFailed, err)
	}
	if taken {
		return Category{}, invalidInput(opCreateCategory, reasonDuplicateName, messageDuplicateCategory)
	}

	id, err := c.ids.NewID()
	if err != nil {
		logServiceError(c.logger, opCreateCategory, reasonIDGeneration, err)
		return Category{}, internalError(opCreateCategory, reasonIDGeneration, err)
	}
	now := normalizeTime(c.clock())
	category := Category{
		ID:          id,
		Name:        name,
		Description: description,
		Order:       input.Order,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.categories.Create(ctx, &category); err != nil {
		logServiceError(c.logger, opCreateCategory, reasonInsertFailed, err)
		return Category{}, internalError(opCreateCategory, reasonInsertFailed, err)
	}
	c.invalidate(ctx)
	return category, nil
}

// UpdateCategory applies patch to the category identified by rawID.
func (c *Catalog) UpdateCategory(ctx context.Context, rawID string, patch CategoryPatch) (Category, error) {
	id, err := normalizeID(rawID)
	if err != nil {
		return Category{}, notFound(opUpdateCategory, messageCategoryMissing)
	}
	category, err := c.loadCategory(ctx, opUpdateCategory, id)
	if err != nil {
		return Category{}, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		name, err := optionalText(opUpdateCategory, "Name", *patch.Name, maxCategoryNameLength)
		if err != nil {
			return Category{}, err
		}
		if name != "" && name != category.Name {
			taken, err := c.categories.NameTaken(ctx, name, id)
			if err != nil {
				logServiceError(c.logger, opUpdateCategory, reasonQueryFailed, err, zap.String("category_id", id))
				return Category{}, internalError(opUpdateCategory, reasonQueryFailed, err)
			}
			if taken {
				return Category{}, invalidInput(opUpdateCategory, reasonDuplicateName, messageDuplicateCategory)
			}
			fields["name"] = name
		}
	}
	if patch.Description != nil {
		description, err := optionalText(opUpdateCategory, "Description", *patch.Description, maxCategoryDescLength)
		if err != nil {
			return Category{}, err
		}
		if description != "" {
			fields["description"] = description
		}
	}
	if patch.Order != nil {
		fields["sort_order"] = *patch.Order
	}
	if patch.IsActive != nil {
		fields["is_active"] = *patch.IsActive
	}
	if len(fields) == 0 {
		return category, nil
	}
	fields["updated_at"] = normalizeTime(c.clock())

	if err := c.categories.Update(ctx, id, fields); err != nil {
		logServiceError(c.logger, opUpdateCategory, reasonUpdateFailed, err, zap.String("category_id", id))
		return Category{}, internalError(opUpdateCategory, reasonUpdateFailed, err)
	}
	c.invalidate(ctx)
	return c.loadCategory(ctx, opUpdateCategory, id)
}

// DeleteCategory removes an empty category. Categories that still own topics are refused.
func (c *Catalog) DeleteCategory(ctx context.Context, rawID string) error {
	id, err := normalizeID(rawID)
	if err != nil {
		return notFound(opDeleteCategory, messageCategoryMissing)
	}
	if _, err := c.loadCategory(ctx, opDeleteCategory, id); err != nil {
		return err
	}
	topicCount, err := c.topics.CountByCategory(ctx, id)
	if err != nil {
		logServiceError(c.logger, opDeleteCategory, reasonQueryFailed, err, zap.String("category_id", id))
		return internalError(opDeleteCategory, reasonQueryFailed, err)
	}
	if topicCount > 0 {
		return invalidInput(opDeleteCategory, reasonCategoryInUse,
			fmt.Sprintf("Cannot delete category. It has %d topics. Please move or delete the topics first.", topicCount))
	}
	if _, err := c.categories.Delete(ctx, id); err != nil {
		logServiceError(c.logger, opDeleteCategory, reasonDeleteFailed, err, zap.String("category_id", id))
		return internalError(opDeleteCategory, reasonDeleteFailed, err)
	}
	c.invalidate(ctx)
	return nil
}

func (c *Catalog) list(ctx context.Context, activeOnly bool) ([]CategoryListing, error) {
	categories, err := c.categories.List(ctx, activeOnly)
	if err != nil {
		logServiceError(c.logger, opListCategories, reasonQueryFailed, err)
		return nil, internalError(opListCategories, reasonQueryFailed, err)
	}

	topicIDs := make([]string, 0, len(categories))
	for _, category := range categories {
		if category.LastTopicID != nil {
			topicIDs = append(topicIDs, *category.LastTopicID)
		}
	}
	lastTopics, err := c.topics.GetMany(ctx, topicIDs)
	if err != nil {
		logServiceError(c.logger, opListCategories, reasonQueryFailed, err)
		return nil, internalError(opListCategories, reasonQueryFailed, err)
	}

	listings := make([]CategoryListing, 0, len(categories))
	for _, category := range categories {
		listing := CategoryListing{Category: category}
		if category.LastTopicID != nil {
			if topic, ok := lastTopics[*category.LastTopicID]; ok {
				listing.LastTopic = &TopicPreview{
					ID:         topic.ID,
					Title:      topic.Title,
					AuthorName: topic.AuthorName,
					CreatedAt:  topic.CreatedAt,
				}
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (c *Catalog) loadCategory(ctx context.Context, operation, id string) (Category, error) {
	category, err := c.categories.Get(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Category{}, notFound(operation, messageCategoryMissing)
	}
	if err != nil {
		logServiceError(c.logger, operation, reasonQueryFailed, err, zap.String("category_id", id))
		return Category{}, internalError(operation, reasonQueryFailed, err)
	}
	return category, nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx); err != nil {
		c.logger.Warn("category cache invalidation failed", zap.Error(err))
	}
}
