package forum

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const opServiceNew = "forum.service.new"

// ServiceConfig describes the forum's dependencies. Directory and Cache are optional.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
	Directory   UserDirectory
	Cache       CategoryCache
	MaxPageSize int
}

// Service bundles the forum components over one database handle.
type Service struct {
	aggregator *Aggregator
	catalog    *Catalog
	topics     *Topics
	posts      *Posts
}

// NewService wires the stores, the aggregator and the three forum facades.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(ErrInternal, opServiceNew, reasonMissingDatabase, "", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(ErrInternal, opServiceNew, "missing_id_provider", "", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}

	var invalidator CategoryInvalidator
	if cfg.Cache != nil {
		invalidator = cfg.Cache
	}
	aggregator, err := NewAggregator(AggregatorConfig{
		Database: cfg.Database,
		Logger:   logger,
		Cache:    invalidator,
	})
	if err != nil {
		return nil, err
	}

	categories := NewCategoryStore(cfg.Database)
	topics := NewTopicStore(cfg.Database)
	posts := NewPostStore(cfg.Database)

	return &Service{
		aggregator: aggregator,
		catalog: &Catalog{
			categories: categories,
			topics:     topics,
			ids:        cfg.IDProvider,
			clock:      clock,
			cache:      cfg.Cache,
			logger:     logger,
		},
		topics: &Topics{
			topics:      topics,
			categories:  categories,
			posts:       posts,
			aggregator:  aggregator,
			directory:   cfg.Directory,
			ids:         cfg.IDProvider,
			clock:       clock,
			maxPageSize: maxPageSize,
			logger:      logger,
		},
		posts: &Posts{
			posts:       posts,
			topics:      topics,
			aggregator:  aggregator,
			directory:   cfg.Directory,
			ids:         cfg.IDProvider,
			clock:       clock,
			maxPageSize: maxPageSize,
			logger:      logger,
		},
	}, nil
}

// Aggregator returns the recompute engine shared by every write path of the service.
func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

// Catalog returns the category operations.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Topics returns the topic operations, including search and moderation listings.
func (s *Service) Topics() *Topics {
	return s.topics
}

// Posts returns the post operations, voting included.
func (s *Service) Posts() *Posts {
	return s.posts
}
