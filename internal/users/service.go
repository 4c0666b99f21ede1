package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/auth"
	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
	"gorm.io/gorm"
)

var _ forum.UserDirectory = (*Service)(nil)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service records who has signed in and serves their latest profile to the forum as its
// author directory.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

type cachedProfile struct {
	userID      string
	email       string
	displayName string
	avatarURL   string
}

// matches reports whether claims carry nothing newer than the cached profile.
func (p cachedProfile) matches(claims auth.SessionClaims) bool {
	if email := normalize(claims.UserEmail); email != "" && email != p.email {
		return false
	}
	if display := normalize(claims.UserDisplayName); display != "" && display != p.displayName {
		return false
	}
	if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != p.avatarURL {
		return false
	}
	return true
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:    cfg.Database,
		now:   clock,
		cache: sync.Map{},
	}, nil
}

// RememberIdentity returns the canonical user id for the provided session claims, creating the
// provider+subject mapping on first sight and refreshing the stored profile when the claims
// carry a changed email, display name or avatar.
func (s *Service) RememberIdentity(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if profile, ok := cached.(cachedProfile); ok && profile.matches(claims) {
			return profile.userID, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now().UTC(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
			identity.Email = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
			identity.DisplayName = display
		}
		if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
			identity.AvatarURL = avatar
		}
		updates["last_seen_at"] = s.now().UTC()
		if err := db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error; err != nil {
			return "", err
		}
	}

	s.cache.Store(cacheKey, cachedProfile{
		userID:      identity.UserID,
		email:       identity.Email,
		displayName: identity.DisplayName,
		avatarURL:   identity.AvatarURL,
	})
	return identity.UserID, nil
}

// LookupAuthor returns the display name and email from the most recently seen identity of the
// canonical user. An unknown user yields an empty snapshot so the forum falls back to claims.
func (s *Service) LookupAuthor(ctx context.Context, userID string) (forum.AuthorSnapshot, error) {
	canonical := normalize(userID)
	if canonical == "" {
		return forum.AuthorSnapshot{}, ErrInvalidIdentity
	}
	var identities []Identity
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", canonical).
		Order("last_seen_at DESC").
		Limit(1).
		Find(&identities).
		Error; err != nil {
		return forum.AuthorSnapshot{}, err
	}
	if len(identities) == 0 {
		return forum.AuthorSnapshot{}, nil
	}
	return identities[0].Snapshot(), nil
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := "default"
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
