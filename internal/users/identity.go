package users

import (
	"strings"
	"time"

	"github.com/fypdeveloperss/eduExtract-sub000/internal/forum"
)

// Identity is one sign-in route (provider + subject) for a forum user. A user signing in through
// several providers owns several rows sharing UserID; the most recently seen row carries the
// profile used for author snapshots.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index:idx_identities_recent,priority:1"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	AvatarURL   string    `gorm:"column:user_avatar_url;size:512"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null;index:idx_identities_recent,priority:2"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Snapshot returns the profile values an author snapshot is taken from.
func (i Identity) Snapshot() forum.AuthorSnapshot {
	return forum.AuthorSnapshot{Name: i.DisplayName, Email: i.Email}
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
