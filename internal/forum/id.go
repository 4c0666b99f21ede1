package forum

import (
	"time"

	"github.com/google/uuid"
)

// IDProvider issues identifiers for new categories, topics and posts.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
// UUIDv7 values sort in creation order, which the aggregator relies on for tie-breaking.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// normalizeTime strips the monotonic reading and sub-microsecond precision so values
// round-trip through SQLite unchanged and compare lexically in UTC.
func normalizeTime(value time.Time) time.Time {
	return value.UTC().Truncate(time.Microsecond)
}
