package auth

import "strings"

// AdminPolicy decides whether a session belongs to a forum administrator: either the user id is
// on the configured allow list or the session carries the admin role.
type AdminPolicy struct {
	userIDs map[string]struct{}
	role    string
}

// NewAdminPolicy builds a policy from configured admin user ids and an admin role name.
func NewAdminPolicy(userIDs []string, role string) AdminPolicy {
	allowed := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	return AdminPolicy{userIDs: allowed, role: strings.TrimSpace(role)}
}

// IsAdmin reports whether userID or roles grant administrator access.
func (p AdminPolicy) IsAdmin(userID string, roles []string) bool {
	if _, ok := p.userIDs[strings.TrimSpace(userID)]; ok {
		return true
	}
	if p.role == "" {
		return false
	}
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), p.role) {
			return true
		}
	}
	return false
}
