package specification

import (
	"support-chat-be/internal/entity"

	"gorm.io/gorm"
)

// Specification defines the interface for query specifications
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// SessionSpecification is a Specification the in-memory store can evaluate too.
// Guards passed to ChatSessionRepository.Update must implement it.
type SessionSpecification interface {
	Specification
	MatchSession(s *entity.ChatSession) bool
}

// MatchAll reports whether s satisfies every spec.
func MatchAll(s *entity.ChatSession, specs ...SessionSpecification) bool {
	for _, spec := range specs {
		if !spec.MatchSession(s) {
			return false
		}
	}
	return true
}

// FromFilter expands a list filter into session specifications.
func FromFilter(filter entity.SessionFilter) []SessionSpecification {
	specs := make([]SessionSpecification, 0, 4)
	if len(filter.Statuses) > 0 {
		specs = append(specs, ByStatus{Statuses: filter.Statuses})
	}
	if filter.AgentId != nil {
		specs = append(specs, ByAgentID{AgentID: *filter.AgentId})
	}
	if filter.ContactId != nil {
		specs = append(specs, ByContactID{ContactID: *filter.ContactId})
	}
	if filter.Unassigned {
		specs = append(specs, Unassigned{})
	}
	return specs
}
