package specification

import (
	"time"

	"support-chat-be/internal/entity"

	"gorm.io/gorm"
)

type ByCompanyID struct {
	CompanyID uint64
}

func (s ByCompanyID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("company_id = ?", s.CompanyID)
}

func (s ByCompanyID) MatchSession(c *entity.ChatSession) bool {
	return c.CompanyId == s.CompanyID
}

type ByContactID struct {
	ContactID uint64
}

func (s ByContactID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("contact_id = ?", s.ContactID)
}

func (s ByContactID) MatchSession(c *entity.ChatSession) bool {
	return c.ContactId != nil && *c.ContactId == s.ContactID
}

type ByAgentID struct {
	AgentID uint64
}

func (s ByAgentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id = ?", s.AgentID)
}

func (s ByAgentID) MatchSession(c *entity.ChatSession) bool {
	return c.AgentId != nil && *c.AgentId == s.AgentID
}

type Unassigned struct{}

func (s Unassigned) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id IS NULL")
}

func (s Unassigned) MatchSession(c *entity.ChatSession) bool {
	return c.AgentId == nil
}

type AgentAssigned struct{}

func (s AgentAssigned) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agent_id IS NOT NULL")
}

func (s AgentAssigned) MatchSession(c *entity.ChatSession) bool {
	return c.AgentId != nil
}

type ByStatus struct {
	Statuses []entity.SessionStatus
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	values := make([]string, len(s.Statuses))
	for i, st := range s.Statuses {
		values[i] = string(st)
	}
	return db.Where("status IN ?", values)
}

func (s ByStatus) MatchSession(c *entity.ChatSession) bool {
	for _, st := range s.Statuses {
		if c.Status == st {
			return true
		}
	}
	return false
}

// UpdatedBefore selects sessions not touched since Cutoff.
type UpdatedBefore struct {
	Cutoff time.Time
}

func (s UpdatedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("updated_at < ?", s.Cutoff)
}

func (s UpdatedBefore) MatchSession(c *entity.ChatSession) bool {
	return c.UpdatedAt.Before(s.Cutoff)
}

// NoMessagesSince drops sessions holding a message created at or after Cutoff.
type NoMessagesSince struct {
	Cutoff time.Time
}

func (s NoMessagesSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("NOT EXISTS (SELECT 1 FROM chat_messages WHERE chat_messages.session_id = chat_sessions.id AND chat_messages.created_at >= ?)", s.Cutoff)
}

type ByChatSessionID struct {
	ChatSessionID uint64
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.ChatSessionID)
}

// AfterMessageID implements the sinceId cursor of listBySession.
type AfterMessageID struct {
	MessageID uint64
}

func (s AfterMessageID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id > ?", s.MessageID)
}

// MessageOrder is the canonical (created_at, id) ordering within a session.
type MessageOrder struct {
	Desc bool
}

func (s MessageOrder) Apply(db *gorm.DB) *gorm.DB {
	if s.Desc {
		return db.Order("created_at DESC").Order("id DESC")
	}
	return db.Order("created_at ASC").Order("id ASC")
}
