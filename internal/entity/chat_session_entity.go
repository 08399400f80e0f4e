package entity

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusClosed   SessionStatus = "closed"
	SessionStatusArchived SessionStatus = "archived"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusClosed, SessionStatusArchived:
		return true
	}
	return false
}

// IsTerminal reports whether the session can no longer return to active.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusClosed || s == SessionStatusArchived
}

type ChatSession struct {
	Id        uint64
	CompanyId uint64
	ContactId *uint64
	AgentId   *uint64
	TicketId  *uint64
	Status    SessionStatus
	StartedAt time.Time
	EndedAt   *time.Time
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CheckInvariants verifies the row-level rules every persisted session must satisfy.
func (s *ChatSession) CheckInvariants() error {
	if !s.Status.Valid() {
		return fmt.Errorf("session %d: unknown status %q", s.Id, s.Status)
	}
	if s.Status.IsTerminal() != (s.EndedAt != nil) {
		return fmt.Errorf("session %d: ended_at must be set iff status is closed or archived (status=%s)", s.Id, s.Status)
	}
	if s.Status == SessionStatusClosed && s.AgentId == nil {
		return fmt.Errorf("session %d: closed without an owning agent", s.Id)
	}
	return nil
}

func (s *ChatSession) IsAssigned() bool {
	return s.AgentId != nil
}

// Clone returns a deep copy so callers never share pointers with a store.
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	c := *s
	c.ContactId = cloneID(s.ContactId)
	c.AgentId = cloneID(s.AgentId)
	c.TicketId = cloneID(s.TicketId)
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	c.Metadata = s.Metadata.Clone()
	return &c
}

// SessionPatch is the partial update applied by a single store write.
// Nil fields are left untouched; ClearAgent sets agent_id to NULL.
type SessionPatch struct {
	Status     *SessionStatus
	AgentId    *uint64
	ClearAgent bool
	EndedAt    *time.Time
	TicketId   *uint64
	Metadata   Metadata
}

func (p SessionPatch) IsEmpty() bool {
	return p.Status == nil && p.AgentId == nil && !p.ClearAgent && p.EndedAt == nil && p.TicketId == nil && p.Metadata == nil
}

// ApplyTo mutates s in place. Stores call it while holding the row.
func (p SessionPatch) ApplyTo(s *ChatSession) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.ClearAgent {
		s.AgentId = nil
	} else if p.AgentId != nil {
		s.AgentId = cloneID(p.AgentId)
	}
	if p.EndedAt != nil {
		t := *p.EndedAt
		s.EndedAt = &t
	}
	if p.TicketId != nil {
		s.TicketId = cloneID(p.TicketId)
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata.Clone()
	}
}

// SessionFilter narrows listByCompany. Zero values mean "any".
type SessionFilter struct {
	Statuses   []SessionStatus
	AgentId    *uint64
	ContactId  *uint64
	Unassigned bool
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page to >= 1 and limit to [1, MaxPageLimit].
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

func cloneID(id *uint64) *uint64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
