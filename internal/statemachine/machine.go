// Package statemachine decides which session status and assignment changes are
// legal. It never touches a store: Apply returns the patch to write together
// with guards that re-assert the precondition inside the same update.
package statemachine

import (
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/specification"
)

type EventName string

const (
	EventClose    EventName = "close"
	EventArchive  EventName = "archive"
	EventAssign   EventName = "assign"
	EventUnassign EventName = "unassign"
	EventReopen   EventName = "reopen"
)

type Event struct {
	Name    EventName
	AgentId uint64

	// Compare-and-assign only: the agent the caller believes currently owns the session.
	CheckExpected bool
	Expected      *uint64
}

func Close() Event    { return Event{Name: EventClose} }
func Archive() Event  { return Event{Name: EventArchive} }
func Unassign() Event { return Event{Name: EventUnassign} }

func Assign(agentId uint64) Event {
	return Event{Name: EventAssign, AgentId: agentId}
}

// CompareAndAssign assigns only if the current owner equals expected (nil meaning unassigned).
func CompareAndAssign(agentId uint64, expected *uint64) Event {
	return Event{Name: EventAssign, AgentId: agentId, CheckExpected: true, Expected: expected}
}

// EventForStatus maps a requested target status onto the event that reaches it.
func EventForStatus(target entity.SessionStatus) (Event, error) {
	switch target {
	case entity.SessionStatusClosed:
		return Close(), nil
	case entity.SessionStatusArchived:
		return Archive(), nil
	case entity.SessionStatusActive:
		return Event{Name: EventReopen}, nil
	}
	return Event{}, apperror.Validation("unknown session status", map[string]interface{}{"status": target})
}

type Transition struct {
	Event  Event
	From   entity.SessionStatus
	To     entity.SessionStatus
	Patch  entity.SessionPatch
	Guards []specification.SessionSpecification
}

type Machine struct {
	now func() time.Time
}

func NewMachine(clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{now: clock}
}

// Apply validates e against the current session and returns the write that performs it.
// Illegal edges return InvalidTransition naming the current state and the event.
func (m *Machine) Apply(s *entity.ChatSession, e Event) (*Transition, error) {
	from := s.Status
	invalid := apperror.InvalidTransition(string(from), string(e.Name))

	t := &Transition{Event: e, From: from, To: from}

	switch e.Name {
	case EventClose:
		if from != entity.SessionStatusActive || !s.IsAssigned() {
			return nil, invalid
		}
		t.To = entity.SessionStatusClosed
		t.Patch = m.endPatch(t.To)
		t.Guards = []specification.SessionSpecification{
			specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
			specification.AgentAssigned{},
		}

	case EventArchive:
		if from != entity.SessionStatusActive && from != entity.SessionStatusClosed {
			return nil, invalid
		}
		t.To = entity.SessionStatusArchived
		t.Patch = m.endPatch(t.To)
		t.Guards = []specification.SessionSpecification{
			specification.ByStatus{Statuses: []entity.SessionStatus{from}},
		}

	case EventAssign:
		if e.AgentId == 0 {
			return nil, apperror.Validation("agent id is required", map[string]interface{}{"agent_id": "required"})
		}
		if from != entity.SessionStatusActive {
			return nil, invalid
		}
		guards := []specification.SessionSpecification{
			specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
		}
		if e.CheckExpected {
			if !sameAgent(s.AgentId, e.Expected) {
				return nil, apperror.Conflict("session is owned by a different agent", map[string]interface{}{
					"session_id": s.Id,
					"agent_id":   s.AgentId,
				})
			}
			if e.Expected == nil {
				guards = append(guards, specification.Unassigned{})
			} else {
				guards = append(guards, specification.ByAgentID{AgentID: *e.Expected})
			}
		}
		agentId := e.AgentId
		t.Patch = entity.SessionPatch{AgentId: &agentId}
		t.Guards = guards

	case EventUnassign:
		if from != entity.SessionStatusActive || !s.IsAssigned() {
			return nil, invalid
		}
		t.Patch = entity.SessionPatch{ClearAgent: true}
		t.Guards = []specification.SessionSpecification{
			specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
			specification.AgentAssigned{},
		}

	default:
		// reopen and anything unknown: there is no edge back to active.
		return nil, invalid
	}

	return t, nil
}

func (m *Machine) endPatch(to entity.SessionStatus) entity.SessionPatch {
	ended := m.now()
	return entity.SessionPatch{Status: &to, EndedAt: &ended}
}

func sameAgent(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
