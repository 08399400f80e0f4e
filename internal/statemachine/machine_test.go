package statemachine

import (
	"testing"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/specification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uptr(v uint64) *uint64 { return &v }

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func session(status entity.SessionStatus, agent *uint64) *entity.ChatSession {
	s := &entity.ChatSession{Id: 42, CompanyId: 1, ContactId: uptr(7), AgentId: agent, Status: status}
	if status.IsTerminal() {
		ended := fixedNow.Add(-time.Hour)
		s.EndedAt = &ended
	}
	return s
}

func TestApplyTransitionTable(t *testing.T) {
	m := NewMachine(func() time.Time { return fixedNow })

	tests := []struct {
		name    string
		session *entity.ChatSession
		event   Event
		wantTo  entity.SessionStatus
		wantErr apperror.Kind
	}{
		{"close assigned active", session(entity.SessionStatusActive, uptr(9)), Close(), entity.SessionStatusClosed, ""},
		{"close unassigned active", session(entity.SessionStatusActive, nil), Close(), "", apperror.KindInvalidTransition},
		{"close closed", session(entity.SessionStatusClosed, uptr(9)), Close(), "", apperror.KindInvalidTransition},
		{"close archived", session(entity.SessionStatusArchived, uptr(9)), Close(), "", apperror.KindInvalidTransition},
		{"archive active unassigned", session(entity.SessionStatusActive, nil), Archive(), entity.SessionStatusArchived, ""},
		{"archive closed", session(entity.SessionStatusClosed, uptr(9)), Archive(), entity.SessionStatusArchived, ""},
		{"archive archived", session(entity.SessionStatusArchived, nil), Archive(), "", apperror.KindInvalidTransition},
		{"assign active", session(entity.SessionStatusActive, nil), Assign(9), entity.SessionStatusActive, ""},
		{"assign overwrites owner", session(entity.SessionStatusActive, uptr(3)), Assign(9), entity.SessionStatusActive, ""},
		{"assign closed", session(entity.SessionStatusClosed, uptr(3)), Assign(9), "", apperror.KindInvalidTransition},
		{"assign zero agent", session(entity.SessionStatusActive, nil), Assign(0), "", apperror.KindValidation},
		{"unassign assigned", session(entity.SessionStatusActive, uptr(9)), Unassign(), entity.SessionStatusActive, ""},
		{"unassign unassigned", session(entity.SessionStatusActive, nil), Unassign(), "", apperror.KindInvalidTransition},
		{"unassign closed", session(entity.SessionStatusClosed, uptr(9)), Unassign(), "", apperror.KindInvalidTransition},
		{"reopen closed", session(entity.SessionStatusClosed, uptr(9)), Event{Name: EventReopen}, "", apperror.KindInvalidTransition},
		{"cas matches", session(entity.SessionStatusActive, uptr(3)), CompareAndAssign(9, uptr(3)), entity.SessionStatusActive, ""},
		{"cas from unassigned", session(entity.SessionStatusActive, nil), CompareAndAssign(9, nil), entity.SessionStatusActive, ""},
		{"cas mismatch", session(entity.SessionStatusActive, uptr(4)), CompareAndAssign(9, uptr(3)), "", apperror.KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := m.Apply(tt.session, tt.event)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, apperror.KindOf(err))
				assert.Nil(t, tr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.session.Status, tr.From)
			assert.Equal(t, tt.wantTo, tr.To)

			// The transition must leave the row consistent.
			next := tt.session.Clone()
			tr.Patch.ApplyTo(next)
			assert.NoError(t, next.CheckInvariants())
			assert.True(t, specification.MatchAll(tt.session, tr.Guards...), "guards must hold on the session they were derived from")
		})
	}
}

func TestInvalidTransitionDetails(t *testing.T) {
	m := NewMachine(nil)

	_, err := m.Apply(session(entity.SessionStatusActive, nil), Close())

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "active", appErr.Details["current_state"])
	assert.Equal(t, "close", appErr.Details["event"])
}

func TestEndingTransitionsSetEndedAt(t *testing.T) {
	m := NewMachine(func() time.Time { return fixedNow })

	tr, err := m.Apply(session(entity.SessionStatusActive, uptr(9)), Close())
	require.NoError(t, err)
	require.NotNil(t, tr.Patch.EndedAt)
	assert.Equal(t, fixedNow, *tr.Patch.EndedAt)

	tr, err = m.Apply(session(entity.SessionStatusActive, nil), Archive())
	require.NoError(t, err)
	require.NotNil(t, tr.Patch.EndedAt)
	require.NotNil(t, tr.Patch.Status)
	assert.Equal(t, entity.SessionStatusArchived, *tr.Patch.Status)
}

func TestGuardsRejectRaces(t *testing.T) {
	m := NewMachine(nil)

	tr, err := m.Apply(session(entity.SessionStatusActive, uptr(9)), Close())
	require.NoError(t, err)

	// Another writer unassigned the agent before our update ran.
	raced := session(entity.SessionStatusActive, nil)
	assert.False(t, specification.MatchAll(raced, tr.Guards...))

	tr, err = m.Apply(session(entity.SessionStatusActive, uptr(3)), CompareAndAssign(9, uptr(3)))
	require.NoError(t, err)
	assert.False(t, specification.MatchAll(session(entity.SessionStatusActive, uptr(5)), tr.Guards...))
}

func TestEventForStatus(t *testing.T) {
	e, err := EventForStatus(entity.SessionStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, EventClose, e.Name)

	e, err = EventForStatus(entity.SessionStatusArchived)
	require.NoError(t, err)
	assert.Equal(t, EventArchive, e.Name)

	e, err = EventForStatus(entity.SessionStatusActive)
	require.NoError(t, err)
	assert.Equal(t, EventReopen, e.Name)

	_, err = EventForStatus("deleted")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
