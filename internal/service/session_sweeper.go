package service

import (
	"context"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/metrics"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/repository/unitofwork"
)

const idleArchiveNotice = "This conversation was archived after a period of inactivity."

// SessionSweeper archives abandoned sessions: active, with neither a session
// change nor a message for longer than idleTimeout.
type SessionSweeper struct {
	uowFactory  unitofwork.RepositoryFactory
	chat        IChatSessionService
	idleTimeout time.Duration
	interval    time.Duration
	batchSize   int
	now         func() time.Time
	logger      logger.ILogger
}

func NewSessionSweeper(
	uowFactory unitofwork.RepositoryFactory,
	chat IChatSessionService,
	idleTimeout, interval time.Duration,
	batchSize int,
	clock func() time.Time,
	logger logger.ILogger,
) *SessionSweeper {
	if clock == nil {
		clock = time.Now
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SessionSweeper{
		uowFactory:  uowFactory,
		chat:        chat,
		idleTimeout: idleTimeout,
		interval:    interval,
		batchSize:   batchSize,
		now:         clock,
		logger:      logger,
	}
}

// Run sweeps every interval until ctx is done.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("SWEEPER", "Idle session sweeper started", map[string]interface{}{
		"idle_timeout": s.idleTimeout.String(),
		"interval":     s.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("SWEEPER", "Sweep failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Sweep archives one batch and returns how many sessions it archived.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	cutoff := s.now().Add(-s.idleTimeout)

	candidates, err := uow.ChatSessionRepository().FindIdleCandidates(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, candidate := range candidates {
		latest, err := uow.ChatMessageRepository().Latest(ctx, candidate.Id)
		if err != nil {
			return archived, err
		}
		if latest != nil && !latest.CreatedAt.Before(cutoff) {
			continue
		}

		// Archive first; the notice is allowed on an archived session and is
		// never written twice if the archive loses a race.
		if _, err := s.chat.UpdateStatus(ctx, candidate.Id, entity.SessionStatusArchived); err != nil {
			s.logger.Warn("SWEEPER", "Skipping session", map[string]interface{}{
				"session_id": candidate.Id,
				"error":      err.Error(),
			})
			continue
		}
		archived++
		metrics.SessionsSwept.Inc()

		if _, err := s.chat.SendMessage(ctx, SendMessageInput{
			SessionId:  candidate.Id,
			SenderType: entity.SenderTypeSystem,
			Message:    idleArchiveNotice,
		}); err != nil {
			s.logger.Warn("SWEEPER", "Failed to append archive notice", map[string]interface{}{
				"session_id": candidate.Id,
				"error":      err.Error(),
			})
		}
	}

	if archived > 0 {
		s.logger.Info("SWEEPER", "Archived idle sessions", map[string]interface{}{"count": archived})
	}
	return archived, nil
}
