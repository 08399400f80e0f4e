package memory

import (
	"context"
	"time"

	"support-chat-be/internal/repository/contract"
	"support-chat-be/internal/repository/unitofwork"
)

// RepositoryFactory serves the same process-wide stores to every unit of work.
type RepositoryFactory struct {
	sessions *ChatSessionRepository
	messages *ChatMessageRepository
}

func NewRepositoryFactory(clock func() time.Time) *RepositoryFactory {
	sessions := NewChatSessionRepository(clock)
	messages := NewChatMessageRepository(clock)
	sessions.lastMessageAt = messages.lastActivity
	return &RepositoryFactory{
		sessions: sessions,
		messages: messages,
	}
}

var _ unitofwork.RepositoryFactory = (*RepositoryFactory)(nil)

func (f *RepositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{factory: f}
}

type unitOfWork struct {
	factory *RepositoryFactory
}

func (u *unitOfWork) ChatSessionRepository() contract.ChatSessionRepository {
	return u.factory.sessions
}

func (u *unitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return u.factory.messages
}
