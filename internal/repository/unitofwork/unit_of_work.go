package unitofwork

import (
	"support-chat-be/internal/repository/contract"
)

// UnitOfWork hands out the stores for one request. Every store operation is a
// single-row statement, so there is no transaction to begin or commit.
type UnitOfWork interface {
	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
}
