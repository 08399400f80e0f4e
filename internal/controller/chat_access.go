package controller

import (
	"context"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/serverutils"
	"support-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// loadSession returns the session when the caller may see it. Sessions of
// another company, or another contact, are reported as not found.
func loadSession(ctx context.Context, chat service.IChatSessionService, identity *serverutils.Identity, sessionId uint64) (*entity.ChatSession, error) {
	session, err := chat.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if !CanAccess(identity, session) {
		return nil, apperror.NotFound("chat session", sessionId)
	}
	return session, nil
}

func CanAccess(identity *serverutils.Identity, session *entity.ChatSession) bool {
	if identity == nil || session.CompanyId != identity.CompanyId {
		return false
	}
	if identity.IsAgent() {
		return true
	}
	return session.ContactId != nil && *session.ContactId == identity.UserId
}

func requireAgent(identity *serverutils.Identity) error {
	if identity == nil || !identity.IsAgent() {
		return fiber.NewError(fiber.StatusForbidden, "Agents only")
	}
	return nil
}

func pageFromQuery(ctx *fiber.Ctx) entity.Page {
	return entity.Page{
		Page:  ctx.QueryInt("page", 1),
		Limit: ctx.QueryInt("limit", entity.DefaultPageLimit),
	}.Normalize()
}
