package controller

import (
	"fmt"

	"support-chat-be/internal/dto"
	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/serverutils"
	"support-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

// IdempotencyStore remembers sendMessage responses per Idempotency-Key.
type IdempotencyStore interface {
	Claim(key string) bool
	Save(key string, response interface{})
	Get(key string) (response interface{}, found bool, done bool)
	Release(key string)
}

type IChatMessageController interface {
	RegisterRoutes(r fiber.Router)
	Send(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	MarkRead(ctx *fiber.Ctx) error
}

type chatMessageController struct {
	service     service.IChatSessionService
	idempotency IdempotencyStore
	jwtSecret   string
}

func NewChatMessageController(service service.IChatSessionService, idempotency IdempotencyStore, jwtSecret string) IChatMessageController {
	return &chatMessageController{service: service, idempotency: idempotency, jwtSecret: jwtSecret}
}

func (c *chatMessageController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/sessions/:id/messages", c.Send)
	h.Get("/sessions/:id/messages", c.List)
	h.Patch("/sessions/:id/messages/:messageId/read", c.MarkRead)
}

// Send appends a message as the caller. A repeated Idempotency-Key replays the
// first response instead of appending again.
func (c *chatMessageController) Send(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, identity, id); err != nil {
		return err
	}

	key := ""
	if raw := ctx.Get("Idempotency-Key"); raw != "" && c.idempotency != nil {
		key = fmt.Sprintf("%d:%s:%d:%s", identity.CompanyId, identity.Role, identity.UserId, raw)
		if !c.idempotency.Claim(key) {
			if res, _, done := c.idempotency.Get(key); done {
				return ctx.Status(fiber.StatusCreated).JSON(res)
			}
			return apperror.Conflict("a request with this Idempotency-Key is still in progress", nil)
		}
	}

	senderType := entity.SenderTypeContact
	if identity.IsAgent() {
		senderType = entity.SenderTypeAgent
	}

	message, err := c.service.SendMessage(ctx.UserContext(), service.SendMessageInput{
		SessionId:   id,
		SenderType:  senderType,
		SenderId:    identity.UserId,
		Message:     req.Message,
		MessageType: entity.MessageType(req.MessageType),
		Metadata:    req.Metadata,
	})
	if err != nil {
		if key != "" {
			c.idempotency.Release(key)
		}
		return err
	}

	res := serverutils.CreatedResponse("Success send chat message", dto.NewMessageResponse(message))
	if key != "" {
		c.idempotency.Save(key, res)
	}
	return ctx.Status(fiber.StatusCreated).JSON(res)
}

// List returns the session history oldest first; since_id narrows it to newer messages.
func (c *chatMessageController) List(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}
	sinceId, err := serverutils.QueryID(ctx, "since_id")
	if err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, serverutils.GetIdentity(ctx), id); err != nil {
		return err
	}

	messages, err := c.service.ListMessages(ctx.UserContext(), id, sinceId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list chat messages", dto.NewMessageListResponse(messages)))
}

func (c *chatMessageController) MarkRead(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}
	messageId, err := serverutils.ParamID(ctx, "messageId")
	if err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, serverutils.GetIdentity(ctx), id); err != nil {
		return err
	}

	message, err := c.service.MarkRead(ctx.UserContext(), id, messageId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success mark chat message read", dto.NewMessageResponse(message)))
}
