package controller

import (
	"support-chat-be/internal/dto"
	"support-chat-be/internal/pkg/serverutils"
	"support-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDraftController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
}

type draftController struct {
	service   service.IDraftService
	chat      service.IChatSessionService
	jwtSecret string
}

func NewDraftController(service service.IDraftService, chat service.IChatSessionService, jwtSecret string) IDraftController {
	return &draftController{service: service, chat: chat, jwtSecret: jwtSecret}
}

func (c *draftController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/drafts", c.Create)
}

// Create returns suggested reply text for an agent. Nothing is sent or stored.
func (c *draftController) Create(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}

	var req dto.DraftRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if req.SessionId != nil {
		if _, err := loadSession(ctx.UserContext(), c.chat, identity, *req.SessionId); err != nil {
			return err
		}
	}

	res, err := c.service.Draft(ctx.UserContext(), service.DraftRequest{
		Instruction: req.Instruction,
		ContextText: req.Context,
		SessionId:   req.SessionId,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate draft", dto.DraftResponse{
		RequestId: res.RequestId.String(),
		Text:      res.Text,
		ElapsedMs: res.Elapsed.Milliseconds(),
	}))
}
