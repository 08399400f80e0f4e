package controller

import (
	"strings"
	"time"

	"support-chat-be/internal/dto"
	"support-chat-be/internal/entity"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/serverutils"
	"support-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatSessionController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ListForCompany(ctx *fiber.Ctx) error
	ListForContact(ctx *fiber.Ctx) error
	UpdateStatus(ctx *fiber.Ctx) error
	Assign(ctx *fiber.Ctx) error
	Unassign(ctx *fiber.Ctx) error
	LinkTicket(ctx *fiber.Ctx) error
	Poll(ctx *fiber.Ctx) error
}

type chatSessionController struct {
	service   service.IChatSessionService
	jwtSecret string
}

func NewChatSessionController(service service.IChatSessionService, jwtSecret string) IChatSessionController {
	return &chatSessionController{service: service, jwtSecret: jwtSecret}
}

func (c *chatSessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware(c.jwtSecret))
	h.Post("/sessions", c.Start)
	h.Get("/sessions", c.ListForCompany)
	h.Get("/sessions/:id", c.Show)
	h.Get("/sessions/:id/poll", c.Poll)
	h.Patch("/sessions/:id/status", c.UpdateStatus)
	h.Put("/sessions/:id/assignee", c.Assign)
	h.Delete("/sessions/:id/assignee", c.Unassign)
	h.Patch("/sessions/:id/ticket", c.LinkTicket)
	h.Get("/contacts/:contactId/sessions", c.ListForContact)
}

func (c *chatSessionController) Start(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)

	var req dto.StartSessionRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}

	contactId := identity.UserId
	if identity.IsAgent() {
		if req.ContactId == nil || *req.ContactId == 0 {
			return apperror.Validation("contact_id is required when an agent starts a session", nil)
		}
		contactId = *req.ContactId
	}

	session, err := c.service.StartSession(ctx.UserContext(), identity.CompanyId, contactId, req.Metadata)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.CreatedResponse("Success start chat session", dto.NewSessionResponse(session)))
}

func (c *chatSessionController) Show(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	session, err := loadSession(ctx.UserContext(), c.service, serverutils.GetIdentity(ctx), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show chat session", dto.NewSessionResponse(session)))
}

// ListForCompany serves the agent inbox. Filters: status (comma separated),
// agent_id, contact_id, unassigned=true.
func (c *chatSessionController) ListForCompany(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}

	filter := entity.SessionFilter{Unassigned: ctx.QueryBool("unassigned", false)}
	if raw := ctx.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := entity.SessionStatus(strings.TrimSpace(s))
			if !status.Valid() {
				return apperror.Validation("invalid status filter", map[string]interface{}{"status": s})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	var err error
	if filter.AgentId, err = serverutils.QueryID(ctx, "agent_id"); err != nil {
		return err
	}
	if filter.ContactId, err = serverutils.QueryID(ctx, "contact_id"); err != nil {
		return err
	}

	page := pageFromQuery(ctx)
	sessions, total, err := c.service.ListSessionsForCompany(ctx.UserContext(), identity.CompanyId, filter, page)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list chat sessions", dto.NewSessionListResponse(sessions, total, page)))
}

func (c *chatSessionController) ListForContact(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	contactId, err := serverutils.ParamID(ctx, "contactId")
	if err != nil {
		return err
	}
	if !identity.IsAgent() && identity.UserId != contactId {
		return fiber.NewError(fiber.StatusForbidden, "Cannot list another contact's sessions")
	}

	page := pageFromQuery(ctx)
	sessions, total, err := c.service.ListSessionsForContact(ctx.UserContext(), identity.CompanyId, contactId, page)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list contact chat sessions", dto.NewSessionListResponse(sessions, total, page)))
}

func (c *chatSessionController) UpdateStatus(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateStatusRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, identity, id); err != nil {
		return err
	}

	session, err := c.service.UpdateStatus(ctx.UserContext(), id, entity.SessionStatus(req.Status))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update chat session status", dto.NewSessionResponse(session)))
}

func (c *chatSessionController) Assign(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.AssignRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, identity, id); err != nil {
		return err
	}

	var session *entity.ChatSession
	if req.CompareAndSwap {
		session, err = c.service.CompareAndAssign(ctx.UserContext(), id, req.AgentId, req.ExpectedAgentId)
	} else {
		session, err = c.service.Assign(ctx.UserContext(), id, req.AgentId)
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success assign chat session", dto.NewSessionResponse(session)))
}

func (c *chatSessionController) Unassign(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, identity, id); err != nil {
		return err
	}

	session, err := c.service.Unassign(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success unassign chat session", dto.NewSessionResponse(session)))
}

func (c *chatSessionController) LinkTicket(ctx *fiber.Ctx) error {
	identity := serverutils.GetIdentity(ctx)
	if err := requireAgent(identity); err != nil {
		return err
	}
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.LinkTicketRequest
	if err := serverutils.ParseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, identity, id); err != nil {
		return err
	}

	session, err := c.service.LinkTicket(ctx.UserContext(), id, req.TicketId, req.Metadata)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success link ticket", dto.NewSessionResponse(session)))
}

// Poll is the fallback for clients without a live stream. Clients pass the
// version from the previous poll and refetch only when changed is true.
func (c *chatSessionController) Poll(ctx *fiber.Ctx) error {
	id, err := serverutils.ParamID(ctx, "id")
	if err != nil {
		return err
	}

	if _, err := loadSession(ctx.UserContext(), c.service, serverutils.GetIdentity(ctx), id); err != nil {
		return err
	}

	state, err := c.service.PollState(ctx.UserContext(), id, ctx.Query("version"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success poll chat session", dto.PollResponse{
		SessionId:       state.SessionId,
		Status:          string(state.Status),
		Version:         state.Version,
		Changed:         state.Changed,
		IntervalMs:      int64(state.Interval / time.Millisecond),
		LatestMessageId: state.LatestMessageId,
	}))
}
