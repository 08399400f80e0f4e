package handler

import (
	"strconv"

	"support-chat-be/internal/controller"
	"support-chat-be/internal/delivery"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/pkg/logger"
	"support-chat-be/internal/pkg/serverutils"
	"support-chat-be/internal/service"
	internalWS "support-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ChatStreamHandler struct {
	chat      service.IChatSessionService
	bus       *delivery.Bus
	jwtSecret string
	logger    logger.ILogger
}

func NewChatStreamHandler(chat service.IChatSessionService, bus *delivery.Bus, jwtSecret string, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{
		chat:      chat,
		bus:       bus,
		jwtSecret: jwtSecret,
		logger:    log,
	}
}

// ServeWs opens a refetch stream. With ?session_id= the caller follows one
// session; an agent without it follows the whole company inbox.
func (h *ChatStreamHandler) ServeWs(c *fiber.Ctx) error {
	// Priority 1: Query Param (Browser standard)
	tokenStr := c.Query("token")

	// Priority 2: Authorization Header
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')")
	}

	identity, err := serverutils.ParseIdentity(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("CHAT_STREAM", "Invalid token in handshake", map[string]interface{}{"error": err.Error()})
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	topics, err := h.topicsFor(c, identity)
	if err != nil {
		return err
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			internalWS.ServeWs(h.bus, conn, topics, h.logger)
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatStreamHandler) topicsFor(c *fiber.Ctx, identity *serverutils.Identity) ([]string, error) {
	raw := c.Query("session_id")
	if raw == "" {
		if !identity.IsAgent() {
			return nil, apperror.Validation("session_id is required", nil)
		}
		return []string{delivery.CompanyTopic(identity.CompanyId)}, nil
	}

	sessionId, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || sessionId == 0 {
		return nil, apperror.Validation("invalid session_id", map[string]interface{}{"session_id": raw})
	}

	session, err := h.chat.GetSession(c.UserContext(), sessionId)
	if err != nil {
		return nil, err
	}
	if !controller.CanAccess(identity, session) {
		return nil, apperror.NotFound("chat session", sessionId)
	}
	return []string{delivery.SessionTopic(sessionId)}, nil
}

func (h *ChatStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/chat/ws", h.ServeWs)
}
