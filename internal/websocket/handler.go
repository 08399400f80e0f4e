package websocket

import (
	"support-chat-be/internal/delivery"
	"support-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs subscribes the connection to topics and pumps until either side
// goes away. It blocks for the lifetime of the connection.
func ServeWs(bus *delivery.Bus, c *websocket.Conn, topics []string, log logger.ILogger) {
	client := &Client{
		Id:     uuid.New(),
		Conn:   c,
		Sub:    bus.Subscribe(topics...),
		logger: log,
	}

	log.Info("WS_CLIENT", "Stream opened", map[string]interface{}{
		"client_id": client.Id,
		"topics":    topics,
	})

	go client.writePump()
	client.readPump()

	log.Info("WS_CLIENT", "Stream closed", map[string]interface{}{"client_id": client.Id})
}
