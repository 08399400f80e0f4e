package websocket

import (
	"time"

	"support-chat-be/internal/delivery"
	"support-chat-be/internal/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Frame is what a stream client receives. Refetch frames carry the
// notification; the client reloads the named session or inbox.
type Frame struct {
	Type string                 `json:"type"`
	Data *delivery.Notification `json:"data,omitempty"`
}

const (
	FrameConnected = "connected"
	FrameRefetch   = "refetch"
)

// Client binds one websocket connection to one Bus subscription.
type Client struct {
	Id     uuid.UUID
	Conn   *websocket.Conn
	Sub    *delivery.Subscription
	logger logger.ILogger
}

// readPump only services control frames; clients never send data we act on.
// Returning closes the subscription, which stops writePump.
func (c *Client) readPump() {
	defer func() {
		c.Sub.Close()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WS_CLIENT", "Unexpected close", map[string]interface{}{
					"client_id": c.Id,
					"error":     err.Error(),
				})
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	if err := c.write(Frame{Type: FrameConnected}); err != nil {
		return
	}

	for {
		select {
		case n, ok := <-c.Sub.C():
			if !ok {
				c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(Frame{Type: FrameRefetch, Data: &n}); err != nil {
				c.logger.Debug("WS_CLIENT", "Write failed", map[string]interface{}{
					"client_id": c.Id,
					"error":     err.Error(),
				})
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frame Frame) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(frame)
}
