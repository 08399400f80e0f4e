package delivery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindMessageAppended Kind = "message.appended"
	KindMessageRead     Kind = "message.read"
	KindSessionUpdated  Kind = "session.updated"
	KindSessionStarted  Kind = "session.started"
)

// Notification says "something changed on Topic, reload". It carries ids only;
// receivers always refetch through the stores.
type Notification struct {
	Id         uuid.UUID `json:"id"`
	Topic      string    `json:"topic"`
	Kind       Kind      `json:"kind"`
	CompanyId  uint64    `json:"company_id"`
	SessionId  uint64    `json:"session_id,omitempty"`
	MessageId  *uint64   `json:"message_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func SessionTopic(sessionId uint64) string {
	return fmt.Sprintf("session:%d", sessionId)
}

func CompanyTopic(companyId uint64) string {
	return fmt.Sprintf("company:%d", companyId)
}

func NewNotification(topic string, kind Kind, companyId, sessionId uint64) Notification {
	return Notification{
		Id:         uuid.New(),
		Topic:      topic,
		Kind:       kind,
		CompanyId:  companyId,
		SessionId:  sessionId,
		OccurredAt: time.Now(),
	}
}

func encode(n Notification) ([]byte, error) {
	return json.Marshal(n)
}

func decode(data []byte) (Notification, error) {
	var n Notification
	err := json.Unmarshal(data, &n)
	return n, err
}
