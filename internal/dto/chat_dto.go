package dto

import (
	"time"

	"support-chat-be/internal/entity"
)

type StartSessionRequest struct {
	ContactId *uint64                `json:"contact_id"` // agents only; contacts start their own
	Metadata  map[string]interface{} `json:"metadata"`
}

type SendMessageRequest struct {
	Message     string                 `json:"message" validate:"required,notblank"`
	MessageType string                 `json:"message_type" validate:"omitempty,oneof=text image file"`
	Metadata    map[string]interface{} `json:"metadata"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active closed archived"`
}

type AssignRequest struct {
	AgentId uint64 `json:"agent_id" validate:"required"`
	// CompareAndSwap makes the assignment conditional on the current
	// assignee being ExpectedAgentId (nil meaning unassigned).
	CompareAndSwap  bool    `json:"compare_and_swap"`
	ExpectedAgentId *uint64 `json:"expected_agent_id"`
}

type LinkTicketRequest struct {
	TicketId uint64                 `json:"ticket_id" validate:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

type DraftRequest struct {
	Instruction string  `json:"instruction" validate:"required,notblank"`
	Context     string  `json:"context" validate:"max=8000"`
	SessionId   *uint64 `json:"session_id"`
}

type SessionResponse struct {
	Id        uint64                 `json:"id"`
	CompanyId uint64                 `json:"company_id"`
	ContactId *uint64                `json:"contact_id"`
	AgentId   *uint64                `json:"agent_id"`
	TicketId  *uint64                `json:"ticket_id"`
	Status    string                 `json:"status"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

type MessageResponse struct {
	Id          uint64                 `json:"id"`
	SessionId   uint64                 `json:"session_id"`
	SenderType  string                 `json:"sender_type"`
	SenderId    uint64                 `json:"sender_id"`
	Message     string                 `json:"message"`
	MessageType string                 `json:"message_type"`
	Metadata    map[string]interface{} `json:"metadata"`
	ReadAt      *time.Time             `json:"read_at"`
	CreatedAt   time.Time              `json:"created_at"`
}

type SessionListResponse struct {
	Items []SessionResponse `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// PollResponse tells a polling client whether to refetch and when to ask again.
// IntervalMs is 0 once the session is closed or archived.
type PollResponse struct {
	SessionId       uint64 `json:"session_id"`
	Status          string `json:"status"`
	Version         string `json:"version"`
	Changed         bool   `json:"changed"`
	IntervalMs      int64  `json:"interval_ms"`
	LatestMessageId uint64 `json:"latest_message_id"`
}

type DraftResponse struct {
	RequestId string `json:"request_id"`
	Text      string `json:"text"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

func NewSessionResponse(s *entity.ChatSession) SessionResponse {
	return SessionResponse{
		Id:        s.Id,
		CompanyId: s.CompanyId,
		ContactId: s.ContactId,
		AgentId:   s.AgentId,
		TicketId:  s.TicketId,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Metadata:  orEmpty(s.Metadata),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func NewSessionListResponse(sessions []*entity.ChatSession, total int64, page entity.Page) SessionListResponse {
	items := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, NewSessionResponse(s))
	}
	page = page.Normalize()
	return SessionListResponse{Items: items, Total: total, Page: page.Page, Limit: page.Limit}
}

func NewMessageResponse(m *entity.ChatMessage) MessageResponse {
	return MessageResponse{
		Id:          m.Id,
		SessionId:   m.SessionId,
		SenderType:  string(m.SenderType),
		SenderId:    m.SenderId,
		Message:     m.Message,
		MessageType: string(m.MessageType),
		Metadata:    orEmpty(m.Metadata),
		ReadAt:      m.ReadAt,
		CreatedAt:   m.CreatedAt,
	}
}

func NewMessageListResponse(messages []*entity.ChatMessage) []MessageResponse {
	res := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, NewMessageResponse(m))
	}
	return res
}

func orEmpty(m entity.Metadata) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
