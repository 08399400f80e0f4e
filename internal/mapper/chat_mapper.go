package mapper

import (
	"encoding/json"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	return &entity.ChatSession{
		Id:        s.Id,
		CompanyId: s.CompanyId,
		ContactId: s.ContactId,
		AgentId:   s.AgentId,
		TicketId:  s.TicketId,
		Status:    entity.SessionStatus(s.Status),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Metadata:  decodeMetadata(s.Metadata),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	return &model.ChatSession{
		Id:        s.Id,
		CompanyId: s.CompanyId,
		ContactId: s.ContactId,
		AgentId:   s.AgentId,
		TicketId:  s.TicketId,
		Status:    string(s.Status),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Metadata:  encodeMetadata(s.Metadata),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// SessionPatchToColumns turns a patch into the column map for a single UPDATE.
func (m *ChatMapper) SessionPatchToColumns(p entity.SessionPatch) map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.ClearAgent {
		cols["agent_id"] = nil
	} else if p.AgentId != nil {
		cols["agent_id"] = *p.AgentId
	}
	if p.EndedAt != nil {
		cols["ended_at"] = *p.EndedAt
	}
	if p.TicketId != nil {
		cols["ticket_id"] = *p.TicketId
	}
	if p.Metadata != nil {
		cols["metadata"] = encodeMetadata(p.Metadata)
	}
	return cols
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	return &entity.ChatMessage{
		Id:          msg.Id,
		CompanyId:   msg.CompanyId,
		SessionId:   msg.SessionId,
		SenderType:  entity.SenderType(msg.SenderType),
		SenderId:    msg.SenderId,
		Message:     msg.Message,
		MessageType: entity.MessageType(msg.MessageType),
		Metadata:    decodeMetadata(msg.Metadata),
		ReadAt:      msg.ReadAt,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	return &model.ChatMessage{
		Id:          msg.Id,
		CompanyId:   msg.CompanyId,
		SessionId:   msg.SessionId,
		SenderType:  string(msg.SenderType),
		SenderId:    msg.SenderId,
		Message:     msg.Message,
		MessageType: string(msg.MessageType),
		Metadata:    encodeMetadata(msg.Metadata),
		ReadAt:      msg.ReadAt,
		CreatedAt:   msg.CreatedAt,
		UpdatedAt:   msg.UpdatedAt,
	}
}

func (m *ChatMapper) ChatMessagesToEntities(models []*model.ChatMessage) []*entity.ChatMessage {
	entities := make([]*entity.ChatMessage, len(models))
	for i, msg := range models {
		entities[i] = m.ChatMessageToEntity(msg)
	}
	return entities
}

func encodeMetadata(meta entity.Metadata) datatypes.JSON {
	if len(meta) == 0 {
		return datatypes.JSON("{}")
	}
	raw, _ := json.Marshal(meta) // primitives only, validated upstream
	return datatypes.JSON(raw)
}

func decodeMetadata(raw datatypes.JSON) entity.Metadata {
	if len(raw) == 0 {
		return entity.Metadata{}
	}
	meta := entity.Metadata{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return entity.Metadata{}
	}
	return meta
}
