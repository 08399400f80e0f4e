package entity

import (
	"time"

	"support-chat-be/internal/pkg/validation"
)

type SenderType string

const (
	SenderTypeContact SenderType = "contact"
	SenderTypeAgent   SenderType = "agent"
	SenderTypeSystem  SenderType = "system"
)

func (s SenderType) Valid() bool {
	switch s {
	case SenderTypeContact, SenderTypeAgent, SenderTypeSystem:
		return true
	}
	return false
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// SystemSenderID is the sender_id recorded on system messages.
const SystemSenderID uint64 = 0

type ChatMessage struct {
	Id          uint64
	CompanyId   uint64      `validate:"required"`
	SessionId   uint64      `validate:"required"`
	SenderType  SenderType  `validate:"required,oneof=contact agent system"`
	SenderId    uint64
	Message     string      `validate:"required,notblank"`
	MessageType MessageType `validate:"required,oneof=text image file system"`
	Metadata    Metadata
	ReadAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate runs before any append reaches a store.
func (m *ChatMessage) Validate() error {
	if err := validation.Struct(m); err != nil {
		return err
	}
	return m.Metadata.Validate()
}

// Before reports whether m sorts before other under (created_at, id).
func (m *ChatMessage) Before(other *ChatMessage) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.Id < other.Id
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	c := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	c.Metadata = m.Metadata.Clone()
	return &c
}
