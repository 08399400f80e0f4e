package model

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage rows are append-only; only read_at is ever updated.
type ChatMessage struct {
	Id          uint64         `gorm:"primaryKey;autoIncrement"`
	CompanyId   uint64         `gorm:"not null;index"`
	SessionId   uint64         `gorm:"not null;index:idx_chat_messages_session_order,priority:1"`
	SenderType  string         `gorm:"type:varchar(16);not null"`
	SenderId    uint64         `gorm:"not null;default:0"`
	Message     string         `gorm:"type:text;not null"`
	MessageType string         `gorm:"type:varchar(16);not null;default:'text'"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	ReadAt      *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_chat_messages_session_order,priority:2"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
