package model

import (
	"time"

	"gorm.io/datatypes"
)

type ChatSession struct {
	Id        uint64         `gorm:"primaryKey;autoIncrement"`
	CompanyId uint64         `gorm:"not null;index:idx_chat_sessions_company_status,priority:1"`
	ContactId *uint64        `gorm:"index"`
	AgentId   *uint64        `gorm:"index"`
	TicketId  *uint64        `gorm:"index"`
	Status    string         `gorm:"type:varchar(16);not null;default:'active';index:idx_chat_sessions_company_status,priority:2"`
	StartedAt time.Time      `gorm:"not null"`
	EndedAt   *time.Time     // set only on close/archive
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
