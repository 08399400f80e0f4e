package specification

import (
	"fmt"

	"support-chat-be/internal/entity"

	"gorm.io/gorm"
)

// ByID filters by ID
type ByID struct {
	ID uint64
}

func (s ByID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.ID)
}

func (s ByID) MatchSession(c *entity.ChatSession) bool {
	return c.Id == s.ID
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// Pagination
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}

func FromPage(p entity.Page) Pagination {
	n := p.Normalize()
	return Pagination{Limit: n.Limit, Offset: n.Offset()}
}
