package implementation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"support-chat-be/internal/entity"
	"support-chat-be/internal/mapper"
	"support-chat-be/internal/model"
	"support-chat-be/internal/pkg/apperror"
	"support-chat-be/internal/repository/contract"
	"support-chat-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatMessageRepositoryImpl) Append(ctx context.Context, message *entity.ChatMessage) error {
	if err := message.Validate(); err != nil {
		return err
	}
	m := r.mapper.ChatMessageToModel(message)
	m.Id = 0 // store-assigned
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	*message = *r.mapper.ChatMessageToEntity(m)
	return nil
}

func (r *ChatMessageRepositoryImpl) ListBySession(ctx context.Context, sessionId uint64, sinceId *uint64) ([]*entity.ChatMessage, error) {
	specs := []specification.Specification{specification.ByChatSessionID{ChatSessionID: sessionId}}
	if sinceId != nil {
		specs = append(specs, specification.AfterMessageID{MessageID: *sinceId})
	}
	specs = append(specs, specification.MessageOrder{})

	var models []*model.ChatMessage
	if err := r.applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return r.mapper.ChatMessagesToEntities(models), nil
}

func (r *ChatMessageRepositoryImpl) MarkRead(ctx context.Context, sessionId, messageId uint64) (*entity.ChatMessage, error) {
	var m model.ChatMessage
	result := r.db.WithContext(ctx).Model(&m).Clauses(clause.Returning{}).
		Where("id = ? AND session_id = ? AND read_at IS NULL", messageId, sessionId).
		Update("read_at", time.Now())
	if result.Error != nil {
		return nil, apperror.StoreUnavailable(result.Error)
	}
	if result.RowsAffected == 1 {
		return r.mapper.ChatMessageToEntity(&m), nil
	}

	// Nothing updated: the row is already read or not in this session.
	if err := r.db.WithContext(ctx).Where("id = ? AND session_id = ?", messageId, sessionId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("chat message", messageId)
		}
		return nil, apperror.StoreUnavailable(err)
	}
	return r.mapper.ChatMessageToEntity(&m), nil
}

func (r *ChatMessageRepositoryImpl) Latest(ctx context.Context, sessionId uint64) (*entity.ChatMessage, error) {
	var models []*model.ChatMessage
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.MessageOrder{Desc: true},
		specification.Pagination{Limit: 1},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	return r.mapper.ChatMessageToEntity(models[0]), nil
}

func (r *ChatMessageRepositoryImpl) LatestReadAt(ctx context.Context, sessionId uint64) (*time.Time, error) {
	var latest sql.NullTime
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatMessage{}),
		specification.ByChatSessionID{ChatSessionID: sessionId},
	)
	if err := query.Select("MAX(read_at)").Scan(&latest).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}
