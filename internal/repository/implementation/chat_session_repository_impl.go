package implementation

import (
	"context"
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

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.ChatSession) error {
	if err := session.Metadata.Validate(); err != nil {
		return err
	}
	m := r.mapper.ChatSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return apperror.StoreUnavailable(err)
	}
	*session = *r.mapper.ChatSessionToEntity(m)
	return nil
}

func (r *ChatSessionRepositoryImpl) Get(ctx context.Context, id uint64) (*entity.ChatSession, error) {
	var m model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("chat session", id)
		}
		return nil, apperror.StoreUnavailable(err)
	}
	return r.mapper.ChatSessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) Update(ctx context.Context, id uint64, patch entity.SessionPatch, guards ...specification.SessionSpecification) (*entity.ChatSession, error) {
	if patch.IsEmpty() {
		return r.Get(ctx, id)
	}
	if err := patch.Metadata.Validate(); err != nil {
		return nil, err
	}

	// UPDATE ... WHERE id = ? AND <guards> RETURNING *
	var m model.ChatSession
	query := r.db.WithContext(ctx).Model(&m).Clauses(clause.Returning{}).Where("id = ?", id)
	for _, guard := range guards {
		query = guard.Apply(query)
	}

	result := query.Updates(r.mapper.SessionPatchToColumns(patch))
	if result.Error != nil {
		return nil, apperror.StoreUnavailable(result.Error)
	}

	if result.RowsAffected == 0 {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperror.Conflict("session changed concurrently", map[string]interface{}{
			"session_id": id,
			"status":     current.Status,
		})
	}

	return r.mapper.ChatSessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) ListByContact(ctx context.Context, companyId, contactId uint64, page entity.Page) ([]*entity.ChatSession, int64, error) {
	return r.list(ctx, page,
		specification.ByCompanyID{CompanyID: companyId},
		specification.ByContactID{ContactID: contactId},
	)
}

func (r *ChatSessionRepositoryImpl) ListByCompany(ctx context.Context, companyId uint64, filter entity.SessionFilter, page entity.Page) ([]*entity.ChatSession, int64, error) {
	specs := []specification.Specification{specification.ByCompanyID{CompanyID: companyId}}
	for _, spec := range specification.FromFilter(filter) {
		specs = append(specs, spec)
	}
	return r.list(ctx, page, specs...)
}

func (r *ChatSessionRepositoryImpl) FindIdleCandidates(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx),
		specification.ByStatus{Statuses: []entity.SessionStatus{entity.SessionStatusActive}},
		specification.UpdatedBefore{Cutoff: updatedBefore},
		specification.NoMessagesSince{Cutoff: updatedBefore},
		specification.OrderBy{Field: "updated_at"},
		specification.OrderBy{Field: "id"},
		specification.Pagination{Limit: limit},
	)
	if err := query.Find(&models).Error; err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	return r.toEntities(models), nil
}

func (r *ChatSessionRepositoryImpl) list(ctx context.Context, page entity.Page, specs ...specification.Specification) ([]*entity.ChatSession, int64, error) {
	var total int64
	countQuery := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatSession{}), specs...)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, apperror.StoreUnavailable(err)
	}
	if total == 0 {
		return []*entity.ChatSession{}, 0, nil
	}

	var models []*model.ChatSession
	specs = append(specs,
		specification.OrderBy{Field: "started_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.FromPage(page),
	)
	if err := r.applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, 0, apperror.StoreUnavailable(err)
	}
	return r.toEntities(models), total, nil
}

func (r *ChatSessionRepositoryImpl) toEntities(models []*model.ChatSession) []*entity.ChatSession {
	entities := make([]*entity.ChatSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatSessionToEntity(m)
	}
	return entities
}
