package service

import (
	"context"
	"encoding/json"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type AuditService struct {
	auditRepo *repository.AuditRepository
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{auditRepo: repository.NewAuditRepository(db)}
}

// Record 追加一条审计日志；details 为结构体时序列化成 JSON
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, actor Actor, auditType, action, resource string, details interface{}) error {
	var text string
	switch d := details.(type) {
	case nil:
	case string:
		text = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		text = string(b)
	}

	return s.auditRepo.Create(ctx, tx, &model.AuditLog{
		UserID:   actor.UserID,
		Action:   action,
		Resource: resource,
		Details:  text,
		IP:       actor.IP,
		Type:     auditType,
	})
}

func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]*model.AuditLog, error) {
	return s.auditRepo.List(ctx, filter)
}
