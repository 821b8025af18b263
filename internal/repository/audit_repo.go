package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type AuditFilter struct {
	UserID int64
	Type   string
	Limit  int
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create 审计日志只追加
func (r *AuditRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.AuditLog) error {
	return pick(r.db, tx).WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]*model.AuditLog, error) {
	var logs []*model.AuditLog
	q := r.db.WithContext(ctx).Preload("User").Order("timestamp DESC, id DESC")
	if filter.UserID > 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	err := q.Find(&logs).Error
	return logs, err
}

func (r *AuditRepository) CountByType(ctx context.Context, auditType string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.AuditLog{}).Where("type = ?", auditType).Count(&n).Error
	return n, err
}
