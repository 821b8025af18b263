package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Create(ctx context.Context, tx *gorm.DB, report *model.Report) error {
	return pick(r.db, tx).WithContext(ctx).Create(report).Error
}

func (r *ReportRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Report, error) {
	var report model.Report
	if err := first(pick(r.db, tx).WithContext(ctx).Where("id = ?", id), &report, ErrReportNotFound); err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepository) List(ctx context.Context, reportType string) ([]*model.Report, error) {
	var reports []*model.Report
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if reportType != "" {
		q = q.Where("type = ?", reportType)
	}
	err := q.Find(&reports).Error
	return reports, err
}

func (r *ReportRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Updates(updates).Error
}

func (r *ReportRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Report{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReportNotFound
	}
	return nil
}
