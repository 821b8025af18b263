package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, tx *gorm.DB, n *model.Notification) error {
	return pick(r.db, tx).WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) List(ctx context.Context, unreadOnly bool) ([]*model.Notification, error) {
	var list []*model.Notification
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int64) error {
	var n model.Notification
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &n, ErrNotificationNotFound); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error
}

type NotificationSettingRepository struct {
	db *gorm.DB
}

func NewNotificationSettingRepository(db *gorm.DB) *NotificationSettingRepository {
	return &NotificationSettingRepository{db: db}
}

func (r *NotificationSettingRepository) Create(ctx context.Context, tx *gorm.DB, s *model.NotificationSetting) error {
	return pick(r.db, tx).WithContext(ctx).Create(s).Error
}

func (r *NotificationSettingRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.NotificationSetting, error) {
	var s model.NotificationSetting
	if err := first(pick(r.db, tx).WithContext(ctx).Where("id = ?", id), &s, ErrNotificationSettingNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *NotificationSettingRepository) List(ctx context.Context) ([]*model.NotificationSetting, error) {
	var list []*model.NotificationSetting
	err := r.db.WithContext(ctx).Order("email ASC").Find(&list).Error
	return list, err
}

func (r *NotificationSettingRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.NotificationSetting{}).Where("id = ?", id).Updates(updates).Error
}

func (r *NotificationSettingRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.NotificationSetting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationSettingNotFound
	}
	return nil
}
