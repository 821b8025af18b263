package repository

import (
	"context"
	"time"

	"cardstock/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) Create(ctx context.Context, tx *gorm.DB, setting *model.Setting) error {
	return pick(r.db, tx).WithContext(ctx).Create(setting).Error
}

func (r *SettingRepository) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*model.Setting, error) {
	var setting model.Setting
	if err := first(pick(r.db, tx).WithContext(ctx).Where("setting_key = ?", key), &setting, ErrSettingNotFound); err != nil {
		return nil, err
	}
	return &setting, nil
}

func (r *SettingRepository) List(ctx context.Context) ([]*model.Setting, error) {
	var settings []*model.Setting
	err := r.db.WithContext(ctx).Order("setting_key ASC").Find(&settings).Error
	return settings, err
}

// GetMap 按 key 批量读取，不存在的 key 不出现在结果中
func (r *SettingRepository) GetMap(ctx context.Context, keys []string) (map[string]string, error) {
	var settings []*model.Setting
	if err := r.db.WithContext(ctx).Where("setting_key IN ?", keys).Find(&settings).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// UpdateValue 先确认 key 存在；值未变化时 MySQL 的影响行数为 0，不能据此判断不存在
func (r *SettingRepository) UpdateValue(ctx context.Context, tx *gorm.DB, key, value string) error {
	db := pick(r.db, tx).WithContext(ctx)
	var n int64
	if err := db.Model(&model.Setting{}).Where("setting_key = ?", key).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrSettingNotFound
	}
	return db.Model(&model.Setting{}).
		Where("setting_key = ?", key).
		Updates(map[string]interface{}{"setting_value": value, "updated_at": time.Now()}).Error
}

// Upsert 不存在则插入，存在则覆盖 value
func (r *SettingRepository) Upsert(ctx context.Context, tx *gorm.DB, key, value string) error {
	setting := &model.Setting{Key: key, Value: value}
	return pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).
		Create(setting).Error
}

func (r *SettingRepository) Delete(ctx context.Context, tx *gorm.DB, key string) error {
	result := pick(r.db, tx).WithContext(ctx).Where("setting_key = ?", key).Delete(&model.Setting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}
