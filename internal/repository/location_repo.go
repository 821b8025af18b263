package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) Create(ctx context.Context, tx *gorm.DB, location *model.Location) error {
	return pick(r.db, tx).WithContext(ctx).Create(location).Error
}

func (r *LocationRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Location, error) {
	var location model.Location
	q := pick(r.db, tx).WithContext(ctx).Preload("Bank").Where("id = ?", id)
	if err := first(q, &location, ErrLocationNotFound); err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *LocationRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.Location, error) {
	var location model.Location
	q := pick(r.db, tx).WithContext(ctx).Where("LOWER(name) = LOWER(?)", name)
	if err := first(q, &location, ErrLocationNotFound); err != nil {
		return nil, err
	}
	return &location, nil
}

func (r *LocationRepository) List(ctx context.Context, bankID int64) ([]*model.Location, error) {
	var locations []*model.Location
	q := r.db.WithContext(ctx).Preload("Bank").Order("name ASC")
	if bankID > 0 {
		q = q.Where("bank_id = ?", bankID)
	}
	err := q.Find(&locations).Error
	return locations, err
}

func (r *LocationRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.Location{}).Where("id = ?", id).Updates(updates).Error
}

func (r *LocationRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Location{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLocationNotFound
	}
	return nil
}

// CountDependents 统计地点上的库存行和变动记录
func (r *LocationRepository) CountDependents(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	db := pick(r.db, tx).WithContext(ctx)
	var stocks, movements int64
	if err := db.Model(&model.Stock{}).Where("location_id = ?", id).Count(&stocks).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.Movement{}).
		Where("location_id = ? OR dest_location_id = ?", id, id).
		Count(&movements).Error; err != nil {
		return 0, err
	}
	return stocks + movements, nil
}
