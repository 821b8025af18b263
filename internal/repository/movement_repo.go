package repository

import (
	"context"
	"time"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type MovementFilter struct {
	Type       string
	LocationID int64 // 源地点或目标地点
	CardTypeID int64
	From       *time.Time
	To         *time.Time
}

type MovementRepository struct {
	db *gorm.DB
}

func NewMovementRepository(db *gorm.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

func (r *MovementRepository) Create(ctx context.Context, tx *gorm.DB, movement *model.Movement) error {
	return pick(r.db, tx).WithContext(ctx).Create(movement).Error
}

func (r *MovementRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Movement, error) {
	var movement model.Movement
	q := r.withRelations(pick(r.db, tx).WithContext(ctx)).Where("movement.id = ?", id)
	if err := first(q, &movement, ErrMovementNotFound); err != nil {
		return nil, err
	}
	return &movement, nil
}

func (r *MovementRepository) withRelations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Location").
		Preload("DestLocation").
		Preload("CardType.Bank").
		Preload("User")
}

// List 最新的在前
func (r *MovementRepository) List(ctx context.Context, filter MovementFilter) ([]*model.Movement, error) {
	var movements []*model.Movement
	q := r.withRelations(r.db.WithContext(ctx)).Order("created_at DESC, id DESC")
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.LocationID > 0 {
		q = q.Where("location_id = ? OR dest_location_id = ?", filter.LocationID, filter.LocationID)
	}
	if filter.CardTypeID > 0 {
		q = q.Where("card_type_id = ?", filter.CardTypeID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	err := q.Find(&movements).Error
	return movements, err
}

// CountByPair 涉及该 (地点, 卡种) 的变动数，含调拨目标
func (r *MovementRepository) CountByPair(ctx context.Context, tx *gorm.DB, locationID, cardTypeID int64) (int64, error) {
	var n int64
	err := pick(r.db, tx).WithContext(ctx).
		Model(&model.Movement{}).
		Where("card_type_id = ? AND (location_id = ? OR dest_location_id = ?)", cardTypeID, locationID, locationID).
		Count(&n).Error
	return n, err
}

func (r *MovementRepository) Update(ctx context.Context, tx *gorm.DB, movement *model.Movement, columns ...string) error {
	return pick(r.db, tx).WithContext(ctx).Model(movement).Select(columns).Updates(movement).Error
}

func (r *MovementRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Movement{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMovementNotFound
	}
	return nil
}
