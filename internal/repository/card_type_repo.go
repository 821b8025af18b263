package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type CardTypeRepository struct {
	db *gorm.DB
}

func NewCardTypeRepository(db *gorm.DB) *CardTypeRepository {
	return &CardTypeRepository{db: db}
}

func (r *CardTypeRepository) Create(ctx context.Context, tx *gorm.DB, cardType *model.CardType) error {
	return pick(r.db, tx).WithContext(ctx).Create(cardType).Error
}

func (r *CardTypeRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.CardType, error) {
	var cardType model.CardType
	q := pick(r.db, tx).WithContext(ctx).Preload("Bank").Where("id = ?", id)
	if err := first(q, &cardType, ErrCardTypeNotFound); err != nil {
		return nil, err
	}
	return &cardType, nil
}

// GetByName 同名卡种可能属于不同银行，bankID 为 0 时不限制
func (r *CardTypeRepository) GetByName(ctx context.Context, tx *gorm.DB, name string, bankID int64) (*model.CardType, error) {
	var cardType model.CardType
	q := pick(r.db, tx).WithContext(ctx).Where("LOWER(name) = LOWER(?)", name)
	if bankID > 0 {
		q = q.Where("bank_id = ?", bankID)
	}
	if err := first(q.Order("id ASC"), &cardType, ErrCardTypeNotFound); err != nil {
		return nil, err
	}
	return &cardType, nil
}

func (r *CardTypeRepository) List(ctx context.Context, bankID int64) ([]*model.CardType, error) {
	var cardTypes []*model.CardType
	q := r.db.WithContext(ctx).Preload("Bank").Order("name ASC")
	if bankID > 0 {
		q = q.Where("bank_id = ?", bankID)
	}
	err := q.Find(&cardTypes).Error
	return cardTypes, err
}

func (r *CardTypeRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.CardType{}).Where("id = ?", id).Updates(updates).Error
}

func (r *CardTypeRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.CardType{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrCardTypeNotFound
	}
	return nil
}

func (r *CardTypeRepository) CountDependents(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	db := pick(r.db, tx).WithContext(ctx)
	var stocks, movements int64
	if err := db.Model(&model.Stock{}).Where("card_type_id = ?", id).Count(&stocks).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.Movement{}).Where("card_type_id = ?", id).Count(&movements).Error; err != nil {
		return 0, err
	}
	return stocks + movements, nil
}
