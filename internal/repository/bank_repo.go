package repository

import (
	"context"

	"cardstock/internal/model"

	"gorm.io/gorm"
)

type BankRepository struct {
	db *gorm.DB
}

func NewBankRepository(db *gorm.DB) *BankRepository {
	return &BankRepository{db: db}
}

func (r *BankRepository) Create(ctx context.Context, tx *gorm.DB, bank *model.Bank) error {
	return pick(r.db, tx).WithContext(ctx).Create(bank).Error
}

func (r *BankRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Bank, error) {
	var bank model.Bank
	if err := first(pick(r.db, tx).WithContext(ctx).Where("id = ?", id), &bank, ErrBankNotFound); err != nil {
		return nil, err
	}
	return &bank, nil
}

// GetByName 导入时按名称（不区分大小写）匹配银行
func (r *BankRepository) GetByName(ctx context.Context, tx *gorm.DB, name string) (*model.Bank, error) {
	var bank model.Bank
	q := pick(r.db, tx).WithContext(ctx).Where("LOWER(name) = LOWER(?)", name)
	if err := first(q, &bank, ErrBankNotFound); err != nil {
		return nil, err
	}
	return &bank, nil
}

func (r *BankRepository) List(ctx context.Context, withRelations bool) ([]*model.Bank, error) {
	var banks []*model.Bank
	q := r.db.WithContext(ctx).Order("name ASC")
	if withRelations {
		q = q.Preload("Locations").Preload("CardTypes")
	}
	err := q.Find(&banks).Error
	return banks, err
}

func (r *BankRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	return pick(r.db, tx).WithContext(ctx).Model(&model.Bank{}).Where("id = ?", id).Updates(updates).Error
}

func (r *BankRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Bank{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBankNotFound
	}
	return nil
}

// CountDependents 统计挂在银行下的地点和卡种数量
func (r *BankRepository) CountDependents(ctx context.Context, tx *gorm.DB, id int64) (int64, error) {
	db := pick(r.db, tx).WithContext(ctx)
	var locations, cardTypes int64
	if err := db.Model(&model.Location{}).Where("bank_id = ?", id).Count(&locations).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.CardType{}).Where("bank_id = ?", id).Count(&cardTypes).Error; err != nil {
		return 0, err
	}
	return locations + cardTypes, nil
}

func (r *BankRepository) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Bank, error) {
	var bank model.Bank
	if err := first(pick(r.db, tx).WithContext(ctx).Where("bank_code = ?", code), &bank, ErrBankNotFound); err != nil {
		return nil, err
	}
	return &bank, nil
}
