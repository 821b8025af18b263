package repository

import (
	"context"
	"time"

	"cardstock/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockFilter struct {
	LocationID int64
	CardTypeID int64
}

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) Create(ctx context.Context, tx *gorm.DB, stock *model.Stock) error {
	return pick(r.db, tx).WithContext(ctx).Create(stock).Error
}

func (r *StockRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Stock, error) {
	var stock model.Stock
	q := pick(r.db, tx).WithContext(ctx).
		Preload("Location.Bank").
		Preload("CardType").
		Where("id = ?", id)
	if err := first(q, &stock, ErrStockNotFound); err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *StockRepository) GetByPair(ctx context.Context, tx *gorm.DB, locationID, cardTypeID int64) (*model.Stock, error) {
	var stock model.Stock
	q := pick(r.db, tx).WithContext(ctx).Where("location_id = ? AND card_type_id = ?", locationID, cardTypeID)
	if err := first(q, &stock, ErrStockNotFound); err != nil {
		return nil, err
	}
	return &stock, nil
}

// GetOrCreate 入库时库存行可能还不存在，先插入（冲突忽略）再查询
func (r *StockRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, locationID, cardTypeID, alertThreshold int64) (*model.Stock, error) {
	stock, err := r.GetByPair(ctx, tx, locationID, cardTypeID)
	if err == nil {
		return stock, nil
	}
	if err != ErrStockNotFound {
		return nil, err
	}

	newStock := &model.Stock{
		LocationID:     locationID,
		CardTypeID:     cardTypeID,
		Quantity:       0,
		AlertThreshold: alertThreshold,
	}
	err = pick(r.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "location_id"}, {Name: "card_type_id"}},
			DoNothing: true,
		}).
		Create(newStock).Error
	if err != nil {
		return nil, err
	}

	return r.GetByPair(ctx, tx, locationID, cardTypeID)
}

// Increase 增加库存
func (r *StockRepository) Increase(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.Stock{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":    gorm.Expr("quantity + ?", amount),
			"last_update": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockNotFound
	}
	return nil
}

// Decrease 扣减库存，条件更新保证不会扣成负数
func (r *StockRepository) Decrease(ctx context.Context, tx *gorm.DB, id int64, amount int64) error {
	db := pick(r.db, tx)
	result := db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("id = ? AND quantity >= ?", id, amount).
		Updates(map[string]interface{}{
			"quantity":    gorm.Expr("quantity - ?", amount),
			"last_update": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, db, id); err != nil {
			return err
		}
		return ErrStockNotEnough
	}
	return nil
}

// SumAtLocation 地点上所有卡种的库存总量
func (r *StockRepository) SumAtLocation(ctx context.Context, tx *gorm.DB, locationID int64) (int64, error) {
	var total int64
	err := pick(r.db, tx).WithContext(ctx).
		Model(&model.Stock{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("location_id = ?", locationID).
		Scan(&total).Error
	return total, err
}

func (r *StockRepository) List(ctx context.Context, filter StockFilter) ([]*model.Stock, error) {
	var stocks []*model.Stock
	q := r.db.WithContext(ctx).
		Preload("Location.Bank").
		Preload("CardType").
		Order("location_id ASC, card_type_id ASC")
	if filter.LocationID > 0 {
		q = q.Where("location_id = ?", filter.LocationID)
	}
	if filter.CardTypeID > 0 {
		q = q.Where("card_type_id = ?", filter.CardTypeID)
	}
	err := q.Find(&stocks).Error
	return stocks, err
}

func (r *StockRepository) Update(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	updates["last_update"] = time.Now()
	return pick(r.db, tx).WithContext(ctx).Model(&model.Stock{}).Where("id = ?", id).Updates(updates).Error
}

func (r *StockRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	result := pick(r.db, tx).WithContext(ctx).Where("id = ?", id).Delete(&model.Stock{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStockNotFound
	}
	return nil
}
