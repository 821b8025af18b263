package service

import (
	"context"
	"errors"
	"fmt"

	"cardstock/internal/config"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateStockInput struct {
	LocationID     int64  `json:"locationId" validate:"required,gt=0"`
	CardTypeID     int64  `json:"cardTypeId" validate:"required,gt=0"`
	Quantity       int64  `json:"quantity" validate:"gte=0"`
	AlertThreshold *int64 `json:"alertThreshold" validate:"omitempty,gte=0"`
}

// UpdateStockInput 修改数量视为人工盘点调整，记 STOCK_ADJUSTED 审计
type UpdateStockInput struct {
	Quantity       *int64  `json:"quantity" validate:"omitempty,gte=0"`
	AlertThreshold *int64  `json:"alertThreshold" validate:"omitempty,gte=0"`
	Reason         *string `json:"reason" validate:"omitempty,max=256"`
}

type StockService struct {
	db           *gorm.DB
	guard        *stockGuard
	stockRepo    *repository.StockRepository
	locationRepo *repository.LocationRepository
	cardTypeRepo *repository.CardTypeRepository
	movementRepo *repository.MovementRepository
	audit        *AuditService
}

func NewStockService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *StockService {
	return &StockService{
		db:           db,
		guard:        newStockGuard(db, redisClient, cfg),
		stockRepo:    repository.NewStockRepository(db),
		locationRepo: repository.NewLocationRepository(db),
		cardTypeRepo: repository.NewCardTypeRepository(db),
		movementRepo: repository.NewMovementRepository(db),
		audit:        NewAuditService(db),
	}
}

func (s *StockService) List(ctx context.Context, filter repository.StockFilter) ([]*model.Stock, error) {
	return s.stockRepo.List(ctx, filter)
}

func (s *StockService) Get(ctx context.Context, id int64) (*model.Stock, error) {
	stock, err := s.stockRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrStockNotFound) {
		return nil, notFound("stock", id)
	}
	return stock, err
}

func (s *StockService) Create(ctx context.Context, actor Actor, in *CreateStockInput) (*model.Stock, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	location, err := s.locationRepo.GetByID(ctx, nil, in.LocationID)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return nil, notFound("location", in.LocationID)
	}
	if err != nil {
		return nil, err
	}
	cardType, err := s.cardTypeRepo.GetByID(ctx, nil, in.CardTypeID)
	if errors.Is(err, repository.ErrCardTypeNotFound) {
		return nil, notFound("cardType", in.CardTypeID)
	}
	if err != nil {
		return nil, err
	}

	threshold := cardType.AlertThreshold
	if in.AlertThreshold != nil {
		threshold = *in.AlertThreshold
	}
	stock := &model.Stock{
		LocationID:     in.LocationID,
		CardTypeID:     in.CardTypeID,
		Quantity:       in.Quantity,
		AlertThreshold: threshold,
	}
	deltas := []model.StockDelta{{LocationID: in.LocationID, CardTypeID: in.CardTypeID, Delta: in.Quantity}}

	locks, err := s.guard.lock(ctx, uuid.NewString(), deltas)
	if err != nil {
		return nil, err
	}
	defer locks.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.stockRepo.Create(ctx, tx, stock); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("stock", "locationId,cardTypeId", fmt.Sprintf("%d,%d", in.LocationID, in.CardTypeID))
			}
			return err
		}
		if err := s.guard.checkCapacity(ctx, tx, location, "quantity"); err != nil {
			return err
		}
		if in.Quantity > 0 {
			if err := s.audit.Record(ctx, tx, actor, model.AuditTypeStockAdjusted, "create", "stock", map[string]interface{}{
				"stockId": stock.ID, "from": 0, "to": in.Quantity,
			}); err != nil {
				return fmt.Errorf("写入审计日志失败: %w", err)
			}
		}
		return s.guard.alertIfLow(ctx, tx, stock.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, stock.ID)
}

func (s *StockService) Update(ctx context.Context, actor Actor, id int64, in *UpdateStockInput) (*model.Stock, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.AlertThreshold != nil {
		updates["alert_threshold"] = *in.AlertThreshold
	}
	adjusted := in.Quantity != nil && *in.Quantity != current.Quantity
	if adjusted {
		updates["quantity"] = *in.Quantity
	}
	if len(updates) == 0 {
		return current, nil
	}

	locks, err := s.guard.lock(ctx, uuid.NewString(), []model.StockDelta{{LocationID: current.LocationID, CardTypeID: current.CardTypeID}})
	if err != nil {
		return nil, err
	}
	defer locks.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 加锁后重新读取，调整前的数量以此为准
		before, err := s.stockRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.stockRepo.Update(ctx, tx, id, updates); err != nil {
			return err
		}
		if adjusted {
			if err := s.guard.checkCapacity(ctx, tx, before.Location, "quantity"); err != nil {
				return err
			}
			details := map[string]interface{}{"stockId": id, "from": before.Quantity, "to": *in.Quantity}
			if in.Reason != nil {
				details["reason"] = *in.Reason
			}
			if err := s.audit.Record(ctx, tx, actor, model.AuditTypeStockAdjusted, "update", "stock", details); err != nil {
				return fmt.Errorf("写入审计日志失败: %w", err)
			}
		}
		return s.guard.alertIfLow(ctx, tx, id)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete 只能删除数量为 0 且没有变动记录的库存行，否则库存和变动历史对不上
func (s *StockService) Delete(ctx context.Context, actor Actor, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	locks, err := s.guard.lock(ctx, uuid.NewString(), []model.StockDelta{{LocationID: current.LocationID, CardTypeID: current.CardTypeID}})
	if err != nil {
		return err
	}
	defer locks.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		stock, err := s.stockRepo.GetByID(ctx, tx, id)
		if errors.Is(err, repository.ErrStockNotFound) {
			return notFound("stock", id)
		}
		if err != nil {
			return err
		}
		if stock.Quantity > 0 {
			return inUse("stock", id)
		}
		n, err := s.movementRepo.CountByPair(ctx, tx, stock.LocationID, stock.CardTypeID)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("stock", id)
		}

		if err := s.stockRepo.Delete(ctx, tx, id); err != nil {
			return err
		}
		details := map[string]interface{}{"stockId": id, "locationId": stock.LocationID, "cardTypeId": stock.CardTypeID}
		if err := s.audit.Record(ctx, tx, actor, model.AuditTypeStockDeleted, "delete", "stock", details); err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}
		return nil
	})
}
