package service

import (
	"context"
	"errors"
	"fmt"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/model"
	"cardstock/internal/repository"
	"cardstock/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CreateMovementInput struct {
	Type            string   `json:"type" validate:"required,oneof=in out transfer"`
	Quantity        int64    `json:"quantity" validate:"required,gt=0"`
	LocationID      int64    `json:"locationId" validate:"required,gt=0"`
	DestLocationID  *int64   `json:"destLocationId" validate:"omitempty,gt=0"`
	CardTypeID      int64    `json:"cardTypeId" validate:"required,gt=0"`
	ReferenceNumber string   `json:"referenceNumber" validate:"max=64"`
	Reason          string   `json:"reason" validate:"max=256"`
	Attachments     []string `json:"attachments" validate:"max=20,dive,max=512"`
}

// UpdateMovementInput 变动记录创建后只允许修改原因和附件
type UpdateMovementInput struct {
	Reason      *string   `json:"reason" validate:"omitempty,max=256"`
	Attachments *[]string `json:"attachments" validate:"omitempty,max=20,dive,max=512"`
}

type MovementService struct {
	db           *gorm.DB
	cfg          *config.Config
	guard        *stockGuard
	movementRepo *repository.MovementRepository
	stockRepo    *repository.StockRepository
	locationRepo *repository.LocationRepository
	cardTypeRepo *repository.CardTypeRepository
	userRepo     *repository.UserRepository
	outboxRepo   *repository.OutboxRepository
	audit        *AuditService
}

func NewMovementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *MovementService {
	return &MovementService{
		db:           db,
		cfg:          cfg,
		guard:        newStockGuard(db, redisClient, cfg),
		movementRepo: repository.NewMovementRepository(db),
		stockRepo:    repository.NewStockRepository(db),
		locationRepo: repository.NewLocationRepository(db),
		cardTypeRepo: repository.NewCardTypeRepository(db),
		userRepo:     repository.NewUserRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
		audit:        NewAuditService(db),
	}
}

func (s *MovementService) List(ctx context.Context, filter repository.MovementFilter) ([]*model.Movement, error) {
	return s.movementRepo.List(ctx, filter)
}

func (s *MovementService) Get(ctx context.Context, id int64) (*model.Movement, error) {
	movement, err := s.movementRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrMovementNotFound) {
		return nil, notFound("movement", id)
	}
	return movement, err
}

func checkMovementShape(in *CreateMovementInput) error {
	switch in.Type {
	case model.MovementTypeTransfer:
		if in.DestLocationID == nil {
			return NewValidationError("destLocationId", "调拨必须指定目标地点")
		}
		if *in.DestLocationID == in.LocationID {
			return NewValidationError("destLocationId", "目标地点不能和源地点相同")
		}
	case model.MovementTypeIn, model.MovementTypeOut:
		if in.DestLocationID != nil {
			return NewValidationError("destLocationId", "只有调拨可以指定目标地点")
		}
	}
	return nil
}

// Create 写入变动记录，并在同一事务内更新库存、审计日志和预警
func (s *MovementService) Create(ctx context.Context, actor Actor, in *CreateMovementInput) (*model.Movement, error) {
	in.ReferenceNumber, in.Reason = trimmed(in.ReferenceNumber), trimmed(in.Reason)
	if err := mergeValidation(validateStruct(in), checkMovementShape(in)); err != nil {
		return nil, err
	}

	locations, cardType, err := s.checkReferences(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	movement := &model.Movement{
		Type:            in.Type,
		Quantity:        in.Quantity,
		LocationID:      in.LocationID,
		DestLocationID:  in.DestLocationID,
		CardTypeID:      in.CardTypeID,
		UserID:          actor.UserID,
		ReferenceNumber: in.ReferenceNumber,
		Reason:          in.Reason,
		Attachments:     in.Attachments,
	}
	if movement.ReferenceNumber == "" {
		movement.ReferenceNumber = idgen.GenerateReferenceNo(in.Type)
	}
	if movement.Attachments == nil {
		movement.Attachments = []string{}
	}
	deltas := movement.Deltas()

	locks, err := s.guard.lock(ctx, uuid.NewString(), deltas)
	if err != nil {
		return nil, err
	}
	defer locks.Unlock(ctx)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.movementRepo.Create(ctx, tx, movement); err != nil {
			if repository.IsDuplicateKey(err) {
				return conflict("movement", "referenceNumber", movement.ReferenceNumber)
			}
			return fmt.Errorf("写入变动记录失败: %w", err)
		}

		stockIDs, err := s.applyDeltas(ctx, tx, deltas, cardType.AlertThreshold, "quantity")
		if err != nil {
			return err
		}
		for _, d := range deltas {
			if d.Delta > 0 {
				if err := s.guard.checkCapacity(ctx, tx, locations[d.LocationID], capacityField(movement.Type)); err != nil {
					return err
				}
			}
		}

		if err := s.audit.Record(ctx, tx, actor, model.AuditTypeMovementCreated, "create", "movement", movementDetails(movement)); err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}
		if err := s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.StockEvents, model.EventMovementCreated, movement.ReferenceNumber, movementDetails(movement)); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		for _, id := range stockIDs {
			if err := s.guard.alertIfLow(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithModule("movement").WithFields(logrus.Fields{
		"reference": movement.ReferenceNumber,
		"type":      movement.Type,
		"quantity":  movement.Quantity,
	}).Info("库存变动已记录")

	return s.Get(ctx, movement.ID)
}

func capacityField(movementType string) string {
	if movementType == model.MovementTypeTransfer {
		return "destLocationId"
	}
	return "quantity"
}

// checkReferences 校验引用的地点、卡种和操作用户存在
func (s *MovementService) checkReferences(ctx context.Context, actor Actor, in *CreateMovementInput) (map[int64]*model.Location, *model.CardType, error) {
	locations := map[int64]*model.Location{}
	ids := []int64{in.LocationID}
	if in.DestLocationID != nil {
		ids = append(ids, *in.DestLocationID)
	}
	for _, id := range ids {
		location, err := s.locationRepo.GetByID(ctx, nil, id)
		if errors.Is(err, repository.ErrLocationNotFound) {
			return nil, nil, notFound("location", id)
		}
		if err != nil {
			return nil, nil, err
		}
		locations[id] = location
	}

	cardType, err := s.cardTypeRepo.GetByID(ctx, nil, in.CardTypeID)
	if errors.Is(err, repository.ErrCardTypeNotFound) {
		return nil, nil, notFound("cardType", in.CardTypeID)
	}
	if err != nil {
		return nil, nil, err
	}

	if actor.UserID != nil {
		if _, err := s.userRepo.GetByID(ctx, nil, *actor.UserID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, nil, notFound("user", *actor.UserID)
			}
			return nil, nil, err
		}
	}
	return locations, cardType, nil
}

// applyDeltas 依次更新库存，返回涉及的库存行 ID；扣减不足时返回字段错误
func (s *MovementService) applyDeltas(ctx context.Context, tx *gorm.DB, deltas []model.StockDelta, threshold int64, field string) ([]int64, error) {
	ids := make([]int64, 0, len(deltas))
	for _, d := range deltas {
		switch {
		case d.Delta > 0:
			stock, err := s.stockRepo.GetOrCreate(ctx, tx, d.LocationID, d.CardTypeID, threshold)
			if err != nil {
				return nil, fmt.Errorf("获取库存失败: %w", err)
			}
			if err := s.stockRepo.Increase(ctx, tx, stock.ID, d.Delta); err != nil {
				return nil, fmt.Errorf("增加库存失败: %w", err)
			}
			ids = append(ids, stock.ID)
		case d.Delta < 0:
			stock, err := s.stockRepo.GetByPair(ctx, tx, d.LocationID, d.CardTypeID)
			if errors.Is(err, repository.ErrStockNotFound) {
				return nil, NewValidationError(field, fmt.Sprintf("库存不足：可用 0，需要 %d", -d.Delta))
			}
			if err != nil {
				return nil, fmt.Errorf("获取库存失败: %w", err)
			}
			if err := s.stockRepo.Decrease(ctx, tx, stock.ID, -d.Delta); err != nil {
				if errors.Is(err, repository.ErrStockNotEnough) {
					return nil, NewValidationError(field, fmt.Sprintf("库存不足：可用 %d，需要 %d", stock.Quantity, -d.Delta))
				}
				return nil, fmt.Errorf("扣减库存失败: %w", err)
			}
			ids = append(ids, stock.ID)
		}
	}
	return ids, nil
}

func movementDetails(m *model.Movement) map[string]interface{} {
	details := map[string]interface{}{
		"movementId":      m.ID,
		"type":            m.Type,
		"quantity":        m.Quantity,
		"locationId":      m.LocationID,
		"cardTypeId":      m.CardTypeID,
		"referenceNumber": m.ReferenceNumber,
	}
	if m.DestLocationID != nil {
		details["destLocationId"] = *m.DestLocationID
	}
	return details
}

func (s *MovementService) Update(ctx context.Context, id int64, in *UpdateMovementInput) (*model.Movement, error) {
	in.Reason = trimmedPtr(in.Reason)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	movement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var columns []string
	if in.Reason != nil {
		movement.Reason = *in.Reason
		columns = append(columns, "reason")
	}
	if in.Attachments != nil {
		movement.Attachments = *in.Attachments
		if movement.Attachments == nil {
			movement.Attachments = []string{}
		}
		columns = append(columns, "attachments")
	}
	if len(columns) == 0 {
		return movement, nil
	}

	update := &model.Movement{ID: movement.ID, Reason: movement.Reason, Attachments: movement.Attachments}
	if err := s.movementRepo.Update(ctx, nil, update, columns...); err != nil {
		return nil, fmt.Errorf("更新变动记录失败: %w", err)
	}
	return s.Get(ctx, id)
}

// Delete 删除变动记录并回滚它对库存的影响
func (s *MovementService) Delete(ctx context.Context, actor Actor, id int64) error {
	movement, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	reverse := movement.Deltas()
	for i := range reverse {
		reverse[i].Delta = -reverse[i].Delta
	}

	locks, err := s.guard.lock(ctx, uuid.NewString(), reverse)
	if err != nil {
		return err
	}
	defer locks.Unlock(ctx)

	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.movementRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrMovementNotFound) {
				return notFound("movement", id)
			}
			return err
		}

		threshold := int64(0)
		if movement.CardType != nil {
			threshold = movement.CardType.AlertThreshold
		}
		stockIDs, err := s.applyDeltas(ctx, tx, reverse, threshold, "quantity")
		if err != nil {
			return err
		}
		if err := s.movementRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("删除变动记录失败: %w", err)
		}

		if err := s.audit.Record(ctx, tx, actor, model.AuditTypeMovementDeleted, "delete", "movement", movementDetails(movement)); err != nil {
			return fmt.Errorf("写入审计日志失败: %w", err)
		}
		if err := s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.StockEvents, model.EventMovementDeleted, movement.ReferenceNumber, movementDetails(movement)); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}

		for _, stockID := range stockIDs {
			if err := s.guard.alertIfLow(ctx, tx, stockID); err != nil {
				return err
			}
		}
		return nil
	})
}
