package service

import (
	"context"
	"errors"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateLocationInput struct {
	Name          string `json:"name" validate:"required,max=128"`
	Address       string `json:"address" validate:"max=256"`
	BankID        int64  `json:"bankId" validate:"required,gt=0"`
	MaxCapacity   int64  `json:"maxCapacity" validate:"gte=0"`
	SecurityLevel string `json:"securityLevel" validate:"max=32"`
}

type UpdateLocationInput struct {
	Name          *string `json:"name" validate:"omitempty,max=128"`
	Address       *string `json:"address" validate:"omitempty,max=256"`
	BankID        *int64  `json:"bankId" validate:"omitempty,gt=0"`
	MaxCapacity   *int64  `json:"maxCapacity" validate:"omitempty,gte=0"`
	SecurityLevel *string `json:"securityLevel" validate:"omitempty,max=32"`
}

type LocationService struct {
	db           *gorm.DB
	locationRepo *repository.LocationRepository
	bankRepo     *repository.BankRepository
	stockRepo    *repository.StockRepository
}

func NewLocationService(db *gorm.DB) *LocationService {
	return &LocationService{
		db:           db,
		locationRepo: repository.NewLocationRepository(db),
		bankRepo:     repository.NewBankRepository(db),
		stockRepo:    repository.NewStockRepository(db),
	}
}

func (s *LocationService) List(ctx context.Context, bankID int64) ([]*model.Location, error) {
	return s.locationRepo.List(ctx, bankID)
}

func (s *LocationService) Get(ctx context.Context, id int64) (*model.Location, error) {
	location, err := s.locationRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return nil, notFound("location", id)
	}
	return location, err
}

func (s *LocationService) checkBank(ctx context.Context, tx *gorm.DB, bankID int64) error {
	_, err := s.bankRepo.GetByID(ctx, tx, bankID)
	if errors.Is(err, repository.ErrBankNotFound) {
		return notFound("bank", bankID)
	}
	return err
}

func (s *LocationService) Create(ctx context.Context, in *CreateLocationInput) (*model.Location, error) {
	in.Name, in.Address, in.SecurityLevel = trimmed(in.Name), trimmed(in.Address), trimmed(in.SecurityLevel)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkBank(ctx, nil, in.BankID); err != nil {
		return nil, err
	}

	location := &model.Location{
		Name:          in.Name,
		Address:       in.Address,
		BankID:        in.BankID,
		MaxCapacity:   in.MaxCapacity,
		SecurityLevel: in.SecurityLevel,
	}
	if err := s.locationRepo.Create(ctx, nil, location); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, conflict("location", "name", in.Name)
		}
		return nil, err
	}
	return s.Get(ctx, location.ID)
}

func (s *LocationService) Update(ctx context.Context, id int64, in *UpdateLocationInput) (*model.Location, error) {
	in.Name, in.Address, in.SecurityLevel = trimmedPtr(in.Name), trimmedPtr(in.Address), trimmedPtr(in.SecurityLevel)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"name": in.Name})); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if in.BankID != nil {
		if err := s.checkBank(ctx, nil, *in.BankID); err != nil {
			return nil, err
		}
		updates["bank_id"] = *in.BankID
	}
	if in.MaxCapacity != nil {
		// 容量下调不能低于地点当前库存合计
		if err := checkLocationCapacity(ctx, nil, s.stockRepo, id, *in.MaxCapacity, "maxCapacity"); err != nil {
			return nil, err
		}
		updates["max_capacity"] = *in.MaxCapacity
	}
	if in.SecurityLevel != nil {
		updates["security_level"] = *in.SecurityLevel
	}
	if len(updates) > 0 {
		if err := s.locationRepo.Update(ctx, nil, id, updates); err != nil {
			if repository.IsDuplicateKey(err) {
				return nil, conflict("location", "name", *in.Name)
			}
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete 地点上还有库存或变动记录时拒绝删除
func (s *LocationService) Delete(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.locationRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrLocationNotFound) {
				return notFound("location", id)
			}
			return err
		}
		n, err := s.locationRepo.CountDependents(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("location", id)
		}
		return s.locationRepo.Delete(ctx, tx, id)
	})
}
