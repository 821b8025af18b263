package service

import (
	"context"
	"errors"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateBankInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Address  string `json:"address" validate:"max=256"`
	BankCode string `json:"bankCode" validate:"required,max=32"`
}

type UpdateBankInput struct {
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Address  *string `json:"address" validate:"omitempty,max=256"`
	BankCode *string `json:"bankCode" validate:"omitempty,max=32"`
}

type BankService struct {
	db       *gorm.DB
	bankRepo *repository.BankRepository
}

func NewBankService(db *gorm.DB) *BankService {
	return &BankService{
		db:       db,
		bankRepo: repository.NewBankRepository(db),
	}
}

func (s *BankService) List(ctx context.Context, withRelations bool) ([]*model.Bank, error) {
	return s.bankRepo.List(ctx, withRelations)
}

func (s *BankService) Get(ctx context.Context, id int64) (*model.Bank, error) {
	bank, err := s.bankRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrBankNotFound) {
		return nil, notFound("bank", id)
	}
	return bank, err
}

func (s *BankService) Create(ctx context.Context, in *CreateBankInput) (*model.Bank, error) {
	in.Name, in.Address, in.BankCode = trimmed(in.Name), trimmed(in.Address), trimmed(in.BankCode)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	bank := &model.Bank{Name: in.Name, Address: in.Address, BankCode: in.BankCode}
	if err := s.bankRepo.Create(ctx, nil, bank); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, conflict("bank", "bankCode", in.BankCode)
		}
		return nil, err
	}
	return bank, nil
}

func (s *BankService) Update(ctx context.Context, id int64, in *UpdateBankInput) (*model.Bank, error) {
	in.Name, in.Address, in.BankCode = trimmedPtr(in.Name), trimmedPtr(in.Address), trimmedPtr(in.BankCode)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"name": in.Name, "bankCode": in.BankCode})); err != nil {
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
	if in.BankCode != nil {
		updates["bank_code"] = *in.BankCode
	}
	if len(updates) > 0 {
		if err := s.bankRepo.Update(ctx, nil, id, updates); err != nil {
			if repository.IsDuplicateKey(err) {
				return nil, conflict("bank", "bankCode", *in.BankCode)
			}
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete 银行下还有地点或卡种时拒绝删除
func (s *BankService) Delete(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bankRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrBankNotFound) {
				return notFound("bank", id)
			}
			return err
		}
		n, err := s.bankRepo.CountDependents(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("bank", id)
		}
		return s.bankRepo.Delete(ctx, tx, id)
	})
}
