package service

import (
	"context"
	"errors"

	"cardstock/internal/model"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type CreateCardTypeInput struct {
	Name           string `json:"name" validate:"required,max=128"`
	BankID         int64  `json:"bankId" validate:"required,gt=0"`
	Type           string `json:"type" validate:"max=64"`
	SubType        string `json:"subType" validate:"max=64"`
	SubSubType     string `json:"subSubType" validate:"max=64"`
	AlertThreshold int64  `json:"alertThreshold" validate:"gte=0"`
}

type UpdateCardTypeInput struct {
	Name           *string `json:"name" validate:"omitempty,max=128"`
	BankID         *int64  `json:"bankId" validate:"omitempty,gt=0"`
	Type           *string `json:"type" validate:"omitempty,max=64"`
	SubType        *string `json:"subType" validate:"omitempty,max=64"`
	SubSubType     *string `json:"subSubType" validate:"omitempty,max=64"`
	AlertThreshold *int64  `json:"alertThreshold" validate:"omitempty,gte=0"`
}

type CardTypeService struct {
	db           *gorm.DB
	cardTypeRepo *repository.CardTypeRepository
	bankRepo     *repository.BankRepository
}

func NewCardTypeService(db *gorm.DB) *CardTypeService {
	return &CardTypeService{
		db:           db,
		cardTypeRepo: repository.NewCardTypeRepository(db),
		bankRepo:     repository.NewBankRepository(db),
	}
}

func (s *CardTypeService) List(ctx context.Context, bankID int64) ([]*model.CardType, error) {
	return s.cardTypeRepo.List(ctx, bankID)
}

func (s *CardTypeService) Get(ctx context.Context, id int64) (*model.CardType, error) {
	cardType, err := s.cardTypeRepo.GetByID(ctx, nil, id)
	if errors.Is(err, repository.ErrCardTypeNotFound) {
		return nil, notFound("cardType", id)
	}
	return cardType, err
}

func (s *CardTypeService) checkBank(ctx context.Context, bankID int64) error {
	_, err := s.bankRepo.GetByID(ctx, nil, bankID)
	if errors.Is(err, repository.ErrBankNotFound) {
		return notFound("bank", bankID)
	}
	return err
}

// 子类型链：没有 type 就不能有 subType，没有 subType 就不能有 subSubType
func checkSubtypeChain(typ, sub, subSub string) error {
	out := &ValidationError{}
	if typ == "" && sub != "" {
		out.Fields = append(out.Fields, FieldError{Field: "subType", Message: "需要先设置 type"})
	}
	if sub == "" && subSub != "" {
		out.Fields = append(out.Fields, FieldError{Field: "subSubType", Message: "需要先设置 subType"})
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return out
}

func (s *CardTypeService) Create(ctx context.Context, in *CreateCardTypeInput) (*model.CardType, error) {
	in.Name, in.Type, in.SubType, in.SubSubType = trimmed(in.Name), trimmed(in.Type), trimmed(in.SubType), trimmed(in.SubSubType)
	if err := mergeValidation(validateStruct(in), checkSubtypeChain(in.Type, in.SubType, in.SubSubType)); err != nil {
		return nil, err
	}
	if err := s.checkBank(ctx, in.BankID); err != nil {
		return nil, err
	}

	cardType := &model.CardType{
		Name:           in.Name,
		BankID:         in.BankID,
		Type:           in.Type,
		SubType:        in.SubType,
		SubSubType:     in.SubSubType,
		AlertThreshold: in.AlertThreshold,
	}
	if err := s.cardTypeRepo.Create(ctx, nil, cardType); err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, conflict("cardType", "name", in.Name)
		}
		return nil, err
	}
	return s.Get(ctx, cardType.ID)
}

func (s *CardTypeService) Update(ctx context.Context, id int64, in *UpdateCardTypeInput) (*model.CardType, error) {
	in.Name, in.Type, in.SubType, in.SubSubType = trimmedPtr(in.Name), trimmedPtr(in.Type), trimmedPtr(in.SubType), trimmedPtr(in.SubSubType)
	if err := mergeValidation(validateStruct(in), nonBlank(map[string]*string{"name": in.Name})); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	typ, sub, subSub := current.Type, current.SubType, current.SubSubType
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.BankID != nil {
		if err := s.checkBank(ctx, *in.BankID); err != nil {
			return nil, err
		}
		updates["bank_id"] = *in.BankID
	}
	if in.Type != nil {
		typ = *in.Type
		updates["type"] = typ
	}
	if in.SubType != nil {
		sub = *in.SubType
		updates["sub_type"] = sub
	}
	if in.SubSubType != nil {
		subSub = *in.SubSubType
		updates["sub_sub_type"] = subSub
	}
	if in.AlertThreshold != nil {
		updates["alert_threshold"] = *in.AlertThreshold
	}
	if err := checkSubtypeChain(typ, sub, subSub); err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.cardTypeRepo.Update(ctx, nil, id, updates); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *CardTypeService) Delete(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.cardTypeRepo.GetByID(ctx, tx, id); err != nil {
			if errors.Is(err, repository.ErrCardTypeNotFound) {
				return notFound("cardType", id)
			}
			return err
		}
		n, err := s.cardTypeRepo.CountDependents(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return inUse("cardType", id)
		}
		return s.cardTypeRepo.Delete(ctx, tx, id)
	})
}
