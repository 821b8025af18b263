package service

import (
	"context"
	"strconv"

	"cardstock/internal/export"
	"cardstock/internal/repository"

	"gorm.io/gorm"
)

type ExportService struct {
	bankRepo     *repository.BankRepository
	locationRepo *repository.LocationRepository
	cardTypeRepo *repository.CardTypeRepository
	stockRepo    *repository.StockRepository
	movementRepo *repository.MovementRepository
}

func NewExportService(db *gorm.DB) *ExportService {
	return &ExportService{
		bankRepo:     repository.NewBankRepository(db),
		locationRepo: repository.NewLocationRepository(db),
		cardTypeRepo: repository.NewCardTypeRepository(db),
		stockRepo:    repository.NewStockRepository(db),
		movementRepo: repository.NewMovementRepository(db),
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

// Table 导出实体的全部数据，外键显示为名称
func (s *ExportService) Table(ctx context.Context, entity string) (*export.Table, error) {
	switch entity {
	case EntityBanks:
		banks, err := s.bankRepo.List(ctx, false)
		if err != nil {
			return nil, err
		}
		t := &export.Table{Title: "Banks", Headers: []string{"id", "name", "bankCode", "address"}}
		for _, b := range banks {
			t.Rows = append(t.Rows, []string{itoa(b.ID), b.Name, b.BankCode, b.Address})
		}
		return t, nil

	case EntityLocations:
		locations, err := s.locationRepo.List(ctx, 0)
		if err != nil {
			return nil, err
		}
		t := &export.Table{Title: "Locations", Headers: []string{"id", "name", "bank", "address", "maxCapacity", "securityLevel"}}
		for _, l := range locations {
			var bank string
			if l.Bank != nil {
				bank = l.Bank.BankCode
			}
			t.Rows = append(t.Rows, []string{itoa(l.ID), l.Name, bank, l.Address, itoa(l.MaxCapacity), l.SecurityLevel})
		}
		return t, nil

	case EntityCardTypes:
		cardTypes, err := s.cardTypeRepo.List(ctx, 0)
		if err != nil {
			return nil, err
		}
		t := &export.Table{Title: "Card Types", Headers: []string{"id", "name", "bank", "type", "subType", "subSubType", "alertThreshold"}}
		for _, c := range cardTypes {
			var bank string
			if c.Bank != nil {
				bank = c.Bank.BankCode
			}
			t.Rows = append(t.Rows, []string{itoa(c.ID), c.Name, bank, c.Type, c.SubType, c.SubSubType, itoa(c.AlertThreshold)})
		}
		return t, nil

	case EntityStocks:
		stocks, err := s.stockRepo.List(ctx, repository.StockFilter{})
		if err != nil {
			return nil, err
		}
		t := &export.Table{Title: "Stocks", Headers: []string{"id", "location", "cardType", "quantity", "alertThreshold", "lastUpdate"}}
		for _, st := range stocks {
			var location, cardType string
			if st.Location != nil {
				location = st.Location.Name
			}
			if st.CardType != nil {
				cardType = st.CardType.Name
			}
			t.Rows = append(t.Rows, []string{itoa(st.ID), location, cardType, itoa(st.Quantity), itoa(st.AlertThreshold), st.LastUpdate.Format(timeLayout)})
		}
		return t, nil

	case EntityMovements:
		movements, err := s.movementRepo.List(ctx, repository.MovementFilter{})
		if err != nil {
			return nil, err
		}
		t := &export.Table{Title: "Movements", Headers: []string{"id", "date", "type", "reference", "location", "destination", "cardType", "quantity", "reason"}}
		for _, m := range movements {
			var location, dest, cardType string
			if m.Location != nil {
				location = m.Location.Name
			}
			if m.DestLocation != nil {
				dest = m.DestLocation.Name
			}
			if m.CardType != nil {
				cardType = m.CardType.Name
			}
			t.Rows = append(t.Rows, []string{itoa(m.ID), m.CreatedAt.Format(timeLayout), m.Type, m.ReferenceNumber, location, dest, cardType, itoa(m.Quantity), m.Reason})
		}
		return t, nil
	}
	return nil, NewValidationError("entity", "不支持导出: "+entity)
}
