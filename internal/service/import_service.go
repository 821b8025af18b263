package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"cardstock/internal/importer"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	EntityBanks     = "banks"
	EntityLocations = "locations"
	EntityCardTypes = "card-types"
	EntityStocks    = "stocks"
	EntityMovements = "movements"
)

const (
	RowCreated = "created"
	RowSkipped = "skipped"
	RowFailed  = "failed"
)

// 各列可接受的表头别名（英文和法文），匹配前会先归一化
var (
	colName           = []string{"name", "nom", "libelle"}
	colBankCode       = []string{"bankCode", "code", "code banque"}
	colAddress        = []string{"address", "adresse"}
	colBank           = []string{"bank", "banque", "bankCode", "code banque", "bank name", "nom banque"}
	colMaxCapacity    = []string{"maxCapacity", "capacity", "capacite", "capacite max"}
	colSecurityLevel  = []string{"securityLevel", "security", "niveau securite", "securite"}
	colCardType       = []string{"cardType", "card", "type carte", "carte"}
	colType           = []string{"type", "categorie"}
	colSubType        = []string{"subType", "sous type"}
	colSubSubType     = []string{"subSubType", "sous sous type"}
	colAlertThreshold = []string{"alertThreshold", "threshold", "seuil", "seuil alerte"}
	colLocation       = []string{"location", "lieu", "emplacement", "site"}
	colQuantity       = []string{"quantity", "qty", "quantite"}
)

// RowResult 单行导入结果
type RowResult struct {
	Line    int    `json:"line"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	ID      int64  `json:"id,omitempty"`
}

type ImportResult struct {
	Entity  string      `json:"entity"`
	Total   int         `json:"total"`
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Rows    []RowResult `json:"rows"`
}

type ImportService struct {
	banks        *BankService
	locations    *LocationService
	cardTypes    *CardTypeService
	stocks       *StockService
	bankRepo     *repository.BankRepository
	locationRepo *repository.LocationRepository
	cardTypeRepo *repository.CardTypeRepository
	audit        *AuditService
}

func NewImportService(db *gorm.DB, banks *BankService, locations *LocationService, cardTypes *CardTypeService, stocks *StockService) *ImportService {
	return &ImportService{
		banks:        banks,
		locations:    locations,
		cardTypes:    cardTypes,
		stocks:       stocks,
		bankRepo:     repository.NewBankRepository(db),
		locationRepo: repository.NewLocationRepository(db),
		cardTypeRepo: repository.NewCardTypeRepository(db),
		audit:        NewAuditService(db),
	}
}

// rowError 区分 skipped（缺少必填字段）和 failed
type rowError struct {
	status string
	msg    string
}

func (e *rowError) Error() string { return e.msg }

func skip(format string, args ...interface{}) error {
	return &rowError{status: RowSkipped, msg: fmt.Sprintf(format, args...)}
}

// Import 逐行导入，单行失败不影响其它行
func (s *ImportService) Import(ctx context.Context, actor Actor, entity, filename string, r io.Reader) (*ImportResult, error) {
	handle, ok := s.handlers()[entity]
	if !ok {
		return nil, NewValidationError("entity", "不支持导入: "+entity)
	}

	sheet, err := importer.Read(filename, r)
	if err != nil {
		if errors.Is(err, importer.ErrUnsupportedFile) || errors.Is(err, importer.ErrEmptyFile) {
			return nil, NewValidationError("file", err.Error())
		}
		return nil, &ExternalServiceError{Service: "file", Err: err}
	}

	result := &ImportResult{Entity: entity, Total: len(sheet.Rows), Rows: make([]RowResult, 0, len(sheet.Rows))}
	for _, row := range sheet.Rows {
		rr := RowResult{Line: row.Line, Status: RowCreated}
		id, err := handle(ctx, actor, row)
		switch {
		case err == nil:
			rr.ID = id
			result.Created++
		default:
			rr.Message = err.Error()
			var re *rowError
			if errors.As(err, &re) && re.status == RowSkipped {
				rr.Status = RowSkipped
				result.Skipped++
			} else {
				rr.Status = RowFailed
				result.Failed++
			}
		}
		result.Rows = append(result.Rows, rr)
	}

	if err := s.audit.Record(ctx, nil, actor, model.AuditTypeDataImported, "import", entity, map[string]interface{}{
		"file": filename, "total": result.Total, "created": result.Created, "skipped": result.Skipped, "failed": result.Failed,
	}); err != nil {
		return nil, fmt.Errorf("写入审计日志失败: %w", err)
	}

	logger.WithModule("import").WithFields(logrus.Fields{
		"entity":  entity,
		"created": result.Created,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("导入完成")
	return result, nil
}

type rowHandler func(ctx context.Context, actor Actor, row importer.Row) (int64, error)

func (s *ImportService) handlers() map[string]rowHandler {
	return map[string]rowHandler{
		EntityBanks:     s.importBank,
		EntityLocations: s.importLocation,
		EntityCardTypes: s.importCardType,
		EntityStocks:    s.importStock,
	}
}

func (s *ImportService) importBank(ctx context.Context, _ Actor, row importer.Row) (int64, error) {
	name, code := row.Get(colName...), row.Get(colBankCode...)
	if name == "" || code == "" {
		return 0, skip("缺少必填字段 name / bankCode")
	}
	bank, err := s.banks.Create(ctx, &CreateBankInput{Name: name, BankCode: code, Address: row.Get(colAddress...)})
	if err != nil {
		return 0, err
	}
	return bank.ID, nil
}

func (s *ImportService) importLocation(ctx context.Context, _ Actor, row importer.Row) (int64, error) {
	name, bankRef := row.Get(colName...), row.Get(colBank...)
	if name == "" || bankRef == "" {
		return 0, skip("缺少必填字段 name / bank")
	}
	bank, err := s.resolveBank(ctx, bankRef)
	if err != nil {
		return 0, err
	}
	capacity, err := optionalInt(row.Get(colMaxCapacity...), "maxCapacity")
	if err != nil {
		return 0, err
	}
	location, err := s.locations.Create(ctx, &CreateLocationInput{
		Name:          name,
		Address:       row.Get(colAddress...),
		BankID:        bank.ID,
		MaxCapacity:   capacity,
		SecurityLevel: row.Get(colSecurityLevel...),
	})
	if err != nil {
		return 0, err
	}
	return location.ID, nil
}

func (s *ImportService) importCardType(ctx context.Context, _ Actor, row importer.Row) (int64, error) {
	name, bankRef := row.Get(colName...), row.Get(colBank...)
	if name == "" || bankRef == "" {
		return 0, skip("缺少必填字段 name / bank")
	}
	bank, err := s.resolveBank(ctx, bankRef)
	if err != nil {
		return 0, err
	}
	threshold, err := optionalInt(row.Get(colAlertThreshold...), "alertThreshold")
	if err != nil {
		return 0, err
	}
	cardType, err := s.cardTypes.Create(ctx, &CreateCardTypeInput{
		Name:           name,
		BankID:         bank.ID,
		Type:           row.Get(colType...),
		SubType:        row.Get(colSubType...),
		SubSubType:     row.Get(colSubSubType...),
		AlertThreshold: threshold,
	})
	if err != nil {
		return 0, err
	}
	return cardType.ID, nil
}

func (s *ImportService) importStock(ctx context.Context, actor Actor, row importer.Row) (int64, error) {
	locationName, cardTypeName := row.Get(colLocation...), row.Get(colCardType...)
	qty := row.Get(colQuantity...)
	if locationName == "" || cardTypeName == "" || qty == "" {
		return 0, skip("缺少必填字段 location / cardType / quantity")
	}

	location, err := s.locationRepo.GetByName(ctx, nil, locationName)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return 0, notFound("location", locationName)
	}
	if err != nil {
		return 0, err
	}
	// 卡种名可能重名，优先匹配地点所属银行
	cardType, err := s.cardTypeRepo.GetByName(ctx, nil, cardTypeName, location.BankID)
	if errors.Is(err, repository.ErrCardTypeNotFound) {
		cardType, err = s.cardTypeRepo.GetByName(ctx, nil, cardTypeName, 0)
	}
	if errors.Is(err, repository.ErrCardTypeNotFound) {
		return 0, notFound("cardType", cardTypeName)
	}
	if err != nil {
		return 0, err
	}

	quantity, err := optionalInt(qty, "quantity")
	if err != nil {
		return 0, err
	}
	in := &CreateStockInput{LocationID: location.ID, CardTypeID: cardType.ID, Quantity: quantity}
	if v := row.Get(colAlertThreshold...); v != "" {
		threshold, err := optionalInt(v, "alertThreshold")
		if err != nil {
			return 0, err
		}
		in.AlertThreshold = &threshold
	}
	stock, err := s.stocks.Create(ctx, actor, in)
	if err != nil {
		return 0, err
	}
	return stock.ID, nil
}

// resolveBank 先按银行代码，再按名称
func (s *ImportService) resolveBank(ctx context.Context, ref string) (*model.Bank, error) {
	bank, err := s.bankRepo.GetByCode(ctx, nil, ref)
	if errors.Is(err, repository.ErrBankNotFound) {
		bank, err = s.bankRepo.GetByName(ctx, nil, ref)
	}
	if errors.Is(err, repository.ErrBankNotFound) {
		return nil, notFound("bank", ref)
	}
	return bank, err
}

func optionalInt(v, field string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, NewValidationError(field, "不是整数: "+v)
	}
	return n, nil
}

// 导入模板，表头和导入时识别的首选列名一致
var importTemplates = map[string]string{
	EntityBanks:     "name,bankCode,address\nBanque Exemple,BE001,1 rue de la Paix\n",
	EntityLocations: "name,bank,address,maxCapacity,securityLevel\nCoffre Central,BE001,1 rue de la Paix,10000,high\n",
	EntityCardTypes: "name,bank,type,subType,subSubType,alertThreshold\nVisa Classic,BE001,debit,visa,classic,50\n",
	EntityStocks:    "location,cardType,quantity,alertThreshold\nCoffre Central,Visa Classic,500,50\n",
}

// Template 返回 CSV 导入模板
func (s *ImportService) Template(entity string) (string, error) {
	t, ok := importTemplates[entity]
	if !ok {
		return "", notFound("template", entity)
	}
	return t, nil
}
