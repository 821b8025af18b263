package service

import (
	"context"
	"sync"
	"testing"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/model"
	"cardstock/internal/repository"
	"cardstock/internal/testutil"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	cfgs []config.SMTPConfig
	sent []*mail.Message
}

func (f *fakeMailer) Send(_ context.Context, cfg config.SMTPConfig, msg *mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.cfgs = append(f.cfgs, cfg)
	f.sent = append(f.sent, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{StockEvents: "stock", AuditEvents: "audit"}},
		SMTP:  config.SMTPConfig{Host: "smtp.file.test", Port: 25, From: "file@bank.test"},
		Auth: config.AuthConfig{
			SessionTTLMinutes:  60,
			SessionIdleMinutes: 120,
			BcryptCost:         4,
		},
		Business: config.BusinessConfig{OutboxMaxRetry: 3, StockLockSeconds: 5},
	}
}

type env struct {
	ctx    context.Context
	db     *gorm.DB
	cfg    *config.Config
	mailer *fakeMailer

	banks         *BankService
	locations     *LocationService
	cardTypes     *CardTypeService
	stocks        *StockService
	movements     *MovementService
	auth          *AuthService
	users         *UserService
	roles         *RoleService
	settings      *SettingService
	notifications *NotificationService
	reports       *ReportService
	imports       *ImportService
	exports       *ExportService
}

func newEnvWith(t *testing.T, redisClient *redis.Client) *env {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := testConfig()
	mailer := &fakeMailer{}

	e := &env{ctx: context.Background(), db: db, cfg: cfg, mailer: mailer}
	e.banks = NewBankService(db)
	e.locations = NewLocationService(db)
	e.cardTypes = NewCardTypeService(db)
	e.stocks = NewStockService(db, redisClient, cfg)
	e.movements = NewMovementService(db, redisClient, cfg)
	e.auth = NewAuthService(db, redisClient, cfg)
	e.users = NewUserService(db, redisClient, cfg)
	e.roles = NewRoleService(db)
	e.settings = NewSettingService(db, cfg, mailer)
	e.notifications = NewNotificationService(db)
	e.reports = NewReportService(db, mailer, e.settings, e.notifications)
	e.imports = NewImportService(db, e.banks, e.locations, e.cardTypes, e.stocks)
	e.exports = NewExportService(db)
	return e
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

// seed 一个银行、两个地点和一个卡种
func (e *env) seed(t *testing.T, capacity, threshold int64) (*model.Location, *model.Location, *model.CardType) {
	t.Helper()
	bank, err := e.banks.Create(e.ctx, &CreateBankInput{Name: "Banque Atlas", BankCode: "BA01"})
	require.NoError(t, err)
	vault, err := e.locations.Create(e.ctx, &CreateLocationInput{Name: "Vault", BankID: bank.ID, MaxCapacity: capacity})
	require.NoError(t, err)
	branch, err := e.locations.Create(e.ctx, &CreateLocationInput{Name: "Branch", BankID: bank.ID})
	require.NoError(t, err)
	cardType, err := e.cardTypes.Create(e.ctx, &CreateCardTypeInput{Name: "Visa Classic", BankID: bank.ID, AlertThreshold: threshold})
	require.NoError(t, err)
	return vault, branch, cardType
}

func (e *env) quantity(t *testing.T, locationID, cardTypeID int64) int64 {
	t.Helper()
	stock, err := repository.NewStockRepository(e.db).GetByPair(e.ctx, nil, locationID, cardTypeID)
	if err == repository.ErrStockNotFound {
		return 0
	}
	require.NoError(t, err)
	return stock.Quantity
}

func (e *env) count(t *testing.T, m interface{}, where ...interface{}) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func ptr[T any](v T) *T {
	return &v
}
