package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/lock"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// stockGuard 库存写入的公共部分：加锁、容量校验、低库存告警
type stockGuard struct {
	redisClient      *redis.Client
	cfg              *config.Config
	stockRepo        *repository.StockRepository
	notificationRepo *repository.NotificationRepository
	outboxRepo       *repository.OutboxRepository
}

func newStockGuard(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *stockGuard {
	return &stockGuard{
		redisClient:      redisClient,
		cfg:              cfg,
		stockRepo:        repository.NewStockRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		outboxRepo:       repository.NewOutboxRepository(db),
	}
}

// lock 没有配置 Redis 时（单机、测试）不加锁，只依赖数据库条件更新
func (g *stockGuard) lock(ctx context.Context, owner string, deltas []model.StockDelta) (*lock.MultiLock, error) {
	if g.redisClient == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(deltas))
	for _, d := range deltas {
		keys = append(keys, lock.StockKey(d.LocationID, d.CardTypeID))
	}
	expiration := time.Duration(g.cfg.Business.StockLockSeconds) * time.Second
	m, err := lock.LockStocks(ctx, g.redisClient, keys, owner, expiration)
	if err != nil {
		return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
	}
	return m, nil
}

// checkCapacity 地点设置了容量上限时，总库存不能超过上限
func (g *stockGuard) checkCapacity(ctx context.Context, tx *gorm.DB, location *model.Location, field string) error {
	if location == nil {
		return nil
	}
	return checkLocationCapacity(ctx, tx, g.stockRepo, location.ID, location.MaxCapacity, field)
}

// checkLocationCapacity capacity 为 0 表示不限
func checkLocationCapacity(ctx context.Context, tx *gorm.DB, stockRepo *repository.StockRepository, locationID, capacity int64, field string) error {
	if capacity <= 0 {
		return nil
	}
	total, err := stockRepo.SumAtLocation(ctx, tx, locationID)
	if err != nil {
		return fmt.Errorf("统计地点库存失败: %w", err)
	}
	if total > capacity {
		return NewValidationError(field, fmt.Sprintf("超出地点容量上限 %d（当前合计 %d）", capacity, total))
	}
	return nil
}

// alertIfLow 库存降到阈值以下时写通知和 outbox 事件，和库存更新在同一事务
func (g *stockGuard) alertIfLow(ctx context.Context, tx *gorm.DB, stockID int64) error {
	stock, err := g.stockRepo.GetByID(ctx, tx, stockID)
	if err != nil {
		return fmt.Errorf("查询库存失败: %w", err)
	}
	if !stock.IsBelowThreshold() {
		return nil
	}

	locationName, cardTypeName := strconv.FormatInt(stock.LocationID, 10), strconv.FormatInt(stock.CardTypeID, 10)
	if stock.Location != nil {
		locationName = stock.Location.Name
	}
	if stock.CardType != nil {
		cardTypeName = stock.CardType.Name
	}

	notification := &model.Notification{
		Type:    model.NotificationTypeStockAlert,
		Title:   "库存预警",
		Message: fmt.Sprintf("%s / %s 当前库存 %d，预警阈值 %d", locationName, cardTypeName, stock.Quantity, stock.AlertThreshold),
	}
	if err := g.notificationRepo.Create(ctx, tx, notification); err != nil {
		return fmt.Errorf("写入库存预警通知失败: %w", err)
	}

	payload := map[string]interface{}{
		"stock_id":        stock.ID,
		"location_id":     stock.LocationID,
		"card_type_id":    stock.CardTypeID,
		"quantity":        stock.Quantity,
		"alert_threshold": stock.AlertThreshold,
	}
	if err := g.outboxRepo.Enqueue(ctx, tx, g.cfg.Kafka.Topic.StockEvents, model.EventStockAlert, lock.StockKey(stock.LocationID, stock.CardTypeID), payload); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
