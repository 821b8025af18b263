package job

import (
	"context"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/infrastructure/mq"
	"cardstock/internal/model"
	"cardstock/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender 轮询 outbox 表，把库存、设置、登录等领域事件投递到 Kafka
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	interval   time.Duration
	batchSize  int
	log        *logrus.Entry
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		interval:   500 * time.Millisecond,
		batchSize:  100,
		log:        logger.WithModule("outbox_sender"),
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

// processPendingMessages 处理一批待发送消息，返回发送成功的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		logger.LogError("outbox_sender", "processPendingMessages", "查询消息失败", nil, err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	fields := logrus.Fields{"id": msg.ID, "topic": msg.Topic, "event": msg.EventType, "key": msg.MessageKey}

	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			logger.LogError("outbox_sender", "sendMessage", "更新消息状态失败", fields, updateErr)
			return false
		}
		s.log.WithFields(fields).Debug("消息发送成功")
		return true
	}

	logger.LogError("outbox_sender", "sendMessage", "消息发送失败", fields, err)

	// 达到上限直接标记失败（MarkAsFailed 同时累加重试次数）
	if msg.RetryCount+1 >= s.cfg.Business.OutboxMaxRetry {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			logger.LogError("outbox_sender", "sendMessage", "标记消息失败状态失败", fields, err)
		} else {
			s.log.WithFields(fields).Warn("消息超过最大重试次数，标记为失败")
		}
		return false
	}
	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		logger.LogError("outbox_sender", "sendMessage", "增加重试次数失败", fields, err)
	}
	return false
}
