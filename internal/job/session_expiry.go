package job

import (
	"context"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/logger"

	"github.com/sirupsen/logrus"
)

// SessionExpirer 撤销空闲会话，由 AuthService 实现
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, before time.Time, limit int) (int, error)
}

// SessionExpiryJob 定时撤销超过 auth.session_idle_minutes 未活动的会话
type SessionExpiryJob struct {
	expirer   SessionExpirer
	idle      time.Duration
	interval  time.Duration
	batchSize int
	now       func() time.Time
	log       *logrus.Entry
}

func NewSessionExpiryJob(expirer SessionExpirer, cfg *config.Config) *SessionExpiryJob {
	return &SessionExpiryJob{
		expirer:   expirer,
		idle:      time.Duration(cfg.Auth.SessionIdleMinutes) * time.Minute,
		interval:  time.Minute,
		batchSize: 100,
		now:       time.Now,
		log:       logger.WithModule("session_expiry"),
	}
}

func (j *SessionExpiryJob) Start(ctx context.Context) {
	j.log.Info("会话过期任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-ticker.C:
			j.expireIdleSessions(ctx)
		}
	}
}

// expireIdleSessions 一批处理不完时继续下一批
func (j *SessionExpiryJob) expireIdleSessions(ctx context.Context) int {
	before := j.now().Add(-j.idle)
	total := 0
	for {
		n, err := j.expirer.ExpireIdle(ctx, before, j.batchSize)
		if err != nil {
			logger.LogError("session_expiry", "expireIdleSessions", "撤销空闲会话失败", before, err)
			break
		}
		total += n
		if n < j.batchSize {
			break
		}
	}
	if total > 0 {
		j.log.WithField("count", total).Info("已撤销空闲会话")
	}
	return total
}
