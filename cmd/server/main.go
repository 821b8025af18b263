package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/handler"
	"cardstock/internal/infrastructure/cache"
	"cardstock/internal/infrastructure/database"
	"cardstock/internal/infrastructure/logger"
	"cardstock/internal/infrastructure/mail"
	"cardstock/internal/infrastructure/mq"
	"cardstock/internal/job"
	"cardstock/internal/service"
	"cardstock/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

func main() {
	log := logger.WithModule("main")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("加载配置失败")
	}
	logger.Init(&cfg.Log)

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db, err := database.InitMySQL(&cfg.MySQL, cfg.Server.Mode)
	if err != nil {
		log.WithError(err).Fatal("初始化 MySQL 失败")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.LogError("main", "main", "关闭 MySQL 失败", nil, err)
		}
	}()

	// Redis 不可用时退化为无会话缓存、无库存分布式锁
	var redisClient *redis.Client
	if redisClient, err = cache.InitRedis(&cfg.Redis); err != nil {
		logger.LogError("main", "main", "Redis 不可用，跳过会话缓存和库存锁", cfg.Redis.Host, err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	authService := service.NewAuthService(db, redisClient, cfg)
	if err := authService.SeedDefaults(context.Background()); err != nil {
		log.WithError(err).Fatal("初始化内置权限和管理员失败")
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka 不可用时事件留在 outbox，恢复后重启即可补发
	producer, err := mq.InitKafka(&cfg.Kafka)
	if err != nil {
		logger.LogError("main", "main", "Kafka 不可用，暂不投递领域事件", cfg.Kafka.Brokers, err)
	} else {
		defer producer.Close()
		outboxSender := job.NewOutboxSender(db, producer, cfg)
		go outboxSender.Start(ctx)
	}

	sessionExpiryJob := job.NewSessionExpiryJob(authService, cfg)
	go sessionExpiryJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, mail.NewGomailSender())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("服务启动失败")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError("main", "main", "服务关闭异常", nil, err)
	}

	log.Info("服务已关闭")
}
