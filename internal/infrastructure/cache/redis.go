package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cardstock/internal/config"
	"cardstock/internal/infrastructure/logger"

	"github.com/go-redis/redis/v8"
)

func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	logger.WithModule("cache").Info("Redis 连接成功")
	return client, nil
}

// CachedSession 缓存中的会话，值格式为 "sessionID:userID"
type CachedSession struct {
	SessionID int64
	UserID    int64
}

// SessionCache 缓存 token -> 会话，认证中间件先查缓存再查库
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return "session:token:" + token
}

// Get 未命中时返回 (nil, false, nil)，值无法解析也按未命中处理
func (c *SessionCache) Get(ctx context.Context, token string) (*CachedSession, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	val, err := c.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	sid, uid, ok := strings.Cut(val, ":")
	if !ok {
		return nil, false, nil
	}
	sessionID, err1 := strconv.ParseInt(sid, 10, 64)
	userID, err2 := strconv.ParseInt(uid, 10, 64)
	if err1 != nil || err2 != nil {
		return nil, false, nil
	}
	return &CachedSession{SessionID: sessionID, UserID: userID}, true, nil
}

func (c *SessionCache) Set(ctx context.Context, token string, session CachedSession) error {
	if c == nil || c.client == nil {
		return nil
	}
	val := strconv.FormatInt(session.SessionID, 10) + ":" + strconv.FormatInt(session.UserID, 10)
	return c.client.Set(ctx, sessionKey(token), val, c.ttl).Err()
}

func (c *SessionCache) Delete(ctx context.Context, tokens ...string) error {
	if c == nil || c.client == nil || len(tokens) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, sessionKey(t))
	}
	return c.client.Del(ctx, keys...).Err()
}
