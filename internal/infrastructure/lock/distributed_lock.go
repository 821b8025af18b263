package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 库存分布式锁
// ============================================================================
//
// 同一个 (地点, 卡种) 的并发出库如果只靠数据库条件更新，会有大量冲突重试；
// 先在 Redis 上按库存维度加锁，把同一库存的写入串行化。
//
// 加锁：SET key value NX EX timeout
// 释放：Lua 脚本先比对 value 再删除，避免误删别人的锁
//
// 调拨涉及两个库存，锁按 key 排序后依次获取，避免两个相反方向的调拨互相等待。
// ============================================================================

var ErrLockFailed = errors.New("获取库存锁失败")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock 单个 key 的分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞获取
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// StockKey 库存锁的 key
func StockKey(locationID, cardTypeID int64) string {
	return fmt.Sprintf("stock:lock:%d:%d", locationID, cardTypeID)
}

// MultiLock 按顺序持有的一组锁
type MultiLock struct {
	locks []*DistributedLock
}

// LockStocks 依次获取多个库存锁，任一失败则释放已获取的锁
func LockStocks(ctx context.Context, client *redis.Client, keys []string, owner string, expiration time.Duration) (*MultiLock, error) {
	sorted := uniqueSorted(keys)

	m := &MultiLock{}
	for _, key := range sorted {
		l := NewDistributedLock(client, key, owner, expiration)
		if err := l.Lock(ctx, 50*time.Millisecond, 40); err != nil {
			m.Unlock(ctx)
			return nil, fmt.Errorf("%w: %s", err, key)
		}
		m.locks = append(m.locks, l)
	}
	return m, nil
}

// Unlock 逆序释放
func (m *MultiLock) Unlock(ctx context.Context) {
	if m == nil {
		return
	}
	for i := len(m.locks) - 1; i >= 0; i-- {
		_ = m.locks[i].Unlock(ctx)
	}
	m.locks = nil
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
