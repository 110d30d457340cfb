package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"wxrelay/logger"
)

const (
	dedupKeyPrefix = "wx:msg:"
	dedupTTL       = 60 * time.Second
)

// Deduper 回调消息去重。微信投递失败会重试最多三次，同一 MsgId
// 只处理第一次，后续直接应答 success。
type Deduper interface {
	// FirstSeen 返回 true 表示首次见到该 msgID
	FirstSeen(ctx context.Context, msgID string) bool
}

// RedisDeduper SETNX + TTL，多实例部署下也能去重。
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, msgID string) bool {
	if msgID == "" {
		// 事件消息没有 MsgId，不去重
		return true
	}
	ok, err := d.client.SetNX(ctx, dedupKeyPrefix+msgID, 1, dedupTTL).Result()
	if err != nil {
		// Redis 不可用时宁可重复处理也不丢消息
		logger.Errorf("[dedup] setnx failed for %s: %v", msgID, err)
		return true
	}
	return ok
}

// MemoryDeduper 单实例兜底与测试用。
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time)}
}

func (d *MemoryDeduper) FirstSeen(_ context.Context, msgID string) bool {
	if msgID == "" {
		return true
	}
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if at, ok := d.seen[msgID]; ok && now.Sub(at) < dedupTTL {
		return false
	}
	for k, at := range d.seen {
		if now.Sub(at) >= dedupTTL {
			delete(d.seen, k)
		}
	}
	d.seen[msgID] = now
	return true
}
