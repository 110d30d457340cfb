package wechat

import (
	"container/list"
	"sync"
)

const DefaultQrCacheSize = 10000

// QrTicketCache 登录二维码 ticket -> openid 的短期缓存。
// 首次 Put 的 value 为 ""（未扫码），扫码事件到达后写入 openid；
// Get 读后即删，轮询端拿到结果后不能重放。容量满时淘汰最早插入的一条（FIFO）。
type QrTicketCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]*list.Element
	order   *list.List // 元素为 qrEntry，队头最旧
}

type qrEntry struct {
	ticket string
	openID string
}

func NewQrTicketCache(max int) *QrTicketCache {
	if max <= 0 {
		max = DefaultQrCacheSize
	}
	return &QrTicketCache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *QrTicketCache) Put(ticket, openID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[ticket]; ok {
		el.Value.(*qrEntry).openID = openID
		return
	}
	c.entries[ticket] = c.order.PushBack(&qrEntry{ticket: ticket, openID: openID})

	if c.order.Len() > c.max {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*qrEntry).ticket)
	}
}

// Peek 只探测不消费，路由层用它避免覆盖已写入的 openid。
func (c *QrTicketCache) Peek(ticket string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[ticket]
	if !ok {
		return "", false
	}
	return el.Value.(*qrEntry).openID, true
}

// Get 一次性读取：命中即删除。
func (c *QrTicketCache) Get(ticket string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[ticket]
	if !ok {
		return "", false
	}
	c.order.Remove(el)
	delete(c.entries, ticket)
	return el.Value.(*qrEntry).openID, true
}

func (c *QrTicketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
