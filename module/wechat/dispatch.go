package wechat

import (
	"sync"

	"wxrelay/logger"
	"wxrelay/tools/safe"
)

const dispatchQueueSize = 16

// Dispatcher 回调里来不及同步出结果的任务丢到这里。
// 每个 openid 一条 FIFO 队列 + 一个常驻 worker：同一用户的任务串行执行，
// 会话状态不会被交错写；不同用户之间互不影响。
// 任务内部的失败由任务自己消化（推错误提示给用户），绝不外抛。
type Dispatcher struct {
	mu     sync.Mutex
	queues map[string]chan func()
	wg     sync.WaitGroup
	closed bool
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{queues: make(map[string]chan func())}
}

// Enqueue 把任务排进该用户的队列，worker 不存在就拉一个起来。
// 队列打满时丢弃并记日志，不阻塞回调响应。
// 入队必须和 closed 判断在同一临界区里：Close 拿同一把锁 close 队列，
// 锁外入队会撞上 send on closed channel。队列有缓冲且非阻塞发送，不会长占锁。
func (d *Dispatcher) Enqueue(openID string, task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logger.Warnf("[dispatch] closed, drop task for %s", openID)
		return
	}
	q, ok := d.queues[openID]
	if !ok {
		q = make(chan func(), dispatchQueueSize)
		d.queues[openID] = q
		d.wg.Add(1)
		safe.Go("dispatch-"+openID, func() {
			defer d.wg.Done()
			for t := range q {
				runTask(openID, t)
			}
		})
	}

	select {
	case q <- task:
	default:
		logger.Warnf("[dispatch] queue full, drop task for %s", openID)
	}
}

// 单个任务 panic 只损失这一个任务，worker 继续消费队列。
func runTask(openID string, t func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[dispatch] task panic for %s: %v", openID, r)
		}
	}()
	t()
}

// Close 停止接收新任务并等在途任务跑完。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
