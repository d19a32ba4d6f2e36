// Package monitor 把保活引擎接到真实的时钟与传输层
//
// 引擎（internal/core/keepalive）只产出调度指令；Monitor 负责执行：
// 用 clock.Clock 定时器兑现唤醒承诺、通过 Sender 把探测/应答交给
// 传输层、在新估计发布时触发回调。每条传输会话一个 Monitor。
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
	"github.com/dep2p/go-keepalive/internal/util/logger"
	keepaliveif "github.com/dep2p/go-keepalive/pkg/interfaces/keepalive"
	"github.com/dep2p/go-keepalive/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("core/monitor")

// ============================================================================
//                              配置选项
// ============================================================================

// Option 定义监控配置选项函数
type Option func(*Monitor)

// WithClock 设置时钟源
//
// 默认使用真实时钟；测试中注入 clock.NewMock() 可确定性地驱动调度。
func WithClock(clk clock.Clock) Option {
	return func(m *Monitor) {
		m.clk = clk
	}
}

// WithOnRoundTripTime 设置 RTT 发布回调
func WithOnRoundTripTime(fn func(rtt time.Duration)) Option {
	return func(m *Monitor) {
		m.onRTT = fn
	}
}

// WithSessionID 设置会话标识（仅用于日志）
func WithSessionID(id string) Option {
	return func(m *Monitor) {
		m.sessionID = id
	}
}

// ============================================================================
//                              Monitor 实现
// ============================================================================

// Monitor 单条会话的保活监控
//
// 持有一对追踪器并独占驱动它们：引擎要求按会话串行调用，
// Monitor 用内部互斥锁兑现这一约定，追踪器自身保持无锁。
//
// 注意：Sender 的实现不得同步回调 Monitor，否则会死锁。
type Monitor struct {
	sender    keepaliveif.Sender
	clk       clock.Clock
	sessionID string
	onRTT     func(time.Duration)

	mu    sync.Mutex
	ping  *corekeepalive.PingTracker
	pong  *corekeepalive.PongTracker
	timer *clock.Timer

	// firstResult 创建追踪器时返回的首个指令，Start 时执行
	firstResult types.PingTrackerResult

	running int32
	closed  int32
	stopCh  chan struct{}
}

var _ keepaliveif.Monitor = (*Monitor)(nil)

// New 创建会话监控
func New(cfg corekeepalive.Config, sender keepaliveif.Sender, opts ...Option) *Monitor {
	ping, first := corekeepalive.NewPingTracker(cfg)

	m := &Monitor{
		sender:      sender,
		clk:         clock.New(),
		sessionID:   uuid.NewString(),
		ping:        ping,
		pong:        corekeepalive.NewPongTracker(),
		firstResult: first,
		stopCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动监控
//
// 立即执行创建时返回的首个指令（发出第一个探测），
// 之后由定时器驱动回收与补发。
func (m *Monitor) Start(_ context.Context) error {
	if atomic.LoadInt32(&m.closed) == 1 {
		return ErrMonitorClosed
	}
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return ErrAlreadyStarted
	}

	m.mu.Lock()
	// 占位时长，首个指令执行时会被重设
	m.timer = m.clk.Timer(time.Hour)
	m.applyLocked(m.firstResult)
	// 首个指令只消费一次
	m.firstResult = types.PingTrackerResult{}
	m.mu.Unlock()

	go m.run()

	log.Debug("保活监控已启动", "session", m.sessionID)
	return nil
}

// Stop 停止监控，丢弃全部在途状态
func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.closed, 0, 1) {
		return nil
	}

	close(m.stopCh)

	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.mu.Unlock()

	log.Debug("保活监控已停止", "session", m.sessionID)
	return nil
}

// run 定时器事件循环
func (m *Monitor) run() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.timer.C:
			m.onTimeout()
		}
	}
}

// active 报告监控是否处于运行中
//
// 启动前与停止后的事件都被忽略：定时器在 Start 中创建，
// 未启动时执行调度指令会解引用空定时器。
func (m *Monitor) active() bool {
	return atomic.LoadInt32(&m.running) == 1 && atomic.LoadInt32(&m.closed) == 0
}

// ============================================================================
//                              入站事件
// ============================================================================

// HandlePing 传输层收到对端探测时调用
//
// 欠下应答后立即冲洗：Monitor 没有自己的出站队列，
// 排队时延只来自锁竞争，接近于零。
func (m *Monitor) HandlePing(id uint64) {
	if !m.active() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pong.GotPing(id, m.clk.Now()) {
		m.flushPongLocked()
	}
}

// HandlePong 传输层收到对端应答时调用
func (m *Monitor) HandlePong(id uint64, queueTime time.Duration) {
	if !m.active() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pongsReceived.Inc()
	peerQueueTime.Observe(queueTime.Seconds())

	result := m.ping.GotPong(m.clk.Now(), types.Pong{ID: id, QueueTime: queueTime})
	m.applyLocked(result)
}

// MarkPayloadSent 传输层即将发出数据帧时调用
//
// 撤回未消费的发送时机；若恰好到了探测时刻，返回的 id
// 应搭载在该数据帧上，由传输层负责送达。
func (m *Monitor) MarkPayloadSent() (uint64, bool) {
	if !m.active() {
		return 0, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, sent, result := m.ping.MaybeSendPing(m.clk.Now(), true)
	if sent {
		pingsSent.Inc()
	}
	m.applyLocked(result)
	return id, sent
}

// RoundTripTime 返回最近发布的 RTT 估计
func (m *Monitor) RoundTripTime() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ping.RoundTripTime()
}

// ============================================================================
//                              指令执行
// ============================================================================

// onTimeout 兑现先前承诺的唤醒
func (m *Monitor) onTimeout() {
	if atomic.LoadInt32(&m.closed) == 1 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := m.ping.OnTimeout(m.clk.Now())
	m.applyLocked(result)
}

// applyLocked 执行追踪器返回的调度指令
//
// ScheduleSend 会就地尝试发出探测；每次尝试都可能产生新指令，
// 循环执行直到没有待办的发送为止。未到发送时刻的尝试不会
// 产生新的发送待办（引擎内部的承诺标记保证了这一点），
// 循环必然终止。
func (m *Monitor) applyLocked(result types.PingTrackerResult) {
	for {
		if result.NewRoundTripTime {
			m.publishLocked()
		}
		if result.ScheduleTimeout != nil {
			m.timer.Reset(*result.ScheduleTimeout)
		}
		if !result.ScheduleSend {
			return
		}

		id, sent, next := m.ping.MaybeSendPing(m.clk.Now(), false)
		if sent {
			pingsSent.Inc()
			if err := m.sender.SendPing(id); err != nil {
				log.Warn("探测发送失败",
					"session", m.sessionID,
					"id", id,
					"err", err)
			}
		} else {
			// 还没到发送时刻，交给定时器路径
			next.ScheduleSend = false
		}
		result = next
	}
}

// flushPongLocked 发出欠下的应答
func (m *Monitor) flushPongLocked() {
	pong, ok := m.pong.MaybeSendPong(m.clk.Now())
	if !ok {
		return
	}

	pongsSent.Inc()
	if err := m.sender.SendPong(pong.ID, pong.QueueTime); err != nil {
		log.Warn("应答发送失败",
			"session", m.sessionID,
			"id", pong.ID,
			"err", err)
	}
}

// publishLocked 对外发布新的 RTT 估计
func (m *Monitor) publishLocked() {
	rtt, ok := m.ping.RoundTripTime()
	if !ok {
		return
	}

	rttPublished.Observe(rtt.Seconds())
	log.Debug("发布新的 RTT 估计",
		"session", m.sessionID,
		"rtt", rtt)

	if m.onRTT != nil {
		// 回调在独立 goroutine 中执行，避免持锁回调造成死锁
		go m.onRTT(rtt)
	}
}
