// Package keepalive 实现保活探测的调度引擎
//
// 引擎由两个状态机组成：
//   - PingTracker: 出站探测调度 + 入站 RTT 测量
//   - PongTracker: 应答对端探测所需的最小状态
//
// 两者都是确定性的纯内存状态机，不读墙钟、不持有定时器、不做 I/O。
// 传输层的事件循环驱动它们，并执行其返回的调度指令
// （types.PingTrackerResult）。引擎内部不加锁，调用方按会话串行调用。
package keepalive

import (
	"time"

	"github.com/dep2p/go-keepalive/internal/util/logger"
	"github.com/dep2p/go-keepalive/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("core/keepalive")

// ============================================================================
//                              在途探测
// ============================================================================

// pendingPing 一个已发出、等待应答的探测
type pendingPing struct {
	id     uint64
	sentAt time.Time
}

// ============================================================================
//                              PingTracker 实现
// ============================================================================

// PingTracker 出站探测调度与 RTT 测量状态机
//
// 消费对端的 Pong 应答和时间推进信号，产出调度指令。
// 所有方法都接受调用方提供的单调时钟读数 now，
// 因此任何状态迁移都可以通过回放时间戳确定性地复现。
type PingTracker struct {
	cfg Config

	// samples 按时间有序的采样窗口，最旧的在前
	samples []types.Sample

	// mean/variance 最近一次重算的统计量（µs / µs²）
	mean     int64
	variance int64

	// pendingByID / pendingOrder 在途探测的双重表示：
	// 按 id 的 O(1) 查找 + 按发出顺序的回收队列。
	// 两者的成员集合必须始终一致，增删必须同时更新。
	pendingByID  map[uint64]time.Time
	pendingOrder []pendingPing

	// pingSpacing 相邻两次探测之间的最小间隔
	// 始终处于 [MinPingSpacing, MaxPingSpacing]
	pingSpacing time.Duration

	// adaptingSpacing 间隔自调节开关
	// 一旦调节触及任一边界即永久关闭
	adaptingSpacing bool

	// lastPingSent 最近一次探测发出的时刻，零值表示从未发出
	lastPingSent time.Time

	// scheduledTimeout 已向调用者承诺的下次唤醒时刻，零值表示无承诺
	scheduledTimeout time.Time

	// scheduledSend 已向调用者承诺发送时机且对方尚未消费
	scheduledSend bool

	// nextPingID 单调递增的探测标识，生命周期内不复用
	nextPingID uint64

	// publishedMean 最近一次实际发布给调用者的 RTT 估计（µs）
	// 与 mean 区分开，用于抑制噪声级别的重复发布
	publishedMean int64
}

// NewPingTracker 创建探测追踪器
//
// 返回的首个指令总是要求调用者立即尝试发送一次探测
// （ScheduleSend 为 true），此时还没有可承诺的唤醒时间。
func NewPingTracker(cfg Config) (*PingTracker, types.PingTrackerResult) {
	t := &PingTracker{
		cfg:             cfg.withDefaults(),
		pendingByID:     make(map[uint64]time.Time),
		adaptingSpacing: true,
		nextPingID:      1,
	}
	t.pingSpacing = t.cfg.MinPingSpacing

	// 首个发送时机已向调用者承诺，置位防止重复上报
	t.scheduledSend = true

	return t, types.PingTrackerResult{ScheduleSend: true}
}

// RoundTripTime 返回最近发布的 RTT 估计
//
// 纯读取；尚无估计时第二个返回值为 false。
func (t *PingTracker) RoundTripTime() (time.Duration, bool) {
	if t.publishedMean <= 0 {
		return 0, false
	}
	return time.Duration(t.publishedMean) * time.Microsecond, true
}

// PingSpacing 返回当前的探测间隔
func (t *PingTracker) PingSpacing() time.Duration {
	return t.pingSpacing
}

// SampleCount 返回采样窗口当前的采样数
func (t *PingTracker) SampleCount() int {
	return len(t.samples)
}

// PendingCount 返回在途探测数
func (t *PingTracker) PendingCount() int {
	return len(t.pendingOrder)
}

// MaybeSendPing 尝试发出一次探测
//
// hasOtherPayload 为 true 表示调用者本来就要发送数据，
// 之前承诺的发送时机被撤回——探测可以搭载在该载荷上，
// 不再是追踪器需要关心的事。
//
// 距上次发出不足 pingSpacing 时不铸造新探测（sent 为 false）。
// 恰好到达 lastPingSent + pingSpacing 时铸造。
func (t *PingTracker) MaybeSendPing(now time.Time, hasOtherPayload bool) (id uint64, sent bool, result types.PingTrackerResult) {
	if hasOtherPayload {
		t.scheduledSend = false
	}

	result = t.mutate(now, func() {
		if !t.lastPingSent.IsZero() && now.Before(t.lastPingSent.Add(t.pingSpacing)) {
			return
		}

		id = t.nextPingID
		t.nextPingID++
		t.pendingByID[id] = now
		t.pendingOrder = append(t.pendingOrder, pendingPing{id: id, sentAt: now})
		t.lastPingSent = now
		sent = true

		// 发送时机已被消费
		t.scheduledSend = false
	})
	return id, sent, result
}

// OnTimeout 处理先前承诺的唤醒
//
// 清除承诺后按年龄回收：超过 MaxSampleAge 的采样（至少保留 3 个）、
// 超过 MaxPingAge 的在途探测（至少保留 1 个）。
func (t *PingTracker) OnTimeout(now time.Time) types.PingTrackerResult {
	t.scheduledTimeout = time.Time{}

	return t.mutate(now, func() {
		sampleCutoff := now.Add(-t.cfg.MaxSampleAge)
		evictedSamples := 0
		for len(t.samples) > minRetainedSamples && t.samples[0].When.Before(sampleCutoff) {
			t.samples = t.samples[1:]
			evictedSamples++
		}

		pingCutoff := now.Add(-t.cfg.MaxPingAge)
		evictedPings := 0
		for len(t.pendingOrder) > minRetainedPings && t.pendingOrder[0].sentAt.Before(pingCutoff) {
			delete(t.pendingByID, t.pendingOrder[0].id)
			t.pendingOrder = t.pendingOrder[1:]
			evictedPings++
		}

		if evictedSamples > 0 || evictedPings > 0 {
			log.Debug("按年龄回收完成",
				"evictedSamples", evictedSamples,
				"evictedPings", evictedPings,
				"samples", len(t.samples),
				"pending", len(t.pendingOrder))
		}
	})
}

// GotPong 处理对端的应答
//
// id 命中在途探测时，从两个在途结构中同步移除，
// 并向窗口追加采样 {When: now, RTT: now - sentAt}。
// 未命中的 id（已被回收、重复或伪造）静默丢弃，不视为错误。
func (t *PingTracker) GotPong(now time.Time, pong types.Pong) types.PingTrackerResult {
	return t.mutate(now, func() {
		sentAt, ok := t.pendingByID[pong.ID]
		if !ok {
			log.Debug("丢弃未匹配的应答", "id", pong.ID)
			return
		}

		delete(t.pendingByID, pong.ID)
		for i, p := range t.pendingOrder {
			if p.id == pong.ID {
				t.pendingOrder = append(t.pendingOrder[:i], t.pendingOrder[i+1:]...)
				break
			}
		}

		t.samples = append(t.samples, types.Sample{
			When: now,
			RTT:  now.Sub(sentAt),
		})
	})
}

// ============================================================================
//                              mutate 控制环
// ============================================================================

// mutate 每个写操作共用的尾部控制环
//
// 依次执行：调用特定的 body、统计重算、间隔自调节、
// 发布门限判定、发送与超时调度。
func (t *PingTracker) mutate(now time.Time, body func()) types.PingTrackerResult {
	varianceBefore := t.variance

	body()

	t.recomputeStats()
	t.adaptSpacing(varianceBefore)

	var result types.PingTrackerResult

	// 发布门限：均值相对上次发布值偏移超过 10% 才重新发布，
	// 避免调用者对微秒级噪声做出反应。
	if t.mean > 0 && (t.publishedMean <= 0 || absInt64(t.publishedMean-t.mean) > t.publishedMean/10) {
		t.publishedMean = t.mean
		result.NewRoundTripTime = true
	}

	// 发送调度：尚未承诺过，且已到（或从未有过）下一个发送时刻
	if !t.scheduledSend &&
		(t.lastPingSent.IsZero() || !now.Before(t.lastPingSent.Add(t.pingSpacing))) {
		result.ScheduleSend = true
	}

	// 超时调度：期望唤醒点为 lastPingSent（或 now）+ 2*pingSpacing。
	// 只在没有承诺、或已承诺的唤醒晚于期望值时重新承诺（只会提前）。
	base := t.lastPingSent
	if base.IsZero() {
		base = now
	}
	desired := base.Add(2 * t.pingSpacing)
	if t.scheduledTimeout.IsZero() || t.scheduledTimeout.After(desired) {
		if wait := desired.Sub(now); wait > 0 {
			t.scheduledTimeout = desired
			result.ScheduleTimeout = &wait
		} else {
			// 期望唤醒点已经过去：不承诺过去的定时器，让调用者立即行动。
			// 不记录过去的承诺——否则它会一直早于后续的期望唤醒点，
			// 永久抑制重新设置定时器，静默链路上的调度就会停摆。
			t.scheduledTimeout = time.Time{}
			result.ScheduleSend = true
		}
	}

	if result.ScheduleSend {
		t.scheduledSend = true
	}

	return result
}

// recomputeStats 重算窗口统计量
//
// 溢出时把 mean/variance 清零继续运行——有损但安全的降级，
// 估计会随新采样到来自愈。
func (t *PingTracker) recomputeStats() {
	mean, variance, ok := windowStats(t.samples)
	if !ok {
		log.Warn("统计重算溢出，估计清零", "samples", len(t.samples))
		t.mean, t.variance = 0, 0
		return
	}
	t.mean, t.variance = mean, variance
}

// adaptSpacing 根据方差变化自调节探测间隔
//
// 方差上升说明探测太稀疏、跟不上链路抖动，间隔减半；
// 方差下降说明可以放宽探测、降低开销，间隔乘 5/4。
// 触及任一边界即钳制到边界并永久停止自调节。
func (t *PingTracker) adaptSpacing(varianceBefore int64) {
	if !t.adaptingSpacing {
		return
	}

	switch {
	case t.variance > varianceBefore:
		t.pingSpacing /= 2
		if t.pingSpacing < t.cfg.MinPingSpacing {
			t.pingSpacing = t.cfg.MinPingSpacing
			t.adaptingSpacing = false
		}
	case t.variance < varianceBefore:
		t.pingSpacing = t.pingSpacing * 5 / 4
		if t.pingSpacing > t.cfg.MaxPingSpacing {
			t.pingSpacing = t.cfg.MaxPingSpacing
			t.adaptingSpacing = false
		}
	}
}

// absInt64 int64 绝对值
func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
