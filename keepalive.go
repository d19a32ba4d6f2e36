package keepalive

import (
	"time"

	"github.com/dep2p/go-keepalive/config"
	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
	"github.com/dep2p/go-keepalive/pkg/types"
)

// ════════════════════════════════════════════════════════════════════════════
//                              公共类型
// ════════════════════════════════════════════════════════════════════════════

// 引擎层的公共数据类型（定义见 pkg/types）
type (
	// PingTrackerResult 追踪器返回的声明式调度指令
	PingTrackerResult = types.PingTrackerResult

	// Pong 对端对某次探测的应答
	Pong = types.Pong

	// Sample 一次完整往返的测量结果
	Sample = types.Sample
)

// Config 保活配置
type Config = config.KeepaliveConfig

// DefaultConfig 返回默认保活配置
func DefaultConfig() Config {
	return config.DefaultKeepaliveConfig()
}

// ════════════════════════════════════════════════════════════════════════════
//                              用户 API: PingTracker
// ════════════════════════════════════════════════════════════════════════════

// PingTracker 出站探测调度与 RTT 测量状态机
//
// 由传输层的事件循环按会话串行驱动；方法返回的
// PingTrackerResult 是对调用者的调度指令，而非回调。
//
// 使用示例：
//
//	tracker, result := keepalive.NewPingTracker(keepalive.DefaultConfig())
//	// result.ScheduleSend == true，立即尝试发出首个探测
//	id, sent, result := tracker.MaybeSendPing(now, false)
//	if sent {
//	    transport.WritePing(id)
//	}
type PingTracker struct {
	internal *corekeepalive.PingTracker
}

// NewPingTracker 创建探测追踪器
//
// 返回的首个指令总是要求立即尝试发送一次探测。
func NewPingTracker(cfg Config) (*PingTracker, PingTrackerResult) {
	internal, result := corekeepalive.NewPingTracker(corekeepalive.FromConfig(cfg))
	return &PingTracker{internal: internal}, result
}

// RoundTripTime 返回最近发布的 RTT 估计
//
// 纯读取；尚无估计时第二个返回值为 false。
func (t *PingTracker) RoundTripTime() (time.Duration, bool) {
	return t.internal.RoundTripTime()
}

// PingSpacing 返回当前的探测间隔
func (t *PingTracker) PingSpacing() time.Duration {
	return t.internal.PingSpacing()
}

// MaybeSendPing 尝试发出一次探测
//
// hasOtherPayload 为 true 表示调用者本来就要发送数据，
// 探测可以搭载在该载荷上。距上次发出不足一个探测间隔时
// 不铸造新探测（sent 为 false）。
func (t *PingTracker) MaybeSendPing(now time.Time, hasOtherPayload bool) (id uint64, sent bool, result PingTrackerResult) {
	return t.internal.MaybeSendPing(now, hasOtherPayload)
}

// OnTimeout 处理先前承诺的唤醒，回收超龄的采样与在途探测
func (t *PingTracker) OnTimeout(now time.Time) PingTrackerResult {
	return t.internal.OnTimeout(now)
}

// GotPong 处理对端的应答
//
// 未匹配到在途探测的 id 被静默丢弃。
func (t *PingTracker) GotPong(now time.Time, pong Pong) PingTrackerResult {
	return t.internal.GotPong(now, pong)
}

// ════════════════════════════════════════════════════════════════════════════
//                              用户 API: PongTracker
// ════════════════════════════════════════════════════════════════════════════

// PongTracker 应答对端探测的状态机
//
// 最多记住一个待答的探测：新探测覆盖旧的，应答不排队。
type PongTracker struct {
	internal *corekeepalive.PongTracker
}

// NewPongTracker 创建应答追踪器
func NewPongTracker() *PongTracker {
	return &PongTracker{internal: corekeepalive.NewPongTracker()}
}

// GotPing 记录对端的一次探测
//
// 返回 true 当且仅当此前不欠应答——这是一个新的发送时机。
func (t *PongTracker) GotPing(id uint64, now time.Time) bool {
	return t.internal.GotPing(id, now)
}

// MaybeSendPong 原子地取走待发的应答
//
// 返回待回显的 id 与本地排队时延；空闲时第二个返回值为 false。
func (t *PongTracker) MaybeSendPong(now time.Time) (Pong, bool) {
	return t.internal.MaybeSendPong(now)
}
