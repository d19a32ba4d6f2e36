package keepalive

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
	coremonitor "github.com/dep2p/go-keepalive/internal/core/monitor"
	keepaliveif "github.com/dep2p/go-keepalive/pkg/interfaces/keepalive"
)

// ════════════════════════════════════════════════════════════════════════════
//                              用户 API: Monitor
// ════════════════════════════════════════════════════════════════════════════

// Sender 传输层的发送协作接口
type Sender = keepaliveif.Sender

// MonitorOption 监控配置选项
type MonitorOption = coremonitor.Option

// WithClock 设置时钟源
//
// 默认使用真实时钟；测试中注入 clock.NewMock() 可确定性地驱动调度。
func WithClock(clk clock.Clock) MonitorOption {
	return coremonitor.WithClock(clk)
}

// WithOnRoundTripTime 设置 RTT 发布回调
func WithOnRoundTripTime(fn func(rtt time.Duration)) MonitorOption {
	return coremonitor.WithOnRoundTripTime(fn)
}

// WithSessionID 设置会话标识（仅用于日志）
func WithSessionID(id string) MonitorOption {
	return coremonitor.WithSessionID(id)
}

// Monitor 单条会话的保活监控
//
// 把引擎接到真实时钟与传输层：持有定时器、执行调度指令、
// 在新的 RTT 估计发布时触发回调。
//
// 使用示例：
//
//	mon := keepalive.NewMonitor(keepalive.DefaultConfig(), sender)
//	if err := mon.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mon.Stop()
type Monitor struct {
	internal keepaliveif.Monitor
}

// NewMonitor 创建会话监控
func NewMonitor(cfg Config, sender Sender, opts ...MonitorOption) *Monitor {
	return &Monitor{
		internal: coremonitor.New(corekeepalive.FromConfig(cfg), sender, opts...),
	}
}

// Start 启动监控（发出首个探测并开始调度）
func (m *Monitor) Start(ctx context.Context) error {
	return m.internal.Start(ctx)
}

// Stop 停止监控，丢弃全部在途状态
func (m *Monitor) Stop() error {
	return m.internal.Stop()
}

// HandlePing 传输层收到对端探测时调用
func (m *Monitor) HandlePing(id uint64) {
	m.internal.HandlePing(id)
}

// HandlePong 传输层收到对端应答时调用
func (m *Monitor) HandlePong(id uint64, queueTime time.Duration) {
	m.internal.HandlePong(id, queueTime)
}

// MarkPayloadSent 传输层即将发出数据帧时调用
//
// 撤回未消费的发送时机；若恰好到了探测时刻，
// 返回可搭载在该数据帧上的探测 id。
func (m *Monitor) MarkPayloadSent() (uint64, bool) {
	return m.internal.MarkPayloadSent()
}

// RoundTripTime 返回最近发布的 RTT 估计
func (m *Monitor) RoundTripTime() (time.Duration, bool) {
	return m.internal.RoundTripTime()
}

// ════════════════════════════════════════════════════════════════════════════
//                              用户 API: Registry
// ════════════════════════════════════════════════════════════════════════════

// Registry 多会话监控注册表
//
// 会话数受配置的 MaxSessions 约束，超出后最久未使用的会话被淘汰。
type Registry struct {
	internal keepaliveif.Registry
}

// NewRegistry 创建监控注册表
//
// opts 会应用到注册表创建的每个监控上。
func NewRegistry(cfg Config, opts ...MonitorOption) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	internal, err := coremonitor.NewRegistry(corekeepalive.FromConfig(cfg), cfg.MaxSessions, opts...)
	if err != nil {
		return nil, err
	}
	return &Registry{internal: internal}, nil
}

// Track 为指定会话创建并启动监控
func (r *Registry) Track(ctx context.Context, sessionID string, sender Sender) (*Monitor, error) {
	m, err := r.internal.Track(ctx, sessionID, sender)
	if err != nil {
		return nil, err
	}
	return &Monitor{internal: m}, nil
}

// Get 获取指定会话的监控
func (r *Registry) Get(sessionID string) (*Monitor, bool) {
	m, ok := r.internal.Get(sessionID)
	if !ok {
		return nil, false
	}
	return &Monitor{internal: m}, true
}

// Untrack 停止并移除指定会话的监控
func (r *Registry) Untrack(sessionID string) error {
	return r.internal.Untrack(sessionID)
}

// Len 返回当前追踪的会话数
func (r *Registry) Len() int {
	return r.internal.Len()
}

// Close 停止全部监控并关闭注册表
func (r *Registry) Close() error {
	return r.internal.Close()
}
