// Package keepalive 定义保活监控的公共接口
//
// go-keepalive 本身没有线格式、文件格式或 CLI——它是被传输层消费的库。
// 传输层实现 Sender 把探测/应答写上线路；Monitor 负责一条会话的
// 探测调度与 RTT 测量；Registry 管理多条会话的 Monitor。
package keepalive

import (
	"context"
	"time"
)

// ============================================================================
//                              传输协作方
// ============================================================================

// Sender 传输层的发送协作接口
//
// Monitor 产生"发一个探测/应答"的决定后通过 Sender 落地；
// 消息的线上编码、复用与加密都是传输层的事。
type Sender interface {
	// SendPing 发出一个探测，id 需由对端原样回显
	SendPing(id uint64) error

	// SendPong 应答对端的探测
	//
	// queueTime 是收到探测到发出应答之间的本地排队时延，
	// 随应答报给对端。
	SendPong(id uint64, queueTime time.Duration) error
}

// ============================================================================
//                              Monitor 接口
// ============================================================================

// Monitor 单条会话的保活监控接口
//
// 每个传输会话持有一个 Monitor；随会话创建、随会话停止。
// Start 之前与 Stop 之后的入站事件都被忽略。
type Monitor interface {
	// Start 启动监控（开始探测调度）
	Start(ctx context.Context) error

	// Stop 停止监控，丢弃全部在途状态
	Stop() error

	// HandlePing 传输层收到对端探测时调用
	HandlePing(id uint64)

	// HandlePong 传输层收到对端应答时调用
	HandlePong(id uint64, queueTime time.Duration)

	// MarkPayloadSent 传输层即将发出数据帧时调用
	//
	// 撤回未消费的发送时机；若恰好到了探测时刻，
	// 返回可搭载在该数据帧上的探测 id。
	MarkPayloadSent() (uint64, bool)

	// RoundTripTime 返回最近发布的 RTT 估计
	RoundTripTime() (time.Duration, bool)
}

// ============================================================================
//                              Registry 接口
// ============================================================================

// Registry 多会话监控注册表接口
type Registry interface {
	// Track 为指定会话创建并启动监控
	Track(ctx context.Context, sessionID string, sender Sender) (Monitor, error)

	// Get 获取指定会话的监控
	Get(sessionID string) (Monitor, bool)

	// Untrack 停止并移除指定会话的监控
	Untrack(sessionID string) error

	// Len 返回当前追踪的会话数
	Len() int

	// Close 停止全部监控并关闭注册表
	Close() error
}
