// Package types 定义 go-keepalive 的公共数据类型
package types

import "time"

// ============================================================================
//                              测量值类型
// ============================================================================

// Sample 一次完整往返的测量结果
//
// 创建后不可变，由 PingTracker 的采样窗口独占持有。
type Sample struct {
	// When 收到应答的时刻
	When time.Time

	// RTT 测得的往返时间
	RTT time.Duration
}

// Pong 对端对某次 Ping 的应答
//
// 传输层负责其线上编码，这里只定义两个逻辑字段。
type Pong struct {
	// ID 被应答的 Ping 标识（对端原样回显）
	ID uint64

	// QueueTime 对端收到 Ping 到实际发出 Pong 之间的本地排队时延
	//
	// 发送方据此区分观测 RTT 中的对端调度时延与网络传输时延。
	QueueTime time.Duration
}

// ============================================================================
//                              调度指令
// ============================================================================

// PingTrackerResult PingTracker 每次调用返回的声明式调度指令
//
// 追踪器从不回调调用者；所有动作都通过该结构描述，
// 由持有真实定时器和套接字的传输层执行。
type PingTrackerResult struct {
	// ScheduleTimeout 需要重新设置的唤醒时长
	//
	// nil 表示已承诺的唤醒时间仍然有效，无需改动；
	// 非 nil 表示应在该时长后调用 OnTimeout。
	ScheduleTimeout *time.Duration

	// ScheduleSend 是否出现了新的发送时机
	//
	// 为 true 时调用者应尽快调用 MaybeSendPing 尝试发出探测。
	ScheduleSend bool

	// NewRoundTripTime 是否产生了新的 RTT 估计
	//
	// 为 true 时可通过 RoundTripTime 读取最新发布值。
	NewRoundTripTime bool
}
