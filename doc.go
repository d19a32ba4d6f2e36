// Package keepalive 提供点对点可靠传输的保活探测调度与 RTT 测量
//
// go-keepalive 决定何时发出存活探测（Ping）、如何恰好应答一次对端的
// 探测（Pong），并从探测/应答对中持续估计链路的往返时延。它不定义
// 线格式、不做套接字 I/O、不涉及加密——这些都属于消费本库的传输层。
//
// # 核心概念
//
// 库分为两层：
//
//   - 引擎层: PingTracker / PongTracker——确定性的纯内存状态机，
//     由传输层的事件循环驱动，产出声明式调度指令
//     （"现在发一个探测"、"在时长 D 后唤醒我"、"有新的 RTT 估计"）。
//   - 监控层: Monitor / Registry——把引擎接到真实时钟与传输层，
//     按会话持有定时器并执行指令。
//
// # 快速开始（监控层）
//
//	import "github.com/dep2p/go-keepalive"
//
//	// 传输层实现 Sender 接口
//	mon := keepalive.NewMonitor(keepalive.DefaultConfig(), sender,
//	    keepalive.WithOnRoundTripTime(func(rtt time.Duration) {
//	        fmt.Printf("RTT: %v\n", rtt)
//	    }),
//	)
//	mon.Start(ctx)
//	defer mon.Stop()
//
//	// 传输层的读循环里:
//	mon.HandlePing(pingID)            // 收到对端探测
//	mon.HandlePong(pongID, queueTime) // 收到对端应答
//
// # 直接驱动引擎（引擎层）
//
// 自带事件循环的传输层可以绕过 Monitor 直接驱动状态机，
// 自行兑现返回的调度指令：
//
//	tracker, result := keepalive.NewPingTracker(keepalive.DefaultConfig())
//	// result.ScheduleSend == true: 立即尝试 MaybeSendPing
//	id, sent, result := tracker.MaybeSendPing(now, false)
//
// 引擎的所有方法都接受调用方提供的单调时钟读数，
// 任何状态迁移都可以通过回放时间戳确定性地复现与测试。
//
// # 探测间隔自调节
//
// 相邻探测的最小间隔在 [MinPingSpacing, MaxPingSpacing] 内自调节：
// RTT 方差上升说明探测太稀疏、间隔减半；方差下降则放宽间隔、
// 降低开销。触及任一边界后自调节永久关闭。
package keepalive
