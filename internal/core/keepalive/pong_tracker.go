package keepalive

import (
	"time"

	"github.com/dep2p/go-keepalive/pkg/types"
)

// ============================================================================
//                              PongTracker 实现
// ============================================================================

// PongTracker 应答对端探测的状态机
//
// 只有两个状态：空闲（不欠应答）和欠一个应答。
// 应答不排队：只有最近一次未应答的探测才有意义，
// 新探测到来会覆盖之前待答的 id。
type PongTracker struct {
	id         uint64
	receivedAt time.Time
	owing      bool
}

// NewPongTracker 创建应答追踪器
func NewPongTracker() *PongTracker {
	return &PongTracker{}
}

// GotPing 记录对端的一次探测
//
// 返回 true 当且仅当此前处于空闲态——这是一个新的发送时机，
// 调用者应尽快安排应答；若本就欠着应答，调用者已经知道有东西要发。
func (t *PongTracker) GotPing(id uint64, now time.Time) bool {
	wasIdle := !t.owing
	t.id = id
	t.receivedAt = now
	t.owing = true
	return wasIdle
}

// MaybeSendPong 原子地取走待发的应答
//
// 返回待回显的 id 和收到探测以来流逝的排队时延，并转回空闲态；
// 空闲时第二个返回值为 false。
func (t *PongTracker) MaybeSendPong(now time.Time) (types.Pong, bool) {
	if !t.owing {
		return types.Pong{}, false
	}
	t.owing = false
	return types.Pong{
		ID:        t.id,
		QueueTime: now.Sub(t.receivedAt),
	}, true
}
