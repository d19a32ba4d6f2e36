package keepalive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-keepalive/pkg/types"
)

// 测试用的单调时钟基准
var t0 = time.Unix(1700000000, 0)

// ============================================================================
//                              创建与首个指令
// ============================================================================

func TestNewPingTracker_InitialInstruction(t *testing.T) {
	tracker, result := NewPingTracker(DefaultConfig())
	require.NotNil(t, tracker)

	// 首个指令：立即尝试发送，还没有可承诺的唤醒时间
	assert.Nil(t, result.ScheduleTimeout)
	assert.True(t, result.ScheduleSend)
	assert.False(t, result.NewRoundTripTime)

	_, ok := tracker.RoundTripTime()
	assert.False(t, ok, "创建后不应有 RTT 估计")
	assert.Equal(t, DefaultMinPingSpacing, tracker.PingSpacing())
}

func TestNewPingTracker_ZeroConfigUsesDefaults(t *testing.T) {
	tracker, _ := NewPingTracker(Config{})
	assert.Equal(t, DefaultMinPingSpacing, tracker.cfg.MinPingSpacing)
	assert.Equal(t, DefaultMaxPingSpacing, tracker.cfg.MaxPingSpacing)
	assert.Equal(t, DefaultMaxSampleAge, tracker.cfg.MaxSampleAge)
	assert.Equal(t, DefaultMaxPingAge, tracker.cfg.MaxPingAge)
}

// ============================================================================
//                              探测发出
// ============================================================================

func TestMaybeSendPing_FirstPing(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	id, sent, result := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)
	assert.EqualValues(t, 1, id)
	assert.Equal(t, 1, tracker.PendingCount())

	// 发出后承诺 lastPingSent + 2*pingSpacing 的唤醒
	require.NotNil(t, result.ScheduleTimeout)
	assert.Equal(t, 2*DefaultMinPingSpacing, *result.ScheduleTimeout)
	assert.False(t, result.ScheduleSend)
}

func TestMaybeSendPing_SpacingBoundary(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	_, sent, _ := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)

	// 间隔未到：不铸造
	_, sent, _ = tracker.MaybeSendPing(t0.Add(DefaultMinPingSpacing-time.Millisecond), false)
	assert.False(t, sent)
	assert.Equal(t, 1, tracker.PendingCount())

	// 恰好到达间隔边界：铸造
	id, sent, _ := tracker.MaybeSendPing(t0.Add(DefaultMinPingSpacing), false)
	require.True(t, sent)
	assert.EqualValues(t, 2, id)
}

func TestMaybeSendPing_MonotonicIDs(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	var last uint64
	now := t0
	for i := 0; i < 5; i++ {
		id, sent, _ := tracker.MaybeSendPing(now, false)
		require.True(t, sent)
		assert.Greater(t, id, last, "探测标识必须严格递增")
		last = id
		now = now.Add(tracker.PingSpacing())
	}
}

func TestMaybeSendPing_PayloadRetractsPromise(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	_, sent, _ := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)

	// 间隔未到且有数据载荷：承诺被撤回，也不铸造
	_, sent, result := tracker.MaybeSendPing(t0.Add(time.Millisecond), true)
	assert.False(t, sent)
	assert.False(t, result.ScheduleSend)

	// 间隔已到且有数据载荷：探测搭载在载荷上
	id, sent, _ := tracker.MaybeSendPing(t0.Add(DefaultMinPingSpacing), true)
	require.True(t, sent)
	assert.EqualValues(t, 2, id)
}

// ============================================================================
//                              RTT 测量
// ============================================================================

func TestGotPong_RecordsRoundTrip(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	id, sent, _ := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)

	result := tracker.GotPong(t0.Add(100*time.Millisecond), types.Pong{ID: id})
	assert.True(t, result.NewRoundTripTime, "首个采样应触发发布")

	rtt, ok := tracker.RoundTripTime()
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, rtt)

	assert.Equal(t, 1, tracker.SampleCount())
	assert.Equal(t, 0, tracker.PendingCount())
}

func TestGotPong_UnmatchedIgnored(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	_, sent, _ := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)

	// 从未发出过的 id：静默丢弃，效果等同一次空写操作
	result := tracker.GotPong(t0.Add(10*time.Millisecond), types.Pong{ID: 999})
	assert.False(t, result.NewRoundTripTime)
	assert.Equal(t, 0, tracker.SampleCount())
	assert.Equal(t, 1, tracker.PendingCount())

	_, ok := tracker.RoundTripTime()
	assert.False(t, ok)
}

func TestGotPong_DuplicateIgnored(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	id, _, _ := tracker.MaybeSendPing(t0, false)

	tracker.GotPong(t0.Add(50*time.Millisecond), types.Pong{ID: id})
	require.Equal(t, 1, tracker.SampleCount())

	// 同一 id 的重复应答不再计入
	tracker.GotPong(t0.Add(60*time.Millisecond), types.Pong{ID: id})
	assert.Equal(t, 1, tracker.SampleCount())
}

func TestRoundTripTime_Idempotent(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	id, _, _ := tracker.MaybeSendPing(t0, false)
	tracker.GotPong(t0.Add(80*time.Millisecond), types.Pong{ID: id})

	first, ok1 := tracker.RoundTripTime()
	second, ok2 := tracker.RoundTripTime()
	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second, "无写操作时连续读取必须一致")
}

// ============================================================================
//                              发布门限
// ============================================================================

func TestPublicationGate_SuppressesNoise(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	send := func(now time.Time, rtt time.Duration) types.PingTrackerResult {
		id, sent, _ := tracker.MaybeSendPing(now, false)
		require.True(t, sent)
		return tracker.GotPong(now.Add(rtt), types.Pong{ID: id})
	}

	result := send(t0, 100*time.Millisecond)
	assert.True(t, result.NewRoundTripTime)

	// 均值 102.5ms，偏移 2.5% < 10%：不重新发布
	result = send(t0.Add(time.Second), 105*time.Millisecond)
	assert.False(t, result.NewRoundTripTime)
	rtt, _ := tracker.RoundTripTime()
	assert.Equal(t, 100*time.Millisecond, rtt, "发布值应保持上次的估计")

	// 均值 135ms，偏移 35% > 10%：重新发布
	result = send(t0.Add(2*time.Second), 200*time.Millisecond)
	assert.True(t, result.NewRoundTripTime)
	rtt, _ = tracker.RoundTripTime()
	assert.Equal(t, 135*time.Millisecond, rtt)
}

// ============================================================================
//                              间隔自调节
// ============================================================================

func TestPingSpacing_WithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	tracker, _ := NewPingTracker(cfg)

	check := func() {
		assert.GreaterOrEqual(t, tracker.PingSpacing(), cfg.MinPingSpacing)
		assert.LessOrEqual(t, tracker.PingSpacing(), cfg.MaxPingSpacing)
	}

	// 混合调用序列：铸造、应答（抖动的 RTT）、超时回收
	now := t0
	rtts := []time.Duration{
		80 * time.Millisecond, 120 * time.Millisecond, 95 * time.Millisecond,
		300 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond,
	}
	for _, rtt := range rtts {
		id, sent, _ := tracker.MaybeSendPing(now, false)
		check()
		if sent {
			tracker.GotPong(now.Add(rtt), types.Pong{ID: id})
			check()
		}
		tracker.OnTimeout(now.Add(500 * time.Millisecond))
		check()
		now = now.Add(time.Second)
	}
}

func TestAdaptSpacing_VarianceIncreaseHalves(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	tracker.pingSpacing = 400 * time.Millisecond

	tracker.variance = 500
	tracker.adaptSpacing(100)

	assert.Equal(t, 200*time.Millisecond, tracker.PingSpacing())
	assert.True(t, tracker.adaptingSpacing)
}

func TestAdaptSpacing_VarianceDecreaseGrows(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	tracker.variance = 50
	tracker.adaptSpacing(100)

	assert.Equal(t, 125*time.Millisecond, tracker.PingSpacing())
	assert.True(t, tracker.adaptingSpacing)
}

func TestAdaptSpacing_ClampsAtMinAndStops(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	// 初始间隔即下限：减半立即钳制并永久关闭自调节
	tracker.variance = 500
	tracker.adaptSpacing(100)

	assert.Equal(t, DefaultMinPingSpacing, tracker.PingSpacing())
	assert.False(t, tracker.adaptingSpacing)

	// 关闭后不再变化
	tracker.variance = 10
	tracker.adaptSpacing(100)
	assert.Equal(t, DefaultMinPingSpacing, tracker.PingSpacing())
}

func TestAdaptSpacing_ClampsAtMaxAndStops(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	tracker.pingSpacing = 19 * time.Second

	tracker.variance = 50
	tracker.adaptSpacing(100)

	assert.Equal(t, DefaultMaxPingSpacing, tracker.PingSpacing())
	assert.False(t, tracker.adaptingSpacing)
}

func TestAdaptSpacing_VarianceUnchangedNoop(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	tracker.pingSpacing = 400 * time.Millisecond

	tracker.variance = 100
	tracker.adaptSpacing(100)

	assert.Equal(t, 400*time.Millisecond, tracker.PingSpacing())
	assert.True(t, tracker.adaptingSpacing)
}

// ============================================================================
//                              超时与回收
// ============================================================================

func TestOnTimeout_EvictionKeepsFloors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSampleAge = time.Second
	cfg.MaxPingAge = time.Second
	tracker, _ := NewPingTracker(cfg)

	// 4 个相同 RTT 的采样（方差保持 0，间隔不变）+ 2 个悬空探测
	now := t0
	for i := 0; i < 4; i++ {
		id, sent, _ := tracker.MaybeSendPing(now, false)
		require.True(t, sent)
		tracker.GotPong(now.Add(50*time.Millisecond), types.Pong{ID: id})
		now = now.Add(time.Second)
	}
	for i := 0; i < 2; i++ {
		_, sent, _ := tracker.MaybeSendPing(now, false)
		require.True(t, sent)
		now = now.Add(time.Second)
	}
	require.Equal(t, 4, tracker.SampleCount())
	require.Equal(t, 2, tracker.PendingCount())

	// 所有数据都已超龄，但回收保底：采样 ≥3、在途探测 ≥1
	tracker.OnTimeout(now.Add(time.Hour))
	assert.Equal(t, 3, tracker.SampleCount())
	assert.Equal(t, 1, tracker.PendingCount())

	// 双重表示保持同步
	assert.Len(t, tracker.pendingByID, 1)
	assert.Contains(t, tracker.pendingByID, tracker.pendingOrder[0].id)
}

func TestOnTimeout_FreshDataSurvives(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	id, _, _ := tracker.MaybeSendPing(t0, false)
	tracker.GotPong(t0.Add(40*time.Millisecond), types.Pong{ID: id})

	tracker.OnTimeout(t0.Add(200 * time.Millisecond))
	assert.Equal(t, 1, tracker.SampleCount())
}

func TestOnTimeout_ForcesSendWhenDeadlinePassed(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())
	_, sent, _ := tracker.MaybeSendPing(t0, false)
	require.True(t, sent)

	// 期望唤醒点 t0+200ms 已经过去：立即行动而不是设置过去的定时器
	result := tracker.OnTimeout(t0.Add(300 * time.Millisecond))
	assert.True(t, result.ScheduleSend)
	assert.Nil(t, result.ScheduleTimeout)

	// 随后的铸造重新承诺未来的唤醒点，调度不会停摆
	_, sent, result = tracker.MaybeSendPing(t0.Add(300*time.Millisecond), false)
	require.True(t, sent)
	require.NotNil(t, result.ScheduleTimeout)
	assert.Equal(t, 2*tracker.PingSpacing(), *result.ScheduleTimeout)
}

func TestTimeoutPromise_OnlyMovesEarlier(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	_, _, result := tracker.MaybeSendPing(t0, false)
	require.NotNil(t, result.ScheduleTimeout)

	// 期望唤醒点未变：不重复承诺
	result = tracker.GotPong(t0.Add(50*time.Millisecond), types.Pong{ID: 999})
	assert.Nil(t, result.ScheduleTimeout)
}

// ============================================================================
//                              统计性质
// ============================================================================

func TestVariance_IdenticalSamplesIsZero(t *testing.T) {
	tracker, _ := NewPingTracker(DefaultConfig())

	now := t0
	for i := 0; i < 4; i++ {
		id, sent, _ := tracker.MaybeSendPing(now, false)
		require.True(t, sent)
		tracker.GotPong(now.Add(70*time.Millisecond), types.Pong{ID: id})
		now = now.Add(time.Second)
	}

	require.GreaterOrEqual(t, tracker.SampleCount(), 2)
	assert.Zero(t, tracker.variance)
}
