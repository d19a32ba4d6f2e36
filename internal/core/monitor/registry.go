package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"

	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
	keepaliveif "github.com/dep2p/go-keepalive/pkg/interfaces/keepalive"
)

// ============================================================================
//                              Registry 实现
// ============================================================================

// DefaultMaxSessions 注册表默认的会话数上限
const DefaultMaxSessions = 1024

// Registry 多会话监控注册表
//
// 会话数有上限：超出后最久未使用的会话被淘汰，
// 其监控在淘汰回调中被停止。
type Registry struct {
	cfg corekeepalive.Config

	// opts 应用到每个新建监控的默认选项
	opts []Option

	sessions *lru.Cache[string, *Monitor]
	mu       sync.Mutex
	closed   int32
}

var _ keepaliveif.Registry = (*Registry)(nil)

// NewRegistry 创建监控注册表
//
// maxSessions 不大于 0 时使用 DefaultMaxSessions。
// opts 会应用到注册表创建的每个监控上。
func NewRegistry(cfg corekeepalive.Config, maxSessions int, opts ...Option) (*Registry, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	r := &Registry{
		cfg:  cfg,
		opts: opts,
	}

	// 淘汰回调是停止监控的唯一出口：容量淘汰、Untrack、
	// Purge 都经过这里，指标也在此处统一递减。
	sessions, err := lru.NewWithEvict[string, *Monitor](maxSessions, func(id string, m *Monitor) {
		if err := m.Stop(); err != nil {
			log.Warn("停止被移除的监控失败", "session", id, "err", err)
		}
		trackedSessions.Dec()
	})
	if err != nil {
		return nil, err
	}

	r.sessions = sessions
	return r, nil
}

// Track 为指定会话创建并启动监控
func (r *Registry) Track(ctx context.Context, sessionID string, sender keepaliveif.Sender) (keepaliveif.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// closed 必须在锁内检查：锁外通过检查后并发的 Close 可能已经
	// 清空注册表，再插入会让监控逃过 Close 继续运行
	if atomic.LoadInt32(&r.closed) == 1 {
		return nil, ErrRegistryClosed
	}

	if _, ok := r.sessions.Get(sessionID); ok {
		return nil, ErrAlreadyTracking
	}

	opts := append([]Option{WithSessionID(sessionID)}, r.opts...)
	m := New(r.cfg, sender, opts...)
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	if evicted := r.sessions.Add(sessionID, m); evicted {
		log.Debug("会话数达到上限，淘汰最久未使用的会话")
	}
	trackedSessions.Inc()

	log.Debug("开始追踪会话", "session", sessionID)
	return m, nil
}

// Get 获取指定会话的监控
func (r *Registry) Get(sessionID string) (keepaliveif.Monitor, bool) {
	m, ok := r.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return m, true
}

// Untrack 停止并移除指定会话的监控
//
// 监控的停止发生在淘汰回调中。
func (r *Registry) Untrack(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sessions.Remove(sessionID) {
		return ErrNotTracking
	}

	log.Debug("停止追踪会话", "session", sessionID)
	return nil
}

// Len 返回当前追踪的会话数
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close 停止全部监控并关闭注册表
func (r *Registry) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, key := range r.sessions.Keys() {
		if m, ok := r.sessions.Peek(key); ok {
			errs = multierr.Append(errs, m.Stop())
		}
	}
	// 已停止的监控重复 Stop 返回 nil，Purge 触发的淘汰回调无副作用
	r.sessions.Purge()

	log.Info("保活注册表已关闭")
	return errs
}
