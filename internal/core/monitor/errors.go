package monitor

import "errors"

// 监控层相关错误
var (
	// ErrMonitorClosed 监控已停止
	ErrMonitorClosed = errors.New("keepalive monitor closed")

	// ErrAlreadyStarted 监控已启动
	ErrAlreadyStarted = errors.New("keepalive monitor already started")

	// ErrAlreadyTracking 会话已在追踪中
	ErrAlreadyTracking = errors.New("session already tracked")

	// ErrNotTracking 会话未被追踪
	ErrNotTracking = errors.New("session not tracked")

	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = errors.New("keepalive registry closed")
)
