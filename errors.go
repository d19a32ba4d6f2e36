package keepalive

import (
	coremonitor "github.com/dep2p/go-keepalive/internal/core/monitor"
)

// 公共错误定义（监控层）
var (
	// ErrMonitorClosed 监控已停止
	ErrMonitorClosed = coremonitor.ErrMonitorClosed

	// ErrAlreadyStarted 监控已启动
	ErrAlreadyStarted = coremonitor.ErrAlreadyStarted

	// ErrAlreadyTracking 会话已在追踪中
	ErrAlreadyTracking = coremonitor.ErrAlreadyTracking

	// ErrNotTracking 会话未被追踪
	ErrNotTracking = coremonitor.ErrNotTracking

	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = coremonitor.ErrRegistryClosed
)
