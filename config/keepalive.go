// Package config 提供统一的配置管理
package config

import (
	"fmt"
	"time"
)

// KeepaliveConfig 保活探测配置
//
// 控制探测间隔自调节的边界、采样窗口与在途探测的回收年龄，
// 以及会话注册表的容量上限。
type KeepaliveConfig struct {
	// MinPingSpacing 探测间隔下限
	// 自调节过程不会把间隔压到此值以下
	// 默认值: 100ms
	MinPingSpacing Duration `json:"min_ping_spacing"`

	// MaxPingSpacing 探测间隔上限
	// 自调节过程不会把间隔放宽到此值以上
	// 默认值: 20s
	MaxPingSpacing Duration `json:"max_ping_spacing"`

	// MaxSampleAge RTT 采样的最大保留年龄
	// 超龄采样在超时回调中被回收
	// 默认值: 2m
	MaxSampleAge Duration `json:"max_sample_age"`

	// MaxPingAge 在途探测的最大等待年龄
	// 超龄的未应答探测在超时回调中被回收
	// 默认值: 15s
	MaxPingAge Duration `json:"max_ping_age"`

	// MaxSessions 注册表同时追踪的会话数上限
	// 超出后最久未使用的会话监控器被停止并淘汰
	// 默认值: 1024
	MaxSessions int `json:"max_sessions"`
}

// DefaultKeepaliveConfig 返回默认的保活配置
func DefaultKeepaliveConfig() KeepaliveConfig {
	return KeepaliveConfig{
		MinPingSpacing: Duration(100 * time.Millisecond),
		MaxPingSpacing: Duration(20 * time.Second),
		MaxSampleAge:   Duration(2 * time.Minute),
		MaxPingAge:     Duration(15 * time.Second),
		MaxSessions:    1024,
	}
}

// Validate 验证保活配置的有效性
func (c *KeepaliveConfig) Validate() error {
	if c.MinPingSpacing <= 0 {
		return fmt.Errorf("keepalive: min_ping_spacing must be positive")
	}
	if c.MaxPingSpacing < c.MinPingSpacing {
		return fmt.Errorf("keepalive: max_ping_spacing must be >= min_ping_spacing")
	}
	if c.MaxSampleAge <= 0 {
		return fmt.Errorf("keepalive: max_sample_age must be positive")
	}
	if c.MaxPingAge <= 0 {
		return fmt.Errorf("keepalive: max_ping_age must be positive")
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("keepalive: max_sessions must be >= 1")
	}
	return nil
}
