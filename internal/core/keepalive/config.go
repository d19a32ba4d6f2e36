package keepalive

import (
	"time"

	"github.com/dep2p/go-keepalive/config"
)

// ============================================================================
//                              引擎配置
// ============================================================================

// 默认调参常量
const (
	// DefaultMinPingSpacing 默认探测间隔下限
	DefaultMinPingSpacing = 100 * time.Millisecond

	// DefaultMaxPingSpacing 默认探测间隔上限
	DefaultMaxPingSpacing = 20 * time.Second

	// DefaultMaxSampleAge 默认采样最大保留年龄
	DefaultMaxSampleAge = 2 * time.Minute

	// DefaultMaxPingAge 默认在途探测最大等待年龄
	DefaultMaxPingAge = 15 * time.Second
)

// 回收下限：按年龄回收永远不会让数据完全清空，
// 避免估计彻底丢失后的调参震荡。
const (
	// minRetainedSamples 回收后至少保留的采样数
	minRetainedSamples = 3

	// minRetainedPings 回收后至少保留的在途探测数
	minRetainedPings = 1
)

// Config 追踪器引擎配置
//
// 纯内存调参值；JSON 配置层见 config.KeepaliveConfig。
type Config struct {
	// MinPingSpacing 探测间隔下限
	MinPingSpacing time.Duration

	// MaxPingSpacing 探测间隔上限
	MaxPingSpacing time.Duration

	// MaxSampleAge 采样最大保留年龄
	MaxSampleAge time.Duration

	// MaxPingAge 在途探测最大等待年龄
	MaxPingAge time.Duration
}

// DefaultConfig 返回默认引擎配置
func DefaultConfig() Config {
	return Config{
		MinPingSpacing: DefaultMinPingSpacing,
		MaxPingSpacing: DefaultMaxPingSpacing,
		MaxSampleAge:   DefaultMaxSampleAge,
		MaxPingAge:     DefaultMaxPingAge,
	}
}

// FromConfig 将 JSON 配置转换为引擎配置
func FromConfig(c config.KeepaliveConfig) Config {
	return Config{
		MinPingSpacing: c.MinPingSpacing.Duration(),
		MaxPingSpacing: c.MaxPingSpacing.Duration(),
		MaxSampleAge:   c.MaxSampleAge.Duration(),
		MaxPingAge:     c.MaxPingAge.Duration(),
	}
}

// withDefaults 用默认值补齐未设置的字段
func (c Config) withDefaults() Config {
	if c.MinPingSpacing <= 0 {
		c.MinPingSpacing = DefaultMinPingSpacing
	}
	if c.MaxPingSpacing <= 0 {
		c.MaxPingSpacing = DefaultMaxPingSpacing
	}
	if c.MaxPingSpacing < c.MinPingSpacing {
		c.MaxPingSpacing = c.MinPingSpacing
	}
	if c.MaxSampleAge <= 0 {
		c.MaxSampleAge = DefaultMaxSampleAge
	}
	if c.MaxPingAge <= 0 {
		c.MaxPingAge = DefaultMaxPingAge
	}
	return c
}
