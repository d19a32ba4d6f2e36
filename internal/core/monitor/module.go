package monitor

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-keepalive/config"
	corekeepalive "github.com/dep2p/go-keepalive/internal/core/keepalive"
	keepaliveif "github.com/dep2p/go-keepalive/pkg/interfaces/keepalive"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// Config 保活配置
	Config config.KeepaliveConfig
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	// Registry 保活监控注册表
	Registry keepaliveif.Registry `name:"keepalive"`
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := input.Config
	if err := cfg.Validate(); err != nil {
		return ModuleOutput{}, err
	}

	registry, err := NewRegistry(corekeepalive.FromConfig(cfg), cfg.MaxSessions)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Registry: registry,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("keepalive",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In

	LC       fx.Lifecycle
	Registry keepaliveif.Registry `name:"keepalive"`
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			log.Info("保活模块停止")
			return input.Registry.Close()
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	// Version 模块版本
	Version = "1.0.0"
	// Name 模块名称
	Name = "keepalive"
	// Description 模块描述
	Description = "保活探测调度与 RTT 测量模块"
)
