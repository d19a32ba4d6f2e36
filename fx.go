package keepalive

import (
	"go.uber.org/fx"

	coremonitor "github.com/dep2p/go-keepalive/internal/core/monitor"
)

// Module 返回保活模块的 fx 配置
//
// 依赖 config.KeepaliveConfig，提供命名为 "keepalive" 的
// interfaces.Registry，并在应用停止时关闭注册表。
//
// 使用示例：
//
//	app := fx.New(
//	    fx.Supply(config.DefaultKeepaliveConfig()),
//	    keepalive.Module(),
//	)
func Module() fx.Option {
	return coremonitor.Module()
}
