package keepalive

import (
	"github.com/dep2p/go-keepalive/pkg/types"
)

// ============================================================================
//                              窗口统计
// ============================================================================

// 统计量以微秒（均值）和微秒²（方差）为单位，
// 全程使用受检 int64 运算；任何一步溢出都放弃本次重算。

// checkedAdd 受检加法
func checkedAdd(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

// checkedMul 受检乘法
func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/a != b {
		return 0, false
	}
	return product, true
}

// windowStats 计算采样窗口的均值与样本方差
//
// 返回 ok == false 表示求和过程中发生溢出，调用方应将统计量清零
// 而不是传播错误：RTT 估计只是参考值，不是正确性关键数据。
//
// n == 0 时均值与方差为 0；n == 1 时方差为 0；
// 其余情况使用 Bessel 校正（除以 n-1）的样本方差。
func windowStats(samples []types.Sample) (mean, variance int64, ok bool) {
	n := int64(len(samples))
	if n == 0 {
		return 0, 0, true
	}

	var sum int64
	for _, s := range samples {
		sum, ok = checkedAdd(sum, s.RTT.Microseconds())
		if !ok {
			return 0, 0, false
		}
	}
	mean = sum / n

	if n == 1 {
		return mean, 0, true
	}

	var sumSq int64
	for _, s := range samples {
		dev := s.RTT.Microseconds() - mean
		sq, mulOK := checkedMul(dev, dev)
		if !mulOK {
			return 0, 0, false
		}
		sumSq, ok = checkedAdd(sumSq, sq)
		if !ok {
			return 0, 0, false
		}
	}
	variance = sumSq / (n - 1)

	return mean, variance, true
}
