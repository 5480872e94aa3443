package rules

import (
	"crypto/rand"
	"math/big"
)

// Roller 骰子接口
type Roller interface {
	// Roll 返回 [1, sides] 内的均匀随机数
	Roll(sides int) int
}

// RollerFunc 函数适配器
type RollerFunc func(sides int) int

// Roll 实现 Roller
func (f RollerFunc) Roll(sides int) int {
	return f(sides)
}

// CryptoRoller 加密安全的骰子
type CryptoRoller struct{}

// NewCryptoRoller 创建加密骰子
func NewCryptoRoller() *CryptoRoller {
	return &CryptoRoller{}
}

// Roll 生成 [1, sides] 的随机整数
func (CryptoRoller) Roll(sides int) int {
	if sides < 2 {
		return 1
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(sides)))
	if err != nil {
		return 1
	}
	return 1 + int(n.Int64())
}

// DiceModifier 根据国家状态计算骰子修正，结果限制在 [-1, +1]
func DiceModifier(n Nation, t Thresholds) int {
	mod := 0
	if n.Budget >= t.HighBudget {
		mod++
	} else if n.Budget <= t.LowBudget {
		mod--
	}
	if n.Stability >= t.HighStability {
		mod++
	} else if n.Stability <= t.LowStability {
		mod--
	}
	return clamp(mod, -1, 1)
}

// ModifiedRoll 修正后的点数，不小于 0
func ModifiedRoll(roll int, n Nation, t Thresholds) int {
	v := roll + DiceModifier(n, t)
	if v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
