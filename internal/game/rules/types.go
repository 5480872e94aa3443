// Package rules 纯计算规则：骰子修正、移动、投票计票、崩溃与胜利判定
package rules

import "time"

// Ideology 意识形态
type Ideology string

const (
	IdeologyProgressive      Ideology = "progressive"      // 进步派
	IdeologyConservative     Ideology = "conservative"     // 保守派
	IdeologyLibertarian      Ideology = "libertarian"      // 自由意志派
	IdeologyNationalist      Ideology = "nationalist"      // 民族主义
	IdeologyEnvironmentalist Ideology = "environmentalist" // 环保派
	IdeologyPopulist         Ideology = "populist"         // 民粹派
)

var allIdeologies = []Ideology{
	IdeologyProgressive,
	IdeologyConservative,
	IdeologyLibertarian,
	IdeologyNationalist,
	IdeologyEnvironmentalist,
	IdeologyPopulist,
}

// AllIdeologies 返回全部意识形态（固定顺序）
func AllIdeologies() []Ideology {
	out := make([]Ideology, len(allIdeologies))
	copy(out, allIdeologies)
	return out
}

// Valid 是否为已知意识形态
func (i Ideology) Valid() bool {
	for _, known := range allIdeologies {
		if i == known {
			return true
		}
	}
	return false
}

// Contains 判断列表中是否包含该意识形态
func Contains(list []Ideology, i Ideology) bool {
	if i == "" {
		return false
	}
	for _, item := range list {
		if item == i {
			return true
		}
	}
	return false
}

// Nation 国家状态（预算与稳定度，允许为负）
type Nation struct {
	Budget    int `json:"budget"`
	Stability int `json:"stability"`
}

// Apply 叠加变化量
func (n Nation) Apply(d Delta) Nation {
	return Nation{Budget: n.Budget + d.Budget, Stability: n.Stability + d.Stability}
}

// Delta 国家状态变化量
type Delta struct {
	Budget    int `json:"budget" yaml:"budget"`
	Stability int `json:"stability" yaml:"stability"`
}

// Diff 计算 after - before
func Diff(before, after Nation) Delta {
	return Delta{Budget: after.Budget - before.Budget, Stability: after.Stability - before.Stability}
}

// VoteChoice 投票选项
type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

// Valid 是否为合法投票选项
func (c VoteChoice) Valid() bool {
	return c == VoteYes || c == VoteNo || c == VoteAbstain
}

// Vote 一张选票
type Vote struct {
	PlayerID       string     `json:"playerId"`
	Choice         VoteChoice `json:"choice"`
	InfluenceSpent int        `json:"influenceSpent"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Weight 票权 = 1 + 投入影响力
func (v Vote) Weight() int {
	return 1 + v.InfluenceSpent
}

// Thresholds 规则阈值，数值全部来自配置
type Thresholds struct {
	HighBudget              int
	LowBudget               int
	HighStability           int
	LowStability            int
	CollapseThreshold       int
	VictoryMinInfluence     int
	AlignedBonus            int
	OpposedPenalty          int
	InfluenceBonusThreshold int
}

// DefaultThresholds 默认阈值（与配置默认值一致）
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighBudget:              10,
		LowBudget:               -3,
		HighStability:           10,
		LowStability:            -3,
		CollapseThreshold:       -5,
		VictoryMinInfluence:     5,
		AlignedBonus:            2,
		OpposedPenalty:          1,
		InfluenceBonusThreshold: 8,
	}
}
