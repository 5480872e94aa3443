package rules

// MovementInput 单个玩家的移动计算输入
type MovementInput struct {
	IsActive       bool
	Roll           int
	Ideology       Ideology
	Influence      int
	Aligned        []Ideology
	Opposed        []Ideology
	ProposalPassed bool
	Nation         Nation
}

// Movement 移动明细
type Movement struct {
	Dice              int `json:"dice"`
	AlignedBonus      int `json:"alignedBonus"`
	OpposedPenalty    int `json:"opposedPenalty"`
	NationModifier    int `json:"nationModifier"`
	InfluenceModifier int `json:"influenceModifier"`
	Total             int `json:"total"`
}

// CalculateMovement 计算一名玩家本回合的移动
// 骰子只计入行动玩家；意识形态加成只在提案通过时生效
func CalculateMovement(in MovementInput, t Thresholds) Movement {
	var m Movement
	if in.IsActive {
		m.Dice = in.Roll
	}
	if in.ProposalPassed {
		if Contains(in.Aligned, in.Ideology) {
			m.AlignedBonus = t.AlignedBonus
		}
		if Contains(in.Opposed, in.Ideology) {
			m.OpposedPenalty = t.OpposedPenalty
		}
	}
	m.NationModifier = DiceModifier(in.Nation, t)
	if t.InfluenceBonusThreshold > 0 && in.Influence >= t.InfluenceBonusThreshold {
		m.InfluenceModifier = 1
	}
	m.Total = m.Dice + m.AlignedBonus - m.OpposedPenalty + m.NationModifier + m.InfluenceModifier
	return m
}

// ApplyMovement 应用移动，位置限制在 [0, pathLength]
func ApplyMovement(position, delta, pathLength int) int {
	return clamp(position+delta, 0, pathLength)
}
