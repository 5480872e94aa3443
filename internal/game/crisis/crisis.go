// Package crisis 危机事件：触发判定、贡献记账与结算
package crisis

import (
	"math"

	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// Severity 危机严重程度
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Dimension 危机针对的国家维度
type Dimension string

const (
	DimensionBudget    Dimension = "budget"
	DimensionStability Dimension = "stability"
)

// Definition 危机定义（来自内容目录）
type Definition struct {
	ID                       string                     `json:"id" yaml:"id"`
	Title                    string                     `json:"title" yaml:"title"`
	Description              string                     `json:"description" yaml:"description"`
	Severity                 Severity                   `json:"severity" yaml:"severity"`
	Dimension                Dimension                  `json:"dimension" yaml:"dimension"`
	ContributionThreshold    int                        `json:"contributionThreshold" yaml:"contribution_threshold"`
	MaxContributionPerPlayer int                        `json:"maxContributionPerPlayer" yaml:"max_contribution_per_player"`
	SuccessEffect            rules.Delta                `json:"successEffect" yaml:"success_effect"`
	FailureEffect            rules.Delta                `json:"failureEffect" yaml:"failure_effect"`
	IdeologyBonus            map[rules.Ideology]float64 `json:"ideologyBonus,omitempty" yaml:"ideology_bonus"`
}

// Multiplier 某意识形态的贡献倍率，未配置时为 1
func (d Definition) Multiplier(i rules.Ideology) float64 {
	if m, ok := d.IdeologyBonus[i]; ok && m > 0 {
		return m
	}
	return 1
}

// Crisis 进行中的危机
type Crisis struct {
	ID             string         `json:"id"`
	Definition     Definition     `json:"definition"`
	Contributions  map[string]int `json:"contributions"`
	EffectiveTotal int            `json:"effectiveTotal"`
	TurnsRemaining int            `json:"turnsRemaining"`
	TriggeredTurn  int            `json:"triggeredTurn"`
	Resolved       bool           `json:"resolved"`
}

// New 创建危机实例
func New(id string, def Definition, turn, duration int) *Crisis {
	return &Crisis{
		ID:             id,
		Definition:     def,
		Contributions:  make(map[string]int),
		TurnsRemaining: duration,
		TriggeredTurn:  turn,
	}
}

// Clone 深拷贝
func (c *Crisis) Clone() *Crisis {
	if c == nil {
		return nil
	}
	out := *c
	out.Contributions = make(map[string]int, len(c.Contributions))
	for k, v := range c.Contributions {
		out.Contributions[k] = v
	}
	if c.Definition.IdeologyBonus != nil {
		out.Definition.IdeologyBonus = make(map[rules.Ideology]float64, len(c.Definition.IdeologyBonus))
		for k, v := range c.Definition.IdeologyBonus {
			out.Definition.IdeologyBonus[k] = v
		}
	}
	return &out
}

// ThresholdMet 有效贡献是否达到阈值
func (c *Crisis) ThresholdMet() bool {
	return c != nil && c.EffectiveTotal >= c.Definition.ContributionThreshold
}

// RawTotal 原始贡献总数
func (c *Crisis) RawTotal() int {
	total := 0
	for _, v := range c.Contributions {
		total += v
	}
	return total
}

// Remaining 玩家剩余可贡献额度
func (c *Crisis) Remaining(playerID string) int {
	left := c.Definition.MaxContributionPerPlayer - c.Contributions[playerID]
	if left < 0 {
		return 0
	}
	return left
}

// ShouldTrigger 国家任一维度跌破危险阈值且当前没有未解决危机
func ShouldTrigger(n rules.Nation, danger int, active *Crisis) bool {
	if active != nil && !active.Resolved {
		return false
	}
	return n.Budget <= danger || n.Stability <= danger
}

// EndangeredDimension 更危险的维度，稳定度优先
func EndangeredDimension(n rules.Nation) Dimension {
	if n.Stability <= n.Budget {
		return DimensionStability
	}
	return DimensionBudget
}

// Select 按危险维度挑选危机定义，同维度多个定义时按回合轮换
func Select(n rules.Nation, catalog []Definition, turn int) (Definition, bool) {
	if len(catalog) == 0 {
		return Definition{}, false
	}
	dim := EndangeredDimension(n)
	var matches []Definition
	for _, def := range catalog {
		if def.Dimension == dim {
			matches = append(matches, def)
		}
	}
	if len(matches) == 0 {
		matches = catalog
	}
	if turn < 0 {
		turn = -turn
	}
	return matches[turn%len(matches)], true
}

// ContributionResult 一次贡献的结果
type ContributionResult struct {
	PlayerID       string `json:"playerId"`
	Amount         int    `json:"amount"`
	Effective      int    `json:"effective"`
	PlayerTotal    int    `json:"playerTotal"`
	EffectiveTotal int    `json:"effectiveTotal"`
	Threshold      int    `json:"threshold"`
	ThresholdMet   bool   `json:"thresholdMet"`
}

// Contribute 记入一次贡献；校验失败时不修改危机
func Contribute(c *Crisis, playerID string, ideology rules.Ideology, influence, amount int) (ContributionResult, error) {
	if c == nil {
		return ContributionResult{}, errors.New(errors.ErrNoActiveCrisis)
	}
	if c.Resolved {
		return ContributionResult{}, errors.New(errors.ErrCrisisResolved)
	}
	if amount <= 0 {
		return ContributionResult{}, errors.Newf(errors.ErrInvalidContribution, "amount=%d", amount)
	}
	if amount > c.Remaining(playerID) {
		return ContributionResult{}, errors.Newf(errors.ErrContributionCap, "剩余额度 %d", c.Remaining(playerID))
	}
	if amount > influence {
		return ContributionResult{}, errors.Newf(errors.ErrInsufficientInfluence, "需要 %d，当前 %d", amount, influence)
	}

	effective := int(math.Floor(float64(amount) * c.Definition.Multiplier(ideology)))
	c.Contributions[playerID] += amount
	c.EffectiveTotal += effective

	return ContributionResult{
		PlayerID:       playerID,
		Amount:         amount,
		Effective:      effective,
		PlayerTotal:    c.Contributions[playerID],
		EffectiveTotal: c.EffectiveTotal,
		Threshold:      c.Definition.ContributionThreshold,
		ThresholdMet:   c.ThresholdMet(),
	}, nil
}

// AdvanceTurn 倒计时减一，返回剩余回合
func AdvanceTurn(c *Crisis) int {
	if c == nil || c.Resolved {
		return 0
	}
	if c.TurnsRemaining > 0 {
		c.TurnsRemaining--
	}
	return c.TurnsRemaining
}

// NeedsResolution 达到阈值或倒计时归零都需要结算
func NeedsResolution(c *Crisis) bool {
	if c == nil || c.Resolved {
		return false
	}
	return c.ThresholdMet() || c.TurnsRemaining <= 0
}

// Outcome 危机结算结果
type Outcome struct {
	CrisisID       string         `json:"crisisId"`
	DefinitionID   string         `json:"definitionId"`
	Title          string         `json:"title"`
	Success        bool           `json:"success"`
	Result         string         `json:"outcome"`
	Effect         rules.Delta    `json:"effect"`
	EffectiveTotal int            `json:"effectiveTotal"`
	Threshold      int            `json:"threshold"`
	Contributions  map[string]int `json:"contributions"`
	Turn           int            `json:"turn"`
}

// Resolve 结算危机：有效贡献达到阈值即成功
func Resolve(c *Crisis, turn int) (Outcome, error) {
	if c == nil {
		return Outcome{}, errors.New(errors.ErrNoActiveCrisis)
	}
	if c.Resolved {
		return Outcome{}, errors.New(errors.ErrCrisisResolved)
	}

	success := c.ThresholdMet()
	out := Outcome{
		CrisisID:       c.ID,
		DefinitionID:   c.Definition.ID,
		Title:          c.Definition.Title,
		Success:        success,
		Result:         "failure",
		Effect:         c.Definition.FailureEffect,
		EffectiveTotal: c.EffectiveTotal,
		Threshold:      c.Definition.ContributionThreshold,
		Contributions:  make(map[string]int, len(c.Contributions)),
		Turn:           turn,
	}
	if success {
		out.Result = "success"
		out.Effect = c.Definition.SuccessEffect
	}
	for k, v := range c.Contributions {
		out.Contributions[k] = v
	}
	c.Resolved = true
	return out, nil
}
