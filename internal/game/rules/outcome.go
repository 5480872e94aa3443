package rules

// CollapseReason 崩溃原因
type CollapseReason string

const (
	CollapseStability CollapseReason = "stability"
	CollapseBudget    CollapseReason = "budget"
)

// CheckCollapse 先检查稳定度，再检查预算
func CheckCollapse(n Nation, t Thresholds) (CollapseReason, bool) {
	if n.Stability <= t.CollapseThreshold {
		return CollapseStability, true
	}
	if n.Budget <= t.CollapseThreshold {
		return CollapseBudget, true
	}
	return "", false
}

// Standing 玩家当前排名数据
type Standing struct {
	PlayerID  string
	Position  int
	Influence int
	JoinOrder int
}

// CheckVictory 到达终点且影响力达标的玩家中影响力最高者获胜，平局按加入顺序
func CheckVictory(standings []Standing, pathLength, minInfluence int) (string, bool) {
	var winner *Standing
	for i := range standings {
		s := &standings[i]
		if s.Position < pathLength || s.Influence < minInfluence {
			continue
		}
		if winner == nil ||
			s.Influence > winner.Influence ||
			(s.Influence == winner.Influence && s.JoinOrder < winner.JoinOrder) {
			winner = s
		}
	}
	if winner == nil {
		return "", false
	}
	return winner.PlayerID, true
}

// EndResult 终局判定结果
type EndResult struct {
	Collapsed bool
	Reason    CollapseReason
	WinnerID  string
}

// Over 是否终局
func (r EndResult) Over() bool {
	return r.Collapsed || r.WinnerID != ""
}

// EvaluateEnd 崩溃优先于胜利
func EvaluateEnd(n Nation, standings []Standing, pathLength int, t Thresholds) EndResult {
	if reason, ok := CheckCollapse(n, t); ok {
		return EndResult{Collapsed: true, Reason: reason}
	}
	if winner, ok := CheckVictory(standings, pathLength, t.VictoryMinInfluence); ok {
		return EndResult{WinnerID: winner}
	}
	return EndResult{}
}
