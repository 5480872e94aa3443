package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/crisis"
)

// ShouldTriggerCrisis 国家跌破危险阈值且没有进行中的危机
func ShouldTriggerCrisis(s *RoomState) bool {
	return s.Playing() && crisis.ShouldTrigger(s.Nation, s.Settings.CrisisDangerThreshold, s.ActiveCrisis)
}

// EnterCrisisPhase 触发危机并进入危机阶段
func EnterCrisisPhase(s *RoomState, id string, def crisis.Definition, now time.Time, window time.Duration) (*RoomState, *crisis.Crisis, error) {
	if !s.Playing() {
		return s, nil, errors.New(errors.ErrGameNotStarted)
	}
	if s.ActiveCrisis != nil && !s.ActiveCrisis.Resolved {
		return s, nil, errors.New(errors.ErrWrongPhase, "已有进行中的危机")
	}

	next := s.next()
	next.clearTurnState()
	next.Phase = PhaseCrisis
	next.ActiveCrisis = crisis.New(id, def, next.CurrentTurn, next.Settings.CrisisDurationTurns)
	next.TimerEndAt = timePtr(now.Add(window))
	return next, next.ActiveCrisis.Clone(), nil
}

// ContributeToCrisis 玩家向危机投入影响力
func ContributeToCrisis(s *RoomState, playerID string, amount int) (*RoomState, crisis.ContributionResult, error) {
	if !s.Playing() {
		return s, crisis.ContributionResult{}, errors.New(errors.ErrGameNotStarted)
	}
	p := s.player(playerID)
	if p == nil {
		return s, crisis.ContributionResult{}, errors.New(errors.ErrPlayerNotFound, playerID)
	}
	if s.ActiveCrisis == nil {
		return s, crisis.ContributionResult{}, errors.New(errors.ErrNoActiveCrisis)
	}

	next := s.next()
	result, err := crisis.Contribute(next.ActiveCrisis, playerID, p.Ideology, p.Influence, amount)
	if err != nil {
		return s, crisis.ContributionResult{}, err
	}
	adjustInfluence(next.player(playerID), -amount)
	return next, result, nil
}

// AdvanceCrisisTurn 危机倒计时减一；返回剩余回合和是否需要结算
func AdvanceCrisisTurn(s *RoomState) (*RoomState, int, bool, error) {
	if s.ActiveCrisis == nil {
		return s, 0, false, errors.New(errors.ErrNoActiveCrisis)
	}
	next := s.next()
	remaining := crisis.AdvanceTurn(next.ActiveCrisis)
	return next, remaining, crisis.NeedsResolution(next.ActiveCrisis), nil
}

// ResolveCrisisEvent 结算危机：应用成功或失败效果并清除危机
// 没有危机时返回错误且不修改状态
func ResolveCrisisEvent(s *RoomState) (*RoomState, crisis.Outcome, error) {
	if s.ActiveCrisis == nil {
		return s, crisis.Outcome{}, errors.New(errors.ErrNoActiveCrisis)
	}

	next := s.next()
	outcome, err := crisis.Resolve(next.ActiveCrisis, next.CurrentTurn)
	if err != nil {
		return s, crisis.Outcome{}, err
	}
	next.Nation = next.Nation.Apply(outcome.Effect)
	next.ActiveCrisis = nil
	next.CrisisHistory = append(next.CrisisHistory, outcome)
	return next, outcome, nil
}
