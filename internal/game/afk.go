package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/errors"
)

// AfkFlag 新标记的挂机玩家
type AfkFlag struct {
	PlayerID string `json:"playerId"`
	Penalty  int    `json:"penalty"`
}

// RecordPlayerActivity 记录活跃时间；返回该玩家之前是否处于挂机状态
func RecordPlayerActivity(s *RoomState, playerID string, now time.Time) (*RoomState, bool, error) {
	if s.player(playerID) == nil {
		return s, false, errors.New(errors.ErrPlayerNotFound, playerID)
	}

	next := s.next()
	next.player(playerID).LastActivityAt = now
	wasAfk := next.AFKPlayers[playerID]
	delete(next.AFKPlayers, playerID)
	return next, wasAfk, nil
}

// CheckAfkPlayers 标记超过阈值未活动的在线玩家，每次标记扣一次影响力
// 没有新标记时返回原状态
func CheckAfkPlayers(s *RoomState, now time.Time) (*RoomState, []AfkFlag) {
	if !s.Playing() || s.Settings.AFKThreshold <= 0 {
		return s, nil
	}

	var idle []string
	for _, p := range s.Players {
		if p.IsConnected && !s.AFKPlayers[p.ID] && now.Sub(p.LastActivityAt) > s.Settings.AFKThreshold {
			idle = append(idle, p.ID)
		}
	}
	if len(idle) == 0 {
		return s, nil
	}

	next := s.next()
	flags := make([]AfkFlag, 0, len(idle))
	for _, id := range idle {
		next.AFKPlayers[id] = true
		penalty := -adjustInfluence(next.player(id), -next.Settings.AFKPenalty)
		flags = append(flags, AfkFlag{PlayerID: id, Penalty: penalty})
	}
	return next, flags
}

// IsActivePlayerAfk 当前行动玩家是否挂机
func IsActivePlayerAfk(s *RoomState) bool {
	return s.Playing() && s.ActivePlayerID != "" && s.AFKPlayers[s.ActivePlayerID]
}

// SkipAfkPlayerTurn 行动玩家挂机或断线时强制推进到下一回合
// 只在提案之前的阶段生效
func SkipAfkPlayerTurn(s *RoomState, now time.Time) (*RoomState, string, AdvanceResult, error) {
	if !s.Playing() {
		return s, "", AdvanceResult{}, errors.New(errors.ErrGameNotStarted)
	}
	skipped := s.ActivePlayerID
	p := s.player(skipped)
	if p == nil || (!s.AFKPlayers[skipped] && p.IsConnected) {
		return s, "", AdvanceResult{}, errors.New(errors.ErrPlayerNotAfk)
	}
	if !s.Phase.BeforeProposal() {
		return s, "", AdvanceResult{}, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}

	next, result, err := AdvanceToNextTurn(s, now)
	if err != nil {
		return s, "", AdvanceResult{}, err
	}
	return next, skipped, result, nil
}
