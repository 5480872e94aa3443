package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/history"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// EnterShowingResultsPhase 进入结果展示，等待在线且未挂机的玩家确认
func EnterShowingResultsPhase(s *RoomState, now time.Time, timeout time.Duration) (*RoomState, error) {
	if !s.Playing() {
		return s, errors.New(errors.ErrGameNotStarted)
	}
	if s.Phase != PhaseResolving {
		return s, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}

	next := s.next()
	next.Phase = PhaseShowingResults
	next.PendingAcknowledgments = make(map[string]bool)
	for _, p := range next.Players {
		if p.IsConnected && !next.AFKPlayers[p.ID] {
			next.PendingAcknowledgments[p.ID] = true
		}
	}
	next.ResultsTimeoutAt = timePtr(now.Add(timeout))
	return next, nil
}

// AcknowledgeTurnResults 确认回合结果；返回是否全部确认
func AcknowledgeTurnResults(s *RoomState, playerID string, turn int) (*RoomState, bool, error) {
	if s.Phase != PhaseShowingResults {
		return s, false, errors.Newf(errors.ErrWrongPhase, "当前阶段 %s", s.Phase)
	}
	if turn != s.CurrentTurn {
		return s, false, errors.Newf(errors.ErrTurnMismatch, "当前回合 %d", s.CurrentTurn)
	}
	if !s.PendingAcknowledgments[playerID] {
		return s, false, errors.New(errors.ErrNotPendingAck)
	}

	next := s.next()
	delete(next.PendingAcknowledgments, playerID)
	return next, len(next.PendingAcknowledgments) == 0, nil
}

// ClearShowingResultsState 清空待确认集合，返回被强制确认的玩家
func ClearShowingResultsState(s *RoomState) (*RoomState, []string) {
	forced := s.PendingAcknowledgmentIDs()
	next := s.next()
	next.PendingAcknowledgments = make(map[string]bool)
	next.ResultsTimeoutAt = nil
	return next, forced
}

// AdvanceResult 推进回合的结果
type AdvanceResult struct {
	Collapsed    bool                 `json:"collapsed"`
	Reason       rules.CollapseReason `json:"reason,omitempty"`
	WinnerID     string               `json:"winnerId,omitempty"`
	NextPlayerID string               `json:"nextPlayerId,omitempty"`
	Turn         int                  `json:"turn"`
}

// Over 是否终局
func (r AdvanceResult) Over() bool {
	return r.Collapsed || r.WinnerID != ""
}

// AdvanceToNextTurn 先判崩溃，再判胜利，否则轮到下一位在线玩家
func AdvanceToNextTurn(s *RoomState, now time.Time) (*RoomState, AdvanceResult, error) {
	if !s.Playing() {
		if s.Over() {
			return s, AdvanceResult{}, errors.New(errors.ErrGameOver)
		}
		return s, AdvanceResult{}, errors.New(errors.ErrGameNotStarted)
	}

	next := s.next()
	next.clearTurnState()

	end := rules.EvaluateEnd(next.Nation, next.standings(), next.Settings.PathLength, next.Settings.Thresholds)
	switch {
	case end.Collapsed:
		next.Status = StatusCollapsed
		next.Phase = PhaseCollapsed
		next.CollapseReason = end.Reason
		return next, AdvanceResult{Collapsed: true, Reason: end.Reason, Turn: next.CurrentTurn}, nil
	case end.WinnerID != "":
		next.Status = StatusFinished
		next.Phase = PhaseFinished
		next.Winner = end.WinnerID
		return next, AdvanceResult{WinnerID: end.WinnerID, Turn: next.CurrentTurn}, nil
	}

	next.ActivePlayerID = next.nextActivePlayer()
	next.CurrentTurn++
	next.Phase = PhaseWaiting
	for i := range next.Players {
		p := &next.Players[i]
		if p.IsConnected && !next.AFKPlayers[p.ID] {
			adjustInfluence(p, next.Settings.InfluencePerTurn)
		}
	}
	return next, AdvanceResult{NextPlayerID: next.ActivePlayerID, Turn: next.CurrentTurn}, nil
}

// clearTurnState 清除单回合的临时字段
func (s *RoomState) clearTurnState() {
	s.CurrentCard = nil
	s.CurrentProposal = ""
	s.PendingVotes = make(map[string]rules.Vote)
	s.PendingAcknowledgments = make(map[string]bool)
	s.LastRoll = nil
	s.TimerEndAt = nil
	s.ResultsTimeoutAt = nil
}

// nextActivePlayer 按加入顺序找当前玩家之后的下一位在线玩家
func (s *RoomState) nextActivePlayer() string {
	n := len(s.Players)
	if n == 0 {
		return ""
	}
	start := s.indexOf(s.ActivePlayerID)
	for step := 1; step <= n; step++ {
		p := s.Players[(start+step+n)%n]
		if p.IsConnected {
			return p.ID
		}
	}
	// 无人在线时仍按顺序轮转
	return s.Players[(start+1+n)%n].ID
}

// RecordTurnHistory 写入当前回合的历史记录（同一回合覆盖）
func RecordTurnHistory(s *RoomState, now time.Time) (*RoomState, history.Entry, error) {
	r := s.LastResolution
	if r == nil || r.Turn != s.CurrentTurn {
		return s, history.Entry{}, errors.Newf(errors.ErrWrongPhase, "回合 %d 尚未结算", s.CurrentTurn)
	}

	in := history.Input{
		Turn:             r.Turn,
		ActivePlayerID:   r.ActivePlayerID,
		OptionID:         r.OptionID,
		Votes:            r.Votes,
		NationBefore:     r.NationBefore,
		NationAfter:      r.NationAfter,
		Movements:        r.Movements,
		InfluenceChanges: r.InfluenceChanges,
		RecordedAt:       now,
	}
	if s.CurrentCard != nil {
		in.CardID = s.CurrentCard.ID
		in.CardTitle = s.CurrentCard.Title
		if o, ok := s.CurrentCard.Option(r.OptionID); ok {
			in.OptionLabel = o.Label
		}
	}

	entry := history.NewEntry(in)
	next := s.next()
	next.History = next.History.Upsert(entry)
	return next, entry, nil
}
