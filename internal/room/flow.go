package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/rules"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/protocol"
	"go.uber.org/zap"
)

// turnTimers 一局之内由阶段推进的计时器，终局时全部取消
var turnTimers = []TimerKind{
	TimerAFKPoll,
	TimerResultsTimeout,
	TimerCrisisResolve,
	TimerCrisisContinue,
	TimerCrisisWindow,
	TimerDeliberation,
}

// handleTimer 处理已认领的计时器事件
func (r *Room) handleTimer(kind TimerKind) {
	switch kind {
	case TimerRoomExpiry:
		r.teardown("expired")
	case TimerAFKPoll:
		r.pollAfk()
	case TimerResultsTimeout:
		if r.state.Phase == game.PhaseShowingResults {
			r.completeResults()
		}
	case TimerDeliberation:
		next, err := game.EndDeliberation(r.state)
		if err != nil {
			return
		}
		r.state = next
		r.syncAll()
	case TimerCrisisWindow:
		// 窗口关闭仍未解决：继续游戏，危机按回合倒计时
		if r.awaitingCrisis && r.state.ActiveCrisis != nil {
			r.awaitingCrisis = false
			r.advanceTurn()
		}
	case TimerCrisisResolve:
		r.resolveCrisis()
	case TimerCrisisContinue:
		r.awaitingCrisis = false
		r.advanceTurn()
	}
}

// pollAfk 周期性挂机检测，结果展示阶段不处理
func (r *Room) pollAfk() {
	if !r.state.Playing() {
		return
	}
	r.timers.Arm(TimerAFKPoll, r.opts.Timers.AFKPoll)
	if r.state.Phase == game.PhaseShowingResults {
		return
	}

	next, flags := game.CheckAfkPlayers(r.state, r.opts.Now())
	r.state = next
	for _, f := range flags {
		r.log.Info("玩家挂机", zap.String("player_id", f.PlayerID), zap.Int("penalty", f.Penalty))
		r.broadcast(protocol.New(protocol.TypePlayerAfk, protocol.PlayerAfk{
			PlayerID: f.PlayerID,
			Penalty:  f.Penalty,
		}), "")
	}

	switch {
	case game.IsActivePlayerAfk(r.state) && r.state.Phase.BeforeProposal():
		r.skipTurn("afk")
	case len(flags) > 0 && game.AllVotesIn(r.state):
		r.resolveTurn()
	}
}

// resolveTurn 揭晓投票、结算令牌、写历史并进入结果展示
func (r *Room) resolveTurn() {
	now := r.opts.Now()
	next, res, err := game.ResolveVotes(r.state)
	if err != nil {
		r.log.Error("结算投票失败", zap.Error(err))
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeVotesRevealed, protocol.VotesRevealed{
		Votes:        res.Votes,
		TotalYes:     res.Tally.TotalYes,
		TotalNo:      res.Tally.TotalNo,
		TotalAbstain: res.Tally.TotalAbstain,
		Passed:       res.Tally.Passed,
	}), "")

	next, deals, err := game.ResolveDeals(r.state, res.Votes, res.ActivePlayerID, res.Tally.Passed)
	if err != nil {
		r.log.Error("结算支持令牌失败", zap.Error(err))
	} else {
		r.state = next
		for _, d := range deals {
			r.broadcast(protocol.New(protocol.TypeDealResolved, protocol.DealResolved{
				TokenID:  d.TokenID,
				Status:   d.Status,
				OwnerID:  d.OwnerID,
				HolderID: d.HolderID,
			}), "")
		}
	}

	res = r.state.LastResolution
	r.broadcast(protocol.New(protocol.TypeTurnResolved, protocol.TurnResolved{
		Turn:             res.Turn,
		Passed:           res.Tally.Passed,
		NationChanges:    rules.Diff(res.NationBefore, res.NationAfter),
		Nation:           r.state.Nation,
		Movements:        res.Movements,
		InfluenceChanges: res.InfluenceChanges,
	}), "")
	logger.LogGameEvent(r.log, "turn_resolved", r.code, res.Turn,
		zap.String("option", res.OptionID),
		zap.Bool("passed", res.Tally.Passed),
		zap.String("margin", res.Tally.Margin()))

	if next, _, err := game.RecordTurnHistory(r.state, now); err != nil {
		r.log.Error("写入回合历史失败", zap.Error(err))
	} else {
		r.state = next
	}

	next, err = game.EnterShowingResultsPhase(r.state, now, r.opts.Timers.ResultsTimeout)
	if err != nil {
		r.log.Error("进入结果展示失败", zap.Error(err))
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeTurnResultsDisplay, protocol.TurnResultsDisplay{
		Turn:                   r.state.CurrentTurn,
		Resolution:             r.state.LastResolution,
		Players:                r.state.Players,
		PendingAcknowledgments: r.state.PendingAcknowledgmentIDs(),
		TimeoutAt:              r.state.ResultsTimeoutAt.UnixMilli(),
	}), "")

	if len(r.state.PendingAcknowledgments) == 0 {
		r.completeResults()
		return
	}
	r.timers.Arm(TimerResultsTimeout, r.opts.Timers.ResultsTimeout)
}

// completeResults 结束结果展示（全部确认、超时或无人需确认）
func (r *Room) completeResults() {
	r.timers.Disarm(TimerResultsTimeout)
	next, forced := game.ClearShowingResultsState(r.state)
	r.state = next
	r.broadcast(protocol.New(protocol.TypeTurnResultsComplete, protocol.TurnResultsComplete{
		Turn:   r.state.CurrentTurn,
		Forced: forced,
	}), "")
	r.afterTurn()
}

// afterTurn 回合收尾：崩溃优先，其次危机倒计时或触发，最后进入下一回合
func (r *Room) afterTurn() {
	if _, collapsed := rules.CheckCollapse(r.state.Nation, r.state.Settings.Thresholds); collapsed {
		r.advanceTurn()
		return
	}

	if r.state.ActiveCrisis != nil {
		next, remaining, due, err := game.AdvanceCrisisTurn(r.state)
		if err == nil {
			r.state = next
			if due {
				r.awaitingCrisis = true
				r.resolveCrisis()
				return
			}
			r.log.Debug("危机倒计时", zap.Int("remaining", remaining))
		}
		r.advanceTurn()
		return
	}

	if game.ShouldTriggerCrisis(r.state) && r.triggerCrisis() {
		return
	}
	r.advanceTurn()
}

// advanceTurn 推进回合；终局时广播结果
func (r *Room) advanceTurn() {
	next, result, err := game.AdvanceToNextTurn(r.state, r.opts.Now())
	if err != nil {
		r.log.Warn("推进回合失败", zap.Error(err))
		return
	}
	r.state = next
	r.endCrisisWait()
	if result.Over() {
		r.endGame()
		return
	}
	r.broadcastTurnStarted()
}

// endCrisisWait 回合已推进，危机延迟和窗口计时作废
func (r *Room) endCrisisWait() {
	r.awaitingCrisis = false
	r.timers.Disarm(TimerCrisisContinue)
	r.timers.Disarm(TimerCrisisWindow)
}

func (r *Room) broadcastTurnStarted() {
	logger.LogGameEvent(r.log, "turn_started", r.code, r.state.CurrentTurn,
		zap.String("active_player", r.state.ActivePlayerID))
	r.broadcast(protocol.New(protocol.TypeTurnStarted, protocol.TurnStarted{
		Turn:           r.state.CurrentTurn,
		ActivePlayerID: r.state.ActivePlayerID,
		Nation:         r.state.Nation,
	}), "")
}

// skipTurn 跳过挂机或断线的行动玩家
func (r *Room) skipTurn(reason string) {
	next, skipped, result, err := game.SkipAfkPlayerTurn(r.state, r.opts.Now())
	if err != nil {
		return
	}
	r.state = next
	r.timers.Disarm(TimerDeliberation)
	r.endCrisisWait()

	r.log.Info("跳过回合", zap.String("player_id", skipped), zap.String("reason", reason))
	r.broadcast(protocol.New(protocol.TypeTurnSkipped, protocol.TurnSkipped{
		PlayerID:     skipped,
		Reason:       reason,
		NextPlayerID: result.NextPlayerID,
		Turn:         result.Turn,
	}), "")
	if result.Over() {
		r.endGame()
		return
	}
	if r.countdownSkippedTurn() {
		return
	}
	r.broadcastTurnStarted()
}

// countdownSkippedTurn 被跳过的回合同样计入危机倒计时
// 到期立即结算；结算导致崩溃时结束游戏并返回 true
func (r *Room) countdownSkippedTurn() bool {
	if r.state.ActiveCrisis == nil {
		return false
	}
	next, remaining, due, err := game.AdvanceCrisisTurn(r.state)
	if err != nil {
		return false
	}
	r.state = next
	if !due {
		r.log.Debug("危机倒计时", zap.Int("remaining", remaining))
		return false
	}
	r.resolveCrisis()
	if _, collapsed := rules.CheckCollapse(r.state.Nation, r.state.Settings.Thresholds); collapsed {
		r.advanceTurn()
		return true
	}
	return false
}

// triggerCrisis 选取并触发危机；没有可用危机时返回 false
func (r *Room) triggerCrisis() bool {
	if r.opts.Catalog == nil {
		return false
	}
	def, ok := crisis.Select(r.state.Nation, r.opts.Catalog.Crises, r.state.CurrentTurn)
	if !ok {
		return false
	}
	now := r.opts.Now()
	next, c, err := game.EnterCrisisPhase(r.state, uuid.NewString(), def, now, r.opts.Timers.CrisisWindow)
	if err != nil {
		r.log.Error("触发危机失败", zap.Error(err))
		return false
	}
	r.state = next
	r.awaitingCrisis = true

	logger.LogGameEvent(r.log, "crisis_triggered", r.code, r.state.CurrentTurn,
		zap.String("crisis", def.ID), zap.Int("threshold", def.ContributionThreshold))
	r.broadcast(protocol.New(protocol.TypeCrisisTriggered, protocol.CrisisTriggered{
		Crisis: c,
		EndsAt: now.Add(r.opts.Timers.CrisisWindow).UnixMilli(),
	}), "")
	r.timers.Arm(TimerCrisisWindow, r.opts.Timers.CrisisWindow)
	return true
}

func (r *Room) handleContribute(c *connection, m protocol.ContributeToCrisis) {
	next, res, err := game.ContributeToCrisis(r.state, c.playerID, m.Amount)
	if err != nil {
		r.reject(c, protocol.TypeContributeToCrisis, err)
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeCrisisContribution, protocol.CrisisContribution{
		ContributionResult: res,
	}), "")

	if res.ThresholdMet && !r.timers.Armed(TimerCrisisResolve) {
		r.timers.Disarm(TimerCrisisWindow)
		r.timers.Arm(TimerCrisisResolve, r.opts.Timers.CrisisResolve)
	}
}

// resolveCrisis 结算危机；回合流程在等待危机时延迟后继续
func (r *Room) resolveCrisis() {
	r.timers.Disarm(TimerCrisisResolve)
	r.timers.Disarm(TimerCrisisWindow)

	next, outcome, err := game.ResolveCrisisEvent(r.state)
	if err != nil {
		r.log.Warn("结算危机失败", zap.Error(err))
		return
	}
	r.state = next
	logger.LogGameEvent(r.log, "crisis_resolved", r.code, r.state.CurrentTurn,
		zap.String("crisis", outcome.DefinitionID), zap.String("result", outcome.Result))
	r.broadcast(protocol.New(protocol.TypeCrisisResolved, protocol.CrisisResolved{
		Outcome: outcome,
		Nation:  r.state.Nation,
	}), "")

	if r.awaitingCrisis {
		r.timers.Arm(TimerCrisisContinue, r.opts.Timers.CrisisContinue)
	}
}

// endGame 终局：取消回合计时器、广播复盘并归档
func (r *Room) endGame() {
	for _, kind := range turnTimers {
		r.timers.Disarm(kind)
	}
	r.awaitingCrisis = false

	debrief := game.BuildDebrief(r.state)
	if r.state.Status == game.StatusCollapsed {
		logger.LogGameEvent(r.log, "game_collapsed", r.code, r.state.CurrentTurn,
			zap.String("reason", string(r.state.CollapseReason)))
		r.broadcast(protocol.New(protocol.TypeGameEndedCollapse, protocol.GameEndedCollapse{
			Reason:  r.state.CollapseReason,
			Debrief: debrief,
		}), "")
	} else {
		logger.LogGameEvent(r.log, "game_won", r.code, r.state.CurrentTurn,
			zap.String("winner", r.state.Winner))
		r.broadcast(protocol.New(protocol.TypeGameEndedVictory, protocol.GameEndedVictory{
			WinnerID: r.state.Winner,
			Debrief:  debrief,
		}), "")
	}
	r.archive(debrief)
}

// 归档遇到可重试错误时的重试次数和间隔
var (
	archiveAttempts   = 3
	archiveRetryDelay = 200 * time.Millisecond
)

// archive 异步写入归档，每局一次
func (r *Room) archive(debrief game.Debrief) {
	if r.opts.Archiver == nil || r.archived {
		return
	}
	r.archived = true
	state := r.state
	archiver := r.opts.Archiver
	timeout := r.opts.ArchiveTimeout
	attempts, delay := archiveAttempts, archiveRetryDelay
	log := r.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		for attempt := 1; ; attempt++ {
			err := archiver.ArchiveGame(ctx, state, debrief)
			if err == nil {
				log.Info("对局已归档", zap.Duration("elapsed", time.Since(start)), zap.Int("attempts", attempt))
				return
			}
			if !errors.IsRetryable(err) || attempt >= attempts {
				log.Error("归档对局失败", zap.Error(err), zap.Int("attempts", attempt))
				return
			}
			log.Warn("归档对局失败，稍后重试", zap.Error(err), zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				log.Error("归档对局超时", zap.Error(ctx.Err()))
				return
			case <-time.After(delay * time.Duration(attempt)):
			}
		}
	}()
}
