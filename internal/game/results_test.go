package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// resolvedTurn 完成一轮投票并结算，停在 resolving
func resolvedTurn(t *testing.T, s *RoomState) *RoomState {
	t.Helper()
	s = toVoting(t, s, 3, "fund")
	for _, p := range s.ConnectedPlayers() {
		if s.AFKPlayers[p.ID] {
			continue
		}
		s, _ = vote(t, s, p.ID, rules.VoteYes, 0)
	}
	s, _, err := ResolveVotes(s)
	require.NoError(t, err)
	return s
}

func TestShowingResults_Acknowledge(t *testing.T) {
	s := resolvedTurn(t, startedGame(t, 3))

	_, _, err := AcknowledgeTurnResults(s, "p1", 1)
	assert.True(t, errors.Is(err, errors.ErrWrongPhase))

	s, err = EnterShowingResultsPhase(s, t0, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, PhaseShowingResults, s.Phase)
	assert.Equal(t, []string{"p1", "p2", "p3"}, s.PendingAcknowledgmentIDs())
	require.NotNil(t, s.ResultsTimeoutAt)
	assert.Equal(t, t0.Add(30*time.Second), *s.ResultsTimeoutAt)

	_, _, err = AcknowledgeTurnResults(s, "p1", 2)
	assert.True(t, errors.Is(err, errors.ErrTurnMismatch))

	s, all, err := AcknowledgeTurnResults(s, "p1", 1)
	require.NoError(t, err)
	assert.False(t, all)

	_, _, err = AcknowledgeTurnResults(s, "p1", 1)
	assert.True(t, errors.Is(err, errors.ErrNotPendingAck))

	s, all, err = AcknowledgeTurnResults(s, "p2", 1)
	require.NoError(t, err)
	assert.False(t, all)
	s, all, err = AcknowledgeTurnResults(s, "p3", 1)
	require.NoError(t, err)
	assert.True(t, all)
	assert.Empty(t, s.PendingAcknowledgments)
}

func TestClearShowingResultsState(t *testing.T) {
	s := resolvedTurn(t, startedGame(t, 3))
	s, err := EnterShowingResultsPhase(s, t0, 30*time.Second)
	require.NoError(t, err)
	s, _, err = AcknowledgeTurnResults(s, "p2", 1)
	require.NoError(t, err)

	cleared, forced := ClearShowingResultsState(s)
	assert.Equal(t, []string{"p1", "p3"}, forced)
	assert.Empty(t, cleared.PendingAcknowledgments)
	assert.Nil(t, cleared.ResultsTimeoutAt)
	assert.Len(t, s.PendingAcknowledgments, 2)
}

func TestAdvanceToNextTurn(t *testing.T) {
	s := resolvedTurn(t, startedGame(t, 3))
	influenceBefore := mustPlayer(t, s, "p2").Influence

	next, res, err := AdvanceToNextTurn(s, t0)
	require.NoError(t, err)
	assert.False(t, res.Over())
	assert.Equal(t, 2, next.CurrentTurn)
	assert.Equal(t, "p2", next.ActivePlayerID)
	assert.Equal(t, "p2", res.NextPlayerID)
	assert.Equal(t, PhaseWaiting, next.Phase)
	assert.Nil(t, next.CurrentCard)
	assert.Empty(t, next.CurrentProposal)
	assert.Empty(t, next.PendingVotes)
	assert.Nil(t, next.LastRoll)
	assert.Equal(t, influenceBefore+1, mustPlayer(t, next, "p2").Influence)
}

func TestAdvanceToNextTurn_SkipsDisconnected(t *testing.T) {
	s := startedGame(t, 3)
	s, err := SetPlayerConnected(s, "p2", false, t0)
	require.NoError(t, err)

	next, res, err := AdvanceToNextTurn(s, t0)
	require.NoError(t, err)
	assert.Equal(t, "p3", res.NextPlayerID)

	next, res, err = AdvanceToNextTurn(next, t0)
	require.NoError(t, err)
	assert.Equal(t, "p1", res.NextPlayerID)
	assert.Equal(t, 3, next.CurrentTurn)
}

func TestAdvanceToNextTurn_IncrementsByOne(t *testing.T) {
	s := startedGame(t, 3)
	for want := 2; want <= 10; want++ {
		var err error
		s, _, err = AdvanceToNextTurn(s, t0)
		require.NoError(t, err)
		assert.Equal(t, want, s.CurrentTurn)
	}
}

// 预算降到 -5 后推进回合：以预算原因崩溃，不再产生新回合
func TestAdvanceToNextTurn_BudgetCollapse(t *testing.T) {
	s := startedGame(t, 3)
	s.Nation.Budget = -5

	next, res, err := AdvanceToNextTurn(s, t0)
	require.NoError(t, err)
	assert.True(t, res.Collapsed)
	assert.Equal(t, rules.CollapseBudget, res.Reason)
	assert.Equal(t, StatusCollapsed, next.Status)
	assert.Equal(t, PhaseCollapsed, next.Phase)
	assert.Equal(t, 1, next.CurrentTurn)
	assert.Empty(t, res.NextPlayerID)

	_, _, err = AdvanceToNextTurn(next, t0)
	assert.True(t, errors.Is(err, errors.ErrGameOver))
}

func TestAdvanceToNextTurn_CollapseBeatsVictory(t *testing.T) {
	s := startedGame(t, 2)
	s.Players[0].Position = s.Settings.PathLength
	s.Players[0].Influence = 10
	s.Nation.Stability = -6

	next, res, err := AdvanceToNextTurn(s, t0)
	require.NoError(t, err)
	assert.True(t, res.Collapsed)
	assert.Equal(t, rules.CollapseStability, res.Reason)
	assert.Empty(t, next.Winner)
}

func TestAdvanceToNextTurn_Victory(t *testing.T) {
	s := startedGame(t, 3)
	s.Players[1].Position = s.Settings.PathLength
	s.Players[1].Influence = 6
	s.Players[2].Position = s.Settings.PathLength
	s.Players[2].Influence = 4

	next, res, err := AdvanceToNextTurn(s, t0)
	require.NoError(t, err)
	assert.Equal(t, "p2", res.WinnerID)
	assert.Equal(t, StatusFinished, next.Status)
	assert.Equal(t, PhaseFinished, next.Phase)
	assert.Equal(t, "p2", next.Winner)
}

func TestRecordTurnHistory_Upsert(t *testing.T) {
	s := startedGame(t, 2)
	_, _, err := RecordTurnHistory(s, t0)
	assert.Error(t, err)

	s = resolvedTurn(t, s)
	s, entry, err := RecordTurnHistory(s, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Turn)
	assert.Equal(t, "card-1", entry.CardID)
	assert.Equal(t, "拨款", entry.OptionLabel)
	assert.Equal(t, "2-0", entry.Margin)

	// 超时路径再次写入同一回合只覆盖
	s, _, err = RecordTurnHistory(s, t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, s.History.Len())
}

func TestBuildDebrief(t *testing.T) {
	s, res := resolvedWithDeal(t, rules.VoteNo)
	s, _, err := ResolveDeals(s, res.Votes, "p1", true)
	require.NoError(t, err)
	s, _, err = RecordTurnHistory(s, t0)
	require.NoError(t, err)
	s.Nation.Budget = -5
	s, _, err = AdvanceToNextTurn(s, t0)
	require.NoError(t, err)

	d := BuildDebrief(s)
	assert.Equal(t, rules.CollapseBudget, d.CollapseReason)
	assert.Equal(t, 1, d.TurnsPlayed)
	require.Len(t, d.Players, 3)
	assert.Equal(t, 1, d.Players[0].TokensGiven)
	assert.Equal(t, 1, d.Players[1].TokensBroken)
	assert.Len(t, d.History, 1)
}
