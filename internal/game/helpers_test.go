package game

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/game/rules"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedRoller(v int) rules.Roller {
	return rules.RollerFunc(func(int) int { return v })
}

func testCard() content.DecisionCard {
	return content.DecisionCard{
		ID:    "card-1",
		Zone:  content.ZoneFoundation,
		Title: "测试法案",
		Options: []content.Option{
			{
				ID:      "fund",
				Label:   "拨款",
				Effect:  rules.Delta{Budget: -2, Stability: 1},
				Aligned: []rules.Ideology{rules.IdeologyProgressive},
				Opposed: []rules.Ideology{rules.IdeologyConservative},
			},
			{
				ID:     "cut",
				Label:  "削减",
				Effect: rules.Delta{Budget: 2, Stability: -1},
			},
		},
	}
}

// lobbyWith 创建 n 名玩家 p1..pn 的大厅，意识形态按 AllIdeologies 顺序分配
func lobbyWith(t *testing.T, n int) *RoomState {
	t.Helper()
	s := NewRoomState("ABC123", DefaultSettings(), t0)
	ideologies := rules.AllIdeologies()
	var err error
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%d", i+1)
		s, _, err = AddPlayerToRoom(s, id, "玩家"+id, t0)
		require.NoError(t, err)
		s, err = SelectIdeology(s, id, ideologies[i])
		require.NoError(t, err)
	}
	return s
}

func startedGame(t *testing.T, n int) *RoomState {
	t.Helper()
	s, _, err := StartGame(lobbyWith(t, n), "p1", t0)
	require.NoError(t, err)
	return s
}

// toVoting 行动玩家掷出 roll，抽牌并提出 optionID
func toVoting(t *testing.T, s *RoomState, roll int, optionID string) *RoomState {
	t.Helper()
	var err error
	s, _, err = PerformDiceRoll(s, s.ActivePlayerID, fixedRoller(roll))
	require.NoError(t, err)
	s, _, err = SetCurrentCard(s, testCard(), t0)
	require.NoError(t, err)
	s, _, err = ProposeOption(s, s.ActivePlayerID, optionID)
	require.NoError(t, err)
	return s
}

func vote(t *testing.T, s *RoomState, playerID string, choice rules.VoteChoice, spent int) (*RoomState, bool) {
	t.Helper()
	next, all, err := CastVote(s, rules.Vote{PlayerID: playerID, Choice: choice, InfluenceSpent: spent, Timestamp: t0})
	require.NoError(t, err)
	return next, all
}

func mustPlayer(t *testing.T, s *RoomState, id string) Player {
	t.Helper()
	p, ok := s.Player(id)
	require.True(t, ok, id)
	return p
}
