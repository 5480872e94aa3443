package game

import (
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/history"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// PlayerDebrief 单个玩家的复盘数据
type PlayerDebrief struct {
	PlayerID      string         `json:"playerId"`
	Name          string         `json:"name"`
	Ideology      rules.Ideology `json:"ideology"`
	Position      int            `json:"position"`
	Influence     int            `json:"influence"`
	TokensGiven   int            `json:"tokensGiven"`
	TokensHonored int            `json:"tokensHonored"`
	TokensBroken  int            `json:"tokensBroken"`
}

// Debrief 终局复盘
type Debrief struct {
	TurnsPlayed    int                  `json:"turnsPlayed"`
	FinalNation    rules.Nation         `json:"finalNation"`
	CollapseReason rules.CollapseReason `json:"collapseReason,omitempty"`
	Winner         string               `json:"winner,omitempty"`
	Players        []PlayerDebrief      `json:"players"`
	Crises         []crisis.Outcome     `json:"crises"`
	History        []history.Entry      `json:"history"`
}

// BuildDebrief 生成复盘（令牌统计按持有者计算守约与违约）
func BuildDebrief(s *RoomState) Debrief {
	d := Debrief{
		TurnsPlayed:    s.CurrentTurn,
		FinalNation:    s.Nation,
		CollapseReason: s.CollapseReason,
		Winner:         s.Winner,
		Players:        make([]PlayerDebrief, 0, len(s.Players)),
		Crises:         append([]crisis.Outcome{}, s.CrisisHistory...),
		History:        s.History.Entries(),
	}

	for _, p := range s.Players {
		pd := PlayerDebrief{
			PlayerID:  p.ID,
			Name:      p.Name,
			Ideology:  p.Ideology,
			Position:  p.Position,
			Influence: p.Influence,
		}
		for _, t := range s.Tokens {
			if t.OwnerID == p.ID && t.Assigned() {
				pd.TokensGiven++
			}
			if t.HeldByID == p.ID && t.Assigned() {
				switch t.Status {
				case TokenHonored:
					pd.TokensHonored++
				case TokenBroken:
					pd.TokensBroken++
				}
			}
		}
		d.Players = append(d.Players, pd)
	}
	return d
}
