package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/game/rules"
)

// Settings 房间规则设置
type Settings struct {
	MinPlayers        int `json:"minPlayers"`
	MaxPlayers        int `json:"maxPlayers"`
	PathLength        int `json:"pathLength"`
	StartingBudget    int `json:"-"`
	StartingStability int `json:"-"`
	StartingInfluence int `json:"-"`
	TokensPerPlayer   int `json:"-"`
	DieSides          int `json:"-"`
	InfluencePerTurn  int `json:"-"`
	ProposerPassBonus int `json:"-"`

	Thresholds rules.Thresholds `json:"-"`

	AFKThreshold time.Duration `json:"-"`
	AFKPenalty   int           `json:"-"`

	CrisisDangerThreshold int `json:"-"`
	CrisisDurationTurns   int `json:"-"`

	DeliberationDuration time.Duration `json:"-"`
}

// DefaultSettings 默认设置
func DefaultSettings() Settings {
	return Settings{
		MinPlayers:            2,
		MaxPlayers:            6,
		PathLength:            20,
		StartingBudget:        5,
		StartingStability:     5,
		StartingInfluence:     3,
		TokensPerPlayer:       2,
		DieSides:              6,
		InfluencePerTurn:      1,
		ProposerPassBonus:     1,
		Thresholds:            rules.DefaultThresholds(),
		AFKThreshold:          60 * time.Second,
		AFKPenalty:            1,
		CrisisDangerThreshold: -2,
		CrisisDurationTurns:   3,
		DeliberationDuration:  60 * time.Second,
	}
}
