package room

import (
	"context"
	"time"

	"github.com/wfunc/statecraft/internal/config"
	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/game/rules"
	"go.uber.org/zap"
)

// DefaultMaxChatLength 聊天内容最大字符数
const DefaultMaxChatLength = 200

// Conn 房间看到的一条客户端连接
// Send 不阻塞，缓冲区满时返回 false。
type Conn interface {
	ID() string
	Send(data []byte) bool
	Close()
}

// Archiver 终局归档
type Archiver interface {
	ArchiveGame(ctx context.Context, state *game.RoomState, debrief game.Debrief) error
}

// Timers 房间计时参数
type Timers struct {
	ResultsTimeout time.Duration
	AFKPoll        time.Duration
	CrisisResolve  time.Duration
	CrisisContinue time.Duration
	CrisisWindow   time.Duration
	RoomExpiry     time.Duration
}

// DefaultTimers 默认计时参数
func DefaultTimers() Timers {
	return Timers{
		ResultsTimeout: 30 * time.Second,
		AFKPoll:        10 * time.Second,
		CrisisResolve:  time.Second,
		CrisisContinue: 2 * time.Second,
		CrisisWindow:   20 * time.Second,
		RoomExpiry:     2 * time.Hour,
	}
}

// Options 房间依赖与参数
type Options struct {
	Settings game.Settings
	Timers   Timers

	Catalog     *content.Catalog
	NewProvider func() content.Provider
	Roller      rules.Roller

	Archiver       Archiver
	ArchiveTimeout time.Duration

	NewScheduler  func(FireFunc) Scheduler
	Now           func() time.Time
	MaxChatLength int
	InboxSize     int

	Logger *zap.Logger
}

// withDefaults 补全未设置的字段
func (o Options) withDefaults() Options {
	if o.Settings.MaxPlayers == 0 {
		o.Settings = game.DefaultSettings()
	}
	if o.Timers == (Timers{}) {
		o.Timers = DefaultTimers()
	}
	if o.NewProvider == nil && o.Catalog != nil {
		catalog := o.Catalog
		o.NewProvider = func() content.Provider {
			return catalog.NewDeck(time.Now().UnixNano())
		}
	}
	if o.Roller == nil {
		o.Roller = rules.NewCryptoRoller()
	}
	if o.ArchiveTimeout <= 0 {
		o.ArchiveTimeout = 5 * time.Second
	}
	if o.NewScheduler == nil {
		o.NewScheduler = NewTimerScheduler
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.MaxChatLength <= 0 {
		o.MaxChatLength = DefaultMaxChatLength
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 64
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// SettingsFromConfig 游戏配置转换为规则设置和计时参数
func SettingsFromConfig(c config.GameConfig) (game.Settings, Timers) {
	s := game.Settings{
		MinPlayers:        c.MinPlayers,
		MaxPlayers:        c.MaxPlayers,
		PathLength:        c.PathLength,
		StartingBudget:    c.StartingBudget,
		StartingStability: c.StartingStability,
		StartingInfluence: c.StartingInfluence,
		TokensPerPlayer:   c.TokensPerPlayer,
		DieSides:          c.DieSides,
		InfluencePerTurn:  c.Rules.InfluencePerTurn,
		ProposerPassBonus: c.Rules.ProposerPassBonus,
		Thresholds: rules.Thresholds{
			HighBudget:              c.Rules.HighBudget,
			LowBudget:               c.Rules.LowBudget,
			HighStability:           c.Rules.HighStability,
			LowStability:            c.Rules.LowStability,
			CollapseThreshold:       c.Rules.CollapseThreshold,
			VictoryMinInfluence:     c.Rules.VictoryMinInfluence,
			AlignedBonus:            c.Rules.AlignedBonus,
			OpposedPenalty:          c.Rules.OpposedPenalty,
			InfluenceBonusThreshold: c.Rules.InfluenceBonusThreshold,
		},
		AFKThreshold:          c.AFK.Threshold,
		AFKPenalty:            c.AFK.Penalty,
		CrisisDangerThreshold: c.Crisis.DangerThreshold,
		CrisisDurationTurns:   c.Crisis.DurationTurns,
		DeliberationDuration:  c.Timers.Deliberation,
	}
	t := Timers{
		ResultsTimeout: c.Timers.ResultsTimeout,
		AFKPoll:        c.Timers.AFKPoll,
		CrisisResolve:  c.Timers.CrisisResolve,
		CrisisContinue: c.Timers.CrisisContinue,
		CrisisWindow:   c.Timers.CrisisWindow,
		RoomExpiry:     c.Timers.RoomExpiry,
	}
	return s, t
}
