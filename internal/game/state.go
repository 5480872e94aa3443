// Package game 房间状态引擎
//
// 每个操作都是纯变换：复制输入状态、修改副本、递增版本号后返回。
// 出错时返回原状态和 *errors.AppError，原状态不会被修改。
package game

import (
	"time"

	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/history"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// Phase 回合阶段
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseWaiting        Phase = "waiting"
	PhaseRolling        Phase = "rolling"
	PhaseDrawing        Phase = "drawing"
	PhaseReviewing      Phase = "reviewing"
	PhaseDeliberating   Phase = "deliberating"
	PhaseProposing      Phase = "proposing"
	PhaseVoting         Phase = "voting"
	PhaseRevealing      Phase = "revealing"
	PhaseResolving      Phase = "resolving"
	PhaseShowingResults Phase = "showingResults"
	PhaseCrisis         Phase = "crisis"
	PhaseFinished       Phase = "finished"
	PhaseCollapsed      Phase = "collapsed"
)

// BeforeProposal 提案之前的阶段（行动玩家可被跳过）
func (p Phase) BeforeProposal() bool {
	switch p {
	case PhaseWaiting, PhaseRolling, PhaseDrawing, PhaseReviewing, PhaseDeliberating, PhaseProposing:
		return true
	}
	return false
}

// Status 房间状态
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusPlaying   Status = "playing"
	StatusCollapsed Status = "collapsed"
	StatusFinished  Status = "finished"
)

// TokenStatus 支持令牌状态，只能从 active 变为 honored 或 broken
type TokenStatus string

const (
	TokenActive  TokenStatus = "active"
	TokenHonored TokenStatus = "honored"
	TokenBroken  TokenStatus = "broken"
)

// Player 玩家
type Player struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Ideology       rules.Ideology `json:"ideology,omitempty"`
	Position       int            `json:"position"`
	Influence      int            `json:"influence"`
	OwnTokens      int            `json:"ownTokens"`
	IsConnected    bool           `json:"isConnected"`
	IsHost         bool           `json:"isHost"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
	JoinOrder      int            `json:"joinOrder"`
}

// SupportToken 支持令牌
type SupportToken struct {
	ID       string      `json:"id"`
	OwnerID  string      `json:"ownerId"`
	HeldByID string      `json:"heldById"`
	Status   TokenStatus `json:"status"`
}

// Assigned 是否已赠出
func (t SupportToken) Assigned() bool {
	return t.HeldByID != t.OwnerID
}

// DiceRoll 掷骰结果
type DiceRoll struct {
	PlayerID     string `json:"playerId"`
	Roll         int    `json:"roll"`
	Modifier     int    `json:"modifier"`
	ModifiedRoll int    `json:"modifiedRoll"`
}

// TurnResolution 本回合结算明细（结果展示用）
type TurnResolution struct {
	Turn             int                       `json:"turn"`
	ActivePlayerID   string                    `json:"activePlayerId"`
	OptionID         string                    `json:"optionId"`
	Votes            []rules.Vote              `json:"votes"`
	Tally            rules.TallyResult         `json:"tally"`
	NationBefore     rules.Nation              `json:"nationBefore"`
	NationAfter      rules.Nation              `json:"nationAfter"`
	Movements        map[string]rules.Movement `json:"movements"`
	InfluenceChanges map[string]int            `json:"influenceChanges"`
	Deals            []DealResolution          `json:"deals"`
}

func (r *TurnResolution) clone() *TurnResolution {
	if r == nil {
		return nil
	}
	out := *r
	out.Votes = append([]rules.Vote(nil), r.Votes...)
	out.Deals = append([]DealResolution(nil), r.Deals...)
	out.Movements = make(map[string]rules.Movement, len(r.Movements))
	for k, v := range r.Movements {
		out.Movements[k] = v
	}
	out.InfluenceChanges = make(map[string]int, len(r.InfluenceChanges))
	for k, v := range r.InfluenceChanges {
		out.InfluenceChanges[k] = v
	}
	return &out
}

// RoomState 房间的唯一状态根
type RoomState struct {
	Code           string `json:"code"`
	Version        uint64 `json:"version"`
	Phase          Phase  `json:"phase"`
	Status         Status `json:"status"`
	CurrentTurn    int    `json:"currentTurn"`
	ActivePlayerID string `json:"activePlayerId,omitempty"`

	// Players 按加入顺序排列
	Players []Player     `json:"players"`
	Nation  rules.Nation `json:"nation"`

	CurrentCard            *content.DecisionCard `json:"currentCard,omitempty"`
	CurrentProposal        string                `json:"currentProposal,omitempty"`
	PendingVotes           map[string]rules.Vote `json:"-"`
	PendingAcknowledgments map[string]bool       `json:"-"`
	Tokens                 []SupportToken        `json:"tokens"`
	ActiveCrisis           *crisis.Crisis        `json:"activeCrisis,omitempty"`
	AFKPlayers             map[string]bool       `json:"-"`
	TimerEndAt             *time.Time            `json:"timerEndAt,omitempty"`
	ResultsTimeoutAt       *time.Time            `json:"resultsTimeoutAt,omitempty"`
	Settings               Settings              `json:"settings"`

	LastRoll       *DiceRoll            `json:"lastRoll,omitempty"`
	LastResolution *TurnResolution      `json:"lastResolution,omitempty"`
	History        history.Log          `json:"history"`
	Winner         string               `json:"winner,omitempty"`
	CollapseReason rules.CollapseReason `json:"collapseReason,omitempty"`
	CrisisHistory  []crisis.Outcome     `json:"crisisHistory,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`

	nextJoinOrder int
}

// NewRoomState 创建房间初始状态（第一名玩家加入时调用）
func NewRoomState(code string, settings Settings, now time.Time) *RoomState {
	return &RoomState{
		Code:                   code,
		Phase:                  PhaseLobby,
		Status:                 StatusLobby,
		Players:                []Player{},
		Nation:                 rules.Nation{Budget: settings.StartingBudget, Stability: settings.StartingStability},
		PendingVotes:           make(map[string]rules.Vote),
		PendingAcknowledgments: make(map[string]bool),
		Tokens:                 []SupportToken{},
		AFKPlayers:             make(map[string]bool),
		Settings:               settings,
		CreatedAt:              now,
	}
}

// Clone 深拷贝
func (s *RoomState) Clone() *RoomState {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = append([]Player(nil), s.Players...)
	out.Tokens = append([]SupportToken(nil), s.Tokens...)
	out.CurrentCard = s.CurrentCard.Clone()
	out.ActiveCrisis = s.ActiveCrisis.Clone()
	out.CrisisHistory = append([]crisis.Outcome(nil), s.CrisisHistory...)
	out.LastResolution = s.LastResolution.clone()
	out.PendingVotes = make(map[string]rules.Vote, len(s.PendingVotes))
	for k, v := range s.PendingVotes {
		out.PendingVotes[k] = v
	}
	out.PendingAcknowledgments = copySet(s.PendingAcknowledgments)
	out.AFKPlayers = copySet(s.AFKPlayers)
	if s.LastRoll != nil {
		roll := *s.LastRoll
		out.LastRoll = &roll
	}
	out.TimerEndAt = copyTime(s.TimerEndAt)
	out.ResultsTimeoutAt = copyTime(s.ResultsTimeoutAt)
	return &out
}

// next 复制并递增版本号，所有变换都从这里开始
func (s *RoomState) next() *RoomState {
	out := s.Clone()
	out.Version++
	return out
}

// Player 按ID查找玩家（返回副本）
func (s *RoomState) Player(id string) (Player, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Players[i], true
	}
	return Player{}, false
}

func (s *RoomState) indexOf(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *RoomState) player(id string) *Player {
	if i := s.indexOf(id); i >= 0 {
		return &s.Players[i]
	}
	return nil
}

// ConnectedPlayers 在线玩家（按加入顺序）
func (s *RoomState) ConnectedPlayers() []Player {
	var out []Player
	for _, p := range s.Players {
		if p.IsConnected {
			out = append(out, p)
		}
	}
	return out
}

// HostID 房主ID
func (s *RoomState) HostID() string {
	for _, p := range s.Players {
		if p.IsHost {
			return p.ID
		}
	}
	return ""
}

// Playing 是否对局进行中
func (s *RoomState) Playing() bool {
	return s != nil && s.Status == StatusPlaying
}

// Over 是否已终局
func (s *RoomState) Over() bool {
	return s != nil && (s.Status == StatusFinished || s.Status == StatusCollapsed)
}

// CurrentZone 最靠前的在线玩家所在区域
func (s *RoomState) CurrentZone() content.Zone {
	best := 0
	for _, p := range s.Players {
		if p.IsConnected && p.Position > best {
			best = p.Position
		}
	}
	return content.ZoneFor(best, s.Settings.PathLength)
}

// VotedPlayerIDs 已投票玩家（按加入顺序，不含选择）
func (s *RoomState) VotedPlayerIDs() []string {
	var out []string
	for _, p := range s.Players {
		if _, ok := s.PendingVotes[p.ID]; ok {
			out = append(out, p.ID)
		}
	}
	return out
}

// PendingAcknowledgmentIDs 待确认玩家（按加入顺序）
func (s *RoomState) PendingAcknowledgmentIDs() []string {
	return s.orderedSet(s.PendingAcknowledgments)
}

// AFKPlayerIDs 挂机玩家（按加入顺序）
func (s *RoomState) AFKPlayerIDs() []string {
	return s.orderedSet(s.AFKPlayers)
}

func (s *RoomState) orderedSet(set map[string]bool) []string {
	out := []string{}
	for _, p := range s.Players {
		if set[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

// orderedVotes 按加入顺序排列的选票
func (s *RoomState) orderedVotes() []rules.Vote {
	var out []rules.Vote
	for _, p := range s.Players {
		if v, ok := s.PendingVotes[p.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}

// refreshOwnTokens 重新统计每名玩家手中未赠出的令牌
func (s *RoomState) refreshOwnTokens() {
	counts := make(map[string]int)
	for _, t := range s.Tokens {
		if t.Status == TokenActive && !t.Assigned() {
			counts[t.OwnerID]++
		}
	}
	for i := range s.Players {
		s.Players[i].OwnTokens = counts[s.Players[i].ID]
	}
}

// standings 终局判定输入
func (s *RoomState) standings() []rules.Standing {
	out := make([]rules.Standing, 0, len(s.Players))
	for _, p := range s.Players {
		out = append(out, rules.Standing{
			PlayerID:  p.ID,
			Position:  p.Position,
			Influence: p.Influence,
			JoinOrder: p.JoinOrder,
		})
	}
	return out
}

// View 广播用快照，选票内容在揭晓前不公开
type View struct {
	*RoomState
	VotedPlayerIDs         []string `json:"votedPlayerIds"`
	PendingAcknowledgments []string `json:"pendingAcknowledgments"`
	AFKPlayers             []string `json:"afkPlayers"`
}

// View 生成快照
func (s *RoomState) View() View {
	return View{
		RoomState:              s.Clone(),
		VotedPlayerIDs:         s.VotedPlayerIDs(),
		PendingAcknowledgments: s.PendingAcknowledgmentIDs(),
		AFKPlayers:             s.AFKPlayerIDs(),
	}
}

func copySet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		if v {
			out[k] = true
		}
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
