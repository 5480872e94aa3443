package protocol

import (
	"encoding/json"
	"time"

	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/rules"
)

// 服务端消息类型
const (
	TypeRoomStateSync           = "roomStateSync"
	TypePlayerJoined            = "playerJoined"
	TypePlayerLeft              = "playerLeft"
	TypeIdeologySelected        = "ideologySelected"
	TypeGameStarted             = "gameStarted"
	TypeTurnStarted             = "turnStarted"
	TypeTurnSkipped             = "turnSkipped"
	TypeDiceRolled              = "diceRolled"
	TypeCardDrawn               = "cardDrawn"
	TypeDeliberationStarted     = "deliberationStarted"
	TypeOptionProposed          = "optionProposed"
	TypeVotingStarted           = "votingStarted"
	TypePlayerVoted             = "playerVoted"
	TypeVotesRevealed           = "votesRevealed"
	TypeDealResolved            = "dealResolved"
	TypeTurnResolved            = "turnResolved"
	TypeTurnResultsDisplay      = "turnResultsDisplay"
	TypeTurnResultsAcknowledged = "turnResultsAcknowledged"
	TypeTurnResultsComplete     = "turnResultsComplete"
	TypeTokenGiven              = "tokenGiven"
	TypeChatBroadcast           = "chatBroadcast"
	TypeCrisisTriggered         = "crisisTriggered"
	TypeCrisisContribution      = "crisisContribution"
	TypeCrisisResolved          = "crisisResolved"
	TypeGameEndedVictory        = "gameEndedVictory"
	TypeGameEndedCollapse       = "gameEndedCollapse"
	TypePlayerAfk               = "playerAfk"
	TypePlayerActive            = "playerActive"
	TypeError                   = "error"
)

// ErrorCode 发给客户端的错误标签
type ErrorCode string

const (
	CodeInvalidMessage ErrorCode = "INVALID_MESSAGE"
	CodeJoinFailed     ErrorCode = "JOIN_FAILED"
	CodeIdeologyFailed ErrorCode = "IDEOLOGY_FAILED"
	CodeStartFailed    ErrorCode = "START_FAILED"
	CodeRollFailed     ErrorCode = "ROLL_FAILED"
	CodeProposeFailed  ErrorCode = "PROPOSE_FAILED"
	CodeVoteFailed     ErrorCode = "VOTE_FAILED"
	CodeTokenFailed    ErrorCode = "TOKEN_FAILED"
	CodeCrisisFailed   ErrorCode = "CRISIS_CONTRIBUTION_FAILED"
	CodeAckFailed      ErrorCode = "ACK_FAILED"
	CodeChatFailed     ErrorCode = "CHAT_FAILED"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
)

// FailureCode 客户端消息类型对应的失败标签
func FailureCode(msgType string) ErrorCode {
	switch msgType {
	case TypeJoin:
		return CodeJoinFailed
	case TypeSelectIdeology:
		return CodeIdeologyFailed
	case TypeStartGame:
		return CodeStartFailed
	case TypeRollDice:
		return CodeRollFailed
	case TypeProposeOption:
		return CodeProposeFailed
	case TypeCastVote:
		return CodeVoteFailed
	case TypeGiveToken:
		return CodeTokenFailed
	case TypeContributeToCrisis:
		return CodeCrisisFailed
	case TypeAcknowledgeTurnResults:
		return CodeAckFailed
	case TypeChat:
		return CodeChatFailed
	default:
		return CodeInvalidMessage
	}
}

// ServerMessage 待发送的服务端消息
type ServerMessage struct {
	Type string
	Data interface{}
}

// New 构造服务端消息
func New(msgType string, data interface{}) ServerMessage {
	return ServerMessage{Type: msgType, Data: data}
}

// Encode 编码为信封 JSON
func (m ServerMessage) Encode(now time.Time) ([]byte, error) {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: m.Type, Data: data, Timestamp: now.UnixMilli()})
}

// ErrorMessage 错误消息
func ErrorMessage(code ErrorCode, message string) ServerMessage {
	return New(TypeError, ErrorPayload{Code: code, Message: message})
}

// ErrorPayload error
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// RoomStateSync 完整状态快照
type RoomStateSync struct {
	State        game.View `json:"state"`
	YourPlayerID string    `json:"yourPlayerId"`
}

// PlayerJoined 玩家加入或重连
type PlayerJoined struct {
	Player      game.Player `json:"player"`
	Reconnected bool        `json:"reconnected"`
}

// PlayerLeft 玩家离开或断线
type PlayerLeft struct {
	PlayerID     string `json:"playerId"`
	NewHostID    string `json:"newHostId,omitempty"`
	Disconnected bool   `json:"disconnected"`
}

// IdeologySelected 意识形态已选择
type IdeologySelected struct {
	PlayerID string         `json:"playerId"`
	Ideology rules.Ideology `json:"ideology"`
}

// GameStarted 游戏开始
type GameStarted struct {
	FirstPlayerID string `json:"firstPlayerId"`
	Turn          int    `json:"turn"`
}

// TurnStarted 新回合开始
type TurnStarted struct {
	Turn           int          `json:"turn"`
	ActivePlayerID string       `json:"activePlayerId"`
	Nation         rules.Nation `json:"nation"`
}

// TurnSkipped 行动玩家被跳过
type TurnSkipped struct {
	PlayerID     string `json:"playerId"`
	Reason       string `json:"reason"`
	NextPlayerID string `json:"nextPlayerId"`
	Turn         int    `json:"turn"`
}

// DiceRolled 掷骰结果
type DiceRolled struct {
	PlayerID     string `json:"playerId"`
	Roll         int    `json:"roll"`
	ModifiedRoll int    `json:"modifiedRoll"`
	Modifier     int    `json:"modifier"`
}

// CardDrawn 抽到决策卡
type CardDrawn struct {
	Card content.DecisionCard `json:"card"`
}

// DeliberationStarted 讨论开始
type DeliberationStarted struct {
	EndsAt int64 `json:"endsAt"`
}

// OptionProposed 选项已提出
type OptionProposed struct {
	PlayerID string         `json:"playerId"`
	OptionID string         `json:"optionId"`
	Option   content.Option `json:"option"`
}

// VotingStarted 投票开始
type VotingStarted struct {
	OptionID string   `json:"optionId"`
	Voters   []string `json:"voters"`
}

// PlayerVoted 玩家已投票（揭晓前不公开选择）
type PlayerVoted struct {
	PlayerID string `json:"playerId"`
}

// VotesRevealed 揭晓投票
type VotesRevealed struct {
	Votes        []rules.Vote `json:"votes"`
	TotalYes     int          `json:"totalYes"`
	TotalNo      int          `json:"totalNo"`
	TotalAbstain int          `json:"totalAbstain"`
	Passed       bool         `json:"passed"`
}

// DealResolved 令牌结算
type DealResolved struct {
	TokenID  string           `json:"tokenId"`
	Status   game.TokenStatus `json:"status"`
	OwnerID  string           `json:"ownerId"`
	HolderID string           `json:"holderId"`
}

// TurnResolved 回合结算
type TurnResolved struct {
	Turn             int                       `json:"turn"`
	Passed           bool                      `json:"passed"`
	NationChanges    rules.Delta               `json:"nationChanges"`
	Nation           rules.Nation              `json:"nation"`
	Movements        map[string]rules.Movement `json:"movements"`
	InfluenceChanges map[string]int            `json:"influenceChanges"`
}

// TurnResultsDisplay 回合结果展示
type TurnResultsDisplay struct {
	Turn                   int                  `json:"turn"`
	Resolution             *game.TurnResolution `json:"resolution"`
	Players                []game.Player        `json:"players"`
	PendingAcknowledgments []string             `json:"pendingAcknowledgments"`
	TimeoutAt              int64                `json:"timeoutAt"`
}

// TurnResultsAcknowledged 玩家已确认
type TurnResultsAcknowledged struct {
	PlayerID string   `json:"playerId"`
	Pending  []string `json:"pending"`
}

// TurnResultsComplete 全部确认或超时
type TurnResultsComplete struct {
	Turn   int      `json:"turn"`
	Forced []string `json:"forced,omitempty"`
}

// TokenGiven 令牌已赠出
type TokenGiven struct {
	TokenID  string `json:"tokenId"`
	OwnerID  string `json:"ownerId"`
	HolderID string `json:"holderId"`
}

// ChatBroadcast 聊天
type ChatBroadcast struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sentAt"`
}

// CrisisTriggered 危机触发
type CrisisTriggered struct {
	Crisis *crisis.Crisis `json:"crisis"`
	EndsAt int64          `json:"endsAt"`
}

// CrisisContribution 危机贡献
type CrisisContribution struct {
	crisis.ContributionResult
}

// CrisisResolved 危机结算
type CrisisResolved struct {
	Outcome crisis.Outcome `json:"outcome"`
	Nation  rules.Nation   `json:"nation"`
}

// GameEndedVictory 胜利结束
type GameEndedVictory struct {
	WinnerID string       `json:"winnerId"`
	Debrief  game.Debrief `json:"debrief"`
}

// GameEndedCollapse 国家崩溃结束
type GameEndedCollapse struct {
	Reason  rules.CollapseReason `json:"reason"`
	Debrief game.Debrief         `json:"debrief"`
}

// PlayerAfk 玩家挂机
type PlayerAfk struct {
	PlayerID string `json:"playerId"`
	Penalty  int    `json:"penalty"`
}

// PlayerActive 玩家恢复活跃
type PlayerActive struct {
	PlayerID string `json:"playerId"`
}
