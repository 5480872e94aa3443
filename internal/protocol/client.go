// Package protocol 客户端与服务端的 JSON 消息定义
package protocol

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/wfunc/statecraft/internal/game/rules"
)

// 客户端消息类型
const (
	TypeJoin                   = "join"
	TypeSelectIdeology         = "selectIdeology"
	TypeStartGame              = "startGame"
	TypeRollDice               = "rollDice"
	TypeProposeOption          = "proposeOption"
	TypeCastVote               = "castVote"
	TypeGiveToken              = "giveToken"
	TypeLeave                  = "leave"
	TypeChat                   = "chat"
	TypeContributeToCrisis     = "contributeToCrisis"
	TypeAcknowledgeTurnResults = "acknowledgeTurnResults"
)

// 解码错误
var (
	ErrInvalidMessage = stderrors.New("无效的消息格式")
	ErrUnknownType    = stderrors.New("未知的消息类型")
)

// Envelope 消息信封
type Envelope struct {
	Type      string          `json:"type"`
	PlayerID  string          `json:"playerId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// ClientMessage 客户端消息（和类型）
type ClientMessage interface {
	Type() string
}

// Join 加入房间；携带已知 playerId 时视为重连
type Join struct {
	PlayerName string `json:"playerName"`
}

// SelectIdeology 选择意识形态
type SelectIdeology struct {
	Ideology rules.Ideology `json:"ideology"`
}

// StartGame 开始游戏
type StartGame struct{}

// RollDice 掷骰
type RollDice struct{}

// ProposeOption 提出选项
type ProposeOption struct {
	OptionID string `json:"optionId"`
}

// CastVote 投票
type CastVote struct {
	Choice         rules.VoteChoice `json:"choice"`
	InfluenceSpent int              `json:"influenceSpent"`
}

// GiveToken 赠送支持令牌
type GiveToken struct {
	TargetPlayerID string `json:"targetPlayerId"`
}

// Leave 离开房间
type Leave struct{}

// Chat 聊天
type Chat struct {
	Text string `json:"text"`
}

// ContributeToCrisis 向危机投入影响力
type ContributeToCrisis struct {
	Amount int `json:"amount"`
}

// AcknowledgeTurnResults 确认回合结果
type AcknowledgeTurnResults struct {
	TurnNumber int `json:"turnNumber"`
}

func (Join) Type() string                   { return TypeJoin }
func (SelectIdeology) Type() string         { return TypeSelectIdeology }
func (StartGame) Type() string              { return TypeStartGame }
func (RollDice) Type() string               { return TypeRollDice }
func (ProposeOption) Type() string          { return TypeProposeOption }
func (CastVote) Type() string               { return TypeCastVote }
func (GiveToken) Type() string              { return TypeGiveToken }
func (Leave) Type() string                  { return TypeLeave }
func (Chat) Type() string                   { return TypeChat }
func (ContributeToCrisis) Type() string     { return TypeContributeToCrisis }
func (AcknowledgeTurnResults) Type() string { return TypeAcknowledgeTurnResults }

// Inbound 解码后的入站消息
type Inbound struct {
	Type     string
	PlayerID string
	Message  ClientMessage
}

// DecodeClientMessage 解码客户端消息
// 字段可以放在 data 中，也可以与 type 平铺在同一层。
// 未知类型返回 ErrUnknownType，其余格式问题返回 ErrInvalidMessage。
func DecodeClientMessage(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, ErrInvalidMessage
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return Inbound{}, ErrInvalidMessage
	}

	payload := raw
	if len(bytes.TrimSpace(env.Data)) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		payload = env.Data
	}

	in := Inbound{Type: env.Type, PlayerID: env.PlayerID}
	var err error
	switch env.Type {
	case TypeJoin:
		var m Join
		err = decodeInto(payload, &m)
		m.PlayerName = strings.TrimSpace(m.PlayerName)
		if err == nil && m.PlayerName == "" {
			err = ErrInvalidMessage
		}
		in.Message = m
	case TypeSelectIdeology:
		var m SelectIdeology
		err = decodeInto(payload, &m)
		if err == nil && m.Ideology == "" {
			err = ErrInvalidMessage
		}
		in.Message = m
	case TypeStartGame:
		in.Message = StartGame{}
	case TypeRollDice:
		in.Message = RollDice{}
	case TypeProposeOption:
		var m ProposeOption
		err = decodeInto(payload, &m)
		if err == nil && m.OptionID == "" {
			err = ErrInvalidMessage
		}
		in.Message = m
	case TypeCastVote:
		var m CastVote
		err = decodeInto(payload, &m)
		if err == nil && m.Choice == "" {
			err = ErrInvalidMessage
		}
		in.Message = m
	case TypeGiveToken:
		var m GiveToken
		err = decodeInto(payload, &m)
		if err == nil && m.TargetPlayerID == "" {
			err = ErrInvalidMessage
		}
		in.Message = m
	case TypeLeave:
		in.Message = Leave{}
	case TypeChat:
		var m Chat
		err = decodeInto(payload, &m)
		in.Message = m
	case TypeContributeToCrisis:
		var m ContributeToCrisis
		err = decodeInto(payload, &m)
		in.Message = m
	case TypeAcknowledgeTurnResults:
		var m AcknowledgeTurnResults
		err = decodeInto(payload, &m)
		in.Message = m
	default:
		return in, ErrUnknownType
	}
	if err != nil {
		return Inbound{}, ErrInvalidMessage
	}
	return in, nil
}

func decodeInto(payload []byte, v interface{}) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return ErrInvalidMessage
	}
	return nil
}
