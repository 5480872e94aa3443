package room

import (
	stderrors "errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/game/rules"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/protocol"
	"go.uber.org/zap"
)

// handleFrame 解码并按类型分发
func (r *Room) handleFrame(connID string, data []byte) {
	c := r.conns[connID]
	if c == nil {
		return
	}

	in, err := protocol.DecodeClientMessage(data)
	if err != nil {
		if stderrors.Is(err, protocol.ErrUnknownType) {
			r.log.Warn("忽略未知消息类型", zap.String("conn_id", connID), zap.String("type", in.Type))
			return
		}
		r.send(c, protocol.ErrorMessage(protocol.CodeInvalidMessage, err.Error()))
		return
	}

	if m, ok := in.Message.(protocol.Join); ok {
		r.handleJoin(c, in.PlayerID, m)
		return
	}
	if c.playerID == "" {
		r.reject(c, in.Type, errors.New(errors.ErrNotJoined))
		return
	}
	r.touch(c.playerID)

	switch m := in.Message.(type) {
	case protocol.SelectIdeology:
		r.handleSelectIdeology(c, m)
	case protocol.StartGame:
		r.handleStartGame(c)
	case protocol.RollDice:
		r.handleRollDice(c)
	case protocol.ProposeOption:
		r.handlePropose(c, m)
	case protocol.CastVote:
		r.handleCastVote(c, m)
	case protocol.GiveToken:
		r.handleGiveToken(c, m)
	case protocol.Leave:
		r.handleLeave(c)
	case protocol.Chat:
		r.handleChat(c, m)
	case protocol.ContributeToCrisis:
		r.handleContribute(c, m)
	case protocol.AcknowledgeTurnResults:
		r.handleAcknowledge(c, m)
	}
}

// touch 记录活跃；挂机玩家恢复时广播
func (r *Room) touch(playerID string) {
	if !r.state.Playing() {
		return
	}
	next, wasAfk, err := game.RecordPlayerActivity(r.state, playerID, r.opts.Now())
	if err != nil {
		return
	}
	r.state = next
	if wasAfk {
		r.broadcast(protocol.New(protocol.TypePlayerActive, protocol.PlayerActive{PlayerID: playerID}), "")
	}
}

// handleJoin 新玩家加入，或携带已知 playerId 的断线玩家重连
func (r *Room) handleJoin(c *connection, playerID string, m protocol.Join) {
	if c.playerID != "" {
		r.reject(c, protocol.TypeJoin, errors.New(errors.ErrDuplicatePlayer, c.playerID))
		return
	}

	now := r.opts.Now()
	if existing, ok := r.state.Player(playerID); ok && playerID != "" {
		if existing.IsConnected {
			r.reject(c, protocol.TypeJoin, errors.New(errors.ErrDuplicatePlayer, playerID))
			return
		}
		next, err := game.SetPlayerConnected(r.state, playerID, true, now)
		if err != nil {
			r.reject(c, protocol.TypeJoin, err)
			return
		}
		r.state = next
		r.bind(c, playerID)
		p, _ := r.state.Player(playerID)
		r.syncTo(c)
		r.broadcast(protocol.New(protocol.TypePlayerJoined, protocol.PlayerJoined{Player: p, Reconnected: true}), playerID)
		r.log.Info("玩家重连", zap.String("player_id", playerID))
		return
	}

	id := uuid.NewString()
	next, p, err := game.AddPlayerToRoom(r.state, id, m.PlayerName, now)
	if err != nil {
		r.reject(c, protocol.TypeJoin, err)
		return
	}
	r.state = next
	r.bind(c, id)
	r.syncTo(c)
	r.broadcast(protocol.New(protocol.TypePlayerJoined, protocol.PlayerJoined{Player: p}), id)
	r.log.Info("玩家加入", zap.String("player_id", id), zap.String("name", p.Name))
}

// bind 关联玩家和连接；同一玩家的旧连接被解除
func (r *Room) bind(c *connection, playerID string) {
	if old, ok := r.players[playerID]; ok && old != c.conn.ID() {
		if oc := r.conns[old]; oc != nil {
			oc.playerID = ""
		}
	}
	c.playerID = playerID
	r.players[playerID] = c.conn.ID()
}

func (r *Room) handleSelectIdeology(c *connection, m protocol.SelectIdeology) {
	next, err := game.SelectIdeology(r.state, c.playerID, m.Ideology)
	if err != nil {
		r.reject(c, protocol.TypeSelectIdeology, err)
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeIdeologySelected, protocol.IdeologySelected{
		PlayerID: c.playerID,
		Ideology: m.Ideology,
	}), "")
}

func (r *Room) handleStartGame(c *connection) {
	next, first, err := game.StartGame(r.state, c.playerID, r.opts.Now())
	if err != nil {
		r.reject(c, protocol.TypeStartGame, err)
		return
	}
	r.state = next
	r.timers.Arm(TimerAFKPoll, r.opts.Timers.AFKPoll)

	logger.LogGameEvent(r.log, "game_started", r.code, r.state.CurrentTurn,
		zap.Int("players", len(r.state.Players)), zap.String("first_player", first))
	r.broadcast(protocol.New(protocol.TypeGameStarted, protocol.GameStarted{
		FirstPlayerID: first,
		Turn:          r.state.CurrentTurn,
	}), "")
	r.broadcastTurnStarted()
}

// handleRollDice 掷骰后立即抽卡并开启讨论；抽卡失败时掷骰不生效
func (r *Room) handleRollDice(c *connection) {
	rolled, roll, err := game.PerformDiceRoll(r.state, c.playerID, r.opts.Roller)
	if err != nil {
		r.reject(c, protocol.TypeRollDice, err)
		return
	}
	if r.provider == nil {
		r.reject(c, protocol.TypeRollDice, errors.New(errors.ErrNotFound, "没有可用的卡组"))
		return
	}
	card, err := r.provider.Draw(rolled.CurrentZone())
	if err != nil {
		r.log.Error("抽卡失败", zap.Error(err))
		r.reject(c, protocol.TypeRollDice, err)
		return
	}
	next, endsAt, err := game.SetCurrentCard(rolled, card, r.opts.Now())
	if err != nil {
		r.reject(c, protocol.TypeRollDice, err)
		return
	}
	r.state = next

	r.broadcast(protocol.New(protocol.TypeDiceRolled, protocol.DiceRolled{
		PlayerID:     roll.PlayerID,
		Roll:         roll.Roll,
		ModifiedRoll: roll.ModifiedRoll,
		Modifier:     roll.Modifier,
	}), "")
	r.broadcast(protocol.New(protocol.TypeCardDrawn, protocol.CardDrawn{Card: card}), "")
	r.broadcast(protocol.New(protocol.TypeDeliberationStarted, protocol.DeliberationStarted{
		EndsAt: endsAt.UnixMilli(),
	}), "")
	r.timers.Arm(TimerDeliberation, r.state.Settings.DeliberationDuration)
}

func (r *Room) handlePropose(c *connection, m protocol.ProposeOption) {
	next, option, err := game.ProposeOption(r.state, c.playerID, m.OptionID)
	if err != nil {
		r.reject(c, protocol.TypeProposeOption, err)
		return
	}
	r.state = next
	r.timers.Disarm(TimerDeliberation)

	r.broadcast(protocol.New(protocol.TypeOptionProposed, protocol.OptionProposed{
		PlayerID: c.playerID,
		OptionID: m.OptionID,
		Option:   option,
	}), "")
	r.broadcast(protocol.New(protocol.TypeVotingStarted, protocol.VotingStarted{
		OptionID: m.OptionID,
		Voters:   r.expectedVoters(),
	}), "")
}

// expectedVoters 在线且未挂机的玩家
func (r *Room) expectedVoters() []string {
	ids := make([]string, 0, len(r.state.Players))
	for _, p := range r.state.Players {
		if p.IsConnected && !r.state.AFKPlayers[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (r *Room) handleCastVote(c *connection, m protocol.CastVote) {
	next, allVoted, err := game.CastVote(r.state, rules.Vote{
		PlayerID:       c.playerID,
		Choice:         m.Choice,
		InfluenceSpent: m.InfluenceSpent,
		Timestamp:      r.opts.Now(),
	})
	if err != nil {
		r.reject(c, protocol.TypeCastVote, err)
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypePlayerVoted, protocol.PlayerVoted{PlayerID: c.playerID}), "")
	if allVoted {
		r.resolveTurn()
	}
}

func (r *Room) handleGiveToken(c *connection, m protocol.GiveToken) {
	next, token, err := game.GiveToken(r.state, c.playerID, m.TargetPlayerID)
	if err != nil {
		r.reject(c, protocol.TypeGiveToken, err)
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeTokenGiven, protocol.TokenGiven{
		TokenID:  token.ID,
		OwnerID:  token.OwnerID,
		HolderID: token.HeldByID,
	}), "")
}

func (r *Room) handleChat(c *connection, m protocol.Chat) {
	text := sanitizeChat(m.Text)
	if text == "" || utf8.RuneCountInString(text) > r.opts.MaxChatLength {
		r.reject(c, protocol.TypeChat, errors.Newf(errors.ErrInvalidChat, "长度 1-%d", r.opts.MaxChatLength))
		return
	}
	p, _ := r.state.Player(c.playerID)
	r.broadcast(protocol.New(protocol.TypeChatBroadcast, protocol.ChatBroadcast{
		PlayerID: p.ID,
		Name:     p.Name,
		Text:     text,
		SentAt:   r.opts.Now().UnixMilli(),
	}), "")
}

// sanitizeChat 去掉控制字符并合并首尾空白
func sanitizeChat(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

func (r *Room) handleAcknowledge(c *connection, m protocol.AcknowledgeTurnResults) {
	next, allAck, err := game.AcknowledgeTurnResults(r.state, c.playerID, m.TurnNumber)
	if err != nil {
		r.reject(c, protocol.TypeAcknowledgeTurnResults, err)
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypeTurnResultsAcknowledged, protocol.TurnResultsAcknowledged{
		PlayerID: c.playerID,
		Pending:  r.state.PendingAcknowledgmentIDs(),
	}), "")
	if allAck {
		r.completeResults()
	}
}

// handleLeave 主动离开：解除绑定后按断线处理，并关闭连接
func (r *Room) handleLeave(c *connection) {
	playerID := c.playerID
	c.playerID = ""
	delete(r.players, playerID)
	r.playerGone(playerID, false)
	c.conn.Close()
}

// handleDisconnect 传输层断开
func (r *Room) handleDisconnect(connID string) {
	c := r.conns[connID]
	if c == nil {
		return
	}
	delete(r.conns, connID)
	if c.playerID != "" && r.players[c.playerID] == connID {
		delete(r.players, c.playerID)
		r.playerGone(c.playerID, true)
	}

	if len(r.conns) == 0 && (len(r.state.Players) == 0 || r.state.Over()) {
		r.teardown("empty")
	}
}

// playerGone 玩家离开或断线
// 大厅中直接移除；游戏中标记离线，必要时推进回合。
func (r *Room) playerGone(playerID string, disconnected bool) {
	if !r.state.Playing() && !r.state.Over() {
		next, newHost, err := game.RemovePlayer(r.state, playerID)
		if err != nil {
			return
		}
		r.state = next
		r.broadcast(protocol.New(protocol.TypePlayerLeft, protocol.PlayerLeft{
			PlayerID:     playerID,
			NewHostID:    newHost,
			Disconnected: disconnected,
		}), "")
		return
	}

	next, err := game.SetPlayerConnected(r.state, playerID, false, r.opts.Now())
	if err != nil {
		return
	}
	r.state = next
	r.broadcast(protocol.New(protocol.TypePlayerLeft, protocol.PlayerLeft{
		PlayerID:     playerID,
		Disconnected: true,
	}), "")
	if !r.state.Playing() {
		return
	}

	switch {
	case r.state.ActivePlayerID == playerID && r.state.Phase.BeforeProposal():
		r.skipTurn("disconnected")
	case game.AllVotesIn(r.state):
		r.resolveTurn()
	case r.state.Phase == game.PhaseShowingResults && len(r.state.PendingAcknowledgments) == 0 && !r.awaitingCrisis:
		// 危机结算后的延迟由 TimerCrisisContinue 推进
		r.completeResults()
	}
}
