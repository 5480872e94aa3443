// Package room 单个游戏房间的会话编排
//
// 每个房间一个 goroutine，所有状态变更都经由 inbox 串行处理。
package room

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/protocol"
	"go.uber.org/zap"
)

type command interface{}

type connectCmd struct {
	conn Conn
}

type frameCmd struct {
	connID string
	data   []byte
}

type disconnectCmd struct {
	connID string
}

type timerFired struct {
	kind  TimerKind
	token uint64
}

type stopCmd struct {
	reason string
}

// connection 连接表中的一项
type connection struct {
	conn     Conn
	playerID string
}

// Summary 房间概况，供列表接口读取
type Summary struct {
	Code        string      `json:"code"`
	Status      game.Status `json:"status"`
	Phase       game.Phase  `json:"phase"`
	Players     int         `json:"players"`
	Connected   int         `json:"connected"`
	MaxPlayers  int         `json:"maxPlayers"`
	CurrentTurn int         `json:"currentTurn"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Room 房间编排器
type Room struct {
	code string
	opts Options
	log  *zap.Logger

	state    *game.RoomState
	provider content.Provider
	timers   Scheduler

	conns   map[string]*connection
	players map[string]string

	inbox    chan command
	done     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
	summary  atomic.Pointer[Summary]
	onClose  func(code string)

	awaitingCrisis bool
	archived       bool
}

// New 创建房间；调用 Run 之后才开始处理消息
func New(code string, opts Options) *Room {
	opts = opts.withDefaults()
	r := &Room{
		code:    code,
		opts:    opts,
		log:     opts.Logger.With(zap.String("room", code)),
		state:   game.NewRoomState(code, opts.Settings, opts.Now()),
		conns:   make(map[string]*connection),
		players: make(map[string]string),
		inbox:   make(chan command, opts.InboxSize),
		done:    make(chan struct{}),
	}
	if opts.NewProvider != nil {
		r.provider = opts.NewProvider()
	}
	r.timers = opts.NewScheduler(func(kind TimerKind, token uint64) {
		r.post(timerFired{kind: kind, token: token})
	})
	r.timers.Arm(TimerRoomExpiry, opts.Timers.RoomExpiry)
	r.publishSummary()
	return r
}

// Code 房间码
func (r *Room) Code() string {
	return r.code
}

// Done 房间关闭后关闭
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Summary 最近一次处理后的房间概况
func (r *Room) Summary() Summary {
	return *r.summary.Load()
}

// Run 处理 inbox 直到房间关闭
func (r *Room) Run() {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("房间处理异常", zap.Any("panic", rec), zap.Stack("stack"))
			r.teardown("panic")
		}
	}()

	for {
		select {
		case cmd := <-r.inbox:
			r.handle(cmd)
			if r.closed.Load() {
				return
			}
		case <-r.done:
			return
		}
	}
}

// Connect 接入一条连接
func (r *Room) Connect(c Conn) error {
	if !r.post(connectCmd{conn: c}) {
		return errors.New(errors.ErrRoomClosed, r.code)
	}
	return nil
}

// Receive 投递一帧客户端消息
func (r *Room) Receive(connID string, data []byte) {
	r.post(frameCmd{connID: connID, data: data})
}

// Disconnect 连接断开
func (r *Room) Disconnect(connID string) {
	r.post(disconnectCmd{connID: connID})
}

// Stop 关闭房间
func (r *Room) Stop() {
	r.post(stopCmd{reason: "stopped"})
}

// post 投递命令；房间已关闭时返回 false
func (r *Room) post(cmd command) bool {
	if r.closed.Load() {
		return false
	}
	select {
	case r.inbox <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// handle 处理单条命令，只在房间 goroutine 中调用
func (r *Room) handle(cmd command) {
	switch c := cmd.(type) {
	case connectCmd:
		r.conns[c.conn.ID()] = &connection{conn: c.conn}
		r.log.Debug("连接接入", zap.String("conn_id", c.conn.ID()))
	case frameCmd:
		r.handleFrame(c.connID, c.data)
	case disconnectCmd:
		r.handleDisconnect(c.connID)
	case timerFired:
		if r.timers.Claim(c.kind, c.token) {
			r.handleTimer(c.kind)
		}
	case stopCmd:
		r.teardown(c.reason)
	}
	r.publishSummary()
}

// teardown 取消所有计时器并关闭全部连接
func (r *Room) teardown(reason string) {
	r.stopOnce.Do(func() {
		r.closed.Store(true)
		r.timers.Stop()
		for id, c := range r.conns {
			c.conn.Close()
			delete(r.conns, id)
		}
		r.players = make(map[string]string)
		r.log.Info("房间关闭", zap.String("reason", reason))
		if r.onClose != nil {
			r.onClose(r.code)
		}
		close(r.done)
	})
}

func (r *Room) publishSummary() {
	s := r.state
	connected := 0
	for _, p := range s.Players {
		if p.IsConnected {
			connected++
		}
	}
	r.summary.Store(&Summary{
		Code:        r.code,
		Status:      s.Status,
		Phase:       s.Phase,
		Players:     len(s.Players),
		Connected:   connected,
		MaxPlayers:  s.Settings.MaxPlayers,
		CurrentTurn: s.CurrentTurn,
		CreatedAt:   s.CreatedAt,
	})
}

// send 发送给单条连接
func (r *Room) send(c *connection, msg protocol.ServerMessage) {
	data, err := msg.Encode(r.opts.Now())
	if err != nil {
		r.log.Error("编码消息失败", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	if !c.conn.Send(data) {
		r.log.Warn("连接发送缓冲区满", zap.String("conn_id", c.conn.ID()), zap.String("type", msg.Type))
	}
}

// broadcast 发送给所有已加入的连接，except 为空时不排除
func (r *Room) broadcast(msg protocol.ServerMessage, except string) {
	data, err := msg.Encode(r.opts.Now())
	if err != nil {
		r.log.Error("编码消息失败", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	for _, p := range r.state.Players {
		connID, ok := r.players[p.ID]
		if !ok || p.ID == except {
			continue
		}
		c := r.conns[connID]
		if c == nil {
			continue
		}
		if !c.conn.Send(data) {
			r.log.Warn("连接发送缓冲区满", zap.String("conn_id", connID), zap.String("type", msg.Type))
		}
	}
}

// syncTo 向单条连接发送完整状态
func (r *Room) syncTo(c *connection) {
	r.send(c, protocol.New(protocol.TypeRoomStateSync, protocol.RoomStateSync{
		State:        r.state.View(),
		YourPlayerID: c.playerID,
	}))
}

// syncAll 向所有已加入的连接发送完整状态
func (r *Room) syncAll() {
	for _, p := range r.state.Players {
		if c := r.conns[r.players[p.ID]]; c != nil {
			r.syncTo(c)
		}
	}
}

// reject 只回复请求方
func (r *Room) reject(c *connection, msgType string, err error) {
	msg := err.Error()
	if appErr, ok := err.(*errors.AppError); ok {
		msg = appErr.UserMessage()
	}
	fields := []zap.Field{
		zap.String("type", msgType),
		zap.String("player_id", c.playerID),
		zap.Int("code", int(errors.GetCode(err))),
		zap.String("reason", msg),
	}
	// 规则校验失败只记调试日志
	if errors.IsGameRule(err) {
		r.log.Debug("操作被拒绝", fields...)
	} else {
		r.log.Warn("操作被拒绝", fields...)
	}
	r.send(c, protocol.ErrorMessage(protocol.FailureCode(msgType), msg))
}
