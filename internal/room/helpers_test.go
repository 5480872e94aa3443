package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/game"
	"github.com/wfunc/statecraft/internal/game/crisis"
	"github.com/wfunc/statecraft/internal/game/rules"
	"github.com/wfunc/statecraft/internal/protocol"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeScheduler 记录每种计时器的启动与取消次数，由测试手动触发
type fakeScheduler struct {
	seq       uint64
	armed     map[TimerKind]uint64
	durations map[TimerKind]time.Duration
	arms      map[TimerKind]int
	disarms   map[TimerKind]int
	stopped   bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{
		armed:     make(map[TimerKind]uint64),
		durations: make(map[TimerKind]time.Duration),
		arms:      make(map[TimerKind]int),
		disarms:   make(map[TimerKind]int),
	}
}

func (s *fakeScheduler) Arm(kind TimerKind, d time.Duration) uint64 {
	if s.stopped {
		return 0
	}
	s.seq++
	s.armed[kind] = s.seq
	s.durations[kind] = d
	s.arms[kind]++
	return s.seq
}

func (s *fakeScheduler) Disarm(kind TimerKind) {
	if _, ok := s.armed[kind]; ok {
		delete(s.armed, kind)
		s.disarms[kind]++
	}
}

func (s *fakeScheduler) Claim(kind TimerKind, token uint64) bool {
	cur, ok := s.armed[kind]
	if !ok || cur != token {
		return false
	}
	delete(s.armed, kind)
	return true
}

func (s *fakeScheduler) Armed(kind TimerKind) bool {
	_, ok := s.armed[kind]
	return ok
}

func (s *fakeScheduler) Stop() {
	s.stopped = true
	s.armed = make(map[TimerKind]uint64)
}

// fakeConn 记录收到的消息
type fakeConn struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return true
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		var env protocol.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	envs := c.envelopes(t)
	out := make([]string, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Type)
	}
	return out
}

// last 解码最后一条指定类型的消息
func (c *fakeConn) last(t *testing.T, msgType string, v interface{}) bool {
	t.Helper()
	envs := c.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == msgType {
			if v != nil {
				require.NoError(t, json.Unmarshal(envs[i].Data, v))
			}
			return true
		}
	}
	return false
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fixedProvider 每次返回同一张牌
type fixedProvider struct {
	card content.DecisionCard
}

func (p fixedProvider) Draw(zone content.Zone) (content.DecisionCard, error) {
	card := p.card
	card.Zone = zone
	return card, nil
}

// recordingArchiver 记录归档调用
type recordingArchiver struct {
	calls chan game.Debrief
}

func (a *recordingArchiver) ArchiveGame(_ context.Context, _ *game.RoomState, d game.Debrief) error {
	a.calls <- d
	return nil
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
			},
			{
				ID:     "cut",
				Label:  "削减",
				Effect: rules.Delta{Budget: 2, Stability: -1},
			},
		},
	}
}

func testCatalog() *content.Catalog {
	return &content.Catalog{
		Crises: []crisis.Definition{
			{
				ID:                       "bank-run",
				Title:                    "挤兑",
				Dimension:                crisis.DimensionBudget,
				ContributionThreshold:    4,
				MaxContributionPerPlayer: 3,
				SuccessEffect:            rules.Delta{Budget: 3},
				FailureEffect:            rules.Delta{Budget: -2},
			},
		},
	}
}

type harness struct {
	t     *testing.T
	room  *Room
	sched *fakeScheduler
	now   time.Time
	conns []*fakeConn
	ids   []string
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, sched: newFakeScheduler(), now: t0}
	opts := Options{
		Settings:     game.DefaultSettings(),
		Timers:       DefaultTimers(),
		Catalog:      testCatalog(),
		NewProvider:  func() content.Provider { return fixedProvider{card: testCard()} },
		Roller:       rules.RollerFunc(func(int) int { return 3 }),
		NewScheduler: func(FireFunc) Scheduler { return h.sched },
		Now:          func() time.Time { return h.now },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.room = New("ABCDEF", opts)
	return h
}

func (h *harness) state() *game.RoomState {
	return h.room.state
}

func (h *harness) connect(name string) *fakeConn {
	c := &fakeConn{id: "conn-" + name}
	h.room.handle(connectCmd{conn: c})
	return c
}

// send 以 type + data 的形式投递一条消息
func (h *harness) send(c *fakeConn, msgType string, data interface{}) {
	h.t.Helper()
	env := map[string]interface{}{"type": msgType}
	if data != nil {
		env["data"] = data
	}
	raw, err := json.Marshal(env)
	require.NoError(h.t, err)
	h.room.handle(frameCmd{connID: c.id, data: raw})
}

func (h *harness) join(name string) (*fakeConn, string) {
	h.t.Helper()
	c := h.connect(name)
	h.send(c, protocol.TypeJoin, map[string]string{"playerName": name})
	var payload struct {
		YourPlayerID string `json:"yourPlayerId"`
	}
	require.True(h.t, c.last(h.t, protocol.TypeRoomStateSync, &payload))
	require.NotEmpty(h.t, payload.YourPlayerID)
	h.conns = append(h.conns, c)
	h.ids = append(h.ids, payload.YourPlayerID)
	return c, payload.YourPlayerID
}

// started n 名玩家加入、选择不同意识形态并开始
func (h *harness) started(n int) {
	h.t.Helper()
	ideologies := rules.AllIdeologies()
	for i := 0; i < n; i++ {
		c, _ := h.join(fmt.Sprintf("玩家%d", i+1))
		h.send(c, protocol.TypeSelectIdeology, map[string]string{"ideology": string(ideologies[i])})
	}
	h.send(h.conns[0], protocol.TypeStartGame, nil)
	require.True(h.t, h.state().Playing())
}

// connOf 玩家对应的测试连接
func (h *harness) connOf(playerID string) *fakeConn {
	for i, id := range h.ids {
		if id == playerID {
			return h.conns[i]
		}
	}
	h.t.Fatalf("未知玩家 %s", playerID)
	return nil
}

func (h *harness) active() *fakeConn {
	return h.connOf(h.state().ActivePlayerID)
}

// toVoting 行动玩家掷骰并提出选项
func (h *harness) toVoting(optionID string) {
	h.t.Helper()
	h.send(h.active(), protocol.TypeRollDice, nil)
	require.Equal(h.t, game.PhaseDeliberating, h.state().Phase)
	h.send(h.active(), protocol.TypeProposeOption, map[string]string{"optionId": optionID})
	require.Equal(h.t, game.PhaseVoting, h.state().Phase)
}

// voteAll 所有玩家投同一票
func (h *harness) voteAll(choice rules.VoteChoice) {
	h.t.Helper()
	for _, c := range h.conns {
		h.send(c, protocol.TypeCastVote, map[string]interface{}{"choice": choice, "influenceSpent": 0})
	}
}

func (h *harness) ackAll() {
	h.t.Helper()
	turn := h.state().CurrentTurn
	for _, c := range h.conns {
		h.send(c, protocol.TypeAcknowledgeTurnResults, map[string]int{"turnNumber": turn})
	}
}

// fire 触发当前有效的计时器
func (h *harness) fire(kind TimerKind) {
	h.t.Helper()
	token, ok := h.sched.armed[kind]
	require.True(h.t, ok, "计时器 %s 未启动", kind)
	h.room.handle(timerFired{kind: kind, token: token})
}

func (h *harness) resetAll() {
	for _, c := range h.conns {
		c.reset()
	}
}

func errorCode(t *testing.T, c *fakeConn) protocol.ErrorCode {
	t.Helper()
	var p protocol.ErrorPayload
	require.True(t, c.last(t, protocol.TypeError, &p), "没有收到错误消息")
	return p.Code
}
