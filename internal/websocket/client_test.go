package websocket

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/statecraft/internal/config"
	"github.com/wfunc/statecraft/internal/protocol"
	"github.com/wfunc/statecraft/internal/room"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// echoTarget 把收到的消息原样发回
type echoTarget struct {
	mu           sync.Mutex
	conn         room.Conn
	refuse       bool
	disconnected chan string
}

func newEchoTarget() *echoTarget {
	return &echoTarget{disconnected: make(chan string, 1)}
}

func (t *echoTarget) Connect(c room.Conn) error {
	if t.refuse {
		return stderrors.New("房间已关闭")
	}
	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()
	return nil
}

func (t *echoTarget) Receive(_ string, data []byte) {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	c.Send(data)
}

func (t *echoTarget) Disconnect(connID string) {
	t.disconnected <- connID
}

func (t *echoTarget) current() room.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func startServer(t *testing.T, target Target, opts Options) (*websocket.Conn, chan error) {
	t.Helper()
	upgrader := NewUpgrader(config.WebSocketConfig{ReadBufferSize: 1024, WriteBufferSize: 1024})
	serveErr := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serveErr <- err
			return
		}
		_, err = Serve(conn, target, opts, zap.NewNop())
		serveErr <- err
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, serveErr
}

func readMessage(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestClient_RoundTrip(t *testing.T) {
	target := newEchoTarget()
	opts := DefaultOptions()
	opts.RateLimit = 0
	conn, serveErr := startServer(t, target, opts)
	require.NoError(t, <-serveErr)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat","text":"hi"}`)))
	assert.JSONEq(t, `{"type":"chat","text":"hi"}`, string(readMessage(t, conn)))

	id := target.current().ID()
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	select {
	case got := <-target.disconnected:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("没有收到断开通知")
	}
}

func TestClient_RateLimited(t *testing.T) {
	target := newEchoTarget()
	opts := DefaultOptions()
	opts.RateLimit = rate.Limit(0.01)
	opts.Burst = 1
	conn, serveErr := startServer(t, target, opts)
	require.NoError(t, <-serveErr)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"rollDice"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"rollDice"}`)))

	assert.JSONEq(t, `{"type":"rollDice"}`, string(readMessage(t, conn)))
	limited := readMessage(t, conn)
	assert.Contains(t, string(limited), `"type":"error"`)
	assert.Contains(t, string(limited), string(protocol.CodeRateLimited))
}

func TestClient_ServerClose(t *testing.T) {
	target := newEchoTarget()
	conn, serveErr := startServer(t, target, DefaultOptions())
	require.NoError(t, <-serveErr)

	target.current().Close()
	assert.False(t, target.current().Send([]byte("late")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err=%v", err)
}

func TestServe_ConnectRefused(t *testing.T) {
	target := newEchoTarget()
	target.refuse = true
	conn, serveErr := startServer(t, target, DefaultOptions())
	assert.Error(t, <-serveErr)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	ws := config.WebSocketConfig{MaxMessageSize: 4096, SendBufferSize: 16, PongTimeout: time.Minute}

	opts := OptionsFromConfig(ws, config.RateLimitConfig{Enabled: true, MessagesPerSecond: 5})
	assert.Equal(t, rate.Limit(5), opts.RateLimit)
	assert.Equal(t, 5, opts.Burst)
	assert.Equal(t, int64(4096), opts.MaxMessageSize)

	opts = OptionsFromConfig(ws, config.RateLimitConfig{Enabled: false, MessagesPerSecond: 5})
	assert.Zero(t, opts.RateLimit)
}

func TestNewUpgrader_Origins(t *testing.T) {
	up := NewUpgrader(config.WebSocketConfig{AllowedOrigins: []string{"https://ok.example"}})
	req := httptest.NewRequest(http.MethodGet, "/ws/ABCDEF", nil)
	req.Header.Set("Origin", "https://ok.example")
	assert.True(t, up.CheckOrigin(req))
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, up.CheckOrigin(req))
}
