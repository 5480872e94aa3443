package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/statecraft/internal/config"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/protocol"
	"github.com/wfunc/statecraft/internal/room"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Target 接收连接消息的一方（房间）
type Target interface {
	Connect(c room.Conn) error
	Receive(connID string, data []byte)
	Disconnect(connID string)
}

// Options 连接参数
type Options struct {
	MaxMessageSize int64
	SendBufferSize int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration

	// RateLimit 为 0 时不限流
	RateLimit rate.Limit
	Burst     int
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 8192,
		SendBufferSize: 256,
		PingInterval:   54 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		RateLimit:      10,
		Burst:          20,
	}
}

// OptionsFromConfig 从配置生成连接参数
func OptionsFromConfig(ws config.WebSocketConfig, rl config.RateLimitConfig) Options {
	opts := Options{
		MaxMessageSize: ws.MaxMessageSize,
		SendBufferSize: ws.SendBufferSize,
		PingInterval:   ws.PingInterval,
		PongTimeout:    ws.PongTimeout,
		WriteTimeout:   ws.WriteTimeout,
	}
	if rl.Enabled && rl.MessagesPerSecond > 0 {
		opts.RateLimit = rate.Limit(rl.MessagesPerSecond)
		opts.Burst = rl.Burst
		if opts.Burst <= 0 {
			opts.Burst = rl.MessagesPerSecond
		}
	}
	return opts
}

// NewUpgrader 按配置创建升级器；未配置来源白名单时允许所有来源
func NewUpgrader(cfg config.WebSocketConfig) *websocket.Upgrader {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:    cfg.ReadBufferSize,
		WriteBufferSize:   cfg.WriteBufferSize,
		EnableCompression: cfg.EnableCompression,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			return allowed[r.Header.Get("Origin")]
		},
	}
}

// Client 一条 WebSocket 连接，实现 room.Conn
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	opts    Options
	limiter *rate.Limiter
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient 创建客户端
func NewClient(conn *websocket.Conn, opts Options, log *zap.Logger) *Client {
	if log == nil {
		log = logger.GetModuleLogger("websocket")
	}
	if opts.SendBufferSize <= 0 {
		opts.SendBufferSize = 256
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 60 * time.Second
	}
	if opts.PingInterval <= 0 || opts.PingInterval >= opts.PongTimeout {
		// ping 周期必须小于 pong 超时
		opts.PingInterval = opts.PongTimeout * 9 / 10
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}

	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, opts.SendBufferSize),
		opts: opts,
		log:  log,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(opts.RateLimit, opts.Burst)
	}
	return c
}

// Serve 接入房间并启动读写协程
func Serve(conn *websocket.Conn, target Target, opts Options, log *zap.Logger) (*Client, error) {
	c := NewClient(conn, opts, log)
	if err := target.Connect(c); err != nil {
		conn.Close()
		return nil, err
	}
	go c.WritePump()
	go c.ReadPump(target)
	c.log.Info("WebSocket连接建立", zap.String("client_id", c.id))
	return c, nil
}

// ID 连接ID
func (c *Client) ID() string {
	return c.id
}

// Send 非阻塞写入发送队列
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close 关闭发送队列，写协程发送关闭帧后断开
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump 读取消息并转交房间；超过限流的消息直接回复 RATE_LIMITED
func (c *Client) ReadPump(target Target) {
	defer func() {
		target.Disconnect(c.id)
		c.Close()
		c.conn.Close()
	}()

	if c.opts.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket读取错误", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		logger.LogWebSocketMessage("receive", c.id, "", len(message))

		if c.limiter != nil && !c.limiter.Allow() {
			c.rateLimited()
			continue
		}
		target.Receive(c.id, message)
	}
}

func (c *Client) rateLimited() {
	data, err := protocol.ErrorMessage(protocol.CodeRateLimited, "消息发送过于频繁").Encode(time.Now())
	if err != nil {
		return
	}
	c.Send(data)
}

// WritePump 发送队列中的消息，每条消息一帧，并定期发送 ping
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("WebSocket写入失败", zap.String("client_id", c.id), zap.Error(err))
				return
			}
			logger.LogWebSocketMessage("send", c.id, "", len(message))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
