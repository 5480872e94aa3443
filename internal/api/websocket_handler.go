package api

import (
	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/wfunc/statecraft/internal/room"
	"github.com/wfunc/statecraft/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	rooms    *room.Manager
	upgrader *gorillaws.Upgrader
	opts     websocket.Options
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(rooms *room.Manager, upgrader *gorillaws.Upgrader, opts websocket.Options, logger *zap.Logger) *WebSocketHandler {
	if upgrader == nil {
		upgrader = &gorillaws.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	}
	return &WebSocketHandler{
		rooms:    rooms,
		upgrader: upgrader,
		opts:     opts,
		logger:   logger,
	}
}

// GameWebSocket 接入房间；房间码合法但不存在时按需创建
func (h *WebSocketHandler) GameWebSocket(c *gin.Context) {
	target, err := h.rooms.GetOrCreate(c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败",
			zap.String("room", target.Code()),
			zap.String("ip", c.ClientIP()),
			zap.Error(err))
		return
	}

	client, err := websocket.Serve(conn, target, h.opts, h.logger)
	if err != nil {
		h.logger.Warn("接入房间失败", zap.String("room", target.Code()), zap.Error(err))
		return
	}

	h.logger.Info("玩家连接接入房间",
		zap.String("client_id", client.ID()),
		zap.String("room", target.Code()),
		zap.String("ip", c.ClientIP()))
}
