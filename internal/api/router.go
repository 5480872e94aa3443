package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/wfunc/statecraft/internal/database"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/middleware"
	"github.com/wfunc/statecraft/internal/repository"
	"github.com/wfunc/statecraft/internal/room"
	"github.com/wfunc/statecraft/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由依赖
type Deps struct {
	Rooms    *room.Manager
	DB       *gorm.DB                         // 归档关闭时为 nil
	Archives repository.GameArchiveRepository // 归档关闭时为 nil
	Upgrader *gorillaws.Upgrader
	WSPath   string
	WS       websocket.Options
	Log      *zap.Logger
}

// Router API路由器
type Router struct {
	engine   *gin.Engine
	rooms    *room.Manager
	db       *gorm.DB
	archives repository.GameArchiveRepository
	ws       *WebSocketHandler
	log      *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Deps) *Router {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.WSPath == "" {
		deps.WSPath = "/ws"
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.AccessLog(deps.Log))

	r := &Router{
		engine:   engine,
		rooms:    deps.Rooms,
		db:       deps.DB,
		archives: deps.Archives,
		ws:       NewWebSocketHandler(deps.Rooms, deps.Upgrader, deps.WS, deps.Log),
		log:      deps.Log,
	}
	r.setupRoutes(deps.WSPath)
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(wsPath string) {
	r.engine.GET("/health", r.healthCheck)
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	v1 := r.engine.Group("/api/v1")
	{
		rooms := v1.Group("/rooms")
		{
			rooms.GET("", r.listRooms)
			rooms.POST("", r.createRoom)
			rooms.GET("/:code", r.getRoom)
		}

		games := v1.Group("/games")
		{
			games.GET("", r.listGames)
			games.GET("/:id", r.getGame)
		}
	}

	r.engine.GET(wsPath+"/:code", r.ws.GameWebSocket)

	r.engine.NoRoute(func(c *gin.Context) {
		respondError(c, errors.New(errors.ErrNotFound, "接口不存在"))
	})
}

// healthCheck 健康检查；归档库不可用只降级不报错
func (r *Router) healthCheck(c *gin.Context) {
	archive := "disabled"
	if r.db != nil {
		archive = "healthy"
		if !database.IsConnected(r.db) {
			archive = "unhealthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"rooms":   r.rooms.Count(),
		"archive": archive,
	})
}

// Handler 返回 http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// respondError 输出统一错误响应，不带调用栈
func respondError(c *gin.Context, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrUnknown)
	}
	if appErr.HTTPStatus() >= http.StatusInternalServerError {
		logger.GetModuleLogger("api").Error("请求处理失败",
			zap.Error(appErr),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("stack", appErr.GetStack()))
	}
	public := &errors.AppError{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errors.NewErrorResponse(public, middleware.GetRequestID(c)))
}
