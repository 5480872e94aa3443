package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/statecraft/internal/api"
	"github.com/wfunc/statecraft/internal/config"
	"github.com/wfunc/statecraft/internal/content"
	"github.com/wfunc/statecraft/internal/database"
	"github.com/wfunc/statecraft/internal/errors"
	"github.com/wfunc/statecraft/internal/logger"
	"github.com/wfunc/statecraft/internal/repository"
	"github.com/wfunc/statecraft/internal/room"
	"github.com/wfunc/statecraft/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	db      *gorm.DB
	rooms   *room.Manager
	httpSrv *http.Server

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	setupSystem(&cfg.System)

	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动 Statecraft 服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	s.startHTTPServer()

	// 热更新只应用日志级别，规则参数需要重启生效
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.cfg.Server.Addr()),
		zap.String("websocket", s.cfg.Server.Addr()+s.cfg.WebSocket.Path+"/:code"),
	)

	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	s.logger.Info("初始化组件...")

	var archiver room.Archiver
	var archives repository.GameArchiveRepository
	if s.cfg.Archive.Enabled {
		if err := s.initDatabase(); err != nil {
			return err
		}
		archives = repository.NewGameArchiveRepository(s.db)
		archiver = archives
	}

	catalog, err := loadCatalog(s.cfg.Game.DeckFile)
	if err != nil {
		return err
	}

	settings, timers := room.SettingsFromConfig(s.cfg.Game)
	s.rooms = room.NewManager(room.Options{
		Settings:       settings,
		Timers:         timers,
		Catalog:        catalog,
		Archiver:       archiver,
		ArchiveTimeout: s.cfg.Archive.Timeout,
		Logger:         logger.GetModuleLogger("room"),
	})

	if s.cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Rooms:    s.rooms,
		DB:       s.db,
		Archives: archives,
		Upgrader: websocket.NewUpgrader(s.cfg.WebSocket),
		WSPath:   s.cfg.WebSocket.Path,
		WS:       websocket.OptionsFromConfig(s.cfg.WebSocket, s.cfg.Security.RateLimit),
		Log:      logger.GetModuleLogger("api"),
	})

	s.httpSrv = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化归档数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	db, err := database.Open(&s.cfg.Database)
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	s.db = db

	s.logger.Info("数据库初始化完成")
	return nil
}

// loadCatalog 未配置牌组文件时使用内置牌组
func loadCatalog(path string) (*content.Catalog, error) {
	if path == "" {
		return content.DefaultCatalog()
	}
	return content.LoadCatalogFile(path)
}

// startHTTPServer 启动HTTP服务
func (s *Server) startHTTPServer() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
			select {
			case <-s.shutdownCh:
			default:
				close(s.shutdownCh)
			}
		}
	}()
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	select {
	case sig := <-sigCh:
		s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case <-s.shutdownCh:
		s.logger.Warn("服务异常，准备退出")
	}
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("停止接收新请求...")
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}

	// 房间关闭会断开所有 WebSocket 连接
	done := make(chan struct{})
	go func() {
		s.rooms.Shutdown()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() {
	s.logger.Info("关闭组件...")

	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Error("关闭数据库失败", zap.Error(err))
		}
	}

	s.logger.Info("所有组件已关闭")
}

// reloadConfig 重新加载配置
func (s *Server) reloadConfig(newCfg *config.Config) {
	if newCfg.Log.Level != s.cfg.Log.Level {
		logger.SetLevel(newCfg.Log.Level)
		s.logger.Info("日志级别已更新", zap.String("level", newCfg.Log.Level))
	}
	s.cfg = newCfg

	s.logger.Info("配置重新加载完成")
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}

	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}

	// 每条 WebSocket 连接占用一个文件描述符
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil {
		rLimit.Cur = rLimit.Max
		syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("Statecraft 房间服务器\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("Statecraft 房间服务器")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  statecraft-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  STATECRAFT_SERVER_PORT       监听端口")
	fmt.Println("  STATECRAFT_ARCHIVE_ENABLED   开启对局归档")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  statecraft-server -config=/path/to/config.yaml")
	fmt.Println("  statecraft-server -version")
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println("                   Statecraft 多人回合制房间服务")
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("版本: %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("配置文件: %s\n", config.ConfigFileUsed())
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
