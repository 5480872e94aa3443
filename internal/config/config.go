package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Game      GameConfig      `mapstructure:"game"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	System    SystemConfig    `mapstructure:"system"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Path              string        `mapstructure:"path"`
	ReadBufferSize    int           `mapstructure:"read_buffer_size"`
	WriteBufferSize   int           `mapstructure:"write_buffer_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	SendBufferSize    int           `mapstructure:"send_buffer_size"`
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongTimeout       time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// GameConfig 游戏规则与计时配置
type GameConfig struct {
	MinPlayers        int    `mapstructure:"min_players"`
	MaxPlayers        int    `mapstructure:"max_players"`
	PathLength        int    `mapstructure:"path_length"`
	StartingBudget    int    `mapstructure:"starting_budget"`
	StartingStability int    `mapstructure:"starting_stability"`
	StartingInfluence int    `mapstructure:"starting_influence"`
	TokensPerPlayer   int    `mapstructure:"tokens_per_player"`
	DieSides          int    `mapstructure:"die_sides"`
	DeckFile          string `mapstructure:"deck_file"`

	Rules  RulesConfig  `mapstructure:"rules"`
	AFK    AFKConfig    `mapstructure:"afk"`
	Crisis CrisisConfig `mapstructure:"crisis"`
	Timers TimersConfig `mapstructure:"timers"`
}

// RulesConfig 规则阈值
type RulesConfig struct {
	HighBudget              int `mapstructure:"high_budget"`
	LowBudget               int `mapstructure:"low_budget"`
	HighStability           int `mapstructure:"high_stability"`
	LowStability            int `mapstructure:"low_stability"`
	CollapseThreshold       int `mapstructure:"collapse_threshold"`
	VictoryMinInfluence     int `mapstructure:"victory_min_influence"`
	AlignedBonus            int `mapstructure:"aligned_bonus"`
	OpposedPenalty          int `mapstructure:"opposed_penalty"`
	InfluenceBonusThreshold int `mapstructure:"influence_bonus_threshold"`
	InfluencePerTurn        int `mapstructure:"influence_per_turn"`
	ProposerPassBonus       int `mapstructure:"proposer_pass_bonus"`
}

// AFKConfig 挂机检测配置
type AFKConfig struct {
	Threshold time.Duration `mapstructure:"threshold"`
	Penalty   int           `mapstructure:"penalty"`
}

// CrisisConfig 危机配置
type CrisisConfig struct {
	DangerThreshold int `mapstructure:"danger_threshold"`
	DurationTurns   int `mapstructure:"duration_turns"`
}

// TimersConfig 房间计时器配置
type TimersConfig struct {
	ResultsTimeout time.Duration `mapstructure:"results_timeout"`
	AFKPoll        time.Duration `mapstructure:"afk_poll"`
	CrisisResolve  time.Duration `mapstructure:"crisis_resolve"`
	CrisisContinue time.Duration `mapstructure:"crisis_continue"`
	CrisisWindow   time.Duration `mapstructure:"crisis_window"`
	Deliberation   time.Duration `mapstructure:"deliberation"`
	RoomExpiry     time.Duration `mapstructure:"room_expiry"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 限流配置（按连接）
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MessagesPerSecond int  `mapstructure:"messages_per_second"`
	Burst             int  `mapstructure:"burst"`
}

// ArchiveConfig 对局归档配置
type ArchiveConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	Timezone string `mapstructure:"timezone"`
	MaxProcs int    `mapstructure:"max_procs"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		var loaded *Config
		v, loaded, err = load(configPath)
		if err != nil {
			return
		}
		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})

	return err
}

// Load 读取配置但不修改全局实例，测试和工具使用
func Load(configPath string) (*Config, error) {
	_, c, err := load(configPath)
	return c, err
}

func load(configPath string) (*viper.Viper, *Config, error) {
	vp := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath("./config")
		vp.AddConfigPath(".")
	}

	// 设置环境变量前缀
	vp.SetEnvPrefix("STATECRAFT")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	if err := vp.ReadInConfig(); err != nil {
		// 如果配置文件不存在，使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	c := &Config{}
	if err := vp.Unmarshal(c); err != nil {
		return nil, nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	return vp, c, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "development")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/statecraft.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// WebSocket默认配置
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")
	v.SetDefault("websocket.enable_compression", false)
	v.SetDefault("websocket.allowed_origins", []string{})

	// 游戏默认配置
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 6)
	v.SetDefault("game.path_length", 20)
	v.SetDefault("game.starting_budget", 5)
	v.SetDefault("game.starting_stability", 5)
	v.SetDefault("game.starting_influence", 3)
	v.SetDefault("game.tokens_per_player", 2)
	v.SetDefault("game.die_sides", 6)
	v.SetDefault("game.deck_file", "")

	v.SetDefault("game.rules.high_budget", 10)
	v.SetDefault("game.rules.low_budget", -3)
	v.SetDefault("game.rules.high_stability", 10)
	v.SetDefault("game.rules.low_stability", -3)
	v.SetDefault("game.rules.collapse_threshold", -5)
	v.SetDefault("game.rules.victory_min_influence", 5)
	v.SetDefault("game.rules.aligned_bonus", 2)
	v.SetDefault("game.rules.opposed_penalty", 1)
	v.SetDefault("game.rules.influence_bonus_threshold", 8)
	v.SetDefault("game.rules.influence_per_turn", 1)
	v.SetDefault("game.rules.proposer_pass_bonus", 1)

	v.SetDefault("game.afk.threshold", "60s")
	v.SetDefault("game.afk.penalty", 1)

	v.SetDefault("game.crisis.danger_threshold", -2)
	v.SetDefault("game.crisis.duration_turns", 3)

	v.SetDefault("game.timers.results_timeout", "30s")
	v.SetDefault("game.timers.afk_poll", "10s")
	v.SetDefault("game.timers.crisis_resolve", "1s")
	v.SetDefault("game.timers.crisis_continue", "2s")
	v.SetDefault("game.timers.crisis_window", "20s")
	v.SetDefault("game.timers.deliberation", "60s")
	v.SetDefault("game.timers.room_expiry", "2h")

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "statecraft.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 限流默认配置
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.messages_per_second", 10)
	v.SetDefault("security.rate_limit.burst", 20)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.timeout", "5s")
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	g := c.Game
	if g.MinPlayers < 1 {
		return fmt.Errorf("game.min_players 必须大于0: %d", g.MinPlayers)
	}
	if g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("game.max_players(%d) 不能小于 game.min_players(%d)", g.MaxPlayers, g.MinPlayers)
	}
	if g.PathLength <= 0 {
		return fmt.Errorf("game.path_length 必须大于0: %d", g.PathLength)
	}
	if g.DieSides < 2 {
		return fmt.Errorf("game.die_sides 至少为2: %d", g.DieSides)
	}
	if g.Rules.CollapseThreshold >= g.Crisis.DangerThreshold {
		return fmt.Errorf("game.rules.collapse_threshold(%d) 必须低于 game.crisis.danger_threshold(%d)",
			g.Rules.CollapseThreshold, g.Crisis.DangerThreshold)
	}
	if g.Timers.AFKPoll <= 0 || g.Timers.ResultsTimeout <= 0 || g.Timers.RoomExpiry <= 0 {
		return fmt.Errorf("game.timers 必须为正数")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载校验失败: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}

		fmt.Printf("配置已重新加载: %s\n", e.Name)
	})
}

// ConfigFileUsed 返回实际加载的配置文件
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
