package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper
var cfg *Config

// Config App-wide configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"-"`
	Redis     RedisConfig     `mapstructure:"-"`
	App       AppConfig       `mapstructure:"-"`
	JWT       JWTConfig       `mapstructure:"-"`
	Cache     CacheConfig     `mapstructure:"-"`
	Hierarchy HierarchyConfig `mapstructure:"-"`
	Thread    ThreadConfig    `mapstructure:"-"`
	HotScore  HotScoreConfig  `mapstructure:"-"`
	MQ        MQConfig        `mapstructure:"-"`
	Snowflake SnowflakeConfig `mapstructure:"-"`
	Logging   LoggingConfig   `mapstructure:"-"`
	Security  SecurityConfig  `mapstructure:"-"`
}

// DatabaseConfig MySQL Database Configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// RedisConfig Redis Configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// AppConfig Application Configuration
type AppConfig struct {
	Host           string
	Port           int
	Mode           string
	RequestTimeout int // 秒
}

// JWTConfig JWT Configuration
type JWTConfig struct {
	Secret string
	Expiry int // Token过期时间(秒)
}

// CacheConfig Cache Configuration
type CacheConfig struct {
	L1Cap         int // L1 容量 (MB)
	L2TTL         int
	ZoneTTL       int // ZoneResolver memo TTL (秒)
	SchemaVersion string
	TabTTL        TabTTLConfig
}

// TabTTLConfig per-tab TTL (秒)
type TabTTLConfig struct {
	Trending  int
	Recent    int
	Following int
}

// HierarchyConfig forum tree limits
type HierarchyConfig struct {
	MaxDepth int
}

// ThreadConfig thread listing defaults
type ThreadConfig struct {
	DefaultLimit int
	MaxLimit     int
	ExcerptLen   int
}

// HotScoreConfig background recalculation
type HotScoreConfig struct {
	Interval    int // 秒, 0 关闭
	WindowHours int
}

// MQConfig RabbitMQ Configuration
type MQConfig struct {
	URL            string
	Exchange       string
	HierarchyQueue string
	HierarchyKey   string
	Workers        int
}

// SnowflakeConfig Snowflake Configuration
type SnowflakeConfig struct {
	WorkerID int64
}

// LoggingConfig Logging Configuration
type LoggingConfig struct {
	Level  string
	Output string
}

// SecurityConfig Security Configuration
type SecurityConfig struct {
	AllowIPs  []string // IP白名单
	DenyIPs   []string // IP黑名单
	RateLimit int      // 每分钟请求数
	CORS      CORSConfig
}

// CORSConfig CORS Configuration
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// Init Initialize configuration with Viper
func Init(configPath string) error {
	v = viper.New()
	cfg = &Config{}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// 默认值总是先设置，配置文件只覆盖显式写出的项
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量覆盖
	v.SetEnvPrefix("FORUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs()

	return parseConfig()
}

// setDefaults 设置默认值
func setDefaults() {
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.request_timeout", 15)

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("cache.l1_cap", 64)
	v.SetDefault("cache.l2_ttl", 3600)
	v.SetDefault("cache.zone_ttl", 60)
	v.SetDefault("cache.schema_version", "v2")
	v.SetDefault("cache.tab_ttl.trending", 60)
	v.SetDefault("cache.tab_ttl.recent", 30)
	v.SetDefault("cache.tab_ttl.following", 45)

	v.SetDefault("hierarchy.max_depth", 5)

	v.SetDefault("thread.default_limit", 20)
	v.SetDefault("thread.max_limit", 100)
	v.SetDefault("thread.excerpt_len", 150)

	v.SetDefault("hot_score.interval", 300)
	v.SetDefault("hot_score.window_hours", 168)

	v.SetDefault("mq.exchange", "forum.events")
	v.SetDefault("mq.hierarchy_queue", "forum.hierarchy.cache")
	v.SetDefault("mq.hierarchy_key", "forum.node.*")
	v.SetDefault("mq.workers", 2)

	v.SetDefault("snowflake.worker_id", 0)

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expiry", 86400)

	v.SetDefault("security.allow_ips", []string{"127.0.0.1", "localhost", "::1"})
	v.SetDefault("security.rate_limit", 600)
	v.SetDefault("security.cors.enabled", false)
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("security.cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("security.cors.max_age", 600)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
}

// bindEnvs 绑定环境变量
func bindEnvs() {
	v.BindEnv("database.host", "FORUM_DATABASE_HOST")
	v.BindEnv("database.port", "FORUM_DATABASE_PORT")
	v.BindEnv("database.username", "FORUM_DATABASE_USERNAME")
	v.BindEnv("database.password", "FORUM_DATABASE_PASSWORD")
	v.BindEnv("database.name", "FORUM_DATABASE_NAME")

	v.BindEnv("redis.host", "FORUM_REDIS_HOST")
	v.BindEnv("redis.port", "FORUM_REDIS_PORT")
	v.BindEnv("redis.password", "FORUM_REDIS_PASSWORD")

	v.BindEnv("mq.url", "FORUM_MQ_URL")

	v.BindEnv("jwt.secret", "FORUM_JWT_SECRET")
}

// parseConfig 解析配置到结构体
func parseConfig() error {
	// Database
	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.Username = v.GetString("database.username")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.Name = v.GetString("database.name")
	cfg.Database.MaxOpenConns = v.GetInt("database.max_open_conns")
	cfg.Database.MaxIdleConns = v.GetInt("database.max_idle_conns")
	cfg.Database.ConnMaxLifetime = v.GetInt("database.conn_max_lifetime")

	// Redis
	cfg.Redis.Host = v.GetString("redis.host")
	cfg.Redis.Port = v.GetInt("redis.port")
	cfg.Redis.Password = v.GetString("redis.password")
	cfg.Redis.DB = v.GetInt("redis.db")
	cfg.Redis.PoolSize = v.GetInt("redis.pool_size")

	// App
	cfg.App.Host = v.GetString("app.host")
	cfg.App.Port = v.GetInt("app.port")
	cfg.App.Mode = v.GetString("app.mode")
	cfg.App.RequestTimeout = v.GetInt("app.request_timeout")

	// JWT
	cfg.JWT.Secret = v.GetString("jwt.secret")
	cfg.JWT.Expiry = v.GetInt("jwt.expiry")

	// Cache
	cfg.Cache.L1Cap = v.GetInt("cache.l1_cap")
	cfg.Cache.L2TTL = v.GetInt("cache.l2_ttl")
	cfg.Cache.ZoneTTL = v.GetInt("cache.zone_ttl")
	cfg.Cache.SchemaVersion = v.GetString("cache.schema_version")
	cfg.Cache.TabTTL.Trending = v.GetInt("cache.tab_ttl.trending")
	cfg.Cache.TabTTL.Recent = v.GetInt("cache.tab_ttl.recent")
	cfg.Cache.TabTTL.Following = v.GetInt("cache.tab_ttl.following")

	// Hierarchy
	cfg.Hierarchy.MaxDepth = v.GetInt("hierarchy.max_depth")

	// Thread
	cfg.Thread.DefaultLimit = v.GetInt("thread.default_limit")
	cfg.Thread.MaxLimit = v.GetInt("thread.max_limit")
	cfg.Thread.ExcerptLen = v.GetInt("thread.excerpt_len")

	// HotScore
	cfg.HotScore.Interval = v.GetInt("hot_score.interval")
	cfg.HotScore.WindowHours = v.GetInt("hot_score.window_hours")

	// MQ
	cfg.MQ.URL = v.GetString("mq.url")
	cfg.MQ.Exchange = v.GetString("mq.exchange")
	cfg.MQ.HierarchyQueue = v.GetString("mq.hierarchy_queue")
	cfg.MQ.HierarchyKey = v.GetString("mq.hierarchy_key")
	cfg.MQ.Workers = v.GetInt("mq.workers")

	// Snowflake
	cfg.Snowflake.WorkerID = v.GetInt64("snowflake.worker_id")

	// Logging
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Output = v.GetString("logging.output")

	// Security
	cfg.Security.AllowIPs = v.GetStringSlice("security.allow_ips")
	cfg.Security.DenyIPs = v.GetStringSlice("security.deny_ips")
	cfg.Security.RateLimit = v.GetInt("security.rate_limit")
	cfg.Security.CORS.Enabled = v.GetBool("security.cors.enabled")
	cfg.Security.CORS.AllowedOrigins = v.GetStringSlice("security.cors.allowed_origins")
	cfg.Security.CORS.AllowedMethods = v.GetStringSlice("security.cors.allowed_methods")
	cfg.Security.CORS.AllowedHeaders = v.GetStringSlice("security.cors.allowed_headers")
	cfg.Security.CORS.AllowCredentials = v.GetBool("security.cors.allow_credentials")
	cfg.Security.CORS.MaxAge = v.GetInt("security.cors.max_age")

	if cfg.Hierarchy.MaxDepth <= 0 {
		return fmt.Errorf("hierarchy.max_depth must be positive, got %d", cfg.Hierarchy.MaxDepth)
	}
	if cfg.Thread.MaxLimit < cfg.Thread.DefaultLimit {
		return fmt.Errorf("thread.max_limit (%d) < thread.default_limit (%d)", cfg.Thread.MaxLimit, cfg.Thread.DefaultLimit)
	}

	return nil
}

// Get 获取配置实例
func Get() *Config {
	return cfg
}

// Default 仅使用默认值构建配置（不读文件、不读环境变量）
func Default() *Config {
	v = viper.New()
	cfg = &Config{}
	setDefaults()
	_ = parseConfig()
	return cfg
}

// GetDSN Get MySQL DSN
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Name)
}

// GetRedisAddr Get Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetServerAddr Get server address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TTLFor 返回 tab 对应的缓存 TTL，未知 tab 取最短值
func (c *TabTTLConfig) TTLFor(tab string) time.Duration {
	switch tab {
	case "trending":
		return time.Duration(c.Trending) * time.Second
	case "following":
		return time.Duration(c.Following) * time.Second
	default:
		return time.Duration(c.Recent) * time.Second
	}
}

// ZoneMemoTTL ZoneResolver memo TTL
func (c *CacheConfig) ZoneMemoTTL() time.Duration {
	return time.Duration(c.ZoneTTL) * time.Second
}

// IntervalDuration 重算间隔
func (c *HotScoreConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
