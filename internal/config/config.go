package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	History    HistoryConfig    `mapstructure:"history"`
	Message    MessageConfig    `mapstructure:"message"`
	Attachment AttachmentConfig `mapstructure:"attachment"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Directory  DirectoryConfig  `mapstructure:"directory"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration. Tokens are minted by the surrounding
// application; this service only verifies them.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// HistoryConfig bounds message history pages
type HistoryConfig struct {
	PageSize    int `mapstructure:"page_size"`
	MaxPageSize int `mapstructure:"max_page_size"`
}

// Client message id generators
const (
	IDGeneratorSonyflake = "sonyflake"
	IDGeneratorUUID      = "uuid"
)

// MessageConfig selects how client_msg_id is filled when the client omits it
type MessageConfig struct {
	IDGenerator string `mapstructure:"id_generator"`
	MachineID   uint16 `mapstructure:"machine_id"`
}

// AttachmentConfig holds upload limits and orphan sweeping
type AttachmentConfig struct {
	MaxFileSize   int64         `mapstructure:"max_file_size"`
	AvatarMaxSize int64         `mapstructure:"avatar_max_size"`
	HeaderMaxSize int64         `mapstructure:"header_max_size"`
	MaxFiles      int           `mapstructure:"max_files"`
	AllowedKinds  []string      `mapstructure:"allowed_kinds"`
	PendingTTL    time.Duration `mapstructure:"pending_ttl"`
	SweepSpec     string        `mapstructure:"sweep_spec"`
}

// MinIOConfig holds object storage configuration. An empty endpoint selects
// the in-memory store.
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// Profile directory sources
const (
	DirectorySourceHTTP = "http"
	DirectorySourceDB   = "db"
)

// DirectoryConfig selects where profile display data is resolved from
type DirectoryConfig struct {
	Source       string        `mapstructure:"source"`
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	ServiceToken string        `mapstructure:"service_token"`
}

// Global config instance
var GlobalConfig *Config

// Load loads configuration from file. Any key can be overridden through the
// environment, e.g. PARLEY_MYSQL_HOST.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	GlobalConfig = &cfg
	return &cfg, nil
}

// ApplyDefaults fills every zero value with its default
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.MySQL.Charset == "" {
		cfg.MySQL.Charset = "utf8mb4"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "parley:"
	}
	if cfg.History.PageSize == 0 {
		cfg.History.PageSize = 30
	}
	if cfg.History.MaxPageSize == 0 {
		cfg.History.MaxPageSize = 100
	}
	if cfg.History.PageSize > cfg.History.MaxPageSize {
		cfg.History.PageSize = cfg.History.MaxPageSize
	}
	if cfg.Message.IDGenerator == "" {
		cfg.Message.IDGenerator = IDGeneratorSonyflake
	}
	if cfg.Message.MachineID == 0 {
		cfg.Message.MachineID = 1
	}
	if cfg.Attachment.MaxFileSize == 0 {
		cfg.Attachment.MaxFileSize = 5 << 20
	}
	if cfg.Attachment.AvatarMaxSize == 0 {
		cfg.Attachment.AvatarMaxSize = 1 << 20
	}
	if cfg.Attachment.HeaderMaxSize == 0 {
		cfg.Attachment.HeaderMaxSize = 2 << 20
	}
	if cfg.Attachment.MaxFiles == 0 {
		cfg.Attachment.MaxFiles = 10
	}
	if cfg.Attachment.PendingTTL == 0 {
		cfg.Attachment.PendingTTL = 24 * time.Hour
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = "parley"
	}
	if cfg.Directory.Source == "" {
		cfg.Directory.Source = DirectorySourceDB
	}
	if cfg.Directory.Timeout == 0 {
		cfg.Directory.Timeout = 3 * time.Second
	}
}
