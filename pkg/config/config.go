package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Shape selects which polling variant a daemon instance runs.
const (
	ShapeCustomer = "customer"
	ShapeAdmin    = "admin"
)

// Identity store backends.
const (
	IdentityStoreMemory = "memory"
	IdentityStoreSQLite = "sqlite"
	IdentityStoreRedis  = "redis"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	ChatAPI  ChatAPIConfig
	Sync     SyncConfig
	Identity IdentityConfig
	Redis    RedisConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTSYNC_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"RENTSYNC_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTSYNC_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServerConfig configures the local ops HTTP surface.
type ServerConfig struct {
	Addr            string        `envconfig:"RENTSYNC_SERVER_ADDR" default:"127.0.0.1:8787"`
	ShutdownTimeout time.Duration `envconfig:"RENTSYNC_SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"RENTSYNC_SERVER_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// ChatAPIConfig points at the remote chat/user API.
type ChatAPIConfig struct {
	BaseURL        string        `envconfig:"RENTSYNC_CHAT_API_BASE_URL" required:"true"`
	BearerToken    string        `envconfig:"RENTSYNC_CHAT_API_TOKEN"`
	RequestTimeout time.Duration `envconfig:"RENTSYNC_CHAT_API_TIMEOUT" default:"10s"`
	AdminUserID    string        `envconfig:"RENTSYNC_CHAT_ADMIN_USER_ID" default:"1"`
}

// SyncConfig tunes the polling loop.
type SyncConfig struct {
	Shape          string        `envconfig:"RENTSYNC_SYNC_SHAPE" default:"customer"`
	PollInterval   time.Duration `envconfig:"RENTSYNC_SYNC_POLL_INTERVAL" default:"12s"`
	PreviewLength  int           `envconfig:"RENTSYNC_SYNC_PREVIEW_LENGTH" default:"80"`
	LastOnly       bool          `envconfig:"RENTSYNC_SYNC_LAST_ONLY" default:"false"`
	CustomerFilter string        `envconfig:"RENTSYNC_SYNC_CUSTOMER_ROLE_FILTER" default:"customer"`
}

// IdentityConfig selects the durable identity mirror backend.
type IdentityConfig struct {
	Store      string `envconfig:"RENTSYNC_IDENTITY_STORE" default:"sqlite"`
	SQLitePath string `envconfig:"RENTSYNC_IDENTITY_SQLITE_PATH" default:"rentsync.db"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTSYNC_REDIS_URL"`
	Address      string        `envconfig:"RENTSYNC_REDIS_ADDR"`
	Password     string        `envconfig:"RENTSYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTSYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTSYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTSYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTSYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTSYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTSYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Sync.Shape)) {
	case ShapeCustomer, ShapeAdmin:
	default:
		return fmt.Errorf("sync shape must be %q or %q", ShapeCustomer, ShapeAdmin)
	}
	switch strings.ToLower(strings.TrimSpace(c.Identity.Store)) {
	case IdentityStoreMemory, IdentityStoreSQLite:
	case IdentityStoreRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return errors.New("redis url or address is required for the redis identity store")
		}
	default:
		return fmt.Errorf("identity store must be one of %q, %q, %q",
			IdentityStoreMemory, IdentityStoreSQLite, IdentityStoreRedis)
	}
	if c.Sync.PollInterval <= 0 {
		return errors.New("sync poll interval must be positive")
	}
	if strings.TrimSpace(c.ChatAPI.AdminUserID) == "" {
		return errors.New("chat admin user id is required")
	}
	return nil
}
