package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	State    StateConfig    `mapstructure:"state"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Invite   InviteConfig   `mapstructure:"invite"`
	Bot      BotConfig      `mapstructure:"bot"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// StoreConfig selects the durable store for groups, counters and the join log.
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "postgres" | "memory"
}

// StateConfig selects where leaderboard snapshots are cached.
type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type JWTConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type InviteConfig struct {
	LeaderboardSize   int           `mapstructure:"leaderboard_size"`
	StatsWindow       time.Duration `mapstructure:"stats_window"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	StalenessBound    time.Duration `mapstructure:"staleness_bound"`
	BlockNoticeTTL    time.Duration `mapstructure:"block_notice_ttl"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
	ReconcileGrace    time.Duration `mapstructure:"reconcile_grace"`
	ReconcileBatch    int           `mapstructure:"reconcile_batch"`
	// AdminListTTL expires administrator lists the transport stops refreshing; 0 keeps them.
	AdminListTTL      time.Duration `mapstructure:"admin_list_ttl"`
}

type BotConfig struct {
	UserID int64 `mapstructure:"user_id"`
}

type NotifyConfig struct {
	Backend string `mapstructure:"backend"` // "log" | "redis"
	Channel string `mapstructure:"channel"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Environment variable override: INVITE_MAX_RETRIES -> invite.max_retries
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 15*time.Second)

	v.SetDefault("store.backend", "postgres")
	v.SetDefault("state.backend", "redis")

	v.SetDefault("jwt.issuer", "inviterank")
	v.SetDefault("jwt.token_ttl", 24*time.Hour)

	v.SetDefault("invite.leaderboard_size", 10)
	v.SetDefault("invite.stats_window", 7*24*time.Hour)
	v.SetDefault("invite.max_retries", 5)
	v.SetDefault("invite.retry_backoff", 20*time.Millisecond)
	v.SetDefault("invite.staleness_bound", 10*time.Minute)
	v.SetDefault("invite.block_notice_ttl", 15*time.Second)
	v.SetDefault("invite.reconcile_interval", time.Minute)
	v.SetDefault("invite.reconcile_grace", 30*time.Second)
	v.SetDefault("invite.reconcile_batch", 100)
	v.SetDefault("invite.admin_list_ttl", 24*time.Hour)

	v.SetDefault("notify.backend", "log")
	v.SetDefault("notify.channel", "inviterank:notices")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
