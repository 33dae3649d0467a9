package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Zones     []ZoneConfig    `mapstructure:"zones"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
	AdminKey      string `mapstructure:"admin_key"`
	ReadOnly      bool   `mapstructure:"read_only"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// ChainConfig pins the EIP-712 signing domain. Orders signed for a different
// chain or verifying contract never validate here.
type ChainConfig struct {
	ChainID           int64  `mapstructure:"chain_id"`
	VerifyingContract string `mapstructure:"verifying_contract"`
}

type StoreConfig struct {
	// Backend selects where order statuses and counters live:
	// memory (default), redis, or postgres.
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	DSN                       string `mapstructure:"dsn"`
	IdempotencyRetentionHours int    `mapstructure:"idempotency_retention_hours"`
	AuditRetentionDays        int    `mapstructure:"audit_retention_days"`
	CleanupIntervalMinutes    int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	AuditListKey          string `mapstructure:"audit_list_key"`
	AuditListMax          int    `mapstructure:"audit_list_max"`
}

// ZoneConfig registers one zone implementation at an address. Type "open"
// approves everything; "signed" requires a fresh authorization from one of
// the listed signer addresses in each order's extraData.
type ZoneConfig struct {
	Address string   `mapstructure:"address"`
	Type    string   `mapstructure:"type"`
	Signers []string `mapstructure:"signers"`
}

type LedgerConfig struct {
	Allocations []AllocationConfig `mapstructure:"allocations"`
}

// AllocationConfig seeds one account with native balance at startup. Amounts
// are decimal strings so genesis balances are not capped at int64.
type AllocationConfig struct {
	Address string `mapstructure:"address"`
	Amount  string `mapstructure:"amount"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Dir        string `mapstructure:"dir"`
	BufferSize int    `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. SEAPORT_CHAIN_CHAIN_ID, SEAPORT_AUTH_API_KEY
	viper.SetEnvPrefix("seaport")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.api_key", "")
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("auth.read_only", false)
	viper.SetDefault("ratelimit.enabled", false)
	viper.SetDefault("ratelimit.rps", 50)
	viper.SetDefault("ratelimit.burst", 100)
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.verifying_contract", "0x0000000000000068F116a894984e2DB1123eB395")
	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("redis.audit_list_key", "audit_logs")
	viper.SetDefault("redis.audit_list_max", 10000)
	viper.SetDefault("database.idempotency_retention_hours", 168)
	viper.SetDefault("database.audit_retention_days", 30)
	viper.SetDefault("database.cleanup_interval_minutes", 60)
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.dir", "./logs")
	viper.SetDefault("audit.buffer_size", 1000)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
