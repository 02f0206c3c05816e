package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreRemote   = "remote"
)

// Vote failure policies
const (
	VotePolicyKeep     = "keep"
	VotePolicyRollback = "rollback"
)

// Config holds runtime settings loaded from the environment
type Config struct {
	Port     int
	LogLevel string
	LogJSON  bool

	Store      string
	SQLitePath string

	DBURL            string
	DBMaxConns       int32
	DBMinConns       int32
	DBConnectTimeout time.Duration

	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration

	JWTSecret string
	JWTIssuer string

	VotePolicy    string
	VoteSerialize bool
	VoteIdleTTL   time.Duration

	AvatarCacheEntries int
	AvatarCacheTTL     time.Duration

	RedisAddr    string
	RedisChannel string

	HallsFile string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from the environment only
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		Store:      strings.ToLower(getEnv("PENNE_STORE", StoreSQLite)),
		SQLitePath: getEnv("SQLITE_PATH", "penne.db"),

		DBURL:            getEnv("DB_URL", ""),
		DBMaxConns:       int32(getEnvInt("DB_MAX_CONNS", 10)),
		DBMinConns:       int32(getEnvInt("DB_MIN_CONNS", 2)),
		DBConnectTimeout: time.Duration(getEnvInt("DB_CONN_TIMEOUT_SECS", 5)) * time.Second,

		BackendURL:     getEnv("BACKEND_URL", ""),
		BackendAPIKey:  getEnv("BACKEND_API_KEY", ""),
		BackendTimeout: time.Duration(getEnvInt("BACKEND_TIMEOUT_SECS", 10)) * time.Second,

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		VotePolicy:    strings.ToLower(getEnv("VOTE_POLICY", VotePolicyKeep)),
		VoteSerialize: getEnvBool("VOTE_SERIALIZE", false),
		VoteIdleTTL:   getEnvDuration("VOTE_IDLE_TTL", 30*time.Minute),

		AvatarCacheEntries: getEnvInt("AVATAR_CACHE_ENTRIES", 256),
		AvatarCacheTTL:     getEnvDuration("AVATAR_CACHE_TTL", 30*time.Minute),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "penne:ws"),

		HallsFile: getEnv("HALLS_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combination of settings
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.DBURL == "" {
			return fmt.Errorf("DB_URL is required for the postgres store")
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	case StoreRemote:
		if c.BackendURL == "" || c.BackendAPIKey == "" {
			return fmt.Errorf("BACKEND_URL and BACKEND_API_KEY are required for the remote store")
		}
	default:
		return fmt.Errorf("unknown PENNE_STORE %q", c.Store)
	}
	switch c.VotePolicy {
	case VotePolicyKeep, VotePolicyRollback:
	default:
		return fmt.Errorf("unknown VOTE_POLICY %q", c.VotePolicy)
	}
	if c.VoteIdleTTL < 0 {
		return fmt.Errorf("VOTE_IDLE_TTL must not be negative")
	}
	if c.AvatarCacheEntries < 0 {
		return fmt.Errorf("AVATAR_CACHE_ENTRIES must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
