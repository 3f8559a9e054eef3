package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STALLMARKET"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv                 = "STALLMARKET_APP_ENV"
	EnvPort                   = "STALLMARKET_APP_PORT"
	EnvDBDSN                  = "STALLMARKET_DB_DSN"
	EnvDBHost                 = "STALLMARKET_DB_HOST"
	EnvDBUser                 = "STALLMARKET_DB_USER"
	EnvDBName                 = "STALLMARKET_DB_NAME"
	EnvRedisURL               = "STALLMARKET_REDIS_URL"
	EnvJWTSecret              = "STALLMARKET_JWT_SECRET"
	EnvJWTIssuer              = "STALLMARKET_JWT_ISSUER"
	EnvJWTExpMins             = "STALLMARKET_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "STALLMARKET_REFRESH_TOKEN_TTL_MINUTES"
	EnvStorageRoot            = "STALLMARKET_STORAGE_ROOT"
	EnvOwnerEmail             = "STALLMARKET_MARKETPLACE_OWNER_EMAIL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	OAuth        OAuthConfig
	Storage      StorageConfig
	Marketplace  MarketplaceConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = defaultSQLiteDSN
		}
		return &cfg, nil
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

const defaultSQLiteDSN = "file:stallmarket.db?cache=shared&_foreign_keys=on"

type AppConfig struct {
	Env          string `envconfig:"STALLMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"STALLMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STALLMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STALLMARKET_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STALLMARKET_LOG_FORMAT" default:"json"`
	LogNoColor   bool   `envconfig:"STALLMARKET_LOG_NO_COLOR" default:"false"`

	CORSOrigins []string `envconfig:"STALLMARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STALLMARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"STALLMARKET_DB_DSN"`

	LegacyHost     string `envconfig:"STALLMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"STALLMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STALLMARKET_DB_USER"`
	LegacyPassword string `envconfig:"STALLMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"STALLMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"STALLMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STALLMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STALLMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STALLMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STALLMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"STALLMARKET_DB_SLOW_QUERY_THRESHOLD" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STALLMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STALLMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"STALLMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"STALLMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STALLMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STALLMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STALLMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STALLMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STALLMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"STALLMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"STALLMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"STALLMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"STALLMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

func (j JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// PasswordConfig holds the argon2id parameters used to hash refresh tokens at rest.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"STALLMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"STALLMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"STALLMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"STALLMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"STALLMARKET_ARGON_KEY_LEN" default:"32"`
}

type OAuthConfig struct {
	GoogleClientID string `envconfig:"STALLMARKET_OAUTH_GOOGLE_CLIENT_ID"`
}

// StorageConfig points at the directory every uploaded file lives under.
type StorageConfig struct {
	Root string `envconfig:"STALLMARKET_STORAGE_ROOT" default:"./uploads"`
}

// MarketplaceConfig carries marketplace-wide settings. OwnerEmail identifies the
// account that is always privileged regardless of its admin flag.
type MarketplaceConfig struct {
	OwnerEmail string `envconfig:"STALLMARKET_MARKETPLACE_OWNER_EMAIL"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `envconfig:"STALLMARKET_RATE_LIMIT_PER_MINUTE" default:"120"`
	Burst             int `envconfig:"STALLMARKET_RATE_LIMIT_BURST" default:"30"`
	AuthPerMinute     int `envconfig:"STALLMARKET_RATE_LIMIT_AUTH_PER_MINUTE" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STALLMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STALLMARKET_AUTO_MIGRATE" default:"false"`
	CartLocking bool `envconfig:"STALLMARKET_FEATURE_CART_LOCKING" default:"false"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"STALLMARKET_CRON_INTERVAL" default:"24h"`
	NotificationRetentionDays int           `envconfig:"STALLMARKET_NOTIFICATION_RETENTION_DAYS" default:"30"`
	// MetricsAddr serves /metrics for the worker; empty disables it.
	MetricsAddr string `envconfig:"STALLMARKET_CRON_METRICS_ADDR" default:":9091"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
