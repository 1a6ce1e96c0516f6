package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Telegram     TelegramConfig
	Cron         CronConfig
	Shifts       ShiftsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHIFTLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"SHIFTLEDGER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHIFTLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHIFTLEDGER_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHIFTLEDGER_LOG_FORMAT" default:"json"`
	// MetricsAddr is where background workers serve /metrics. Empty disables it.
	MetricsAddr string `envconfig:"SHIFTLEDGER_METRICS_ADDR"`
	// CORSAllowedOrigins lists the POS front-end origins allowed to call the API.
	CORSAllowedOrigins []string `envconfig:"SHIFTLEDGER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHIFTLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHIFTLEDGER_DB_DSN"`
	Driver string `envconfig:"SHIFTLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHIFTLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"SHIFTLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHIFTLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"SHIFTLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHIFTLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHIFTLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHIFTLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHIFTLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHIFTLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHIFTLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"SHIFTLEDGER_DB_SLOW_QUERY" default:"200ms"`
}

// IsSQLite reports whether the sqlite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"SHIFTLEDGER_REDIS_URL"`
	Address      string        `envconfig:"SHIFTLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"SHIFTLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHIFTLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHIFTLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHIFTLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHIFTLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHIFTLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHIFTLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the identity service.
type JWTConfig struct {
	Secret string        `envconfig:"SHIFTLEDGER_JWT_SECRET" required:"true"`
	Issuer string        `envconfig:"SHIFTLEDGER_JWT_ISSUER" required:"true"`
	Leeway time.Duration `envconfig:"SHIFTLEDGER_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHIFTLEDGER_AUTO_MIGRATE" default:"false"`
	// Notifications globally gates outbound shift messages, on top of the per-store setting.
	Notifications bool `envconfig:"SHIFTLEDGER_FEATURE_NOTIFICATIONS" default:"true"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SHIFTLEDGER_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHIFTLEDGER_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SHIFTLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHIFTLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ShiftEventsTopic         string `envconfig:"SHIFTLEDGER_PUBSUB_SHIFT_EVENTS_TOPIC" default:"shift-events"`
	LedgerMirrorSubscription string `envconfig:"SHIFTLEDGER_PUBSUB_LEDGER_MIRROR_SUBSCRIPTION" default:"shift-events-ledger-mirror"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHIFTLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHIFTLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHIFTLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type TelegramConfig struct {
	BaseURL string        `envconfig:"SHIFTLEDGER_TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	Timeout time.Duration `envconfig:"SHIFTLEDGER_TELEGRAM_TIMEOUT" default:"10s"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"SHIFTLEDGER_CRON_INTERVAL" default:"5m"`
	LockTTL              time.Duration `envconfig:"SHIFTLEDGER_CRON_LOCK_TTL" default:"4m"`
	OutboxRetentionDays  int           `envconfig:"SHIFTLEDGER_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays     int           `envconfig:"SHIFTLEDGER_CRON_DLQ_RETENTION_DAYS" default:"90"`
	StaleShiftAfterHours int           `envconfig:"SHIFTLEDGER_CRON_STALE_SHIFT_HOURS" default:"24"`
}

type ShiftsConfig struct {
	SaleDedupTTL time.Duration `envconfig:"SHIFTLEDGER_SHIFTS_SALE_DEDUP_TTL" default:"72h"`
	// StreamHeartbeat is how often the SSE stream writes a keep-alive comment.
	StreamHeartbeat time.Duration `envconfig:"SHIFTLEDGER_SHIFTS_STREAM_HEARTBEAT" default:"25s"`
	// Timezone renders timestamps in shift notifications.
	Timezone string `envconfig:"SHIFTLEDGER_SHIFTS_TIMEZONE" default:"Asia/Jakarta"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = DefaultSQLiteDSN
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
