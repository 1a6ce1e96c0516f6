package config

const (
	EnvPrefix = "SHIFTLEDGER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	DefaultSQLiteDSN = "file:shiftledger.db?_foreign_keys=on"

	EnvAppEnv    = "SHIFTLEDGER_APP_ENV"
	EnvPort      = "SHIFTLEDGER_APP_PORT"
	EnvDBDSN     = "SHIFTLEDGER_DB_DSN"
	EnvDBDriver  = "SHIFTLEDGER_DB_DRIVER"
	EnvDBHost    = "SHIFTLEDGER_DB_HOST"
	EnvDBUser    = "SHIFTLEDGER_DB_USER"
	EnvDBName    = "SHIFTLEDGER_DB_NAME"
	EnvRedisURL  = "SHIFTLEDGER_REDIS_URL"
	EnvJWTSecret = "SHIFTLEDGER_JWT_SECRET"
	EnvJWTIssuer = "SHIFTLEDGER_JWT_ISSUER"

	EnvGCPProjectID          = "SHIFTLEDGER_GCP_PROJECT_ID"
	EnvPubSubShiftTopic      = "SHIFTLEDGER_PUBSUB_SHIFT_EVENTS_TOPIC"
	EnvPubSubLedgerMirrorSub = "SHIFTLEDGER_PUBSUB_LEDGER_MIRROR_SUBSCRIPTION"
	EnvTelegramBaseURL       = "SHIFTLEDGER_TELEGRAM_BASE_URL"
	EnvSaleDedupTTL          = "SHIFTLEDGER_SHIFTS_SALE_DEDUP_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
