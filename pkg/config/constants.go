package config

const (
	EnvPrefix = "FARMOPS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FARMOPS_APP_ENV"
	EnvPort     = "FARMOPS_APP_PORT"
	EnvLogLevel = "FARMOPS_LOG_LEVEL"

	EnvDBDSN  = "FARMOPS_DB_DSN"
	EnvDBHost = "FARMOPS_DB_HOST"
	EnvDBUser = "FARMOPS_DB_USER"
	EnvDBName = "FARMOPS_DB_NAME"

	EnvStoreTimeout          = "FARMOPS_STORE_TIMEOUT"
	EnvStoreConditionalDebit = "FARMOPS_STORE_CONDITIONAL_DEBIT"

	EnvRedisURL = "FARMOPS_REDIS_URL"

	EnvUseSQLite  = "FARMOPS_USE_SQLITE"
	EnvSQLitePath = "FARMOPS_SQLITE_PATH"

	EnvOrdersTimeZone = "FARMOPS_ORDERS_TIME_ZONE"
	EnvOrdersIDMode   = "FARMOPS_ORDERS_ID_MODE"

	EnvSegmentVIPScore    = "FARMOPS_SEGMENT_VIP_SCORE"
	EnvSegmentStableScore = "FARMOPS_SEGMENT_STABLE_SCORE"
	EnvSegmentAtRiskDays  = "FARMOPS_SEGMENT_AT_RISK_DAYS"

	EnvOutboxBatchSize   = "FARMOPS_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvOutboxPollMS      = "FARMOPS_OUTBOX_PUBLISH_POLL_MS"
	EnvOutboxMaxAttempts = "FARMOPS_OUTBOX_MAX_ATTEMPTS"

	EnvGCPProjectID      = "FARMOPS_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "FARMOPS_PUBSUB_DOMAIN_TOPIC"
)

// Order id insert modes.
const (
	OrderIDModeCaller   = "caller"
	OrderIDModeStore    = "store"
	OrderIDModeFallback = "fallback"
)
