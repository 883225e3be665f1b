package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "FOODRUN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "FOODRUN_APP_ENV"
	EnvPort     = "FOODRUN_APP_PORT"
	EnvLogLevel = "FOODRUN_LOG_LEVEL"

	EnvDBDSN  = "FOODRUN_DB_DSN"
	EnvDBHost = "FOODRUN_DB_HOST"
	EnvDBUser = "FOODRUN_DB_USER"
	EnvDBName = "FOODRUN_DB_NAME"

	EnvRedisURL = "FOODRUN_REDIS_URL"

	EnvJWTSecret  = "FOODRUN_JWT_SECRET"
	EnvJWTIssuer  = "FOODRUN_JWT_ISSUER"
	EnvJWTExpMins = "FOODRUN_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "FOODRUN_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic       = "FOODRUN_PUBSUB_ORDERS_TOPIC"
	EnvPubSubLedgerTopic       = "FOODRUN_PUBSUB_LEDGER_TOPIC"
	EnvPubSubNotificationTopic = "FOODRUN_PUBSUB_NOTIFICATION_TOPIC"

	EnvCommissionPlatformFee  = "FOODRUN_COMMISSION_PLATFORM_FEE"
	EnvCommissionAdminPerItem = "FOODRUN_COMMISSION_ADMIN_PER_ITEM"

	EnvPointsInitial    = "FOODRUN_POINTS_INITIAL"
	EnvPointsWarning    = "FOODRUN_POINTS_WARNING_THRESHOLD"
	EnvPointsSuspension = "FOODRUN_POINTS_SUSPENSION_THRESHOLD"

	EnvPaymentsWebhookSecret = "FOODRUN_PAYMENTS_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
