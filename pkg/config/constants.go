package config

// envconfig.Process is called with this prefix, but every field carries its
// full variable name in the struct tag so the names below are authoritative.
const EnvPrefix = "SLOTBOOK"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "SLOTBOOK_APP_ENV"
	EnvPort   = "SLOTBOOK_APP_PORT"

	EnvDBDSN  = "SLOTBOOK_DB_DSN"
	EnvDBHost = "SLOTBOOK_DB_HOST"
	EnvDBUser = "SLOTBOOK_DB_USER"
	EnvDBName = "SLOTBOOK_DB_NAME"

	EnvDBTxMaxAttempts = "SLOTBOOK_DB_TX_MAX_ATTEMPTS"

	EnvRedisURL = "SLOTBOOK_REDIS_URL"

	EnvJWTSecret = "SLOTBOOK_JWT_SECRET"
	EnvJWTIssuer = "SLOTBOOK_JWT_ISSUER"

	EnvReservationHoldTTL         = "SLOTBOOK_RESERVATION_HOLD_TTL"
	EnvReservationDefaultCapacity = "SLOTBOOK_RESERVATION_DEFAULT_SLOT_CAPACITY"
	EnvReservationTimezone        = "SLOTBOOK_RESERVATION_TIMEZONE"

	EnvCatalogPriceFile = "SLOTBOOK_CATALOG_PRICE_FILE"
	EnvGCPProjectID     = "SLOTBOOK_GCP_PROJECT_ID"
	EnvCORSOrigins      = "SLOTBOOK_CORS_ALLOWED_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
