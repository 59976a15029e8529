package config

// EnvPrefix is passed to envconfig; individual keys carry the full name so the
// prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "LABSTORE_APP_ENV"
	EnvPort       = "LABSTORE_APP_PORT"
	EnvDBDSN      = "LABSTORE_DB_DSN"
	EnvDBHost     = "LABSTORE_DB_HOST"
	EnvDBUser     = "LABSTORE_DB_USER"
	EnvDBName     = "LABSTORE_DB_NAME"
	EnvRedisURL   = "LABSTORE_REDIS_URL"
	EnvJWTSecret  = "LABSTORE_JWT_SECRET"
	EnvJWTIssuer  = "LABSTORE_JWT_ISSUER"
	EnvJWTExpMins = "LABSTORE_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
