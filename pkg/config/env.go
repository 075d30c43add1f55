package config

const (
	EnvPrefix = "GEODIR"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "GEODIR_APP_ENV"
	EnvPort     = "GEODIR_APP_PORT"
	EnvLogLevel = "GEODIR_LOG_LEVEL"

	EnvDBDSN    = "GEODIR_DB_DSN"
	EnvDBDriver = "GEODIR_DB_DRIVER"
	EnvDBHost   = "GEODIR_DB_HOST"
	EnvDBUser   = "GEODIR_DB_USER"
	EnvDBName   = "GEODIR_DB_NAME"

	EnvRedisURL = "GEODIR_REDIS_URL"

	EnvJWTSecret  = "GEODIR_JWT_SECRET"
	EnvJWTIssuer  = "GEODIR_JWT_ISSUER"
	EnvJWTExpMins = "GEODIR_JWT_EXPIRATION_MINUTES"

	EnvStorageBackend = "GEODIR_STORAGE_BACKEND"
	EnvStorageRoot    = "GEODIR_STORAGE_LOCAL_ROOT"
	EnvS3Endpoint     = "GEODIR_S3_ENDPOINT"
	EnvS3Bucket       = "GEODIR_S3_BUCKET"
	EnvAssetMaxKB     = "GEODIR_ASSET_MAX_FILE_KB"

	EnvEventsBackend      = "GEODIR_EVENTS_BACKEND"
	EnvGCPProjectID       = "GEODIR_GCP_PROJECT_ID"
	EnvPubSubListingTopic = "GEODIR_PUBSUB_LISTING_TOPIC"
	EnvNATSURL            = "GEODIR_NATS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
