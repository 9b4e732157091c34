package config

const (
	EnvPrefix = "EVENTIX"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	IdentityModeBackend = "backend"
	IdentityModeJWT     = "jwt"

	EnvAppEnv          = "EVENTIX_APP_ENV"
	EnvPort            = "EVENTIX_APP_PORT"
	EnvRedisURL        = "EVENTIX_REDIS_URL"
	EnvJWTSecret       = "EVENTIX_JWT_SECRET"
	EnvJWTIssuer       = "EVENTIX_JWT_ISSUER"
	EnvRealtimeKey     = "EVENTIX_REALTIME_KEY"
	EnvRealtimeCluster = "EVENTIX_REALTIME_CLUSTER"
	EnvBackendURL      = "EVENTIX_BACKEND_URL"
	EnvIdentityMode    = "EVENTIX_IDENTITY_MODE"
	EnvToastTTL        = "EVENTIX_NOTIFICATIONS_TOAST_TTL"
	EnvHistoryLimit    = "EVENTIX_NOTIFICATIONS_HISTORY_LIMIT"
	EnvCORSOrigins     = "EVENTIX_CORS_ORIGINS"
)
