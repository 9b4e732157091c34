package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Realtime      RealtimeConfig
	Backend       BackendConfig
	Identity      IdentityConfig
	Notifications NotificationsConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Identity.validate(cfg.Backend, cfg.JWT); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"EVENTIX_APP_ENV" required:"true"`
	Port            string        `envconfig:"EVENTIX_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"EVENTIX_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"EVENTIX_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"EVENTIX_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// RedisConfig is optional; readiness only pings redis when an address is configured.
type RedisConfig struct {
	URL          string        `envconfig:"EVENTIX_REDIS_URL"`
	Address      string        `envconfig:"EVENTIX_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTIX_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTIX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTIX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTIX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTIX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTIX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTIX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"EVENTIX_JWT_SECRET"`
	Issuer            string `envconfig:"EVENTIX_JWT_ISSUER" default:"eventix"`
	ExpirationMinutes int    `envconfig:"EVENTIX_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RealtimeConfig holds the pub/sub credentials. Both values blank is a valid
// configuration: the notification provider runs without live updates.
type RealtimeConfig struct {
	Key     string `envconfig:"EVENTIX_REALTIME_KEY"`
	Cluster string `envconfig:"EVENTIX_REALTIME_CLUSTER"`
}

// Configured reports whether both credentials are present.
func (r RealtimeConfig) Configured() bool {
	return strings.TrimSpace(r.Key) != "" && strings.TrimSpace(r.Cluster) != ""
}

type BackendConfig struct {
	BaseURL        string        `envconfig:"EVENTIX_BACKEND_URL"`
	RequestTimeout time.Duration `envconfig:"EVENTIX_BACKEND_TIMEOUT" default:"10s"`
}

type IdentityConfig struct {
	Mode           string        `envconfig:"EVENTIX_IDENTITY_MODE" default:"backend"`
	ResolveTimeout time.Duration `envconfig:"EVENTIX_IDENTITY_RESOLVE_TIMEOUT" default:"15s"`
}

type NotificationsConfig struct {
	ToastTTL     time.Duration `envconfig:"EVENTIX_NOTIFICATIONS_TOAST_TTL" default:"6s"`
	HistoryLimit int           `envconfig:"EVENTIX_NOTIFICATIONS_HISTORY_LIMIT" default:"50"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"EVENTIX_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (i IdentityConfig) validate(backend BackendConfig, jwt JWTConfig) error {
	switch strings.ToLower(strings.TrimSpace(i.Mode)) {
	case IdentityModeBackend:
		if strings.TrimSpace(backend.BaseURL) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvBackendURL, EnvIdentityMode, IdentityModeBackend)
		}
		if _, err := url.ParseRequestURI(backend.BaseURL); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBackendURL, err)
		}
	case IdentityModeJWT:
		if strings.TrimSpace(jwt.Secret) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvJWTSecret, EnvIdentityMode, IdentityModeJWT)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvIdentityMode, i.Mode)
	}
	return nil
}

// NormalizedMode returns the lower-cased identity mode.
func (i IdentityConfig) NormalizedMode() string {
	return strings.ToLower(strings.TrimSpace(i.Mode))
}
