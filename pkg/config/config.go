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
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Auth          AuthConfig
	AuthRateLimit AuthRateLimitConfig
	MapRateLimit  MapRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Storage       StorageConfig
	S3            S3Config
	Assets        AssetsConfig
	Cache         CacheConfig
	Events        EventsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	NATS          NATSConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GEODIR_APP_ENV" required:"true"`
	Port         string `envconfig:"GEODIR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GEODIR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GEODIR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind        string `envconfig:"GEODIR_SERVICE_KIND" default:"api"`
	MetricsPort string `envconfig:"GEODIR_METRICS_PORT"`
}

type DBConfig struct {
	DSN    string `envconfig:"GEODIR_DB_DSN"`
	Driver string `envconfig:"GEODIR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GEODIR_DB_HOST"`
	LegacyPort     int    `envconfig:"GEODIR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GEODIR_DB_USER"`
	LegacyPassword string `envconfig:"GEODIR_DB_PASSWORD"`
	LegacyName     string `envconfig:"GEODIR_DB_NAME"`
	LegacySSLMode  string `envconfig:"GEODIR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GEODIR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GEODIR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GEODIR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GEODIR_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"GEODIR_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite engine.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"GEODIR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GEODIR_REDIS_ADDR"`
	Password     string        `envconfig:"GEODIR_REDIS_PASSWORD"`
	DB           int           `envconfig:"GEODIR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GEODIR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GEODIR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GEODIR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GEODIR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GEODIR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GEODIR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GEODIR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GEODIR_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GEODIR_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GEODIR_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GEODIR_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GEODIR_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GEODIR_ARGON_KEY_LEN" default:"32"`
}

type AuthConfig struct {
	BootstrapAdminEmail string `envconfig:"GEODIR_BOOTSTRAP_ADMIN_EMAIL"`
	CORSOrigins         string `envconfig:"GEODIR_CORS_ORIGINS" default:"http://localhost:3000"`
}

// AllowedOrigins splits the comma separated origin list.
func (a AuthConfig) AllowedOrigins() []string {
	var out []string
	for _, part := range strings.Split(a.CORSOrigins, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GEODIR_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"GEODIR_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"GEODIR_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"GEODIR_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"GEODIR_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"GEODIR_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
}

// MapRateLimitConfig throttles the public map endpoint per client IP.
type MapRateLimitConfig struct {
	Window  time.Duration `envconfig:"GEODIR_MAP_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit int           `envconfig:"GEODIR_MAP_RATE_LIMIT_IP_LIMIT" default:"240"`
}

type FeatureFlagsConfig struct {
	AutoMigrate   bool `envconfig:"GEODIR_AUTO_MIGRATE" default:"false"`
	ViewportCache bool `envconfig:"GEODIR_FEATURE_VIEWPORT_CACHE" default:"true"`
}

const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

type StorageConfig struct {
	Backend   string `envconfig:"GEODIR_STORAGE_BACKEND" default:"local"`
	LocalRoot string `envconfig:"GEODIR_STORAGE_LOCAL_ROOT" default:"uploads"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case StorageBackendLocal:
		if strings.TrimSpace(s.LocalRoot) == "" {
			return fmt.Errorf("%s is required for the local storage backend", EnvStorageRoot)
		}
		return nil
	case StorageBackendS3:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageBackend, s.Backend)
	}
}

type S3Config struct {
	Endpoint  string `envconfig:"GEODIR_S3_ENDPOINT"`
	AccessKey string `envconfig:"GEODIR_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"GEODIR_S3_SECRET_KEY"`
	Bucket    string `envconfig:"GEODIR_S3_BUCKET" default:"geodir-assets"`
	Region    string `envconfig:"GEODIR_S3_REGION" default:"us-east-1"`
	UseSSL    bool   `envconfig:"GEODIR_S3_USE_SSL" default:"false"`
}

type AssetsConfig struct {
	MaxFileKB       int `envconfig:"GEODIR_ASSET_MAX_FILE_KB" default:"2048"`
	MaxGalleryFiles int `envconfig:"GEODIR_ASSET_MAX_GALLERY_FILES" default:"6"`
}

// MaxFileBytes returns the per-file ceiling in bytes.
func (a AssetsConfig) MaxFileBytes() int64 {
	if a.MaxFileKB <= 0 {
		return 0
	}
	return int64(a.MaxFileKB) * 1024
}

// MaxUploadBytes bounds a whole listing form: one cover, a full gallery and
// one megabyte for the text fields.
func (a AssetsConfig) MaxUploadBytes() int64 {
	perFile := a.MaxFileBytes()
	if perFile == 0 {
		return 0
	}
	return perFile*int64(1+a.MaxGalleryFiles) + 1<<20
}

type CacheConfig struct {
	ViewportTTL time.Duration `envconfig:"GEODIR_CACHE_VIEWPORT_TTL" default:"30s"`
}

const (
	EventsBackendNone   = "none"
	EventsBackendPubSub = "pubsub"
	EventsBackendNATS   = "nats"
)

type EventsConfig struct {
	Backend string `envconfig:"GEODIR_EVENTS_BACKEND" default:"none"`
}

func (e EventsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Backend)) {
	case EventsBackendNone, EventsBackendPubSub, EventsBackendNATS:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventsBackend, e.Backend)
	}
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GEODIR_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"GEODIR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ListingTopic       string `envconfig:"GEODIR_PUBSUB_LISTING_TOPIC" default:"geodir-listing-events"`
	AssetsSubscription string `envconfig:"GEODIR_PUBSUB_ASSETS_SUBSCRIPTION" default:"geodir-listing-assets"`
}

type NATSConfig struct {
	URL           string        `envconfig:"GEODIR_NATS_URL" default:"nats://localhost:4222"`
	SubjectPrefix string        `envconfig:"GEODIR_NATS_SUBJECT_PREFIX" default:"geodir"`
	ConnectWait   time.Duration `envconfig:"GEODIR_NATS_CONNECT_WAIT" default:"5s"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"GEODIR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"GEODIR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"GEODIR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"GEODIR_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"GEODIR_CRON_INTERVAL" default:"1h"`
	StagingRetention time.Duration `envconfig:"GEODIR_CRON_STAGING_RETENTION" default:"24h"`
	JobTimeout       time.Duration `envconfig:"GEODIR_CRON_JOB_TIMEOUT" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file:geodir.db?cache=shared"
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
