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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Session      SessionConfig
	Cart         CartConfig
	Compare      CompareConfig
	Recent       RecentConfig
	Drafts       DraftsConfig
	Density      DensityConfig
	Telemetry    TelemetryConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	CORS         CORSConfig
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
	Env          string `envconfig:"LABSTORE_APP_ENV" required:"true"`
	Port         string `envconfig:"LABSTORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LABSTORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LABSTORE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LABSTORE_DB_DSN"`
	Driver string `envconfig:"LABSTORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LABSTORE_DB_HOST"`
	LegacyPort     int    `envconfig:"LABSTORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LABSTORE_DB_USER"`
	LegacyPassword string `envconfig:"LABSTORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LABSTORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LABSTORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LABSTORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LABSTORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LABSTORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LABSTORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LABSTORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LABSTORE_REDIS_ADDR"`
	Password     string        `envconfig:"LABSTORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LABSTORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LABSTORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LABSTORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LABSTORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LABSTORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LABSTORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LABSTORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LABSTORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LABSTORE_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"LABSTORE_ADMIN_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the admin session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LABSTORE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LABSTORE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LABSTORE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LABSTORE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LABSTORE_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LABSTORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LABSTORE_AUTO_MIGRATE" default:"false"`
}

type SessionConfig struct {
	CookieName string        `envconfig:"LABSTORE_SESSION_COOKIE" default:"labstore_session"`
	TTL        time.Duration `envconfig:"LABSTORE_SESSION_TTL" default:"720h"`
}

type CartConfig struct {
	TTL time.Duration `envconfig:"LABSTORE_CART_TTL" default:"720h"`
}

type CompareConfig struct {
	Capacity   int           `envconfig:"LABSTORE_COMPARE_CAPACITY" default:"3"`
	SessionTTL time.Duration `envconfig:"LABSTORE_COMPARE_SESSION_TTL" default:"30m"`
}

type RecentConfig struct {
	Capacity int           `envconfig:"LABSTORE_RECENT_CAPACITY" default:"10"`
	TTL      time.Duration `envconfig:"LABSTORE_RECENT_TTL" default:"720h"`
}

type DraftsConfig struct {
	Expiry           time.Duration `envconfig:"LABSTORE_DRAFT_EXPIRY" default:"24h"`
	AutosaveDebounce time.Duration `envconfig:"LABSTORE_DRAFT_AUTOSAVE_DEBOUNCE" default:"3s"`
}

type DensityConfig struct {
	MobileMaxWidth   int           `envconfig:"LABSTORE_DENSITY_MOBILE_MAX_WIDTH" default:"768"`
	ResizeThrottle   time.Duration `envconfig:"LABSTORE_DENSITY_RESIZE_THROTTLE" default:"100ms"`
	PreferenceExpiry time.Duration `envconfig:"LABSTORE_DENSITY_PREFERENCE_TTL" default:"8760h"`
}

type TelemetryConfig struct {
	Enabled       bool          `envconfig:"LABSTORE_TELEMETRY_ENABLED" default:"true"`
	BatchSize     int           `envconfig:"LABSTORE_TELEMETRY_BATCH_SIZE" default:"20"`
	FlushInterval time.Duration `envconfig:"LABSTORE_TELEMETRY_FLUSH_INTERVAL" default:"10s"`
	QueueSize     int           `envconfig:"LABSTORE_TELEMETRY_QUEUE_SIZE" default:"256"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"LABSTORE_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	TelemetryTopic string `envconfig:"LABSTORE_PUBSUB_TELEMETRY_TOPIC" default:"labstore-telemetry-events"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"LABSTORE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
