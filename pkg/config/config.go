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
	Reservation  ReservationConfig
	FeatureFlags FeatureFlagsConfig
	Catalog      CatalogConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reservation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SLOTBOOK_APP_ENV" required:"true"`
	Port         string `envconfig:"SLOTBOOK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SLOTBOOK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SLOTBOOK_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SLOTBOOK_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"SLOTBOOK_DB_DSN"`

	LegacyHost     string `envconfig:"SLOTBOOK_DB_HOST"`
	LegacyPort     int    `envconfig:"SLOTBOOK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SLOTBOOK_DB_USER"`
	LegacyPassword string `envconfig:"SLOTBOOK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SLOTBOOK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SLOTBOOK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SLOTBOOK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SLOTBOOK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SLOTBOOK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SLOTBOOK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SLOTBOOK_DB_SLOW_QUERY" default:"500ms"`

	// TxMaxAttempts bounds how many times a transaction is replayed after a
	// serialization failure or deadlock.
	TxMaxAttempts int           `envconfig:"SLOTBOOK_DB_TX_MAX_ATTEMPTS" default:"5"`
	TxRetryBase   time.Duration `envconfig:"SLOTBOOK_DB_TX_RETRY_BASE" default:"20ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SLOTBOOK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SLOTBOOK_REDIS_ADDR"`
	Password     string        `envconfig:"SLOTBOOK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SLOTBOOK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SLOTBOOK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SLOTBOOK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SLOTBOOK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SLOTBOOK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SLOTBOOK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string        `envconfig:"SLOTBOOK_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"SLOTBOOK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int           `envconfig:"SLOTBOOK_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"SLOTBOOK_JWT_LEEWAY" default:"30s"`
}

// ReservationConfig tunes the slot reservation engine.
type ReservationConfig struct {
	HoldTTL             time.Duration `envconfig:"SLOTBOOK_RESERVATION_HOLD_TTL" default:"15m"`
	DefaultSlotCapacity int           `envconfig:"SLOTBOOK_RESERVATION_DEFAULT_SLOT_CAPACITY" default:"10"`
	MaxListDays         int           `envconfig:"SLOTBOOK_RESERVATION_MAX_LIST_DAYS" default:"31"`
	MaxReconcileDays    int           `envconfig:"SLOTBOOK_RESERVATION_MAX_RECONCILE_DAYS" default:"90"`
	// Timezone decides which calendar day "today" is for slot listing and
	// past-date checks.
	Timezone string `envconfig:"SLOTBOOK_RESERVATION_TIMEZONE" default:"UTC"`
}

// Location resolves the configured timezone, falling back to UTC.
func (r ReservationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(r.Timezone))
	if err != nil || r.Timezone == "" {
		return time.UTC
	}
	return loc
}

func (r ReservationConfig) validate() error {
	if r.HoldTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationHoldTTL)
	}
	if r.DefaultSlotCapacity < 0 {
		return fmt.Errorf("%s must not be negative", EnvReservationDefaultCapacity)
	}
	if r.MaxListDays <= 0 || r.MaxReconcileDays <= 0 {
		return fmt.Errorf("reservation day limits must be positive")
	}
	return nil
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SLOTBOOK_AUTO_MIGRATE" default:"false"`
}

type CatalogConfig struct {
	PriceFile string `envconfig:"SLOTBOOK_CATALOG_PRICE_FILE" default:"catalog/prices.json"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SLOTBOOK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrderEventsTopic string `envconfig:"SLOTBOOK_PUBSUB_ORDER_EVENTS_TOPIC" default:"slotbook-order-events"`
	// Batching knobs for each topic publisher. The outbox relay waits on
	// every result, so a short delay keeps per-event latency low.
	PublishDelay   time.Duration `envconfig:"SLOTBOOK_PUBSUB_PUBLISH_DELAY" default:"10ms"`
	PublishCount   int           `envconfig:"SLOTBOOK_PUBSUB_PUBLISH_COUNT" default:"100"`
	PublishTimeout time.Duration `envconfig:"SLOTBOOK_PUBSUB_PUBLISH_TIMEOUT" default:"30s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SLOTBOOK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SLOTBOOK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SLOTBOOK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SLOTBOOK_CORS_ALLOWED_ORIGINS" default:"*"`
}

// RateLimitConfig throttles the unauthenticated storefront writes per IP.
// A zero limit disables the policy.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"SLOTBOOK_RATE_LIMIT_WINDOW" default:"1m"`
	DraftLimit int           `envconfig:"SLOTBOOK_RATE_LIMIT_DRAFT" default:"20"`
	HoldLimit  int           `envconfig:"SLOTBOOK_RATE_LIMIT_HOLD" default:"60"`
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
