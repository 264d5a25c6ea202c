package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Square       SquareConfig
	Routing      RoutingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Assignment   AssignmentConfig
	Commission   CommissionConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Commission.Rate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GLOWCART_APP_ENV" required:"true"`
	Port         string `envconfig:"GLOWCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GLOWCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GLOWCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"GLOWCART_DB_DSN"`
	Driver string `envconfig:"GLOWCART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GLOWCART_DB_HOST"`
	Port     int    `envconfig:"GLOWCART_DB_PORT" default:"5432"`
	User     string `envconfig:"GLOWCART_DB_USER"`
	Password string `envconfig:"GLOWCART_DB_PASSWORD"`
	Name     string `envconfig:"GLOWCART_DB_NAME"`
	SSLMode  string `envconfig:"GLOWCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GLOWCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GLOWCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GLOWCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GLOWCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GLOWCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GLOWCART_REDIS_ADDR"`
	Password     string        `envconfig:"GLOWCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"GLOWCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GLOWCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GLOWCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GLOWCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GLOWCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GLOWCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GLOWCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GLOWCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GLOWCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"GLOWCART_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"GLOWCART_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"GLOWCART_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type RoutingConfig struct {
	APIKey string `envconfig:"GLOWCART_ROUTING_API_KEY"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"GLOWCART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"GLOWCART_PUBSUB_DOMAIN_TOPIC" default:"gc-domain-events"`
	DomainSubscription string `envconfig:"GLOWCART_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GLOWCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GLOWCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GLOWCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type AssignmentConfig struct {
	// FallbackETA is the delivery window promised when no routing estimate
	// is available.
	FallbackETA   time.Duration `envconfig:"GLOWCART_ASSIGNMENT_FALLBACK_ETA" default:"45m"`
	RetryInterval time.Duration `envconfig:"GLOWCART_ASSIGNMENT_RETRY_INTERVAL" default:"5m"`
	// RetryMinAge keeps the retry job from racing a just-failed attempt.
	RetryMinAge time.Duration `envconfig:"GLOWCART_ASSIGNMENT_RETRY_MIN_AGE" default:"1m"`
}

type CommissionConfig struct {
	// RateString is the marketplace commission rate as a decimal fraction,
	// snapshotted onto each commission record at order confirmation.
	RateString string `envconfig:"GLOWCART_COMMISSION_RATE" default:"0.15"`
}

// Rate parses the configured commission rate.
func (c CommissionConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.RateString))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing commission rate %q: %w", c.RateString, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range", rate)
	}
	return rate, nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GLOWCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GLOWCART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
