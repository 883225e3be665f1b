package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"

	"github.com/angelmondragon/foodrun-backend/pkg/money"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Eventing   EventingConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Outbox     OutboxConfig
	Commission CommissionConfig
	Points     PointsConfig
	Payments   PaymentsConfig
	Cron       CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field invariants envconfig cannot express and
// reports every violation at once.
func (c *Config) Validate() error {
	_, ratesErr := c.Commission.Rates()
	return multierr.Combine(
		ratesErr,
		c.Points.validate(),
		positive(EnvJWTExpMins, time.Duration(c.JWT.ExpirationMinutes)),
		positive("FOODRUN_OUTBOX_MAX_ATTEMPTS", time.Duration(c.Outbox.MaxAttempts)),
		positive("FOODRUN_OUTBOX_PUBLISH_BATCH_SIZE", time.Duration(c.Outbox.BatchSize)),
		positive("FOODRUN_CRON_INTERVAL", c.Cron.Interval),
		positive("FOODRUN_CRON_LOCK_TTL", c.Cron.LockTTL),
	)
}

func positive(env string, v time.Duration) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive", env)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"FOODRUN_APP_ENV" required:"true"`
	Port         string `envconfig:"FOODRUN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FOODRUN_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FOODRUN_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FOODRUN_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where the background workers expose /metrics.
	MetricsAddr string `envconfig:"FOODRUN_METRICS_ADDR" default:":9090"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FOODRUN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FOODRUN_DB_DSN"`
	Driver string `envconfig:"FOODRUN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FOODRUN_DB_HOST"`
	LegacyPort     int    `envconfig:"FOODRUN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FOODRUN_DB_USER"`
	LegacyPassword string `envconfig:"FOODRUN_DB_PASSWORD"`
	LegacyName     string `envconfig:"FOODRUN_DB_NAME"`
	LegacySSLMode  string `envconfig:"FOODRUN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FOODRUN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FOODRUN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FOODRUN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FOODRUN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"FOODRUN_AUTO_MIGRATE" default:"false"`
	SlowQuery       time.Duration `envconfig:"FOODRUN_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FOODRUN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FOODRUN_REDIS_ADDR"`
	Password     string        `envconfig:"FOODRUN_REDIS_PASSWORD"`
	DB           int           `envconfig:"FOODRUN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FOODRUN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FOODRUN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FOODRUN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FOODRUN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FOODRUN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"FOODRUN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"FOODRUN_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"FOODRUN_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TTL returns the access token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FOODRUN_CORS_ALLOWED_ORIGINS" default:"*"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"FOODRUN_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	HTTPIdempotencyTTL   time.Duration `envconfig:"FOODRUN_HTTP_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FOODRUN_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"FOODRUN_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FOODRUN_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic       string `envconfig:"FOODRUN_PUBSUB_ORDERS_TOPIC" required:"true"`
	LedgerTopic       string `envconfig:"FOODRUN_PUBSUB_LEDGER_TOPIC" required:"true"`
	NotificationTopic string `envconfig:"FOODRUN_PUBSUB_NOTIFICATION_TOPIC" default:"foodrun-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FOODRUN_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FOODRUN_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FOODRUN_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"FOODRUN_OUTBOX_RETENTION" default:"720h"`
}

// CommissionConfig carries the settlement rates as SAR decimal strings.
type CommissionConfig struct {
	PlatformFeePerDelivery string `envconfig:"FOODRUN_COMMISSION_PLATFORM_FEE" default:"3.75"`
	AdminCommissionPerItem string `envconfig:"FOODRUN_COMMISSION_ADMIN_PER_ITEM" default:"0.75"`
}

// CommissionRates is the parsed form of CommissionConfig in halalas.
type CommissionRates struct {
	PlatformFeePerDeliveryCents int64
	AdminCommissionPerItemCents int64
}

// Rates parses the configured decimal rates.
func (c CommissionConfig) Rates() (CommissionRates, error) {
	platform, err := money.ParseSAR(c.PlatformFeePerDelivery)
	if err != nil {
		return CommissionRates{}, fmt.Errorf("%s: %w", EnvCommissionPlatformFee, err)
	}
	admin, err := money.ParseSAR(c.AdminCommissionPerItem)
	if err != nil {
		return CommissionRates{}, fmt.Errorf("%s: %w", EnvCommissionAdminPerItem, err)
	}
	if platform < 0 || admin < 0 {
		return CommissionRates{}, fmt.Errorf("commission rates must not be negative")
	}
	return CommissionRates{
		PlatformFeePerDeliveryCents: platform,
		AdminCommissionPerItemCents: admin,
	}, nil
}

type PointsConfig struct {
	Initial             int `envconfig:"FOODRUN_POINTS_INITIAL" default:"100"`
	WarningThreshold    int `envconfig:"FOODRUN_POINTS_WARNING_THRESHOLD" default:"50"`
	SuspensionThreshold int `envconfig:"FOODRUN_POINTS_SUSPENSION_THRESHOLD" default:"30"`
}

func (p PointsConfig) validate() error {
	if p.Initial <= 0 {
		return fmt.Errorf("%s must be positive", EnvPointsInitial)
	}
	if p.SuspensionThreshold < 0 {
		return fmt.Errorf("%s must not be negative", EnvPointsSuspension)
	}
	if p.WarningThreshold <= p.SuspensionThreshold {
		return fmt.Errorf("%s must be greater than %s", EnvPointsWarning, EnvPointsSuspension)
	}
	if p.WarningThreshold >= p.Initial {
		return fmt.Errorf("%s must be below %s", EnvPointsWarning, EnvPointsInitial)
	}
	return nil
}

type PaymentsConfig struct {
	WebhookSecret  string        `envconfig:"FOODRUN_PAYMENTS_WEBHOOK_SECRET" required:"true"`
	IdempotencyTTL time.Duration `envconfig:"FOODRUN_PAYMENTS_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FOODRUN_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"FOODRUN_CRON_LOCK_TTL" default:"10m"`
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
