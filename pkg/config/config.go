package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed here.
	EnvPrefix = "SWIFTKART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Payments     PaymentsConfig
	SMEPay       SMEPayConfig
	Cashfree     CashfreeConfig
	Polling      PollingConfig
	OTP          OTPConfig
	OrderLock    OrderLockConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	GCP          GCPConfig
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
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SWIFTKART_APP_ENV" required:"true"`
	Port         string `envconfig:"SWIFTKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SWIFTKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWIFTKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SWIFTKART_DB_DSN"`
	Driver string `envconfig:"SWIFTKART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SWIFTKART_DB_HOST"`
	Port     int    `envconfig:"SWIFTKART_DB_PORT" default:"5432"`
	User     string `envconfig:"SWIFTKART_DB_USER"`
	Password string `envconfig:"SWIFTKART_DB_PASSWORD"`
	Name     string `envconfig:"SWIFTKART_DB_NAME"`
	SSLMode  string `envconfig:"SWIFTKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SWIFTKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWIFTKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWIFTKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWIFTKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SWIFTKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SWIFTKART_REDIS_ADDR"`
	Password     string        `envconfig:"SWIFTKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWIFTKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWIFTKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWIFTKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWIFTKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWIFTKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWIFTKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PaymentsConfig struct {
	DefaultGateway string `envconfig:"SWIFTKART_PAYMENT_DEFAULT_GATEWAY" default:"smepay"`
}

type SMEPayConfig struct {
	BaseURL      string        `envconfig:"SWIFTKART_SMEPAY_BASE_URL" default:"https://apps.typof.in/api"`
	ClientID     string        `envconfig:"SWIFTKART_SMEPAY_CLIENT_ID"`
	ClientSecret string        `envconfig:"SWIFTKART_SMEPAY_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"SWIFTKART_SMEPAY_TIMEOUT" default:"10s"`
}

type CashfreeConfig struct {
	BaseURL   string        `envconfig:"SWIFTKART_CASHFREE_BASE_URL" default:"https://sandbox.cashfree.com/pg"`
	AppID     string        `envconfig:"SWIFTKART_CASHFREE_APP_ID"`
	SecretKey string        `envconfig:"SWIFTKART_CASHFREE_SECRET_KEY"`
	Timeout   time.Duration `envconfig:"SWIFTKART_CASHFREE_TIMEOUT" default:"10s"`
}

// PollingConfig drives the bounded gateway status poll: the first FastAttempts
// checks run every FastInterval, the remainder every SlowInterval, capped at
// MaxAttempts before the attempt is marked expired.
type PollingConfig struct {
	FastInterval time.Duration `envconfig:"SWIFTKART_POLL_FAST_INTERVAL" default:"3s"`
	FastAttempts int           `envconfig:"SWIFTKART_POLL_FAST_ATTEMPTS" default:"10"`
	SlowInterval time.Duration `envconfig:"SWIFTKART_POLL_SLOW_INTERVAL" default:"10s"`
	MaxAttempts  int           `envconfig:"SWIFTKART_POLL_MAX_ATTEMPTS" default:"20"`
}

type OTPConfig struct {
	Length int           `envconfig:"SWIFTKART_OTP_LENGTH" default:"4"`
	TTL    time.Duration `envconfig:"SWIFTKART_OTP_TTL" default:"15m"`
}

type OrderLockConfig struct {
	TTL            time.Duration `envconfig:"SWIFTKART_ORDER_LOCK_TTL" default:"30s"`
	AcquireTimeout time.Duration `envconfig:"SWIFTKART_ORDER_LOCK_ACQUIRE_TIMEOUT" default:"5s"`
	RetryInterval  time.Duration `envconfig:"SWIFTKART_ORDER_LOCK_RETRY_INTERVAL" default:"50ms"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SWIFTKART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SWIFTKART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SWIFTKART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"SWIFTKART_PUBSUB_NOTIFICATION_TOPIC" default:"sk-notification-events"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"SWIFTKART_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"SWIFTKART_GCP_CREDENTIALS_JSON"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SWIFTKART_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"SWIFTKART_DB_HOST": db.Host,
		"SWIFTKART_DB_USER": db.User,
		"SWIFTKART_DB_NAME": db.Name,
	}
	for _, key := range []string{"SWIFTKART_DB_HOST", "SWIFTKART_DB_USER", "SWIFTKART_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either SWIFTKART_DB_DSN or %s are required", strings.Join(missing, ", "))
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
