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
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Outbox        OutboxConfig
	Fulfillment   FulfillmentConfig
	Mail          MailConfig
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
	Env          string `envconfig:"ITICKET_APP_ENV" required:"true"`
	Port         string `envconfig:"ITICKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ITICKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ITICKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ITICKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ITICKET_DB_DSN"`
	Driver string `envconfig:"ITICKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ITICKET_DB_HOST"`
	LegacyPort     int    `envconfig:"ITICKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ITICKET_DB_USER"`
	LegacyPassword string `envconfig:"ITICKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"ITICKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"ITICKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ITICKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ITICKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ITICKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ITICKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ITICKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ITICKET_REDIS_ADDR"`
	Password     string        `envconfig:"ITICKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"ITICKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ITICKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ITICKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ITICKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ITICKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ITICKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ITICKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ITICKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ITICKET_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"ITICKET_SESSION_TTL_MINUTES" default:"43200"`
}

// SessionTTL returns the server-side session TTL configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"ITICKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"ITICKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"ITICKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"ITICKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"ITICKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"ITICKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"ITICKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"ITICKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"ITICKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"ITICKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"ITICKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ITICKET_AUTO_MIGRATE" default:"false"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ITICKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ITICKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ITICKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FulfillmentConfig struct {
	DocumentsDir string `envconfig:"ITICKET_FULFILLMENT_DOCS_DIR" default:"./tickets"`
	MetricsPort  string `envconfig:"ITICKET_FULFILLMENT_METRICS_PORT" default:"9091"`
}

type MailConfig struct {
	Host     string `envconfig:"ITICKET_MAIL_HOST"`
	Port     int    `envconfig:"ITICKET_MAIL_PORT" default:"587"`
	Username string `envconfig:"ITICKET_MAIL_USERNAME"`
	Password string `envconfig:"ITICKET_MAIL_PASSWORD"`
	From     string `envconfig:"ITICKET_MAIL_FROM" default:"tickets@iticket.local"`
}

// Enabled reports whether outbound mail is configured at all.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
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
