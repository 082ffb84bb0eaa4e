package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Store        StoreConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Orders       OrdersConfig
	Segmentation SegmentationConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

// Load reads FARMOPS_* variables and checks them. Every invalid setting is
// reported in one error so a bad deploy shows all of its mistakes at once.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	err := multierr.Combine(
		cfg.DB.ensureDSN(),
		cfg.Store.validate(),
		cfg.Orders.validate(),
		cfg.Orders.checkStore(cfg.FeatureFlags),
		cfg.Segmentation.validate(),
		cfg.Outbox.validate(),
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FARMOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"FARMOPS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FARMOPS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"FARMOPS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"FARMOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// ServiceConfig describes the running binary. Workers serve /metrics on
// MetricsAddr; empty disables it. The API serves it on its own port.
type ServiceConfig struct {
	Kind        string `envconfig:"FARMOPS_SERVICE_KIND" default:"api"`
	MetricsAddr string `envconfig:"FARMOPS_METRICS_ADDR"`
}

type DBConfig struct {
	DSN        string `envconfig:"FARMOPS_DB_DSN"`
	Driver     string `envconfig:"FARMOPS_DB_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"FARMOPS_SQLITE_PATH" default:"farmops.db"`

	// Discrete connection fields, used only when DSN is empty.
	Host     string `envconfig:"FARMOPS_DB_HOST"`
	Port     int    `envconfig:"FARMOPS_DB_PORT" default:"5432"`
	User     string `envconfig:"FARMOPS_DB_USER"`
	Password string `envconfig:"FARMOPS_DB_PASSWORD"`
	Name     string `envconfig:"FARMOPS_DB_NAME"`
	SSLMode  string `envconfig:"FARMOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FARMOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FARMOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FARMOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FARMOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Configured reports whether a postgres DSN is available.
func (db DBConfig) Configured() bool {
	return strings.TrimSpace(db.DSN) != ""
}

// StoreConfig bounds every row-store call and picks the debit strategy.
type StoreConfig struct {
	Timeout          time.Duration `envconfig:"FARMOPS_STORE_TIMEOUT" default:"5s"`
	ConditionalDebit bool          `envconfig:"FARMOPS_STORE_CONDITIONAL_DEBIT" default:"false"`
}

func (s StoreConfig) validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvStoreTimeout)
	}
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"FARMOPS_REDIS_URL"`
	Address      string        `envconfig:"FARMOPS_REDIS_ADDR"`
	Password     string        `envconfig:"FARMOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FARMOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FARMOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FARMOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FARMOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FARMOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FARMOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite      bool          `envconfig:"FARMOPS_USE_SQLITE" default:"false"`
	AutoMigrate    bool          `envconfig:"FARMOPS_AUTO_MIGRATE" default:"false"`
	Idempotency    bool          `envconfig:"FARMOPS_IDEMPOTENCY_ENABLED" default:"false"`
	IdempotencyTTL time.Duration `envconfig:"FARMOPS_IDEMPOTENCY_TTL" default:"24h"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"FARMOPS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

type OrdersConfig struct {
	TimeZone string `envconfig:"FARMOPS_ORDERS_TIME_ZONE" default:"Asia/Taipei"`
	IDMode   string `envconfig:"FARMOPS_ORDERS_ID_MODE" default:"fallback"`
}

func (o *OrdersConfig) validate() error {
	o.IDMode = strings.ToLower(strings.TrimSpace(o.IDMode))
	switch o.IDMode {
	case OrderIDModeCaller, OrderIDModeStore, OrderIDModeFallback:
		return nil
	default:
		return fmt.Errorf("%s must be one of %s, %s, %s", EnvOrdersIDMode, OrderIDModeCaller, OrderIDModeStore, OrderIDModeFallback)
	}
}

// checkStore refuses store-generated order ids on the SQLite fallback, whose
// schema comes from AutoMigrate and has no key default for orders.id.
func (o OrdersConfig) checkStore(flags FeatureFlagsConfig) error {
	if flags.UseSQLite && o.IDMode == OrderIDModeStore {
		return fmt.Errorf("%s=%s needs the postgres schema; it cannot be combined with %s", EnvOrdersIDMode, OrderIDModeStore, EnvUseSQLite)
	}
	return nil
}

// SegmentationConfig holds the score thresholds that turn an RFM score into a segment label.
type SegmentationConfig struct {
	VIPScore    float64 `envconfig:"FARMOPS_SEGMENT_VIP_SCORE" default:"0.7"`
	StableScore float64 `envconfig:"FARMOPS_SEGMENT_STABLE_SCORE" default:"0.45"`
	AtRiskDays  int     `envconfig:"FARMOPS_SEGMENT_AT_RISK_DAYS" default:"90"`
	TopLimit    int     `envconfig:"FARMOPS_SEGMENT_TOP_LIMIT" default:"10"`
}

func (s SegmentationConfig) validate() error {
	if s.StableScore < 0 || s.VIPScore > 1 || s.StableScore > s.VIPScore {
		return fmt.Errorf("segment thresholds must satisfy 0 <= %s <= %s <= 1", EnvSegmentStableScore, EnvSegmentVIPScore)
	}
	if s.AtRiskDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvSegmentAtRiskDays)
	}
	return nil
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"FARMOPS_CRON_INTERVAL" default:"24h"`
	JournalRetentionDays int           `envconfig:"FARMOPS_CRON_JOURNAL_RETENTION_DAYS" default:"365"`
	AutoApplySegments    bool          `envconfig:"FARMOPS_CRON_AUTO_APPLY_SEGMENTS" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"FARMOPS_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"FARMOPS_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"FARMOPS_PUBSUB_DOMAIN_TOPIC" default:"farmops-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"FARMOPS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"FARMOPS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"FARMOPS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"FARMOPS_OUTBOX_RETENTION_DAYS" default:"30"`
}

func (o OutboxConfig) validate() error {
	if o.BatchSize < 1 || o.MaxAttempts < 1 || o.PollIntervalMS < 1 {
		return fmt.Errorf("%s, %s and %s must be positive", EnvOutboxBatchSize, EnvOutboxPollMS, EnvOutboxMaxAttempts)
	}
	return nil
}

// ensureDSN builds a postgres URL from the discrete fields when no DSN is
// given. With none of them set the store stays unconfigured.
func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || (db.Host == "" && db.User == "" && db.Name == "") {
		return nil
	}

	var missing []string
	for env, v := range map[string]string{EnvDBHost: db.Host, EnvDBUser: db.User, EnvDBName: db.Name} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("set %s, or all of %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.User)
	if db.Password != "" {
		user = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.Host, strconv.Itoa(db.Port)),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.SSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}
