package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Storage engines.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Authentication modes.
const (
	AuthJWT = "jwt"
	AuthDev = "dev"
)

// Config stores service settings.
type Config struct {
	Port      int
	Storage   string
	DB        DB
	Dispatch  Dispatch
	Auth      Auth
	Geocode   Geocode
	Kafka     Kafka
	AMQP      AMQP
	Redis     Redis
	Events    Events
	RateLimit RateLimit
	Pprof     Pprof
	Log       Log
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns the pgx connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Dispatch stores assignment coordinator settings.
type Dispatch struct {
	OfferTTL         time.Duration
	ExpiryInterval   time.Duration
	OperationTimeout time.Duration
	AutoMatch        bool
}

// Auth stores request authentication settings.
type Auth struct {
	Mode      string
	JWTSecret string
}

// Geocode stores geocoding provider settings. Without a key the static table is used.
type Geocode struct {
	APIKey string
	Region string
}

// Kafka stores event stream settings. Empty Brokers disables Kafka.
type Kafka struct {
	Brokers []string
	Topic   string
	GroupID string
}

// AMQP stores broker settings. Empty URL disables the sink.
type AMQP struct {
	URL      string
	Exchange string
}

// Redis stores pub/sub settings. Empty Addr disables the sink.
type Redis struct {
	Addr    string
	Channel string
}

// Events stores in-process bus settings.
type Events struct {
	MaxAttempts int
	QueueSize   int
}

// RateLimit stores token bucket settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	AdminBurst int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores profiling server settings. Empty Addr disables it.
type Pprof struct {
	Addr string
	User string
	Pass string
}

// Log stores logger settings.
type Log struct {
	Level string
	File  string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit command-line arguments.
func LoadArgs(args []string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet("service-dispatch", pflag.ContinueOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage engine: memory|postgres")
	fs.StringVar(&cfg.Auth.Mode, "auth-mode", cfg.Auth.Mode, "authentication mode: jwt|dev")
	fs.BoolVar(&cfg.Dispatch.AutoMatch, "auto-match", cfg.Dispatch.AutoMatch, "match pending orders automatically")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	var errs []error
	e := env{errs: &errs}

	cfg := &Config{
		Port:    e.integer("PORT", defaultPort),
		Storage: strings.ToLower(e.str("STORAGE_DRIVER", defaultStorage)),
		DB: DB{
			Host: e.str("POSTGRES_HOST", defaultDB.Host),
			Port: e.str("POSTGRES_PORT", defaultDB.Port),
			User: e.str("POSTGRES_USER", defaultDB.User),
			Pass: e.str("POSTGRES_PASSWORD", defaultDB.Pass),
			Name: e.str("POSTGRES_DB", defaultDB.Name),
		},
		Dispatch: Dispatch{
			OfferTTL:         e.duration("DISPATCH_OFFER_TTL", defaultDispatch.OfferTTL),
			ExpiryInterval:   e.duration("DISPATCH_EXPIRY_INTERVAL", defaultDispatch.ExpiryInterval),
			OperationTimeout: e.duration("DISPATCH_OPERATION_TIMEOUT", defaultDispatch.OperationTimeout),
			AutoMatch:        e.boolean("DISPATCH_AUTO_MATCH", false),
		},
		Auth: Auth{
			Mode:      strings.ToLower(e.str("AUTH_MODE", AuthJWT)),
			JWTSecret: e.str("AUTH_JWT_SECRET", ""),
		},
		Geocode: Geocode{
			APIKey: e.str("GOOGLE_MAPS_API_KEY", ""),
			Region: e.str("GOOGLE_MAPS_REGION", "in"),
		},
		Kafka: Kafka{
			Brokers: e.list("KAFKA_BROKERS"),
			Topic:   e.str("KAFKA_TOPIC", "dispatch.events"),
			GroupID: e.str("KAFKA_GROUP_ID", "service-dispatch-worker"),
		},
		AMQP: AMQP{
			URL:      e.str("AMQP_URL", ""),
			Exchange: e.str("AMQP_EXCHANGE", "dispatch.events"),
		},
		Redis: Redis{
			Addr:    e.str("REDIS_ADDR", ""),
			Channel: e.str("REDIS_CHANNEL", "dispatch:events"),
		},
		Events: Events{
			MaxAttempts: e.integer("EVENTS_MAX_ATTEMPTS", defaultEvents.MaxAttempts),
			QueueSize:   e.integer("EVENTS_QUEUE_SIZE", defaultEvents.QueueSize),
		},
		RateLimit: RateLimit{
			Enabled:    e.boolean("RATE_LIMIT_ENABLED", defaultRateLimit.Enabled),
			Rate:       e.number("RATE_LIMIT_RATE", defaultRateLimit.Rate),
			Burst:      e.integer("RATE_LIMIT_BURST", defaultRateLimit.Burst),
			AdminBurst: e.integer("RATE_LIMIT_ADMIN_BURST", defaultRateLimit.AdminBurst),
			TTL:        e.duration("RATE_LIMIT_TTL", defaultRateLimit.TTL),
			MaxBuckets: e.integer("RATE_LIMIT_MAX_BUCKETS", defaultRateLimit.MaxBuckets),
		},
		Pprof: Pprof{
			Addr: e.str("PPROF_ADDR", ""),
			User: e.str("PPROF_USER", ""),
			Pass: e.str("PPROF_PASS", ""),
		},
		Log: Log{
			Level: strings.ToLower(e.str("LOG_LEVEL", "info")),
			File:  e.str("LOG_FILE", ""),
		},
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid POSTGRES_PORT: %q", c.DB.Port)
		}
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER: %q", c.Storage)
	}
	switch c.Auth.Mode {
	case AuthDev:
	case AuthJWT:
		if len(c.Auth.JWTSecret) < 16 {
			return errors.New("AUTH_JWT_SECRET must be at least 16 bytes in jwt mode")
		}
	default:
		return fmt.Errorf("invalid AUTH_MODE: %q", c.Auth.Mode)
	}
	if c.Dispatch.OfferTTL <= 0 {
		return fmt.Errorf("DISPATCH_OFFER_TTL must be positive, got %s", c.Dispatch.OfferTTL)
	}
	if c.Dispatch.ExpiryInterval <= 0 {
		return fmt.Errorf("DISPATCH_EXPIRY_INTERVAL must be positive, got %s", c.Dispatch.ExpiryInterval)
	}
	if c.Events.MaxAttempts <= 0 {
		return fmt.Errorf("EVENTS_MAX_ATTEMPTS must be positive, got %d", c.Events.MaxAttempts)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		return errors.New("RATE_LIMIT_RATE and RATE_LIMIT_BURST must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.Log.Level)
	}
	return nil
}

// env reads typed variables and collects parse errors instead of failing on the first.
type env struct{ errs *[]error }

func (e env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (e env) number(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return f
}

func (e env) boolean(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (e env) list(key string) []string {
	var out []string
	for _, s := range strings.Split(e.str(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
