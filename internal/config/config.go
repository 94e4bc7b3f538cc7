package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"

	AuditPostgres = "postgres"

	LocalRedis  = "redis"
	LocalSQLite = "sqlite"

	AuthHeader   = "header"
	AuthFirebase = "firebase"
)

type Config struct {
	HTTPPort  string `yaml:"http_port"`
	GRPCPort  string `yaml:"grpc_port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	AllowedOrigins []string `yaml:"allowed_origins"`

	AuthMode        string `yaml:"auth_mode"`
	FirebaseProject string `yaml:"firebase_project"`

	// AdminAccounts may use the admin routes in addition to accounts whose
	// Firebase token carries the admin claim.
	AdminAccounts []string `yaml:"admin_accounts"`

	Backend                  string `yaml:"backend"`
	MongoURI                 string `yaml:"mongo_uri"`
	MongoDBName              string `yaml:"mongo_db_name"`
	MongoMaxPoolSize         int    `yaml:"mongo_max_pool_size"`
	FirestoreProject         string `yaml:"firestore_project"`
	FirestoreCredentialsFile string `yaml:"firestore_credentials_file"`

	AuditDriver    string `yaml:"audit_driver"`
	DBHost         string `yaml:"db_host"`
	DBPort         int    `yaml:"db_port"`
	DBUser         string `yaml:"db_user"`
	DBPassword     string `yaml:"db_password"`
	DBName         string `yaml:"db_name"`
	MigrationsPath string `yaml:"migrations_path"`

	LocalStore           string `yaml:"local_store"`
	RedisAddr            string `yaml:"redis_addr"`
	RedisPassword        string `yaml:"redis_password"`
	SQLitePath           string `yaml:"sqlite_path"`
	SQLiteMigrationsPath string `yaml:"sqlite_migrations_path"`

	KafkaBrokers       []string `yaml:"kafka_brokers"`
	CheckoutTopic      string   `yaml:"checkout_topic"`
	CheckoutGroupID    string   `yaml:"checkout_group_id"`
	CheckoutChannelURL string   `yaml:"checkout_channel_url"`

	CartDebounce    time.Duration `yaml:"cart_debounce"`
	RemoteTimeout   time.Duration `yaml:"remote_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	PageSizeDefault int `yaml:"page_size_default"`
	PageSizeMax     int `yaml:"page_size_max"`
}

func defaults() Config {
	return Config{
		HTTPPort:             "8080",
		GRPCPort:             "50060",
		LogLevel:             "info",
		LogFormat:            "json",
		AuthMode:             AuthHeader,
		Backend:              BackendMemory,
		MongoURI:             "mongodb://localhost:27017",
		MongoDBName:          "storefront",
		MongoMaxPoolSize:     20,
		AuditDriver:          BackendMemory,
		DBHost:               "localhost",
		DBPort:               5432,
		DBUser:               "postgres",
		DBName:               "storefront",
		MigrationsPath:       "internal/repository/migrations",
		LocalStore:           BackendMemory,
		RedisAddr:            "localhost:6379",
		SQLitePath:           "storefront.db",
		SQLiteMigrationsPath: "internal/cache/migrations",
		CheckoutTopic:        "checkout-handoff",
		CheckoutGroupID:      "storefront-handoff-consumer",
		CheckoutChannelURL:   "https://t.me/share/url",
		CartDebounce:         1500 * time.Millisecond,
		RemoteTimeout:        15 * time.Second,
		RequestTimeout:       30 * time.Second,
		ShutdownTimeout:      10 * time.Second,
		PageSizeDefault:      20,
		PageSizeMax:          100,
	}
}

// Load reads the defaults, overlays the YAML file named by CONFIG_FILE and
// then any set environment variable.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = getEnv("GRPC_PORT", c.GRPCPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.AuthMode = getEnv("AUTH_MODE", c.AuthMode)
	c.FirebaseProject = getEnv("FIREBASE_PROJECT", c.FirebaseProject)
	c.Backend = getEnv("BACKEND", c.Backend)
	c.MongoURI = getEnv("MONGO_URI", c.MongoURI)
	c.MongoDBName = getEnv("MONGO_DB_NAME", c.MongoDBName)
	c.FirestoreProject = getEnv("FIRESTORE_PROJECT", c.FirestoreProject)
	c.FirestoreCredentialsFile = getEnv("FIRESTORE_CREDENTIALS_FILE", c.FirestoreCredentialsFile)
	c.AuditDriver = getEnv("AUDIT_DRIVER", c.AuditDriver)
	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.MigrationsPath = getEnv("MIGRATIONS_PATH", c.MigrationsPath)
	c.LocalStore = getEnv("LOCAL_STORE", c.LocalStore)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.SQLiteMigrationsPath = getEnv("SQLITE_MIGRATIONS_PATH", c.SQLiteMigrationsPath)
	c.CheckoutTopic = getEnv("CHECKOUT_TOPIC", c.CheckoutTopic)
	c.CheckoutGroupID = getEnv("CHECKOUT_GROUP_ID", c.CheckoutGroupID)
	c.CheckoutChannelURL = getEnv("CHECKOUT_CHANNEL_URL", c.CheckoutChannelURL)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.KafkaBrokers = splitList(brokers)
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	if admins := os.Getenv("ADMIN_ACCOUNTS"); admins != "" {
		c.AdminAccounts = splitList(admins)
	}

	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CART_DEBOUNCE", &c.CartDebounce},
		{"REMOTE_TIMEOUT", &c.RemoteTimeout},
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, *d.dst); err != nil {
			return err
		}
	}
	if c.DBPort, err = getInt("DB_PORT", c.DBPort); err != nil {
		return err
	}
	if c.MongoMaxPoolSize, err = getInt("MONGO_MAX_POOL_SIZE", c.MongoMaxPoolSize); err != nil {
		return err
	}
	if c.PageSizeDefault, err = getInt("PAGE_SIZE_DEFAULT", c.PageSizeDefault); err != nil {
		return err
	}
	if c.PageSizeMax, err = getInt("PAGE_SIZE_MAX", c.PageSizeMax); err != nil {
		return err
	}
	return nil
}

// Validate rejects unknown drivers and drivers missing their connection
// settings.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(oneOf(c.AuthMode, AuthHeader, AuthFirebase), "unknown auth mode %q", c.AuthMode)
	check(oneOf(c.Backend, BackendMemory, BackendMongo, BackendFirestore), "unknown backend %q", c.Backend)
	check(oneOf(c.AuditDriver, BackendMemory, AuditPostgres, BackendFirestore), "unknown audit driver %q", c.AuditDriver)
	check(oneOf(c.LocalStore, BackendMemory, LocalRedis, LocalSQLite), "unknown local store %q", c.LocalStore)

	if c.AuthMode == AuthFirebase {
		check(c.FirebaseProject != "", "FIREBASE_PROJECT is required for firebase auth")
	}
	if c.Backend == BackendMongo {
		check(c.MongoURI != "" && c.MongoDBName != "", "MONGO_URI and MONGO_DB_NAME are required for the mongo backend")
		check(c.MongoMaxPoolSize > 0, "MONGO_MAX_POOL_SIZE must be positive")
	}
	if c.Backend == BackendFirestore || c.AuditDriver == BackendFirestore {
		check(c.FirestoreProject != "", "FIRESTORE_PROJECT is required for firestore")
	}
	if c.AuditDriver == AuditPostgres {
		check(c.DBHost != "" && c.DBName != "" && c.DBUser != "", "DB_HOST, DB_USER and DB_NAME are required for postgres")
	}
	if c.LocalStore == LocalRedis {
		check(c.RedisAddr != "", "REDIS_ADDR is required for the redis local store")
	}
	if c.LocalStore == LocalSQLite {
		check(c.SQLitePath != "", "SQLITE_PATH is required for the sqlite local store")
	}

	check(c.CartDebounce > 0, "CART_DEBOUNCE must be positive")
	check(c.RemoteTimeout > 0, "REMOTE_TIMEOUT must be positive")
	check(c.RequestTimeout > 0, "REQUEST_TIMEOUT must be positive")
	check(c.PageSizeDefault > 0 && c.PageSizeDefault <= c.PageSizeMax,
		"PAGE_SIZE_DEFAULT must be in 1..PAGE_SIZE_MAX")

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
