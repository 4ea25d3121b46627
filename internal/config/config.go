package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Logger   LoggerConfig   `yaml:"logger"`
	Auth     AuthConfig     `yaml:"auth"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Email    EmailConfig    `yaml:"email"`
	Tickets  TicketsConfig  `yaml:"tickets"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string `yaml:"name"`
	Env                   string `yaml:"env"`
	Host                  string `yaml:"host"`
	Port                  string `yaml:"port"`
	Version               string `yaml:"version"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	MaxConns       int32  `yaml:"max_conns"`
	MinConns       int32  `yaml:"min_conns"`
	RunMigrations  bool   `yaml:"run_migrations"`
	MigrationsDir  string `yaml:"migrations_dir"`
	ConnMaxIdleSec int32  `yaml:"conn_max_idle_seconds"`
	ConnMaxLifeSec int32  `yaml:"conn_max_life_seconds"`
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr               string `yaml:"addr"`
	Password           string `yaml:"password"`
	DB                 int    `yaml:"db"`
	SLACacheTTLSeconds int    `yaml:"sla_cache_ttl_seconds"`
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string `yaml:"jwt_secret"`
	AccessTokenTTLMinutes int    `yaml:"access_token_ttl_minutes"`
	BcryptCost            int    `yaml:"bcrypt_cost"`
}

// KafkaConfig configures the outbound ticket event stream. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// EmailConfig configures lifecycle email delivery. Empty SMTPHost logs emails instead.
type EmailConfig struct {
	SMTPHost          string `yaml:"smtp_host"`
	SMTPPort          int    `yaml:"smtp_port"`
	SMTPUsername      string `yaml:"smtp_username"`
	SMTPPassword      string `yaml:"smtp_password"`
	From              string `yaml:"from"`
	FeedbackSurveyURL string `yaml:"feedback_survey_url"`
}

// TicketsConfig tunes the ticket lifecycle engine.
type TicketsConfig struct {
	CodePrefix                   string `yaml:"code_prefix"`
	BulkMaxIDs                   int    `yaml:"bulk_max_ids"`
	BackgroundTaskTimeoutSeconds int    `yaml:"background_task_timeout_seconds"`
}

// WebhookConfig guards the inbound email webhook.
type WebhookConfig struct {
	InboundEmailSecret string `yaml:"inbound_email_secret"`
}

// Load reads configuration: defaults, then the optional YAML file, then environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := getEnv("CONFIG_FILE", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:                  "support-desk",
			Env:                   "development",
			Host:                  "0.0.0.0",
			Port:                  "8080",
			Version:               "dev",
			RequestTimeoutSeconds: 30,
		},
		Postgres: PostgresConfig{
			MaxConns:       10,
			MinConns:       2,
			RunMigrations:  true,
			MigrationsDir:  "migrations",
			ConnMaxIdleSec: 30,
			ConnMaxLifeSec: 300,
		},
		Redis: RedisConfig{
			Addr:               "127.0.0.1:6379",
			SLACacheTTLSeconds: 300,
		},
		Logger: LoggerConfig{Level: "info"},
		Auth: AuthConfig{
			JWTSecret:             "dev-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            12,
		},
		Kafka: KafkaConfig{Topic: "ticket-events"},
		Email: EmailConfig{
			SMTPPort:          587,
			From:              "support@example.com",
			FeedbackSurveyURL: "https://support.example.com/feedback",
		},
		Tickets: TicketsConfig{
			CodePrefix:                   "TCK",
			BulkMaxIDs:                   100,
			BackgroundTaskTimeoutSeconds: 30,
		},
	}
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.Name, "APP_NAME")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.Host, "APP_HOST")
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Version, "APP_VERSION")
	setInt(&cfg.App.RequestTimeoutSeconds, "HTTP_REQUEST_TIMEOUT_SECONDS")

	setString(&cfg.Postgres.DSN, "POSTGRES_DSN")
	cfg.Postgres.MaxConns = int32(getEnvAsInt("POSTGRES_MAX_CONNS", int(cfg.Postgres.MaxConns)))
	cfg.Postgres.MinConns = int32(getEnvAsInt("POSTGRES_MIN_CONNS", int(cfg.Postgres.MinConns)))
	cfg.Postgres.RunMigrations = getEnvAsBool("POSTGRES_RUN_MIGRATIONS", cfg.Postgres.RunMigrations)
	setString(&cfg.Postgres.MigrationsDir, "POSTGRES_MIGRATIONS_DIR")
	cfg.Postgres.ConnMaxIdleSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", int(cfg.Postgres.ConnMaxIdleSec)))
	cfg.Postgres.ConnMaxLifeSec = int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", int(cfg.Postgres.ConnMaxLifeSec)))

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	if val := os.Getenv("REDIS_DB"); val != "" {
		db, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.Redis.DB = db
	}
	setInt(&cfg.Redis.SLACacheTTLSeconds, "REDIS_SLA_CACHE_TTL_SECONDS")

	setString(&cfg.Logger.Level, "LOG_LEVEL")

	setString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setInt(&cfg.Auth.AccessTokenTTLMinutes, "AUTH_ACCESS_TOKEN_TTL_MINUTES")
	setInt(&cfg.Auth.BcryptCost, "AUTH_BCRYPT_COST")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")

	setString(&cfg.Email.SMTPHost, "SMTP_HOST")
	setInt(&cfg.Email.SMTPPort, "SMTP_PORT")
	setString(&cfg.Email.SMTPUsername, "SMTP_USERNAME")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.From, "EMAIL_FROM")
	setString(&cfg.Email.FeedbackSurveyURL, "EMAIL_FEEDBACK_SURVEY_URL")

	setString(&cfg.Tickets.CodePrefix, "TICKET_CODE_PREFIX")
	setInt(&cfg.Tickets.BulkMaxIDs, "TICKET_BULK_MAX_IDS")
	setInt(&cfg.Tickets.BackgroundTaskTimeoutSeconds, "TICKET_BACKGROUND_TASK_TIMEOUT_SECONDS")

	setString(&cfg.Webhook.InboundEmailSecret, "WEBHOOK_INBOUND_EMAIL_SECRET")
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SLACacheTTL returns how long resolved SLA policies stay cached.
func (r RedisConfig) SLACacheTTL() time.Duration {
	return time.Duration(r.SLACacheTTLSeconds) * time.Second
}

// BackgroundTaskTimeout bounds each fire-and-forget task.
func (t TicketsConfig) BackgroundTaskTimeout() time.Duration {
	if t.BackgroundTaskTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(t.BackgroundTaskTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func setString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

func setInt(dst *int, key string) {
	*dst = getEnvAsInt(key, *dst)
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
