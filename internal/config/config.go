package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// postgres | memory
	Driver         string `yaml:"driver" env:"DB_DRIVER"`
	DSN            string `yaml:"url" env:"DATABASE_URL"`
	SkipMigrations bool   `yaml:"skip_migrations" env:"DB_SKIP_MIGRATIONS"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	FromEmail    string `yaml:"from_email" env:"SMTP_FROM"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

type AuthConfig struct {
	BcryptCost           int           `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	LinkSecret           string        `yaml:"link_secret" env:"LINK_SECRET"`
	Issuer               string        `yaml:"issuer"`
	ActivationTTL        time.Duration `yaml:"activation_ttl"`
	PasswordResetTTL     time.Duration `yaml:"password_reset_ttl"`
	EmailVerificationTTL time.Duration `yaml:"email_verification_ttl"`
}

type LinksConfig struct {
	BaseURL string `yaml:"base_url" env:"PUBLIC_BASE_URL"`
	// отдавать ссылки в теле ответа (локальная разработка без SMTP)
	ExposeInResponse bool `yaml:"expose_in_response" env:"LINKS_EXPOSE_IN_RESPONSE"`
}

type PasswordPolicyConfig struct {
	MinLength         int  `yaml:"min_length"`
	MaxLength         int  `yaml:"max_length"`
	RequireUpper      bool `yaml:"require_upper"`
	RequireLower      bool `yaml:"require_lower"`
	RequireDigit      bool `yaml:"require_digit"`
	RequireSymbol     bool `yaml:"require_symbol"`
	AllowNumeric      bool `yaml:"allow_numeric"`
	AllowCommon       bool `yaml:"allow_common"`
	AllowEmailSimilar bool `yaml:"allow_email_similar"`
}

type NotificationsConfig struct {
	// smtp | kafka | log
	Driver       string        `yaml:"driver" env:"NOTIFY_DRIVER"`
	Topic        string        `yaml:"topic" env:"NOTIFY_TOPIC"`
	KafkaBrokers []string      `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	BatchSize    int           `yaml:"batch_size"`
	Interval     time.Duration `yaml:"interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Lease        time.Duration `yaml:"lease"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

type Config struct {
	Env            string               `yaml:"env" env:"ENV"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Email          EmailConfig          `yaml:"email"`
	Log            LogConfig            `yaml:"log"`
	Auth           AuthConfig           `yaml:"auth"`
	Links          LinksConfig          `yaml:"links"`
	PasswordPolicy PasswordPolicyConfig `yaml:"password_policy"`
	Notifications  NotificationsConfig  `yaml:"notifications"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
}

// Default значения, поверх которых читается yaml и затем переменные окружения.
// env-default у cleanenv не используем: для bool он не отличает false от незаданного.
func Default() Config {
	return Config{
		Env: "local",
		Server: ServerConfig{
			Port:            8000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Driver: "postgres"},
		Email:    EmailConfig{SMTPPort: 587},
		Log:      LogConfig{Level: "info"},
		Auth: AuthConfig{
			BcryptCost:           10,
			Issuer:               "useraccounts",
			ActivationTTL:        72 * time.Hour,
			PasswordResetTTL:     time.Hour,
			EmailVerificationTTL: 24 * time.Hour,
		},
		Links:          LinksConfig{BaseURL: "http://localhost:8000"},
		PasswordPolicy: PasswordPolicyConfig{MinLength: 8, MaxLength: 72},
		Notifications: NotificationsConfig{
			Driver:      "log",
			Topic:       "account_events",
			BatchSize:   50,
			Interval:    500 * time.Millisecond,
			MaxAttempts: 10,
			Lease:       2 * time.Minute,
		},
		Telemetry: TelemetryConfig{ServiceName: "useraccounts"},
	}
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig() *Config {
	cfg, err := Load(Path())
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}
	return cfg
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.url is required for the postgres driver"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.Notifications.Driver {
	case "smtp":
		if c.Email.SMTPHost == "" || c.Email.FromEmail == "" {
			errs = append(errs, errors.New("email.smtp_host and email.from_email are required for the smtp driver"))
		}
	case "kafka":
		if len(c.Notifications.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("notifications.kafka_brokers is required for the kafka driver"))
		}
	case "log":
	default:
		errs = append(errs, fmt.Errorf("unknown notifications.driver %q", c.Notifications.Driver))
	}

	if c.Auth.LinkSecret == "" {
		errs = append(errs, errors.New("auth.link_secret is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server.port %d", c.Server.Port))
	}
	if c.PasswordPolicy.MinLength <= 0 || c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		errs = append(errs, errors.New("password_policy: need 0 < min_length <= max_length"))
	}
	// bcrypt не хэширует больше 72 байт
	if c.PasswordPolicy.MaxLength > 72 {
		errs = append(errs, fmt.Errorf("password_policy.max_length %d exceeds the bcrypt limit of 72 bytes", c.PasswordPolicy.MaxLength))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}
