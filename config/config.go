package config

import (
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	tours "github.com/goliatone/go-tours"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"development"`
	HTTPServer `yaml:"http_server"`
	DB         `yaml:"db"`
	JWT        `yaml:"jwt"`
	Email      `yaml:"email"`
	Stripe     `yaml:"stripe"`
	// PublicURL is the externally visible base for links in emails
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:3000"`
}

type HTTPServer struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
	// RateLimit is the number of API requests allowed per IP per hour
	RateLimit int `yaml:"rate_limit" env:"RATE_LIMIT" env-default:"100"`
}

type DB struct {
	Driver     string `yaml:"driver" env:"DATABASE_DRIVER" env-default:"sqlite"`
	URL        string `yaml:"url" env:"DATABASE_URL" env-default:"file:tours.db?cache=shared"`
	LogQueries bool   `yaml:"log_queries" env:"DATABASE_LOG_QUERIES"`
}

type JWT struct {
	Secret    string        `yaml:"secret" env:"JWT_SECRET"`
	ExpiresIn time.Duration `yaml:"expires_in" env:"JWT_EXPIRES_IN" env-default:"2160h"`
	// CookieExpiresIn is in days
	CookieExpiresIn int    `yaml:"cookie_expires_in" env:"JWT_COOKIE_EXPIRES_IN" env-default:"90"`
	Issuer          string `yaml:"issuer" env:"JWT_ISSUER" env-default:"go-tours"`
}

type Email struct {
	Host     string `yaml:"host" env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"EMAIL_PORT" env-default:"2525"`
	Username string `yaml:"username" env:"EMAIL_USERNAME"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
	From     string `yaml:"from" env:"EMAIL_FROM" env-default:"Tours <hello@tours.io>"`
}

type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `yaml:"currency" env:"STRIPE_CURRENCY" env-default:"usd"`
}

var _ tours.Config = (*Config)(nil)

// Load reads path when given, then overlays the environment
func Load(path string) (*Config, error) {
	var cfg Config

	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad panics when the configuration cannot be loaded
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate rejects configurations that cannot run
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return goerrors.New("JWT_SECRET is required", goerrors.CategoryValidation)
	}
	if c.IsProduction() && len(c.JWT.Secret) < 32 {
		return goerrors.New("JWT_SECRET must be at least 32 characters in production", goerrors.CategoryValidation)
	}
	if c.JWT.ExpiresIn <= 0 {
		return goerrors.New("JWT_EXPIRES_IN must be positive", goerrors.CategoryValidation)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return goerrors.New("DATABASE_DRIVER must be sqlite or postgres", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"driver": c.DB.Driver})
	}
	return nil
}

// Usage describes the supported environment variables
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPServer.Port)
}

func (c *Config) GetSigningKey() string {
	return c.JWT.Secret
}

func (c *Config) GetIssuer() string {
	return c.JWT.Issuer
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.JWT.ExpiresIn
}

func (c *Config) GetCookieExpiration() time.Duration {
	return time.Duration(c.JWT.CookieExpiresIn) * 24 * time.Hour
}

func (c *Config) GetContextKey() string {
	return "jwt"
}

func (c *Config) GetTokenLookup() string {
	return "header:Authorization,cookie:jwt"
}

func (c *Config) GetAuthScheme() string {
	return "Bearer"
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}
