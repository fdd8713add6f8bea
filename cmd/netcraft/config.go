package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/netcraft/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultCleanupInterval = time.Hour
	defaultResetCodeTTL    = 15 * time.Minute
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 24 * time.Hour

	RevocationBackendPostgres = "postgres"
	RevocationBackendRedis    = "redis"
)

type Config struct {
	// Default logging level
	LogLevel string `yaml:"log_level"`

	// Address on which the netcraft service will be run
	ListenAddr string `yaml:"address"`

	// Database to connect to
	DatabaseDSN string `yaml:"database"`

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string `yaml:"secret_key"`

	// Environment
	Environment string `yaml:"environment"`

	// Where revoked tokens are kept: postgres or redis
	RevocationBackend string `yaml:"revocation_backend"`
	RedisAddr         string `yaml:"redis_addr"`

	// Reset codes are sent with Mailgun if api key and domain are set
	// Otherwise they are not sent at all
	MailgunAPIKey  string `yaml:"mailgun_api_key"`
	MailgunDomain  string `yaml:"mailgun_domain"`
	MailgunBaseURL string `yaml:"mailgun_base_url"`

	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	ResetCodeTTL    time.Duration `yaml:"reset_code_ttl"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
}

func NewConfig() *Config {
	return &Config{
		LogLevel:          defaultLoggingLevel,
		ListenAddr:        defaultListenAddr,
		Environment:       defaultEnvironment,
		RevocationBackend: RevocationBackendPostgres,
		CleanupInterval:   defaultCleanupInterval,
		ResetCodeTTL:      defaultResetCodeTTL,
		AccessTokenTTL:    defaultAccessTokenTTL,
		RefreshTokenTTL:   defaultRefreshTokenTTL,
	}
}

// Load config values from yaml file. Only values present in file are changed
func (c *Config) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := cleanenv.ReadConfig(path, c); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"REVOCATION_BACKEND": setString(&c.RevocationBackend),
		"REDIS_ADDR":         setString(&c.RedisAddr),
		"MAILGUN_API_KEY":    setString(&c.MailgunAPIKey),
		"MAILGUN_DOMAIN":     setString(&c.MailgunDomain),
		"MAILGUN_BASE_URL":   setString(&c.MailgunBaseURL),
		"CLEANUP_INTERVAL":   setDuration(&c.CleanupInterval),
		"RESET_CODE_TTL":     setDuration(&c.ResetCodeTTL),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":  setDuration(&c.RefreshTokenTTL),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := newFlagSet()

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.RevocationBackend, "revocation-backend", c.RevocationBackend, "Revoked tokens storage (postgres, redis)")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address, required for redis revocation backend")
	fs.StringVar(&c.MailgunAPIKey, "mailgun-api-key", c.MailgunAPIKey, "Mailgun API key")
	fs.StringVar(&c.MailgunDomain, "mailgun-domain", c.MailgunDomain, "Mailgun sending domain")
	fs.StringVar(&c.MailgunBaseURL, "mailgun-base-url", c.MailgunBaseURL, "Mailgun API base url")
	fs.DurationVar(&c.CleanupInterval, "cleanup-interval", c.CleanupInterval, "How often expired records are removed")
	fs.DurationVar(&c.ResetCodeTTL, "reset-code-ttl", c.ResetCodeTTL, "Password reset code lifetime")
	fs.DurationVar(&c.AccessTokenTTL, "access-token-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-token-ttl", c.RefreshTokenTTL, "Refresh token lifetime")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("secret key is required")
	case c.DatabaseDSN == "":
		return errors.New("database connection string is required")
	case c.RevocationBackend != RevocationBackendPostgres && c.RevocationBackend != RevocationBackendRedis:
		return fmt.Errorf("unknown revocation backend %q", c.RevocationBackend)
	case c.RevocationBackend == RevocationBackendRedis && c.RedisAddr == "":
		return errors.New("redis address is required for redis revocation backend")
	case c.CleanupInterval <= 0:
		return errors.New("cleanup interval must be positive")
	}
	return nil
}

// Every flag set knows about --config so it is not reported as unknown
func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("netcraft", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Path to yaml config file (CONFIG_PATH)")
	return fs
}

// Config file path from --config flag or CONFIG_PATH env
// Other flags are ignored here, they are parsed later on top of the file
func configPath(args []string, getenv func(string) string) (string, error) {
	fs := newFlagSet()
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if path, _ := fs.GetString("config"); path != "" {
		return path, nil
	}
	return getenv("CONFIG_PATH"), nil
}

// Build config layer by layer: defaults, yaml file, .env file, environment, flags
func LoadConfig(getenv func(string) string, getwd func() (string, error), args []string) (*Config, error) {
	c := NewConfig()

	path, err := configPath(args, getenv)
	if err != nil {
		return nil, err
	}

	if err := c.LoadFile(path); err != nil {
		return nil, err
	}
	if err := c.LoadDotEnv(getwd); err != nil {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := c.ParseFlags(args); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}
