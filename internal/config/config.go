package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the API and the outreachctl CLI.
// All values come from env (or an env-file loaded by the process runner).
// Business logic never reads raw environment variables; the per-run outreach
// settings (kill switch, batch size, attempts) live in the voice_config row.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Voice    VoiceConfig
	CTPS     CTPSConfig
	Dispatch DispatchConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. Without a host, dispatch locks are process-local.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	AccessTokenTTL time.Duration
	// ServiceTokenTTL bounds tokens minted for the external scheduler.
	ServiceTokenTTL time.Duration
}

// VoiceConfig configures the outbound voice provider transport.
// Provider credentials are per-tenant data and are not read from env.
type VoiceConfig struct {
	APIBaseURL    string
	Timeout       time.Duration
	WebhookSecret string
}

// CTPSConfig configures the do-not-call registry lookup.
// An empty BaseURL outside production means every number is treated as
// not registered.
type CTPSConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
	CacheMB  int
}

type DispatchConfig struct {
	Pacing  time.Duration
	LockTTL time.Duration
	// CampaignParallelism caps how many campaigns `dispatch --all` runs at once.
	CampaignParallelism int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = optionalInt(parseErrs, "APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = requiredInt(parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = optionalInt(parseErrs, "REDIS_PORT")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_ACCESS_TTL")
	c.Auth.ServiceTokenTTL, parseErrs = optionalDuration(parseErrs, "JWT_SERVICE_TTL")

	c.Voice.APIBaseURL = strings.TrimSpace(os.Getenv("VOICE_API_BASE_URL"))
	c.Voice.Timeout, parseErrs = optionalDuration(parseErrs, "VOICE_API_TIMEOUT")
	c.Voice.WebhookSecret = os.Getenv("VOICE_WEBHOOK_SECRET")

	c.CTPS.BaseURL = strings.TrimSpace(os.Getenv("CTPS_BASE_URL"))
	c.CTPS.APIKey = os.Getenv("CTPS_API_KEY")
	c.CTPS.Timeout, parseErrs = optionalDuration(parseErrs, "CTPS_TIMEOUT")
	c.CTPS.CacheTTL, parseErrs = optionalDuration(parseErrs, "CTPS_CACHE_TTL")
	c.CTPS.CacheMB, parseErrs = optionalInt(parseErrs, "CTPS_CACHE_MB")

	c.Dispatch.Pacing, parseErrs = optionalDuration(parseErrs, "DISPATCH_PACING")
	c.Dispatch.LockTTL, parseErrs = optionalDuration(parseErrs, "DISPATCH_LOCK_TTL")
	c.Dispatch.CampaignParallelism, parseErrs = optionalInt(parseErrs, "DISPATCH_CAMPAIGN_PARALLELISM")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate fills defaults in place and reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port == 0 {
		c.App.Port = 8080
	}
	if c.App.Port < 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.Port < 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.Host == "" && c.IsProduction() {
		errs = append(errs, errors.New("REDIS_HOST is required in production"))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.ServiceTokenTTL <= 0 {
		c.Auth.ServiceTokenTTL = 90 * 24 * time.Hour
	}

	if c.Voice.APIBaseURL == "" {
		c.Voice.APIBaseURL = "https://api.vapi.ai"
	}
	if !isHTTPURL(c.Voice.APIBaseURL) {
		errs = append(errs, fmt.Errorf("VOICE_API_BASE_URL must be an http(s) URL, got %q", c.Voice.APIBaseURL))
	}
	if c.Voice.Timeout <= 0 {
		c.Voice.Timeout = 15 * time.Second
	}
	if c.Voice.WebhookSecret == "" && c.IsProduction() {
		errs = append(errs, errors.New("VOICE_WEBHOOK_SECRET is required in production"))
	}

	if c.CTPS.BaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("CTPS_BASE_URL is required in production"))
		}
	} else if !isHTTPURL(c.CTPS.BaseURL) {
		errs = append(errs, fmt.Errorf("CTPS_BASE_URL must be an http(s) URL, got %q", c.CTPS.BaseURL))
	}
	if c.CTPS.Timeout <= 0 {
		c.CTPS.Timeout = 5 * time.Second
	}
	if c.CTPS.CacheTTL <= 0 {
		c.CTPS.CacheTTL = 24 * time.Hour
	}
	if c.CTPS.CacheMB == 0 {
		c.CTPS.CacheMB = 16
	}
	if c.CTPS.CacheMB < 0 {
		errs = append(errs, fmt.Errorf("CTPS_CACHE_MB must be positive, got %d", c.CTPS.CacheMB))
	}

	if c.Dispatch.Pacing <= 0 {
		c.Dispatch.Pacing = 30 * time.Second
	}
	if c.Dispatch.LockTTL <= 0 {
		c.Dispatch.LockTTL = 10 * time.Minute
	}
	// A full batch is 5 calls with 4 pacing waits; the lock must outlive it.
	if c.Dispatch.LockTTL <= 5*c.Dispatch.Pacing {
		errs = append(errs, fmt.Errorf("DISPATCH_LOCK_TTL (%s) must exceed 5x DISPATCH_PACING (%s)", c.Dispatch.LockTTL, c.Dispatch.Pacing))
	}
	if c.Dispatch.CampaignParallelism == 0 {
		c.Dispatch.CampaignParallelism = 4
	}
	if c.Dispatch.CampaignParallelism < 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_CAMPAIGN_PARALLELISM must be positive, got %d", c.Dispatch.CampaignParallelism))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// PostgresDSN is the keyword/value DSN for the pgx stdlib driver.
// Never log it; it contains the password.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// MigrateURL is the pgx5:// URL form golang-migrate expects.
func (c Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func requiredInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, append(errs, fmt.Errorf("%s is required", key))
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalInt(errs []error, key string) (int, []error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, errs
	}
	return requiredInt(errs, key)
}

// optionalDuration returns 0 when unset so Validate can apply the default.
func optionalDuration(errs []error, key string) (time.Duration, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be a duration like 30s or 10m, got %q", key, v))
	}
	return d, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func isHTTPURL(v string) bool {
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
