package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Call   CallConfig
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

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	WebhookSecret string

	// FromNumber is the E.164 caller id used for outbound reflection calls.
	FromNumber string

	// StatusCallbackURL is the public URL Twilio posts call status updates to.
	StatusCallbackURL string

	// RecordingCallbackURL receives answer recordings and transcriptions.
	RecordingCallbackURL string
}

// CallConfig holds the tunable policy for the call lifecycle engine.
// None of these values are business rules; they are deployment policy
// and must never be hardcoded in the engine itself.
type CallConfig struct {
	// MaxRetries bounds how many times a failed dispatch is re-queued
	// before the attempt is marked failed.
	MaxRetries int

	// BackoffMode is "fixed" or "exponential".
	BackoffMode string
	// BackoffBase is the delay for the first retry; exponential mode
	// doubles it per subsequent retry.
	BackoffBase time.Duration

	// CaptureTimeout bounds how long one capture window stays open
	// waiting for a spoken answer.
	CaptureTimeout time.Duration
	// SilenceThreshold is how much trailing silence ends a turn.
	SilenceThreshold time.Duration
	// IdleTimeout bounds how long a stalled call may hold a live session.
	IdleTimeout time.Duration

	// RepromptLimit is how many times one prompt is re-asked on an
	// empty or non-substantive answer before accepting it as-is.
	RepromptLimit int

	// MaxLiveCalls caps simultaneous in-flight provider calls per process.
	MaxLiveCalls int

	// DispatchInterval is the queue poll cadence of the dispatcher loop.
	DispatchInterval time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.WebhookSecret = os.Getenv("TWILIO_WEBHOOK_SECRET")
	c.Twilio.FromNumber = strings.TrimSpace(os.Getenv("TWILIO_FROM_NUMBER"))
	c.Twilio.StatusCallbackURL = strings.TrimSpace(os.Getenv("TWILIO_STATUS_CALLBACK_URL"))
	c.Twilio.RecordingCallbackURL = strings.TrimSpace(os.Getenv("TWILIO_RECORDING_CALLBACK_URL"))

	// Call policy knobs are all optional; defaults applied in Validate().
	c.Call.MaxRetries = optInt("CALL_MAX_RETRIES")
	c.Call.BackoffMode = strings.TrimSpace(os.Getenv("CALL_BACKOFF_MODE"))
	c.Call.BackoffBase = optDuration("CALL_BACKOFF_BASE")
	c.Call.CaptureTimeout = optDuration("CALL_CAPTURE_TIMEOUT")
	c.Call.SilenceThreshold = optDuration("CALL_SILENCE_THRESHOLD")
	c.Call.IdleTimeout = optDuration("CALL_IDLE_TIMEOUT")
	c.Call.RepromptLimit = optInt("CALL_REPROMPT_LIMIT")
	c.Call.MaxLiveCalls = optInt("CALL_MAX_LIVE_CALLS")
	c.Call.DispatchInterval = optDuration("CALL_DISPATCH_INTERVAL")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
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
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			// Allowed values are enforced below.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
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
		if c.Twilio.FromNumber == "" {
			errs = append(errs, errors.New("TWILIO_FROM_NUMBER is required in production"))
		}
		if c.Twilio.StatusCallbackURL == "" {
			errs = append(errs, errors.New("TWILIO_STATUS_CALLBACK_URL is required in production"))
		}
		if c.Twilio.RecordingCallbackURL == "" {
			errs = append(errs, errors.New("TWILIO_RECORDING_CALLBACK_URL is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Call.MaxRetries <= 0 {
		c.Call.MaxRetries = 3
	}
	if c.Call.BackoffMode == "" {
		c.Call.BackoffMode = "exponential"
	}
	if !isValidBackoffMode(c.Call.BackoffMode) {
		errs = append(errs, fmt.Errorf("CALL_BACKOFF_MODE must be fixed or exponential, got %q", c.Call.BackoffMode))
	}
	if c.Call.BackoffBase <= 0 {
		c.Call.BackoffBase = 5 * time.Minute
	}
	if c.Call.CaptureTimeout <= 0 {
		c.Call.CaptureTimeout = 30 * time.Second
	}
	if c.Call.SilenceThreshold <= 0 {
		c.Call.SilenceThreshold = 3 * time.Second
	}
	if c.Call.IdleTimeout <= 0 {
		c.Call.IdleTimeout = 2 * time.Minute
	}
	if c.Call.SilenceThreshold >= c.Call.CaptureTimeout {
		errs = append(errs, errors.New("CALL_SILENCE_THRESHOLD must be less than CALL_CAPTURE_TIMEOUT"))
	}
	if c.Call.RepromptLimit < 0 {
		errs = append(errs, errors.New("CALL_REPROMPT_LIMIT must be >= 0"))
	}
	if c.Call.RepromptLimit == 0 {
		c.Call.RepromptLimit = 1
	}
	if c.Call.MaxLiveCalls <= 0 {
		c.Call.MaxLiveCalls = 10
	}
	if c.Call.DispatchInterval <= 0 {
		c.Call.DispatchInterval = 15 * time.Second
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
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

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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

func isValidBackoffMode(v string) bool {
	switch v {
	case "fixed", "exponential":
		return true
	default:
		return false
	}
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
