package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the relay processes.
// Values come from the environment (optionally pre-loaded from .env).
type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Twilio      TwilioConfig
	Translation TranslationConfig
	Dispatch    DispatchConfig
	Inbound     InboundConfig
	Presence    PresenceConfig
	Tracing     TracingConfig
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
	AccountSID  string
	AuthToken   string
	PhoneNumber string
	APIBaseURL  string
	Timeout     time.Duration

	// WebhookBaseURL is the public scheme+host Twilio calls. Signatures are
	// computed over the public URL, which differs from r.Host behind a proxy.
	WebhookBaseURL string
}

type TranslationConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration

	// Languages extends or overrides the built-in code -> name table.
	Languages map[string]string
}

type DispatchConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type InboundConfig struct {
	DedupeTTL time.Duration
}

type PresenceConfig struct {
	Timeout time.Duration
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	OTLPEndpoint string
	SampleRate   float64
}

// LoadDotEnv pre-loads variables from .env files. Variables already set in
// the environment win, and missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port, parseErrs = collect(parseErrs)(mustInt("APP_PORT"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port, parseErrs = collect(parseErrs)(mustInt("DB_PORT"))
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port, parseErrs = collect(parseErrs)(mustInt("REDIS_PORT"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.APIBaseURL = strings.TrimSpace(os.Getenv("TWILIO_API_BASE_URL"))
	c.Twilio.Timeout = optDuration("TWILIO_TIMEOUT")
	c.Twilio.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TWILIO_WEBHOOK_BASE_URL")), "/")

	c.Translation.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.Translation.BaseURL = strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL"))
	c.Translation.Model = strings.TrimSpace(os.Getenv("TRANSLATION_MODEL"))
	c.Translation.MaxTokens, parseErrs = collect(parseErrs)(optInt("TRANSLATION_MAX_TOKENS"))
	c.Translation.Timeout = optDuration("TRANSLATION_TIMEOUT")
	{
		langs, err := ParseLanguages(os.Getenv("TRANSLATION_LANGUAGES"))
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Translation.Languages = langs
	}

	c.Dispatch.MaxAttempts, parseErrs = collect(parseErrs)(optInt("DISPATCH_MAX_ATTEMPTS"))
	c.Dispatch.BaseDelay = optDuration("DISPATCH_BASE_DELAY")
	c.Inbound.DedupeTTL = optDuration("INBOUND_DEDUPE_TTL")
	c.Presence.Timeout = optDuration("PRESENCE_TIMEOUT")

	c.Tracing.Enabled = strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "true")
	c.Tracing.Exporter = strings.TrimSpace(os.Getenv("TRACING_EXPORTER"))
	c.Tracing.OTLPEndpoint = strings.TrimSpace(os.Getenv("TRACING_OTLP_ENDPOINT"))
	if v := strings.TrimSpace(os.Getenv("TRACING_SAMPLE_RATE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			parseErrs = append(parseErrs, fmt.Errorf("TRACING_SAMPLE_RATE must be a number, got %q", v))
		}
		c.Tracing.SampleRate = f
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills defaults in place.
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
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.PhoneNumber == "" {
		errs = append(errs, errors.New("TWILIO_PHONE_NUMBER is required"))
	}
	if c.Twilio.APIBaseURL == "" {
		c.Twilio.APIBaseURL = "https://api.twilio.com"
	}
	if c.Twilio.Timeout <= 0 {
		c.Twilio.Timeout = 10 * time.Second
	}
	if c.Twilio.WebhookBaseURL != "" &&
		!strings.HasPrefix(c.Twilio.WebhookBaseURL, "https://") &&
		!strings.HasPrefix(c.Twilio.WebhookBaseURL, "http://") {
		errs = append(errs, fmt.Errorf("TWILIO_WEBHOOK_BASE_URL must start with http:// or https://, got %q", c.Twilio.WebhookBaseURL))
	}

	if c.Translation.APIKey == "" {
		errs = append(errs, errors.New("ANTHROPIC_API_KEY is required"))
	}
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = "https://api.anthropic.com"
	}
	if c.Translation.Model == "" {
		c.Translation.Model = "claude-3-5-haiku-20241022"
	}
	if c.Translation.MaxTokens <= 0 {
		c.Translation.MaxTokens = 1024
	}
	if c.Translation.Timeout <= 0 {
		c.Translation.Timeout = 20 * time.Second
	}

	if c.Dispatch.MaxAttempts == 0 {
		c.Dispatch.MaxAttempts = 3
	}
	if c.Dispatch.MaxAttempts < 1 || c.Dispatch.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("DISPATCH_MAX_ATTEMPTS must be between 1 and 10, got %d", c.Dispatch.MaxAttempts))
	}
	if c.Dispatch.BaseDelay <= 0 {
		c.Dispatch.BaseDelay = time.Second
	}

	if c.Inbound.DedupeTTL <= 0 {
		c.Inbound.DedupeTTL = 24 * time.Hour
	}
	if c.Presence.Timeout <= 0 {
		c.Presence.Timeout = 2 * time.Minute
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "otlp" {
		errs = append(errs, fmt.Errorf("TRACING_EXPORTER must be stdout or otlp, got %q", c.Tracing.Exporter))
	}
	if c.Tracing.OTLPEndpoint == "" {
		c.Tracing.OTLPEndpoint = "localhost:4318"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 1.0
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("TRACING_SAMPLE_RATE must be within [0,1], got %v", c.Tracing.SampleRate))
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
	// Contains secrets; never log.
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

// ParseLanguages reads "code=Name" pairs separated by commas.
func ParseLanguages(raw string) (map[string]string, error) {
	out := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, name, ok := strings.Cut(pair, "=")
		code = strings.ToLower(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if !ok || code == "" || name == "" {
			return nil, fmt.Errorf("TRANSLATION_LANGUAGES entry %q must look like code=Name", pair)
		}
		out[code] = name
	}
	return out, nil
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

func optInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

// optDuration returns 0 when unset or unparsable; Validate applies defaults.
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

func collect(errs []error) func(int, error) (int, []error) {
	return func(n int, err error) (int, []error) {
		if err != nil {
			return n, append(errs, err)
		}
		return n, errs
	}
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
