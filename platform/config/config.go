// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides the Redis connection used by asynq and the tick lock.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig selects and configures the outbound email provider.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// SMTPConfig provides settings for the SMTP email provider.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// VoiceConfig provides settings for the outbound voice vendor.
type VoiceConfig interface {
	GetVoiceAPIURL() string
	GetVoiceAPIKey() string
	GetVoiceAssistantID() string
	GetVoicePhoneNumberID() string
}

// GeoIPConfig provides settings for the geo-IP lookup service.
type GeoIPConfig interface {
	GetGeoIPURL() string
	GetGeoIPRatePerMinute() int
	IsGeoIPEnabled() bool
}

// OutreachConfig provides tuning for the dispatch loop and escalation.
type OutreachConfig interface {
	GetAppBaseURL() string
	GetOutreachMaxAttempts() int
	GetOutreachProviderTimeout() time.Duration
	GetOutreachEmailHourlyLimit() int
	GetOutreachLockTTL() time.Duration
	GetOutreachAdminRoles() []string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketCallTranscripts() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	AppBaseURL       string

	EmailEnabled     bool
	EmailProvider    string
	BrevoAPIKey      string
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	VoiceAPIURL        string
	VoiceAPIKey        string
	VoiceAssistantID   string
	VoicePhoneNumberID string

	GeoIPURL           string
	GeoIPRatePerMinute int

	OutreachMaxAttempts      int
	OutreachProviderTimeout  time.Duration
	OutreachEmailHourlyLimit int
	OutreachLockTTL          time.Duration
	OutreachAdminRoles       []string

	MinIOEndpoint              string
	MinIOAccessKey             string
	MinIOSecretKey             string
	MinIOUseSSL                bool
	MinioBucketCallTranscripts string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string     { return c.SMTPHost }
func (c *Config) GetSMTPPort() int        { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }

// VoiceConfig implementation
func (c *Config) GetVoiceAPIURL() string        { return c.VoiceAPIURL }
func (c *Config) GetVoiceAPIKey() string        { return c.VoiceAPIKey }
func (c *Config) GetVoiceAssistantID() string   { return c.VoiceAssistantID }
func (c *Config) GetVoicePhoneNumberID() string { return c.VoicePhoneNumberID }

// GeoIPConfig implementation
func (c *Config) GetGeoIPURL() string        { return c.GeoIPURL }
func (c *Config) GetGeoIPRatePerMinute() int { return c.GeoIPRatePerMinute }
func (c *Config) IsGeoIPEnabled() bool       { return c.GeoIPURL != "" }

// OutreachConfig implementation
func (c *Config) GetAppBaseURL() string                     { return c.AppBaseURL }
func (c *Config) GetOutreachMaxAttempts() int               { return c.OutreachMaxAttempts }
func (c *Config) GetOutreachProviderTimeout() time.Duration { return c.OutreachProviderTimeout }
func (c *Config) GetOutreachEmailHourlyLimit() int          { return c.OutreachEmailHourlyLimit }
func (c *Config) GetOutreachLockTTL() time.Duration         { return c.OutreachLockTTL }
func (c *Config) GetOutreachAdminRoles() []string           { return c.OutreachAdminRoles }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketCallTranscripts() string {
	return c.MinioBucketCallTranscripts
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from the environment, loading a .env file first when present.
// requireJWT is set by binaries that expose the admin HTTP API.
func Load(requireJWT bool) (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true") || containsWildcard(corsOrigins)

	emailProvider := strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "smtp")))
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:     corsAllowAll,
		CORSOrigins:      corsOrigins,
		CORSAllowCreds:   strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:       strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:4200"), "/"),

		EmailEnabled:     emailEnabled,
		EmailProvider:    emailProvider,
		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Outreach"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),

		VoiceAPIURL:        strings.TrimRight(getEnv("VOICE_API_URL", "https://api.vapi.ai"), "/"),
		VoiceAPIKey:        getEnv("VOICE_API_KEY", ""),
		VoiceAssistantID:   getEnv("VOICE_ASSISTANT_ID", ""),
		VoicePhoneNumberID: getEnv("VOICE_PHONE_NUMBER_ID", ""),

		GeoIPURL:           strings.TrimRight(getEnv("GEOIP_URL", ""), "/"),
		GeoIPRatePerMinute: mustInt(getEnv("GEOIP_RATE_PER_MINUTE", "45")),

		OutreachMaxAttempts:      mustInt(getEnv("OUTREACH_MAX_ATTEMPTS", "3")),
		OutreachProviderTimeout:  mustDuration(getEnv("OUTREACH_PROVIDER_TIMEOUT", "20s")),
		OutreachEmailHourlyLimit: mustInt(getEnv("OUTREACH_EMAIL_HOURLY_LIMIT", "50")),
		OutreachLockTTL:          mustDuration(getEnv("OUTREACH_LOCK_TTL", "2m")),
		OutreachAdminRoles:       splitCSV(getEnv("OUTREACH_ADMIN_ROLES", "admin")),

		MinIOEndpoint:              getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:             getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:             getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketCallTranscripts: getEnv("MINIO_BUCKET_CALL_TRANSCRIPTS", "call-transcripts"),
	}

	if err := cfg.validate(requireJWT); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate(requireJWT bool) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if requireJWT && c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.EmailEnabled {
		switch c.EmailProvider {
		case "smtp":
			if c.SMTPHost == "" {
				return fmt.Errorf("SMTP_HOST is required when EMAIL_PROVIDER is smtp")
			}
		case "brevo":
			if c.BrevoAPIKey == "" {
				return fmt.Errorf("BREVO_API_KEY is required when EMAIL_PROVIDER is brevo")
			}
		default:
			return fmt.Errorf("unsupported EMAIL_PROVIDER %q", c.EmailProvider)
		}
		if c.EmailFromAddress == "" {
			return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
		}
	}
	if c.OutreachMaxAttempts < 1 {
		return fmt.Errorf("OUTREACH_MAX_ATTEMPTS must be at least 1")
	}
	if c.OutreachProviderTimeout <= 0 {
		return fmt.Errorf("OUTREACH_PROVIDER_TIMEOUT must be a positive duration")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
