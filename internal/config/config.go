// Package config resolves settings from the environment and an optional
// config file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MinJWTSecretLength mirrors auth.MinSecretLength.
const MinJWTSecretLength = 32

const (
	keyPort               = "port"
	keyDatabasePath       = "database_path"
	keyGoogleClientID     = "google_client_id"
	keyGoogleClientSecret = "google_client_secret"
	keyGoogleRedirectURI  = "google_redirect_uri"
	keyJWTSecret          = "jwt_secret"
	keyJWTExpiresIn       = "jwt_expires_in"
	keyGeminiAPIKey       = "gemini_api_key"
	keyAIModel            = "ai_model"
	keyWebURL             = "web_url"
	keyIOSAppScheme       = "ios_app_scheme"
	keyLogLevel           = "log_level"
	keySyncInterval       = "sync_interval"
	keySyncConcurrency    = "sync_concurrency"
	keyPrepLeadTime       = "prep_lead_time"
	keyWebhookURL         = "webhook_url"
	keyWebhookToken       = "webhook_token"
	keyCalDAVEndpoint     = "caldav_endpoint"
	keyCalDAVUsername     = "caldav_username"
	keyCalDAVPassword     = "caldav_password"
	keyCalDAVCalendar     = "caldav_calendar"
)

// Config holds every runtime setting.
type Config struct {
	Port         int
	DatabasePath string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	JWTSecret string
	JWTTTL    time.Duration

	// GeminiAPIKey is empty when talking points should use the static generator.
	GeminiAPIKey string
	AIModel      string

	WebURL       string
	IOSAppScheme string
	LogLevel     string

	SyncInterval    time.Duration
	SyncConcurrency int
	PrepLeadTime    time.Duration

	WebhookURL   string
	WebhookToken string

	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string
}

func defaults(v *viper.Viper) {
	v.SetDefault(keyPort, 4000)
	v.SetDefault(keyDatabasePath, "readi.db")
	v.SetDefault(keyGoogleRedirectURI, "http://localhost:4000/api/v1/auth/google/callback")
	v.SetDefault(keyJWTExpiresIn, "7d")
	v.SetDefault(keyAIModel, "gemini-2.0-flash")
	v.SetDefault(keyWebURL, "http://localhost:3000")
	v.SetDefault(keyIOSAppScheme, "readi://")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keySyncInterval, "0s")
	v.SetDefault(keySyncConcurrency, 4)
	v.SetDefault(keyPrepLeadTime, "24h")
}

// Load reads the environment and, when configFile is set, that file.
// Environment variables take precedence over file values.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	if err := v.BindEnv(keyGeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	ttl, err := ParseTTL(v.GetString(keyJWTExpiresIn))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(keyJWTExpiresIn), err)
	}
	durations := map[string]time.Duration{}
	for _, key := range []string{keySyncInterval, keyPrepLeadTime} {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
		}
		durations[key] = d
	}

	return &Config{
		Port:               v.GetInt(keyPort),
		DatabasePath:       v.GetString(keyDatabasePath),
		GoogleClientID:     v.GetString(keyGoogleClientID),
		GoogleClientSecret: v.GetString(keyGoogleClientSecret),
		GoogleRedirectURI:  v.GetString(keyGoogleRedirectURI),
		JWTSecret:          v.GetString(keyJWTSecret),
		JWTTTL:             ttl,
		GeminiAPIKey:       v.GetString(keyGeminiAPIKey),
		AIModel:            v.GetString(keyAIModel),
		WebURL:             v.GetString(keyWebURL),
		IOSAppScheme:       v.GetString(keyIOSAppScheme),
		LogLevel:           v.GetString(keyLogLevel),
		SyncInterval:       durations[keySyncInterval],
		SyncConcurrency:    v.GetInt(keySyncConcurrency),
		PrepLeadTime:       durations[keyPrepLeadTime],
		WebhookURL:         v.GetString(keyWebhookURL),
		WebhookToken:       v.GetString(keyWebhookToken),
		CalDAVEndpoint:     v.GetString(keyCalDAVEndpoint),
		CalDAVUsername:     v.GetString(keyCalDAVUsername),
		CalDAVPassword:     v.GetString(keyCalDAVPassword),
		CalDAVCalendar:     v.GetString(keyCalDAVCalendar),
	}, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH must not be empty"))
	}
	if c.SyncConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", c.SyncConcurrency))
	}
	if c.SyncInterval < 0 || c.PrepLeadTime < 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL and PREP_LEAD_TIME must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateAuth checks the settings of commands that issue API tokens.
func (c *Config) ValidateAuth() error {
	if len(c.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength)
	}
	return nil
}

// ValidateCalDAV checks the settings of the publish command.
func (c *Config) ValidateCalDAV() error {
	if c.CalDAVEndpoint == "" || c.CalDAVUsername == "" || c.CalDAVPassword == "" {
		return errors.New("CALDAV_ENDPOINT, CALDAV_USERNAME and CALDAV_PASSWORD must be set")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// ParseTTL accepts a Go duration or a whole number of days such as "7d".
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
