package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server
	Port           string
	Env            string
	FrontendURL    string
	MediaRoot      string
	AllowedOrigins []string
	ServiceAPIKey  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Calendar used to bucket requests and budgets into months
	TimeZone string
	Location *time.Location

	Email  EmailConfig
	Notify NotifyConfig
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NotifyConfig tunes the notification outbox dispatcher.
type NotifyConfig struct {
	PollInterval time.Duration
	Workers      int
	BatchSize    int
	MaxAttempts  int
	RetryDelay   time.Duration
}

var appConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("media_root", "media")
	v.SetDefault("cors_allowed_origins", "*")
	v.SetDefault("service_api_key", "")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "compras")
	v.SetDefault("db_password", "compras")
	v.SetDefault("db_name", "compras")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("jwt_secret", "fallback-secret-key-for-dev-only")
	v.SetDefault("jwt_access_ttl", "8h")
	v.SetDefault("jwt_refresh_ttl", "168h")
	v.SetDefault("time_zone", "America/Mexico_City")

	v.SetDefault("email_enabled", false)
	v.SetDefault("smtp_host", "smtp.gmail.com")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("email_from", "compras@autodis.mx")

	v.SetDefault("notify_poll_interval", "10s")
	v.SetDefault("notify_workers", 2)
	v.SetDefault("notify_batch_size", 20)
	v.SetDefault("notify_max_attempts", 3)
	v.SetDefault("notify_retry_delay", "60s")
}

// Load reads .env, an optional config.yaml and the process environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetString("port"),
		Env:           v.GetString("env"),
		FrontendURL:   strings.TrimRight(v.GetString("frontend_url"), "/"),
		MediaRoot:     v.GetString("media_root"),
		ServiceAPIKey: v.GetString("service_api_key"),

		DBHost:     v.GetString("db_host"),
		DBPort:     v.GetString("db_port"),
		DBUser:     v.GetString("db_user"),
		DBPassword: v.GetString("db_password"),
		DBName:     v.GetString("db_name"),
		DBSSLMode:  v.GetString("db_sslmode"),

		JWTSecret: v.GetString("jwt_secret"),
		TimeZone:  v.GetString("time_zone"),

		Email: EmailConfig{
			Enabled:  v.GetBool("email_enabled"),
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			Username: v.GetString("smtp_user"),
			Password: v.GetString("smtp_password"),
			From:     v.GetString("email_from"),
		},
		Notify: NotifyConfig{
			Workers:     v.GetInt("notify_workers"),
			BatchSize:   v.GetInt("notify_batch_size"),
			MaxAttempts: v.GetInt("notify_max_attempts"),
		},
	}

	for _, origin := range strings.Split(v.GetString("cors_allowed_origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	cfg.AccessTokenTTL = parseDuration(v, "jwt_access_ttl", 8*time.Hour)
	cfg.RefreshTokenTTL = parseDuration(v, "jwt_refresh_ttl", 7*24*time.Hour)
	cfg.Notify.PollInterval = parseDuration(v, "notify_poll_interval", 10*time.Second)
	cfg.Notify.RetryDelay = parseDuration(v, "notify_retry_delay", time.Minute)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	appConfig = cfg
	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// parseDuration reads a duration key, falling back when the value is malformed.
func parseDuration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", strings.ToUpper(key), raw, fallback)
		return fallback
	}
	return d
}
