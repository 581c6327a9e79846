package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Xero     XeroConfig     `mapstructure:"xero"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// XeroConfig holds Xero API configuration
type XeroConfig struct {
	ClientID          string        `mapstructure:"client_id" validate:"required"`
	ClientSecret      string        `mapstructure:"client_secret" validate:"required"`
	APIBaseURL        string        `mapstructure:"api_base_url" validate:"required,url"`
	TokenURL          string        `mapstructure:"token_url" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" validate:"min=1,max=60"`
	Burst             int           `mapstructure:"burst" validate:"min=1"`
	RefreshWindow     time.Duration `mapstructure:"refresh_window"`
}

// BillingConfig holds invoice generation settings
type BillingConfig struct {
	CatalogItemCode string `mapstructure:"catalog_item_code" validate:"required"`
	InvoiceStatus   string `mapstructure:"invoice_status" validate:"oneof=DRAFT AUTHORISED"`
}

// LarkConfig holds Lark alerting configuration. Alerts fall back to the log
// when any field is empty.
type LarkConfig struct {
	AppID       string `mapstructure:"app_id"`
	AppSecret   string `mapstructure:"app_secret"`
	AlertChatID string `mapstructure:"alert_chat_id"`
}

// AuthConfig holds operator token settings. An empty secret disables
// authentication.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	TokenRefreshEnabled  bool          `mapstructure:"token_refresh_enabled"`
	TokenRefreshInterval time.Duration `mapstructure:"token_refresh_interval"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format" validate:"oneof=json console"`
}

// Load loads configuration from file, .env and environment variables.
// A missing config file is not an error; defaults and the environment apply.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/billing.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 2*time.Minute)

	// Xero defaults
	v.SetDefault("xero.api_base_url", "https://api.xero.com/api.xro/2.0")
	v.SetDefault("xero.token_url", "https://identity.xero.com/connect/token")
	v.SetDefault("xero.timeout", 30*time.Second)
	v.SetDefault("xero.requests_per_minute", 60)
	v.SetDefault("xero.burst", 5)
	v.SetDefault("xero.refresh_window", 5*time.Minute)

	// Billing defaults
	v.SetDefault("billing.catalog_item_code", "LABOR")
	v.SetDefault("billing.invoice_status", "DRAFT")

	// Auth defaults
	v.SetDefault("auth.issuer", "msp-billing")
	v.SetDefault("auth.token_duration", 12*time.Hour)

	// Worker defaults
	v.SetDefault("worker.token_refresh_enabled", true)
	v.SetDefault("worker.token_refresh_interval", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds credentials to their conventional environment names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("xero.client_id", "XERO_CLIENT_ID")
	_ = v.BindEnv("xero.client_secret", "XERO_CLIENT_SECRET")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.alert_chat_id", "LARK_ALERT_CHAT_ID")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if c.Worker.TokenRefreshEnabled && c.Worker.TokenRefreshInterval <= 0 {
		return fmt.Errorf("worker.token_refresh_interval must be positive")
	}
	return nil
}
