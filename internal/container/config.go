// Package container provides dependency injection and lifecycle management
// for the billing engine following Clean Architecture principles.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Xero     XeroConfig
	Billing  BillingConfig
	Lark     LarkConfig
	Auth     AuthConfig
	Server   ServerConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// BusyTimeout is how long a write waits for the SQLite write lock. A
	// generation run holds that lock across its Xero calls, so it must be at
	// least Xero.Timeout.
	BusyTimeout time.Duration
}

// XeroConfig holds accounting API settings.
type XeroConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	TokenURL     string

	// Timeout bounds each remote call
	Timeout time.Duration

	RequestsPerMinute int
	Burst             int

	// RefreshWindow is how long before expiry a token is refreshed
	RefreshWindow time.Duration
}

// BillingConfig holds invoice generation settings.
type BillingConfig struct {
	// CatalogItemCode is the labor item every line references
	CatalogItemCode string

	InvoiceStatus entity.InvoiceStatus
}

// LarkConfig holds reconciliation alert settings.
type LarkConfig struct {
	AppID       string
	AppSecret   string
	AlertChatID string
}

// AuthConfig holds operator token settings.
type AuthConfig struct {
	// JWTSecret enables bearer authentication when set
	JWTSecret     string
	Issuer        string
	TokenDuration time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	TokenRefreshEnabled  bool
	TokenRefreshInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/billing.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			BusyTimeout:     2 * time.Minute,
		},
		Xero: XeroConfig{
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			Burst:             5,
			RefreshWindow:     5 * time.Minute,
		},
		Billing: BillingConfig{
			CatalogItemCode: "LABOR",
			InvoiceStatus:   entity.InvoiceStatusDraft,
		},
		Auth: AuthConfig{
			Issuer:        "msp-billing",
			TokenDuration: 12 * time.Hour,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Worker: WorkerConfig{
			TokenRefreshEnabled:  true,
			TokenRefreshInterval: 5 * time.Minute,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.BusyTimeout > 0 && c.Database.BusyTimeout < c.Xero.Timeout {
		return fmt.Errorf("database.busy_timeout (%s) must be at least xero.timeout (%s)", c.Database.BusyTimeout, c.Xero.Timeout)
	}
	if c.Xero.ClientID == "" || c.Xero.ClientSecret == "" {
		return fmt.Errorf("xero.client_id and xero.client_secret are required")
	}
	if c.Billing.CatalogItemCode == "" {
		return fmt.Errorf("billing.catalog_item_code is required")
	}
	if !c.Billing.InvoiceStatus.IsValid() {
		return fmt.Errorf("billing.invoice_status %q is not DRAFT or AUTHORISED", c.Billing.InvoiceStatus)
	}
	return nil
}
