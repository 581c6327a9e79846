package config

import (
	"github.com/garyjia/msp-billing/internal/container"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			BusyTimeout:     c.Database.BusyTimeout,
		},
		Xero: container.XeroConfig{
			ClientID:          c.Xero.ClientID,
			ClientSecret:      c.Xero.ClientSecret,
			APIBaseURL:        c.Xero.APIBaseURL,
			TokenURL:          c.Xero.TokenURL,
			Timeout:           c.Xero.Timeout,
			RequestsPerMinute: c.Xero.RequestsPerMinute,
			Burst:             c.Xero.Burst,
			RefreshWindow:     c.Xero.RefreshWindow,
		},
		Billing: container.BillingConfig{
			CatalogItemCode: c.Billing.CatalogItemCode,
			InvoiceStatus:   entity.InvoiceStatus(c.Billing.InvoiceStatus),
		},
		Lark: container.LarkConfig{
			AppID:       c.Lark.AppID,
			AppSecret:   c.Lark.AppSecret,
			AlertChatID: c.Lark.AlertChatID,
		},
		Auth: container.AuthConfig{
			JWTSecret:     c.Auth.JWTSecret,
			Issuer:        c.Auth.Issuer,
			TokenDuration: c.Auth.TokenDuration,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Worker: container.WorkerConfig{
			TokenRefreshEnabled:  c.Worker.TokenRefreshEnabled,
			TokenRefreshInterval: c.Worker.TokenRefreshInterval,
		},
	}
}
