package config

import (
	"github.com/garyjia/reimbursement-tracker/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Storage: container.StorageConfig{
			BaseDir:         c.Storage.BaseDir,
			MediaURL:        c.Storage.MediaURL,
			MaxUploadBytes:  c.Storage.MaxUploadBytes,
			SweepInterval:   c.Storage.SweepInterval,
			SweepGrace:      c.Storage.SweepGrace,
			ExportRetention: c.Storage.ExportRetention,
			ReportFont:      c.Storage.ReportFont,
		},
		Auth: container.AuthConfig{
			JWTSecret:  c.Auth.JWTSecret,
			AccessTTL:  c.Auth.AccessTTL,
			RefreshTTL: c.Auth.RefreshTTL,
			BcryptCost: c.Auth.BcryptCost,
		},
		Lifecycle: container.LifecycleConfig{
			EditPolicy:             c.Lifecycle.EditPolicy,
			RequireInvoiceOnCreate: c.Lifecycle.RequireInvoiceOnCreate,
			RequirePositiveAmount:  c.Lifecycle.RequirePositiveAmount,
			TimeZone:               c.Lifecycle.TimeZone,
		},
		Ledger: container.LedgerConfig{AutoRecordApproved: c.Ledger.AutoRecordApproved},
		Lark: container.LarkConfig{
			AppID:        c.Lark.AppID,
			AppSecret:    c.Lark.AppSecret,
			ReviewChatID: c.Lark.ReviewChatID,
			AdminURL:     c.Lark.AdminURL,
		},
	}
}
