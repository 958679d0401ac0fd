// Package container provides dependency injection and lifecycle management
// for the reimbursement tracker.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
)

// Config holds all configuration for the Container.
type Config struct {
	Database  DatabaseConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Lifecycle LifecycleConfig
	Ledger    LedgerConfig
	Lark      LarkConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StorageConfig holds blob storage and housekeeping settings.
type StorageConfig struct {
	// BaseDir is the root directory for invoices and exports
	BaseDir string

	// MediaURL prefixes blob keys in API responses
	MediaURL string

	MaxUploadBytes int64

	// Orphan sweeper; a zero interval disables it
	SweepInterval   time.Duration
	SweepGrace      time.Duration
	ExportRetention time.Duration

	// ReportFont is the font used in generated spreadsheets
	ReportFont string
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// LifecycleConfig holds request lifecycle rules.
type LifecycleConfig struct {
	EditPolicy             string
	RequireInvoiceOnCreate bool
	RequirePositiveAmount  bool
	TimeZone               string
}

// LedgerConfig holds account book settings.
type LedgerConfig struct {
	// AutoRecordApproved books an entry for every approved request
	AutoRecordApproved bool
}

// LarkConfig holds Lark API settings. Review notifications are disabled
// unless AppID, AppSecret and ReviewChatID are all set.
type LarkConfig struct {
	AppID        string
	AppSecret    string
	ReviewChatID string
	AdminURL     string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/reimbursement.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Storage: StorageConfig{
			BaseDir:         "media",
			MediaURL:        "/media/",
			MaxUploadBytes:  10 << 20,
			SweepInterval:   time.Hour,
			SweepGrace:      24 * time.Hour,
			ExportRetention: 7 * 24 * time.Hour,
			ReportFont:      "SimSun",
		},
		Auth: AuthConfig{
			AccessTTL:  5 * time.Minute,
			RefreshTTL: 24 * time.Hour,
			BcryptCost: 10,
		},
		Lifecycle: LifecycleConfig{
			EditPolicy:             string(lifecycle.EditPolicyNonApproved),
			RequireInvoiceOnCreate: true,
			RequirePositiveAmount:  true,
		},
		Ledger: LedgerConfig{AutoRecordApproved: true},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if _, err := lifecycle.ParseEditPolicy(c.Lifecycle.EditPolicy); err != nil {
		return err
	}
	if _, err := lifecycle.ParseLocation(c.Lifecycle.TimeZone); err != nil {
		return err
	}
	return nil
}
