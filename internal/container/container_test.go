package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "test.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "media")
	cfg.Storage.SweepInterval = 0
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Lifecycle.RequireInvoiceOnCreate = false
	return cfg
}

func TestNewContainer_Validates(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Lifecycle.EditPolicy = "sometimes"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.True(t, health.Components["dispatcher"].Healthy)
	assert.Contains(t, health.Components["dispatcher"].Message, "handlers:")
	assert.NotContains(t, health.Components, "orphan_sweeper", "sweeper disabled")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
}

func TestContainer_ApprovalIsBooked(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Close() })

	svc := c.Services()
	owner, err := svc.Auth.Register(ctx, service.RegisterInput{Username: "zhangsan", Password: "secret123", RealName: "张三"})
	require.NoError(t, err)
	admin, err := svc.Auth.CreateAdmin(ctx, service.RegisterInput{Username: "boss", Password: "secret123"}, false)
	require.NoError(t, err)

	req, err := svc.Lifecycle.Create(ctx, owner.ID, lifecycle.CreateInput{
		RealName: "张三",
		Reason:   "taxi",
		Amount:   decimal.RequireFromString("88.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, req.Status)

	_, err = svc.Lifecycle.Approve(ctx, admin.ID, req.ID)
	require.NoError(t, err)

	entries, err := svc.Ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.EntryTypeReimbursement, entries[0].EntryType)
	assert.True(t, decimal.RequireFromString("88.50").Equal(entries[0].Amount))
	require.NotNil(t, entries[0].RequestID)
	assert.Equal(t, req.ID, *entries[0].RequestID)

	balance, err := svc.Ledger.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.LevelWarning, balance.Level)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("a", 1, 2, "skipped", "dangling")
	require.Len(t, fields, 1)
	assert.Equal(t, "a", fields[0].Key)
}
