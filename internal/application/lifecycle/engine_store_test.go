package lifecycle

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/repository"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/storage"
	"github.com/garyjia/reimbursement-tracker/pkg/database"
)

// storeHarness runs the engine over SQLite and the local blob store
type storeHarness struct {
	engine   Engine
	requests *repository.RequestRepository
	blobs    *storage.LocalBlobStore
	userID   int64
}

func newStoreHarness(t *testing.T) *storeHarness {
	t.Helper()
	dir := t.TempDir()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(dir, "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background()))

	user := &entity.User{Username: "zhangsan", PasswordHash: "x", IsActive: true, DateJoined: time.Now()}
	require.NoError(t, repository.NewUserRepository(db.DB, logger).Create(context.Background(), user))

	h := &storeHarness{
		requests: repository.NewRequestRepository(db.DB, logger),
		blobs:    storage.NewLocalBlobStore(filepath.Join(dir, "media"), "/media/", logger),
		userID:   user.ID,
	}
	h.engine = NewEngine(
		h.requests,
		repository.NewHistoryRepository(db.DB, logger),
		sqlite.NewTxManager(db.DB, logger),
		h.blobs,
		storage.NewInvoiceNamer(),
		fakeInspector{},
		nopLogger{},
	)
	return h
}

func (h *storeHarness) submit(t *testing.T, reason string) *entity.ReimbursementRequest {
	t.Helper()
	req, err := h.engine.Create(context.Background(), h.userID, CreateInput{
		RealName: "张三",
		Reason:   reason,
		Amount:   decimal.RequireFromString("20.00"),
		Invoice:  &Upload{Filename: "a.pdf", Content: pdf},
	})
	require.NoError(t, err)
	return req
}

func (h *storeHarness) count(t *testing.T) int {
	t.Helper()
	all, err := h.requests.List(context.Background(), entity.RequestFilter{})
	require.NoError(t, err)
	return len(all)
}

func TestBatchActions_EmptySelectionTouchesNothing(t *testing.T) {
	h := newStoreHarness(t)
	ctx := context.Background()
	first := h.submit(t, "taxi")
	second := h.submit(t, "meal")

	for _, ids := range [][]int64{nil, {}} {
		_, err := h.engine.DeleteUnapproved(ctx, admin, ids)
		assert.ErrorIs(t, err, entity.ErrValidation)

		_, err = h.engine.DeleteFiles(ctx, admin, ids)
		assert.ErrorIs(t, err, entity.ErrValidation)
	}

	assert.Equal(t, 2, h.count(t))
	for _, req := range []*entity.ReimbursementRequest{first, second} {
		got, err := h.requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req.InvoicePDF, got.InvoicePDF)
		assert.True(t, h.blobs.Exists(ctx, req.InvoicePDF))
	}
}

func TestBatchActions_UnknownIDsAreReported(t *testing.T) {
	h := newStoreHarness(t)
	ctx := context.Background()
	kept := h.submit(t, "taxi")

	result, err := h.engine.DeleteUnapproved(ctx, admin, []int64{404, 405})
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, int64(404), result.Failures[0].ID)

	result, err = h.engine.DeleteFiles(ctx, admin, []int64{404})
	require.NoError(t, err)
	assert.Zero(t, result.Succeeded)
	require.Len(t, result.Failures, 1)

	assert.Equal(t, 1, h.count(t))
	assert.True(t, h.blobs.Exists(ctx, kept.InvoicePDF))
}

func TestDeleteUnapproved_RereadsStatus(t *testing.T) {
	h := newStoreHarness(t)
	ctx := context.Background()
	pending := h.submit(t, "taxi")
	approved := h.submit(t, "meal")
	_, err := h.engine.Approve(ctx, admin, approved.ID)
	require.NoError(t, err)

	result, err := h.engine.DeleteUnapproved(ctx, admin, []int64{pending.ID, approved.ID, pending.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failures)

	got, err := h.requests.GetByID(ctx, approved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, h.blobs.Exists(ctx, approved.InvoicePDF))
	assert.False(t, h.blobs.Exists(ctx, pending.InvoicePDF))
}

func TestDeleteFiles_ClearsStoredReference(t *testing.T) {
	h := newStoreHarness(t)
	ctx := context.Background()
	req := h.submit(t, "taxi")

	result, err := h.engine.DeleteFiles(ctx, admin, []int64{req.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	got, err := h.requests.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.InvoicePDF)
	assert.False(t, h.blobs.Exists(ctx, req.InvoicePDF))

	result, err = h.engine.DeleteFiles(ctx, admin, []int64{req.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
}
