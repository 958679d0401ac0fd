package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/reimbursement-tracker/pkg/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations(context.Background()))
	return db.DB
}

func createUser(t *testing.T, db *sql.DB, username string) *entity.User {
	t.Helper()
	u := &entity.User{
		Username:     username,
		PasswordHash: "x",
		IsActive:     true,
		DateJoined:   time.Now(),
	}
	require.NoError(t, NewUserRepository(db, zap.NewNop()).Create(context.Background(), u))
	return u
}

func newRequest(userID int64, realName, reason, amount string, at time.Time) *entity.ReimbursementRequest {
	return &entity.ReimbursementRequest{
		UserID:           userID,
		RealName:         realName,
		Reason:           reason,
		Amount:           decimal.RequireFromString(amount),
		InvoicePDF:       "invoices/" + reason + ".pdf",
		Status:           entity.StatusPending,
		SubmissionDate:   at,
		LastModifiedDate: at,
	}
}

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")

	req := newRequest(alice.ID, "张三", "taxi", "12.50", time.Now())
	require.NoError(t, repo.Create(ctx, req))
	require.NotZero(t, req.ID)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "张三", got.RealName)
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.Amount))
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.WithinDuration(t, req.SubmissionDate, got.SubmissionDate, time.Millisecond)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRequestRepository_OwnerScope(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	older := newRequest(alice.ID, "A", "older", "1", base)
	newer := newRequest(alice.ID, "A", "newer", "2", base.Add(time.Hour))
	other := newRequest(bob.ID, "B", "other", "3", base)
	for _, r := range []*entity.ReimbursementRequest{older, newer, other} {
		require.NoError(t, repo.Create(ctx, r))
	}

	owned, err := repo.FindOwnedBy(ctx, older.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, owned)

	notOwned, err := repo.FindOwnedBy(ctx, other.ID, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, notOwned)

	list, err := repo.ListOwnedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestRequestRepository_ListFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	now := time.Now()
	a := newRequest(alice.ID, "王五", "hotel", "100", now)
	b := newRequest(bob.ID, "赵六", "train", "50", now)
	b.Status = entity.StatusApproved
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	approved, err := repo.List(ctx, entity.RequestFilter{Status: entity.StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, b.ID, approved[0].ID)

	byUser, err := repo.List(ctx, entity.RequestFilter{Search: "ali"})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, a.ID, byUser[0].ID)

	byName, err := repo.List(ctx, entity.RequestFilter{Search: "赵"})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byIDs, err := repo.List(ctx, entity.RequestFilter{IDs: []int64{a.ID, b.ID, 404}})
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)
}

func TestRequestRepository_UpdateDeleteClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")

	req := newRequest(alice.ID, "A", "meal", "20", time.Now())
	require.NoError(t, repo.Create(ctx, req))

	req.Status = entity.StatusRejected
	req.RejectionReason = "missing stamp"
	require.NoError(t, repo.Update(ctx, req))

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "missing stamp", got.RejectionReason)

	keys, err := repo.ReferencedInvoices(ctx)
	require.NoError(t, err)
	assert.True(t, keys["invoices/meal.pdf"])

	assert.ErrorIs(t, repo.ClearInvoice(ctx, req.ID, "invoices/other.pdf", time.Now()), entity.ErrInvoiceChanged)
	got, err = repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "invoices/meal.pdf", got.InvoicePDF, "replaced reference is kept")

	require.NoError(t, repo.ClearInvoice(ctx, req.ID, "invoices/meal.pdf", time.Now()))
	got, err = repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, got.InvoicePDF)
	assert.Equal(t, entity.StatusRejected, got.Status)

	require.NoError(t, repo.Delete(ctx, req.ID))
	assert.ErrorIs(t, repo.Delete(ctx, req.ID), entity.ErrNotFound)
	assert.ErrorIs(t, repo.ClearInvoice(ctx, req.ID, "invoices/meal.pdf", time.Now()), entity.ErrNotFound)
}

func TestRequestRepository_RejectionReasonConstraint(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")

	req := newRequest(alice.ID, "A", "meal", "20", time.Now())
	req.RejectionReason = "stale"
	assert.Error(t, repo.Create(ctx, req))
}

func TestRequestRepository_JoinsTransaction(t *testing.T) {
	db := newTestDB(t)
	repo := NewRequestRepository(db, zap.NewNop())
	alice := createUser(t, db, "alice")
	tx := sqlite.NewTxManager(db, zap.NewNop())

	err := tx.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := repo.Create(ctx, newRequest(alice.ID, "A", "rolled", "1", time.Now())); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	list, err := repo.ListOwnedBy(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHistoryRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	req := newRequest(alice.ID, "A", "meal", "20", time.Now())
	require.NoError(t, NewRequestRepository(db, zap.NewNop()).Create(ctx, req))

	repo := NewHistoryRepository(db, zap.NewNop())
	now := time.Now()
	require.NoError(t, repo.Create(ctx, &entity.RequestHistory{
		RequestID: req.ID, ActorUserID: alice.ID, Action: entity.ActionCreate,
		NewStatus: entity.StatusPending, CreatedAt: now,
	}))
	require.NoError(t, repo.Create(ctx, &entity.RequestHistory{
		RequestID: req.ID, ActorUserID: alice.ID, Action: entity.ActionReject,
		PreviousStatus: entity.StatusPending, NewStatus: entity.StatusRejected,
		Note: "blurry", CreatedAt: now.Add(time.Second),
	}))

	records, err := repo.ListByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.ActionCreate, records[0].Action)
	assert.Equal(t, "blurry", records[1].Note)
}

func TestNoticeRepository_Ordering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewNoticeRepository(db, zap.NewNop())

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	notices := []*entity.Notice{
		{Title: "low-old", IsActive: true, Priority: 0, CreatedAt: base},
		{Title: "low-new", IsActive: true, Priority: 0, CreatedAt: base.Add(time.Hour)},
		{Title: "high", IsActive: true, Priority: 5, CreatedAt: base},
		{Title: "hidden", IsActive: false, Priority: 9, CreatedAt: base},
	}
	for _, n := range notices {
		n.UpdatedAt = n.CreatedAt
		require.NoError(t, repo.Create(ctx, n))
	}

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	titles := make([]string, 0, len(active))
	for _, n := range active {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"high", "low-new", "low-old"}, titles)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	hidden := notices[3]
	hidden.IsActive = true
	require.NoError(t, repo.Update(ctx, hidden))
	got, err := repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, repo.Delete(ctx, hidden.ID))
	got, err = repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedgerRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	admin := createUser(t, db, "admin")
	req := newRequest(admin.ID, "A", "meal", "20", time.Now())
	require.NoError(t, NewRequestRepository(db, zap.NewNop()).Create(ctx, req))

	repo := NewLedgerRepository(db, zap.NewNop())
	manual := &entity.LedgerEntry{
		EntryDate: time.Now().Add(-time.Hour), RealName: "公司", Reason: "拨款",
		Amount: decimal.NewFromInt(1000), EntryType: entity.EntryTypeIncome,
		CreatedBy: admin.ID, CreatedAt: time.Now(),
	}
	linked := &entity.LedgerEntry{
		EntryDate: time.Now(), RealName: "A", Reason: "meal",
		Amount: decimal.NewFromInt(20), EntryType: entity.EntryTypeReimbursement,
		RequestID: &req.ID, CreatedBy: admin.ID, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(ctx, manual))
	require.NoError(t, repo.Create(ctx, linked))

	got, err := repo.GetByRequestID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, linked.ID, got.ID)
	assert.True(t, got.IsLinked())

	entries, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, linked.ID, entries[0].ID)

	// deleting the request unlinks the entry instead of removing it
	require.NoError(t, NewRequestRepository(db, zap.NewNop()).Delete(ctx, req.ID))
	got, err = repo.GetByID(ctx, linked.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLinked())

	manual.Remarks = "Q1"
	require.NoError(t, repo.Update(ctx, manual))
	selected, err := repo.List(ctx, []int64{manual.ID})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "Q1", selected[0].Remarks)

	require.NoError(t, repo.Delete(ctx, manual.ID))
	assert.ErrorIs(t, repo.Delete(ctx, manual.ID), entity.ErrNotFound)
}

func TestUserRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db, zap.NewNop())
	u := createUser(t, db, "carol")

	dup := &entity.User{Username: "carol", PasswordHash: "y", DateJoined: time.Now()}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.ErrorIs(t, err, entity.ErrValidation)

	got, err := repo.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.IsStaff)

	require.NoError(t, repo.UpdateFlags(ctx, u.ID, true, false))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsStaff)
	assert.False(t, got.IsActive)

	users, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	none, err := repo.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, none)
}
