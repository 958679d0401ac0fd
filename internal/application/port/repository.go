package port

import (
	"context"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// RequestRepository persists reimbursement requests. Owner-scoped lookups
// return nil, nil when the record is missing or owned by someone else.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.ReimbursementRequest) error
	GetByID(ctx context.Context, id int64) (*entity.ReimbursementRequest, error)
	FindOwnedBy(ctx context.Context, id, userID int64) (*entity.ReimbursementRequest, error)
	ListOwnedBy(ctx context.Context, userID int64) ([]*entity.ReimbursementRequest, error)
	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error)
	Update(ctx context.Context, req *entity.ReimbursementRequest) error
	Delete(ctx context.Context, id int64) error
	// ClearInvoice drops the reference only while it still equals key
	ClearInvoice(ctx context.Context, id int64, key string, modifiedAt time.Time) error
	// ReferencedInvoices returns every non-empty invoice key currently in use
	ReferencedInvoices(ctx context.Context) (map[string]bool, error)
}

// HistoryRepository persists the lifecycle audit trail
type HistoryRepository interface {
	Create(ctx context.Context, h *entity.RequestHistory) error
	ListByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error)
}

// NoticeRepository persists system notices
type NoticeRepository interface {
	Create(ctx context.Context, n *entity.Notice) error
	GetByID(ctx context.Context, id int64) (*entity.Notice, error)
	ListActive(ctx context.Context) ([]*entity.Notice, error)
	ListAll(ctx context.Context) ([]*entity.Notice, error)
	Update(ctx context.Context, n *entity.Notice) error
	Delete(ctx context.Context, id int64) error
}

// LedgerRepository persists account book entries
type LedgerRepository interface {
	Create(ctx context.Context, e *entity.LedgerEntry) error
	GetByID(ctx context.Context, id int64) (*entity.LedgerEntry, error)
	GetByRequestID(ctx context.Context, requestID int64) (*entity.LedgerEntry, error)
	// List returns entries ordered by entry_date descending; ids narrows the
	// result when non-empty
	List(ctx context.Context, ids []int64) ([]*entity.LedgerEntry, error)
	Update(ctx context.Context, e *entity.LedgerEntry) error
	Delete(ctx context.Context, id int64) error
}

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	UpdateFlags(ctx context.Context, id int64, isStaff, isActive bool) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
