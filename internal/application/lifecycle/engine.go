package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// EditPolicy decides which states an owner may resubmit from
type EditPolicy string

const (
	// EditPolicyNonApproved lets owners edit pending and rejected requests
	EditPolicyNonApproved EditPolicy = "non_approved"
	// EditPolicyRejectedOnly lets owners edit rejected requests only
	EditPolicyRejectedOnly EditPolicy = "rejected_only"
)

// ParseEditPolicy validates a configured policy name
func ParseEditPolicy(name string) (EditPolicy, error) {
	switch p := EditPolicy(name); p {
	case EditPolicyNonApproved, EditPolicyRejectedOnly:
		return p, nil
	case "":
		return EditPolicyNonApproved, nil
	default:
		return "", fmt.Errorf("unknown edit policy %q", name)
	}
}

// Options tune validation and the edit policy
type Options struct {
	EditPolicy             EditPolicy
	RequireInvoiceOnCreate bool
	RequirePositiveAmount  bool
	// Location dates invoice file names; nil means time.Local
	Location               *time.Location
}

// ParseLocation resolves a configured time zone name. Empty means the
// server's local zone.
func ParseLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// DefaultOptions mirror the shipped configuration
func DefaultOptions() Options {
	return Options{
		EditPolicy:             EditPolicyNonApproved,
		RequireInvoiceOnCreate: true,
		RequirePositiveAmount:  true,
	}
}

// Upload is an invoice file received from a client
type Upload struct {
	Filename string
	Content  []byte
}

// CreateInput is a new submission
type CreateInput struct {
	RealName string
	Reason   string
	Amount   decimal.Decimal
	Remarks  string
	Invoice  *Upload
}

// UpdateInput is a partial resubmission; nil fields are left unchanged
type UpdateInput struct {
	RealName *string
	Reason   *string
	Amount   *decimal.Decimal
	Remarks  *string
	Invoice  *Upload
}

// UpdateResult reports a resubmission. Warnings list best-effort cleanup
// steps that failed after the change was committed.
type UpdateResult struct {
	Request  *entity.ReimbursementRequest `json:"request"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// ItemFailure is one failed item of a batch action
type ItemFailure struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BatchResult summarises a batch action
type BatchResult struct {
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failures  []ItemFailure `json:"failures,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
}

// Engine owns every state change of a reimbursement request together with
// the invoice blob it references
type Engine interface {
	Create(ctx context.Context, userID int64, in CreateInput) (*entity.ReimbursementRequest, error)
	Update(ctx context.Context, userID, id int64, in UpdateInput) (*UpdateResult, error)
	DeleteOwned(ctx context.Context, userID, id int64) error

	Approve(ctx context.Context, adminID, id int64) (*entity.ReimbursementRequest, error)
	Reject(ctx context.Context, adminID, id int64, reason string) (*entity.ReimbursementRequest, error)
	AdminDelete(ctx context.Context, adminID, id int64) error
	DeleteUnapproved(ctx context.Context, adminID int64, ids []int64) (*BatchResult, error)
	DeleteFiles(ctx context.Context, adminID int64, ids []int64) (*BatchResult, error)

	GetOwned(ctx context.Context, userID, id int64) (*entity.ReimbursementRequest, error)
	ListOwned(ctx context.Context, userID int64) ([]*entity.ReimbursementRequest, error)
	Get(ctx context.Context, id int64) (*entity.ReimbursementRequest, error)
	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error)
	History(ctx context.Context, id int64) ([]*entity.RequestHistory, error)
}

// Logger is the logging dependency of the engine
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
