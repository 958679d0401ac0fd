package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReimbursementRequest is an expense claim submitted by a user
type ReimbursementRequest struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	Username         string          `json:"user"`
	RealName         string          `json:"real_name"`
	Reason           string          `json:"reason"`
	Amount           decimal.Decimal `json:"amount"`
	InvoicePDF       string          `json:"invoice_pdf"`
	Remarks          string          `json:"remarks"`
	Status           string          `json:"status"`
	RejectionReason  string          `json:"rejection_reason"`
	SubmissionDate   time.Time       `json:"submission_date"`
	LastModifiedDate time.Time       `json:"last_modified_date"`
}

// HasInvoice reports whether the request currently references a blob
func (r *ReimbursementRequest) HasInvoice() bool {
	return r.InvoicePDF != ""
}

// IsApproved reports whether the request passed review
func (r *ReimbursementRequest) IsApproved() bool {
	return r.Status == StatusApproved
}

// RequestFilter narrows administrative listings
type RequestFilter struct {
	Status string
	Search string // matches real_name, reason or username
	IDs    []int64
}

// RequestHistory is one audit record of a lifecycle action
type RequestHistory struct {
	ID             int64     `json:"id"`
	RequestID      int64     `json:"request_id"`
	ActorUserID    int64     `json:"actor_user_id"`
	Action         string    `json:"action"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
