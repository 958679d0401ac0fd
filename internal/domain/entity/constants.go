package entity

// Status constants for ReimbursementRequest
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Ledger entry types
const (
	EntryTypeIncome        = "income"
	EntryTypeExpense       = "expense"
	EntryTypeReimbursement = "reimbursement" // 报销支出, created from approved requests
)

// History action constants for RequestHistory
const (
	ActionCreate     = "CREATE"
	ActionResubmit   = "RESUBMIT"
	ActionApprove    = "APPROVE"
	ActionReject     = "REJECT"
	ActionDeleteFile = "DELETE_FILE"
)

// Field length limits
const (
	MaxRealNameLength    = 100
	MaxReasonLength      = 255
	MaxNoticeTitleLength = 200
	MinPasswordLength    = 6
)

// IsValidStatus reports whether s is one of the request statuses
func IsValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsValidEntryType reports whether t is one of the ledger entry types
func IsValidEntryType(t string) bool {
	switch t {
	case EntryTypeIncome, EntryTypeExpense, EntryTypeReimbursement:
		return true
	}
	return false
}
