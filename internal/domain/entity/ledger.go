package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one account book line. Amount is always stored positive;
// EntryType decides its sign.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	EntryDate time.Time       `json:"entry_date"`
	RealName  string          `json:"real_name"`
	Reason    string          `json:"reason"`
	Amount    decimal.Decimal `json:"amount"`
	EntryType string          `json:"entry_type"`
	Remarks   string          `json:"remarks"`
	RequestID *int64          `json:"request_id,omitempty"`
	CreatedBy int64           `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsLinked reports whether the entry was derived from a reimbursement request
func (e *LedgerEntry) IsLinked() bool {
	return e.RequestID != nil
}

// SignedAmount is positive for income and negative for everything else
func (e *LedgerEntry) SignedAmount() decimal.Decimal {
	if e.EntryType == EntryTypeIncome {
		return e.Amount
	}
	return e.Amount.Neg()
}
