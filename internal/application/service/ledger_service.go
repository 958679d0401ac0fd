package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/domain/event"
	"github.com/garyjia/reimbursement-tracker/pkg/utils"
)

// Balance levels
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
)

const msgLinkedReadOnly = "This field is read-only for entries created from a reimbursement request."

// LedgerInput is a ledger create or partial update
type LedgerInput struct {
	EntryDate *time.Time       `json:"entry_date"`
	RealName  *string          `json:"real_name"`
	Reason    *string          `json:"reason"`
	Amount    *decimal.Decimal `json:"amount"`
	EntryType *string          `json:"entry_type"`
	Remarks   *string          `json:"remarks"`
}

// Balance summarises the whole account book
type Balance struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
}

// LedgerService manages the account book
type LedgerService interface {
	List(ctx context.Context) ([]*entity.LedgerEntry, error)
	Get(ctx context.Context, id int64) (*entity.LedgerEntry, error)
	Create(ctx context.Context, actorID int64, in LedgerInput) (*entity.LedgerEntry, error)
	Update(ctx context.Context, id int64, in LedgerInput) (*entity.LedgerEntry, error)
	Delete(ctx context.Context, id int64) error
	Balance(ctx context.Context) (*Balance, error)
	// RecordApproved is an event handler that books an approved request
	RecordApproved(ctx context.Context, evt *event.Event) error
}

type ledgerServiceImpl struct {
	entries port.LedgerRepository
	logger  Logger
	now     func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(entries port.LedgerRepository, logger Logger) LedgerService {
	return &ledgerServiceImpl{entries: entries, logger: logger, now: time.Now}
}

func (s *ledgerServiceImpl) List(ctx context.Context) ([]*entity.LedgerEntry, error) {
	return s.entries.List(ctx, nil)
}

func (s *ledgerServiceImpl) Get(ctx context.Context, id int64) (*entity.LedgerEntry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("ledger entry %d: %w", id, entity.ErrNotFound)
	}
	return e, nil
}

func (s *ledgerServiceImpl) Create(ctx context.Context, actorID int64, in LedgerInput) (*entity.LedgerEntry, error) {
	now := s.now().UTC()
	e := &entity.LedgerEntry{
		EntryDate: now,
		EntryType: entity.EntryTypeExpense,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	applyLedger(e, in)
	if err := validateLedger(e); err != nil {
		return nil, err
	}

	if err := s.entries.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("Ledger entry created", "entry_id", e.ID, "entry_type", e.EntryType, "amount", e.Amount.StringFixed(2))
	return e, nil
}

// Update edits a manual entry. Entries derived from a request accept
// remarks only.
func (s *ledgerServiceImpl) Update(ctx context.Context, id int64, in LedgerInput) (*entity.LedgerEntry, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if e.IsLinked() {
		if err := checkLinkedUnchanged(e, in); err != nil {
			return nil, err
		}
		if in.Remarks != nil {
			e.Remarks = *in.Remarks
		}
	} else {
		applyLedger(e, in)
		if err := validateLedger(e); err != nil {
			return nil, err
		}
	}

	if err := s.entries.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *ledgerServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.entries.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Ledger entry deleted", "entry_id", id)
	return nil
}

// Balance always covers the entire ledger, never a selection
func (s *ledgerServiceImpl) Balance(ctx context.Context) (*Balance, error) {
	all, err := s.entries.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	return ComputeBalance(all), nil
}

// ComputeBalance sums income against expense and reimbursement entries
func ComputeBalance(entries []*entity.LedgerEntry) *Balance {
	b := &Balance{Income: decimal.Zero, Expense: decimal.Zero}
	for _, e := range entries {
		if e.EntryType == entity.EntryTypeIncome {
			b.Income = b.Income.Add(e.Amount)
		} else {
			b.Expense = b.Expense.Add(e.Amount)
		}
	}
	b.Balance = b.Income.Sub(b.Expense)

	b.Level = LevelSuccess
	if b.Balance.IsNegative() {
		b.Level = LevelWarning
	}
	b.Message = fmt.Sprintf("总收入: %s，总支出: %s，余额: %s",
		b.Income.StringFixed(2), b.Expense.StringFixed(2), b.Balance.StringFixed(2))
	return b
}

func (s *ledgerServiceImpl) RecordApproved(ctx context.Context, evt *event.Event) error {
	existing, err := s.entries.GetByRequestID(ctx, evt.RequestID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	amount, err := decimal.NewFromString(evt.GetPayloadString(event.KeyAmount))
	if err != nil {
		return fmt.Errorf("approved request %d has an unreadable amount: %w", evt.RequestID, err)
	}

	requestID := evt.RequestID
	e := &entity.LedgerEntry{
		EntryDate: evt.Timestamp.UTC(),
		RealName:  evt.GetPayloadString(event.KeyRealName),
		Reason:    evt.GetPayloadString(event.KeyReason),
		Amount:    amount.Abs(),
		EntryType: entity.EntryTypeReimbursement,
		RequestID: &requestID,
		CreatedBy: evt.GetPayloadInt(event.KeyActorID),
		CreatedAt: s.now().UTC(),
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return err
	}

	s.logger.Info("Approved request booked", "request_id", requestID, "entry_id", e.ID)
	return nil
}

func applyLedger(e *entity.LedgerEntry, in LedgerInput) {
	if in.EntryDate != nil {
		e.EntryDate = in.EntryDate.UTC()
	}
	if in.RealName != nil {
		e.RealName = strings.TrimSpace(*in.RealName)
	}
	if in.Reason != nil {
		e.Reason = strings.TrimSpace(*in.Reason)
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.EntryType != nil {
		e.EntryType = *in.EntryType
	}
	if in.Remarks != nil {
		e.Remarks = *in.Remarks
	}
}

func validateLedger(e *entity.LedgerEntry) error {
	verr := entity.NewValidationError()
	if err := utils.ValidateLength(e.RealName, entity.MaxRealNameLength, true); err != nil {
		verr.Add("real_name", err.Error())
	}
	if err := utils.ValidateLength(e.Reason, entity.MaxReasonLength, true); err != nil {
		verr.Add("reason", err.Error())
	}
	if err := utils.ValidateAmount(e.Amount, true); err != nil {
		verr.Add("amount", err.Error())
	}
	if !entity.IsValidEntryType(e.EntryType) {
		verr.Add("entry_type", fmt.Sprintf("%q is not a valid choice.", e.EntryType))
	}
	return verr.OrNil()
}

func checkLinkedUnchanged(e *entity.LedgerEntry, in LedgerInput) error {
	verr := entity.NewValidationError()
	if in.EntryDate != nil && !in.EntryDate.Equal(e.EntryDate) {
		verr.Add("entry_date", msgLinkedReadOnly)
	}
	if in.RealName != nil && strings.TrimSpace(*in.RealName) != e.RealName {
		verr.Add("real_name", msgLinkedReadOnly)
	}
	if in.Reason != nil && strings.TrimSpace(*in.Reason) != e.Reason {
		verr.Add("reason", msgLinkedReadOnly)
	}
	if in.Amount != nil && !in.Amount.Equal(e.Amount) {
		verr.Add("amount", msgLinkedReadOnly)
	}
	if in.EntryType != nil && *in.EntryType != e.EntryType {
		verr.Add("entry_type", msgLinkedReadOnly)
	}
	return verr.OrNil()
}
