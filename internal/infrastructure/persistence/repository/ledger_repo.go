package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
)

// LedgerRepository implements port.LedgerRepository
type LedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB, logger *zap.Logger) *LedgerRepository {
	return &LedgerRepository{db: db, logger: logger}
}

const ledgerSelect = `
	SELECT id, entry_date, real_name, reason, amount, entry_type, remarks,
		request_id, created_by, created_at
	FROM account_book_entries`

func (r *LedgerRepository) Create(ctx context.Context, e *entity.LedgerEntry) error {
	query := `
		INSERT INTO account_book_entries (
			entry_date, real_name, reason, amount, entry_type, remarks,
			request_id, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		e.EntryDate.UTC(),
		e.RealName,
		e.Reason,
		e.Amount.StringFixed(2),
		e.EntryType,
		e.Remarks,
		nullableID(e.RequestID),
		e.CreatedBy,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry", zap.Error(err))
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id int64) (*entity.LedgerEntry, error) {
	return r.getOne(ctx, ledgerSelect+` WHERE id = ?`, id)
}

// GetByRequestID returns the entry derived from a request, if any
func (r *LedgerRepository) GetByRequestID(ctx context.Context, requestID int64) (*entity.LedgerEntry, error) {
	return r.getOne(ctx, ledgerSelect+` WHERE request_id = ?`, requestID)
}

func (r *LedgerRepository) List(ctx context.Context, ids []int64) ([]*entity.LedgerEntry, error) {
	query := ledgerSelect
	args := make([]interface{}, 0, len(ids))
	if len(ids) > 0 {
		query += ` WHERE id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY entry_date DESC, id DESC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *LedgerRepository) Update(ctx context.Context, e *entity.LedgerEntry) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE account_book_entries
		SET entry_date = ?, real_name = ?, reason = ?, amount = ?, entry_type = ?, remarks = ?
		WHERE id = ?`,
		e.EntryDate.UTC(), e.RealName, e.Reason, e.Amount.StringFixed(2), e.EntryType, e.Remarks, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}
	return requireAffected(result, "ledger entry", e.ID)
}

func (r *LedgerRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM account_book_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ledger entry: %w", err)
	}
	return requireAffected(result, "ledger entry", id)
}

func (r *LedgerRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.LedgerEntry, error) {
	e, err := scanLedgerEntry(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

func scanLedgerEntry(s scanner) (*entity.LedgerEntry, error) {
	var (
		e         entity.LedgerEntry
		requestID sql.NullInt64
	)
	err := s.Scan(
		&e.ID,
		&e.EntryDate,
		&e.RealName,
		&e.Reason,
		&e.Amount,
		&e.EntryType,
		&e.Remarks,
		&requestID,
		&e.CreatedBy,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if requestID.Valid {
		id := requestID.Int64
		e.RequestID = &id
	}
	return &e, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)
