package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{db: db, logger: logger}
}

const requestColumns = `
	r.id, r.user_id, u.username, r.real_name, r.reason, r.amount,
	r.invoice_pdf, r.remarks, r.status, r.rejection_reason,
	r.submission_date, r.last_modified_date`

const requestFrom = `
	FROM reimbursement_requests r
	JOIN users u ON u.id = r.user_id`

// Create inserts a request and sets its ID
func (r *RequestRepository) Create(ctx context.Context, req *entity.ReimbursementRequest) error {
	query := `
		INSERT INTO reimbursement_requests (
			user_id, real_name, reason, amount, invoice_pdf, remarks,
			status, rejection_reason, submission_date, last_modified_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.exec(ctx).ExecContext(ctx, query,
		req.UserID,
		req.RealName,
		req.Reason,
		req.Amount.StringFixed(2),
		req.InvoicePDF,
		req.Remarks,
		req.Status,
		req.RejectionReason,
		req.SubmissionDate.UTC(),
		req.LastModifiedDate.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves a request regardless of owner
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.ReimbursementRequest, error) {
	query := `SELECT` + requestColumns + requestFrom + ` WHERE r.id = ?`
	return r.getOne(ctx, query, id)
}

// FindOwnedBy retrieves a request only when it belongs to userID
func (r *RequestRepository) FindOwnedBy(ctx context.Context, id, userID int64) (*entity.ReimbursementRequest, error) {
	query := `SELECT` + requestColumns + requestFrom + ` WHERE r.id = ? AND r.user_id = ?`
	return r.getOne(ctx, query, id, userID)
}

// ListOwnedBy returns the user's requests, newest first
func (r *RequestRepository) ListOwnedBy(ctx context.Context, userID int64) ([]*entity.ReimbursementRequest, error) {
	query := `SELECT` + requestColumns + requestFrom + `
		WHERE r.user_id = ?
		ORDER BY r.submission_date DESC, r.id DESC`
	return r.getMany(ctx, query, userID)
}

// List returns requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + q + "%"
		where = append(where, "(r.real_name LIKE ? OR r.reason LIKE ? OR u.username LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(filter.IDs) > 0 {
		where = append(where, "r.id IN ("+placeholders(len(filter.IDs))+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT` + requestColumns + requestFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.submission_date DESC, r.id DESC"

	return r.getMany(ctx, query, args...)
}

// Update writes every mutable column of req
func (r *RequestRepository) Update(ctx context.Context, req *entity.ReimbursementRequest) error {
	query := `
		UPDATE reimbursement_requests
		SET real_name = ?, reason = ?, amount = ?, invoice_pdf = ?, remarks = ?,
			status = ?, rejection_reason = ?, last_modified_date = ?
		WHERE id = ?
	`

	result, err := r.exec(ctx).ExecContext(ctx, query,
		req.RealName,
		req.Reason,
		req.Amount.StringFixed(2),
		req.InvoicePDF,
		req.Remarks,
		req.Status,
		req.RejectionReason,
		req.LastModifiedDate.UTC(),
		req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}
	return requireAffected(result, "request", req.ID)
}

// Delete removes a request row
func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.exec(ctx).ExecContext(ctx, `DELETE FROM reimbursement_requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return requireAffected(result, "request", id)
}

// ClearInvoice drops the invoice reference without touching any other
// field. It is a compare-and-clear: a reference replaced since key was read
// is left alone and ErrInvoiceChanged is returned.
func (r *RequestRepository) ClearInvoice(ctx context.Context, id int64, key string, modifiedAt time.Time) error {
	result, err := r.exec(ctx).ExecContext(ctx,
		`UPDATE reimbursement_requests SET invoice_pdf = '', last_modified_date = ? WHERE id = ? AND invoice_pdf = ?`,
		modifiedAt.UTC(), id, key)
	if err != nil {
		return fmt.Errorf("failed to clear invoice: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("request %d: %w", id, entity.ErrNotFound)
	}
	return fmt.Errorf("request %d: %w", id, entity.ErrInvoiceChanged)
}

// ReferencedInvoices returns the set of invoice keys in use
func (r *RequestRepository) ReferencedInvoices(ctx context.Context) (map[string]bool, error) {
	rows, err := r.exec(ctx).QueryContext(ctx,
		`SELECT DISTINCT invoice_pdf FROM reimbursement_requests WHERE invoice_pdf != ''`)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan invoice key: %w", err)
		}
		keys[key] = true
	}
	return keys, rows.Err()
}

func (r *RequestRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.ReimbursementRequest, error) {
	req, err := scanRequest(r.exec(ctx).QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (r *RequestRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]*entity.ReimbursementRequest, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.ReimbursementRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(s scanner) (*entity.ReimbursementRequest, error) {
	var req entity.ReimbursementRequest
	err := s.Scan(
		&req.ID,
		&req.UserID,
		&req.Username,
		&req.RealName,
		&req.Reason,
		&req.Amount,
		&req.InvoicePDF,
		&req.Remarks,
		&req.Status,
		&req.RejectionReason,
		&req.SubmissionDate,
		&req.LastModifiedDate,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) exec(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFrom(ctx, r.db)
}

var _ port.RequestRepository = (*RequestRepository)(nil)
