package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create records one lifecycle action
func (r *HistoryRepository) Create(ctx context.Context, h *entity.RequestHistory) error {
	query := `
		INSERT INTO request_history (
			request_id, actor_user_id, action, previous_status, new_status, note, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		h.RequestID,
		h.ActorUserID,
		h.Action,
		h.PreviousStatus,
		h.NewStatus,
		h.Note,
		h.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Int64("request_id", h.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByRequestID returns the trail of a request, oldest first
func (r *HistoryRepository) ListByRequestID(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	query := `
		SELECT id, request_id, actor_user_id, action, previous_status, new_status, note, created_at
		FROM request_history
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*entity.RequestHistory
	for rows.Next() {
		var h entity.RequestHistory
		if err := rows.Scan(
			&h.ID,
			&h.RequestID,
			&h.ActorUserID,
			&h.Action,
			&h.PreviousStatus,
			&h.NewStatus,
			&h.Note,
			&h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &h)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
