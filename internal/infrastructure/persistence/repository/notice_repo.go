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

// NoticeRepository implements port.NoticeRepository
type NoticeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNoticeRepository creates a new notice repository
func NewNoticeRepository(db *sql.DB, logger *zap.Logger) *NoticeRepository {
	return &NoticeRepository{db: db, logger: logger}
}

const noticeSelect = `SELECT id, title, content, is_active, priority, created_at, updated_at FROM notices`

func (r *NoticeRepository) Create(ctx context.Context, n *entity.Notice) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notices (title, content, is_active, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Title, n.Content, n.IsActive, n.Priority, n.CreatedAt.UTC(), n.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create notice", zap.Error(err))
		return fmt.Errorf("failed to create notice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

func (r *NoticeRepository) GetByID(ctx context.Context, id int64) (*entity.Notice, error) {
	n, err := scanNotice(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, noticeSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notice: %w", err)
	}
	return n, nil
}

// ListActive returns active notices by priority, then newest first
func (r *NoticeRepository) ListActive(ctx context.Context) ([]*entity.Notice, error) {
	return r.list(ctx, noticeSelect+` WHERE is_active = 1 ORDER BY priority DESC, created_at DESC, id DESC`)
}

// ListAll returns every notice in the same order as ListActive
func (r *NoticeRepository) ListAll(ctx context.Context) ([]*entity.Notice, error) {
	return r.list(ctx, noticeSelect+` ORDER BY priority DESC, created_at DESC, id DESC`)
}

func (r *NoticeRepository) Update(ctx context.Context, n *entity.Notice) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `
		UPDATE notices SET title = ?, content = ?, is_active = ?, priority = ?, updated_at = ?
		WHERE id = ?`,
		n.Title, n.Content, n.IsActive, n.Priority, n.UpdatedAt.UTC(), n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notice: %w", err)
	}
	return requireAffected(result, "notice", n.ID)
}

func (r *NoticeRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM notices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete notice: %w", err)
	}
	return requireAffected(result, "notice", id)
}

func (r *NoticeRepository) list(ctx context.Context, query string) ([]*entity.Notice, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list notices", zap.Error(err))
		return nil, fmt.Errorf("failed to list notices: %w", err)
	}
	defer rows.Close()

	var notices []*entity.Notice
	for rows.Next() {
		n, err := scanNotice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notice: %w", err)
		}
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

func scanNotice(s scanner) (*entity.Notice, error) {
	var n entity.Notice
	if err := s.Scan(&n.ID, &n.Title, &n.Content, &n.IsActive, &n.Priority, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

var _ port.NoticeRepository = (*NoticeRepository)(nil)
