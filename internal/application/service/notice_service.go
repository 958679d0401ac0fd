package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/pkg/utils"
)

// NoticeInput is a notice create or partial update. Nil fields are left
// unchanged on update.
type NoticeInput struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	IsActive *bool   `json:"is_active"`
	Priority *int    `json:"priority"`
}

// NoticeService manages announcements
type NoticeService interface {
	ListActive(ctx context.Context) ([]*entity.Notice, error)
	ListAll(ctx context.Context) ([]*entity.Notice, error)
	Create(ctx context.Context, in NoticeInput) (*entity.Notice, error)
	Update(ctx context.Context, id int64, in NoticeInput) (*entity.Notice, error)
	Delete(ctx context.Context, id int64) error
}

type noticeServiceImpl struct {
	notices port.NoticeRepository
	logger  Logger
	now     func() time.Time
}

// NewNoticeService creates a new NoticeService
func NewNoticeService(notices port.NoticeRepository, logger Logger) NoticeService {
	return &noticeServiceImpl{notices: notices, logger: logger, now: time.Now}
}

// ListActive returns the public notices, highest priority first
func (s *noticeServiceImpl) ListActive(ctx context.Context) ([]*entity.Notice, error) {
	return s.notices.ListActive(ctx)
}

func (s *noticeServiceImpl) ListAll(ctx context.Context) ([]*entity.Notice, error) {
	return s.notices.ListAll(ctx)
}

func (s *noticeServiceImpl) Create(ctx context.Context, in NoticeInput) (*entity.Notice, error) {
	now := s.now().UTC()
	n := &entity.Notice{IsActive: true, CreatedAt: now, UpdatedAt: now}
	applyNotice(n, in)
	if err := validateNotice(n); err != nil {
		return nil, err
	}

	if err := s.notices.Create(ctx, n); err != nil {
		return nil, err
	}
	s.logger.Info("Notice created", "notice_id", n.ID, "priority", n.Priority)
	return n, nil
}

func (s *noticeServiceImpl) Update(ctx context.Context, id int64, in NoticeInput) (*entity.Notice, error) {
	n, err := s.notices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("notice %d: %w", id, entity.ErrNotFound)
	}

	applyNotice(n, in)
	if err := validateNotice(n); err != nil {
		return nil, err
	}
	n.UpdatedAt = s.now().UTC()

	if err := s.notices.Update(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *noticeServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.notices.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Notice deleted", "notice_id", id)
	return nil
}

func applyNotice(n *entity.Notice, in NoticeInput) {
	if in.Title != nil {
		n.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		n.Content = *in.Content
	}
	if in.IsActive != nil {
		n.IsActive = *in.IsActive
	}
	if in.Priority != nil {
		n.Priority = *in.Priority
	}
}

func validateNotice(n *entity.Notice) error {
	verr := entity.NewValidationError()
	if err := utils.ValidateLength(n.Title, entity.MaxNoticeTitleLength, true); err != nil {
		verr.Add("title", err.Error())
	}
	if strings.TrimSpace(n.Content) == "" {
		verr.Add("content", "this field is required")
	}
	return verr.OrNil()
}
