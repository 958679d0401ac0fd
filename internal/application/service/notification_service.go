package service

import (
	"context"
	"fmt"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/event"
)

// NotificationService tells reviewers about requests waiting for them
type NotificationService interface {
	// HandleSubmitted is an event handler for request.submitted and
	// request.resubmitted
	HandleSubmitted(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	requests port.RequestRepository
	notifier port.ReviewNotifier
	logger   Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(requests port.RequestRepository, notifier port.ReviewNotifier, logger Logger) NotificationService {
	return &notificationServiceImpl{
		requests: requests,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *notificationServiceImpl) HandleSubmitted(ctx context.Context, evt *event.Event) error {
	req, err := s.requests.GetByID(ctx, evt.RequestID)
	if err != nil {
		return fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		// deleted before the handler ran
		s.logger.Warn("Request vanished before review notification", "request_id", evt.RequestID)
		return nil
	}

	resubmitted := evt.Type == event.TypeRequestResubmitted
	if err := s.notifier.NotifyPendingReview(ctx, req, resubmitted); err != nil {
		s.logger.Error("Failed to send review notification", "error", err, "request_id", req.ID)
		return fmt.Errorf("notify reviewers: %w", err)
	}

	s.logger.Info("Review notification sent", "request_id", req.ID, "resubmitted", resubmitted)
	return nil
}
