package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// MessageSender is the part of MessageAPI the notifier needs
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// ReviewNotifier posts pending review requests to the reviewers' chat
type ReviewNotifier struct {
	sender   MessageSender
	chatID   string
	adminURL string
	logger   *zap.Logger
}

// NewReviewNotifier creates a notifier that writes to cfg.ReviewChatID
func NewReviewNotifier(sender MessageSender, cfg Config, logger *zap.Logger) *ReviewNotifier {
	return &ReviewNotifier{
		sender:   sender,
		chatID:   cfg.ReviewChatID,
		adminURL: strings.TrimRight(cfg.AdminURL, "/"),
		logger:   logger,
	}
}

// NotifyPendingReview sends a text message describing req
func (n *ReviewNotifier) NotifyPendingReview(ctx context.Context, req *entity.ReimbursementRequest, resubmitted bool) error {
	content, err := json.Marshal(map[string]string{"text": n.buildMessage(req, resubmitted)})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	if _, err := n.sender.SendMessage(ctx, "chat_id", n.chatID, "text", string(content)); err != nil {
		return err
	}
	return nil
}

func (n *ReviewNotifier) buildMessage(req *entity.ReimbursementRequest, resubmitted bool) string {
	title := "新的报销申请待审核"
	if resubmitted {
		title = "报销申请已重新提交，待审核"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", title)
	fmt.Fprintf(&b, "申请编号: %d\n", req.ID)
	fmt.Fprintf(&b, "提交人: %s\n", req.RealName)
	fmt.Fprintf(&b, "报销事由: %s\n", req.Reason)
	fmt.Fprintf(&b, "金额: %s\n", req.Amount.StringFixed(2))
	if req.Remarks != "" {
		fmt.Fprintf(&b, "备注: %s\n", req.Remarks)
	}
	if n.adminURL != "" {
		fmt.Fprintf(&b, "\n审核地址: %s/reimbursements/%d", n.adminURL, req.ID)
	}
	return b.String()
}

// DisabledNotifier is used when Lark is not configured
type DisabledNotifier struct {
	logger *zap.Logger
}

func NewDisabledNotifier(logger *zap.Logger) *DisabledNotifier {
	return &DisabledNotifier{logger: logger}
}

func (d *DisabledNotifier) NotifyPendingReview(ctx context.Context, req *entity.ReimbursementRequest, resubmitted bool) error {
	d.logger.Debug("Review notification skipped, Lark is not configured", zap.Int64("request_id", req.ID))
	return nil
}

var (
	_ port.ReviewNotifier = (*ReviewNotifier)(nil)
	_ port.ReviewNotifier = (*DisabledNotifier)(nil)
)
