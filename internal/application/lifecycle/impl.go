package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/reimbursement-tracker/internal/application/dispatcher"
	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
	"github.com/garyjia/reimbursement-tracker/internal/domain/event"
	domainwf "github.com/garyjia/reimbursement-tracker/internal/domain/workflow"
	"github.com/garyjia/reimbursement-tracker/pkg/utils"
)

const (
	msgApprovedNoEdit   = "审核通过的申请不能被修改。"
	msgApprovedNoDelete = "审核通过的申请不能被删除。"
	msgOnlyRejectedEdit = "只有被拒绝的申请可以修改。"
)

type engineImpl struct {
	requests  port.RequestRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	blobs     port.BlobStore
	namer     port.InvoiceNamer
	inspector port.InvoiceInspector

	dispatcher dispatcher.Dispatcher
	logger     Logger
	opts       Options
	now        func() time.Time
}

// EngineOption configures the engine
type EngineOption func(*engineImpl)

// WithDispatcher publishes committed changes as domain events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithOptions replaces DefaultOptions
func WithOptions(opts Options) EngineOption {
	return func(e *engineImpl) {
		e.opts = opts
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a lifecycle engine
func NewEngine(
	requests port.RequestRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	blobs port.BlobStore,
	namer port.InvoiceNamer,
	inspector port.InvoiceInspector,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requests:  requests,
		history:   history,
		txManager: txManager,
		blobs:     blobs,
		namer:     namer,
		inspector: inspector,
		logger:    logger,
		opts:      DefaultOptions(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create stores the invoice first, then inserts the record. A failed insert
// removes the stored blob again.
func (e *engineImpl) Create(ctx context.Context, userID int64, in CreateInput) (*entity.ReimbursementRequest, error) {
	verr := e.validateFields(in.RealName, in.Reason, in.Amount, in.Remarks)
	if in.Invoice == nil && e.opts.RequireInvoiceOnCreate {
		verr.Add("invoice_pdf", "No file was submitted.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	req := &entity.ReimbursementRequest{
		UserID:           userID,
		RealName:         strings.TrimSpace(in.RealName),
		Reason:           strings.TrimSpace(in.Reason),
		Amount:           in.Amount,
		Remarks:          in.Remarks,
		Status:           entity.StatusPending,
		SubmissionDate:   now,
		LastModifiedDate: now,
	}

	if in.Invoice != nil {
		key, err := e.storeInvoice(ctx, req.RealName, req.Reason, in.Invoice, now)
		if err != nil {
			return nil, err
		}
		req.InvoicePDF = key
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requests.Create(txCtx, req); err != nil {
			return err
		}
		return e.record(txCtx, req.ID, userID, entity.ActionCreate, "", entity.StatusPending, "", now)
	})
	if err != nil {
		e.discardBlob(ctx, req.InvoicePDF, "create failed")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	created, err := e.requests.GetByID(ctx, req.ID)
	if err != nil || created == nil {
		created = req
	}

	e.logger.Info("Request submitted", "request_id", req.ID, "user_id", userID, "invoice", req.InvoicePDF)
	e.publish(ctx, event.TypeRequestSubmitted, created, userID, "")
	return created, nil
}

// Update applies a partial resubmission. The request returns to pending and
// loses its rejection reason. A new invoice replaces the old one: the new
// blob is stored before the transaction and the old blob removed after it.
func (e *engineImpl) Update(ctx context.Context, userID, id int64, in UpdateInput) (*UpdateResult, error) {
	current, err := e.requests.FindOwnedBy(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFound(id)
	}
	if err := e.checkResubmit(current.Status); err != nil {
		return nil, err
	}

	draft := *current
	applyUpdate(&draft, in)
	if err := e.validateFields(draft.RealName, draft.Reason, draft.Amount, draft.Remarks).OrNil(); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	var newKey string
	if in.Invoice != nil {
		newKey, err = e.storeInvoice(ctx, draft.RealName, draft.Reason, in.Invoice, now)
		if err != nil {
			return nil, err
		}
	}

	var (
		updated *entity.ReimbursementRequest
		oldKey  string
	)
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		fresh, err := e.requests.FindOwnedBy(txCtx, id, userID)
		if err != nil {
			return err
		}
		if fresh == nil {
			return notFound(id)
		}

		machine, err := BuildStateMachine(e.opts.EditPolicy, domainwf.State(fresh.Status))
		if err != nil {
			return err
		}
		tr, err := machine.Fire(domainwf.TriggerResubmit)
		if err != nil {
			return e.refuseResubmit(fresh.Status, err)
		}

		applyUpdate(fresh, in)
		if err := e.validateFields(fresh.RealName, fresh.Reason, fresh.Amount, fresh.Remarks).OrNil(); err != nil {
			return err
		}
		fresh.Status = tr.To.String()
		fresh.RejectionReason = ""
		fresh.LastModifiedDate = now
		if newKey != "" {
			oldKey = fresh.InvoicePDF
			fresh.InvoicePDF = newKey
		}

		if err := e.requests.Update(txCtx, fresh); err != nil {
			return err
		}
		if err := e.record(txCtx, id, userID, entity.ActionResubmit, tr.From.String(), tr.To.String(), "", now); err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		e.discardBlob(ctx, newKey, "resubmit failed")
		return nil, err
	}

	result := &UpdateResult{Request: updated}
	if oldKey != "" && oldKey != newKey {
		if err := e.blobs.Delete(ctx, oldKey); err != nil {
			e.logger.Warn("Failed to delete replaced invoice", "request_id", id, "key", oldKey, "error", err)
			result.Warnings = append(result.Warnings, fmt.Sprintf("旧发票文件删除失败: %s", oldKey))
		}
	}

	e.logger.Info("Request resubmitted", "request_id", id, "user_id", userID, "invoice_replaced", newKey != "")
	e.publish(ctx, event.TypeRequestResubmitted, updated, userID, "")
	return result, nil
}

// DeleteOwned lets an owner withdraw a request that is not yet approved
func (e *engineImpl) DeleteOwned(ctx context.Context, userID, id int64) error {
	var deleted *entity.ReimbursementRequest
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.requests.FindOwnedBy(txCtx, id, userID)
		if err != nil {
			return err
		}
		if req == nil {
			return notFound(id)
		}
		if domainwf.State(req.Status).IsTerminal() {
			return entity.Forbidden(msgApprovedNoDelete)
		}
		if err := e.requests.Delete(txCtx, id); err != nil {
			return err
		}
		deleted = req
		return nil
	})
	if err != nil {
		return err
	}

	e.discardBlob(ctx, deleted.InvoicePDF, "request deleted")
	e.publish(ctx, event.TypeRequestDeleted, deleted, userID, "")
	return nil
}

func (e *engineImpl) Approve(ctx context.Context, adminID, id int64) (*entity.ReimbursementRequest, error) {
	return e.review(ctx, adminID, id, domainwf.TriggerApprove, "")
}

func (e *engineImpl) Reject(ctx context.Context, adminID, id int64, reason string) (*entity.ReimbursementRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, entity.FieldError("rejection_reason", "This field is required.")
	}
	return e.review(ctx, adminID, id, domainwf.TriggerReject, reason)
}

// review applies an administrator decision. Only status and rejection
// reason change.
func (e *engineImpl) review(ctx context.Context, adminID, id int64, trigger domainwf.Trigger, reason string) (*entity.ReimbursementRequest, error) {
	now := e.now().UTC()

	var updated *entity.ReimbursementRequest
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.requests.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return notFound(id)
		}

		machine, err := BuildStateMachine(e.opts.EditPolicy, domainwf.State(req.Status))
		if err != nil {
			return err
		}
		tr, err := machine.Fire(trigger)
		if err != nil {
			if errors.Is(err, domainwf.ErrInvalidTransition) {
				return entity.FieldError("status", fmt.Sprintf("Cannot %s a request that is %s.", strings.ToLower(trigger.String()), req.Status))
			}
			return err
		}

		req.Status = tr.To.String()
		req.RejectionReason = reason
		req.LastModifiedDate = now
		if err := e.requests.Update(txCtx, req); err != nil {
			return err
		}

		action := entity.ActionApprove
		if trigger == domainwf.TriggerReject {
			action = entity.ActionReject
		}
		if err := e.record(txCtx, id, adminID, action, tr.From.String(), tr.To.String(), reason, now); err != nil {
			return err
		}
		updated = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := event.TypeRequestApproved
	if trigger == domainwf.TriggerReject {
		evt = event.TypeRequestRejected
	}
	e.logger.Info("Request reviewed", "request_id", id, "admin_id", adminID, "status", updated.Status)
	e.publish(ctx, evt, updated, adminID, reason)
	return updated, nil
}

// AdminDelete removes a request in any state
func (e *engineImpl) AdminDelete(ctx context.Context, adminID, id int64) error {
	var deleted *entity.ReimbursementRequest
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		req, err := e.requests.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if req == nil {
			return notFound(id)
		}
		if err := e.requests.Delete(txCtx, id); err != nil {
			return err
		}
		deleted = req
		return nil
	})
	if err != nil {
		return err
	}

	e.discardBlob(ctx, deleted.InvoicePDF, "request deleted by admin")
	e.logger.Info("Request deleted by admin", "request_id", id, "admin_id", adminID)
	e.publish(ctx, event.TypeRequestDeleted, deleted, adminID, "")
	return nil
}

// errSkipItem aborts a batch item's transaction without counting a failure
var errSkipItem = errors.New("skip item")

// DeleteUnapproved removes the selected requests that are not approved.
// Each item is re-read in its own transaction; approved ones are skipped,
// for the rest the blob goes first, then the row.
func (e *engineImpl) DeleteUnapproved(ctx context.Context, adminID int64, ids []int64) (*BatchResult, error) {
	if err := requireSelection(ids); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, id := range uniqueIDs(ids) {
		var deleted *entity.ReimbursementRequest
		err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			req, err := e.requests.GetByID(txCtx, id)
			if err != nil {
				return err
			}
			if req == nil {
				return notFound(id)
			}
			if req.IsApproved() {
				return errSkipItem
			}
			if req.HasInvoice() {
				if err := e.blobs.Delete(ctx, req.InvoicePDF); err != nil {
					return fmt.Errorf("删除文件失败: %w", err)
				}
			}
			if err := e.requests.Delete(txCtx, id); err != nil {
				return fmt.Errorf("删除记录失败: %w", err)
			}
			deleted = req
			return nil
		})
		switch {
		case errors.Is(err, errSkipItem):
			result.Skipped++
		case err != nil:
			result.fail(id, err)
		default:
			result.Succeeded++
			e.publish(ctx, event.TypeRequestDeleted, deleted, adminID, "")
		}
	}

	if result.Skipped > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("跳过了 %d 条已审核通过的记录。", result.Skipped))
	}
	e.logger.Info("Batch delete of unapproved requests",
		"admin_id", adminID, "deleted", result.Succeeded, "skipped", result.Skipped, "failed", len(result.Failures))
	return result, nil
}

// DeleteFiles removes the invoice blobs of the selected requests and clears
// their references. The records stay, whatever their status.
func (e *engineImpl) DeleteFiles(ctx context.Context, adminID int64, ids []int64) (*BatchResult, error) {
	if err := requireSelection(ids); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, id := range uniqueIDs(ids) {
		var (
			changed *entity.ReimbursementRequest
			removed string
		)
		now := e.now().UTC()
		err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			req, err := e.requests.GetByID(txCtx, id)
			if err != nil {
				return err
			}
			if req == nil {
				return notFound(id)
			}
			if !req.HasInvoice() {
				return errSkipItem
			}
			if err := e.blobs.Delete(ctx, req.InvoicePDF); err != nil {
				return fmt.Errorf("删除文件失败: %w", err)
			}
			if err := e.requests.ClearInvoice(txCtx, id, req.InvoicePDF, now); err != nil {
				return fmt.Errorf("清除文件引用失败: %w", err)
			}
			if err := e.record(txCtx, id, adminID, entity.ActionDeleteFile, req.Status, req.Status, req.InvoicePDF, now); err != nil {
				return err
			}
			removed = req.InvoicePDF
			req.InvoicePDF = ""
			req.LastModifiedDate = now
			changed = req
			return nil
		})
		switch {
		case errors.Is(err, errSkipItem):
			result.Skipped++
		case err != nil:
			result.fail(id, err)
		default:
			result.Succeeded++
			e.publish(ctx, event.TypeInvoiceRemoved, changed, adminID, removed)
		}
	}

	e.logger.Info("Batch delete of invoice files",
		"admin_id", adminID, "deleted", result.Succeeded, "skipped", result.Skipped, "failed", len(result.Failures))
	return result, nil
}

func requireSelection(ids []int64) error {
	if len(ids) == 0 {
		return entity.FieldError("ids", "没有选择任何申请。")
	}
	return nil
}

// uniqueIDs keeps the first occurrence of every id
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (e *engineImpl) GetOwned(ctx context.Context, userID, id int64) (*entity.ReimbursementRequest, error) {
	req, err := e.requests.FindOwnedBy(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, notFound(id)
	}
	return req, nil
}

func (e *engineImpl) ListOwned(ctx context.Context, userID int64) ([]*entity.ReimbursementRequest, error) {
	return e.requests.ListOwnedBy(ctx, userID)
}

func (e *engineImpl) Get(ctx context.Context, id int64) (*entity.ReimbursementRequest, error) {
	req, err := e.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, notFound(id)
	}
	return req, nil
}

func (e *engineImpl) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ReimbursementRequest, error) {
	if filter.Status != "" && !entity.IsValidStatus(filter.Status) {
		return nil, entity.FieldError("status", fmt.Sprintf("%q is not a valid choice.", filter.Status))
	}
	return e.requests.List(ctx, filter)
}

func (e *engineImpl) History(ctx context.Context, id int64) ([]*entity.RequestHistory, error) {
	if _, err := e.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.history.ListByRequestID(ctx, id)
}

// checkResubmit is the early policy check done before any blob is stored
func (e *engineImpl) checkResubmit(status string) error {
	machine, err := BuildStateMachine(e.opts.EditPolicy, domainwf.State(status))
	if err != nil {
		return err
	}
	if !machine.CanFire(domainwf.TriggerResubmit) {
		return e.refuseResubmit(status, domainwf.ErrInvalidTransition)
	}
	return nil
}

func (e *engineImpl) refuseResubmit(status string, cause error) error {
	if !errors.Is(cause, domainwf.ErrInvalidTransition) {
		return cause
	}
	if status == entity.StatusApproved {
		return entity.Forbidden(msgApprovedNoEdit)
	}
	return entity.Forbidden(msgOnlyRejectedEdit)
}

func (e *engineImpl) validateFields(realName, reason string, amount decimal.Decimal, remarks string) *entity.ValidationError {
	verr := entity.NewValidationError()
	if err := utils.ValidateLength(realName, entity.MaxRealNameLength, true); err != nil {
		verr.Add("real_name", err.Error())
	}
	if err := utils.ValidateLength(reason, entity.MaxReasonLength, true); err != nil {
		verr.Add("reason", err.Error())
	}
	if err := utils.ValidateAmount(amount, e.opts.RequirePositiveAmount); err != nil {
		verr.Add("amount", err.Error())
	}
	if strings.ContainsRune(remarks, 0) {
		verr.Add("remarks", "Null characters are not allowed.")
	}
	return verr
}

func (e *engineImpl) storeInvoice(ctx context.Context, realName, reason string, upload *Upload, at time.Time) (string, error) {
	if _, err := e.inspector.Inspect(ctx, upload.Content); err != nil {
		return "", err
	}

	// file names carry the local calendar date
	key := e.namer.InvoiceKey(realName, reason, at.In(e.location()))
	if err := e.blobs.Save(ctx, key, upload.Content); err != nil {
		e.logger.Error("Failed to store invoice", "key", key, "error", err)
		return "", fmt.Errorf("%w: %v", entity.ErrStorage, err)
	}
	return key, nil
}

func (e *engineImpl) location() *time.Location {
	if e.opts.Location != nil {
		return e.opts.Location
	}
	return time.Local
}

// discardBlob removes a blob that is no longer referenced; failures are
// left for the orphan sweeper
func (e *engineImpl) discardBlob(ctx context.Context, key, why string) {
	if key == "" {
		return
	}
	if err := e.blobs.Delete(ctx, key); err != nil {
		e.logger.Warn("Failed to delete invoice", "key", key, "reason", why, "error", err)
	}
}

func (e *engineImpl) record(ctx context.Context, requestID, actorID int64, action, from, to, note string, at time.Time) error {
	return e.history.Create(ctx, &entity.RequestHistory{
		RequestID:      requestID,
		ActorUserID:    actorID,
		Action:         action,
		PreviousStatus: from,
		NewStatus:      to,
		Note:           note,
		CreatedAt:      at,
	})
}

func (e *engineImpl) publish(ctx context.Context, eventType event.Type, req *entity.ReimbursementRequest, actorID int64, note string) {
	if e.dispatcher == nil {
		return
	}
	evt := event.NewEvent(eventType, req.ID, map[string]interface{}{
		event.KeyActorID:  actorID,
		event.KeyUsername: req.Username,
		event.KeyRealName: req.RealName,
		event.KeyReason:   req.Reason,
		event.KeyAmount:   req.Amount.StringFixed(2),
		event.KeyInvoice:  req.InvoicePDF,
		event.KeyNote:     note,
	})
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		e.logger.Error("Event handlers failed", "event_type", eventType, "request_id", req.ID, "error", err)
	}
}

func applyUpdate(req *entity.ReimbursementRequest, in UpdateInput) {
	if in.RealName != nil {
		req.RealName = strings.TrimSpace(*in.RealName)
	}
	if in.Reason != nil {
		req.Reason = strings.TrimSpace(*in.Reason)
	}
	if in.Amount != nil {
		req.Amount = *in.Amount
	}
	if in.Remarks != nil {
		req.Remarks = *in.Remarks
	}
}

func notFound(id int64) error {
	return fmt.Errorf("request %d: %w", id, entity.ErrNotFound)
}

func (r *BatchResult) fail(id int64, err error) {
	r.Failures = append(r.Failures, ItemFailure{ID: id, Error: err.Error()})
}
