package service

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// ExportPrefix is where generated archives and reports are kept
const ExportPrefix = "exports/"

const (
	approvedSheetName = "已审核报销申请"
	ledgerSheetName   = "账本明细"
)

// ExportFailure is one item that could not be included
type ExportFailure struct {
	ID    int64  `json:"id"`
	Key   string `json:"key"`
	Error string `json:"error"`
}

// ExportResult describes a stored export
type ExportResult struct {
	Key      string          `json:"key"`
	Filename string          `json:"filename"`
	URL      string          `json:"url"`
	Count    int             `json:"count"`
	Failures []ExportFailure `json:"failures,omitempty"`
	Message  string          `json:"message"`
}

// ExportService builds archives and spreadsheet reports from selections
type ExportService interface {
	ArchiveApproved(ctx context.Context, ids []int64) (*ExportResult, error)
	ExportApproved(ctx context.Context, ids []int64) (*ExportResult, error)
	ExportLedger(ctx context.Context, ids []int64) (*ExportResult, error)
	// Open reads a stored export by its path below ExportPrefix
	Open(ctx context.Context, name string) ([]byte, error)
}

type exportServiceImpl struct {
	requests port.RequestRepository
	ledger   port.LedgerRepository
	blobs    port.BlobStore
	archiver port.ArchiveWriter
	reports  port.ReportWriter
	logger   Logger
	now      func() time.Time
}

// NewExportService creates a new ExportService
func NewExportService(
	requests port.RequestRepository,
	ledger port.LedgerRepository,
	blobs port.BlobStore,
	archiver port.ArchiveWriter,
	reports port.ReportWriter,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		requests: requests,
		ledger:   ledger,
		blobs:    blobs,
		archiver: archiver,
		reports:  reports,
		logger:   logger,
		now:      time.Now,
	}
}

// ArchiveApproved zips the invoices of the approved requests in the
// selection. Unreadable blobs are reported and skipped.
func (s *exportServiceImpl) ArchiveApproved(ctx context.Context, ids []int64) (*ExportResult, error) {
	reqs, err := s.selectRequests(ctx, ids)
	if err != nil {
		return nil, err
	}

	files, failures := CollectInvoices(reqs, func(key string) ([]byte, error) {
		return s.blobs.Read(ctx, key)
	})
	if len(files) == 0 {
		if len(failures) > 0 {
			msgs := make([]string, 0, len(failures))
			for _, f := range failures {
				msgs = append(msgs, f.Error)
			}
			return nil, fmt.Errorf("%w: %s", entity.ErrNothingToExport, strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("%w: 所选申请中没有已审核通过的发票可下载", entity.ErrNothingToExport)
	}

	content, err := s.archiver.Write(files)
	if err != nil {
		return nil, err
	}

	result, err := s.store(ctx, fmt.Sprintf("approved_invoices_%dfiles.zip", len(files)), content)
	if err != nil {
		return nil, err
	}
	result.Count = len(files)
	result.Failures = failures
	result.Message = fmt.Sprintf("成功打包 %d 个已审核发票", len(files))

	s.logger.Info("Invoice archive created", "key", result.Key, "files", len(files), "failures", len(failures))
	return result, nil
}

// CollectInvoices picks approved requests with an invoice and names each
// archive entry after the blob's base name. A later entry with the same
// name replaces the earlier one.
func CollectInvoices(reqs []*entity.ReimbursementRequest, read func(key string) ([]byte, error)) ([]port.ArchiveFile, []ExportFailure) {
	var (
		order    []string
		byName   = map[string][]byte{}
		failures []ExportFailure
	)
	for _, req := range reqs {
		if !req.IsApproved() || !req.HasInvoice() {
			continue
		}
		content, err := read(req.InvoicePDF)
		if err != nil {
			failures = append(failures, ExportFailure{
				ID:    req.ID,
				Key:   req.InvoicePDF,
				Error: fmt.Sprintf("文件 %s 读取失败: %v", req.InvoicePDF, err),
			})
			continue
		}

		name := path.Base(req.InvoicePDF)
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = content
	}

	files := make([]port.ArchiveFile, 0, len(order))
	for _, name := range order {
		files = append(files, port.ArchiveFile{Name: name, Content: byName[name]})
	}
	return files, failures
}

func (s *exportServiceImpl) ExportApproved(ctx context.Context, ids []int64) (*ExportResult, error) {
	reqs, err := s.selectRequests(ctx, ids)
	if err != nil {
		return nil, err
	}

	sheet := ApprovedReport(reqs)
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("%w: 所选申请中没有已审核通过的记录", entity.ErrNothingToExport)
	}

	content, err := s.reports.Write(sheet)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("approved_reimbursements_%s.xlsx", s.now().Format("20060102_150405"))
	result, err := s.store(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	result.Count = len(sheet.Rows)
	result.Message = fmt.Sprintf("成功导出 %d 条已审核记录到Excel", len(sheet.Rows))
	return result, nil
}

// ApprovedReport lists approved requests oldest first with the amount
// negated as an expense
func ApprovedReport(reqs []*entity.ReimbursementRequest) port.ReportSheet {
	approved := make([]*entity.ReimbursementRequest, 0, len(reqs))
	for _, req := range reqs {
		if req.IsApproved() {
			approved = append(approved, req)
		}
	}
	sort.SliceStable(approved, func(i, j int) bool {
		return approved[i].SubmissionDate.Before(approved[j].SubmissionDate)
	})

	sheet := port.ReportSheet{
		SheetName:   approvedSheetName,
		Headers:     []string{"提交日期", "提交人姓名", "报销事由", "金额", "备注"},
		Widths:      []float64{15, 15, 30, 12, 40},
		MoneyColumn: 3,
	}
	for _, req := range approved {
		sheet.Rows = append(sheet.Rows, []interface{}{
			req.SubmissionDate.Format("2006-01-02"),
			req.RealName,
			req.Reason,
			req.Amount.Neg().InexactFloat64(),
			req.Remarks,
		})
	}
	return sheet
}

func (s *exportServiceImpl) ExportLedger(ctx context.Context, ids []int64) (*ExportResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: 没有选择任何账本记录", entity.ErrNothingToExport)
	}
	entries, err := s.ledger.List(ctx, ids)
	if err != nil {
		return nil, err
	}

	sheet := LedgerReport(entries)
	if len(sheet.Rows) == 0 {
		return nil, fmt.Errorf("%w: 所选账本记录不存在", entity.ErrNothingToExport)
	}

	content, err := s.reports.Write(sheet)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("account_book_%s.xlsx", s.now().Format("20060102_150405"))
	result, err := s.store(ctx, filename, content)
	if err != nil {
		return nil, err
	}
	result.Count = len(sheet.Rows)
	result.Message = fmt.Sprintf("成功导出 %d 条账本记录到Excel", len(sheet.Rows))
	return result, nil
}

// LedgerReport lists entries oldest first with signed amounts
func LedgerReport(entries []*entity.LedgerEntry) port.ReportSheet {
	sorted := make([]*entity.LedgerEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EntryDate.Before(sorted[j].EntryDate)
	})

	sheet := port.ReportSheet{
		SheetName:   ledgerSheetName,
		Headers:     []string{"日期", "姓名", "事由", "金额", "备注"},
		Widths:      []float64{20, 15, 30, 12, 40},
		MoneyColumn: 3,
	}
	for _, e := range sorted {
		sheet.Rows = append(sheet.Rows, []interface{}{
			e.EntryDate.Format("2006-01-02 15:04:05"),
			e.RealName,
			e.Reason,
			e.SignedAmount().InexactFloat64(),
			e.Remarks,
		})
	}
	return sheet
}

func (s *exportServiceImpl) Open(ctx context.Context, name string) ([]byte, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.Contains(name, "..") {
		return nil, fmt.Errorf("export %q: %w", name, entity.ErrNotFound)
	}
	key := ExportPrefix + name
	if !s.blobs.Exists(ctx, key) {
		return nil, fmt.Errorf("export %q: %w", name, entity.ErrNotFound)
	}
	return s.blobs.Read(ctx, key)
}

func (s *exportServiceImpl) selectRequests(ctx context.Context, ids []int64) ([]*entity.ReimbursementRequest, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: 没有选择任何申请", entity.ErrNothingToExport)
	}
	return s.requests.List(ctx, entity.RequestFilter{IDs: ids})
}

// store writes an export below a per-call directory so repeated exports
// never overwrite each other
func (s *exportServiceImpl) store(ctx context.Context, filename string, content []byte) (*ExportResult, error) {
	rel := path.Join(s.now().UTC().Format("20060102T150405.000000000"), filename)
	key := ExportPrefix + rel
	if err := s.blobs.Save(ctx, key, content); err != nil {
		s.logger.Error("Failed to store export", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", entity.ErrStorage, err)
	}
	return &ExportResult{Key: key, Filename: filename, URL: "/admin/api/exports/" + rel}, nil
}
