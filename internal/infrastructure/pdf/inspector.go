package pdf

import (
	"bytes"
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

var pdfMagic = []byte("%PDF-")

// Inspector validates invoice uploads by opening them with MuPDF
type Inspector struct {
	maxBytes int64
	logger   *zap.Logger
}

// NewInspector creates an inspector; maxBytes <= 0 disables the size limit
func NewInspector(maxBytes int64, logger *zap.Logger) *Inspector {
	return &Inspector{maxBytes: maxBytes, logger: logger}
}

// Inspect returns page information or a validation error on the
// invoice_pdf field
func (i *Inspector) Inspect(ctx context.Context, content []byte) (*port.InvoiceInfo, error) {
	if len(content) == 0 {
		return nil, entity.FieldError("invoice_pdf", "The submitted file is empty.")
	}
	if i.maxBytes > 0 && int64(len(content)) > i.maxBytes {
		return nil, entity.FieldError("invoice_pdf", fmt.Sprintf("File exceeds the %d byte limit.", i.maxBytes))
	}
	if !bytes.HasPrefix(content, pdfMagic) {
		return nil, entity.FieldError("invoice_pdf", "Only PDF files are accepted.")
	}

	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		i.logger.Warn("Rejected unreadable PDF", zap.Int("size", len(content)), zap.Error(err))
		return nil, entity.FieldError("invoice_pdf", "The PDF file could not be read.")
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages < 1 {
		return nil, entity.FieldError("invoice_pdf", "The PDF file has no pages.")
	}

	i.logger.Debug("Invoice inspected", zap.Int("pages", pages), zap.Int("size", len(content)))
	return &port.InvoiceInfo{Pages: pages}, nil
}

var _ port.InvoiceInspector = (*Inspector)(nil)
