package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/reimbursement-tracker/internal/application/port"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

// Response represents a standard JSON response
type Response struct {
	Success  bool              `json:"success"`
	Data     interface{}       `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// RequestResponse represents a reimbursement request in API responses.
// InvoicePDF is a download URL rather than the storage key.
type RequestResponse struct {
	ID               int64           `json:"id"`
	User             string          `json:"user"`
	RealName         string          `json:"real_name"`
	Reason           string          `json:"reason"`
	Amount           decimal.Decimal `json:"amount"`
	InvoicePDF       *string         `json:"invoice_pdf"`
	Remarks          string          `json:"remarks"`
	Status           string          `json:"status"`
	RejectionReason  string          `json:"rejection_reason"`
	SubmissionDate   string          `json:"submission_date"`
	LastModifiedDate string          `json:"last_modified_date"`
}

func toRequestResponse(req *entity.ReimbursementRequest, blobs port.BlobStore) RequestResponse {
	resp := RequestResponse{
		ID:               req.ID,
		User:             req.Username,
		RealName:         req.RealName,
		Reason:           req.Reason,
		Amount:           req.Amount,
		Remarks:          req.Remarks,
		Status:           req.Status,
		RejectionReason:  req.RejectionReason,
		SubmissionDate:   req.SubmissionDate.UTC().Format(time.RFC3339),
		LastModifiedDate: req.LastModifiedDate.UTC().Format(time.RFC3339),
	}
	if req.HasInvoice() {
		url := blobs.URL(req.InvoicePDF)
		resp.InvoicePDF = &url
	}
	return resp
}

func toRequestList(reqs []*entity.ReimbursementRequest, blobs port.BlobStore) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestResponse(req, blobs))
	}
	return out
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail maps domain errors onto HTTP statuses in one place
func (h *handlers) fail(c *gin.Context, err error) {
	var (
		verr *entity.ValidationError
		perr *entity.PermissionError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, Response{Error: "validation failed", Fields: verr.Fields})
	case errors.As(err, &perr):
		c.JSON(http.StatusForbidden, Response{Error: perr.Message})
	case errors.Is(err, entity.ErrPermission):
		c.JSON(http.StatusForbidden, Response{Error: "You do not have permission to perform this action."})
	case errors.Is(err, entity.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, Response{Error: err.Error()})
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Error: "Not found."})
	case errors.Is(err, entity.ErrNothingToExport):
		c.JSON(http.StatusOK, Response{Error: strings.TrimPrefix(err.Error(), entity.ErrNothingToExport.Error()+": ")})
	default:
		h.logger.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Error: "internal server error"})
	}
}

func (h *handlers) badRequest(c *gin.Context, field, message string) {
	h.fail(c, entity.FieldError(field, message))
}

// pathID parses the :id parameter; an unparsable id cannot match a record
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, Response{Error: "Not found."})
		return 0, false
	}
	return id, true
}
