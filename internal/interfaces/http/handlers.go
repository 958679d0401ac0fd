package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/reimbursement-tracker/internal/application/lifecycle"
	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

type handlers struct {
	deps      Dependencies
	maxUpload int64
	logger    Logger
}

func newHandlers(deps Dependencies, maxUpload int64, logger Logger) *handlers {
	return &handlers{deps: deps, maxUpload: maxUpload, logger: logger}
}

func (h *handlers) health(c *gin.Context) {
	if h.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, details := h.deps.Health(ctx)
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "time": time.Now().UTC(), "components": details})
}

// Accounts

func (h *handlers) register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	user, err := h.deps.Auth.Register(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, user)
}

func (h *handlers) token(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	pair, err := h.deps.Auth.Token(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, pair)
}

func (h *handlers) refresh(c *gin.Context) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Refresh == "" {
		h.badRequest(c, "refresh", "This field is required.")
		return
	}
	access, err := h.deps.Auth.Refresh(c.Request.Context(), body.Refresh)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"access": access})
}

func (h *handlers) activeNotices(c *gin.Context) {
	notices, err := h.deps.Notices.ListActive(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, notices)
}

// Owner-scoped requests

func (h *handlers) listOwn(c *gin.Context) {
	reqs, err := h.deps.Lifecycle.ListOwned(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestList(reqs, h.deps.Blobs))
}

func (h *handlers) createOwn(c *gin.Context) {
	fields, upload, err := h.readRequestForm(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	in := lifecycle.CreateInput{Invoice: upload}
	verr := entity.NewValidationError()
	in.RealName = valueOr(fields.realName)
	in.Reason = valueOr(fields.reason)
	in.Remarks = valueOr(fields.remarks)
	if fields.amount == nil {
		verr.Add("amount", "This field is required.")
	} else {
		in.Amount = *fields.amount
	}
	if err := verr.OrNil(); err != nil {
		h.fail(c, err)
		return
	}

	req, err := h.deps.Lifecycle.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, toRequestResponse(req, h.deps.Blobs))
}

func (h *handlers) getOwn(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	req, err := h.deps.Lifecycle.GetOwned(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestResponse(req, h.deps.Blobs))
}

// updateOwn serves both PUT and PATCH; either one is a partial update
func (h *handlers) updateOwn(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	fields, upload, err := h.readRequestForm(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.deps.Lifecycle.Update(c.Request.Context(), currentUser(c).ID, id, lifecycle.UpdateInput{
		RealName: fields.realName,
		Reason:   fields.reason,
		Amount:   fields.amount,
		Remarks:  fields.remarks,
		Invoice:  upload,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{
		Success:  true,
		Data:     toRequestResponse(result.Request, h.deps.Blobs),
		Warnings: result.Warnings,
	})
}

func (h *handlers) deleteOwn(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	if err := h.deps.Lifecycle.DeleteOwned(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// media serves an invoice to its owner or to an administrator
func (h *handlers) media(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.JSON(http.StatusNotFound, Response{Error: "Not found."})
		return
	}

	ctx := c.Request.Context()
	user := currentUser(c)
	if !user.CanAccessAdmin() {
		owned, err := h.deps.Lifecycle.ListOwned(ctx, user.ID)
		if err != nil {
			h.fail(c, err)
			return
		}
		if !ownsInvoice(owned, key) {
			c.JSON(http.StatusNotFound, Response{Error: "Not found."})
			return
		}
	}

	if !h.deps.Blobs.Exists(ctx, key) {
		c.JSON(http.StatusNotFound, Response{Error: "Not found."})
		return
	}
	content, err := h.deps.Blobs.Read(ctx, key)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %v", entity.ErrStorage, err))
		return
	}
	c.Data(http.StatusOK, "application/pdf", content)
}

func ownsInvoice(reqs []*entity.ReimbursementRequest, key string) bool {
	for _, r := range reqs {
		if r.InvoicePDF == key {
			return true
		}
	}
	return false
}

// requestForm holds the multipart fields that were actually sent
type requestForm struct {
	realName *string
	reason   *string
	amount   *decimal.Decimal
	remarks  *string
}

func (h *handlers) readRequestForm(c *gin.Context) (*requestForm, *lifecycle.Upload, error) {
	if h.maxUpload > 0 {
		// leave room for the other form fields
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	}

	form := &requestForm{}
	verr := entity.NewValidationError()

	if v, found := c.GetPostForm("real_name"); found {
		form.realName = &v
	}
	if v, found := c.GetPostForm("reason"); found {
		form.reason = &v
	}
	if v, found := c.GetPostForm("remarks"); found {
		form.remarks = &v
	}
	if v, found := c.GetPostForm("amount"); found {
		amount, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			verr.Add("amount", "A valid number is required.")
		} else {
			form.amount = &amount
		}
	}

	upload, err := h.readInvoice(c)
	if err != nil {
		verr.Add("invoice_pdf", err.Error())
	}
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}
	return form, upload, nil
}

// readInvoice returns nil when no file part was sent
func (h *handlers) readInvoice(c *gin.Context) (*lifecycle.Upload, error) {
	header, err := c.FormFile("invoice_pdf")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("The submitted data was not a file.")
	}
	if h.maxUpload > 0 && header.Size > h.maxUpload {
		return nil, fmt.Errorf("文件大小不能超过 %d MB", h.maxUpload>>20)
	}

	file, err := header.Open()
	if err != nil {
		return nil, errReadFailed
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errReadFailed
	}
	if len(content) == 0 {
		return nil, errors.New("The submitted file is empty.")
	}
	return &lifecycle.Upload{Filename: header.Filename, Content: content}, nil
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var errReadFailed = errors.New("The submitted file could not be read.")
