package http

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reimbursement-tracker/internal/application/service"
	"github.com/garyjia/reimbursement-tracker/internal/domain/entity"
)

const (
	actionArchive          = "archive"
	actionExport           = "export"
	actionDeleteUnapproved = "delete-unapproved"
	actionDeleteFiles      = "delete-files"
)

type selection struct {
	IDs []int64 `json:"ids"`
}

func (h *handlers) adminList(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !entity.IsValidStatus(status) {
		h.badRequest(c, "status", "Select a valid choice.")
		return
	}
	reqs, err := h.deps.Lifecycle.List(c.Request.Context(), entity.RequestFilter{
		Status: status,
		Search: strings.TrimSpace(c.Query("q")),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestList(reqs, h.deps.Blobs))
}

func (h *handlers) adminGet(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	req, err := h.deps.Lifecycle.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestResponse(req, h.deps.Blobs))
}

func (h *handlers) adminHistory(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	history, err := h.deps.Lifecycle.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, history)
}

func (h *handlers) approve(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	req, err := h.deps.Lifecycle.Approve(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestResponse(req, h.deps.Blobs))
}

func (h *handlers) reject(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "reason", "This field is required.")
		return
	}
	req, err := h.deps.Lifecycle.Reject(c.Request.Context(), currentUser(c).ID, id, body.Reason)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, toRequestResponse(req, h.deps.Blobs))
}

func (h *handlers) adminDelete(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	if err := h.deps.Lifecycle.AdminDelete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// requestAction runs a bulk action over the selected request ids
func (h *handlers) requestAction(c *gin.Context) {
	var sel selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		h.badRequest(c, "ids", "A list of ids is required.")
		return
	}

	ctx := c.Request.Context()
	adminID := currentUser(c).ID

	action := c.Param("action")
	if len(sel.IDs) == 0 && (action == actionDeleteUnapproved || action == actionDeleteFiles) {
		h.badRequest(c, "ids", "没有选择任何申请。")
		return
	}

	switch action {
	case actionArchive:
		h.exportResult(c)(h.deps.Exports.ArchiveApproved(ctx, sel.IDs))
	case actionExport:
		h.exportResult(c)(h.deps.Exports.ExportApproved(ctx, sel.IDs))
	case actionDeleteUnapproved:
		result, err := h.deps.Lifecycle.DeleteUnapproved(ctx, adminID, sel.IDs)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: result, Warnings: result.Warnings})
	case actionDeleteFiles:
		result, err := h.deps.Lifecycle.DeleteFiles(ctx, adminID, sel.IDs)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: result, Warnings: result.Warnings})
	default:
		c.JSON(http.StatusNotFound, Response{Error: "Unknown action."})
	}
}

func (h *handlers) exportResult(c *gin.Context) func(*service.ExportResult, error) {
	return func(result *service.ExportResult, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		var warnings []string
		for _, f := range result.Failures {
			warnings = append(warnings, "#"+strconv.FormatInt(f.ID, 10)+" "+f.Key+": "+f.Error)
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: result, Warnings: warnings})
	}
}

func (h *handlers) download(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	content, err := h.deps.Exports.Open(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}

	contentType := "application/octet-stream"
	switch path.Ext(name) {
	case ".zip":
		contentType = "application/zip"
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	c.Header("Content-Disposition", `attachment; filename="`+path.Base(name)+`"`)
	c.Data(http.StatusOK, contentType, content)
}

// Notices

func (h *handlers) listNotices(c *gin.Context) {
	notices, err := h.deps.Notices.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, notices)
}

func (h *handlers) createNotice(c *gin.Context) {
	var in service.NoticeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	notice, err := h.deps.Notices.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, notice)
}

func (h *handlers) updateNotice(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	var in service.NoticeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	notice, err := h.deps.Notices.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, notice)
}

func (h *handlers) deleteNotice(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	if err := h.deps.Notices.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Ledger

func (h *handlers) listLedger(c *gin.Context) {
	entries, err := h.deps.Ledger.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, entries)
}

func (h *handlers) createLedger(c *gin.Context) {
	var in service.LedgerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	entry, err := h.deps.Ledger.Create(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, entry)
}

func (h *handlers) updateLedger(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	var in service.LedgerInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	entry, err := h.deps.Ledger.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, entry)
}

func (h *handlers) deleteLedger(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	if err := h.deps.Ledger.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) balance(c *gin.Context) {
	b, err := h.deps.Ledger.Balance(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

func (h *handlers) exportLedger(c *gin.Context) {
	var sel selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		h.badRequest(c, "ids", "A list of ids is required.")
		return
	}
	h.exportResult(c)(h.deps.Exports.ExportLedger(c.Request.Context(), sel.IDs))
}

// Users

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.deps.Auth.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, users)
}

func (h *handlers) updateUser(c *gin.Context) {
	id, found := pathID(c)
	if !found {
		return
	}
	var flags service.UserFlags
	if err := c.ShouldBindJSON(&flags); err != nil {
		h.badRequest(c, "non_field_errors", "Invalid JSON body.")
		return
	}
	user, err := h.deps.Auth.UpdateFlags(c.Request.Context(), currentUser(c), id, flags)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, user)
}
