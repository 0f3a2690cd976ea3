package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"medilog-server/internal/errs"
	"medilog-server/internal/middleware"
	"medilog-server/internal/records"
	"medilog-server/internal/storage"
	"medilog-server/internal/utils"
)

// RecordHandler is the HTTP surface over the record access control core. It
// parses requests, runs the upload admission gate, and maps the core's
// sentinel errors to status codes without leaking internal detail.
type RecordHandler struct {
	Service   records.Service
	Store     storage.Store
	Admission records.Admission
	// BlobTimeout bounds the upload to the blob store.
	BlobTimeout time.Duration
	Log         *zap.Logger
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(svc records.Service, store storage.Store, admission records.Admission, blobTimeout time.Duration, log *zap.Logger) *RecordHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecordHandler{
		Service:     svc,
		Store:       store,
		Admission:   admission,
		BlobTimeout: blobTimeout,
		Log:         log,
	}
}

// ListRecords handles GET /records: all records owned by the caller.
func (h *RecordHandler) ListRecords(c *gin.Context) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	recs, err := h.Service.List(c.Request.Context(), callerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Records fetched successfully", recs)
}

// CreateRecord handles POST /records: multipart upload of one file plus
// title, category, date and an optional description.
//
// Ordering is deliberate: admission runs before any byte is durably stored,
// the blob is stored before the record row is created, and the blob is rolled
// back if record persistence fails. A record never references a blob that
// failed to upload, and a blob never outlives a failed record.
func (h *RecordHandler) CreateRecord(c *gin.Context) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fileHeader = nil
	}
	if err := h.Admission.Check(fileHeader); err != nil {
		h.respondError(c, err)
		return
	}

	title := c.PostForm("title")
	category := c.PostForm("category")
	dateStr := c.PostForm("date")
	if title == "" || category == "" || dateStr == "" {
		utils.BadRequest(c, "Category, title, and date are required")
		return
	}
	recordDate, err := parseRecordDate(dateStr)
	if err != nil {
		utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD or ISO 8601")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequest(c, "Error retrieving file from form")
		return
	}
	defer file.Close()

	// The request context makes the upload abortable when the client
	// disconnects; the timeout keeps a slow blob store from hanging it.
	putCtx, cancel := context.WithTimeout(c.Request.Context(), h.BlobTimeout)
	defer cancel()
	blob, err := h.Store.Put(putCtx, fileHeader.Filename, file, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.Log.Warn("blob upload failed", zap.Error(err))
		utils.BadGateway(c, "File storage is unavailable, try again later")
		return
	}

	rec, err := h.Service.Create(c.Request.Context(), callerID, records.NewRecord{
		Title:       title,
		Description: c.PostForm("description"),
		Category:    category,
		RecordDate:  recordDate,
		FileName:    fileHeader.Filename,
		FileType:    fileHeader.Header.Get("Content-Type"),
	}, blob)
	if err != nil {
		// Roll the blob back so record-persistence failure leaves no orphan.
		rollbackCtx, cancelRollback := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.BlobTimeout)
		defer cancelRollback()
		if delErr := h.Store.Delete(rollbackCtx, blob.Key); delErr != nil {
			h.Log.Error("blob rollback failed, orphan left behind",
				zap.String("blob_key", blob.Key), zap.Error(delErr))
		}
		h.respondError(c, err)
		return
	}

	utils.Created(c, "Record created successfully", rec)
}

// DeleteRecord handles DELETE /records/:id.
func (h *RecordHandler) DeleteRecord(c *gin.Context) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	if err := h.Service.Delete(c.Request.Context(), callerID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Record removed successfully", nil)
}

// IssueShareToken handles POST /records/:id/share.
func (h *RecordHandler) IssueShareToken(c *gin.Context) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	token, err := h.Service.IssueShareToken(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Share token issued", gin.H{"shareToken": token})
}

// RevokeShareToken handles DELETE /records/:id/share.
func (h *RecordHandler) RevokeShareToken(c *gin.Context) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	if err := h.Service.RevokeShareToken(c.Request.Context(), callerID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Share token revoked", nil)
}

// GetSharedRecord handles GET /records/shared/:token (public metadata).
func (h *RecordHandler) GetSharedRecord(c *gin.Context) {
	rec, err := h.Service.ResolveShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.Success(c, "Shared record fetched successfully", rec)
}

// GetSharedRecordFile handles GET /records/shared/:token/file (public redirect).
func (h *RecordHandler) GetSharedRecordFile(c *gin.Context) {
	location, err := h.Service.SharedFileLocation(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// ViewRecordFile handles GET /records/:id/view: redirect to the blob URL for
// in-browser viewing.
func (h *RecordHandler) ViewRecordFile(c *gin.Context) {
	h.redirectToFile(c, false)
}

// DownloadRecordFile handles GET /records/:id/download: redirect to the blob
// URL with a forced-download hint.
func (h *RecordHandler) DownloadRecordFile(c *gin.Context) {
	h.redirectToFile(c, true)
}

func (h *RecordHandler) redirectToFile(c *gin.Context, download bool) {
	callerID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "Unauthorized, please log in")
		return
	}

	location, err := h.Service.FileLocation(c.Request.Context(), callerID, c.Param("id"), download)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// respondError maps core sentinels to HTTP statuses. Not-found and
// not-authorized deliberately produce the same response, so callers cannot
// probe for the existence of other users' records.
func (h *RecordHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrNotAuthorized):
		utils.NotFound(c, "Record not found")
	case errors.Is(err, errs.ErrDependency):
		utils.BadGateway(c, "A storage dependency is unavailable, try again later")
	default:
		h.Log.Error("record operation failed", zap.Error(err))
		utils.InternalServerError(c, "Server error")
	}
}

// parseRecordDate accepts the date-picker format and full ISO 8601 timestamps.
func parseRecordDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
