package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medilog-server/internal/errs"
	"medilog-server/internal/models"
	"medilog-server/internal/records"
	"medilog-server/internal/storage"
)

type fakeRecordService struct {
	records.Service

	createIn   records.NewRecord
	createBlob storage.StoredObject
	createOut  *models.Record
	createErr  error

	deleteErr error

	resolveOut *models.Record
	resolveErr error

	issueOut string
	issueErr error

	revokeErr error

	fileLoc   string
	fileDL    bool
	fileErr   error
	sharedLoc string
	sharedErr error
	listOut   []models.Record
	listErr   error
}

func (f *fakeRecordService) List(_ context.Context, _ string) ([]models.Record, error) {
	return f.listOut, f.listErr
}

func (f *fakeRecordService) Create(_ context.Context, _ string, in records.NewRecord, blob storage.StoredObject) (*models.Record, error) {
	f.createIn, f.createBlob = in, blob
	return f.createOut, f.createErr
}

func (f *fakeRecordService) Delete(_ context.Context, _, _ string) error {
	return f.deleteErr
}

func (f *fakeRecordService) ResolveShareToken(_ context.Context, _ string) (*models.Record, error) {
	return f.resolveOut, f.resolveErr
}

func (f *fakeRecordService) IssueShareToken(_ context.Context, _, _ string) (string, error) {
	return f.issueOut, f.issueErr
}

func (f *fakeRecordService) RevokeShareToken(_ context.Context, _, _ string) error {
	return f.revokeErr
}

func (f *fakeRecordService) FileLocation(_ context.Context, _, _ string, download bool) (string, error) {
	f.fileDL = download
	return f.fileLoc, f.fileErr
}

func (f *fakeRecordService) SharedFileLocation(_ context.Context, _ string) (string, error) {
	return f.sharedLoc, f.sharedErr
}

type trackingStore struct {
	putKey    string
	putErr    error
	putCalls  int
	deleted   []string
	deleteErr error
}

func (s *trackingStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) (storage.StoredObject, error) {
	s.putCalls++
	if s.putErr != nil {
		return storage.StoredObject{}, s.putErr
	}
	io.Copy(io.Discard, r)
	s.putKey = "key-" + name
	return storage.StoredObject{Key: s.putKey, URL: "http://blobs/" + name}, nil
}

func (s *trackingStore) Delete(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *trackingStore) URL(_ context.Context, key string, _ bool) (string, error) {
	return "http://blobs/" + key, nil
}

func testAdmission() records.Admission {
	return records.Admission{
		MaxBytes:     1024,
		AllowedTypes: []string{"image/png", "application/pdf"},
	}
}

// newTestRouter wires the handler behind a stub auth middleware that injects
// the caller identity, mirroring what the JWT middleware does in production.
func newTestRouter(h *RecordHandler, callerID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	authed := router.Group("/api/v1/records")
	authed.Use(func(c *gin.Context) {
		if callerID != "" {
			c.Set("userID", callerID)
			c.Set("userRole", models.RolePatient)
		}
	})
	authed.GET("", h.ListRecords)
	authed.POST("", h.CreateRecord)
	authed.DELETE("/:id", h.DeleteRecord)
	authed.POST("/:id/share", h.IssueShareToken)
	authed.DELETE("/:id/share", h.RevokeShareToken)
	authed.GET("/:id/view", h.ViewRecordFile)
	authed.GET("/:id/download", h.DownloadRecordFile)

	router.GET("/api/v1/records/shared/:token", h.GetSharedRecord)
	router.GET("/api/v1/records/shared/:token/file", h.GetSharedRecordFile)
	return router
}

func newTestHandler(svc records.Service, store storage.Store) *RecordHandler {
	return NewRecordHandler(svc, store, testAdmission(), time.Second, zap.NewNop())
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, fileType string, fileBody []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		hdr.Set("Content-Type", fileType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(fileBody)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestListRecords_RequiresCaller(t *testing.T) {
	router := newTestRouter(newTestHandler(&fakeRecordService{}, &trackingStore{}), "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListRecords_OK(t *testing.T) {
	svc := &fakeRecordService{listOut: []models.Record{{Title: "Blood Report"}}}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "alice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blood Report")
}

func TestCreateRecord_OK(t *testing.T) {
	svc := &fakeRecordService{createOut: &models.Record{Title: "Blood Report"}}
	store := &trackingStore{}
	router := newTestRouter(newTestHandler(svc, store), "alice")

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Blood Report",
		"category":    models.CategoryBloodTest,
		"date":        "2024-01-01",
		"description": "fasting panel",
	}, "report.pdf", "application/pdf", []byte("%PDF"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, store.putCalls)
	assert.Equal(t, "key-report.pdf", svc.createBlob.Key)
	assert.Equal(t, "Blood Report", svc.createIn.Title)
	assert.Equal(t, models.CategoryBloodTest, svc.createIn.Category)
	assert.Equal(t, "report.pdf", svc.createIn.FileName)
}

func TestCreateRecord_AdmissionRejectsBeforeStorage(t *testing.T) {
	store := &trackingStore{}
	router := newTestRouter(newTestHandler(&fakeRecordService{}, store), "alice")

	cases := []struct {
		name     string
		fileName string
		fileType string
		fileBody []byte
	}{
		{"no file", "", "", nil},
		{"disallowed type", "notes.txt", "text/plain", []byte("hello")},
		{"oversize", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 2048)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, map[string]string{
				"title":    "t",
				"category": models.CategoryBloodTest,
				"date":     "2024-01-01",
			}, tc.fileName, tc.fileType, tc.fileBody)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/records", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, store.putCalls, "rejected uploads must never reach the blob store")
		})
	}
}

func TestCreateRecord_MissingFieldsRejectedBeforeStorage(t *testing.T) {
	store := &trackingStore{}
	router := newTestRouter(newTestHandler(&fakeRecordService{}, store), "alice")

	body, contentType := multipartUpload(t, map[string]string{
		"title": "t",
		// category and date missing
	}, "report.pdf", "application/pdf", []byte("%PDF"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.putCalls)
}

func TestCreateRecord_RollsBackBlobOnServiceFailure(t *testing.T) {
	svc := &fakeRecordService{createErr: fmt.Errorf("%w: boom", errs.ErrValidation)}
	store := &trackingStore{}
	router := newTestRouter(newTestHandler(svc, store), "alice")

	body, contentType := multipartUpload(t, map[string]string{
		"title":    "t",
		"category": models.CategoryBloodTest,
		"date":     "2024-01-01",
	}, "report.pdf", "application/pdf", []byte("%PDF"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"key-report.pdf"}, store.deleted, "stored blob must be rolled back")
}

func TestCreateRecord_StorageDown(t *testing.T) {
	store := &trackingStore{putErr: errors.New("connection refused")}
	router := newTestRouter(newTestHandler(&fakeRecordService{}, store), "alice")

	body, contentType := multipartUpload(t, map[string]string{
		"title":    "t",
		"category": models.CategoryBloodTest,
		"date":     "2024-01-01",
	}, "report.pdf", "application/pdf", []byte("%PDF"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDeleteRecord_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"missing", errs.ErrNotFound, http.StatusNotFound},
		{"foreign collapses to not found", errs.ErrNotAuthorized, http.StatusNotFound},
		{"blob store down", fmt.Errorf("%w: s3 timeout", errs.ErrDependency), http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeRecordService{deleteErr: tc.err}
			router := newTestRouter(newTestHandler(svc, &trackingStore{}), "alice")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/records/r1", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestForeignAndMissingRecordsAreIndistinguishable(t *testing.T) {
	missing := &fakeRecordService{deleteErr: errs.ErrNotFound}
	foreign := &fakeRecordService{deleteErr: errs.ErrNotAuthorized}

	var bodies []string
	for _, svc := range []*fakeRecordService{missing, foreign} {
		router := newTestRouter(newTestHandler(svc, &trackingStore{}), "alice")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/records/r1", nil))
		require.Equal(t, http.StatusNotFound, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1], "responses must not leak record existence")
}

func TestShareTokenEndpoints(t *testing.T) {
	svc := &fakeRecordService{issueOut: "deadbeef"}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "alice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/records/r1/share", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deadbeef")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/records/r1/share", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetSharedRecord(t *testing.T) {
	svc := &fakeRecordService{resolveOut: &models.Record{Title: "Blood Report"}}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/shared/sometoken", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blood Report")
}

func TestGetSharedRecord_InvalidToken(t *testing.T) {
	svc := &fakeRecordService{resolveErr: errs.ErrNotFound}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/shared/bogus", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSharedRecordFile_Redirects(t *testing.T) {
	svc := &fakeRecordService{sharedLoc: "http://blobs/key-report.pdf"}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/shared/sometoken/file", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://blobs/key-report.pdf", w.Header().Get("Location"))
}

func TestViewAndDownloadRedirects(t *testing.T) {
	svc := &fakeRecordService{fileLoc: "http://blobs/key-report.pdf"}
	router := newTestRouter(newTestHandler(svc, &trackingStore{}), "alice")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/r1/view", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.False(t, svc.fileDL)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/records/r1/download", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, svc.fileDL)
}
