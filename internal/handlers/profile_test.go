package handlers

import (
	"bytes"
	"fmt"
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

	"medilog-server/internal/models"
	"medilog-server/internal/records"
)

func photoAdmission() records.Admission {
	return records.Admission{
		MaxBytes:     1024,
		AllowedTypes: []string{"image/jpeg", "image/png"},
	}
}

// newProfileRouter wires the profile handler behind a stub auth middleware.
// The DB is nil on purpose: requests rejected by the photo admission gate
// must never get as far as a database lookup.
func newProfileRouter(h *ProfileHandler, callerID string, role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	authed := router.Group("/api/v1")
	authed.Use(func(c *gin.Context) {
		if callerID != "" {
			c.Set("userID", callerID)
			c.Set("userRole", role)
		}
	})
	authed.POST("/patients/profile", h.SavePatientProfile)
	authed.POST("/doctors/profile", h.SaveDoctorProfile)
	return router
}

func multipartPhoto(t *testing.T, fields map[string]string, fileName, fileType string, fileBody []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, fileName))
		hdr.Set("Content-Type", fileType)
		part, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(fileBody)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestSaveProfile_PhotoAdmissionRejectsBeforeStorage(t *testing.T) {
	cases := []struct {
		name     string
		fileName string
		fileType string
		fileBody []byte
	}{
		{"disallowed type", "resume.pdf", "application/pdf", []byte("%PDF")},
		{"executable masquerading as photo", "pic.exe", "application/octet-stream", []byte{0x4d, 0x5a}},
		{"oversize image", "huge.png", "image/png", bytes.Repeat([]byte("x"), 2048)},
	}
	routes := []struct {
		path string
		role models.Role
	}{
		{"/api/v1/patients/profile", models.RolePatient},
		{"/api/v1/doctors/profile", models.RoleDoctor},
	}
	for _, rt := range routes {
		for _, tc := range cases {
			t.Run(rt.path+" "+tc.name, func(t *testing.T) {
				store := &trackingStore{}
				h := NewProfileHandler(nil, store, photoAdmission(), time.Second, zap.NewNop())
				router := newProfileRouter(h, "alice", rt.role)

				body, contentType := multipartPhoto(t, map[string]string{"phone": "555-0101"},
					tc.fileName, tc.fileType, tc.fileBody)

				req := httptest.NewRequest(http.MethodPost, rt.path, body)
				req.Header.Set("Content-Type", contentType)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				assert.Equal(t, http.StatusBadRequest, w.Code)
				assert.Zero(t, store.putCalls, "rejected photos must never reach the blob store")
			})
		}
	}
}

func TestSaveProfile_RequiresCaller(t *testing.T) {
	h := NewProfileHandler(nil, &trackingStore{}, photoAdmission(), time.Second, zap.NewNop())
	router := newProfileRouter(h, "", models.RolePatient)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/patients/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
