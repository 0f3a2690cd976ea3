package handlers

import (
	"context"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medilog-server/internal/middleware"
	"medilog-server/internal/models"
	"medilog-server/internal/records"
	"medilog-server/internal/storage"
	"medilog-server/internal/utils"
)

// ProfileHandler handles patient and doctor profile requests. Profile photos
// go through the same blob store as record files, behind their own
// image-only admission policy.
type ProfileHandler struct {
	DB          *gorm.DB
	Store       storage.Store
	Admission   records.Admission
	BlobTimeout time.Duration
	Log         *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(db *gorm.DB, store storage.Store, admission records.Admission, blobTimeout time.Duration, log *zap.Logger) *ProfileHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileHandler{DB: db, Store: store, Admission: admission, BlobTimeout: blobTimeout, Log: log}
}

// SavePatientProfile handles POST /patients/profile (multipart, photo optional).
func (h *ProfileHandler) SavePatientProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	photo, ok := h.admitPhoto(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.NotFound(c, "Patient not found")
		return
	}

	if v := c.PostForm("phone"); v != "" {
		user.Phone = v
	}
	if v := c.PostForm("address"); v != "" {
		user.Address = v
	}
	if v := c.PostForm("gender"); v != "" {
		user.Gender = v
	}
	if v := c.PostForm("age"); v != "" {
		age, err := strconv.Atoi(v)
		if err != nil {
			utils.BadRequest(c, "Invalid age")
			return
		}
		user.Age = &age
	}
	if v := c.PostForm("medicalHistory"); v != "" {
		user.MedicalHistory = v
	}
	if v := c.PostForm("bloodGroup"); v != "" {
		user.EmergencyInfo.BloodGroup = v
	}
	if v := c.PostForm("allergies"); v != "" {
		user.EmergencyInfo.Allergies = v
	}
	if v := c.PostForm("contactNumber"); v != "" {
		user.EmergencyInfo.ContactNumber = v
	}

	if !h.savePhoto(c, &user, photo) {
		return
	}

	if err := h.DB.Save(&user).Error; err != nil {
		utils.InternalServerError(c, "Error saving patient profile")
		return
	}
	utils.Success(c, "Patient profile saved", user.Sanitize())
}

// FetchPatientProfile handles GET /patients/profile.
func (h *ProfileHandler) FetchPatientProfile(c *gin.Context) {
	h.fetchProfile(c, "Patient")
}

// SaveDoctorProfile handles POST /doctors/profile (multipart, photo optional).
func (h *ProfileHandler) SaveDoctorProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	photo, ok := h.admitPhoto(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.NotFound(c, "Doctor not found")
		return
	}

	if v := c.PostForm("designation"); v != "" {
		user.Designation = v
	}
	if v := c.PostForm("department"); v != "" {
		user.Department = v
	}
	if v := c.PostForm("specialization"); v != "" {
		user.Specialization = v
	}
	if v := c.PostForm("phone"); v != "" {
		user.Phone = v
	}

	if !h.savePhoto(c, &user, photo) {
		return
	}

	if err := h.DB.Save(&user).Error; err != nil {
		utils.InternalServerError(c, "Error saving doctor profile")
		return
	}
	utils.Success(c, "Doctor profile saved", user.Sanitize())
}

// FetchDoctorProfile handles GET /doctors/profile.
func (h *ProfileHandler) FetchDoctorProfile(c *gin.Context) {
	h.fetchProfile(c, "Doctor")
}

func (h *ProfileHandler) fetchProfile(c *gin.Context, who string) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.NotFound(c, who+" not found")
		return
	}
	utils.Success(c, who+" profile fetched", user.Sanitize())
}

// admitPhoto runs the photo admission gate before anything is fetched or
// stored. A form with no photo field at all is fine; a photo that fails the
// policy responds 400 and reports false.
func (h *ProfileHandler) admitPhoto(c *gin.Context) (*multipart.FileHeader, bool) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return nil, true // no photo in the form
	}
	if err := h.Admission.Check(fileHeader); err != nil {
		utils.BadRequest(c, err.Error())
		return nil, false
	}
	return fileHeader, true
}

// savePhoto stores an admitted photo and swaps the user's photo handle,
// deleting the previous blob. Reports false after responding when the upload
// fails. A nil header is a no-op.
func (h *ProfileHandler) savePhoto(c *gin.Context, user *models.User, fileHeader *multipart.FileHeader) bool {
	if fileHeader == nil {
		return true
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequest(c, "Error retrieving photo from form")
		return false
	}
	defer file.Close()

	putCtx, cancel := context.WithTimeout(c.Request.Context(), h.BlobTimeout)
	defer cancel()
	blob, err := h.Store.Put(putCtx, fileHeader.Filename, file, fileHeader.Size,
		fileHeader.Header.Get("Content-Type"))
	if err != nil {
		h.Log.Warn("profile photo upload failed", zap.Error(err))
		utils.BadGateway(c, "File storage is unavailable, try again later")
		return false
	}

	if user.PhotoKey != "" {
		delCtx, cancelDel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.BlobTimeout)
		defer cancelDel()
		if err := h.Store.Delete(delCtx, user.PhotoKey); err != nil {
			h.Log.Warn("stale profile photo not deleted",
				zap.String("blob_key", user.PhotoKey), zap.Error(err))
		}
	}

	user.Photo = blob.URL
	user.PhotoKey = blob.Key
	return true
}
