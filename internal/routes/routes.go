package routes

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medilog-server/internal/config"
	"medilog-server/internal/handlers"
	"medilog-server/internal/middleware"
	"medilog-server/internal/models"
	"medilog-server/internal/records"
	"medilog-server/internal/storage"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config, store storage.Store, log *zap.Logger) {
	recordService := records.NewService(records.NewRepository(db), store, cfg.Storage.Timeout, log)
	admission := records.Admission{
		MaxBytes:     cfg.Upload.MaxBytes,
		AllowedTypes: cfg.Upload.AllowedTypes,
	}
	// Profile photos are images only and smaller than record files.
	photoAdmission := records.Admission{
		MaxBytes:     5 * 1024 * 1024,
		AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif"},
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	recordHandler := handlers.NewRecordHandler(recordService, store, admission, cfg.Storage.Timeout, log)
	profileHandler := handlers.NewProfileHandler(db, store, photoAdmission, cfg.Storage.Timeout, log)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// Share-token access: token possession is the authorization.
		sharedRoutes := public.Group("/records/shared")
		{
			sharedRoutes.GET("/:token", recordHandler.GetSharedRecord)
			sharedRoutes.GET("/:token/file", recordHandler.GetSharedRecordFile)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg)) // Apply JWT authentication middleware
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
		}

		// Record routes: every operation is owner-scoped inside the service.
		recordRoutes := private.Group("/records")
		{
			recordRoutes.GET("", recordHandler.ListRecords)
			recordRoutes.POST("", recordHandler.CreateRecord)
			recordRoutes.DELETE("/:id", recordHandler.DeleteRecord)
			recordRoutes.POST("/:id/share", recordHandler.IssueShareToken)
			recordRoutes.DELETE("/:id/share", recordHandler.RevokeShareToken)
			// View/download accept the credential as a query parameter too,
			// for iframe viewers and direct download links.
			recordRoutes.GET("/:id/view", recordHandler.ViewRecordFile)
			recordRoutes.GET("/:id/download", recordHandler.DownloadRecordFile)
		}

		// Profile routes
		patientRoutes := private.Group("/patients")
		patientRoutes.Use(middleware.RoleAuthMiddleware(models.RolePatient))
		{
			patientRoutes.POST("/profile", profileHandler.SavePatientProfile)
			patientRoutes.GET("/profile", profileHandler.FetchPatientProfile)
		}
		doctorRoutes := private.Group("/doctors")
		doctorRoutes.Use(middleware.RoleAuthMiddleware(models.RoleDoctor))
		{
			doctorRoutes.POST("/profile", profileHandler.SaveDoctorProfile)
			doctorRoutes.GET("/profile", profileHandler.FetchDoctorProfile)
		}
	}

	// Local backend: blob URLs point back at this process, so serve the
	// upload directory here. Presigned object-store URLs bypass this entirely.
	if local, ok := store.(*storage.LocalStore); ok {
		dir := local.Dir()
		router.GET("/uploads/:name", func(c *gin.Context) {
			name := filepath.Base(c.Param("name"))
			path := filepath.Join(dir, name)
			if c.Query("download") == "1" {
				c.FileAttachment(path, name)
				return
			}
			c.File(path)
		})
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
