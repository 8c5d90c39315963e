package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"fieldCV/internal/api/middleware"
	"fieldCV/internal/auth"
	"fieldCV/internal/config"
	"fieldCV/internal/field"
	"fieldCV/internal/upload"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	uploadService *upload.Service,
	logger *slog.Logger,
) {
	authHandler := NewAuthHandler(
		db,
		authService,
		redisClient,
		logger,
		cfg.Auth.LoginRateLimitPerHour,
		cfg.Auth.LoginLockThreshold,
		cfg.Auth.LoginLockTTL,
		cfg.Auth.CookieDomain,
	)
	userHandler := NewUserHandler(db, logger)
	fieldHandler := NewFieldHandler(field.NewService(db, logger))
	uploadHandler := NewUploadHandler(uploadService, logger)
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		userGroup := v1.Group("/user")
		userGroup.Use(authMiddleware)
		{
			userGroup.GET("/profile", userHandler.GetProfile)
			userGroup.PUT("/profile", userHandler.UpdateProfile)
		}

		fieldGroup := v1.Group("/field")
		fieldGroup.Use(authMiddleware)
		{
			fieldGroup.POST("/group", fieldHandler.CreateGroup)
			fieldGroup.POST("/group/search", fieldHandler.SearchGroups)
			fieldGroup.GET("/group/:id", fieldHandler.GetGroup)
			fieldGroup.PUT("/group/:id", fieldHandler.UpdateGroup)
			fieldGroup.DELETE("/group/:id", fieldHandler.DeleteGroup)

			fieldGroup.POST("", fieldHandler.CreateField)
			fieldGroup.GET("", fieldHandler.ListFields)
			fieldGroup.POST("/batch", fieldHandler.BatchCreateFields)
			fieldGroup.PUT("/batch-update", fieldHandler.BatchUpdateFields)
			fieldGroup.GET("/:id", fieldHandler.GetField)
			fieldGroup.PUT("/:id", fieldHandler.UpdateField)
			fieldGroup.DELETE("/:id", fieldHandler.DeleteField)
		}

		uploadGroup := v1.Group("/upload")
		uploadGroup.Use(authMiddleware)
		{
			uploadGroup.POST("", uploadHandler.Upload)
		}
	}
}
