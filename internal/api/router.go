package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldCV/internal/api/middleware"
	"fieldCV/internal/config"
	"fieldCV/internal/metrics"
)

// NewRouter 构建 Gin 路由引擎，注册通用中间件与运维端点。
func NewRouter(cfg *config.Config, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 已落盘的上传文件直接走静态文件服务。
	router.Static("/uploads", cfg.Upload.Dir)

	return router
}
