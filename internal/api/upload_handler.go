package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"fieldCV/internal/upload"
)

// UploadHandler 负责受保护的文件上传接口。
type UploadHandler struct {
	uploads *upload.Service
	logger  *slog.Logger
}

// NewUploadHandler 构造 UploadHandler。
func NewUploadHandler(uploads *upload.Service, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadHandler{uploads: uploads, logger: logger}
}

// Upload 接收 multipart 表单中的 file 字段，保存后返回可访问的 URL。
func (h *UploadHandler) Upload(c *gin.Context) {
	if _, ok := userIDFromContext(c); !ok {
		AbortUnauthorized(c)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}

	stored, err := h.uploads.Store(file)
	if err != nil {
		h.logger.Warn("store upload", slog.String("error", err.Error()))
		RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, stored)
}
