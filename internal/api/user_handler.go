package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fieldCV/internal/database"
)

// UserHandler 负责当前用户的资料读写。
type UserHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewUserHandler 构造 UserHandler。
func NewUserHandler(db *gorm.DB, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{db: db, logger: logger}
}

type profileResponse struct {
	ID          uint           `json:"id"`
	Username    string         `json:"username"`
	Nickname    string         `json:"nickname,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Preferences datatypes.JSON `json:"preferences,omitempty"`
	CreateTime  time.Time      `json:"create_time"`
	UpdateTime  time.Time      `json:"update_time"`
}

func newProfileResponse(u database.User) profileResponse {
	return profileResponse{
		ID:          u.ID,
		Username:    u.Username,
		Nickname:    u.Nickname,
		AvatarURL:   u.AvatarURL,
		Preferences: u.Preferences,
		CreateTime:  u.CreateTime,
		UpdateTime:  u.UpdateTime,
	}
}

// GetProfile 返回当前登录用户的资料。
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		h.logger.Error("load user profile", "error", err, "user_id", userID)
		Internal(c, "failed to load profile")
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}

type updateProfileRequest struct {
	Nickname    *string        `json:"nickname" binding:"omitempty,min=2,max=20"`
	AvatarURL   *string        `json:"avatar_url" binding:"omitempty,url,max=255"`
	Preferences datatypes.JSON `json:"preferences"`
}

// UpdateProfile 部分更新昵称、头像与偏好设置，未出现的字段保持不变。
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var user database.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "user not found")
			return
		}
		h.logger.Error("load user profile", "error", err, "user_id", userID)
		Internal(c, "failed to load profile")
		return
	}

	updates := map[string]any{}
	if req.Nickname != nil {
		updates["nickname"] = *req.Nickname
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.Preferences != nil {
		updates["preferences"] = req.Preferences
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; err != nil {
			h.logger.Error("update user profile", "error", err, "user_id", userID)
			Internal(c, "failed to update profile")
			return
		}
	}

	c.JSON(http.StatusOK, newProfileResponse(user))
}
