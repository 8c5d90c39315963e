package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fieldCV/internal/database"
	"fieldCV/internal/field"
	"fieldCV/internal/query"
)

// FieldHandler 负责字段组与字段的全部 API 请求，实际业务委托给 field.Service。
type FieldHandler struct {
	fields *field.Service
}

// NewFieldHandler 构造 FieldHandler。
func NewFieldHandler(fields *field.Service) *FieldHandler {
	return &FieldHandler{fields: fields}
}

type groupResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

func newGroupResponse(g database.FieldGroup) groupResponse {
	return groupResponse{
		ID:         g.ID,
		Name:       g.Name,
		CreateTime: g.CreateTime,
		UpdateTime: g.UpdateTime,
	}
}

type fieldResponse struct {
	ID         uint               `json:"id"`
	Name       string             `json:"name"`
	Type       database.FieldType `json:"type"`
	Value      *string            `json:"value,omitempty"`
	GroupID    *uint              `json:"group_id,omitempty"`
	Order      *int               `json:"order,omitempty"`
	BelongID   *uint              `json:"belong_id,omitempty"`
	Pos        *int               `json:"pos,omitempty"`
	CreateTime time.Time          `json:"create_time"`
	UpdateTime time.Time          `json:"update_time"`
}

func newFieldResponse(f database.Field) fieldResponse {
	return fieldResponse{
		ID:         f.ID,
		Name:       f.Name,
		Type:       f.Type,
		Value:      f.Value,
		GroupID:    f.GroupID,
		Order:      f.Order,
		BelongID:   f.BelongID,
		Pos:        f.Pos,
		CreateTime: f.CreateTime,
		UpdateTime: f.UpdateTime,
	}
}

func newFieldResponses(fields []database.Field) []fieldResponse {
	items := make([]fieldResponse, 0, len(fields))
	for _, f := range fields {
		items = append(items, newFieldResponse(f))
	}
	return items
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		BadRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CreateGroup 创建字段组。
func (h *FieldHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	group, err := h.fields.CreateGroup(c.Request.Context(), userID, field.CreateGroupInput{Name: req.Name})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newGroupResponse(*group))
}

type searchGroupsResponse struct {
	Data       []groupResponse `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// SearchGroups 按筛选、排序与分页条件查询字段组列表。
func (h *FieldHandler) SearchGroups(c *gin.Context) {
	var opts query.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	result, err := h.fields.ListGroups(c.Request.Context(), userID, opts)
	if err != nil {
		RespondError(c, err)
		return
	}

	data := make([]groupResponse, 0, len(result.Data))
	for _, g := range result.Data {
		data = append(data, newGroupResponse(g))
	}
	c.JSON(http.StatusOK, searchGroupsResponse{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
	})
}

// GetGroup 返回字段组详情。
func (h *FieldHandler) GetGroup(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	group, err := h.fields.GetGroup(c.Request.Context(), id, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newGroupResponse(*group))
}

type updateGroupRequest struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=100"`
}

// UpdateGroup 更新字段组名称。
func (h *FieldHandler) UpdateGroup(c *gin.Context) {
	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	group, err := h.fields.UpdateGroup(c.Request.Context(), id, userID, field.UpdateGroupInput{Name: req.Name})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newGroupResponse(*group))
}

// DeleteGroup 删除字段组及其名下所有字段子树。
func (h *FieldHandler) DeleteGroup(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.fields.DeleteGroup(c.Request.Context(), id, userID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type createFieldRequest struct {
	Name     string  `json:"name" binding:"required,min=1,max=100"`
	Type     int16   `json:"type" binding:"required,min=1,max=6"`
	Value    *string `json:"value"`
	GroupID  *uint   `json:"group_id"`
	BelongID *uint   `json:"belong_id"`
	Order    *int    `json:"order" binding:"omitempty,min=0"`
	Pos      *int    `json:"pos" binding:"omitempty,min=0"`
}

// CreateField 创建字段。
func (h *FieldHandler) CreateField(c *gin.Context) {
	var req createFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	created, err := h.fields.CreateField(c.Request.Context(), userID, field.CreateFieldInput{
		Name:     req.Name,
		Type:     database.FieldType(req.Type),
		Value:    req.Value,
		GroupID:  req.GroupID,
		BelongID: req.BelongID,
		Order:    req.Order,
		Pos:      req.Pos,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFieldResponse(*created))
}

// ListFields 返回字段列表，可选 groupId 过滤。
func (h *FieldHandler) ListFields(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var groupID *uint
	if raw := c.Query("groupId"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || parsed == 0 {
			BadRequest(c, "invalid groupId")
			return
		}
		id := uint(parsed)
		groupID = &id
	}

	fields, err := h.fields.ListFields(c.Request.Context(), userID, groupID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFieldResponses(fields))
}

// GetField 返回字段详情。
func (h *FieldHandler) GetField(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	f, err := h.fields.GetField(c.Request.Context(), id, userID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFieldResponse(*f))
}

type updateFieldRequest struct {
	Value *string `json:"value"`
	Pos   *int    `json:"pos" binding:"omitempty,min=0"`
}

// UpdateField 更新字段的 value 与 pos。
func (h *FieldHandler) UpdateField(c *gin.Context) {
	var req updateFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	f, err := h.fields.UpdateField(c.Request.Context(), id, userID, field.UpdateFieldInput{
		Value: req.Value,
		Pos:   req.Pos,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFieldResponse(*f))
}

// DeleteField 删除字段及其整棵子树。
func (h *FieldHandler) DeleteField(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	if err := h.fields.DeleteField(c.Request.Context(), id, userID); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type batchCreateFieldItem struct {
	Name    string          `json:"name" binding:"required,min=1,max=100"`
	Type    int16           `json:"type" binding:"required,min=1,max=6"`
	Value   *string         `json:"value"`
	GroupID *uint           `json:"group_id"`
	Belong  field.ParentRef `json:"belong_id"`
	Order   *int            `json:"order" binding:"omitempty,min=0"`
	Pos     *int            `json:"pos" binding:"omitempty,min=0"`
}

type batchCreateRequest struct {
	Fields []batchCreateFieldItem `json:"fields" binding:"required,min=1,dive"`
}

// BatchCreateFields 按输入顺序批量创建字段，返回创建结果（与输入同序）。
func (h *FieldHandler) BatchCreateFields(c *gin.Context) {
	var req batchCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	items := make([]field.BatchCreateItem, 0, len(req.Fields))
	for _, item := range req.Fields {
		items = append(items, field.BatchCreateItem{
			Name:    item.Name,
			Type:    database.FieldType(item.Type),
			Value:   item.Value,
			GroupID: item.GroupID,
			Belong:  item.Belong,
			Order:   item.Order,
			Pos:     item.Pos,
		})
	}

	created, err := h.fields.BatchCreate(c.Request.Context(), userID, items)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newFieldResponses(created))
}

type batchUpdateItem struct {
	ID   uint               `json:"id" binding:"required"`
	Data updateFieldRequest `json:"data" binding:"required"`
}

type batchUpdateRequest struct {
	Updates []batchUpdateItem `json:"updates" binding:"required,min=1,dive"`
}

// BatchUpdateFields 批量应用 value/pos 补丁，全部成功或全部回滚。
func (h *FieldHandler) BatchUpdateFields(c *gin.Context) {
	var req batchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	updates := make([]field.BatchUpdateItem, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, field.BatchUpdateItem{
			ID: u.ID,
			Data: field.UpdateFieldInput{
				Value: u.Data.Value,
				Pos:   u.Data.Pos,
			},
		})
	}

	updated, err := h.fields.BatchUpdate(c.Request.Context(), userID, updates)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newFieldResponses(updated))
}
