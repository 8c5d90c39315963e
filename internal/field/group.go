package field

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
	"fieldCV/internal/query"
)

// groupQueryFields 是字段组列表接口允许筛选和排序的列。
var groupQueryFields = []string{"name", "create_time", "update_time"}

// CreateGroupInput 是创建字段组的参数。
type CreateGroupInput struct {
	Name string
}

// UpdateGroupInput 是更新字段组的参数，目前只有名称可改。
type UpdateGroupInput struct {
	Name *string
}

// CreateGroup 为用户创建字段组；同一用户下组名必须唯一。
func (s *Service) CreateGroup(ctx context.Context, userID uint, in CreateGroupInput) (*database.FieldGroup, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(in.Name) == 0 || len(in.Name) > 100 {
		return nil, errcode.New(errcode.BadRequest, "group name must be between 1 and 100 characters")
	}

	exists, err := s.groupNameExists(ctx, userID, in.Name, 0)
	if err != nil {
		return nil, s.systemError("check group name", err)
	}
	if exists {
		return nil, errcode.New(errcode.Conflict, "group name already exists")
	}

	group := database.FieldGroup{Name: in.Name, UserID: userID}
	if err := s.db.WithContext(ctx).Create(&group).Error; err != nil {
		return nil, s.systemError("create group", err)
	}
	return &group, nil
}

// GetGroup 返回指定字段组；不存在返回 NotFound，属于他人返回 Forbidden。
func (s *Service) GetGroup(ctx context.Context, id, userID uint) (*database.FieldGroup, error) {
	var group database.FieldGroup
	if err := s.db.WithContext(ctx).First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.New(errcode.NotFound, "group not found")
		}
		return nil, s.systemError("lookup group", err)
	}
	if group.UserID != userID {
		return nil, errcode.New(errcode.Forbidden, "no access to this group")
	}
	return &group, nil
}

// ListGroups 按查询选项返回用户的字段组分页列表。
func (s *Service) ListGroups(ctx context.Context, userID uint, opts query.Options) (*query.Result[database.FieldGroup], error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	result, err := query.Run[database.FieldGroup](tx, opts, groupQueryFields)
	if err != nil {
		if errcode.CodeOf(err) == errcode.BadRequest {
			return nil, err
		}
		return nil, s.systemError("list groups", err)
	}
	return result, nil
}

// UpdateGroup 更新字段组名称；仅在名称实际变化时重新校验唯一性。
func (s *Service) UpdateGroup(ctx context.Context, id, userID uint, in UpdateGroupInput) (*database.FieldGroup, error) {
	group, err := s.GetGroup(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if in.Name == nil || *in.Name == group.Name {
		return group, nil
	}
	if len(*in.Name) == 0 || len(*in.Name) > 100 {
		return nil, errcode.New(errcode.BadRequest, "group name must be between 1 and 100 characters")
	}

	exists, err := s.groupNameExists(ctx, userID, *in.Name, id)
	if err != nil {
		return nil, s.systemError("check group name", err)
	}
	if exists {
		return nil, errcode.New(errcode.Conflict, "group name already exists")
	}

	if err := s.db.WithContext(ctx).Model(group).Update("name", *in.Name).Error; err != nil {
		return nil, s.systemError("update group", err)
	}
	return group, nil
}

// DeleteGroup 在单个事务内递归删除组下所有字段（含各自子树），再删除组本身。
// 任意一步失败整体回滚。
func (s *Service) DeleteGroup(ctx context.Context, id, userID uint) error {
	if _, err := s.GetGroup(ctx, id, userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fields []database.Field
		if err := tx.Select("id").
			Where("group_id = ? AND user_id = ?", id, userID).
			Find(&fields).Error; err != nil {
			return err
		}

		for _, f := range fields {
			if err := deleteSubtree(tx, f.ID, userID); err != nil {
				return err
			}
		}

		return tx.Delete(&database.FieldGroup{}, id).Error
	})
	if err != nil {
		return s.systemError("delete group", err)
	}
	return nil
}
