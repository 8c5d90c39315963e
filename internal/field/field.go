package field

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
)

// CreateFieldInput 是创建字段的参数。GroupID/BelongID/Order/Pos 为 nil 表示不设置。
type CreateFieldInput struct {
	Name     string
	Type     database.FieldType
	Value    *string
	GroupID  *uint
	BelongID *uint
	Order    *int
	Pos      *int
}

// UpdateFieldInput 是更新字段的参数；创建之后仅 value 与 pos 可变。
type UpdateFieldInput struct {
	Value *string
	Pos   *int
}

func validateFieldName(name string) error {
	if len(name) == 0 || len(name) > 100 {
		return errcode.New(errcode.BadRequest, "field name must be between 1 and 100 characters")
	}
	return nil
}

// CreateField 创建一个字段。
//
// 槽位规则：当 belongId 与 pos 同时给出且该槽位已被其他字段占据时，
// 先删除占位字段及其整个子树再写入新字段（displace-on-write），
// 删除与创建在同一事务内完成。
func (s *Service) CreateField(ctx context.Context, userID uint, in CreateFieldInput) (*database.Field, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := validateFieldName(in.Name); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, errcode.New(errcode.BadRequest, "invalid field type")
	}

	if in.GroupID != nil {
		if _, err := s.ownedGroup(ctx, *in.GroupID, userID); err != nil {
			return nil, err
		}
	}
	if in.BelongID != nil {
		if _, err := s.ownedField(ctx, *in.BelongID, userID); err != nil {
			return nil, err
		}
	}

	exists, err := s.fieldNameExists(ctx, userID, in.Name, in.GroupID, in.BelongID, in.Pos, 0)
	if err != nil {
		return nil, s.systemError("check field name", err)
	}
	if exists {
		return nil, errcode.New(errcode.Conflict, "field name already exists under the same group, parent and position")
	}

	created := database.Field{
		Name:     in.Name,
		Type:     in.Type,
		Value:    in.Value,
		GroupID:  in.GroupID,
		BelongID: in.BelongID,
		Order:    in.Order,
		Pos:      in.Pos,
		UserID:   userID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.BelongID != nil && in.Pos != nil {
			occupant, err := slotOccupant(tx, userID, *in.BelongID, *in.Pos)
			if err != nil {
				return err
			}
			if occupant != nil {
				if err := deleteSubtree(tx, occupant.ID, userID); err != nil {
					return err
				}
			}
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, s.systemError("create field", err)
	}
	return &created, nil
}

// GetField 返回指定字段；不存在返回 NotFound，属于他人返回 Forbidden。
func (s *Service) GetField(ctx context.Context, id, userID uint) (*database.Field, error) {
	var f database.Field
	if err := s.db.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.New(errcode.NotFound, "field not found")
		}
		return nil, s.systemError("lookup field", err)
	}
	if f.UserID != userID {
		return nil, errcode.New(errcode.Forbidden, "no access to this field")
	}
	return &f, nil
}

// ListFields 返回用户的字段列表，可选按字段组过滤。
// 排序为创建时间倒序，创建时间相同按 id 倒序决出稳定次序。
func (s *Service) ListFields(ctx context.Context, userID uint, groupID *uint) ([]database.Field, error) {
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if groupID != nil {
		tx = tx.Where("group_id = ?", *groupID)
	}

	var fields []database.Field
	if err := tx.Order("create_time DESC, id DESC").Find(&fields).Error; err != nil {
		return nil, s.systemError("list fields", err)
	}
	return fields, nil
}

// UpdateField 更新字段的 value 与 pos。pos 变化且字段有父节点时，
// 同一兄弟集合内处于新旧位置之间的字段在同一事务内整体平移一位。
func (s *Service) UpdateField(ctx context.Context, id, userID uint, in UpdateFieldInput) (*database.Field, error) {
	f, err := s.GetField(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Value != nil {
		updates["value"] = *in.Value
	}

	oldPos := 0
	if f.Pos != nil {
		oldPos = *f.Pos
	}
	posChanged := in.Pos != nil && *in.Pos != oldPos
	if posChanged {
		updates["pos"] = *in.Pos
	}

	if len(updates) == 0 {
		return f, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 没有父节点的字段不参与兄弟平移，pos 单独改写即可。
		if posChanged && f.BelongID != nil {
			if err := shiftSiblings(tx, userID, f.ID, f.GroupID, *f.BelongID, oldPos, *in.Pos, nil); err != nil {
				return err
			}
		}
		return tx.Model(&database.Field{}).Where("id = ?", f.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, s.systemError("update field", err)
	}

	if err := s.db.WithContext(ctx).First(f, f.ID).Error; err != nil {
		return nil, s.systemError("reload field", err)
	}
	return f, nil
}

// DeleteField 在单个事务内删除字段及其通过 belong_id 可达的整棵子树；
// 任意删除失败整体回滚。
func (s *Service) DeleteField(ctx context.Context, id, userID uint) error {
	if _, err := s.GetField(ctx, id, userID); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteSubtree(tx, id, userID)
	})
	if err != nil {
		return s.systemError("delete field", err)
	}
	return nil
}

// ownedGroup 校验字段组存在且属于该用户；与 GetGroup 不同，
// 作为引用目标时不区分“不存在”与“无权访问”，一律按 NotFound 处理。
func (s *Service) ownedGroup(ctx context.Context, id, userID uint) (*database.FieldGroup, error) {
	var group database.FieldGroup
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errcode.New(errcode.NotFound, "group not found or not accessible")
	}
	if err != nil {
		return nil, s.systemError("lookup group", err)
	}
	return &group, nil
}

// ownedField 校验父级字段存在且属于该用户。
func (s *Service) ownedField(ctx context.Context, id, userID uint) (*database.Field, error) {
	var f database.Field
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errcode.New(errcode.NotFound, "parent field not found or not accessible")
	}
	if err != nil {
		return nil, s.systemError("lookup parent field", err)
	}
	return &f, nil
}
