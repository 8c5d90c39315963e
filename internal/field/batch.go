package field

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
)

// ParentRef 是批量创建时的父级引用：既可以是已持久化字段的 id，
// 也可以是 "#<index>" 形式的回引，指向本批次中更早创建的条目。
// 回引只允许指向更小的下标，父节点先于子节点落库，从构造上排除了环。
type ParentRef struct {
	ID    *uint
	Index *int
}

// IsZero 表示未给出父级引用。
func (r ParentRef) IsZero() bool { return r.ID == nil && r.Index == nil }

// UnmarshalJSON 接受数字（字段 id）或 "#<index>" 字符串两种形式。
func (r *ParentRef) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}

	if strings.HasPrefix(s, `"`) {
		var token string
		if err := json.Unmarshal(data, &token); err != nil {
			return err
		}
		if !strings.HasPrefix(token, "#") {
			return fmt.Errorf("belongId string must look like \"#<index>\", got %q", token)
		}
		index, err := strconv.Atoi(token[1:])
		if err != nil || index < 0 {
			return fmt.Errorf("invalid belongId back reference %q", token)
		}
		r.Index = &index
		return nil
	}

	var id uint
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("belongId must be a field id or \"#<index>\": %w", err)
	}
	r.ID = &id
	return nil
}

func (r ParentRef) String() string {
	switch {
	case r.Index != nil:
		return "#" + strconv.Itoa(*r.Index)
	case r.ID != nil:
		return strconv.FormatUint(uint64(*r.ID), 10)
	default:
		return "null"
	}
}

// BatchCreateItem 是批量创建中的一个字段描述。
type BatchCreateItem struct {
	Name    string
	Type    database.FieldType
	Value   *string
	GroupID *uint
	Belong  ParentRef
	Order   *int
	Pos     *int
}

// BatchUpdateItem 是批量更新中的一个补丁。
type BatchUpdateItem struct {
	ID   uint
	Data UpdateFieldInput
}

// BatchCreate 按输入顺序创建一组字段，整体在一个事务内完成，任一失败全部回滚。
//
// 校验全部发生在开启事务之前：字段组与数值型父级的归属、每个条目的名称冲突、
// 批次内部按 (group, belong, pos) 维度的重名，以及回引下标必须小于当前条目下标。
// 单条创建的 displace-on-write 规则按条目顺序逐一生效。
func (s *Service) BatchCreate(ctx context.Context, userID uint, items []BatchCreateItem) ([]database.Field, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errcode.New(errcode.BadRequest, "fields must not be empty")
	}

	for _, item := range items {
		if err := validateFieldName(item.Name); err != nil {
			return nil, err
		}
		if !item.Type.Valid() {
			return nil, errcode.New(errcode.BadRequest, fmt.Sprintf("field %q has an invalid type", item.Name))
		}
	}

	if err := s.checkBatchGroups(ctx, userID, items); err != nil {
		return nil, err
	}

	// 名称冲突预检。回引条目的父级 id 尚未产生，跳过数据库侧比对，
	// 批次内部的重名检查仍然覆盖它们。
	for _, item := range items {
		if item.Belong.Index != nil {
			continue
		}
		exists, err := s.fieldNameExists(ctx, userID, item.Name, item.GroupID, item.Belong.ID, item.Pos, 0)
		if err != nil {
			return nil, s.systemError("check field name", err)
		}
		if exists {
			return nil, errcode.New(errcode.Conflict,
				fmt.Sprintf("field name %q already exists under the same group, parent and position", item.Name))
		}
	}

	if err := checkBatchDuplicates(items); err != nil {
		return nil, err
	}

	for i, item := range items {
		if item.Belong.Index != nil && *item.Belong.Index >= i {
			return nil, errcode.New(errcode.BadRequest,
				fmt.Sprintf("field %q references %s: a back reference must point to an earlier item", item.Name, item.Belong))
		}
		if item.Belong.ID != nil {
			if _, err := s.ownedField(ctx, *item.Belong.ID, userID); err != nil {
				return nil, err
			}
		}
	}

	created := make([]database.Field, 0, len(items))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			belongID := item.Belong.ID
			if item.Belong.Index != nil {
				id := created[*item.Belong.Index].ID
				belongID = &id
			}

			if belongID != nil && item.Pos != nil {
				occupant, err := slotOccupant(tx, userID, *belongID, *item.Pos)
				if err != nil {
					return err
				}
				if occupant != nil {
					if err := deleteSubtree(tx, occupant.ID, userID); err != nil {
						return err
					}
				}
			}

			f := database.Field{
				Name:     item.Name,
				Type:     item.Type,
				Value:    item.Value,
				GroupID:  item.GroupID,
				BelongID: belongID,
				Order:    item.Order,
				Pos:      item.Pos,
				UserID:   userID,
			}
			if err := tx.Create(&f).Error; err != nil {
				return err
			}
			created = append(created, f)
		}
		return nil
	})
	if err != nil {
		return nil, s.systemError("batch create fields", err)
	}
	return created, nil
}

// BatchUpdate 应用一组 value/pos 补丁，整体一个事务。
// 所有补丁目标先做存在性与归属校验，任一缺失立即失败，不产生部分更新。
// 补丁按 (group, belong) 分组后处理，同组内按目标位置从大到小应用，
// 避免平移过程中的瞬时槽位冲突；本批次要改动的字段彼此视为已“钉住”，
// 不参与平移，因此同组内互换位置能精确落位。
func (s *Service) BatchUpdate(ctx context.Context, userID uint, updates []BatchUpdateItem) ([]database.Field, error) {
	if len(updates) == 0 {
		return nil, errcode.New(errcode.BadRequest, "updates must not be empty")
	}

	type patch struct {
		update BatchUpdateItem
		field  database.Field
	}

	patches := make([]patch, 0, len(updates))
	for _, u := range updates {
		var f database.Field
		err := s.db.WithContext(ctx).
			Where("id = ? AND user_id = ?", u.ID, userID).
			First(&f).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errcode.New(errcode.NotFound,
					fmt.Sprintf("field %d not found or not accessible", u.ID))
			}
			return nil, s.systemError("lookup field", err)
		}
		patches = append(patches, patch{update: u, field: f})
	}

	groups := map[string][]patch{}
	order := []string{}
	for _, p := range patches {
		key := refString(p.field.GroupID) + "-" + refString(p.field.BelongID)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range order {
			groupPatches := groups[key]

			pinned := make([]uint, 0, len(groupPatches))
			for _, p := range groupPatches {
				if p.update.Data.Pos != nil {
					pinned = append(pinned, p.field.ID)
				}
			}

			posPatches := make([]patch, 0, len(groupPatches))
			for _, p := range groupPatches {
				if p.update.Data.Pos != nil {
					posPatches = append(posPatches, p)
				}
			}
			sort.SliceStable(posPatches, func(i, j int) bool {
				return *posPatches[i].update.Data.Pos > *posPatches[j].update.Data.Pos
			})

			for _, p := range posPatches {
				oldPos := 0
				if p.field.Pos != nil {
					oldPos = *p.field.Pos
				}
				newPos := *p.update.Data.Pos
				if oldPos == newPos {
					continue
				}

				if p.field.BelongID != nil {
					if err := shiftSiblings(tx, userID, p.field.ID, p.field.GroupID, *p.field.BelongID, oldPos, newPos, pinned); err != nil {
						return err
					}
				}
				if err := tx.Model(&database.Field{}).
					Where("id = ?", p.field.ID).
					UpdateColumn("pos", newPos).Error; err != nil {
					return err
				}
			}

			for _, p := range groupPatches {
				if p.update.Data.Value == nil {
					continue
				}
				if err := tx.Model(&database.Field{}).
					Where("id = ?", p.field.ID).
					Update("value", *p.update.Data.Value).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.systemError("batch update fields", err)
	}

	// 按输入顺序重新加载，返回补丁后的最终状态。
	result := make([]database.Field, 0, len(updates))
	for _, u := range updates {
		var f database.Field
		if err := s.db.WithContext(ctx).First(&f, u.ID).Error; err != nil {
			return nil, s.systemError("reload field", err)
		}
		result = append(result, f)
	}
	return result, nil
}

// checkBatchGroups 去重后校验批次引用的所有字段组均存在且属于该用户。
func (s *Service) checkBatchGroups(ctx context.Context, userID uint, items []BatchCreateItem) error {
	seen := map[uint]struct{}{}
	ids := []uint{}
	for _, item := range items {
		if item.GroupID == nil {
			continue
		}
		if _, ok := seen[*item.GroupID]; ok {
			continue
		}
		seen[*item.GroupID] = struct{}{}
		ids = append(ids, *item.GroupID)
	}
	if len(ids) == 0 {
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&database.FieldGroup{}).
		Where("id IN ? AND user_id = ?", ids, userID).
		Count(&count).Error; err != nil {
		return s.systemError("lookup groups", err)
	}
	if count != int64(len(ids)) {
		return errcode.New(errcode.NotFound, "some groups not found or not accessible")
	}
	return nil
}

// checkBatchDuplicates 在批次内部按 (group, belong, pos) 维度检查重名。
func checkBatchDuplicates(items []BatchCreateItem) error {
	seen := map[string]struct{}{}
	for _, item := range items {
		key := refString(item.GroupID) + "-" + item.Belong.String() + "-" + posString(item.Pos)
		nameKey := key + "-" + item.Name
		if _, ok := seen[nameKey]; ok {
			return errcode.New(errcode.Conflict,
				fmt.Sprintf("duplicate field name %q under the same group, parent and position in batch", item.Name))
		}
		seen[nameKey] = struct{}{}
	}
	return nil
}

func refString(id *uint) string {
	if id == nil {
		return "null"
	}
	return strconv.FormatUint(uint64(*id), 10)
}

func posString(pos *int) string {
	if pos == nil {
		return "null"
	}
	return strconv.Itoa(*pos)
}
