// Package field 实现字段组与字段树的核心业务：按用户隔离的 CRUD、
// 名称唯一性校验、兄弟位置调整以及事务化的递归删除。
package field

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"fieldCV/internal/database"
	"fieldCV/internal/errcode"
)

// Service 封装字段存储的全部写入口；其他组件不得直接写 fields / field_groups 表。
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewService 构造字段服务。
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// systemError 记录持久层失败并返回不泄露存储细节的通用错误。
// 业务错误（errcode.Error）原样透传。
func (s *Service) systemError(op string, err error) error {
	var appErr *errcode.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Error(op, slog.Any("error", err))
	return errcode.New(errcode.SystemError, op+" failed, please retry later")
}

func (s *Service) ensureUser(ctx context.Context, userID uint) error {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errcode.New(errcode.NotFound, "user not found")
		}
		return s.systemError("lookup user", err)
	}
	return nil
}

// groupNameExists 判断组名在该用户下是否已被占用；excludeID 用于更新时排除自身。
func (s *Service) groupNameExists(ctx context.Context, userID uint, name string, excludeID uint) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&database.FieldGroup{}).
		Where("user_id = ? AND name = ?", userID, name)
	if excludeID != 0 {
		tx = tx.Where("id <> ?", excludeID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// fieldNameExists 按 (user, name, group, belong, pos) 复合口径判断字段名是否冲突。
// NULL 的 group/belong/pos 作为一个具体取值参与匹配，而不是通配；
// belong 为 NULL 时位置无意义，直接按 pos IS NULL 比对。
func (s *Service) fieldNameExists(ctx context.Context, userID uint, name string, groupID, belongID *uint, pos *int, excludeID uint) (bool, error) {
	tx := s.db.WithContext(ctx).Model(&database.Field{}).
		Where("user_id = ? AND name = ?", userID, name)

	if groupID == nil {
		tx = tx.Where("group_id IS NULL")
	} else {
		tx = tx.Where("group_id = ?", *groupID)
	}

	if belongID == nil {
		tx = tx.Where("belong_id IS NULL AND pos IS NULL")
	} else {
		tx = tx.Where("belong_id = ?", *belongID)
		if pos == nil {
			tx = tx.Where("pos IS NULL")
		} else {
			tx = tx.Where("pos = ?", *pos)
		}
	}

	if excludeID != 0 {
		tx = tx.Where("id <> ?", excludeID)
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// slotOccupant 返回占据 (belongID, pos) 槽位的字段；不存在时返回 nil。
func slotOccupant(tx *gorm.DB, userID, belongID uint, pos int) (*database.Field, error) {
	var occupant database.Field
	err := tx.Where("user_id = ? AND belong_id = ? AND pos = ?", userID, belongID, pos).
		First(&occupant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &occupant, nil
}

// deleteSubtree 在事务内先删子树再删节点本身，保证不会触发外键冲突。
// belong_id 只会指向已持久化的字段（批量创建的回引规则保证了这一点），
// 因此树中不可能出现环，递归必然终止。
func deleteSubtree(tx *gorm.DB, id, userID uint) error {
	var children []database.Field
	if err := tx.Select("id").
		Where("belong_id = ? AND user_id = ?", id, userID).
		Find(&children).Error; err != nil {
		return err
	}

	for _, child := range children {
		if err := deleteSubtree(tx, child.ID, userID); err != nil {
			return err
		}
	}

	return tx.Delete(&database.Field{}, id).Error
}

// shiftSiblings 调整同一 (user, group, belong) 兄弟集合内 [start,end] 区间的位置。
// 向后移动（newPos > oldPos）时区间内其余兄弟 -1，向前移动时 +1。
// 复合唯一键包含 name，区间平移不会踩到唯一索引。
func shiftSiblings(tx *gorm.DB, userID, fieldID uint, groupID *uint, belongID uint, oldPos, newPos int, excludeIDs []uint) error {
	if oldPos == newPos {
		return nil
	}

	start, end, adjustment := oldPos, newPos, -1
	if newPos < oldPos {
		start, end, adjustment = newPos, oldPos, 1
	}

	q := tx.Model(&database.Field{}).
		Where("user_id = ? AND belong_id = ?", userID, belongID).
		Where("id <> ?", fieldID)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if groupID == nil {
		q = q.Where("group_id IS NULL")
	} else {
		q = q.Where("group_id = ?", *groupID)
	}

	return q.Where("pos BETWEEN ? AND ?", start, end).
		UpdateColumn("pos", gorm.Expr("pos + ?", adjustment)).Error
}
